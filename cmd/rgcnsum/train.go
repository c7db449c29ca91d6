// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ui/commandline"
	"github.com/gomlx/rgcnsum/dataset"
	"github.com/gomlx/rgcnsum/internal/fsutil"
	"github.com/gomlx/rgcnsum/report"
	"github.com/gomlx/rgcnsum/trainer"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

type trainOptions struct {
	datasetName     string
	technique       string
	experiment      string
	resultsDir      string
	settings        string
	createSummaries bool
	plots           bool

	// Hyperparameters, only applied if the flag is set.
	epochs, embDim, repetitions, hidden, seed    int
	learningRate, weightDecay                    float64
	transferWeights, transferEmbeddings          bool
	freezeWeights, freezeEmbeddings, progressBar bool
}

// paramFlags maps the hyperparameter flags to their context parameter.
var paramFlags = map[string]string{
	"epochs":              trainer.ParamEpochs,
	"emb-dim":             trainer.ParamEmbeddingDim,
	"repetitions":         trainer.ParamRepetitions,
	"hidden":              trainer.ParamHidden,
	"seed":                trainer.ParamSeed,
	"lr":                  trainer.ParamLearningRate,
	"weight-decay":        trainer.ParamWeightDecay,
	"transfer-weights":    trainer.ParamTransferWeights,
	"transfer-embeddings": trainer.ParamTransferEmbeddings,
	"freeze-weights":      trainer.ParamFreezeWeights,
	"freeze-embeddings":   trainer.ParamFreezeEmbeddings,
	"progress":            trainer.ParamProgressBar,
}

func (o *trainOptions) flagValue(flagName string) any {
	switch flagName {
	case "epochs":
		return o.epochs
	case "emb-dim":
		return o.embDim
	case "repetitions":
		return o.repetitions
	case "hidden":
		return o.hidden
	case "seed":
		return o.seed
	case "lr":
		return o.learningRate
	case "weight-decay":
		return o.weightDecay
	case "transfer-weights":
		return o.transferWeights
	case "transfer-embeddings":
		return o.transferEmbeddings
	case "freeze-weights":
		return o.freezeWeights
	case "freeze-embeddings":
		return o.freezeEmbeddings
	case "progress":
		return o.progressBar
	}
	return nil
}

// contextFromFlags creates the context with the default hyperparameters, then applies the
// --set settings and finally the hyperparameter flags explicitly given.
func contextFromFlags(cmd *cobra.Command, o *trainOptions) (*context.Context, []string, error) {
	ctx := context.New()
	ctx.SetParams(trainer.DefaultContextParams())
	paramsSet, err := commandline.ParseContextSettings(ctx, o.settings)
	if err != nil {
		return nil, nil, err
	}
	for flagName, param := range paramFlags {
		if cmd.Flags().Changed(flagName) {
			ctx.SetParam(param, o.flagValue(flagName))
			paramsSet = append(paramsSet, param)
		}
	}
	return ctx, paramsSet, nil
}

func newTrainCmd(opts *globalOptions) *cobra.Command {
	cmd, _ := newTrainCmdWithOptions(opts)
	return cmd
}

// newTrainCmdWithOptions returns the train command and the options its flags are bound to.
func newTrainCmdWithOptions(opts *globalOptions) (*cobra.Command, *trainOptions) {
	o := &trainOptions{}
	def := trainer.DefaultConfig()
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train on the summary graphs, transfer to the original graph, train and evaluate",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateChoice("summarization", o.technique, dataset.Techniques); err != nil {
				return err
			}
			if o.experiment != "" {
				return validateChoice("exp", o.experiment, trainer.ExperimentNames())
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTrain(cmd, opts, o)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&o.datasetName, "dataset", "AIFB", "Dataset name, as in the registry.")
	flags.StringVar(&o.technique, "summarization", dataset.Attribute, fmt.Sprintf("Summarization technique, one of %q.", dataset.Techniques))
	flags.StringVar(&o.experiment, "exp", "", fmt.Sprintf("Experiment, one of %q. If empty, all experiments are run.", trainer.ExperimentNames()))
	flags.StringVar(&o.resultsDir, "results", "./results", "Directory where reports and plots are written.")
	flags.StringVar(&o.settings, "set", "", `Context parameters, as a list of "param=value" separated by ";".`)
	flags.BoolVar(&o.createSummaries, "create-summaries", false, "(Re)create the summary map files of the technique before training.")
	flags.BoolVar(&o.plots, "plots", false, "Write accuracy and loss plots next to the reports.")

	flags.IntVar(&o.epochs, "epochs", def.Epochs, "Training epochs of each model.")
	flags.IntVar(&o.embDim, "emb-dim", def.EmbeddingDim, "Node embedding dimension.")
	flags.IntVar(&o.repetitions, "repetitions", def.Repetitions, "Repetitions of each experiment.")
	flags.IntVar(&o.hidden, "hidden", def.Hidden, "Hidden dimension of the RGCN.")
	flags.IntVar(&o.seed, "seed", int(def.Seed), "Seed of the first repetition.")
	flags.Float64Var(&o.learningRate, "lr", def.LearningRate, "Learning rate.")
	flags.Float64Var(&o.weightDecay, "weight-decay", def.WeightDecay, "Weight decay.")
	flags.BoolVar(&o.transferWeights, "transfer-weights", def.Transfer.TransferWeights, "Transfer the RGCN weights of the summary model.")
	flags.BoolVar(&o.transferEmbeddings, "transfer-embeddings", def.Transfer.TransferEmbeddings, "Transfer the node embeddings of the summary models.")
	flags.BoolVar(&o.freezeWeights, "freeze-weights", def.Transfer.FreezeWeights, "Don't train the transferred RGCN weights.")
	flags.BoolVar(&o.freezeEmbeddings, "freeze-embeddings", def.Transfer.FreezeEmbeddings, "Don't train the transferred node embeddings.")
	flags.BoolVar(&o.progressBar, "progress", def.ProgressBar, "Show a progress bar while training.")
	return cmd, o
}

func runTrain(cmd *cobra.Command, opts *globalOptions, o *trainOptions) error {
	dsCfg, dataDir, err := datasetConfig(opts, o.datasetName)
	if err != nil {
		return err
	}
	ctx, paramsSet, err := contextFromFlags(cmd, o)
	if err != nil {
		return err
	}
	if len(paramsSet) > 0 {
		klog.Infof("Hyperparameters set:\n%s", commandline.SprintModifiedContextSettings(ctx, paramsSet))
	}
	cfg, err := trainer.ConfigFromContext(ctx)
	if err != nil {
		return err
	}

	experiments := trainer.Experiments
	if o.experiment != "" {
		exp, err := trainer.ExperimentByName(o.experiment)
		if err != nil {
			return err
		}
		experiments = []trainer.Experiment{exp}
	}

	if o.createSummaries {
		if err := createSummaries(dsCfg, dataDir, o.technique, true); err != nil {
			return err
		}
	}
	ds, err := dataset.Load(dataDir, dsCfg, o.technique, cfg.Seed)
	if err != nil {
		return err
	}

	backend, err := backends.NewOrErr()
	if err != nil {
		return err
	}
	klog.Infof("Backend: %s", backend.Name())
	tr, err := trainer.New(backend, cfg)
	if err != nil {
		return err
	}
	resultsDir, err := fsutil.ReplaceTildeInDir(o.resultsDir)
	if err != nil {
		return err
	}
	out := termenv.NewOutput(os.Stdout)
	for _, exp := range experiments {
		fmt.Fprintln(out, out.String(fmt.Sprintf("%s / %s / %s", ds.Name, ds.Technique, exp.Name)).Bold())
		results, err := tr.Run(ds, exp)
		if err != nil {
			return err
		}
		r, err := report.New(ds.Name, ds.Technique, exp.Name, cfg, results)
		if err != nil {
			return err
		}
		if _, err := r.Save(resultsDir); err != nil {
			return err
		}
		if o.plots {
			for _, metric := range []report.Metric{report.MetricAccuracy, report.MetricLoss} {
				if _, err := r.SavePlot(resultsDir, metric); err != nil {
					return err
				}
			}
		}
		fmt.Fprintln(out, r.Table())
	}
	return nil
}
