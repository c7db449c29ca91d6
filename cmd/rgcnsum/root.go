// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"flag"
	"slices"

	"github.com/gomlx/rgcnsum/dataset"
	"github.com/gomlx/rgcnsum/internal/fsutil"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

// globalOptions are the flags shared by all commands.
type globalOptions struct {
	dataDir      string
	registryPath string
}

// registry loads the dataset registry and resolves the data directory.
func (o *globalOptions) registry() (dataset.Registry, string, error) {
	dataDir, err := fsutil.ReplaceTildeInDir(o.dataDir)
	if err != nil {
		return nil, "", err
	}
	r, err := dataset.LoadRegistry(o.registryPath)
	if err != nil {
		return nil, "", err
	}
	return r, dataDir, nil
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:           "rgcnsum",
		Short:         "RGCN training with parameters transferred from summary graphs",
		Long:          `rgcnsum trains RGCN node classifiers on summary graphs of RDF knowledge graphs, and transfers the learned weights and embeddings to a model of the original graph.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.dataDir, "data", "./graphs", "Data directory, the relative paths of the dataset registry refer to it.")
	root.PersistentFlags().StringVar(&opts.registryPath, "registry", "", "YAML dataset registry. If empty, the built-in registry is used.")

	klogFlags := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(klogFlags)
	root.PersistentFlags().AddGoFlagSet(klogFlags)

	root.AddCommand(newTrainCmd(opts), newSummarizeCmd(opts), newBisimMapCmd(opts))
	return root
}

// validateChoice returns an error if value is not one of choices.
func validateChoice(flagName, value string, choices []string) error {
	if !slices.Contains(choices, value) {
		return errors.Errorf("invalid value %q for --%s, valid values are %q", value, flagName, choices)
	}
	return nil
}

// datasetConfig validates the dataset name and returns its configuration.
func datasetConfig(opts *globalOptions, name string) (dataset.Config, string, error) {
	r, dataDir, err := opts.registry()
	if err != nil {
		return dataset.Config{}, "", err
	}
	if err := validateChoice("dataset", name, r.Names()); err != nil {
		return dataset.Config{}, "", err
	}
	cfg, err := r.Get(name)
	return cfg, dataDir, err
}
