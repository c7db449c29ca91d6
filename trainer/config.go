// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package trainer

import (
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/train/optimizers"
	"github.com/gomlx/rgcnsum/transfer"
	"github.com/pkg/errors"
)

// Context parameters read by ConfigFromContext.
const (
	ParamEpochs             = "epochs"
	ParamHidden             = "hidden"
	ParamEmbeddingDim       = "emb_dim"
	ParamWeightDecay        = "weight_decay"
	ParamRepetitions        = "repetitions"
	ParamSeed               = "seed"
	ParamTransferWeights    = "transfer_weights"
	ParamTransferEmbeddings = "transfer_embeddings"
	ParamFreezeWeights      = "freeze_weights"
	ParamFreezeEmbeddings   = "freeze_embeddings"
	ParamProgressBar        = "progress_bar"
)

// ParamLearningRate is the optimizer's own learning rate parameter.
var ParamLearningRate = optimizers.ParamLearningRate

// Config holds the hyperparameters of all runs of an experiment.
type Config struct {
	Epochs       int
	Hidden       int
	EmbeddingDim int
	LearningRate float64
	WeightDecay  float64

	// Repetitions of each experiment; repetition r uses seed Seed+r.
	Repetitions int
	Seed        uint64

	Transfer transfer.Options

	// ProgressBar attaches a progress bar to every training loop.
	ProgressBar bool
}

// DefaultConfig returns the default hyperparameters.
func DefaultConfig() Config {
	return Config{
		Epochs:       51,
		Hidden:       16,
		EmbeddingDim: 63,
		LearningRate: 0.01,
		WeightDecay:  0.0005,
		Repetitions:  1,
		Seed:         1,
		Transfer:     transfer.Options{TransferWeights: true, TransferEmbeddings: true},
	}
}

// DefaultContextParams returns the default hyperparameters as context parameters, to be set with
// context.Context.SetParams.
func DefaultContextParams() map[string]any {
	cfg := DefaultConfig()
	return map[string]any{
		ParamEpochs:             cfg.Epochs,
		ParamHidden:             cfg.Hidden,
		ParamEmbeddingDim:       cfg.EmbeddingDim,
		ParamLearningRate:       cfg.LearningRate,
		ParamWeightDecay:        cfg.WeightDecay,
		ParamRepetitions:        cfg.Repetitions,
		ParamSeed:               int(cfg.Seed),
		ParamTransferWeights:    cfg.Transfer.TransferWeights,
		ParamTransferEmbeddings: cfg.Transfer.TransferEmbeddings,
		ParamFreezeWeights:      cfg.Transfer.FreezeWeights,
		ParamFreezeEmbeddings:   cfg.Transfer.FreezeEmbeddings,
		ParamProgressBar:        false,
	}
}

// ConfigFromContext reads the hyperparameters from the context parameters, using the defaults
// for those not set.
func ConfigFromContext(ctx *context.Context) (Config, error) {
	def := DefaultConfig()
	cfg := Config{
		Epochs:       context.GetParamOr(ctx, ParamEpochs, def.Epochs),
		Hidden:       context.GetParamOr(ctx, ParamHidden, def.Hidden),
		EmbeddingDim: context.GetParamOr(ctx, ParamEmbeddingDim, def.EmbeddingDim),
		LearningRate: context.GetParamOr(ctx, ParamLearningRate, def.LearningRate),
		WeightDecay:  context.GetParamOr(ctx, ParamWeightDecay, def.WeightDecay),
		Repetitions:  context.GetParamOr(ctx, ParamRepetitions, def.Repetitions),
		Seed:         uint64(context.GetParamOr(ctx, ParamSeed, int(def.Seed))),
		Transfer: transfer.Options{
			TransferWeights:    context.GetParamOr(ctx, ParamTransferWeights, def.Transfer.TransferWeights),
			TransferEmbeddings: context.GetParamOr(ctx, ParamTransferEmbeddings, def.Transfer.TransferEmbeddings),
			FreezeWeights:      context.GetParamOr(ctx, ParamFreezeWeights, def.Transfer.FreezeWeights),
			FreezeEmbeddings:   context.GetParamOr(ctx, ParamFreezeEmbeddings, def.Transfer.FreezeEmbeddings),
		},
		ProgressBar: context.GetParamOr(ctx, ParamProgressBar, false),
	}
	return cfg, cfg.Validate()
}

// Validate the configuration.
func (c Config) Validate() error {
	switch {
	case c.Epochs <= 0:
		return errors.Errorf("%s must be > 0, got %d", ParamEpochs, c.Epochs)
	case c.Hidden <= 0:
		return errors.Errorf("%s must be > 0, got %d", ParamHidden, c.Hidden)
	case c.EmbeddingDim <= 0:
		return errors.Errorf("%s must be > 0, got %d", ParamEmbeddingDim, c.EmbeddingDim)
	case c.LearningRate <= 0:
		return errors.Errorf("%s must be > 0, got %g", ParamLearningRate, c.LearningRate)
	case c.WeightDecay < 0:
		return errors.Errorf("%s must be >= 0, got %g", ParamWeightDecay, c.WeightDecay)
	case c.Repetitions <= 0:
		return errors.Errorf("%s must be > 0, got %d", ParamRepetitions, c.Repetitions)
	}
	return nil
}
