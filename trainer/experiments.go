// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package trainer

import (
	"github.com/gomlx/rgcnsum/rgcn"
	"github.com/pkg/errors"
)

// Experiment describes how the summary and original models of a run are built.
type Experiment struct {
	Name string

	// Featureless models have one first-layer weight row per node and no embeddings.
	Featureless bool

	// Baseline runs train only the original model, from scratch.
	Baseline bool

	// PerSummary runs the experiment once per summary graph. Otherwise, one summary model is
	// trained per summary graph and all of them are combined in a single original model.
	PerSummary bool

	// Combination of the summary embeddings in the original model.
	Combination rgcn.Combination
}

// Experiments is the closed set of supported experiments.
var Experiments = []Experiment{
	{Name: "rgcn", Featureless: true, PerSummary: true},
	{Name: "sum", Combination: rgcn.Sum},
	{Name: "mlp", Combination: rgcn.Concat},
	{Name: "attention", Combination: rgcn.Attention},
	{Name: "baseline", Baseline: true},
}

// ExperimentNames returns the names of Experiments, in order.
func ExperimentNames() []string {
	names := make([]string, len(Experiments))
	for ii, exp := range Experiments {
		names[ii] = exp.Name
	}
	return names
}

// ExperimentByName returns the experiment with the given name.
func ExperimentByName(name string) (Experiment, error) {
	for _, exp := range Experiments {
		if exp.Name == name {
			return exp, nil
		}
	}
	return Experiment{}, errors.Errorf("unknown experiment %q, valid values are %q", name, ExperimentNames())
}
