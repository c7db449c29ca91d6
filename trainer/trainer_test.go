// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package trainer

import (
	"fmt"
	"math"
	"testing"

	"github.com/gomlx/gomlx/backends"
	_ "github.com/gomlx/gomlx/backends/simplego"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/train/optimizers"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/gomlx/rgcnsum/dataset"
	"github.com/gomlx/rgcnsum/labels"
	"github.com/gomlx/rgcnsum/mapping"
	"github.com/gomlx/rgcnsum/rdf"
	"github.com/gomlx/rgcnsum/rgcn"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccuracy(t *testing.T) {
	vectors := []labels.Vector{{1, 0}, {1, 1}, {0, 0}}
	logits := []float32{
		2, 5, // 1 of 1 positive right.
		-1, 0.5, // 1 of 2.
		3, 3, // no positives.
	}
	assert.InDelta(t, 2.0/3.0, Accuracy(logits, 2, vectors), 1e-9)
	assert.Equal(t, 0.0, Accuracy([]float32{1}, 1, []labels.Vector{{0}}))
}

func TestStateMachine(t *testing.T) {
	sm := NewStateMachine(false)
	require.ErrorIs(t, sm.Advance(TrainOriginal), ErrInvalidTransition)
	for _, s := range []State{TrainSummary, Transfer, TrainOriginal, Evaluate, Done} {
		require.NoError(t, sm.Advance(s))
	}
	assert.Equal(t, Done, sm.State())
	require.ErrorIs(t, sm.Advance(Init), ErrInvalidTransition)
	assert.Equal(t, []State{Init, TrainSummary, Transfer, TrainOriginal, Evaluate, Done}, sm.History())

	baseline := NewStateMachine(true)
	require.ErrorIs(t, baseline.Advance(TrainSummary), ErrInvalidTransition)
	require.NoError(t, baseline.Advance(TrainOriginal))
	require.ErrorIs(t, baseline.Advance(Transfer), ErrInvalidTransition)
	require.NoError(t, baseline.Advance(Evaluate))
	require.NoError(t, baseline.Advance(Done))
	assert.Equal(t, []State{Init, TrainOriginal, Evaluate, Done}, baseline.History())
	assert.Equal(t, "Unknown", State(17).String())
}

func TestExperiments(t *testing.T) {
	assert.Equal(t, []string{"rgcn", "sum", "mlp", "attention", "baseline"}, ExperimentNames())
	exp, err := ExperimentByName("attention")
	require.NoError(t, err)
	assert.Equal(t, rgcn.Attention, exp.Combination)
	_, err = ExperimentByName("rgcn2")
	require.Error(t, err)
}

func TestConfig(t *testing.T) {
	ctx := context.New()
	cfg, err := ConfigFromContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	ctx.SetParams(DefaultContextParams())
	ctx.SetParams(map[string]any{ParamEpochs: 7, ParamFreezeEmbeddings: true, ParamSeed: 3})
	cfg, err = ConfigFromContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Epochs)
	assert.Equal(t, uint64(3), cfg.Seed)
	assert.True(t, cfg.Transfer.FreezeEmbeddings)
	assert.True(t, cfg.Transfer.TransferWeights)

	// The learning rate is shared with the optimizer's parameter.
	assert.Equal(t, optimizers.ParamLearningRate, ParamLearningRate)
	ctx.SetParam(optimizers.ParamLearningRate, 0.05)
	cfg, err = ConfigFromContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0.05, cfg.LearningRate)

	ctx.SetParam(ParamHidden, 0)
	_, err = ConfigFromContext(ctx)
	require.Error(t, err)
}

// testDataset builds a dataset with 10 labeled nodes in a ring and two summaries of 2 nodes.
func testDataset(t *testing.T) *dataset.Dataset {
	names := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"}
	var triples []rdf.Triple
	org2type := make(map[string]labels.Vector)
	for ii, name := range names {
		node := fmt.Sprintf("<%s>", name)
		next := fmt.Sprintf("<%s>", names[(ii+1)%len(names)])
		triples = append(triples, rdf.Triple{Subject: node, Predicate: "<p>", Object: next})
		if ii%3 == 0 {
			triples = append(triples, rdf.Triple{Subject: next, Predicate: "<q>", Object: node})
		}
		if ii < 5 {
			org2type[node] = labels.Vector{1, 0}
		} else {
			org2type[node] = labels.Vector{0, 1}
		}
	}
	original := must.M1(rdf.BuildGraph(triples, nil))

	newSummary := func(name string, group func(ii int) int) *dataset.GraphDataset {
		m := mapping.New()
		for ii, node := range names {
			must.M(m.Add(fmt.Sprintf("<s%d>", group(ii)), fmt.Sprintf("<%s>", node)))
		}
		g := must.M1(rdf.BuildGraph([]rdf.Triple{
			{Subject: "<s0>", Predicate: "<p>", Object: "<s1>"},
			{Subject: "<s1>", Predicate: "<p>", Object: "<s0>"},
			{Subject: "<s1>", Predicate: "<q>", Object: "<s0>"},
		}, original.Relations))
		return &dataset.GraphDataset{Name: name, Graph: g, Mapping: m}
	}
	summaries := []*dataset.GraphDataset{
		newSummary("sum_0", func(ii int) int { return ii / 5 }),
		newSummary("sum_1", func(ii int) int { return ii % 2 }),
	}
	ds, err := dataset.Build("TEST", dataset.Attribute, original, labels.NewClasses("<A>", "<B>"), org2type, summaries, 7)
	require.NoError(t, err)
	return ds
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Epochs = 3
	cfg.Hidden = 4
	cfg.EmbeddingDim = 6
	cfg.Repetitions = 2
	return cfg
}

func TestRun(t *testing.T) {
	backend := backends.MustNew()
	ds := testDataset(t)
	cfg := testConfig()
	tr, err := New(backend, cfg)
	require.NoError(t, err)

	for _, exp := range Experiments {
		t.Run(exp.Name, func(t *testing.T) {
			results, err := tr.Run(ds, exp)
			require.NoError(t, err)
			expectedRuns := cfg.Repetitions
			if exp.PerSummary {
				expectedRuns *= len(ds.Summaries)
			}
			require.Len(t, results, expectedRuns)
			for _, r := range results {
				assert.Equal(t, exp.Name, r.Experiment)
				assert.Len(t, r.Loss, cfg.Epochs)
				assert.Len(t, r.Accuracy, cfg.Epochs)
				for _, acc := range append(r.Accuracy, r.TestAccuracy) {
					assert.GreaterOrEqual(t, acc, 0.0)
					assert.LessOrEqual(t, acc, 1.0)
				}
				assert.Positive(t, r.NumParameters)
				assert.Equal(t, Done, r.States[len(r.States)-1])
				if exp.Baseline {
					assert.Equal(t, []State{Init, TrainOriginal, Evaluate, Done}, r.States)
					assert.Empty(t, r.SummaryLoss)
					assert.Zero(t, r.Transfer.TensorsCopied)
					assert.Equal(t, OriginalSeries, r.Series)
				} else {
					assert.Len(t, r.States, 6)
					assert.Positive(t, r.Transfer.RowsCopied)
					for _, loss := range r.SummaryLoss {
						assert.Len(t, loss, cfg.Epochs)
					}
				}
			}
			if exp.PerSummary {
				assert.Equal(t, "sum_0", results[0].Series)
				assert.Equal(t, "sum_1", results[1].Series)
			}
			assert.Equal(t, cfg.Seed+1, results[len(results)-1].Seed)
		})
	}

	// Runs work on copies.
	assert.Equal(t, 2, ds.Summaries[0].Graph.NumNodes())
	assert.Equal(t, 6, ds.Original.Train.Len())
}

func TestBinaryCrossEntropy(t *testing.T) {
	assert.InDelta(t, math.Log(2), BinaryCrossEntropy([]float32{0, 0}, []float32{1, 0}), 1e-9)
	// -log(sigmoid(2)) and -log(1-sigmoid(-3)).
	expected := (math.Log1p(math.Exp(-2)) + math.Log1p(math.Exp(-3))) / 2
	assert.InDelta(t, expected, BinaryCrossEntropy([]float32{2, -3}, []float32{1, 0}), 1e-6)
	assert.Zero(t, BinaryCrossEntropy(nil, nil))
}

func TestTrainModelFrozen(t *testing.T) {
	backend := backends.MustNew()
	ds := testDataset(t)
	cfg := testConfig()
	tr, err := New(backend, cfg)
	require.NoError(t, err)
	flat := tensors.CopyFlatData[float32]

	// Frozen embeddings, trained weights.
	dims := rgcn.Dims{NumNodes: ds.Original.Graph.NumNodes(), NumRelations: ds.NumRelations(), Hidden: 4, NumClasses: 2,
		EmbeddingDim: 6, NumEmbeddings: 1}
	params, err := rgcn.NewParams(dims, 1)
	require.NoError(t, err)
	out, err := tr.trainModel(ds.Original, &rgcn.Model{Dims: dims}, params, false, true, 1)
	require.NoError(t, err)
	assert.Equal(t, flat(params.Embeddings[0]), flat(out.params.Embeddings[0]))
	assert.NotEqual(t, flat(params.Layer1.Weight), flat(out.params.Layer1.Weight))

	// Featureless with frozen weights: nothing to train.
	dims = rgcn.Dims{NumNodes: ds.Original.Graph.NumNodes(), NumRelations: ds.NumRelations(), Hidden: 4, NumClasses: 2}
	params, err = rgcn.NewParams(dims, 1)
	require.NoError(t, err)
	model := &rgcn.Model{Dims: dims}
	assert.True(t, allFrozen(model, true, false))
	out, err = tr.trainModel(ds.Original, model, params, true, false, 1)
	require.NoError(t, err)
	assert.Equal(t, flat(params.Layer1.Weight), flat(out.params.Layer1.Weight))
	require.Len(t, out.loss, cfg.Epochs)
	require.Len(t, out.accuracy, cfg.Epochs)
	assert.Equal(t, out.loss[0], out.loss[cfg.Epochs-1])

	assert.False(t, allFrozen(&rgcn.Model{Dims: dims}, false, true))
	assert.False(t, allFrozen(&rgcn.Model{Dims: rgcn.Dims{EmbeddingDim: 6, NumEmbeddings: 2}, Combination: rgcn.Attention}, true, true))
}
