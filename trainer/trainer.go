// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package trainer runs the experiments: it trains models on the summary graphs of a dataset,
// transfers their parameters to a model of the original graph, trains that model and
// evaluates it.
package trainer

import (
	"time"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/backends"
	. "github.com/gomlx/gomlx/graph" //nolint
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/train"
	"github.com/gomlx/gomlx/ml/train/losses"
	"github.com/gomlx/gomlx/ml/train/optimizers"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/gomlx/gomlx/ui/commandline"
	"github.com/gomlx/rgcnsum/dataset"
	"github.com/gomlx/rgcnsum/rgcn"
	"github.com/gomlx/rgcnsum/transfer"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// OriginalSeries is the series name of runs that don't train on a single summary graph.
const OriginalSeries = "original"

// Trainer runs experiments with one configuration on one backend.
type Trainer struct {
	backend backends.Backend
	cfg     Config
}

// New creates a Trainer.
func New(backend backends.Backend, cfg Config) (*Trainer, error) {
	if backend == nil {
		return nil, errors.New("trainer.New: nil backend")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Trainer{backend: backend, cfg: cfg}, nil
}

// Config returns the configuration of the trainer.
func (t *Trainer) Config() Config { return t.cfg }

// RunResult holds the metrics of one pass of an experiment.
type RunResult struct {
	Experiment string
	// Series is the summary graph trained on for per-summary experiments, OriginalSeries otherwise.
	Series     string
	Repetition int
	Seed       uint64

	// SummaryLoss holds the per epoch training loss of each summary model.
	SummaryLoss [][]float64

	// Loss and Accuracy (on the validation split) of the original model, per epoch.
	Loss     []float64
	Accuracy []float64

	TestAccuracy  float64
	NumParameters int
	Transfer      transfer.Stats
	States        []State
	Duration      time.Duration
}

// trained is the outcome of training one model.
type trained struct {
	params   *rgcn.Params
	loss     []float64
	accuracy []float64
	test     float64
}

// Run runs the experiment on ds, Config.Repetitions times. Every repetition works on its own
// deep copy of ds, with seed Config.Seed+repetition.
func (t *Trainer) Run(ds *dataset.Dataset, exp Experiment) ([]*RunResult, error) {
	if !exp.Baseline && len(ds.Summaries) == 0 {
		return nil, errors.Errorf("experiment %q needs summary graphs, dataset %s has none", exp.Name, ds.Name)
	}
	var results []*RunResult
	for rep := range t.cfg.Repetitions {
		seed := t.cfg.Seed + uint64(rep)
		repDS := ds.Clone()
		klog.Infof("Experiment %q on %s (%s): repetition %d/%d, seed %d",
			exp.Name, ds.Name, ds.Technique, rep+1, t.cfg.Repetitions, seed)
		if exp.PerSummary {
			for _, sum := range repDS.Summaries {
				result, err := t.runOnce(repDS, []*dataset.GraphDataset{sum}, exp, seed)
				if err != nil {
					return nil, errors.WithMessagef(err, "experiment %q, summary %s, repetition %d", exp.Name, sum.Name, rep)
				}
				result.Series = sum.Name
				result.Repetition = rep
				results = append(results, result)
			}
			continue
		}
		summaries := repDS.Summaries
		if exp.Baseline {
			summaries = nil
		}
		result, err := t.runOnce(repDS, summaries, exp, seed)
		if err != nil {
			return nil, errors.WithMessagef(err, "experiment %q, repetition %d", exp.Name, rep)
		}
		result.Series = OriginalSeries
		result.Repetition = rep
		results = append(results, result)
	}
	return results, nil
}

// runOnce trains a model per summary, transfers and trains the original model.
func (t *Trainer) runOnce(ds *dataset.Dataset, summaries []*dataset.GraphDataset, exp Experiment, seed uint64) (*RunResult, error) {
	start := time.Now()
	sm := NewStateMachine(exp.Baseline)
	result := &RunResult{Experiment: exp.Name, Seed: seed}
	numClasses := ds.NumClasses()

	var summaryParams []*rgcn.Params
	if !exp.Baseline {
		if err := sm.Advance(TrainSummary); err != nil {
			return nil, err
		}
		for ii, sum := range summaries {
			dims := t.dims(exp, sum.Graph.NumNodes(), ds.NumRelations(), numClasses, 1)
			model := &rgcn.Model{Dims: dims}
			params, err := rgcn.NewParams(dims, seed+uint64(ii)+1)
			if err != nil {
				return nil, err
			}
			out, err := t.trainModel(sum, model, params, false, false, seed)
			if err != nil {
				return nil, errors.WithMessagef(err, "training summary model on %s", sum.Name)
			}
			summaryParams = append(summaryParams, out.params)
			result.SummaryLoss = append(result.SummaryLoss, out.loss)
		}
	}

	numEmbeddings := len(summaries)
	if exp.Featureless || numEmbeddings == 0 {
		numEmbeddings = 1
	}
	dims := t.dims(exp, ds.Original.Graph.NumNodes(), ds.NumRelations(), numClasses, numEmbeddings)
	combination := exp.Combination
	if exp.Featureless || exp.Baseline {
		combination = rgcn.NoCombination
	}
	if err := combination.ValidateDims(dims); err != nil {
		return nil, err
	}
	params, err := rgcn.NewParams(dims, seed)
	if err != nil {
		return nil, err
	}

	var freezeWeights, freezeEmbeddings bool
	if !exp.Baseline {
		if err := sm.Advance(Transfer); err != nil {
			return nil, err
		}
		stats, err := t.transfer(ds, summaries, summaryParams, params, exp)
		if err != nil {
			return nil, err
		}
		result.Transfer = stats
		freezeWeights, freezeEmbeddings = t.cfg.Transfer.Frozen()
	}

	if err := sm.Advance(TrainOriginal); err != nil {
		return nil, err
	}
	out, err := t.trainModel(ds.Original, &rgcn.Model{Dims: dims, Combination: combination},
		params, freezeWeights, freezeEmbeddings, seed)
	if err != nil {
		return nil, errors.WithMessage(err, "training original model")
	}
	if err := sm.Advance(Evaluate); err != nil {
		return nil, err
	}
	result.Loss, result.Accuracy, result.TestAccuracy = out.loss, out.accuracy, out.test
	result.NumParameters = out.params.NumParameters()
	if err := sm.Advance(Done); err != nil {
		return nil, err
	}
	result.States = sm.History()
	result.Duration = time.Since(start)
	klog.Infof("Experiment %q: test accuracy %.4f (%d parameters, %s)",
		exp.Name, result.TestAccuracy, result.NumParameters, result.Duration.Round(time.Millisecond))
	return result, nil
}

// dims of a model of the experiment over a graph with numNodes nodes.
func (t *Trainer) dims(exp Experiment, numNodes, numRelations, numClasses, numEmbeddings int) rgcn.Dims {
	dims := rgcn.Dims{
		NumNodes:     numNodes,
		NumRelations: numRelations,
		Hidden:       t.cfg.Hidden,
		NumClasses:   numClasses,
	}
	if !exp.Featureless {
		dims.EmbeddingDim = t.cfg.EmbeddingDim
		dims.NumEmbeddings = numEmbeddings
	}
	return dims
}

// transfer the summary models parameters into params, the original model.
//
// Featureless experiments transfer the weights of their single summary model if
// Transfer.TransferWeights is set. Combination experiments transfer the embedding of every
// summary model into the embedding of the same index if Transfer.TransferEmbeddings is set, and
// the weights of the first summary model if Transfer.TransferWeights is set.
func (t *Trainer) transfer(ds *dataset.Dataset, summaries []*dataset.GraphDataset, summaryParams []*rgcn.Params,
	params *rgcn.Params, exp Experiment) (transfer.Stats, error) {
	var total transfer.Stats
	opts := t.cfg.Transfer
	for ii, sum := range summaries {
		pairs, unmapped := transfer.NodePairs(ds.Original.Graph, sum.Graph, sum.Mapping)
		klog.V(1).Infof("Transfer from %s: %d node pairs, %d original nodes unmapped", sum.Name, len(pairs), unmapped)
		var stats transfer.Stats
		if exp.Featureless {
			var err error
			stats, err = transfer.Transfer(summaryParams[ii], params, pairs, transfer.Options{TransferWeights: opts.TransferWeights})
			if err != nil {
				return total, errors.WithMessagef(err, "transfer from %s", sum.Name)
			}
		} else {
			if opts.TransferWeights && ii == 0 {
				weightStats, err := transfer.Transfer(summaryParams[ii], params, pairs, transfer.Options{TransferWeights: true})
				if err != nil {
					return total, errors.WithMessagef(err, "transfer weights from %s", sum.Name)
				}
				stats.TensorsCopied += weightStats.TensorsCopied
				stats.RowsCopied += weightStats.RowsCopied
			}
			if opts.TransferEmbeddings {
				embStats, err := transfer.TransferEmbedding(summaryParams[ii].Embeddings[0], params, ii, pairs)
				if err != nil {
					return total, errors.WithMessagef(err, "transfer embedding from %s", sum.Name)
				}
				stats.TensorsCopied += embStats.TensorsCopied
				stats.RowsCopied += embStats.RowsCopied
			}
		}
		total.TensorsCopied += stats.TensorsCopied
		total.RowsCopied += stats.RowsCopied
	}
	return total, nil
}

// trainModel trains a model initialized with params on the train split of gd, one full-graph
// step per epoch. If gd has a validation split, the accuracy on it is measured after every
// epoch, and the test split accuracy at the end.
func (t *Trainer) trainModel(gd *dataset.GraphDataset, model *rgcn.Model, params *rgcn.Params,
	freezeWeights, freezeEmbeddings bool, seed uint64) (out *trained, err error) {
	if err := model.Combination.ValidateDims(model.Dims); err != nil {
		return nil, err
	}
	gi, err := rgcn.NewGraphInputs(gd.Graph)
	if err != nil {
		return nil, errors.WithMessagef(err, "graph %s", gd.Name)
	}
	numClasses := model.Dims.NumClasses
	trainData, err := newGraphData(gi, gd.Train, numClasses)
	if err != nil {
		return nil, errors.WithMessagef(err, "train split of %s", gd.Name)
	}
	var valData, testData *graphData
	if gd.Val.Len() > 0 {
		if valData, err = newGraphData(gi, gd.Val, numClasses); err != nil {
			return nil, errors.WithMessagef(err, "validation split of %s", gd.Name)
		}
	}
	if gd.Test.Len() > 0 {
		if testData, err = newGraphData(gi, gd.Test, numClasses); err != nil {
			return nil, errors.WithMessagef(err, "test split of %s", gd.Name)
		}
	}

	ctx := context.New()
	ctx.RngStateFromSeed(int64(seed))
	if err := params.Install(ctx, freezeWeights, freezeEmbeddings); err != nil {
		return nil, err
	}

	out = &trained{}
	if allFrozen(model, freezeWeights, freezeEmbeddings) {
		klog.Warningf("%s: all parameters are frozen, evaluating without training", gd.Name)
		if err := t.evaluateFrozen(ctx, model, trainData, valData, testData, out); err != nil {
			return nil, errors.WithMessagef(err, "evaluating on %s", gd.Name)
		}
		out.params = params.Clone()
		return out, nil
	}
	err = exceptions.TryCatch[error](func() {
		tr := train.NewTrainer(t.backend, ctx, model.ModelGraph,
			losses.BinaryCrossentropyLogits,
			optimizers.Adam().LearningRate(t.cfg.LearningRate).WeightDecay(t.cfg.WeightDecay).Done(),
			nil, nil)
		loop := train.NewLoop(tr)
		if t.cfg.ProgressBar {
			commandline.AttachProgressBar(loop)
		}
		lossIdx := 0
		for ii, metric := range tr.TrainMetrics() {
			if metric.Name() == "Batch Loss" {
				lossIdx = ii
				break
			}
		}
		eval := newEvaluator(t.backend, ctx, model)
		loop.OnStep("rgcn_epoch_metrics", 0, func(_ *train.Loop, metrics []*tensors.Tensor) error {
			out.loss = append(out.loss, float64(tensors.ToScalar[float32](metrics[lossIdx])))
			if valData == nil {
				return nil
			}
			acc, err := eval.accuracy(valData)
			if err != nil {
				return err
			}
			out.accuracy = append(out.accuracy, acc)
			return nil
		})
		ds := &fullGraphDataset{name: gd.Name, data: trainData}
		if _, err := loop.RunSteps(ds, t.cfg.Epochs); err != nil {
			panic(err)
		}
		if testData != nil {
			acc, err := eval.accuracy(testData)
			if err != nil {
				panic(err)
			}
			out.test = acc
		}
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "training on %s", gd.Name)
	}
	if out.params, err = rgcn.FromContext(ctx, model.Dims); err != nil {
		return nil, err
	}
	if len(out.loss) > 0 {
		klog.V(1).Infof("%s: final training loss %.4f after %d epochs", gd.Name, out.loss[len(out.loss)-1], len(out.loss))
	}
	return out, nil
}

// allFrozen returns whether the model has no trainable variable. Concat and Attention combinations
// always train their own layers.
func allFrozen(model *rgcn.Model, freezeWeights, freezeEmbeddings bool) bool {
	if !freezeWeights {
		return false
	}
	if model.Dims.Featureless() {
		return true
	}
	return freezeEmbeddings && (model.Combination == rgcn.NoCombination || model.Combination == rgcn.Sum)
}

// evaluateFrozen fills out as training a model that can't change would: the same loss and
// validation accuracy for every epoch.
func (t *Trainer) evaluateFrozen(ctx *context.Context, model *rgcn.Model, trainData, valData, testData *graphData, out *trained) error {
	eval := newEvaluator(t.backend, ctx, model)
	logits, err := eval.logits(trainData)
	if err != nil {
		return err
	}
	loss := BinaryCrossEntropy(logits, trainData.labels)
	var valAcc float64
	if valData != nil {
		if valAcc, err = eval.accuracy(valData); err != nil {
			return err
		}
	}
	for range t.cfg.Epochs {
		out.loss = append(out.loss, loss)
		if valData != nil {
			out.accuracy = append(out.accuracy, valAcc)
		}
	}
	if testData != nil {
		if out.test, err = eval.accuracy(testData); err != nil {
			return err
		}
	}
	return nil
}

// evaluator computes the logits of the nodes of a split with the current variables of a context.
type evaluator struct {
	exec *context.Exec
}

func newEvaluator(backend backends.Backend, ctx *context.Context, model *rgcn.Model) *evaluator {
	exec := context.NewExec(backend, ctx.Reuse(), func(ctx *context.Context, srcRel, dst, norm, indices *Node) *Node {
		return model.ModelGraph(ctx, nil, []*Node{srcRel, dst, norm, indices})[0]
	})
	return &evaluator{exec: exec}
}

func (e *evaluator) logits(gd *graphData) (logits []float32, err error) {
	err = exceptions.TryCatch[error](func() {
		inputs := gd.inputs()
		logits = tensors.CopyFlatData[float32](e.exec.Call(inputs[0], inputs[1], inputs[2], inputs[3])[0])
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "evaluating %d nodes", len(gd.indices))
	}
	return logits, nil
}

func (e *evaluator) accuracy(gd *graphData) (float64, error) {
	logits, err := e.logits(gd)
	if err != nil {
		return 0, err
	}
	return Accuracy(logits, gd.numClasses, gd.vectors), nil
}
