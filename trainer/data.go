// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package trainer

import (
	"math"

	"github.com/gomlx/gomlx/types/tensors"
	"github.com/gomlx/rgcnsum/dataset"
	"github.com/gomlx/rgcnsum/labels"
	"github.com/gomlx/rgcnsum/rgcn"
	"github.com/pkg/errors"
)

// graphData holds on host the edge inputs and one split of a GraphDataset, and yields
// them as tensors.
type graphData struct {
	numEdges   int
	srcRel     []int32
	dst        []int32
	norm       []float32
	indices    []int32
	labels     []float32
	vectors    []labels.Vector
	numClasses int
}

func newGraphData(gi *rgcn.GraphInputs, split dataset.Split, numClasses int) (*graphData, error) {
	if split.Len() == 0 {
		return nil, errors.New("empty split")
	}
	gd := &graphData{
		numEdges:   gi.NumEdges,
		srcRel:     tensors.CopyFlatData[int32](gi.SrcRel),
		dst:        tensors.CopyFlatData[int32](gi.Dst),
		norm:       tensors.CopyFlatData[float32](gi.Norm),
		indices:    append([]int32(nil), split.Indices...),
		numClasses: numClasses,
	}
	gd.vectors = make([]labels.Vector, len(split.Labels))
	gd.labels = make([]float32, 0, len(split.Labels)*numClasses)
	for ii, vec := range split.Labels {
		if len(vec) != numClasses {
			return nil, errors.Errorf("label vector #%d has %d classes, expected %d", ii, len(vec), numClasses)
		}
		gd.vectors[ii] = vec.Clone()
		gd.labels = append(gd.labels, vec...)
	}
	return gd, nil
}

// inputs returns fresh tensors srcRel, dst, norm and indices, in the order rgcn.Model.ModelGraph
// takes them.
func (gd *graphData) inputs() []*tensors.Tensor {
	return []*tensors.Tensor{
		tensors.FromFlatDataAndDimensions(gd.srcRel, gd.numEdges, 1),
		tensors.FromFlatDataAndDimensions(gd.dst, gd.numEdges, 1),
		tensors.FromFlatDataAndDimensions(gd.norm, gd.numEdges, 1),
		rgcn.IndicesTensor(gd.indices),
	}
}

// labelsTensor returns a fresh [numIndices, numClasses] tensor with the multi-hot labels.
func (gd *graphData) labelsTensor() *tensors.Tensor {
	return tensors.FromFlatDataAndDimensions(gd.labels, len(gd.indices), gd.numClasses)
}

// fullGraphDataset implements train.Dataset: every Yield is the whole graph with the
// indices and labels of one split, so one training step is one epoch.
type fullGraphDataset struct {
	name string
	data *graphData
}

// Name implements train.Dataset.
func (ds *fullGraphDataset) Name() string { return ds.name }

// Reset implements train.Dataset. The dataset never ends, so there is nothing to reset.
func (ds *fullGraphDataset) Reset() {}

// Yield implements train.Dataset.
func (ds *fullGraphDataset) Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error) {
	return ds.name, ds.data.inputs(), []*tensors.Tensor{ds.data.labelsTensor()}, nil
}

// Accuracy is the fraction of positive labels whose logit is positive (sigmoid > 0.5).
// logits is the flat [len(vectors), numClasses] output of the model. It returns 0 if there
// are no positive labels.
func Accuracy(logits []float32, numClasses int, vectors []labels.Vector) float64 {
	var positives, correct int
	for ii, vec := range vectors {
		for c, value := range vec {
			if value <= 0 {
				continue
			}
			positives++
			if logits[ii*numClasses+c] > 0 {
				correct++
			}
		}
	}
	if positives == 0 {
		return 0
	}
	return float64(correct) / float64(positives)
}

// BinaryCrossEntropy is the mean binary cross-entropy of the logits against the multi-hot
// labels, with the same numerically stable formulation as losses.BinaryCrossentropyLogits.
func BinaryCrossEntropy(logits, labels []float32) float64 {
	if len(logits) == 0 {
		return 0
	}
	var total float64
	for ii, logit := range logits {
		x, y := float64(logit), float64(labels[ii])
		total += math.Max(x, 0) - x*y + math.Log1p(math.Exp(-math.Abs(x)))
	}
	return total / float64(len(logits))
}
