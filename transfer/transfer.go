// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package transfer initializes the parameters of a model of the original graph from a model
// trained on one of its summary graphs.
//
// Per-node parameters (the first layer weights of featureless models and the node embeddings)
// are copied row by row through the node mapping: the row of each original node is
// overwritten with the row of its summary node. Original nodes without a summary counterpart
// keep their fresh initialization. Node-independent parameters are copied whole.
package transfer

import (
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/gomlx/rgcnsum/mapping"
	"github.com/gomlx/rgcnsum/rdf"
	"github.com/gomlx/rgcnsum/rgcn"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ErrShapeMismatch is returned when the source and destination parameters are not compatible.
var ErrShapeMismatch = errors.New("parameter shapes don't match")

// Options select what is transferred and what is frozen afterwards.
type Options struct {
	TransferWeights, TransferEmbeddings bool
	FreezeWeights, FreezeEmbeddings     bool
}

// Frozen returns which parameter groups to freeze when installing the transferred parameters.
// Only transferred parameters are frozen.
func (o Options) Frozen() (weights, embeddings bool) {
	return o.TransferWeights && o.FreezeWeights, o.TransferEmbeddings && o.FreezeEmbeddings
}

// Pair aligns the index of an original node with the index of its summary node.
type Pair struct {
	Org, Sum int32
}

// NodePairs returns a Pair for every node of org whose summary node (according to m) is
// enumerated in sum, in increasing order of the original index.
// The number of original nodes without such a counterpart is returned as unmapped.
func NodePairs(org, sum *rdf.Graph, m *mapping.Mapping) (pairs []Pair, unmapped int) {
	pairs = make([]Pair, 0, org.NumNodes())
	missingInSummary := 0
	for orgIdx, node := range org.Nodes {
		sumNode, found := m.OrgToSum(node)
		if !found {
			unmapped++
			continue
		}
		sumIdx, found := sum.Index[sumNode]
		if !found {
			unmapped++
			missingInSummary++
			continue
		}
		pairs = append(pairs, Pair{Org: int32(orgIdx), Sum: int32(sumIdx)})
	}
	if unmapped > 0 {
		klog.V(1).Infof("%d of %d original nodes have no summary node (%d mapped to a summary node without edges)",
			unmapped, org.NumNodes(), missingInSummary)
	}
	return
}

// Stats of a transfer.
type Stats struct {
	// Rows of per-node tensors overwritten.
	RowsCopied int

	// Tensors written into the destination.
	TensorsCopied int
}

// pending is a tensor to be written into the destination once everything was validated.
type pending struct {
	target **tensors.Tensor
	value  *tensors.Tensor
}

// Transfer copies the parameters selected by opts from src (a summary model) into dst (a freshly
// initialized model of the original graph).
//
// With TransferWeights, featureless models get their Layer1.Weight (along the node axis 1) and
// Layer1.Root (along axis 0) copied row by row through pairs; embedding models get their Layer1
// copied whole. Layer1.Bias and all of Layer2 are always copied whole.
// With TransferEmbeddings, each embedding of src is copied row by row into the embedding of dst
// with the same index.
//
// Shapes are validated first: on error, ErrShapeMismatch is returned and dst is untouched.
// Every tensor written into dst is a new tensor: dst and src share no storage afterwards.
func Transfer(src, dst *rgcn.Params, pairs []Pair, opts Options) (Stats, error) {
	var stats Stats
	var writes []pending
	if opts.TransferWeights {
		if err := compatibleWeights(src.Dims, dst.Dims); err != nil {
			return stats, err
		}
		if src.Dims.Featureless() {
			weight, err := copyRows(src.Layer1.Weight, dst.Layer1.Weight, 1, pairs)
			if err != nil {
				return stats, errors.WithMessage(err, "layer 1 weights")
			}
			root, err := copyRows(src.Layer1.Root, dst.Layer1.Root, 0, pairs)
			if err != nil {
				return stats, errors.WithMessage(err, "layer 1 root")
			}
			writes = append(writes, pending{&dst.Layer1.Weight, weight}, pending{&dst.Layer1.Root, root})
			stats.RowsCopied += 2 * len(pairs)
		} else {
			writes = append(writes,
				pending{&dst.Layer1.Weight, rgcn.CloneTensor(src.Layer1.Weight)},
				pending{&dst.Layer1.Root, rgcn.CloneTensor(src.Layer1.Root)})
		}
		writes = append(writes,
			pending{&dst.Layer1.Bias, rgcn.CloneTensor(src.Layer1.Bias)},
			pending{&dst.Layer2.Weight, rgcn.CloneTensor(src.Layer2.Weight)},
			pending{&dst.Layer2.Root, rgcn.CloneTensor(src.Layer2.Root)},
			pending{&dst.Layer2.Bias, rgcn.CloneTensor(src.Layer2.Bias)})
	}
	if opts.TransferEmbeddings {
		if len(src.Embeddings) != len(dst.Embeddings) {
			return stats, errors.Wrapf(ErrShapeMismatch, "source has %d embeddings, destination %d",
				len(src.Embeddings), len(dst.Embeddings))
		}
		for i := range src.Embeddings {
			emb, err := copyRows(src.Embeddings[i], dst.Embeddings[i], 0, pairs)
			if err != nil {
				return stats, errors.WithMessagef(err, "embedding #%d", i)
			}
			writes = append(writes, pending{&dst.Embeddings[i], emb})
			stats.RowsCopied += len(pairs)
		}
	}
	for _, w := range writes {
		*w.target = w.value
	}
	stats.TensorsCopied = len(writes)
	return stats, nil
}

// TransferEmbedding copies the rows of src (a summary model embedding) into the index-th
// embedding of dst, through pairs. Used when the original model combines the embeddings of
// several summary models.
func TransferEmbedding(src *tensors.Tensor, dst *rgcn.Params, index int, pairs []Pair) (Stats, error) {
	if index < 0 || index >= len(dst.Embeddings) {
		return Stats{}, errors.Wrapf(ErrShapeMismatch, "embedding #%d requested, destination has %d embeddings",
			index, len(dst.Embeddings))
	}
	emb, err := copyRows(src, dst.Embeddings[index], 0, pairs)
	if err != nil {
		return Stats{}, errors.WithMessagef(err, "embedding #%d", index)
	}
	dst.Embeddings[index] = emb
	return Stats{RowsCopied: len(pairs), TensorsCopied: 1}, nil
}

// compatibleWeights checks the dimensions the weights of both models must agree on.
func compatibleWeights(src, dst rgcn.Dims) error {
	switch {
	case src.NumRelations != dst.NumRelations:
		return errors.Wrapf(ErrShapeMismatch, "number of relations: %d in source, %d in destination", src.NumRelations, dst.NumRelations)
	case src.Hidden != dst.Hidden:
		return errors.Wrapf(ErrShapeMismatch, "hidden dimension: %d in source, %d in destination", src.Hidden, dst.Hidden)
	case src.NumClasses != dst.NumClasses:
		return errors.Wrapf(ErrShapeMismatch, "number of classes: %d in source, %d in destination", src.NumClasses, dst.NumClasses)
	case src.Featureless() != dst.Featureless():
		return errors.Wrapf(ErrShapeMismatch, "featureless source (%v) and destination (%v)", src.Featureless(), dst.Featureless())
	case src.EmbeddingDim != dst.EmbeddingDim:
		return errors.Wrapf(ErrShapeMismatch, "embedding dimension: %d in source, %d in destination", src.EmbeddingDim, dst.EmbeddingDim)
	}
	return nil
}

// copyRows returns a copy of dst where, for each pair, the slice at position pair.Org of the
// given axis is replaced by the slice at position pair.Sum of src.
// All other dimensions of src and dst must match.
func copyRows(src, dst *tensors.Tensor, axis int, pairs []Pair) (*tensors.Tensor, error) {
	srcDims, dstDims := src.Shape().Dimensions, dst.Shape().Dimensions
	if len(srcDims) != len(dstDims) || axis >= len(srcDims) {
		return nil, errors.Wrapf(ErrShapeMismatch, "source shape %s, destination shape %s", src.Shape(), dst.Shape())
	}
	outer, rowSize := 1, 1
	for ii := range srcDims {
		if ii == axis {
			continue
		}
		if srcDims[ii] != dstDims[ii] {
			return nil, errors.Wrapf(ErrShapeMismatch, "source shape %s, destination shape %s differ on axis %d",
				src.Shape(), dst.Shape(), ii)
		}
		if ii < axis {
			outer *= srcDims[ii]
		} else {
			rowSize *= srcDims[ii]
		}
	}
	srcRows, dstRows := srcDims[axis], dstDims[axis]
	for _, p := range pairs {
		if p.Sum < 0 || int(p.Sum) >= srcRows || p.Org < 0 || int(p.Org) >= dstRows {
			return nil, errors.Wrapf(ErrShapeMismatch, "pair %+v out of range for %d source and %d destination rows",
				p, srcRows, dstRows)
		}
	}

	srcData := tensors.CopyFlatData[float32](src)
	data := tensors.CopyFlatData[float32](dst)
	for o := range outer {
		for _, p := range pairs {
			from := (o*srcRows + int(p.Sum)) * rowSize
			to := (o*dstRows + int(p.Org)) * rowSize
			copy(data[to:to+rowSize], srcData[from:from+rowSize])
		}
	}
	return tensors.FromFlatDataAndDimensions(data, dstDims...), nil
}
