// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package rgcn implements the two-layer relational graph convolutional network (RGCN) used for
// node classification, its parameter bundle, and the combination of node embeddings transferred
// from several summary graphs.
//
// Two model families share the layers:
//
//   - Featureless: the input is the one-hot node identity, so the first layer weight has one row
//     per node: Layer1.Weight is [NumRelations, NumNodes, Hidden] and Layer1.Root is [NumNodes, Hidden].
//   - Embedding: the input is one or more learned node embedding tables [NumNodes, EmbeddingDim],
//     merged by a Combination.
//
// Parameters live in a context.Context as variables (see Params.Install), so models are trained
// with the usual train.Trainer machinery.
package rgcn

import (
	"github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/graph" //nolint
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/layers/activations"
	"github.com/gomlx/gomlx/types/shapes"
)

// Model builds the computation graph of a RGCN with the given dimensions.
type Model struct {
	Dims        Dims
	Combination Combination
}

// variable returns the value of an installed model variable.
func variable(ctx *context.Context, g *Graph, scope, name string) *Node {
	v := ctx.GetVariableByScopeAndName(scope, name)
	if v == nil {
		exceptions.Panicf("model variable %s/%s not found, parameters must be installed first (Params.Install)", scope, name)
	}
	return v.ValueGraph(g)
}

// matMul of two rank-2 nodes.
func matMul(a, b *Node) *Node {
	return Einsum("ij,jk->ik", a, b)
}

// relationTable projects x [numNodes, in] with each relation weight w [numRelations, in, out],
// and returns the per-relation source table [numRelations*numNodes, out] indexed by
// relation*numNodes + node.
func relationTable(x, w *Node) *Node {
	numNodes := x.Shape().Dimensions[0]
	numRelations, in, out := w.Shape().Dimensions[0], w.Shape().Dimensions[1], w.Shape().Dimensions[2]
	wFlat := Reshape(Transpose(w, 0, 1), in, numRelations*out)
	y := Reshape(matMul(x, wFlat), numNodes, numRelations, out)
	y = Transpose(y, 0, 1)
	return Reshape(y, numRelations*numNodes, out)
}

// convolve aggregates the messages of the table rows selected by srcRel into their
// destination nodes, weighted by norm, and adds the self-connection and the bias.
func convolve(table, self, bias, srcRel, dst, norm *Node) *Node {
	g := table.Graph()
	numNodes, out := self.Shape().Dimensions[0], self.Shape().Dimensions[1]
	messages := Mul(Gather(table, srcRel), norm)
	aggregated := ScatterAdd(Zeros(g, shapes.Make(table.DType(), numNodes, out)), dst, messages, false, false)
	return Add(Add(aggregated, self), Reshape(bias, 1, out))
}

// Logits returns the per-node class logits, shaped [NumNodes, NumClasses], given the edge inputs
// (see GraphInputs).
func (m *Model) Logits(ctx *context.Context, srcRel, dst, norm *Node) *Node {
	g := srcRel.Graph()
	dims := m.Dims
	w1 := variable(ctx, g, Layer1Scope, WeightsName)
	root1 := variable(ctx, g, Layer1Scope, RootName)
	bias1 := variable(ctx, g, Layer1Scope, BiasName)

	var h *Node
	if dims.Featureless() {
		// One-hot input: the projections are the weight rows themselves.
		table := Reshape(w1, dims.NumRelations*dims.NumNodes, dims.Hidden)
		h = convolve(table, root1, bias1, srcRel, dst, norm)
	} else {
		embeddings := make([]*Node, dims.NumEmbeddings)
		for i := range embeddings {
			embeddings[i] = variable(ctx, g, EmbeddingsScope, EmbeddingName(i))
		}
		x := m.Combination.Combine(ctx, embeddings, dims.NumClasses)
		h = convolve(relationTable(x, w1), matMul(x, root1), bias1, srcRel, dst, norm)
	}
	h = activations.Relu(h)

	w2 := variable(ctx, g, Layer2Scope, WeightsName)
	root2 := variable(ctx, g, Layer2Scope, RootName)
	bias2 := variable(ctx, g, Layer2Scope, BiasName)
	return convolve(relationTable(h, w2), matMul(h, root2), bias2, srcRel, dst, norm)
}

// ModelGraph is a train.ModelFn: inputs are the GraphInputs tensors followed by the indices
// ([batch, 1]) of the nodes to classify. It returns their logits, shaped [batch, NumClasses].
func (m *Model) ModelGraph(ctx *context.Context, _ any, inputs []*Node) []*Node {
	if len(inputs) != 4 {
		exceptions.Panicf("rgcn model expects 4 inputs (srcRel, dst, norm, indices), got %d", len(inputs))
	}
	logits := m.Logits(ctx, inputs[0], inputs[1], inputs[2])
	return []*Node{Gather(logits, inputs[3])}
}
