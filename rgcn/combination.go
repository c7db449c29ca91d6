// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package rgcn

import (
	"math"

	"github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/graph" //nolint
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/layers"
	"github.com/pkg/errors"
)

// Combination is how the node embeddings transferred from several summary graphs are merged
// into the input of the first layer.
type Combination int

const (
	// NoCombination is used by models with a single embedding.
	NoCombination Combination = iota

	// Sum adds the embeddings.
	Sum

	// Concat concatenates the embeddings and projects them back to the embedding
	// dimension with a two-layer perceptron (tanh hidden activation).
	Concat

	// Attention runs multi-head self-attention over the stacked embeddings of each node, with one
	// head per embedding, and uses the output at the first position.
	Attention
)

var combinationNames = map[Combination]string{
	NoCombination: "none",
	Sum:           "sum",
	Concat:        "concat",
	Attention:     "attention",
}

func (c Combination) String() string {
	if name, found := combinationNames[c]; found {
		return name
	}
	return "unknown"
}

// ParseCombination is the inverse of Combination.String.
func ParseCombination(name string) (Combination, error) {
	for c, cName := range combinationNames {
		if cName == name {
			return c, nil
		}
	}
	return NoCombination, errors.Errorf("unknown embedding combination %q", name)
}

// ValidateDims checks that the combination can be applied to embeddings of the given dimensions.
func (c Combination) ValidateDims(dims Dims) error {
	switch c {
	case NoCombination:
		if dims.NumEmbeddings > 1 {
			return errors.Errorf("%d embeddings need a combination", dims.NumEmbeddings)
		}
	case Sum, Concat:
	case Attention:
		if dims.NumEmbeddings == 0 || dims.EmbeddingDim%dims.NumEmbeddings != 0 {
			return errors.Errorf("embedding dimension %d must be divisible by the number of embeddings (%d, the attention heads)",
				dims.EmbeddingDim, dims.NumEmbeddings)
		}
	default:
		return errors.Errorf("unknown embedding combination %d", int(c))
	}
	if c != NoCombination && dims.Featureless() {
		return errors.Errorf("combination %s requires an embedding model", c)
	}
	return nil
}

// ConcatHiddenDim is the hidden dimension of the Concat perceptron.
func ConcatHiddenDim(numEmbeddings, embeddingDim, numClasses int) int {
	return int(math.Round(float64(numEmbeddings*embeddingDim)*2.0/3.0)) + numClasses
}

// Combine merges embeddings, each shaped [numNodes, embeddingDim], into one [numNodes, embeddingDim] node.
// Concat and Attention create their variables under ctx.
func (c Combination) Combine(ctx *context.Context, embeddings []*Node, numClasses int) *Node {
	if len(embeddings) == 0 {
		exceptions.Panicf("Combine(%s): no embeddings given", c)
	}
	embDim := embeddings[0].Shape().Dimensions[1]
	switch c {
	case NoCombination:
		if len(embeddings) != 1 {
			exceptions.Panicf("Combine(%s): %d embeddings given, expected 1", c, len(embeddings))
		}
		return embeddings[0]
	case Sum:
		x := embeddings[0]
		for _, emb := range embeddings[1:] {
			x = Add(x, emb)
		}
		return x
	case Concat:
		x := Concatenate(embeddings, -1)
		hiddenDim := ConcatHiddenDim(len(embeddings), embDim, numClasses)
		x = Tanh(layers.Dense(ctx.In("combine_hidden"), x, true, hiddenDim))
		return layers.Dense(ctx.In("combine_output"), x, true, embDim)
	case Attention:
		numHeads := len(embeddings)
		if embDim%numHeads != 0 {
			exceptions.Panicf("Combine(%s): embedding dimension %d not divisible by %d heads", c, embDim, numHeads)
		}
		// [numNodes, numEmbeddings, embDim]: attention runs over the embeddings of each node.
		x := Stack(embeddings, 1)
		x = layers.MultiHeadAttention(ctx.In("combine_attention"), x, x, x, numHeads, embDim/numHeads).Done()
		return firstPosition(x)
	default:
		exceptions.Panicf("unknown embedding combination %d", int(c))
	}
	return nil
}

// firstPosition selects x[:, 0, :] of a [numNodes, numEmbeddings, embDim] node with a one-hot
// mask, so its gradient only needs Mul and ReduceSum.
func firstPosition(x *Node) *Node {
	numPositions := x.Shape().Dimensions[1]
	mask := make([]float32, numPositions)
	mask[0] = 1
	maskNode := ConvertDType(Const(x.Graph(), mask), x.DType())
	maskNode = Reshape(maskNode, 1, numPositions, 1)
	maskNode = BroadcastToDims(maskNode, x.Shape().Dimensions...)
	return ReduceSum(Mul(x, maskNode), 1)
}
