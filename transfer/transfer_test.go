// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package transfer

import (
	"testing"

	"github.com/gomlx/gomlx/types/tensors"
	"github.com/gomlx/rgcnsum/mapping"
	"github.com/gomlx/rgcnsum/rdf"
	"github.com/gomlx/rgcnsum/rgcn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flat(t *tensors.Tensor) []float32 { return tensors.CopyFlatData[float32](t) }

// rowsAxis1 returns the [numRelations][hidden] slices of node n of a [R, N, H] tensor.
func rowsAxis1(t *tensors.Tensor, n int) [][]float32 {
	dims := t.Shape().Dimensions
	data := flat(t)
	rows := make([][]float32, dims[0])
	for r := range dims[0] {
		start := (r*dims[1] + n) * dims[2]
		rows[r] = data[start : start+dims[2]]
	}
	return rows
}

func row(t *tensors.Tensor, n int) []float32 {
	cols := t.Shape().Dimensions[1]
	return flat(t)[n*cols : (n+1)*cols]
}

func TestNodePairs(t *testing.T) {
	org, err := rdf.BuildGraph([]rdf.Triple{
		{Subject: "<a>", Predicate: "<p>", Object: "<b>"},
		{Subject: "<c>", Predicate: "<p>", Object: "<d>"},
	}, nil)
	require.NoError(t, err)
	sum, err := rdf.BuildGraph([]rdf.Triple{{Subject: "<s>", Predicate: "<p>", Object: "<t>"}}, org.Relations)
	require.NoError(t, err)
	m := mapping.New()
	require.NoError(t, m.Add("<s>", "<a>"))
	require.NoError(t, m.Add("<t>", "<b>"))
	require.NoError(t, m.Add("<s>", "<c>"))
	require.NoError(t, m.Add("<no-edges>", "<d>"))

	pairs, unmapped := NodePairs(org, sum, m)
	assert.Equal(t, []Pair{{Org: 0, Sum: 0}, {Org: 1, Sum: 1}, {Org: 2, Sum: 0}}, pairs)
	assert.Equal(t, 1, unmapped)
}

func TestTransferFeatureless(t *testing.T) {
	srcDims := rgcn.Dims{NumNodes: 2, NumRelations: 3, Hidden: 4, NumClasses: 2}
	dstDims := srcDims
	dstDims.NumNodes = 5
	src, err := rgcn.NewParams(srcDims, 1)
	require.NoError(t, err)
	dst, err := rgcn.NewParams(dstDims, 2)
	require.NoError(t, err)
	fresh := dst.Clone()

	// Original nodes 0, 1, 3 map to summary nodes 0, 1, 1; nodes 2 and 4 are unmapped.
	pairs := []Pair{{Org: 0, Sum: 0}, {Org: 1, Sum: 1}, {Org: 3, Sum: 1}}
	stats, err := Transfer(src, dst, pairs, Options{TransferWeights: true})
	require.NoError(t, err)
	assert.Equal(t, 6, stats.TensorsCopied)
	require.NoError(t, dst.Validate())

	for _, p := range pairs {
		assert.Equal(t, rowsAxis1(src.Layer1.Weight, int(p.Sum)), rowsAxis1(dst.Layer1.Weight, int(p.Org)))
		assert.Equal(t, row(src.Layer1.Root, int(p.Sum)), row(dst.Layer1.Root, int(p.Org)))
	}
	for _, n := range []int{2, 4} {
		assert.Equal(t, rowsAxis1(fresh.Layer1.Weight, n), rowsAxis1(dst.Layer1.Weight, n))
		assert.Equal(t, row(fresh.Layer1.Root, n), row(dst.Layer1.Root, n))
	}
	assert.Equal(t, flat(src.Layer1.Bias), flat(dst.Layer1.Bias))
	assert.Equal(t, flat(src.Layer2.Weight), flat(dst.Layer2.Weight))
	assert.Equal(t, flat(src.Layer2.Root), flat(dst.Layer2.Root))
	assert.Equal(t, flat(src.Layer2.Bias), flat(dst.Layer2.Bias))

	// No aliasing: changing the destination leaves the source untouched.
	srcBefore := src.Clone()
	for _, tensor := range []*tensors.Tensor{dst.Layer1.Weight, dst.Layer1.Root, dst.Layer1.Bias,
		dst.Layer2.Weight, dst.Layer2.Root, dst.Layer2.Bias} {
		tensors.MutableFlatData[float32](tensor, func(data []float32) {
			for ii := range data {
				data[ii] = 42
			}
		})
	}
	assert.Equal(t, flat(srcBefore.Layer1.Weight), flat(src.Layer1.Weight))
	assert.Equal(t, flat(srcBefore.Layer1.Root), flat(src.Layer1.Root))
	assert.Equal(t, flat(srcBefore.Layer1.Bias), flat(src.Layer1.Bias))
	assert.Equal(t, flat(srcBefore.Layer2.Weight), flat(src.Layer2.Weight))
}

func TestTransferShapeMismatch(t *testing.T) {
	srcDims := rgcn.Dims{NumNodes: 2, NumRelations: 3, Hidden: 4, NumClasses: 2}
	src, err := rgcn.NewParams(srcDims, 1)
	require.NoError(t, err)
	pairs := []Pair{{Org: 0, Sum: 0}}

	for _, change := range []func(d *rgcn.Dims){
		func(d *rgcn.Dims) { d.Hidden = 5 },
		func(d *rgcn.Dims) { d.NumRelations = 2 },
		func(d *rgcn.Dims) { d.NumClasses = 3 },
	} {
		dstDims := srcDims
		dstDims.NumNodes = 4
		change(&dstDims)
		dst, err := rgcn.NewParams(dstDims, 2)
		require.NoError(t, err)
		before := dst.Clone()
		_, err = Transfer(src, dst, pairs, Options{TransferWeights: true})
		require.ErrorIs(t, err, ErrShapeMismatch)
		assert.Equal(t, flat(before.Layer1.Weight), flat(dst.Layer1.Weight))
		assert.Equal(t, flat(before.Layer1.Bias), flat(dst.Layer1.Bias))
		assert.Equal(t, flat(before.Layer2.Weight), flat(dst.Layer2.Weight))
	}

	// Pairs out of range.
	dst, err := rgcn.NewParams(srcDims, 2)
	require.NoError(t, err)
	_, err = Transfer(src, dst, []Pair{{Org: 7, Sum: 0}}, Options{TransferWeights: true})
	require.ErrorIs(t, err, ErrShapeMismatch)
}

func TestTransferEmbeddings(t *testing.T) {
	srcDims := rgcn.Dims{NumNodes: 2, NumRelations: 1, Hidden: 3, NumClasses: 2, EmbeddingDim: 4, NumEmbeddings: 1}
	dstDims := srcDims
	dstDims.NumNodes = 3
	src, err := rgcn.NewParams(srcDims, 1)
	require.NoError(t, err)
	dst, err := rgcn.NewParams(dstDims, 2)
	require.NoError(t, err)
	fresh := dst.Clone()

	pairs := []Pair{{Org: 0, Sum: 1}, {Org: 2, Sum: 1}}
	opts := Options{TransferWeights: true, TransferEmbeddings: true, FreezeEmbeddings: true}
	_, err = Transfer(src, dst, pairs, opts)
	require.NoError(t, err)
	assert.Equal(t, row(src.Embeddings[0], 1), row(dst.Embeddings[0], 0))
	assert.Equal(t, row(src.Embeddings[0], 1), row(dst.Embeddings[0], 2))
	assert.Equal(t, row(fresh.Embeddings[0], 1), row(dst.Embeddings[0], 1))
	// Embedding models copy the first layer whole.
	assert.Equal(t, flat(src.Layer1.Weight), flat(dst.Layer1.Weight))
	assert.Equal(t, flat(src.Layer1.Root), flat(dst.Layer1.Root))

	weights, embeddings := opts.Frozen()
	assert.False(t, weights)
	assert.True(t, embeddings)

	// One embedding per summary model.
	multiDims := dstDims
	multiDims.NumEmbeddings = 2
	multi, err := rgcn.NewParams(multiDims, 3)
	require.NoError(t, err)
	_, err = TransferEmbedding(src.Embeddings[0], multi, 1, []Pair{{Org: 1, Sum: 0}})
	require.NoError(t, err)
	assert.Equal(t, row(src.Embeddings[0], 0), row(multi.Embeddings[1], 1))
	_, err = TransferEmbedding(src.Embeddings[0], multi, 2, nil)
	require.ErrorIs(t, err, ErrShapeMismatch)

	// Mismatched embedding dimension.
	wrongDims := dstDims
	wrongDims.EmbeddingDim = 5
	wrong, err := rgcn.NewParams(wrongDims, 3)
	require.NoError(t, err)
	_, err = Transfer(src, wrong, pairs, Options{TransferEmbeddings: true})
	require.ErrorIs(t, err, ErrShapeMismatch)
}
