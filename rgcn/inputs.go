// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package rgcn

import (
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/gomlx/rgcnsum/rdf"
	"github.com/pkg/errors"
)

// GraphInputs are the edge tensors fed to the model, derived from an rdf.Graph.
//
// Messages flow from the subject (source) to the object (destination) of each triple, and
// are averaged per relation at the destination.
type GraphInputs struct {
	NumNodes, NumRelations, NumEdges int

	// SrcRel is the row of the per-relation source table: Type[e]*NumNodes + Src[e]. Shaped [NumEdges, 1].
	SrcRel *tensors.Tensor

	// Dst is the destination node of each edge, shaped [NumEdges, 1].
	Dst *tensors.Tensor

	// Norm is 1/|N_r(dst)|, the inverse of the number of incoming edges of the edge's relation
	// at its destination. Shaped [NumEdges, 1].
	Norm *tensors.Tensor
}

// NewGraphInputs converts the edges of g.
func NewGraphInputs(g *rdf.Graph) (*GraphInputs, error) {
	numNodes, numRelations, numEdges := g.NumNodes(), g.NumRelations(), g.NumEdges()
	if numEdges == 0 {
		return nil, errors.New("graph has no edges")
	}
	type relDst struct{ rel, dst int32 }
	inDegree := make(map[relDst]int, numEdges)
	for e := range numEdges {
		inDegree[relDst{g.Type[e], g.Dst[e]}]++
	}
	srcRel := make([]int32, numEdges)
	dst := make([]int32, numEdges)
	norm := make([]float32, numEdges)
	for e := range numEdges {
		srcRel[e] = g.Type[e]*int32(numNodes) + g.Src[e]
		dst[e] = g.Dst[e]
		norm[e] = 1 / float32(inDegree[relDst{g.Type[e], g.Dst[e]}])
	}
	return &GraphInputs{
		NumNodes:     numNodes,
		NumRelations: numRelations,
		NumEdges:     numEdges,
		SrcRel:       tensors.FromFlatDataAndDimensions(srcRel, numEdges, 1),
		Dst:          tensors.FromFlatDataAndDimensions(dst, numEdges, 1),
		Norm:         tensors.FromFlatDataAndDimensions(norm, numEdges, 1),
	}, nil
}

// IndicesTensor converts node indices to a [len(indices), 1] tensor, the shape used to gather
// the logits of a split.
func IndicesTensor(indices []int32) *tensors.Tensor {
	return tensors.FromFlatDataAndDimensions(indices, len(indices), 1)
}
