// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package rdf

import (
	"slices"

	"github.com/gomlx/rgcnsum/internal/sets"
	"github.com/pkg/errors"
)

// Relations is the vocabulary of predicates (edge types) of a graph.
//
// Summary graphs are built against the vocabulary of their original graph, so relation
// ids mean the same thing in both.
type Relations struct {
	names []string
	index map[string]int
}

// NewRelations creates a vocabulary with the given (normalized) predicate names, sorted.
func NewRelations(names ...string) *Relations {
	names = sets.Sorted(sets.MakeWith(names...))
	r := &Relations{names: names, index: make(map[string]int, len(names))}
	for ii, name := range names {
		r.index[name] = ii
	}
	return r
}

// ID returns the relation id of the predicate.
func (r *Relations) ID(name string) (int, bool) {
	id, found := r.index[name]
	return id, found
}

// Len returns the number of relations.
func (r *Relations) Len() int { return len(r.names) }

// Names returns the relation names ordered by id. It must not be modified.
func (r *Relations) Names() []string { return r.names }

// Graph is the tensor-ready form of a triple file.
//
// Edge e goes from node Src[e] to node Dst[e] with relation Type[e]. Nodes are
// enumerated in sorted order of their (normalized) identifiers.
type Graph struct {
	// Nodes maps index to node identifier, sorted.
	Nodes []string

	// Index maps node identifier to its index in Nodes.
	Index map[string]int

	Relations *Relations

	Src, Dst, Type []int32
}

// NumNodes in the graph.
func (g *Graph) NumNodes() int { return len(g.Nodes) }

// NumEdges in the graph.
func (g *Graph) NumEdges() int { return len(g.Src) }

// NumRelations in the graph's vocabulary, including relations that have no edge.
func (g *Graph) NumRelations() int { return g.Relations.Len() }

// Clone returns a deep copy of the graph. The Relations vocabulary is immutable and shared.
func (g *Graph) Clone() *Graph {
	c := &Graph{
		Nodes:     slices.Clone(g.Nodes),
		Index:     make(map[string]int, len(g.Index)),
		Relations: g.Relations,
		Src:       slices.Clone(g.Src),
		Dst:       slices.Clone(g.Dst),
		Type:      slices.Clone(g.Type),
	}
	for k, v := range g.Index {
		c.Index[k] = v
	}
	return c
}

// BuildGraph enumerates the nodes and edges of triples.
//
// If relations is nil, the vocabulary is built from the predicates of the triples.
// Otherwise, a predicate missing from relations is an error: it means the summary graph
// was not generated from the original graph it is paired with.
// Duplicate triples (after normalization) are kept only once.
func BuildGraph(triples []Triple, relations *Relations) (*Graph, error) {
	nodeSet := sets.Make[string]()
	predicates := sets.Make[string]()
	for _, t := range triples {
		nodeSet.Insert(Normalize(t.Subject), Normalize(t.Object))
		predicates.Insert(Normalize(t.Predicate))
	}
	if relations == nil {
		relations = NewRelations(sets.Sorted(predicates)...)
	}
	g := &Graph{
		Nodes:     sets.Sorted(nodeSet),
		Relations: relations,
	}
	g.Index = make(map[string]int, len(g.Nodes))
	for ii, node := range g.Nodes {
		g.Index[node] = ii
	}

	type edge struct{ src, dst, rel int32 }
	seen := sets.Make[edge](len(triples))
	for _, t := range triples {
		pred := Normalize(t.Predicate)
		rel, found := relations.ID(pred)
		if !found {
			return nil, errors.Errorf("predicate %q is not in the relation vocabulary (%d relations)",
				pred, relations.Len())
		}
		e := edge{
			src: int32(g.Index[Normalize(t.Subject)]),
			dst: int32(g.Index[Normalize(t.Object)]),
			rel: int32(rel),
		}
		if seen.Has(e) {
			continue
		}
		seen.Insert(e)
		g.Src = append(g.Src, e.src)
		g.Dst = append(g.Dst, e.dst)
		g.Type = append(g.Type, e.rel)
	}
	return g, nil
}

// LoadGraph reads and enumerates the triple file in path. See BuildGraph about relations.
func LoadGraph(path string, relations *Relations) (*Graph, error) {
	triples, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	g, err := BuildGraph(triples, relations)
	if err != nil {
		return nil, errors.WithMessagef(err, "while building graph from %q", path)
	}
	return g, nil
}
