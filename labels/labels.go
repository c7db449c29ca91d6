// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package labels projects class labels onto the nodes of an original graph and of
// its summary graphs, and removes held-out (validation/test) nodes from the summary
// supervision.
//
// Labels are multi-hot vectors over a fixed class vocabulary. A zero vector means
// "unlabeled": such nodes never enter a training or evaluation split.
//
// Order of operations matters: held-out original nodes must be removed from the
// summary preimages (RemoveTestLeakage) before the summary labels are aggregated
// (AggregateToSummary); otherwise test labels leak into the summary model's targets.
package labels

import (
	"slices"

	"github.com/gomlx/rgcnsum/internal/sets"
	"github.com/gomlx/rgcnsum/mapping"
	"github.com/gomlx/rgcnsum/rdf"
	"k8s.io/klog/v2"
)

// RDFType is the default predicate of type assertions.
const RDFType = "<http://www.w3.org/1999/02/22-rdf-syntax-ns#type>"

// Vector is a multi-hot label vector over the classes of a Classes vocabulary.
type Vector []float32

// IsZero returns whether no class is set.
func (v Vector) IsZero() bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// Clone returns a copy of v.
func (v Vector) Clone() Vector { return slices.Clone(v) }

// Classes is the sorted vocabulary of class names (the objects of type assertions).
type Classes struct {
	names []string
	index map[string]int
}

// NewClasses creates the vocabulary from the given class names. Repeated names are merged.
func NewClasses(names ...string) *Classes {
	names = sets.Sorted(sets.MakeWith(names...))
	c := &Classes{names: names, index: make(map[string]int, len(names))}
	for ii, name := range names {
		c.index[name] = ii
	}
	return c
}

// ClassesFromAssertions collects every asserted type as a class.
func ClassesFromAssertions(assertions map[string][]string) *Classes {
	var names []string
	for _, types := range assertions {
		names = append(names, types...)
	}
	return NewClasses(names...)
}

// Len returns the number of classes.
func (c *Classes) Len() int { return len(c.names) }

// Names returns the class names ordered by index. It must not be modified.
func (c *Classes) Names() []string { return c.names }

// Index of the class, if known.
func (c *Classes) Index(name string) (int, bool) {
	idx, found := c.index[name]
	return idx, found
}

// ReadAssertions collects `node predicate type` assertions from a triple file.
// Nodes and types are normalized. The result maps node to its (unique, sorted) types.
func ReadAssertions(path, predicate string) (map[string][]string, error) {
	predicate = rdf.Normalize(predicate)
	bySubject := make(map[string]sets.Set[string])
	err := rdf.ScanFile(path, func(t rdf.Triple) error {
		if rdf.Normalize(t.Predicate) != predicate {
			return nil
		}
		node := rdf.Normalize(t.Subject)
		types, found := bySubject[node]
		if !found {
			types = sets.Make[string]()
			bySubject[node] = types
		}
		types.Insert(rdf.Normalize(t.Object))
		return nil
	})
	if err != nil {
		return nil, err
	}
	assertions := make(map[string][]string, len(bySubject))
	for node, types := range bySubject {
		assertions[node] = sets.Sorted(types)
	}
	return assertions, nil
}

// ProjectOriginal returns one label vector per asserted node (org2type).
// Types unknown to classes are ignored, so a node may end up with the zero vector.
func ProjectOriginal(assertions map[string][]string, classes *Classes) map[string]Vector {
	org2type := make(map[string]Vector, len(assertions))
	for node, types := range assertions {
		v := make(Vector, classes.Len())
		for _, typeName := range types {
			if idx, found := classes.Index(typeName); found {
				v[idx] = 1
			}
		}
		org2type[node] = v
	}
	return org2type
}

// AggregateToSummary returns the label vector of every summary node of m (sum2type):
// the union (clamped sum) of the vectors of the original nodes currently in its preimage.
// Original nodes without a label vector contribute nothing.
func AggregateToSummary(m *mapping.Mapping, org2type map[string]Vector, numClasses int) map[string]Vector {
	sum2type := make(map[string]Vector, m.NumSummary())
	for _, summaryNode := range m.SummaryNodes() {
		v := make(Vector, numClasses)
		for _, orgNode := range m.SumToOrg(summaryNode) {
			orgVector, found := org2type[orgNode]
			if !found {
				continue
			}
			for ii, x := range orgVector {
				v[ii] += x
			}
		}
		for ii := range v {
			v[ii] = min(v[ii], 1)
		}
		sum2type[summaryNode] = v
	}
	return sum2type
}

// RemoveTestLeakage removes every held-out original node from the preimage that contains it.
//
// It is idempotent and returns the number of nodes actually removed. AggregateToSummary
// must be called again afterwards to refresh the summary labels.
func RemoveTestLeakage(m *mapping.Mapping, heldOut []string) int {
	removed := 0
	for _, node := range heldOut {
		if m.RemoveFromPreimage(node) {
			removed++
		}
	}
	klog.V(1).Infof("removed %d of %d held-out nodes from summary preimages", removed, len(heldOut))
	return removed
}
