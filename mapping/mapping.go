// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package mapping holds the correspondence between the nodes of an original graph
// and the nodes of one of its summary graphs.
//
// The relation is many-to-one: each original node is represented by at most one
// summary node, and each summary node stands for a set (its preimage) of original nodes.
// An original node without a summary node is expected (isolated or filtered nodes)
// and is never an error.
package mapping

import (
	"io"
	"os"
	"slices"
	"strings"

	"github.com/gomlx/rgcnsum/internal/sets"
	"github.com/gomlx/rgcnsum/rdf"
	"github.com/pkg/errors"
)

// IsSummaryOf is the (normalized) predicate of the correspondence files.
const IsSummaryOf = "<issummaryof>"

// ErrConflict is returned when an original node would be mapped to a second summary node.
var ErrConflict = errors.New("original node already mapped to a different summary node")

// Mapping is the bidirectional index between original and summary node identifiers.
type Mapping struct {
	orgToSum map[string]string
	sumToOrg map[string]sets.Set[string]
}

// New creates an empty Mapping.
func New() *Mapping {
	return &Mapping{
		orgToSum: make(map[string]string),
		sumToOrg: make(map[string]sets.Set[string]),
	}
}

// Add the pair to both directions.
// Adding an existing pair again is a no-op.
func (m *Mapping) Add(summaryNode, originalNode string) error {
	if current, found := m.orgToSum[originalNode]; found {
		if current != summaryNode {
			return errors.Wrapf(ErrConflict, "%q -> %q, can't map it to %q", originalNode, current, summaryNode)
		}
		return nil
	}
	m.orgToSum[originalNode] = summaryNode
	preimage, found := m.sumToOrg[summaryNode]
	if !found {
		preimage = sets.Make[string]()
		m.sumToOrg[summaryNode] = preimage
	}
	preimage.Insert(originalNode)
	return nil
}

// OrgToSum returns the summary node representing the original node, if any.
func (m *Mapping) OrgToSum(originalNode string) (summaryNode string, found bool) {
	summaryNode, found = m.orgToSum[originalNode]
	return
}

// SumToOrg returns the current preimage of summaryNode, sorted.
// It may be empty after held-out nodes were removed.
func (m *Mapping) SumToOrg(summaryNode string) []string {
	return sets.Sorted(m.sumToOrg[summaryNode])
}

// PreimageSize returns the number of original nodes currently in the preimage of summaryNode.
func (m *Mapping) PreimageSize(summaryNode string) int {
	return len(m.sumToOrg[summaryNode])
}

// RemoveFromPreimage removes originalNode from the preimage of its summary node.
//
// The OrgToSum direction is kept, so the node still receives transferred parameters;
// only its contribution to the summary node's labels disappears.
// It returns whether the node was in a preimage.
func (m *Mapping) RemoveFromPreimage(originalNode string) bool {
	summaryNode, found := m.orgToSum[originalNode]
	if !found {
		return false
	}
	return m.sumToOrg[summaryNode].Delete(originalNode)
}

// SummaryNodes returns all summary nodes, sorted, including the ones with an empty preimage.
func (m *Mapping) SummaryNodes() []string {
	nodes := make([]string, 0, len(m.sumToOrg))
	for node := range m.sumToOrg {
		nodes = append(nodes, node)
	}
	slices.Sort(nodes)
	return nodes
}

// NumOriginal returns the number of mapped original nodes.
func (m *Mapping) NumOriginal() int { return len(m.orgToSum) }

// NumSummary returns the number of summary nodes.
func (m *Mapping) NumSummary() int { return len(m.sumToOrg) }

// Clone returns a deep copy: removals on the clone don't affect m.
func (m *Mapping) Clone() *Mapping {
	c := &Mapping{
		orgToSum: make(map[string]string, len(m.orgToSum)),
		sumToOrg: make(map[string]sets.Set[string], len(m.sumToOrg)),
	}
	for k, v := range m.orgToSum {
		c.orgToSum[k] = v
	}
	for k, v := range m.sumToOrg {
		c.sumToOrg[k] = v.Clone()
	}
	return c
}

// Parse reads correspondence lines `<summaryNode> <isSummaryOf> <originalNode> .`.
// Node identifiers are normalized (lower-cased). The name is used in error messages.
func Parse(r io.Reader, name string) (*Mapping, error) {
	m := New()
	err := rdf.Scan(r, name, func(t rdf.Triple) error {
		if !strings.EqualFold(t.Predicate, IsSummaryOf) {
			return &rdf.ParseError{Reason: "predicate must be " + IsSummaryOf}
		}
		return m.Add(rdf.Normalize(t.Subject), rdf.Normalize(t.Object))
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Load reads the correspondence file in path, see Parse.
func Load(path string) (*Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open summary map")
	}
	defer func() { _ = f.Close() }()
	r, err := rdf.NewReader(f, path)
	if err != nil {
		return nil, err
	}
	return Parse(r, path)
}
