// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package labels

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gomlx/rgcnsum/mapping"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMapping(t *testing.T, pairs ...string) *mapping.Mapping {
	m := mapping.New()
	for ii := 0; ii < len(pairs); ii += 2 {
		require.NoError(t, m.Add(pairs[ii], pairs[ii+1]))
	}
	return m
}

func TestClasses(t *testing.T) {
	classes := NewClasses("<b>", "<a>", "<b>")
	assert.Equal(t, 2, classes.Len())
	assert.Equal(t, []string{"<a>", "<b>"}, classes.Names())
	idx, found := classes.Index("<b>")
	assert.True(t, found)
	assert.Equal(t, 1, idx)
	_, found = classes.Index("<c>")
	assert.False(t, found)
}

func TestReadAssertions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.nt")
	content := "<X> <http://www.w3.org/1999/02/22-rdf-syntax-ns#type> <Person> .\n" +
		"<x> <http://www.w3.org/1999/02/22-rdf-syntax-ns#type> <Student> .\n" +
		"<x> <knows> <y> .\n" +
		"<y> <http://www.w3.org/1999/02/22-rdf-syntax-ns#type> <person> .\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	assertions, err := ReadAssertions(path, RDFType)
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{
		"<x>": {"<person>", "<student>"},
		"<y>": {"<person>"},
	}, assertions)
	classes := ClassesFromAssertions(assertions)
	assert.Equal(t, []string{"<person>", "<student>"}, classes.Names())
}

func TestProjectOriginal(t *testing.T) {
	classes := NewClasses("<c0>", "<c1>")
	org2type := ProjectOriginal(map[string][]string{
		"<a>": {"<c0>"},
		"<b>": {"<c0>", "<c1>"},
		"<c>": {"<unknown>"},
	}, classes)
	assert.Equal(t, Vector{1, 0}, org2type["<a>"])
	assert.Equal(t, Vector{1, 1}, org2type["<b>"])
	assert.True(t, org2type["<c>"].IsZero())
}

func TestAggregateToSummary(t *testing.T) {
	m := newTestMapping(t, "<s>", "<a>", "<s>", "<b>", "<t>", "<c>", "<u>", "<d>")
	org2type := map[string]Vector{
		"<a>": {1, 0},
		"<b>": {1, 1},
		"<c>": {0, 1},
	}
	sum2type := AggregateToSummary(m, org2type, 2)
	require.Len(t, sum2type, 3)
	// Union is clamped to 1.
	assert.Equal(t, Vector{1, 1}, sum2type["<s>"])
	assert.Equal(t, Vector{0, 1}, sum2type["<t>"])
	assert.True(t, sum2type["<u>"].IsZero())

	// Result vectors don't alias the original ones.
	sum2type["<t>"][0] = 7
	assert.Equal(t, Vector{0, 1}, org2type["<c>"])
}

func TestRemoveTestLeakage(t *testing.T) {
	// A and B are summarized by S; B is held out.
	m := newTestMapping(t, "<s>", "<a>", "<s>", "<b>")
	org2type := map[string]Vector{
		"<a>": {1, 0},
		"<b>": {0, 1},
	}
	assert.Equal(t, Vector{1, 1}, AggregateToSummary(m, org2type, 2)["<s>"])

	assert.Equal(t, 1, RemoveTestLeakage(m, []string{"<b>", "<not-mapped>"}))
	assert.Equal(t, Vector{1, 0}, AggregateToSummary(m, org2type, 2)["<s>"])

	// Idempotent.
	assert.Equal(t, 0, RemoveTestLeakage(m, []string{"<b>"}))
	assert.Equal(t, Vector{1, 0}, AggregateToSummary(m, org2type, 2)["<s>"])

	// Held-out nodes keep their summary node for the transfer.
	sumNode, found := m.OrgToSum("<b>")
	assert.True(t, found)
	assert.Equal(t, "<s>", sumNode)

	// Removing the last node leaves the summary node unlabeled but present.
	RemoveTestLeakage(m, []string{"<a>"})
	sum2type := AggregateToSummary(m, org2type, 2)
	require.Contains(t, sum2type, "<s>")
	assert.True(t, sum2type["<s>"].IsZero())
}
