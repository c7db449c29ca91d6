// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package rdf

import (
	"compress/gzip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTriples = `
# AIFB-like sample
<http://ex.org/Alice> <http://ex.org/worksAt> <http://ex.org/Lab1> .
<http://ex.org/Bob> <http://ex.org/worksAt> <http://ex.org/Lab1> .
<http://ex.org/Alice> <http://ex.org/name> "Alice Smith"@en .
<http://ex.org/alice> <http://ex.org/worksAt> <http://ex.org/lab1> .
`

func TestParseLine(t *testing.T) {
	triple, ok, reason := ParseLine(`<s> <p> "a literal with spaces" .`)
	require.True(t, ok)
	require.Empty(t, reason)
	assert.Equal(t, Triple{Subject: "<s>", Predicate: "<p>", Object: `"a literal with spaces"`}, triple)
	assert.True(t, IsLiteral(triple.Object))

	_, ok, reason = ParseLine("   ")
	assert.False(t, ok)
	assert.Empty(t, reason)

	_, ok, reason = ParseLine("<s> <p> .")
	assert.False(t, ok)
	assert.NotEmpty(t, reason)

	_, ok, reason = ParseLine("<s> <p> <o>")
	assert.False(t, ok)
	assert.Contains(t, reason, "trailing")
}

func TestScanMalformed(t *testing.T) {
	err := Scan(strings.NewReader("<s> <p> <o> .\n<s> <p>\n"), "bad.nt", func(Triple) error { return nil })
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrParse))
	var pErr *ParseError
	require.True(t, errors.As(err, &pErr))
	assert.Equal(t, 2, pErr.Line)
}

func TestBuildGraph(t *testing.T) {
	var triples []Triple
	require.NoError(t, Scan(strings.NewReader(sampleTriples), "sample", func(tr Triple) error {
		triples = append(triples, tr)
		return nil
	}))
	require.Len(t, triples, 4)

	g, err := BuildGraph(triples, nil)
	require.NoError(t, err)
	// The last triple is a duplicate of the first once lower-cased.
	assert.Equal(t, 3, g.NumEdges())
	assert.Equal(t, []string{`"alice smith"@en`, "<http://ex.org/alice>", "<http://ex.org/bob>", "<http://ex.org/lab1>"}, g.Nodes)
	for ii, node := range g.Nodes {
		assert.Equal(t, ii, g.Index[node])
	}
	assert.Equal(t, []string{"<http://ex.org/name>", "<http://ex.org/worksat>"}, g.Relations.Names())
	worksAt, _ := g.Relations.ID("<http://ex.org/worksat>")
	assert.Equal(t, int32(g.Index["<http://ex.org/alice>"]), g.Src[0])
	assert.Equal(t, int32(g.Index["<http://ex.org/lab1>"]), g.Dst[0])
	assert.Equal(t, int32(worksAt), g.Type[0])

	// Building against a vocabulary lacking a predicate fails.
	_, err = BuildGraph(triples, NewRelations("<http://ex.org/worksat>"))
	require.Error(t, err)

	c := g.Clone()
	c.Src[0] = 99
	c.Index["<new>"] = 7
	assert.NotEqual(t, int32(99), g.Src[0])
	_, found := g.Index["<new>"]
	assert.False(t, found)
}

func TestLoadGraphGzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.nt.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	_, err = gz.Write([]byte(sampleTriples))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	g, err := LoadGraph(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, g.NumNodes())
	assert.Equal(t, 2, g.NumRelations())
}
