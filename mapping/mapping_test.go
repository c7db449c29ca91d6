// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package mapping

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gomlx/rgcnsum/rdf"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleMap = `<12345> <isSummaryOf> <http://ex.org/Alice> .
<12345> <isSummaryOf> <http://ex.org/Bob> .
<0> <isSummaryOf> "42"^^<http://www.w3.org/2001/XMLSchema#int> .

<777> <ISSUMMARYOF> <http://ex.org/Lab1> .
`

func TestParse(t *testing.T) {
	m, err := Parse(strings.NewReader(sampleMap), "sample")
	require.NoError(t, err)
	assert.Equal(t, 4, m.NumOriginal())
	assert.Equal(t, 3, m.NumSummary())

	sum, found := m.OrgToSum("<http://ex.org/alice>")
	require.True(t, found)
	assert.Equal(t, "<12345>", sum)
	assert.Equal(t, []string{"<http://ex.org/alice>", "<http://ex.org/bob>"}, m.SumToOrg("<12345>"))
	assert.Equal(t, []string{"<0>", "<12345>", "<777>"}, m.SummaryNodes())

	// Absence is not an error.
	_, found = m.OrgToSum("<http://ex.org/unknown>")
	assert.False(t, found)
	assert.Empty(t, m.SumToOrg("<unknown>"))
}

func TestParseErrors(t *testing.T) {
	for _, bad := range []string{
		"<1> <isSummaryOf> <a> .\n<1> <sameAs> <b> .\n",
		"<1> <isSummaryOf> .\n",
		"<1> <isSummaryOf> <a>\n",
	} {
		_, err := Parse(strings.NewReader(bad), "bad")
		require.Errorf(t, err, "input %q", bad)
		assert.Truef(t, errors.Is(err, rdf.ErrParse), "input %q: %v", bad, err)
	}

	var pErr *rdf.ParseError
	_, err := Parse(strings.NewReader("\n<1> <isSummaryOf> <a> .\n<1> <sameAs> <b> .\n"), "bad")
	require.True(t, errors.As(err, &pErr))
	assert.Equal(t, 3, pErr.Line)

	// Many-to-one: a second summary node for the same original node is a conflict.
	_, err = Parse(strings.NewReader("<1> <isSummaryOf> <a> .\n<2> <isSummaryOf> <a> .\n"), "conflict")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConflict))
}

func TestRemoveFromPreimage(t *testing.T) {
	m := New()
	require.NoError(t, m.Add("<s>", "<a>"))
	require.NoError(t, m.Add("<s>", "<b>"))
	require.NoError(t, m.Add("<s>", "<b>")) // Repeated pair is a no-op.
	c := m.Clone()

	assert.True(t, m.RemoveFromPreimage("<b>"))
	assert.False(t, m.RemoveFromPreimage("<b>"))
	assert.False(t, m.RemoveFromPreimage("<unmapped>"))
	assert.Equal(t, []string{"<a>"}, m.SumToOrg("<s>"))
	assert.Equal(t, 1, m.PreimageSize("<s>"))

	// The reverse direction is kept.
	sum, found := m.OrgToSum("<b>")
	assert.True(t, found)
	assert.Equal(t, "<s>", sum)

	// The clone is independent.
	assert.Equal(t, []string{"<a>", "<b>"}, c.SumToOrg("<s>"))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "AIFB_map_out.nt")
	require.NoError(t, os.WriteFile(path, []byte(sampleMap), 0o644))
	m, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, m.NumOriginal())

	_, err = Load(filepath.Join(t.TempDir(), "missing.nt"))
	require.Error(t, err)
}
