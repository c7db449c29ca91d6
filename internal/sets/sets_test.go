// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package sets

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSet(t *testing.T) {
	// Sets are created empty.
	s := Make[string](10)
	assert.Len(t, s, 0)

	s.Insert("<b>", "<a>")
	assert.Len(t, s, 2)
	assert.True(t, s.Has("<a>"))
	assert.False(t, s.Has("<c>"))

	assert.True(t, s.Delete("<a>"))
	assert.False(t, s.Delete("<a>"))
	assert.Equal(t, MakeWith("<b>"), s)
}

func TestCloneAndSorted(t *testing.T) {
	s := MakeWith("<z>", "<m>", "<a>")
	c := s.Clone()
	c.Delete("<m>")
	assert.True(t, s.Has("<m>"), "Clone must not share storage")
	assert.Equal(t, []string{"<a>", "<m>", "<z>"}, Sorted(s))
	assert.Equal(t, []string{"<a>", "<z>"}, Sorted(c))
	assert.Empty(t, Sorted(Make[int]()))
}
