// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListDataFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b_map_out.nt", "a_map_in.nt", ".DS_Store"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("\n"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir"), 0o755))

	files, err := ListDataFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a_map_in.nt"),
		filepath.Join(dir, "b_map_out.nt"),
	}, files)

	_, err = ListDataFiles(filepath.Join(dir, "missing"))
	require.Error(t, err)
}

func TestResolvePath(t *testing.T) {
	p, err := ResolvePath("/data", "AIFB/AIFB_complete.n3")
	require.NoError(t, err)
	assert.Equal(t, "/data/AIFB/AIFB_complete.n3", p)

	p, err = ResolvePath("/data", "/abs/file.nt")
	require.NoError(t, err)
	assert.Equal(t, "/abs/file.nt", p)

	exists, err := FileExists(t.TempDir())
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = FileExists(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.False(t, exists)
}
