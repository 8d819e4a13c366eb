// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fileutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAtomic_CreatesParentsAndLeavesNoTemp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "state.json")

	require.NoError(t, WriteAtomic(path, []byte("{}\n")))
	require.NoError(t, WriteAtomic(path, []byte("{\"a\":1}\n")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\"a\":1}\n", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestQuarantine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	now := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)

	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	dest, err := Quarantine(path, now)
	require.NoError(t, err)
	assert.Equal(t, path+".corrupt.20250304T050607Z", dest)
	assert.NoFileExists(t, path)
	assert.FileExists(t, dest)

	require.NoError(t, os.WriteFile(path, []byte("again"), 0o644))
	dest2, err := Quarantine(path, now)
	require.NoError(t, err)
	assert.Equal(t, dest+".1", dest2)
}
