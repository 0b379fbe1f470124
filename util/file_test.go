package util

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJsonCreatesParentDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "settings.json")

	err := WriteJson(context.Background(), path, map[string]int{"a": 1})
	require.NoError(t, err)

	var got map[string]int
	require.NoError(t, ReadJson(path, &got))
	assert.Equal(t, 1, got["a"])
}

func TestWriteJsonLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json")

	require.NoError(t, WriteJson(context.Background(), path, struct{ Name string }{"x"}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "settings.json", entries[0].Name())
}

func TestReadJsonMissingFile(t *testing.T) {
	var got map[string]int
	err := ReadJson(filepath.Join(t.TempDir(), "nope.json"), &got)
	assert.Error(t, err)
}
