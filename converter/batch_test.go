package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFindFile(t *testing.T) {
	root := t.TempDir()
	sessionFolder := filepath.Join(root, "DL18", "20230501")
	require.NoError(t, os.MkdirAll(sessionFolder, 0o755))
	target := filepath.Join(sessionFolder, "DL18_raw.mat")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o644))

	found, err := findFile(filepath.Join(root, "DL18"), "DL18_raw.mat")
	require.NoError(t, err)
	require.Equal(t, target, found)

	_, err = findFile(filepath.Join(root, "DL18"), "missing.mat")
	require.Error(t, err)
}
