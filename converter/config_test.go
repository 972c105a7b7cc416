package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfiguration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
	"data_table": "/data/data_table.xlsx",
	"folder_path": "/data/raw",
	"output_folder": "/data/nwbfiles",
	"subject_ids": ["DL18"],
	"stub_test": true,
	"timezone": "UTC",
	"verbosity": 1
}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	config, err := LoadConfiguration(path)
	require.NoError(t, err)
	require.Equal(t, "/data/data_table.xlsx", config.DataTable)
	require.Equal(t, []string{"DL18"}, config.SubjectIDs)
	require.True(t, config.StubTest)
	require.Equal(t, "UTC", config.Timezone)

	// Fields absent from the file keep their defaults
	require.Equal(t, 6000, config.StubFrames)
	require.Equal(t, "F_baseline", config.BaselineField)
	require.Equal(t, "Fc", config.CorrectedField)
	require.Equal(t, 0.2032, config.BallDiameter)
	require.True(t, config.NoDB)
}

func TestLoadConfigurationMissingFile(t *testing.T) {
	_, err := LoadConfiguration(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}
