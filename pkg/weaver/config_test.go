package weaver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigDefaults(t *testing.T) {
	config := NewConfig("app.bin")
	//
	assert.Equal(t, DefaultPrefix, config.Prefix)
	assert.Equal(t, DefaultExcludes, config.Excludes)
	assert.True(t, config.Backup)
	assert.Empty(t, config.Includes)
}

func TestApplyFileMergesValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weave.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
prefix = "_hits_"
include = ["Demo.Keep"]
exclude = ["Demo.Keep.Skip"]
no-backup = true
backup-dir = "/tmp/backups"
search-dirs = ["deps"]
instrument-compiler-generated = true
`), 0644))
	//
	config := NewConfig("app.bin")
	require.NoError(t, config.ApplyFile(path))
	//
	assert.Equal(t, "_hits_", config.Prefix)
	assert.Equal(t, []string{"Demo.Keep"}, config.Includes)
	// File entries append to the defaults
	assert.Contains(t, config.Excludes, "Demo.Keep.Skip")
	assert.Contains(t, config.Excludes, "System")
	assert.False(t, config.Backup)
	assert.Equal(t, "/tmp/backups", config.BackupDir)
	assert.Equal(t, []string{"deps"}, config.SearchDirs)
	assert.True(t, config.InstrumentCompilerGenerated)
}

func TestApplyFileEmptyLeavesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weave.toml")
	require.NoError(t, os.WriteFile(path, nil, 0644))
	//
	config := NewConfig("app.bin")
	require.NoError(t, config.ApplyFile(path))
	//
	assert.Equal(t, DefaultPrefix, config.Prefix)
	assert.True(t, config.Backup)
}

func TestApplyFileRejectsMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weave.toml")
	require.NoError(t, os.WriteFile(path, []byte("prefix = ["), 0644))
	//
	config := NewConfig("app.bin")
	assert.Error(t, config.ApplyFile(path))
}
