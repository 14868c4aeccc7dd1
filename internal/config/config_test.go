package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 500, cfg.Tuning.ScanBatchSize)
	assert.Equal(t, 100000, cfg.Tuning.CommitBatchSize)
	assert.Equal(t, int64(10*1024*1024), cfg.Index.MaxContentBytes)
	assert.True(t, cfg.Index.RespectGitignore)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.kdl"))
	require.NoError(t, err)
	assert.Equal(t, Default().Tuning, cfg.Tuning)
}

func TestResolveIndexPath(t *testing.T) {
	cfg := Default()
	cfg.Project.Root = "/tmp/myproject"
	assert.Equal(t, filepath.Join("/tmp/myproject", ".fsindex", "index"), cfg.ResolveIndexPath())

	cfg.Project.IndexPath = "/custom/path"
	assert.Equal(t, "/custom/path", cfg.ResolveIndexPath())
}

func TestLoadExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".fsindex.kdl")
	contents := "project {\n  root \"" + dir + "\"\n}\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.Project.Root)
}
