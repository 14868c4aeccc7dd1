package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGitignoreParserMatchesSimplePattern(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".gitignore"), []byte("*.log\nnode_modules/\n"), 0o644))

	gp := NewGitignoreParser()
	require.NoError(t, gp.LoadGitignore(dir))

	assert.True(t, gp.ShouldIgnore("debug.log", false))
	assert.True(t, gp.ShouldIgnore("node_modules", true))
	assert.False(t, gp.ShouldIgnore("main.go", false))
}

func TestGitignoreParserMissingFileIsNotAnError(t *testing.T) {
	gp := NewGitignoreParser()
	require.NoError(t, gp.LoadGitignore(t.TempDir()))
	assert.False(t, gp.ShouldIgnore("/anything", false))
}

func TestGetExclusionPatternsProducesDoublestarGlobs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".gitignore"), []byte("build/\n"), 0o644))

	gp := NewGitignoreParser()
	require.NoError(t, gp.LoadGitignore(dir))

	patterns := gp.GetExclusionPatterns()
	require.NotEmpty(t, patterns)
}
