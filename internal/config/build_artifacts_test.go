package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildArtifactDetectorFindsCargoTargetDir(t *testing.T) {
	dir := t.TempDir()
	cargo := "[profile.release]\ntarget-dir = \"build-out\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Cargo.toml"), []byte(cargo), 0o644))

	patterns := NewBuildArtifactDetector(dir).DetectOutputDirectories()
	assert.Contains(t, patterns, "**/build-out/**")
}

func TestBuildArtifactDetectorFindsSetuptoolsBuildDir(t *testing.T) {
	dir := t.TempDir()
	pyproject := "[tool.setuptools]\nbuild-dir = \"out\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pyproject.toml"), []byte(pyproject), 0o644))

	patterns := NewBuildArtifactDetector(dir).DetectOutputDirectories()
	assert.Contains(t, patterns, "**/out/**")
}

func TestBuildArtifactDetectorMissingManifestsYieldNoPatterns(t *testing.T) {
	patterns := NewBuildArtifactDetector(t.TempDir()).DetectOutputDirectories()
	assert.Empty(t, patterns)
}

func TestBuildArtifactDetectorIgnoresMalformedManifest(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Cargo.toml"), []byte("not valid toml [[["), 0o644))

	patterns := NewBuildArtifactDetector(dir).DetectOutputDirectories()
	assert.Empty(t, patterns)
}
