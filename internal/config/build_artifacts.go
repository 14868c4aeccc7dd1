// Build artifact detection covers the manifest formats go-toml/v2 can
// parse directly: Cargo.toml and pyproject.toml. JSON manifests
// (package.json, tsconfig.json) need a different decoder and aren't
// covered here — the common case (node_modules/, dist/) is already
// caught by most projects' own .gitignore.
package config

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// BuildArtifactDetector derives extra scanner exclude patterns from a
// project's own build tooling configuration, catching output
// directories a project's .gitignore doesn't name explicitly (a custom
// Cargo "target-dir", a relocated setuptools build directory).
type BuildArtifactDetector struct {
	projectRoot string
}

// NewBuildArtifactDetector scopes a detector to projectRoot.
func NewBuildArtifactDetector(projectRoot string) *BuildArtifactDetector {
	return &BuildArtifactDetector{projectRoot: projectRoot}
}

// DetectOutputDirectories returns doublestar exclude patterns for any
// custom build output directory named in Cargo.toml or pyproject.toml. A
// missing or unparseable manifest contributes no patterns — this is
// best-effort enrichment of the config's exclude list, never a hard
// requirement of indexing.
func (d *BuildArtifactDetector) DetectOutputDirectories() []string {
	var patterns []string
	patterns = append(patterns, d.detectCargoTargetDir()...)
	patterns = append(patterns, d.detectSetuptoolsBuildDir()...)
	return patterns
}

func (d *BuildArtifactDetector) detectCargoTargetDir() []string {
	data, err := os.ReadFile(filepath.Join(d.projectRoot, "Cargo.toml"))
	if err != nil {
		return nil
	}

	var manifest struct {
		Profile map[string]struct {
			TargetDir string `toml:"target-dir"`
		} `toml:"profile"`
	}
	if err := toml.Unmarshal(data, &manifest); err != nil {
		return nil
	}

	var patterns []string
	for _, profile := range manifest.Profile {
		if profile.TargetDir != "" {
			patterns = append(patterns, "**/"+profile.TargetDir+"/**")
		}
	}
	return patterns
}

func (d *BuildArtifactDetector) detectSetuptoolsBuildDir() []string {
	data, err := os.ReadFile(filepath.Join(d.projectRoot, "pyproject.toml"))
	if err != nil {
		return nil
	}

	var manifest struct {
		Tool struct {
			Setuptools struct {
				BuildDir string `toml:"build-dir"`
			} `toml:"setuptools"`
		} `toml:"tool"`
	}
	if err := toml.Unmarshal(data, &manifest); err != nil {
		return nil
	}
	if manifest.Tool.Setuptools.BuildDir == "" {
		return nil
	}
	return []string{"**/" + manifest.Tool.Setuptools.BuildDir + "/**"}
}
