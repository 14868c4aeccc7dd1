// Package config loads indexing configuration from a KDL document
// (.fsindex.kdl by default) and layers CLI flag overrides on top via
// loadConfigWithOverrides in cmd/fsindex/main.go.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	kdl "github.com/sblinch/kdl-go"
)

// Config holds every knob the indexing pipeline and query engine read.
// Field names mirror the constants named in spec.md so a reader can map
// a config value straight back to the spec section that names it.
type Config struct {
	Project Project `kdl:"project"`
	Index   Index   `kdl:"index"`
	Tuning  Tuning  `kdl:"tuning"`

	Include []string `kdl:"include"`
	Exclude []string `kdl:"exclude"`
}

// Project describes the root being indexed and where the on-disk index lives.
type Project struct {
	Root      string `kdl:"root"`
	IndexPath string `kdl:"index_path"`
}

// Index controls scan/prepare behavior.
type Index struct {
	RespectGitignore bool  `kdl:"respect_gitignore"`
	FollowSymlinks   bool  `kdl:"follow_symlinks"`
	MaxContentBytes  int64 `kdl:"max_content_bytes"` // spec.md §3: 10 MiB content cap
}

// Tuning exposes the pipeline's batch/channel/timeout constants (spec.md §4, §5).
type Tuning struct {
	ScanBatchSize      int `kdl:"scan_batch_size"`      // SCAN_BATCH_SIZE
	ScanYieldThreshold int `kdl:"scan_yield_threshold"` // SCAN_YIELD_THRESHOLD
	ScanQueueSize      int `kdl:"scan_queue_size"`      // SCAN_QUEUE_SIZE
	MaxConcurrentPrep  int `kdl:"max_concurrent_indexers"` // MAX_CONCURRENT_INDEXERS
	CommitBatchSize    int `kdl:"commit_batch_size"`       // COMMIT_BATCH_SIZE
	MaxErrorRetries    int `kdl:"max_error_retries"`       // MAX_ERROR_RETRIES
	ErrorRetryDelayMs  int `kdl:"error_retry_delay_ms"`    // ERROR_RETRY_DELAY
	CleanupTimeoutSec  int `kdl:"cleanup_timeout_sec"`     // CLEANUP_TIMEOUT
	ProgressIntervalMs int `kdl:"progress_update_interval_ms"` // PROGRESS_UPDATE_INTERVAL
	MaxSendBackoffMs   int `kdl:"max_send_backoff_ms"`
}

// Default returns the spec-mandated constants (spec.md §4, §5) as defaults.
func Default() *Config {
	return &Config{
		Index: Index{
			RespectGitignore: true,
			FollowSymlinks:   false,
			MaxContentBytes:  10 * 1024 * 1024,
		},
		Tuning: Tuning{
			ScanBatchSize:      500,
			ScanYieldThreshold: 5000,
			ScanQueueSize:      50000,
			MaxConcurrentPrep:  min(runtime.NumCPU(), 4),
			CommitBatchSize:    100000,
			MaxErrorRetries:    3,
			ErrorRetryDelayMs:  100,
			CleanupTimeoutSec:  15,
			ProgressIntervalMs: 500,
			MaxSendBackoffMs:   100,
		},
	}
}

// Load reads a KDL config file, falling back to Default() values for any
// field the file omits. A missing file is not an error: the caller gets
// spec defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := kdl.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	return cfg, nil
}

// ResolveIndexPath returns the on-disk index directory, defaulting to
// "<root>/.fsindex/index" the way the spec's §6 layout ("a directory under
// the host's user-data directory named index/") describes, scoped per
// project root rather than a single global user-data directory so multiple
// indexed trees don't collide.
func (c *Config) ResolveIndexPath() string {
	if c.Project.IndexPath != "" {
		return c.Project.IndexPath
	}
	return filepath.Join(c.Project.Root, ".fsindex", "index")
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
