package fsindex

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/fsindex/internal/config"
	"github.com/standardbeagle/fsindex/internal/debug"
)

// builtinSkipPatterns are the SKIP_PATHS always excluded regardless of
// caller configuration (spec.md §4.1: Contract). Expressed as doublestar
// patterns matched against the absolute, slash-normalized path so the same
// list can name both Unix system directories and their Windows/macOS
// equivalents — the cross-platform policy spec.md §9 leaves unstated;
// SPEC_FULL.md's Supplemented Features section records this as the chosen
// resolution.
var builtinSkipPatterns = []string{
	"/usr/**", "/usr",
	"/System/**", "/System",
	"/dev/**", "/dev",
	"/proc/**", "/proc",
	"/sys/**", "/sys",
	"**/.Trash/**", "**/.Trash",
	"**/$RECYCLE.BIN/**", "**/$RECYCLE.BIN",
	"**/System Volume Information/**", "**/System Volume Information",
	"**/.Spotlight-V100/**", "**/.Spotlight-V100",
	"**/.fseventsd/**", "**/.fseventsd",
}

// SkipPredicate is a caller-supplied test that excludes a path from the
// scan in addition to the built-in SKIP_PATHS (spec.md §4.1: Contract).
type SkipPredicate func(absPath string, isDir bool) bool

// Scanner enumerates regular files under a root directory in parallel and
// emits FileRecord batches (spec.md §4.1).
type Scanner struct {
	cfg  *config.Config
	skip SkipPredicate
}

// NewScanner creates a Scanner bound to cfg's batch/yield/backoff tuning.
func NewScanner(cfg *config.Config, skip SkipPredicate) *Scanner {
	return &Scanner{cfg: cfg, skip: skip}
}

func matchesAny(patterns []string, path string) bool {
	slashed := filepath.ToSlash(path)
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, slashed); ok {
			return true
		}
	}
	return false
}

func (s *Scanner) shouldSkip(path string, isDir bool) bool {
	if matchesAny(builtinSkipPatterns, path) {
		return true
	}
	if s.skip != nil && s.skip(path, isDir) {
		return true
	}
	return false
}

// Scan walks root, sending batches of FileRecord on out. Every regular file
// under root whose metadata is readable is emitted exactly once; directories
// are not emitted; symlinks are not followed (spec.md §4.1: Contract).
func (s *Scanner) Scan(ctx context.Context, root string, out chan<- []FileRecord, counters *Counters) error {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return NewError(ErrInvalidRoot, "scan", fmt.Errorf("root %q does not exist or is not a directory", root)).WithPath(root)
	}

	workers := runtime.NumCPU()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var batchMu sync.Mutex
	var visited int64

	var walkDir func(dir string) error
	walkDir = func(dir string) error {
		entries, err := os.ReadDir(dir)
		if err != nil {
			debug.LogScan("readdir error for %s: %v", dir, err)
			counters.AddError()
			return nil // per-entry errors are skipped, not fatal (spec.md §4.1: Failure semantics)
		}

		batch := make([]FileRecord, 0, s.cfg.Tuning.ScanBatchSize)
		flush := func(final bool) error {
			if len(batch) == 0 {
				return nil
			}
			if !final && len(batch) < s.cfg.Tuning.ScanBatchSize {
				return nil
			}
			toSend := batch
			batch = make([]FileRecord, 0, s.cfg.Tuning.ScanBatchSize)
			return sendBatch(gctx, out, toSend, s.cfg.Tuning.MaxSendBackoffMs)
		}

		for _, entry := range entries {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			path := filepath.Join(dir, entry.Name())
			if s.shouldSkip(path, entry.IsDir()) {
				continue
			}

			// Symlinks are never followed (spec.md §4.1: Contract).
			if entry.Type()&os.ModeSymlink != 0 {
				continue
			}

			if entry.IsDir() {
				subdir := path
				// Walk inline when every worker slot is taken: blocking in
				// g.Go while holding a slot would deadlock once all
				// walkers wait on each other.
				if !g.TryGo(func() error { return walkDir(subdir) }) {
					if err := walkDir(subdir); err != nil {
						return err
					}
				}
				continue
			}

			fi, err := entry.Info()
			if err != nil {
				debug.LogScan("metadata error for %s: %v", path, err)
				counters.AddError()
				continue
			}

			rec := fileInfoToRecord(path, fi)
			batchMu.Lock()
			batch = append(batch, rec)
			counters.AddDiscovered(1)
			n := atomic.AddInt64(&visited, 1)
			batchMu.Unlock()

			if n%int64(s.cfg.Tuning.ScanYieldThreshold) == 0 {
				yieldDelay := 1 * time.Millisecond
				if n > 1_000_000 {
					yieldDelay = 5 * time.Millisecond
				}
				time.Sleep(yieldDelay)
			}

			if err := flush(false); err != nil {
				return err
			}
		}

		return flush(true)
	}

	g.Go(func() error { return walkDir(root) })

	if err := g.Wait(); err != nil {
		if err == context.Canceled || err == gctx.Err() {
			return nil
		}
		return err
	}
	return nil
}

// sendBatch delivers batch on out, backing off exponentially (1ms doubling,
// capped) when the channel is full, matching the Scanner/Preparer shared
// backpressure discipline (spec.md §4.1, §4.2).
func sendBatch[T any](ctx context.Context, out chan<- []T, batch []T, maxBackoffMs int) error {
	delay := time.Millisecond
	maxDelay := time.Duration(maxBackoffMs) * time.Millisecond
	for {
		select {
		case out <- batch:
			return nil
		case <-ctx.Done():
			return nil
		default:
		}

		select {
		case out <- batch:
			return nil
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
			delay *= 2
			if delay > maxDelay {
				delay = maxDelay
			}
		}
	}
}
