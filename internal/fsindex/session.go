package fsindex

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/standardbeagle/fsindex/internal/config"
	"github.com/standardbeagle/fsindex/internal/debug"
)

// Manager enforces single-session-at-a-time per on-disk index (spec.md
// §4.6: Contract — "at most one live IndexingSession may exist per index
// path"). It is the single-slot mailbox the spec's progress/cancel surface
// is built on.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*IndexingSession
}

// NewManager creates an empty session manager.
func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*IndexingSession)}
}

// Start begins indexing root into the index at indexPath, returning
// ErrSessionBusy if a session already owns that index path.
func (m *Manager) Start(cfg *config.Config, root, indexPath string) (*IndexingSession, error) {
	m.mu.Lock()
	if existing, ok := m.sessions[indexPath]; ok && !existing.done() {
		m.mu.Unlock()
		return nil, NewError(ErrSessionBusy, "start", nil).WithPath(indexPath)
	}

	sess := newSession(cfg, root, indexPath)
	m.sessions[indexPath] = sess
	m.mu.Unlock()

	sess.run()
	return sess, nil
}

// Lookup returns the session currently (or most recently) registered for
// indexPath, if any.
func (m *Manager) Lookup(indexPath string) (*IndexingSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[indexPath]
	return s, ok
}

// IndexingSession drives one scan→prepare→write pipeline run against one
// index path, from Idle through Complete or Error (spec.md §4.6).
type IndexingSession struct {
	cfg       *config.Config
	root      string
	indexPath string

	counters   *Counters
	aggregator *ProgressAggregator
	writer     *Writer

	cancel context.CancelFunc

	mu       sync.Mutex
	isDone   bool
	lastErr  error
	snapshot ProgressSnapshot
}

func newSession(cfg *config.Config, root, indexPath string) *IndexingSession {
	counters := &Counters{}
	interval := time.Duration(cfg.Tuning.ProgressIntervalMs) * time.Millisecond
	return &IndexingSession{
		cfg:        cfg,
		root:       root,
		indexPath:  indexPath,
		counters:   counters,
		aggregator: NewProgressAggregator(counters, interval),
	}
}

// Cancel requests the session stop early; already-committed documents
// remain in the index (spec.md §4.6: Edge cases — cancellation).
func (s *IndexingSession) Cancel() {
	if s.cancel != nil {
		s.cancel()
	}
}

// Progress returns the most recent ProgressSnapshot.
func (s *IndexingSession) Progress() ProgressSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

func (s *IndexingSession) done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isDone
}

func (s *IndexingSession) setSnapshot(snap ProgressSnapshot) {
	s.mu.Lock()
	s.snapshot = snap
	s.mu.Unlock()
}

func (s *IndexingSession) finish(err error) {
	s.mu.Lock()
	s.isDone = true
	s.lastErr = err
	s.mu.Unlock()
}

// run launches the pipeline in a background goroutine and returns
// immediately; callers observe progress via Progress().
func (s *IndexingSession) run() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	go func() {
		defer cancel()
		s.setSnapshot(s.aggregator.Snapshot(false))

		progressCtx, stopProgress := context.WithCancel(ctx)
		defer stopProgress()
		go s.aggregator.Run(progressCtx, s.setSnapshot)

		err := s.runPipeline(ctx)
		stopProgress()
		s.setSnapshot(s.aggregator.Snapshot(true))
		s.finish(err)
	}()
}

func (s *IndexingSession) runPipeline(ctx context.Context) error {
	writer, err := OpenWriter(s.cfg, s.indexPath, s.counters)
	if err != nil {
		s.aggregator.SetPhase(PhaseError, err.Error())
		return err
	}
	s.writer = writer
	defer func() {
		if cerr := writer.Close(); cerr != nil {
			debug.LogWriter("session close warning: %v", cerr)
		}
	}()

	scanOut := make(chan []FileRecord, s.cfg.Tuning.ScanQueueSize/s.cfg.Tuning.ScanBatchSize+1)
	prepOut := make(chan []Document, s.cfg.Tuning.ScanQueueSize/s.cfg.Tuning.ScanBatchSize+1)

	s.aggregator.SetPhase(PhaseScanning, "")
	scanner := NewScanner(s.cfg, newConfigSkipPredicate(s.cfg))
	preparer := NewPreparerPool(s.cfg, s.counters)

	var scanErr, prepErr, writeErr error
	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		defer close(scanOut)
		scanErr = scanner.Scan(ctx, s.root, scanOut, s.counters)
		s.counters.SetTotal(discoveredCount(s.counters))
	}()

	go func() {
		defer wg.Done()
		s.aggregator.SetPhase(PhaseProcessing, "")
		prepErr = preparer.Run(ctx, scanOut, prepOut)
	}()

	go func() {
		defer wg.Done()
		for docs := range prepOut {
			if err := writer.Add(ctx, docs); err != nil {
				writeErr = err
				s.aggregator.SetPhase(PhaseError, err.Error())
				return
			}
			s.counters.AddProcessed(int64(len(docs)))
		}
		s.aggregator.SetPhase(PhaseFlushing, "")
		if err := writer.Flush(ctx); err != nil {
			writeErr = err
			s.aggregator.SetPhase(PhaseError, err.Error())
			return
		}
		s.aggregator.SetPhase(PhaseMerging, "")
	}()

	wg.Wait()

	if writeErr != nil {
		return writeErr
	}
	if scanErr != nil {
		return scanErr
	}
	if prepErr != nil {
		return prepErr
	}
	s.aggregator.SetPhase(PhaseComplete, "")
	return nil
}

func discoveredCount(c *Counters) int64 {
	discovered, _, _, _ := c.snapshot()
	return discovered
}

// newConfigSkipPredicate builds a SkipPredicate from the config's include
// and exclude doublestar patterns plus the project's gitignore rules
// (spec.md §4.1: Contract — include/exclude/gitignore interplay).
func newConfigSkipPredicate(cfg *config.Config) SkipPredicate {
	var gi *config.GitignoreParser
	if cfg.Index.RespectGitignore {
		gi = config.NewGitignoreParser()
		if err := gi.LoadGitignore(cfg.Project.Root); err != nil {
			gi = nil
		}
	}

	// Manifest-derived excludes supplement cfg.Exclude with build output
	// directories a project's .gitignore doesn't name explicitly (spec.md's
	// Supplemented Features: manifest-aware exclude enrichment).
	buildExcludes := config.NewBuildArtifactDetector(cfg.Project.Root).DetectOutputDirectories()

	return func(absPath string, isDir bool) bool {
		if len(cfg.Exclude) > 0 && matchesAny(cfg.Exclude, absPath) {
			return true
		}
		if len(buildExcludes) > 0 && matchesAny(buildExcludes, absPath) {
			return true
		}
		if len(cfg.Include) > 0 && !isDir && !matchesAny(cfg.Include, absPath) {
			return true
		}
		if gi != nil {
			rel, err := filepath.Rel(cfg.Project.Root, absPath)
			if err == nil && gi.ShouldIgnore(rel, isDir) {
				return true
			}
		}
		return false
	}
}
