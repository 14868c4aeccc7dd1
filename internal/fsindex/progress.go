package fsindex

import (
	"context"
	"sync/atomic"
	"time"
)

// Counters are the atomic tallies every pipeline stage writes to.
// A single Counters is shared by the Scanner, the Preparer pool, and the
// Writer for the lifetime of one IndexingSession (spec.md §4.5: Contract).
type Counters struct {
	discovered int64
	processed  int64
	errors     int64
	total      int64 // set once the scan finishes; 0 means "still scanning"
}

func (c *Counters) AddDiscovered(n int64) { atomic.AddInt64(&c.discovered, n) }
func (c *Counters) AddProcessed(n int64)  { atomic.AddInt64(&c.processed, n) }
func (c *Counters) AddError()             { atomic.AddInt64(&c.errors, 1) }
func (c *Counters) SetTotal(n int64)      { atomic.StoreInt64(&c.total, n) }

func (c *Counters) snapshot() (discovered, processed, errs, total int64) {
	return atomic.LoadInt64(&c.discovered), atomic.LoadInt64(&c.processed), atomic.LoadInt64(&c.errors), atomic.LoadInt64(&c.total)
}

// stallThreshold is the number of consecutive unchanged samples after which
// the aggregator annotates a snapshot with a stall warning (spec.md §4.5:
// Edge cases).
const stallThreshold = 20

// ProgressAggregator samples Counters on a fixed interval and emits
// ProgressSnapshot values preserving monotonicity of FilesProcessed and
// ElapsedSeconds (spec.md §4.5: Invariants).
type ProgressAggregator struct {
	counters *Counters
	interval time.Duration
	start    time.Time

	lastProcessed  int64
	lastSampleTime time.Time
	stallCount     int

	phase      atomic.Value // Phase
	phaseErrVal atomic.Value // string, only valid when phase == PhaseError
}

// NewProgressAggregator creates an aggregator sampling counters every
// interval, starting the elapsed-time clock immediately.
func NewProgressAggregator(counters *Counters, interval time.Duration) *ProgressAggregator {
	now := time.Now()
	a := &ProgressAggregator{counters: counters, interval: interval, start: now, lastSampleTime: now}
	a.phase.Store(PhaseIdle)
	a.phaseErrVal.Store("")
	return a
}

// SetPhase records the writer's current lifecycle phase, optionally with an
// error message (only meaningful when phase is PhaseError).
func (a *ProgressAggregator) SetPhase(phase Phase, errMsg string) {
	a.phase.Store(phase)
	a.phaseErrVal.Store(errMsg)
}

// Run samples the counters every interval, invoking emit with each
// snapshot, until ctx is cancelled. The final sample before return always
// has Complete set by the caller via a last explicit call to Snapshot.
func (a *ProgressAggregator) Run(ctx context.Context, emit func(ProgressSnapshot)) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			emit(a.Snapshot(false))
		}
	}
}

// Snapshot produces one ProgressSnapshot from the current counter values.
// FilesPerSecond is a windowed rate — the delta in FilesProcessed since the
// previous sample divided by the elapsed time since that sample (spec.md
// §4.5: Algorithm) — not a cumulative all-time average, so it tracks the
// pipeline's current throughput rather than smoothing over its startup
// ramp-up.
func (a *ProgressAggregator) Snapshot(complete bool) ProgressSnapshot {
	discovered, processed, errs, total := a.counters.snapshot()

	now := time.Now()
	windowProcessed := processed - a.lastProcessed
	windowSeconds := now.Sub(a.lastSampleTime).Seconds()

	if processed == a.lastProcessed {
		a.stallCount++
	} else {
		a.stallCount = 0
	}
	a.lastProcessed = processed
	a.lastSampleTime = now

	snap := ProgressSnapshot{
		TotalFiles:     total,
		FilesProcessed: processed,
		Phase:          a.phase.Load().(Phase),
		ElapsedSeconds: time.Since(a.start).Seconds(),
		Complete:       complete,
	}
	if total == 0 {
		snap.TotalFiles = discovered
	}
	if windowSeconds > 0 {
		snap.FilesPerSecond = float64(windowProcessed) / windowSeconds
	}
	if errs > 0 {
		snap.Warning = "errors encountered during indexing"
	}
	if a.stallCount >= stallThreshold {
		snap.Warning = "no progress in the last samples"
	}
	if snap.Phase == PhaseError {
		snap.ErrorMessage = a.phaseErrVal.Load().(string)
	}
	return snap
}
