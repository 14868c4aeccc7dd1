package fsindex

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCountersSnapshot(t *testing.T) {
	c := &Counters{}
	c.AddDiscovered(5)
	c.AddProcessed(3)
	c.AddError()
	c.SetTotal(5)

	discovered, processed, errs, total := c.snapshot()
	assert.Equal(t, int64(5), discovered)
	assert.Equal(t, int64(3), processed)
	assert.Equal(t, int64(1), errs)
	assert.Equal(t, int64(5), total)
}

func TestProgressAggregatorSnapshotBasics(t *testing.T) {
	c := &Counters{}
	c.SetTotal(10)
	c.AddProcessed(4)

	agg := NewProgressAggregator(c, 10*time.Millisecond)
	agg.SetPhase(PhaseProcessing, "")

	snap := agg.Snapshot(false)
	assert.Equal(t, int64(10), snap.TotalFiles)
	assert.Equal(t, int64(4), snap.FilesProcessed)
	assert.Equal(t, PhaseProcessing, snap.Phase)
	assert.False(t, snap.Complete)
}

func TestProgressAggregatorFinalSnapshotIsComplete(t *testing.T) {
	c := &Counters{}
	agg := NewProgressAggregator(c, 10*time.Millisecond)
	agg.SetPhase(PhaseComplete, "")
	snap := agg.Snapshot(true)
	assert.True(t, snap.Complete)
	assert.Equal(t, PhaseComplete, snap.Phase)
}

func TestProgressAggregatorErrorPhaseCarriesMessage(t *testing.T) {
	c := &Counters{}
	agg := NewProgressAggregator(c, 10*time.Millisecond)
	agg.SetPhase(PhaseError, "disk full")
	snap := agg.Snapshot(true)
	assert.Equal(t, "disk full", snap.ErrorMessage)
}

func TestProgressAggregatorFilesPerSecondIsWindowedNotCumulative(t *testing.T) {
	c := &Counters{}
	agg := NewProgressAggregator(c, 10*time.Millisecond)

	c.AddProcessed(100)
	time.Sleep(20 * time.Millisecond)
	first := agg.Snapshot(false)
	assert.Greater(t, first.FilesPerSecond, 0.0)

	// No further progress: the next sample's rate reflects the empty
	// window since the last sample, not the cumulative average since
	// start, so it drops toward zero instead of staying pinned near the
	// first sample's rate.
	time.Sleep(20 * time.Millisecond)
	second := agg.Snapshot(false)
	assert.Equal(t, 0.0, second.FilesPerSecond)
}

func TestProgressAggregatorDetectsStall(t *testing.T) {
	c := &Counters{}
	agg := NewProgressAggregator(c, 10*time.Millisecond)
	var last ProgressSnapshot
	for i := 0; i < stallThreshold+1; i++ {
		last = agg.Snapshot(false)
	}
	assert.NotEmpty(t, last.Warning)
}

func TestProgressAggregatorRunEmitsOnInterval(t *testing.T) {
	c := &Counters{}
	agg := NewProgressAggregator(c, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	var count int
	agg.Run(ctx, func(ProgressSnapshot) { count++ })
	assert.Greater(t, count, 0)
}
