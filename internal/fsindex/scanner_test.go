package fsindex

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/fsindex/internal/config"
)

func writeTestTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), []byte("package a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "b.md"), []byte("# hi"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "c.bin"), []byte{0, 1, 2}, 0o644))
	return root
}

func drainRecords(t *testing.T, out <-chan []FileRecord) []FileRecord {
	t.Helper()
	var all []FileRecord
	for batch := range out {
		all = append(all, batch...)
	}
	return all
}

func TestScannerFindsAllFiles(t *testing.T) {
	root := writeTestTree(t)
	cfg := config.Default()
	cfg.Tuning.ScanBatchSize = 2

	scanner := NewScanner(cfg, nil)
	counters := &Counters{}
	out := make(chan []FileRecord, 16)

	errCh := make(chan error, 1)
	go func() {
		defer close(out)
		errCh <- scanner.Scan(context.Background(), root, out, counters)
	}()

	records := drainRecords(t, out)
	require.NoError(t, <-errCh)
	assert.Len(t, records, 3)
}

func TestScannerRejectsInvalidRoot(t *testing.T) {
	cfg := config.Default()
	scanner := NewScanner(cfg, nil)
	out := make(chan []FileRecord, 1)
	err := scanner.Scan(context.Background(), filepath.Join(t.TempDir(), "missing"), out, &Counters{})
	close(out)
	require.Error(t, err)
	var fsErr *Error
	require.ErrorAs(t, err, &fsErr)
	assert.Equal(t, ErrInvalidRoot, fsErr.Type)
}

func TestScannerHonorsSkipPredicate(t *testing.T) {
	root := writeTestTree(t)
	cfg := config.Default()

	scanner := NewScanner(cfg, func(path string, isDir bool) bool {
		return filepath.Base(path) == "sub"
	})
	out := make(chan []FileRecord, 16)
	go func() {
		defer close(out)
		_ = scanner.Scan(context.Background(), root, out, &Counters{})
	}()

	records := drainRecords(t, out)
	assert.Len(t, records, 1)
	assert.Equal(t, "a.go", records[0].Name)
}

func TestScannerRespectsContextCancellation(t *testing.T) {
	root := writeTestTree(t)
	cfg := config.Default()
	scanner := NewScanner(cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := make(chan []FileRecord, 16)
	done := make(chan struct{})
	go func() {
		defer close(out)
		_ = scanner.Scan(ctx, root, out, &Counters{})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scan did not return after cancellation")
	}
}
