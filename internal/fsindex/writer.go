package fsindex

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/index/scorch"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/cespare/xxhash/v2"

	"github.com/standardbeagle/fsindex/internal/config"
	"github.com/standardbeagle/fsindex/internal/debug"
)

// schemaVersion is bumped whenever Document's field set changes
// incompatibly. A mismatch between this value and the one recorded in an
// existing index's marker file triggers a discard-and-recreate (spec.md
// §4.3: Edge cases — schema mismatch).
const schemaVersion = "1"

const schemaMarkerFile = ".fsindex-schema"

// Writer owns the single bleve.Index for one on-disk index directory. Only
// the Writer's owning IndexingSession may call its mutating methods; it is
// not safe for concurrent use by two sessions (spec.md §4.3: Contract).
type Writer struct {
	cfg      *config.Config
	path     string
	index    bleve.Index
	counters *Counters

	mu      sync.Mutex
	pending int
	batch   *bleve.Batch
}

func buildMapping() mapping.IndexMapping {
	m := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()

	textField := bleve.NewTextFieldMapping()
	textField.Store = true

	keywordField := bleve.NewTextFieldMapping()
	keywordField.Store = true
	keywordField.Analyzer = "keyword"

	docMapping.AddFieldMappingsAt(fieldPath, keywordField)
	docMapping.AddFieldMappingsAt(fieldName, textField)
	docMapping.AddFieldMappingsAt(fieldSize, keywordField)
	docMapping.AddFieldMappingsAt(fieldMimeType, keywordField)
	docMapping.AddFieldMappingsAt(fieldExtension, keywordField)
	docMapping.AddFieldMappingsAt(fieldModified, keywordField)
	docMapping.AddFieldMappingsAt(fieldContent, textField)

	m.DefaultMapping = docMapping
	return m
}

// OpenWriter opens the index at path, creating it (and its mapping) if
// absent, and discarding + recreating it if a schema mismatch is detected
// (spec.md §4.3: Edge cases). counters may be nil for read-only callers
// (search/stats) that never call Add.
func OpenWriter(cfg *config.Config, path string, counters *Counters) (*Writer, error) {
	markerPath := schemaMarkerPath(path)

	if _, err := os.Stat(path); err == nil {
		if onDisk, rerr := os.ReadFile(markerPath); rerr != nil || string(onDisk) != schemaVersion {
			debug.LogWriter("schema mismatch at %s, recreating index", path)
			if err := os.RemoveAll(path); err != nil {
				return nil, NewError(ErrCommit, "discard_stale_index", err).WithPath(path)
			}
		}
	}

	idx, err := bleve.OpenUsing(path, map[string]interface{}{})
	if err != nil {
		idx, err = bleve.NewUsing(path, buildMapping(), scorch.Name, scorch.Name, nil)
		if err != nil {
			return nil, NewError(ErrCommit, "create_index", err).WithPath(path)
		}
		if werr := os.WriteFile(markerPath, []byte(schemaVersion), 0o644); werr != nil {
			debug.LogWriter("unable to write schema marker for %s: %v", path, werr)
		}
	}

	return &Writer{cfg: cfg, path: path, index: idx, counters: counters, batch: idx.NewBatch()}, nil
}

func schemaMarkerPath(indexPath string) string {
	return indexPath + "-" + schemaMarkerFile
}

// DocumentID derives a stable, content-independent document ID from a
// file's path (spec.md §4.3: Algorithm — "IDs are derived from path, not
// assigned sequentially, so re-indexing the same path updates rather than
// duplicates").
func DocumentID(path string) string {
	sum := xxhash.Sum64String(path)
	return fmt.Sprintf("%016x", sum)
}

// Add appends docs to the pending batch, flushing (and retrying per
// Tuning.MaxErrorRetries) whenever the batch reaches CommitBatchSize
// (spec.md §4.3: Algorithm). A document that fails to append is logged,
// counted, and skipped — only that document is abandoned, not the rest of
// the batch or the session (spec.md §7: WriteAppendFailure is
// per-document and recoverable, distinct from the retried, batch-level
// CommitFailure that flushLocked returns).
func (w *Writer) Add(ctx context.Context, docs []Document) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, d := range docs {
		if err := w.batch.Index(DocumentID(d.Path), d.fields()); err != nil {
			appendErr := NewError(ErrWriteAppend, "batch_index", err).WithPath(d.Path).WithRecoverable(true)
			debug.LogWriter("append failed for %s, skipping: %v", d.Path, appendErr)
			w.addError()
			continue
		}
		w.pending++
	}

	if w.pending >= w.cfg.Tuning.CommitBatchSize {
		return w.flushLocked(ctx)
	}
	return nil
}

func (w *Writer) addError() {
	if w.counters != nil {
		w.counters.AddError()
	}
}

// Flush commits any pending batch regardless of size, used when the
// preparer pool has drained and no more documents are coming (spec.md
// §4.3: Algorithm — final flush).
func (w *Writer) Flush(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked(ctx)
}

func (w *Writer) flushLocked(ctx context.Context) error {
	if w.pending == 0 {
		return nil
	}
	batch := w.batch
	w.batch = w.index.NewBatch()
	count := w.pending
	w.pending = 0

	delay := time.Duration(w.cfg.Tuning.ErrorRetryDelayMs) * time.Millisecond
	var lastErr error
	for attempt := 0; attempt <= w.cfg.Tuning.MaxErrorRetries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := w.index.Batch(batch); err != nil {
			lastErr = err
			debug.LogWriter("commit attempt %d/%d failed (%d docs): %v", attempt+1, w.cfg.Tuning.MaxErrorRetries+1, count, err)
			time.Sleep(delay)
			continue
		}
		return nil
	}
	return NewError(ErrCommit, "batch_commit", lastErr).WithRecoverable(false)
}

// Close releases the underlying index handle, waiting up to
// Tuning.CleanupTimeoutSec for in-flight merges to settle (spec.md §4.3:
// Edge cases — cleanup timeout).
func (w *Writer) Close() error {
	done := make(chan error, 1)
	go func() { done <- w.index.Close() }()

	select {
	case err := <-done:
		return err
	case <-time.After(time.Duration(w.cfg.Tuning.CleanupTimeoutSec) * time.Second):
		debug.LogWriter("cleanup exceeded %ds for %s, continuing in background", w.cfg.Tuning.CleanupTimeoutSec, w.path)
		return NewError(ErrCleanupTimeout, "close", fmt.Errorf("close did not complete within timeout")).WithRecoverable(true)
	}
}

// DocCount reports the number of documents currently committed to the
// index (spec.md's Supplemented Features: stats surface).
func (w *Writer) DocCount() (uint64, error) {
	return w.index.DocCount()
}

// Reader exposes the underlying bleve.Index for the query engine. Index
// writes and reads share the same handle, matching bleve's MVCC model.
func (w *Writer) Reader() bleve.Index {
	return w.index
}
