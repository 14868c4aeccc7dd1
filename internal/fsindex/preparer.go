package fsindex

import (
	"context"
	"errors"
	"os"
	"strconv"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/fsindex/internal/config"
	"github.com/standardbeagle/fsindex/internal/debug"
)

var errInvalidUTF8 = errors.New("content is not valid UTF-8")

// PreparerPool turns FileRecord batches into Document batches, reading
// small textual files' content and inferring extension/mime fields
// (spec.md §4.2). Workers are bounded by Tuning.MaxConcurrentPrep.
type PreparerPool struct {
	cfg      *config.Config
	counters *Counters
}

// NewPreparerPool creates a pool bound to cfg's concurrency and content-size
// limits.
func NewPreparerPool(cfg *config.Config, counters *Counters) *PreparerPool {
	return &PreparerPool{cfg: cfg, counters: counters}
}

// Run drains in, producing prepared batches on out, until in is closed or
// ctx is cancelled. It closes out before returning.
func (p *PreparerPool) Run(ctx context.Context, in <-chan []FileRecord, out chan<- []Document) error {
	defer close(out)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Tuning.MaxConcurrentPrep)

	for {
		select {
		case <-gctx.Done():
			return g.Wait()
		case batch, ok := <-in:
			if !ok {
				return g.Wait()
			}
			g.Go(func() error {
				docs := make([]Document, 0, len(batch))
				for _, rec := range batch {
					docs = append(docs, p.prepare(rec))
				}
				return sendBatch(gctx, out, docs, p.cfg.Tuning.MaxSendBackoffMs)
			})
		}
	}
}

// prepare transforms one FileRecord into a Document, reading content only
// for textual files at or under MaxContentBytes (spec.md §4.2: Per-record
// transformation).
func (p *PreparerPool) prepare(rec FileRecord) Document {
	doc := Document{
		Path:      rec.Path,
		Name:      rec.Name,
		Size:      strconv.FormatInt(rec.Size, 10),
		MimeType:  rec.MimeType,
		Extension: extOf(rec.Path),
	}
	if rec.HasMTime {
		doc.Modified = strconv.FormatInt(rec.ModTime.Unix(), 10)
	}

	if rec.IsDir || rec.Size <= 0 {
		return doc
	}
	if !isTextual(rec.MimeType) {
		return doc
	}
	if rec.Size > p.cfg.Index.MaxContentBytes {
		return doc
	}

	content, err := readFileCapped(rec.Path, p.cfg.Index.MaxContentBytes)
	if err != nil {
		debug.LogPrepare("content read failed for %s: %v", rec.Path, err)
		p.counters.AddError()
		// Content omission is recoverable: the document is still indexed by
		// its metadata fields (spec.md §4.2: Failure semantics).
		return doc
	}
	if !utf8.ValidString(content) {
		decodeErr := NewError(ErrReadContent, "decode", errInvalidUTF8).WithPath(rec.Path).WithRecoverable(true)
		debug.LogPrepare("content decode failed for %s: %v", rec.Path, decodeErr)
		p.counters.AddError()
		// A textual mime type doesn't guarantee a valid encoding; omit
		// Content rather than index raw bytes as if they were text
		// (spec.md §4.2: Failure semantics).
		return doc
	}
	doc.Content = content
	return doc
}

// readFileCapped reads path's contents, refusing to read past limit bytes.
func readFileCapped(path string, limit int64) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}
	if info.Size() > limit {
		return "", os.ErrInvalid
	}

	buf := make([]byte, info.Size())
	n, err := f.Read(buf)
	if err != nil && n == 0 {
		return "", err
	}
	return string(buf[:n]), nil
}
