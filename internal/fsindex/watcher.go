package fsindex

import (
	"github.com/fsnotify/fsnotify"
)

// Watcher observes filesystem change events under a root directory. It is
// not wired into IndexingSession: live re-indexing on file-change events is
// out of scope for this package (spec.md §5: Non-goals — "no incremental
// update on file change; re-running start_indexing rebuilds from scratch").
// It exists so the capability has a clear home if that non-goal is lifted.
type Watcher struct {
	inner *fsnotify.Watcher
}

// NewWatcher opens an fsnotify watcher with no paths registered.
func NewWatcher() (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{inner: w}, nil
}

// Add registers path for change notifications.
func (w *Watcher) Add(path string) error {
	return w.inner.Add(path)
}

// Events exposes the underlying fsnotify event stream.
func (w *Watcher) Events() <-chan fsnotify.Event {
	return w.inner.Events
}

// Errors exposes the underlying fsnotify error stream.
func (w *Watcher) Errors() <-chan error {
	return w.inner.Errors
}

// Close stops the watcher and releases its OS resources.
func (w *Watcher) Close() error {
	return w.inner.Close()
}
