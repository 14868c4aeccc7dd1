// Package fsindex implements the indexing pipeline and query engine
// specified in spec.md: a parallel scanner feeding a document preparer
// pool feeding a single batched index writer, plus the query engine that
// reads the same on-disk index back.
package fsindex

import (
	"os"
	"time"
)

// FileRecord is produced by the Scanner and consumed by the preparer pool
// (spec.md §3).
type FileRecord struct {
	Path     string // absolute path
	Name     string // terminal path component
	Size     int64
	ModTime  time.Time
	HasMTime bool
	CTime    time.Time
	HasCTime bool
	IsDir    bool
	MimeType string // inferred from extension, empty if unknown
}

// Document is produced by a Preparer and consumed by the Writer (spec.md
// §3). It is a flat bag of short text fields matching bleve's schema-less
// document shape.
type Document struct {
	Path      string
	Name      string
	Size      string // decimal string
	MimeType  string
	Extension string
	Modified  string // decimal seconds-since-epoch, empty if absent
	Content   string // only present for small textual files
}

// fields returns the document as the map bleve indexes.
func (d Document) fields() map[string]interface{} {
	m := map[string]interface{}{
		fieldPath:      d.Path,
		fieldName:      d.Name,
		fieldSize:      d.Size,
		fieldMimeType:  d.MimeType,
		fieldExtension: d.Extension,
	}
	if d.Modified != "" {
		m[fieldModified] = d.Modified
	}
	if d.Content != "" {
		m[fieldContent] = d.Content
	}
	return m
}

// Schema field names (spec.md §3: Schema).
const (
	fieldPath      = "path"
	fieldName      = "name"
	fieldSize      = "size"
	fieldMimeType  = "mime_type"
	fieldExtension = "extension"
	fieldModified  = "modified"
	fieldContent   = "content"
)

// Phase names the writer's lifecycle state (spec.md §4.3: State machine).
type Phase string

const (
	PhaseIdle       Phase = "Idle"
	PhaseScanning   Phase = "Scanning"
	PhaseProcessing Phase = "Processing"
	PhaseFlushing   Phase = "Flushing"
	PhaseMerging    Phase = "Merging"
	PhaseComplete   Phase = "Complete"
	PhaseError      Phase = "Error"
)

// ProgressSnapshot is an immutable record delivered to the external
// observer (spec.md §3: ProgressSnapshot).
type ProgressSnapshot struct {
	TotalFiles     int64
	FilesProcessed int64
	Phase          Phase
	FilesPerSecond float64
	ElapsedSeconds float64
	Complete       bool
	Warning        string // stall/error annotation, empty if none
	ErrorMessage   string // populated only when Phase == PhaseError
}

// SearchHit is the query engine's projection of one matched document
// (spec.md §4.4: Execution).
type SearchHit struct {
	Path              string
	Name              string
	Size              int64
	SizeFormatted     string
	ModifiedFormatted string
	MimeType          string
	IsDir             bool
	Matches           []string // reserved for snippet highlighting; always empty today
	Score             float64
}

// fileInfoToRecord builds a FileRecord from a stat result, the shape the
// Scanner's per-entry visit step performs (spec.md §4.1: Algorithm).
func fileInfoToRecord(path string, info os.FileInfo) FileRecord {
	rec := FileRecord{
		Path:  path,
		Name:  info.Name(),
		Size:  info.Size(),
		IsDir: info.IsDir(),
	}
	if mt := info.ModTime(); !mt.IsZero() {
		rec.ModTime = mt
		rec.HasMTime = true
	}
	if !rec.IsDir {
		rec.MimeType = mimeTypeForExt(extOf(path))
	}
	return rec
}
