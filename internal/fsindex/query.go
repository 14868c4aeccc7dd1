package fsindex

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search"
)

var (
	errEmptyQuery  = errors.New("query text must not be empty")
	errNoIndexOpen = errors.New("no index is open to search")
)

// topK is the maximum number of ranked results returned per query (spec.md
// §4.4: Contract).
const topK = 100

// fieldBoosts gives each searchable field its relative weight (spec.md
// §4.4: Contract).
var fieldBoosts = map[string]float64{
	fieldName:      3.0,
	fieldPath:      2.0,
	fieldContent:   1.0,
	fieldExtension: 1.0,
	fieldMimeType:  1.0,
}

// searchFieldOrder fixes iteration order so the built query (and therefore
// its score) is deterministic across runs (spec.md §4.4: Invariants).
var searchFieldOrder = []string{fieldName, fieldPath, fieldContent, fieldExtension, fieldMimeType}

// Search runs text against every boosted field of the index behind reader,
// returning up to topK hits ordered by descending score with a path
// tie-break (spec.md §4.4: Algorithm).
func Search(reader bleve.Index, text string) ([]SearchHit, error) {
	if text == "" {
		return nil, NewError(ErrBadQuery, "search", errEmptyQuery).WithRecoverable(false)
	}
	if reader == nil {
		return nil, NewError(ErrNoIndex, "search", errNoIndexOpen).WithRecoverable(false)
	}

	// Each field's clause is a real query-string query, not a bare match
	// query, so the index's own parser gets a chance to reject malformed
	// syntax (unbalanced quotes, stray operators) as BadQuery instead of
	// silently matching raw text (spec.md §4.4: Parser).
	disjunction := bleve.NewDisjunctionQuery()
	for _, field := range searchFieldOrder {
		fq := bleve.NewQueryStringQuery(fmt.Sprintf("%s:(%s)", field, text))
		fq.SetBoost(fieldBoosts[field])
		disjunction.AddQuery(fq)
	}

	req := bleve.NewSearchRequestOptions(disjunction, topK, 0, false)
	req.Fields = []string{fieldPath, fieldName, fieldSize, fieldMimeType, fieldExtension, fieldModified}

	result, err := reader.Search(req)
	if err != nil {
		return nil, NewError(ErrBadQuery, "search", err).WithRecoverable(false)
	}

	hits := make([]SearchHit, 0, len(result.Hits))
	for _, dm := range result.Hits {
		hits = append(hits, hitFromMatch(dm))
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Path < hits[j].Path
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func hitFromMatch(dm *search.DocumentMatch) SearchHit {
	hit := SearchHit{Score: dm.Score}
	if v, ok := dm.Fields[fieldPath].(string); ok {
		hit.Path = v
	}
	if v, ok := dm.Fields[fieldName].(string); ok {
		hit.Name = v
	}
	if v, ok := dm.Fields[fieldMimeType].(string); ok {
		hit.MimeType = v
	}
	// IsDir is true iff the stored mime_type is absent or empty. Files whose
	// extension has no known media type also carry an empty mime_type, so
	// they are reported with IsDir set as well.
	hit.IsDir = hit.MimeType == ""
	if raw, ok := dm.Fields[fieldSize]; ok {
		if size, err := strconv.ParseInt(asString(raw), 10, 64); err == nil {
			hit.Size = size
			hit.SizeFormatted = formatSize(size)
		}
	}
	if raw, ok := dm.Fields[fieldModified]; ok {
		if secs, err := strconv.ParseInt(asString(raw), 10, 64); err == nil {
			hit.ModifiedFormatted = formatModified(time.Unix(secs, 0))
		}
	}
	if hit.ModifiedFormatted == "" {
		hit.ModifiedFormatted = "unknown"
	}
	hit.Matches = []string{}
	return hit
}

func asString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', 0, 64)
	default:
		return ""
	}
}

// formatSize renders a byte count the way spec.md's Supplemented Features
// (query-time size/modified formatting) resolve the "stored vs computed"
// Open Question: computed fresh on every query, never persisted.
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return strconv.FormatInt(bytes, 10) + " B"
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	units := []string{"KiB", "MiB", "GiB", "TiB", "PiB"}
	return strconv.FormatFloat(float64(bytes)/float64(div), 'f', 1, 64) + " " + units[exp]
}

// formatModified renders a modification time as an absolute UTC timestamp
// ("2006-01-02 15:04:05"). The "unknown" placeholder for an absent time is
// applied by the caller, hitFromMatch.
func formatModified(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05")
}
