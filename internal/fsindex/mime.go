package fsindex

import (
	"mime"
	"path/filepath"
	"strings"
)

// textualApplicationTypes are the non-text/* media types treated as
// textual for content indexing (spec.md §4.2: Per-record transformation).
var textualApplicationTypes = map[string]bool{
	"application/json":       true,
	"application/javascript": true,
	"application/xml":        true,
	"application/x-yaml":     true,
	"application/x-toml":     true,
}

// extraExtensionTypes covers extensions the standard library's mime
// package either doesn't know or classifies inconsistently across
// platforms, so media-type inference is deterministic regardless of host
// mime.types configuration.
var extraExtensionTypes = map[string]string{
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".go":       "text/x-go",
	".rs":       "text/x-rust",
	".py":       "text/x-python",
	".rb":       "text/x-ruby",
	".ts":       "text/typescript",
	".tsx":      "text/typescript",
	".jsx":      "text/javascript",
	".js":       "application/javascript",
	".mjs":      "application/javascript",
	".json":     "application/json",
	".yaml":     "application/x-yaml",
	".yml":      "application/x-yaml",
	".toml":     "application/x-toml",
	".xml":      "application/xml",
	".sh":       "text/x-shellscript",
	".c":        "text/x-c",
	".h":        "text/x-c",
	".cpp":      "text/x-c++",
	".hpp":      "text/x-c++",
	".java":     "text/x-java",
	".kt":       "text/x-kotlin",
	".cs":       "text/x-csharp",
}

// extOf returns the lowercased extension of path, including the leading dot.
func extOf(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

// mimeTypeForExt infers a media type from a file extension. Returns empty
// when unknown, matching FileRecord.MimeType's "optional" contract
// (spec.md §3: FileRecord).
func mimeTypeForExt(ext string) string {
	if ext == "" {
		return ""
	}
	if t, ok := extraExtensionTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		// Strip parameters like "; charset=utf-8" for a clean comparison value.
		if i := strings.IndexByte(t, ';'); i >= 0 {
			t = strings.TrimSpace(t[:i])
		}
		return t
	}
	return ""
}

// isTextual reports whether mimeType should have its content indexed
// (spec.md §4.2: "text/*, and a fixed set of application types").
func isTextual(mimeType string) bool {
	if mimeType == "" {
		return false
	}
	if strings.HasPrefix(mimeType, "text/") {
		return true
	}
	return textualApplicationTypes[mimeType]
}
