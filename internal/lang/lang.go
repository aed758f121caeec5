// Package lang classifies files into a closed set of language tags based on
// file extension. The extension table is the single source of truth for both
// classification and importability: a file is importable iff its tag has
// extraction patterns.
package lang

import (
	"path/filepath"
	"strings"
)

// Tag is a closed classification label assigned to a file from its extension.
// Adding a language means adding a constant here, rows to the extension table,
// and a pattern table in internal/extract — all checked at compile time.
type Tag string

const (
	Python     Tag = "python"
	JavaScript Tag = "javascript"
	TypeScript Tag = "typescript"
	Go         Tag = "go"
	Markup     Tag = "markup"
	Other      Tag = "other"
)

// extToTag maps file extensions (lowercase, with leading dot) to tags.
var extToTag = map[string]Tag{
	".py":  Python,
	".pyi": Python,
	".js":  JavaScript,
	".jsx": JavaScript,
	".mjs": JavaScript,
	".cjs": JavaScript,
	".ts":  TypeScript,
	".tsx": TypeScript,
	".go":  Go,

	// Markup and config formats: classified and counted, never import-scanned.
	".md":   Markup,
	".rst":  Markup,
	".html": Markup,
	".css":  Markup,
	".json": Markup,
	".yaml": Markup,
	".yml":  Markup,
	".toml": Markup,
	".xml":  Markup,
}

// importable reports which tags have extraction pattern tables.
var importable = map[Tag]bool{
	Python:     true,
	JavaScript: true,
	TypeScript: true,
	Go:         true,
}

// Classify returns the tag for an extension (with leading dot, any case).
// Unknown extensions, including the empty string, map to Other.
func Classify(ext string) Tag {
	if tag, ok := extToTag[strings.ToLower(ext)]; ok {
		return tag
	}
	return Other
}

// ForFile returns the tag for a file path based on its extension.
func ForFile(path string) Tag {
	return Classify(filepath.Ext(path))
}

// Importable reports whether files with this tag are scanned for imports.
func Importable(tag Tag) bool {
	return importable[tag]
}

// Tags returns all tags that have extraction support, in a fixed order.
func Tags() []Tag {
	return []Tag{Python, JavaScript, TypeScript, Go}
}
