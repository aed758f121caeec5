package extract

import (
	"regexp"

	"github.com/jward/understory/internal/lang"
)

// captureKind tells inferKind how to read the captured target: a dotted
// module path or a quoted path literal.
type captureKind int

const (
	captureDotted captureKind = iota
	captureLiteral
)

// pattern is one (regexp, capture-kind) entry in a language's table.
// Anchored patterns are statement-style and must match at the start of the
// trimmed line; unanchored patterns are call-style and may match mid-line.
type pattern struct {
	re       *regexp.Regexp
	capture  captureKind
	anchored bool
}

// tables holds the ordered pattern list per language tag. Order is the
// precedence: the dotted-module family is declared before the string-literal
// family wherever a language carries both.
var tables = map[lang.Tag][]pattern{
	lang.Python: {
		// from <dotted|relative> import ...  — leading dots mark relative imports.
		{re: regexp.MustCompile(`^from\s+(\.*[A-Za-z_][\w.]*|\.+)\s+import\s`), capture: captureDotted, anchored: true},
		// import <dotted>
		{re: regexp.MustCompile(`^import\s+([A-Za-z_][\w.]*)`), capture: captureDotted, anchored: true},
	},
	lang.JavaScript: jsPatterns,
	lang.TypeScript: jsPatterns,
	lang.Go: {
		// import "path" / import alias "path". Parenthesized import blocks
		// span lines and are missed by design.
		{re: regexp.MustCompile(`^import\s+(?:[\w.]+\s+)?"([^"]+)"`), capture: captureLiteral, anchored: true},
	},
}

// jsPatterns covers both JavaScript and TypeScript.
var jsPatterns = []pattern{
	// import ... from "path"
	{re: regexp.MustCompile(`^import\s+[^'"]*?\bfrom\s+['"]([^'"]+)['"]`), capture: captureLiteral, anchored: true},
	// import "path" (side-effect import)
	{re: regexp.MustCompile(`^import\s*['"]([^'"]+)['"]`), capture: captureLiteral, anchored: true},
	// export ... from "path" (re-export)
	{re: regexp.MustCompile(`^export\s+[^'"]*?\bfrom\s+['"]([^'"]+)['"]`), capture: captureLiteral, anchored: true},
	// require("path") — call-style, allowed mid-line.
	{re: regexp.MustCompile(`\brequire\(\s*['"]([^'"]+)['"]\s*\)`), capture: captureLiteral, anchored: false},
}
