// Package extract pulls raw import targets out of source text using ordered,
// per-language lexical pattern tables. It is deliberately a line-based
// heuristic, not a parser: statements spanning multiple lines are missed and
// comment lines that resemble imports are tolerated, never canonicalized.
package extract

import (
	"strings"

	"github.com/jward/understory/internal/lang"
)

// Kind classifies an import target from its syntax alone. Resolution outcome
// never changes the kind.
type Kind string

const (
	KindAbsolute          Kind = "absolute"
	KindRelativeSameLevel Kind = "same-level"
	KindRelativeParent    Kind = "parent"
	KindPackageDotted     Kind = "dotted"
)

// Statement is one extracted import declaration. SourceFile is the
// root-relative path of the declaring file, filled in by the caller.
type Statement struct {
	SourceFile string
	Raw        string
	Kind       Kind
}

// Extract scans content line by line and returns import targets in order of
// appearance, duplicates preserved. Tags without a pattern table yield nil.
// Within a line the table's patterns are tried in declared order and the
// first match wins, so no line contributes more than one target.
func Extract(content string, tag lang.Tag) []Statement {
	table, ok := tables[tag]
	if !ok {
		return nil
	}

	var stmts []Statement
	// Equivalent to iterating strings.Lines(content): each line keeps its
	// terminating newline, and a final unterminated line is still yielded.
	for rest := content; rest != ""; {
		var line string
		if i := strings.IndexByte(rest, '\n'); i >= 0 {
			line, rest = rest[:i+1], rest[i+1:]
		} else {
			line, rest = rest, ""
		}
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		for _, p := range table {
			var raw string
			if p.anchored {
				m := p.re.FindStringSubmatch(trimmed)
				if m == nil {
					continue
				}
				raw = m[1]
			} else {
				m := p.re.FindStringSubmatch(line)
				if m == nil {
					continue
				}
				raw = m[1]
			}
			stmts = append(stmts, Statement{Raw: raw, Kind: inferKind(raw, p.capture)})
			break
		}
	}
	return stmts
}

// inferKind derives the kind from the target's own syntax.
func inferKind(raw string, capture captureKind) Kind {
	switch capture {
	case captureDotted:
		if strings.HasPrefix(raw, ".") {
			if leadingDots(raw) == 1 {
				return KindRelativeSameLevel
			}
			return KindRelativeParent
		}
		if strings.Contains(raw, ".") {
			return KindPackageDotted
		}
		return KindAbsolute
	default: // captureLiteral
		if strings.HasPrefix(raw, "./") || raw == "." {
			return KindRelativeSameLevel
		}
		if strings.HasPrefix(raw, "../") || raw == ".." {
			return KindRelativeParent
		}
		return KindAbsolute
	}
}

// leadingDots counts the relative-import markers at the start of a dotted
// target ("." = 1, "..pkg" = 2).
func leadingDots(raw string) int {
	n := 0
	for n < len(raw) && raw[n] == '.' {
		n++
	}
	return n
}
