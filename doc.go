// Package understory discovers and resolves import relationships across a
// polyglot project tree. It walks the tree, classifies files by extension,
// extracts declared import targets with per-language lexical patterns, and
// resolves each target against the scanned file set into a single report.
package understory
