package understory

import (
	"github.com/jward/understory/internal/extract"
	"github.com/jward/understory/internal/lang"
	"github.com/jward/understory/internal/report"
	"github.com/jward/understory/internal/resolve"
	"github.com/jward/understory/internal/scan"
	"github.com/jward/understory/internal/store"
)

// Re-exported result and collaborator types, so callers of the root package
// never import internal packages directly.
type (
	// Report is the aggregated result of one Scan.
	Report = report.Report

	// LanguageSummary is a per-language file count plus a capped sample.
	LanguageSummary = report.LanguageSummary

	// ImportEntry is one import of one file, in extraction order.
	ImportEntry = report.ImportEntry

	// FileRecord describes one file retained by the walk.
	FileRecord = scan.FileRecord

	// Warning is a per-file condition that did not stop a scan.
	Warning = scan.Warning

	// Statement is one extracted import declaration.
	Statement = extract.Statement

	// Kind classifies an import target from its syntax.
	Kind = extract.Kind

	// Resolved pairs a statement with its candidate paths.
	Resolved = resolve.Resolved

	// Tag is a file's language classification.
	Tag = lang.Tag

	// Store persists scans to SQLite.
	Store = store.Store
)

// Import target kinds.
const (
	KindAbsolute          = extract.KindAbsolute
	KindRelativeSameLevel = extract.KindRelativeSameLevel
	KindRelativeParent    = extract.KindRelativeParent
	KindPackageDotted     = extract.KindPackageDotted
)

// NewStore opens a SQLite report store at dbPath and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	s, err := store.NewStore(dbPath)
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}
