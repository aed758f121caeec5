// Package report folds scan, extraction, and resolution results into one
// immutable Report. Aggregation is a pure function: no I/O, no clocks, and
// deterministic output for identical input.
package report

import (
	"github.com/jward/understory/internal/resolve"
	"github.com/jward/understory/internal/scan"
)

// DefaultSampleLimit caps the sample lists (file names per language, imports
// per file) when the caller does not choose a limit.
const DefaultSampleLimit = 5

// Options configures aggregation.
type Options struct {
	// ProjectRoot is echoed into the report verbatim.
	ProjectRoot string

	// SampleLimit caps sample lists. Zero means DefaultSampleLimit; a
	// negative value lifts the cap.
	SampleLimit int
}

// LanguageSummary counts a language's files and carries a capped sample of
// their paths. Count is always the full total, sampled or not.
type LanguageSummary struct {
	Count int      `json:"count"`
	Files []string `json:"files"`
}

// ImportEntry is one import of one file, in extraction order.
type ImportEntry struct {
	Raw        string   `json:"raw"`
	Kind       string   `json:"kind"`
	Candidates []string `json:"candidates,omitempty"`
	Resolved   bool     `json:"resolved"`
}

// Report is the complete result of one scan. It is never mutated after
// Aggregate returns it.
type Report struct {
	ProjectRoot         string                     `json:"projectRoot"`
	TotalFiles          int                        `json:"totalFiles"`
	ImportableFiles     int                        `json:"importableFiles"`
	ByLanguage          map[string]LanguageSummary `json:"byLanguage"`
	ImportRelationships map[string][]ImportEntry   `json:"importRelationships"`
	Warnings            []string                   `json:"warnings,omitempty"`
}

// Aggregate builds a Report. records must already be in the caller's display
// order (the engine sorts by relative path); sample caps keep the first
// SampleLimit entries of each list, so ordering decides what survives the
// cap. Files with zero extracted imports get no importRelationships entry.
func Aggregate(records []scan.FileRecord, resolvedByFile map[string][]resolve.Resolved, warnings []scan.Warning, opts Options) *Report {
	limit := opts.SampleLimit
	if limit == 0 {
		limit = DefaultSampleLimit
	}

	r := &Report{
		ProjectRoot:         opts.ProjectRoot,
		TotalFiles:          len(records),
		ByLanguage:          make(map[string]LanguageSummary),
		ImportRelationships: make(map[string][]ImportEntry),
	}

	for _, rec := range records {
		tag := string(rec.Tag)
		summary := r.ByLanguage[tag]
		summary.Count++
		if limit < 0 || len(summary.Files) < limit {
			summary.Files = append(summary.Files, rec.RelPath)
		}
		r.ByLanguage[tag] = summary

		if rec.Importable {
			r.ImportableFiles++
		}

		resolved, ok := resolvedByFile[rec.RelPath]
		if !ok || len(resolved) == 0 {
			continue
		}
		entries := make([]ImportEntry, 0, len(resolved))
		for _, res := range resolved {
			if limit >= 0 && len(entries) >= limit {
				break
			}
			entries = append(entries, ImportEntry{
				Raw:        res.Statement.Raw,
				Kind:       string(res.Statement.Kind),
				Candidates: res.Candidates,
				Resolved:   res.Resolved,
			})
		}
		r.ImportRelationships[rec.RelPath] = entries
	}

	for _, w := range warnings {
		r.Warnings = append(r.Warnings, w.String())
	}
	return r
}
