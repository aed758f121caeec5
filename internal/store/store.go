// Package store persists scan results to SQLite so reports can be rebuilt
// without rescanning. It stores the raw walk and resolution output, not the
// rendered report: reconstruction re-runs aggregation with the scan's own
// sample limit, so a reloaded report is identical to the original.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/jward/understory/internal/extract"
	"github.com/jward/understory/internal/lang"
	"github.com/jward/understory/internal/report"
	"github.com/jward/understory/internal/resolve"
	"github.com/jward/understory/internal/scan"
)

// Store is the SQLite data access layer for persisted scans.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use in transactions.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate creates all tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	if _, err := s.db.Exec(schemaDDL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS scans (
  id               INTEGER PRIMARY KEY,
  project_root     TEXT NOT NULL,
  total_files      INTEGER NOT NULL,
  importable_files INTEGER NOT NULL,
  sample_limit     INTEGER NOT NULL,
  created_at       TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS files (
  id          INTEGER PRIMARY KEY,
  scan_id     INTEGER NOT NULL REFERENCES scans(id),
  rel_path    TEXT NOT NULL,
  name        TEXT NOT NULL,
  ext         TEXT NOT NULL,
  language    TEXT NOT NULL,
  importable  BOOLEAN NOT NULL,
  size        INTEGER NOT NULL,
  hash        TEXT,
  position    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS imports (
  id          INTEGER PRIMARY KEY,
  scan_id     INTEGER NOT NULL REFERENCES scans(id),
  source_file TEXT NOT NULL,
  raw         TEXT NOT NULL,
  kind        TEXT NOT NULL,
  position    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS import_candidates (
  id        INTEGER PRIMARY KEY,
  import_id INTEGER NOT NULL REFERENCES imports(id),
  rel_path  TEXT NOT NULL,
  ordinal   INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS warnings (
  id      INTEGER PRIMARY KEY,
  scan_id INTEGER NOT NULL REFERENCES scans(id),
  path    TEXT NOT NULL,
  message TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS metadata (
  key   TEXT PRIMARY KEY,
  value TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_files_scan ON files(scan_id);
CREATE INDEX IF NOT EXISTS idx_files_hash ON files(hash);
CREATE INDEX IF NOT EXISTS idx_imports_scan ON imports(scan_id);
CREATE INDEX IF NOT EXISTS idx_imports_source ON imports(scan_id, source_file);
CREATE INDEX IF NOT EXISTS idx_candidates_import ON import_candidates(import_id);
CREATE INDEX IF NOT EXISTS idx_warnings_scan ON warnings(scan_id);

INSERT OR IGNORE INTO metadata (key, value) VALUES ('schema_version', '1');
`

// SaveScan transactionally persists one scan's raw results and returns the
// new scan ID. records must be in display order (sorted by rel_path); file
// positions and import positions preserve that order and the extraction
// order for reconstruction. hashes maps rel_path to content hash and may be
// nil.
func (s *Store) SaveScan(records []scan.FileRecord, resolvedByFile map[string][]resolve.Resolved, warnings []scan.Warning, hashes map[string]string, opts report.Options) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	importable := 0
	for _, r := range records {
		if r.Importable {
			importable++
		}
	}

	res, err := tx.Exec(
		"INSERT INTO scans (project_root, total_files, importable_files, sample_limit, created_at) VALUES (?, ?, ?, ?, ?)",
		opts.ProjectRoot, len(records), importable, opts.SampleLimit, time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert scan: %w", err)
	}
	scanID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("scan id: %w", err)
	}

	fileStmt, err := tx.Prepare(
		"INSERT INTO files (scan_id, rel_path, name, ext, language, importable, size, hash, position) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return 0, fmt.Errorf("prepare file insert: %w", err)
	}
	defer fileStmt.Close()

	for i, r := range records {
		var hash any
		if h, ok := hashes[r.RelPath]; ok {
			hash = h
		}
		if _, err := fileStmt.Exec(scanID, r.RelPath, r.Name, r.Ext, string(r.Tag), r.Importable, r.Size, hash, i); err != nil {
			return 0, fmt.Errorf("insert file %s: %w", r.RelPath, err)
		}
	}

	// Iterate records, not the map, so import row order is deterministic.
	for _, r := range records {
		for i, res := range resolvedByFile[r.RelPath] {
			row, err := tx.Exec(
				"INSERT INTO imports (scan_id, source_file, raw, kind, position) VALUES (?, ?, ?, ?, ?)",
				scanID, r.RelPath, res.Statement.Raw, string(res.Statement.Kind), i,
			)
			if err != nil {
				return 0, fmt.Errorf("insert import %s: %w", res.Statement.Raw, err)
			}
			importID, err := row.LastInsertId()
			if err != nil {
				return 0, fmt.Errorf("import id: %w", err)
			}
			for j, candidate := range res.Candidates {
				if _, err := tx.Exec(
					"INSERT INTO import_candidates (import_id, rel_path, ordinal) VALUES (?, ?, ?)",
					importID, candidate, j,
				); err != nil {
					return 0, fmt.Errorf("insert candidate %s: %w", candidate, err)
				}
			}
		}
	}

	for _, w := range warnings {
		if _, err := tx.Exec(
			"INSERT INTO warnings (scan_id, path, message) VALUES (?, ?, ?)",
			scanID, w.Path, w.Message,
		); err != nil {
			return 0, fmt.Errorf("insert warning: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit scan: %w", err)
	}
	return scanID, nil
}

// LatestScanID returns the most recent scan's ID, or sql.ErrNoRows when the
// database holds no scans.
func (s *Store) LatestScanID() (int64, error) {
	var id int64
	err := s.db.QueryRow("SELECT id FROM scans ORDER BY id DESC LIMIT 1").Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// ReportByScan rebuilds the report for a stored scan by re-running
// aggregation over the persisted raw results with the scan's sample limit.
func (s *Store) ReportByScan(scanID int64) (*report.Report, error) {
	var projectRoot string
	var sampleLimit int
	err := s.db.QueryRow(
		"SELECT project_root, sample_limit FROM scans WHERE id = ?", scanID,
	).Scan(&projectRoot, &sampleLimit)
	if err != nil {
		return nil, fmt.Errorf("load scan %d: %w", scanID, err)
	}

	records, err := s.loadRecords(scanID)
	if err != nil {
		return nil, err
	}
	resolvedByFile, err := s.loadImports(scanID)
	if err != nil {
		return nil, err
	}
	warnings, err := s.loadWarnings(scanID)
	if err != nil {
		return nil, err
	}

	return report.Aggregate(records, resolvedByFile, warnings, report.Options{
		ProjectRoot: projectRoot,
		SampleLimit: sampleLimit,
	}), nil
}

// LatestReport rebuilds the report for the most recent scan.
func (s *Store) LatestReport() (*report.Report, error) {
	id, err := s.LatestScanID()
	if err != nil {
		return nil, fmt.Errorf("latest scan: %w", err)
	}
	return s.ReportByScan(id)
}

// HashesByScan returns rel_path → content hash for a stored scan, for
// detecting an unchanged rescan. Files without a hash are absent.
func (s *Store) HashesByScan(scanID int64) (map[string]string, error) {
	rows, err := s.db.Query(
		"SELECT rel_path, hash FROM files WHERE scan_id = ? AND hash IS NOT NULL", scanID)
	if err != nil {
		return nil, fmt.Errorf("query hashes: %w", err)
	}
	defer rows.Close()

	hashes := make(map[string]string)
	for rows.Next() {
		var rel, hash string
		if err := rows.Scan(&rel, &hash); err != nil {
			return nil, fmt.Errorf("scan hash row: %w", err)
		}
		hashes[rel] = hash
	}
	return hashes, rows.Err()
}

func (s *Store) loadRecords(scanID int64) ([]scan.FileRecord, error) {
	rows, err := s.db.Query(
		"SELECT rel_path, name, ext, language, importable, size FROM files WHERE scan_id = ? ORDER BY position", scanID)
	if err != nil {
		return nil, fmt.Errorf("query files: %w", err)
	}
	defer rows.Close()

	var records []scan.FileRecord
	for rows.Next() {
		var r scan.FileRecord
		var language string
		if err := rows.Scan(&r.RelPath, &r.Name, &r.Ext, &language, &r.Importable, &r.Size); err != nil {
			return nil, fmt.Errorf("scan file row: %w", err)
		}
		r.Tag = lang.Tag(language)
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *Store) loadImports(scanID int64) (map[string][]resolve.Resolved, error) {
	rows, err := s.db.Query(
		"SELECT id, source_file, raw, kind FROM imports WHERE scan_id = ? ORDER BY source_file, position", scanID)
	if err != nil {
		return nil, fmt.Errorf("query imports: %w", err)
	}
	defer rows.Close()

	type row struct {
		id     int64
		source string
		raw    string
		kind   string
	}
	var imports []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.id, &r.source, &r.raw, &r.kind); err != nil {
			return nil, fmt.Errorf("scan import row: %w", err)
		}
		imports = append(imports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	byFile := make(map[string][]resolve.Resolved)
	for _, imp := range imports {
		candidates, err := s.loadCandidates(imp.id)
		if err != nil {
			return nil, err
		}
		byFile[imp.source] = append(byFile[imp.source], resolve.Resolved{
			Statement: extract.Statement{
				SourceFile: imp.source,
				Raw:        imp.raw,
				Kind:       extract.Kind(imp.kind),
			},
			Candidates: candidates,
			Resolved:   len(candidates) > 0,
		})
	}
	return byFile, nil
}

func (s *Store) loadCandidates(importID int64) ([]string, error) {
	rows, err := s.db.Query(
		"SELECT rel_path FROM import_candidates WHERE import_id = ? ORDER BY ordinal", importID)
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}
	defer rows.Close()

	var candidates []string
	for rows.Next() {
		var rel string
		if err := rows.Scan(&rel); err != nil {
			return nil, fmt.Errorf("scan candidate row: %w", err)
		}
		candidates = append(candidates, rel)
	}
	return candidates, rows.Err()
}

func (s *Store) loadWarnings(scanID int64) ([]scan.Warning, error) {
	rows, err := s.db.Query(
		"SELECT path, message FROM warnings WHERE scan_id = ? ORDER BY id", scanID)
	if err != nil {
		return nil, fmt.Errorf("query warnings: %w", err)
	}
	defer rows.Close()

	var warnings []scan.Warning
	for rows.Next() {
		var w scan.Warning
		if err := rows.Scan(&w.Path, &w.Message); err != nil {
			return nil, fmt.Errorf("scan warning row: %w", err)
		}
		warnings = append(warnings, w)
	}
	return warnings, rows.Err()
}
