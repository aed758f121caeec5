package store

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/understory/internal/extract"
	"github.com/jward/understory/internal/lang"
	"github.com/jward/understory/internal/report"
	"github.com/jward/understory/internal/resolve"
	"github.com/jward/understory/internal/scan"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { s.Close() })
	return s
}

func testRecords() []scan.FileRecord {
	return []scan.FileRecord{
		{Name: "main.py", RelPath: "main.py", Ext: ".py", Size: 20, Tag: lang.Python, Importable: true},
		{Name: "README.md", RelPath: "README.md", Ext: ".md", Size: 5, Tag: lang.Markup},
		{Name: "util.py", RelPath: "util.py", Ext: ".py", Size: 10, Tag: lang.Python, Importable: true},
	}
}

func testResolved() map[string][]resolve.Resolved {
	return map[string][]resolve.Resolved{
		"main.py": {
			{
				Statement:  extract.Statement{SourceFile: "main.py", Raw: "os", Kind: extract.KindAbsolute},
				Candidates: nil,
			},
			{
				Statement:  extract.Statement{SourceFile: "main.py", Raw: "util", Kind: extract.KindAbsolute},
				Candidates: []string{"util.py"},
				Resolved:   true,
			},
		},
	}
}

func TestMigrate_AllTablesExist(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	for _, table := range []string{"scans", "files", "imports", "import_candidates", "warnings", "metadata"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	require.NoError(t, s.Migrate())
}

func TestMigrate_SchemaVersionRecorded(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	var version string
	require.NoError(t, s.db.QueryRow("SELECT value FROM metadata WHERE key = 'schema_version'").Scan(&version))
	assert.Equal(t, "1", version)
}

func TestNewStore_WALMode(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	var mode string
	require.NoError(t, s.db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestSaveScan_RoundTrip(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	warnings := []scan.Warning{{Path: "locked.py", Message: "stat: permission denied"}}
	opts := report.Options{ProjectRoot: "/proj", SampleLimit: 5}

	scanID, err := s.SaveScan(testRecords(), testResolved(), warnings, nil, opts)
	require.NoError(t, err)
	require.Positive(t, scanID)

	got, err := s.ReportByScan(scanID)
	require.NoError(t, err)

	want := report.Aggregate(testRecords(), testResolved(), warnings, opts)
	assert.Equal(t, want, got)
}

func TestSaveScan_CandidateOrderSurvives(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	byFile := map[string][]resolve.Resolved{
		"main.py": {{
			Statement:  extract.Statement{SourceFile: "main.py", Raw: "util", Kind: extract.KindAbsolute},
			Candidates: []string{"b/util.py", "a/util.py"},
			Resolved:   true,
		}},
	}
	records := []scan.FileRecord{
		{Name: "main.py", RelPath: "main.py", Ext: ".py", Tag: lang.Python, Importable: true},
	}

	scanID, err := s.SaveScan(records, byFile, nil, nil, report.Options{ProjectRoot: "/p"})
	require.NoError(t, err)

	got, err := s.ReportByScan(scanID)
	require.NoError(t, err)
	entries := got.ImportRelationships["main.py"]
	require.Len(t, entries, 1)
	assert.Equal(t, []string{"b/util.py", "a/util.py"}, entries[0].Candidates)
}

func TestLatestScanID_Empty(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	_, err := s.LatestScanID()
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestLatestReport_PicksNewestScan(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	_, err := s.SaveScan(testRecords(), nil, nil, nil, report.Options{ProjectRoot: "/first"})
	require.NoError(t, err)
	_, err = s.SaveScan(testRecords(), nil, nil, nil, report.Options{ProjectRoot: "/second"})
	require.NoError(t, err)

	got, err := s.LatestReport()
	require.NoError(t, err)
	assert.Equal(t, "/second", got.ProjectRoot)
}

func TestHashesByScan(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	hashes := map[string]string{"main.py": "aaa", "util.py": "bbb"}
	scanID, err := s.SaveScan(testRecords(), nil, nil, hashes, report.Options{ProjectRoot: "/p"})
	require.NoError(t, err)

	got, err := s.HashesByScan(scanID)
	require.NoError(t, err)
	// README.md has no hash and is absent.
	assert.Equal(t, hashes, got)
}
