package understory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTree creates files under root from relative path → content.
func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		full := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
}

// exampleTree mirrors a small polyglot project: a root-level Python script
// with a sibling module, a Python package, and a JS corner.
func exampleTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"main.py": "import os\n" +
			"import sibling_module\n" +
			"from py.python_utils import analyze\n",
		"sibling_module.py":    "import json\n",
		"py/__init__.py":       "from .sibling_module import DataProcessor\n",
		"py/sibling_module.py": "import collections\n",
		"py/test.py": "from . import sibling_module\n" +
			"from .sibling_module import DataProcessor\n",
		"py/python_utils.py": "import os\n",
		"web/app.js": "import { helper } from \"./helper\";\n" +
			"const fs = require('fs');\n",
		"web/helper.js": "export function helper() {}\n",
		"README.md":     "# example\n",
	})
	return dir
}

func entryByRaw(t *testing.T, entries []ImportEntry, raw string) ImportEntry {
	t.Helper()
	for _, e := range entries {
		if e.Raw == raw {
			return e
		}
	}
	t.Fatalf("no entry with raw %q in %v", raw, entries)
	return ImportEntry{}
}

func TestEngine_ScanExampleTree(t *testing.T) {
	t.Parallel()

	dir := exampleTree(t)
	rep, err := New().Scan(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, dir, rep.ProjectRoot)
	assert.Equal(t, 9, rep.TotalFiles)
	assert.Equal(t, 8, rep.ImportableFiles)
	assert.Equal(t, 6, rep.ByLanguage["python"].Count)
	assert.Equal(t, 2, rep.ByLanguage["javascript"].Count)
	assert.Equal(t, 1, rep.ByLanguage["markup"].Count)
	assert.Empty(t, rep.Warnings)
}

func TestEngine_ResolvesAcrossKinds(t *testing.T) {
	t.Parallel()

	dir := exampleTree(t)
	rep, err := New().Scan(context.Background(), dir)
	require.NoError(t, err)

	main := rep.ImportRelationships["main.py"]
	require.Len(t, main, 3)

	// Standard library: unresolved, which is normal.
	assert.False(t, entryByRaw(t, main, "os").Resolved)

	// Sibling module next to the importer.
	sibling := entryByRaw(t, main, "sibling_module")
	assert.Equal(t, []string{"sibling_module.py"}, sibling.Candidates)

	// Dotted package target walks directories.
	dotted := entryByRaw(t, main, "py.python_utils")
	assert.Equal(t, []string{"py/python_utils.py"}, dotted.Candidates)

	pyTest := rep.ImportRelationships["py/test.py"]
	require.Len(t, pyTest, 2)

	// "from . import x" names the package itself.
	assert.Equal(t, []string{"py/__init__.py"}, entryByRaw(t, pyTest, ".").Candidates)
	assert.Equal(t, []string{"py/sibling_module.py"}, entryByRaw(t, pyTest, ".sibling_module").Candidates)

	app := rep.ImportRelationships["web/app.js"]
	require.Len(t, app, 2)
	assert.Equal(t, []string{"web/helper.js"}, entryByRaw(t, app, "./helper").Candidates)
	assert.False(t, entryByRaw(t, app, "fs").Resolved)
}

func TestEngine_ScanIdempotent(t *testing.T) {
	t.Parallel()

	dir := exampleTree(t)
	e := New()

	first, err := e.Scan(context.Background(), dir)
	require.NoError(t, err)
	second, err := e.Scan(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestEngine_ScanMissingRoot(t *testing.T) {
	t.Parallel()

	_, err := New().Scan(context.Background(), filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}

func TestEngine_Cancellation(t *testing.T) {
	t.Parallel()

	dir := exampleTree(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().Scan(ctx, dir)
	require.ErrorIs(t, err, context.Canceled)
}

func TestEngine_MaxFilesToInspect(t *testing.T) {
	t.Parallel()

	dir := exampleTree(t)
	rep, err := New(WithMaxFilesToInspect(1)).Scan(context.Background(), dir)
	require.NoError(t, err)

	// Only the first importable file in path order gets content-scanned.
	assert.Contains(t, rep.ImportRelationships, "main.py")
	assert.NotContains(t, rep.ImportRelationships, "py/test.py")
	assert.NotContains(t, rep.ImportRelationships, "web/app.js")
	// Classification still covers the whole tree.
	assert.Equal(t, 9, rep.TotalFiles)
}

func TestEngine_SampleLimit(t *testing.T) {
	t.Parallel()

	dir := exampleTree(t)
	rep, err := New(WithSampleLimit(2)).Scan(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 6, rep.ByLanguage["python"].Count)
	assert.Len(t, rep.ByLanguage["python"].Files, 2)
	assert.Len(t, rep.ImportRelationships["main.py"], 2)
}

func TestEngine_UnreadableFileBecomesWarning(t *testing.T) {
	t.Parallel()

	if os.Getuid() == 0 {
		t.Skip("file permissions are not enforced for root")
	}

	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"ok.py": "import os\n", "locked.py": "import os\n"})
	require.NoError(t, os.Chmod(filepath.Join(dir, "locked.py"), 0o000))

	rep, err := New().Scan(context.Background(), dir)
	require.NoError(t, err)

	require.NotEmpty(t, rep.Warnings)
	assert.Contains(t, rep.Warnings[0], "locked.py")
	assert.Contains(t, rep.ImportRelationships, "ok.py")
}

func TestEngine_WarningOrderDeterministic(t *testing.T) {
	t.Parallel()

	if os.Getuid() == 0 {
		t.Skip("file permissions are not enforced for root")
	}

	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"a_locked.py": "import os\n",
		"b_locked.py": "import os\n",
		"c_locked.py": "import os\n",
	})
	for _, name := range []string{"a_locked.py", "b_locked.py", "c_locked.py"} {
		require.NoError(t, os.Chmod(filepath.Join(dir, name), 0o000))
	}

	rep, err := New().Scan(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, rep.Warnings, 3)
	assert.Contains(t, rep.Warnings[0], "a_locked.py")
	assert.Contains(t, rep.Warnings[1], "b_locked.py")
	assert.Contains(t, rep.Warnings[2], "c_locked.py")
}

func TestEngine_StoreRoundTrip(t *testing.T) {
	t.Parallel()

	dir := exampleTree(t)
	store, err := NewStore(filepath.Join(t.TempDir(), "scans.db"))
	require.NoError(t, err)
	defer store.Close()

	rep, err := New(WithStore(store)).Scan(context.Background(), dir)
	require.NoError(t, err)

	loaded, err := store.LatestReport()
	require.NoError(t, err)
	assert.Equal(t, rep, loaded)
}
