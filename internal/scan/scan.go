// Package scan walks a project tree and produces one FileRecord per retained
// file. Ignore rules (hidden-prefix directories plus glob patterns) prune
// whole subtrees; per-file stat failures degrade to warnings so a partially
// readable tree still scans.
package scan

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/jward/understory/internal/lang"
)

// ErrNotDirectory is returned when the scan root exists but is not a directory.
var ErrNotDirectory = errors.New("not a directory")

// FileRecord describes one file retained by the walk. RelPath is
// project-root-relative with forward slashes and is unique within a scan.
type FileRecord struct {
	Name       string
	RelPath    string
	Ext        string
	Size       int64
	ModTime    time.Time
	Tag        lang.Tag
	Importable bool
}

// Warning records a per-file condition that did not stop the scan.
type Warning struct {
	Path    string
	Message string
}

func (w Warning) String() string {
	return w.Path + ": " + w.Message
}

// DefaultIgnorePatterns prunes build caches, version-control and dependency
// directories, OS metadata, packaged artifacts, and log files.
var DefaultIgnorePatterns = []string{
	".git",
	"node_modules",
	"vendor",
	"__pycache__",
	"dist",
	"build",
	"target",
	"*.egg-info",
	".DS_Store",
	"Thumbs.db",
	"*.log",
	"*.pyc",
	"*.whl",
	"*.tar.gz",
	"*.zip",
}

// Options configures a walk. Zero values select the defaults.
type Options struct {
	// IgnorePatterns are doublestar globs matched against both the entry name
	// and the root-relative path. Nil means DefaultIgnorePatterns.
	IgnorePatterns []string

	// HiddenPrefix marks directories to exclude along with their descendants.
	// Empty means ".".
	HiddenPrefix string
}

// walker carries state across the recursive descent.
type walker struct {
	root     string
	opts     Options
	records  []FileRecord
	warnings []Warning

	// visited tracks canonical directory paths so symlink cycles terminate:
	// each physical directory is entered at most once.
	visited map[string]bool
}

// Walk scans the subtree under root. It fails only when root does not exist
// or is not a directory; every other condition is a Warning. Records are
// returned in walk order — callers must not rely on it and should sort.
func Walk(root string, opts Options) ([]FileRecord, []Warning, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, nil, fmt.Errorf("scan root %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("scan root %s: %w", root, ErrNotDirectory)
	}

	if opts.IgnorePatterns == nil {
		opts.IgnorePatterns = DefaultIgnorePatterns
	}
	if opts.HiddenPrefix == "" {
		opts.HiddenPrefix = "."
	}

	w := &walker{root: root, opts: opts, visited: make(map[string]bool)}
	w.markVisited(root)
	w.walkDir(root, "")
	return w.records, w.warnings, nil
}

// markVisited records a directory's canonical path. Returns false when the
// directory was seen before (a symlink cycle or a duplicate link target).
func (w *walker) markVisited(dir string) bool {
	canonical, err := filepath.EvalSymlinks(dir)
	if err != nil {
		canonical = dir
	}
	if w.visited[canonical] {
		return false
	}
	w.visited[canonical] = true
	return true
}

func (w *walker) walkDir(dir, rel string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		w.warn(rel, "read directory: "+err.Error())
		return
	}

	for _, entry := range entries {
		name := entry.Name()
		entryRel := name
		if rel != "" {
			entryRel = rel + "/" + name
		}

		isDir := entry.IsDir()
		// Follow symlinks to decide between file and directory handling.
		if entry.Type()&os.ModeSymlink != 0 {
			target, err := os.Stat(filepath.Join(dir, name))
			if err != nil {
				w.warn(entryRel, "stat symlink: "+err.Error())
				continue
			}
			isDir = target.IsDir()
		}

		if isDir {
			if len(name) >= len(w.opts.HiddenPrefix) && name[:len(w.opts.HiddenPrefix)] == w.opts.HiddenPrefix {
				continue
			}
			if w.ignored(name, entryRel) {
				continue
			}
			sub := filepath.Join(dir, name)
			if !w.markVisited(sub) {
				continue
			}
			w.walkDir(sub, entryRel)
			continue
		}

		if w.ignored(name, entryRel) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// Permission error or mid-scan deletion: expected, not fatal.
			w.warn(entryRel, "stat: "+err.Error())
			continue
		}
		if entry.Type()&os.ModeSymlink != 0 {
			info, err = os.Stat(filepath.Join(dir, name))
			if err != nil {
				w.warn(entryRel, "stat: "+err.Error())
				continue
			}
		}

		ext := filepath.Ext(name)
		tag := lang.Classify(ext)
		w.records = append(w.records, FileRecord{
			Name:       name,
			RelPath:    entryRel,
			Ext:        ext,
			Size:       info.Size(),
			ModTime:    info.ModTime(),
			Tag:        tag,
			Importable: lang.Importable(tag),
		})
	}
}

// ignored matches an entry against the ignore globs, by bare name and by
// root-relative path.
func (w *walker) ignored(name, rel string) bool {
	for _, pattern := range w.opts.IgnorePatterns {
		if ok, err := doublestar.Match(pattern, name); err == nil && ok {
			return true
		}
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}

func (w *walker) warn(path, msg string) {
	w.warnings = append(w.warnings, Warning{Path: path, Message: msg})
}
