// Package resolve maps extracted import targets to candidate files inside
// the scanned project. Resolution is a pure lookup against an index built
// once per scan; targets that name nothing in the project (installed
// packages, standard library modules) stay unresolved, which is a normal
// outcome, never an error.
package resolve

import (
	"path"
	"sort"
	"strings"

	"github.com/jward/understory/internal/extract"
	"github.com/jward/understory/internal/lang"
	"github.com/jward/understory/internal/scan"
)

// DefaultSourceRoots are directory aliases consulted for absolute and
// package-dotted targets in addition to the project root.
var DefaultSourceRoots = []string{"src"}

// DefaultExtensionPriority orders candidates when multiple files share a
// stem, so the most likely intended target sorts first.
var DefaultExtensionPriority = []string{
	".py", ".pyi", ".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs", ".go",
}

// Options configures index construction. Zero values select the defaults.
type Options struct {
	SourceRoots       []string
	ExtensionPriority []string
}

// Resolved pairs a statement with the candidate paths that exist in the
// scanned file set, best candidate first.
type Resolved struct {
	Statement  extract.Statement
	Candidates []string
	Resolved   bool
}

// Index is the complete file set of one scan, keyed for candidate lookup.
// It is read-only after construction and safe for concurrent use.
type Index struct {
	byDir       map[string][]scan.FileRecord
	tagByPath   map[string]lang.Tag
	dirs        map[string]bool
	priority    map[string]int
	sourceRoots []string
}

// NewIndex builds an index over the importable files in records.
func NewIndex(records []scan.FileRecord, opts Options) *Index {
	if opts.SourceRoots == nil {
		opts.SourceRoots = DefaultSourceRoots
	}
	if opts.ExtensionPriority == nil {
		opts.ExtensionPriority = DefaultExtensionPriority
	}

	ix := &Index{
		byDir:       make(map[string][]scan.FileRecord),
		tagByPath:   make(map[string]lang.Tag),
		dirs:        make(map[string]bool),
		priority:    make(map[string]int, len(opts.ExtensionPriority)),
		sourceRoots: opts.SourceRoots,
	}
	for i, ext := range opts.ExtensionPriority {
		ix.priority[ext] = i
	}
	for _, r := range records {
		ix.tagByPath[r.RelPath] = r.Tag
		dir := dirOf(r.RelPath)
		for d := dir; ; d = dirOf(d) {
			ix.dirs[d] = true
			if d == "" {
				break
			}
		}
		if r.Importable {
			ix.byDir[dir] = append(ix.byDir[dir], r)
		}
	}
	return ix
}

// Resolve computes candidate paths for one statement per its kind.
func (ix *Index) Resolve(st extract.Statement) Resolved {
	srcDir := dirOf(st.SourceFile)

	var candidates []string
	switch st.Kind {
	case extract.KindRelativeSameLevel, extract.KindRelativeParent:
		candidates = ix.resolveRelative(st.Raw, srcDir)
	case extract.KindPackageDotted:
		candidates = ix.resolvePackage(st.Raw)
	case extract.KindAbsolute:
		candidates = ix.resolveAbsolute(st)
	}

	candidates = dedup(candidates)
	return Resolved{Statement: st, Candidates: candidates, Resolved: len(candidates) > 0}
}

// resolveRelative handles both relative kinds. The hop count comes from the
// target's own markers (dots or ../ prefixes).
func (ix *Index) resolveRelative(raw, srcDir string) []string {
	if strings.HasPrefix(raw, ".") && !strings.HasPrefix(raw, "./") && !strings.HasPrefix(raw, "../") {
		// Dotted-module relative form: ".mod", "..pkg.mod", or bare dots.
		dots := leadingDots(raw)
		base, ok := ancestor(srcDir, dots-1)
		if !ok {
			return nil
		}
		rest := raw[dots:]
		if rest == "" {
			// "from . import x" / "from .. import x": the package itself.
			return ix.matchIn(base, "__init__")
		}
		return ix.resolveSegments(base, strings.Split(rest, "."))
	}

	// String-literal relative form: "./name", "../a/b". path.Join collapses
	// the markers against the declaring directory.
	joined := path.Join(srcDir, raw)
	if strings.HasPrefix(joined, "..") {
		return nil // escapes the project root
	}
	return ix.matchIn(dirOf(joined), path.Base(joined))
}

// resolvePackage walks dotted segments as directories under the project root
// and each source-root alias.
func (ix *Index) resolvePackage(raw string) []string {
	segments := strings.Split(raw, ".")
	var out []string
	for _, base := range ix.bases() {
		out = append(out, ix.resolveSegments(base, segments)...)
	}
	return out
}

// resolveAbsolute looks a target up against the project root and source-root
// aliases. For dotted-module languages the declaring file's own directory is
// consulted last: an unqualified name next to the importer is a sibling
// module by convention.
func (ix *Index) resolveAbsolute(st extract.Statement) []string {
	segments := strings.Split(strings.Trim(st.Raw, "/"), "/")
	var out []string
	for _, base := range ix.bases() {
		out = append(out, ix.resolveSegments(base, segments)...)
	}
	if ix.tagByPath[st.SourceFile] == lang.Python && len(segments) == 1 {
		out = append(out, ix.matchIn(dirOf(st.SourceFile), segments[0])...)
	}
	return out
}

// bases returns the lookup roots: project root first, then source roots that
// exist in the scanned tree.
func (ix *Index) bases() []string {
	bases := []string{""}
	for _, root := range ix.sourceRoots {
		if ix.dirs[root] {
			bases = append(bases, root)
		}
	}
	return bases
}

// resolveSegments walks all but the last segment as directories, then matches
// the final segment as a file stem. A final segment that names a directory
// holding __init__ resolves to that package marker file.
func (ix *Index) resolveSegments(base string, segments []string) []string {
	dir := base
	for _, seg := range segments[:len(segments)-1] {
		dir = path.Join(dir, seg)
	}
	if dir == "." {
		dir = ""
	}
	last := segments[len(segments)-1]

	out := ix.matchIn(dir, last)
	if pkgDir := path.Join(dir, last); ix.dirs[cleanDir(pkgDir)] {
		out = append(out, ix.matchIn(cleanDir(pkgDir), "__init__")...)
	}
	return out
}

// matchIn returns the importable files in dir whose name equals target
// exactly (extension given) or whose stem equals target, ordered by the
// extension-priority list.
func (ix *Index) matchIn(dir, target string) []string {
	var matched []scan.FileRecord
	for _, r := range ix.byDir[dir] {
		stem := strings.TrimSuffix(r.Name, r.Ext)
		if r.Name == target || stem == target {
			matched = append(matched, r)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return ix.rank(matched[i].Ext) < ix.rank(matched[j].Ext)
	})

	out := make([]string, 0, len(matched))
	for _, r := range matched {
		out = append(out, r.RelPath)
	}
	return out
}

func (ix *Index) rank(ext string) int {
	if p, ok := ix.priority[ext]; ok {
		return p
	}
	return len(ix.priority)
}

// ancestor returns the n-th parent of dir, false when that climbs past the
// project root.
func ancestor(dir string, n int) (string, bool) {
	for i := 0; i < n; i++ {
		if dir == "" {
			return "", false
		}
		dir = dirOf(dir)
	}
	return dir, true
}

// dirOf returns the slash-path parent directory, "" for the project root.
func dirOf(rel string) string {
	d := path.Dir(rel)
	if d == "." {
		return ""
	}
	return d
}

func cleanDir(dir string) string {
	if dir == "." {
		return ""
	}
	return dir
}

func leadingDots(raw string) int {
	n := 0
	for n < len(raw) && raw[n] == '.' {
		n++
	}
	return n
}

func dedup(paths []string) []string {
	if len(paths) < 2 {
		return paths
	}
	seen := make(map[string]bool, len(paths))
	out := paths[:0]
	for _, p := range paths {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}
