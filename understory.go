package understory

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"github.com/jward/understory/internal/extract"
	"github.com/jward/understory/internal/report"
	"github.com/jward/understory/internal/resolve"
	"github.com/jward/understory/internal/scan"
	"github.com/jward/understory/internal/store"
)

// Engine orchestrates the understory pipeline: tree walk, classification,
// import extraction, resolution, and aggregation. An Engine is stateless
// between scans and safe to reuse.
type Engine struct {
	ignorePatterns []string
	sourceRoots    []string
	sampleLimit    int
	maxFiles       int
	workers        int
	logger         *slog.Logger
	store          *store.Store
}

// Option configures an Engine.
type Option func(*Engine)

// WithIgnorePatterns replaces the default ignore globs.
func WithIgnorePatterns(patterns ...string) Option {
	return func(e *Engine) {
		e.ignorePatterns = patterns
	}
}

// WithSourceRoots replaces the default source-root aliases consulted for
// absolute and package-dotted targets.
func WithSourceRoots(roots ...string) Option {
	return func(e *Engine) {
		e.sourceRoots = roots
	}
}

// WithSampleLimit caps the report's sample lists. Negative lifts the cap.
func WithSampleLimit(n int) Option {
	return func(e *Engine) {
		e.sampleLimit = n
	}
}

// WithMaxFilesToInspect bounds how many importable files get content-scanned,
// to bound cost on huge trees. Files keep their sorted order, so the cap is
// deterministic. Zero means no bound.
func WithMaxFilesToInspect(n int) Option {
	return func(e *Engine) {
		e.maxFiles = n
	}
}

// WithWorkers sets the extraction worker pool size. Zero picks NumCPU.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = n
	}
}

// WithLogger installs a structured logger. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithStore attaches a report store; each Scan is then persisted and an
// unchanged rescan is detected via stored content hashes. The Engine does
// not own the store and never closes it.
func WithStore(s *store.Store) Option {
	return func(e *Engine) {
		e.store = s
	}
}

// New creates an Engine with the given options.
func New(opts ...Option) *Engine {
	e := &Engine{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// extractResult is one file's extraction output, produced by a pool worker.
type extractResult struct {
	rel   string
	stmts []extract.Statement
	hash  string
	err   error
}

// Scan runs the full pipeline over the tree rooted at root:
//
//	Phase A (serial):   walk the tree, classify, sort records by path.
//	Phase B (parallel): read and extract importable files via worker pool.
//	Phase C (serial):   resolve targets, aggregate, optionally persist.
//
// It fails only when root is missing or not a directory, or when the context
// is cancelled; per-file problems become report warnings.
func (e *Engine) Scan(ctx context.Context, root string) (*report.Report, error) {
	records, warnings, err := scan.Walk(root, scan.Options{IgnorePatterns: e.ignorePatterns})
	if err != nil {
		return nil, fmt.Errorf("understory: %w", err)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].RelPath < records[j].RelPath })
	e.logger.Debug("walk complete", "root", root, "files", len(records), "warnings", len(warnings))

	var inspect []scan.FileRecord
	for _, r := range records {
		if r.Importable {
			inspect = append(inspect, r)
		}
	}
	if e.maxFiles > 0 && len(inspect) > e.maxFiles {
		e.logger.Debug("capping inspected files", "importable", len(inspect), "max", e.maxFiles)
		inspect = inspect[:e.maxFiles]
	}

	results, err := e.extractAll(ctx, root, inspect)
	if err != nil {
		return nil, err
	}

	// Results arrive in worker-completion order; sort so warning order is
	// reproducible for an unchanged tree.
	sort.Slice(results, func(i, j int) bool { return results[i].rel < results[j].rel })

	stmtsByFile := make(map[string][]extract.Statement, len(results))
	hashes := make(map[string]string, len(results))
	for _, res := range results {
		if res.err != nil {
			warnings = append(warnings, scan.Warning{Path: res.rel, Message: res.err.Error()})
			continue
		}
		hashes[res.rel] = res.hash
		if len(res.stmts) > 0 {
			stmtsByFile[res.rel] = res.stmts
		}
	}

	index := resolve.NewIndex(records, resolve.Options{SourceRoots: e.sourceRoots})
	resolvedByFile := make(map[string][]resolve.Resolved, len(stmtsByFile))
	for _, r := range inspect {
		stmts, ok := stmtsByFile[r.RelPath]
		if !ok {
			continue
		}
		resolved := make([]resolve.Resolved, 0, len(stmts))
		for _, st := range stmts {
			resolved = append(resolved, index.Resolve(st))
		}
		resolvedByFile[r.RelPath] = resolved
	}

	opts := report.Options{ProjectRoot: root, SampleLimit: e.sampleLimit}
	rep := report.Aggregate(records, resolvedByFile, warnings, opts)

	if e.store != nil {
		if err := e.persist(records, resolvedByFile, warnings, hashes, opts); err != nil {
			return nil, err
		}
	}
	return rep, nil
}

// extractAll fans inspect out to a bounded worker pool. Each worker reads one
// file at a time and checks for cancellation between files.
func (e *Engine) extractAll(ctx context.Context, root string, inspect []scan.FileRecord) ([]extractResult, error) {
	if len(inspect) == 0 {
		return nil, ctx.Err()
	}

	numWorkers := e.workers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	numWorkers = min(numWorkers, len(inspect))

	workCh := make(chan scan.FileRecord, len(inspect))
	for _, r := range inspect {
		workCh <- r
	}
	close(workCh)

	resultCh := make(chan extractResult, len(inspect))
	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for r := range workCh {
				if ctx.Err() != nil {
					return
				}
				resultCh <- e.extractOne(root, r)
			}
		}()
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	var results []extractResult
	for res := range resultCh {
		results = append(results, res)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("understory: %w", err)
	}
	return results, nil
}

func (e *Engine) extractOne(root string, r scan.FileRecord) extractResult {
	content, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(r.RelPath)))
	if err != nil {
		// Unreadable file: expected on permission boundaries, not fatal.
		return extractResult{rel: r.RelPath, err: fmt.Errorf("read: %w", err)}
	}

	stmts := extract.Extract(string(content), r.Tag)
	for i := range stmts {
		stmts[i].SourceFile = r.RelPath
	}
	return extractResult{
		rel:   r.RelPath,
		stmts: stmts,
		hash:  fmt.Sprintf("%x", sha256.Sum256(content)),
	}
}

// persist saves the scan and logs when the tree is unchanged since the
// previous stored scan.
func (e *Engine) persist(records []scan.FileRecord, resolvedByFile map[string][]resolve.Resolved, warnings []scan.Warning, hashes map[string]string, opts report.Options) error {
	var previous map[string]string
	if prevID, err := e.store.LatestScanID(); err == nil {
		previous, _ = e.store.HashesByScan(prevID)
	}

	scanID, err := e.store.SaveScan(records, resolvedByFile, warnings, hashes, opts)
	if err != nil {
		return fmt.Errorf("understory: persist scan: %w", err)
	}
	e.logger.Debug("scan persisted", "scan_id", scanID)

	if previous != nil && sameHashes(previous, hashes) {
		e.logger.Info("tree unchanged since previous scan", "scan_id", scanID)
	}
	return nil
}

func sameHashes(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}
