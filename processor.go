package mdsci

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/scivant/go-mdsci/internal/bib"
	"github.com/scivant/go-mdsci/internal/cache"
	"github.com/scivant/go-mdsci/internal/digest"
	"github.com/scivant/go-mdsci/internal/fileutil"
	"github.com/scivant/go-mdsci/internal/render"
	"github.com/scivant/go-mdsci/internal/rewrite"
	"github.com/scivant/go-mdsci/internal/scan"
)

// Compile-time interface implementation checks.
var (
	_ cache.Store     = (*cache.SQLiteStore)(nil)
	_ cache.Store     = (*cache.MemStore)(nil)
	_ render.Renderer = (*render.Latex)(nil)
)

// Processor orchestrates the scan-render-rewrite pipeline.
// Safe for concurrent use: the cache resolver serializes renders per
// key, and everything else is immutable after NewProcessor.
type Processor struct {
	cfg      processorConfig
	store    cache.Store
	resolver *cache.Resolver
	renderer render.Renderer
	bib      *bib.Database
}

// NewProcessor creates a Processor with default configuration.
// Use options to customize behavior (e.g., WithTimeout, WithCacheDir).
// The LaTeX toolchain is probed here, not per span: a missing
// installation fails once, before any document is touched.
func NewProcessor(opts ...Option) (*Processor, error) {
	p := &Processor{cfg: defaultProcessorConfig()}

	for _, opt := range opts {
		opt(p)
	}

	if p.renderer == nil {
		r, err := render.NewLatex()
		if err != nil {
			return nil, err
		}
		p.renderer = r
	}

	if p.store == nil {
		s, err := cache.Open(p.cfg.cacheDir)
		if err != nil {
			return nil, fmt.Errorf("opening cache: %w", err)
		}
		p.store = s
	}
	p.resolver = cache.NewResolver(p.store)

	if p.cfg.bibPath != "" {
		db, err := bib.LoadFile(p.cfg.bibPath)
		if err != nil {
			return nil, fmt.Errorf("loading bibliography: %w", err)
		}
		p.bib = db
	}

	return p, nil
}

// ProcessDocument runs the full pipeline on one document.
// Render failures of individual spans do not fail the document: the
// span is replaced by an error marker and reported in
// Result.Diagnostics. Structural problems do: an unterminated
// delimiter, a malformed or dangling reference marker, an unknown
// citation key, a missing toolchain, or a cache failure.
func (p *Processor) ProcessDocument(ctx context.Context, doc Document) (*Result, error) {
	scanned, err := scan.Scan(doc.Content)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", doc.Name, err)
	}

	items, labels, err := rewrite.Classify(scanned.Spans, doc.HeadNumber)
	if err != nil {
		return nil, fmt.Errorf("classifying %s: %w", doc.Name, err)
	}

	var resolution *bib.Resolution
	if len(scanned.Citations) > 0 {
		if p.bib == nil {
			return nil, fmt.Errorf("%w: %s", ErrNoBibliography, doc.Name)
		}
		resolution, err = p.bib.Resolve(scanned.Citations)
		if err != nil {
			return nil, fmt.Errorf("resolving citations in %s: %w", doc.Name, err)
		}
	}

	resolved, err := p.renderItems(ctx, items)
	if err != nil {
		return nil, fmt.Errorf("rendering %s: %w", doc.Name, err)
	}

	content, err := rewrite.Document(doc.Content, resolved, labels, scanned.Citations, resolution)
	if err != nil {
		return nil, fmt.Errorf("rewriting %s: %w", doc.Name, err)
	}

	res := &Result{Content: content}
	used := make(map[string]struct{})
	for _, r := range resolved {
		switch {
		case r.Err != nil:
			res.Diagnostics = append(res.Diagnostics, Diagnostic{
				Document: doc.Name,
				Line:     r.Item.Span.Line,
				Column:   r.Item.Span.Column,
				Message:  r.Err.Error(),
			})
		case r.ArtifactName != "":
			used[r.ArtifactName] = struct{}{}
		}
	}
	for name := range used {
		res.UsedArtifacts = append(res.UsedArtifacts, name)
	}
	sort.Strings(res.UsedArtifacts)

	return res, nil
}

// ProcessBook processes documents concurrently and returns results in
// input order. The first structural error aborts the whole book; shared
// fragments across documents render once thanks to the cache resolver.
func (p *Processor) ProcessBook(ctx context.Context, docs []Document) ([]*Result, error) {
	results := make([]*Result, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ResolveWorkers(p.cfg.workers))
	for i, doc := range docs {
		g.Go(func() error {
			res, err := p.ProcessDocument(gctx, doc)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// renderItems resolves every math item against the cache, rendering
// misses concurrently. Per-span failures land in the item's Err slot;
// only environment-level failures abort the batch.
func (p *Processor) renderItems(ctx context.Context, items []rewrite.Item) ([]rewrite.Resolved, error) {
	resolved := make([]rewrite.Resolved, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ResolveWorkers(p.cfg.workers))
	for i, it := range items {
		resolved[i].Item = it
		if it.Kind == rewrite.CrossRef {
			continue
		}
		g.Go(func() error {
			entry, err := p.renderItem(gctx, it)
			if err != nil {
				if fatalRenderError(err) {
					return err
				}
				resolved[i].Err = err
				return nil
			}
			resolved[i].ArtifactName = entry.Name
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return resolved, nil
}

func (p *Processor) renderItem(ctx context.Context, it rewrite.Item) (cache.Entry, error) {
	scale := p.cfg.inlineScale
	if it.Span.Kind == scan.Block {
		scale = p.cfg.blockScale
	}
	params := render.Params{
		Mode:     p.cfg.mode,
		Scale:    scale,
		Preamble: p.cfg.preamble,
		Timeout:  p.cfg.timeout,
	}
	if it.Kind == rewrite.Figure {
		// Figure blocks carry gnuplot scripts, not math.
		params.Mode = render.ModeGnuplot
	}
	key := digest.New(it.Span.Kind, it.Math, digest.Params{
		Mode:     params.Mode,
		Scale:    params.Scale,
		Preamble: params.Preamble,
	}).Hex()

	return p.resolver.Resolve(ctx, key, func(ctx context.Context) ([]byte, string, error) {
		a, err := p.renderer.Render(ctx, it.Span.Kind, it.Math, params)
		if err != nil {
			return nil, "", err
		}
		return a.Content, a.MediaType, nil
	})
}

// fatalRenderError reports whether err concerns the environment rather
// than one span. Span-level failures (a LaTeX error, a timeout on one
// equation) become error markers; these abort the document instead.
func fatalRenderError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return errors.Is(err, render.ErrToolchainMissing) || errors.Is(err, render.ErrUnsupportedMode)
}

// ExportArtifacts copies the named cache artifacts into destDir,
// creating it if needed. Names come from Result.UsedArtifacts.
func (p *Processor) ExportArtifacts(ctx context.Context, names []string, destDir string) error {
	if len(names) == 0 {
		return nil
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", destDir, err)
	}
	for _, name := range names {
		key := strings.TrimSuffix(name, filepath.Ext(name))
		entry, ok, err := p.store.Get(ctx, key)
		if err != nil {
			return fmt.Errorf("looking up artifact %s: %w", name, err)
		}
		if !ok || entry.Path == "" {
			return fmt.Errorf("artifact %s not in cache", name)
		}
		content, err := os.ReadFile(entry.Path)
		if err != nil {
			return fmt.Errorf("reading artifact %s: %w", name, err)
		}
		if err := fileutil.WriteFileAtomic(filepath.Join(destDir, entry.Name), content, 0o644); err != nil {
			return fmt.Errorf("writing artifact %s: %w", name, err)
		}
	}
	return nil
}

// Close releases the cache store.
func (p *Processor) Close() error {
	if p.store != nil {
		return p.store.Close()
	}
	return nil
}
