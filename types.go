package mdsci

import (
	"time"

	"github.com/scivant/go-mdsci/internal/cache"
	"github.com/scivant/go-mdsci/internal/render"
)

// Document is one Markdown source to process.
type Document struct {
	Name    string // display name used in diagnostics (usually the file path)
	Content string // raw Markdown text

	// HeadNumber prefixes equation numbers, e.g. "3.2." makes the first
	// labeled equation (3.2.1). Empty means plain sequential numbers.
	HeadNumber string
}

// Diagnostic reports a span whose rendering failed. The document was
// still processed; the span was replaced by a visible error marker.
type Diagnostic struct {
	Document string
	Line     int
	Column   int
	Message  string
}

// Result is the outcome of processing one document.
type Result struct {
	Content       string       // rewritten Markdown
	Diagnostics   []Diagnostic // non-fatal render failures, in document order
	UsedArtifacts []string     // artifact file names Content references, sorted
}

// Option configures a Processor.
type Option func(*Processor)

// processorConfig holds internal configuration for Processor.
type processorConfig struct {
	cacheDir    string
	bibPath     string
	mode        string
	inlineScale float64
	blockScale  float64
	preamble    string
	timeout     time.Duration
	workers     int
}

// Rendering defaults. Display math gets a larger zoom than inline so
// it reads at body-text weight inside its block.
const (
	DefaultCacheDir    = ".mdsci-cache"
	DefaultInlineScale = 1.3
	DefaultBlockScale  = 1.6
)

func defaultProcessorConfig() processorConfig {
	return processorConfig{
		cacheDir:    DefaultCacheDir,
		mode:        "latex",
		inlineScale: DefaultInlineScale,
		blockScale:  DefaultBlockScale,
		timeout:     render.DefaultTimeout,
	}
}

// WithTimeout sets the per-span render timeout.
// Panics if d <= 0 (programmer error, similar to time.NewTicker).
func WithTimeout(d time.Duration) Option {
	if d <= 0 {
		panic("mdsci: WithTimeout duration must be positive")
	}
	return func(p *Processor) {
		p.cfg.timeout = d
	}
}

// WithCacheDir sets the artifact cache directory.
func WithCacheDir(dir string) Option {
	return func(p *Processor) {
		p.cfg.cacheDir = dir
	}
}

// WithBibliographyFile loads the BibTeX database at path during
// NewProcessor. Without it, any citation marker is an error.
func WithBibliographyFile(path string) Option {
	return func(p *Processor) {
		p.cfg.bibPath = path
	}
}

// WithMode selects the renderer mode for math spans. "latex" is the
// only supported math mode; figure blocks always render through
// gnuplot. An unknown mode surfaces as ErrUnsupportedMode on first
// render.
func WithMode(mode string) Option {
	return func(p *Processor) {
		p.cfg.mode = mode
	}
}

// WithScales sets the inline and display zoom factors. Zero keeps the
// default for that factor.
func WithScales(inline, block float64) Option {
	return func(p *Processor) {
		if inline > 0 {
			p.cfg.inlineScale = inline
		}
		if block > 0 {
			p.cfg.blockScale = block
		}
	}
}

// WithPreamble adds LaTeX preamble lines to every rendered span.
// The preamble is part of the cache key: changing it re-renders
// everything.
func WithPreamble(preamble string) Option {
	return func(p *Processor) {
		p.cfg.preamble = preamble
	}
}

// WithWorkers bounds concurrent renders within a document.
// Zero resolves from GOMAXPROCS, see ResolveWorkers.
func WithWorkers(n int) Option {
	return func(p *Processor) {
		p.cfg.workers = n
	}
}

// withRenderer injects a renderer, skipping the toolchain probe.
// Test seam.
func withRenderer(r render.Renderer) Option {
	return func(p *Processor) {
		p.renderer = r
	}
}

// withStore injects a cache store, skipping the on-disk cache.
// Test seam.
func withStore(s cache.Store) Option {
	return func(p *Processor) {
		p.store = s
	}
}
