// Package render invokes external toolchains to produce SVG artifacts:
// latex + dvisvgm for notation spans, gnuplot for figure scripts. Every
// render is an isolated subprocess run working in a scoped scratch
// directory that is removed on every exit path. The toolchain's own
// diagnostic output is carried back verbatim: the raw log is the most
// actionable signal for the author of the notation.
package render

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/scivant/go-mdsci/internal/process"
	"github.com/scivant/go-mdsci/internal/scan"
)

// Sentinel errors for render operations.
var (
	ErrToolchainMissing = errors.New("latex toolchain not found")
	ErrUnsupportedMode  = errors.New("unsupported renderer mode")
	ErrRenderFailed     = errors.New("latex failed")
	ErrConversion       = errors.New("svg conversion failed")
	ErrTimeout          = errors.New("render timed out")
)

// DefaultTimeout bounds a single toolchain invocation.
const DefaultTimeout = 90 * time.Second

// Renderer modes selectable via Params.Mode.
const (
	// ModeLatex typesets math through latex + dvisvgm. The default.
	ModeLatex = "latex"
	// ModeGnuplot plots a gnuplot script to SVG, used for figure blocks.
	ModeGnuplot = "gnuplot"
)

// Params configure one render.
type Params struct {
	Mode     string        // renderer mode; empty means ModeLatex
	Scale    float64       // dvisvgm zoom factor (0 = 1.0)
	Preamble string        // injected into the wrapper document before \begin{document}
	Timeout  time.Duration // per-render bound (0 = DefaultTimeout)
}

// Artifact is the output of a successful render.
type Artifact struct {
	Content   []byte
	MediaType string
}

// Renderer turns one notation span into an artifact or a typed error.
type Renderer interface {
	Render(ctx context.Context, kind scan.Kind, source string, p Params) (Artifact, error)
}

// Runner abstracts subprocess execution so tests run without a real
// toolchain.
type Runner interface {
	// Run executes name with args in dir and returns the captured
	// stdout and stderr regardless of exit status.
	Run(ctx context.Context, dir, name string, args ...string) (stdout, stderr string, err error)
}

// execRunner implements Runner using os/exec.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, dir, name string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	process.Configure(cmd)
	cmd.Cancel = func() error { return process.Kill(cmd) }

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

// LookupToolchain locates the latex and dvisvgm executables on PATH.
// Returns ErrToolchainMissing naming the first absent tool.
func LookupToolchain() (latexPath, dvisvgmPath string, err error) {
	latexPath, err = exec.LookPath("latex")
	if err != nil {
		return "", "", fmt.Errorf("%w: latex not on PATH", ErrToolchainMissing)
	}
	dvisvgmPath, err = exec.LookPath("dvisvgm")
	if err != nil {
		return "", "", fmt.Errorf("%w: dvisvgm not on PATH", ErrToolchainMissing)
	}
	return latexPath, dvisvgmPath, nil
}

// Latex renders math via latex + dvisvgm and figures via gnuplot.
type Latex struct {
	runner  Runner
	latex   string
	dvisvgm string
	gnuplot string
}

var _ Renderer = (*Latex)(nil)

// NewLatex probes the toolchain once and returns a ready renderer.
// Probing here, not per span, means a missing toolchain is reported
// exactly once, before any document is touched. gnuplot is resolved
// lazily: documents without figure blocks never need it.
func NewLatex() (*Latex, error) {
	latexPath, dvisvgmPath, err := LookupToolchain()
	if err != nil {
		return nil, err
	}
	return &Latex{runner: execRunner{}, latex: latexPath, dvisvgm: dvisvgmPath, gnuplot: "gnuplot"}, nil
}

// newLatexWithRunner is the test seam.
func newLatexWithRunner(r Runner) *Latex {
	return &Latex{runner: r, latex: "latex", dvisvgm: "dvisvgm", gnuplot: "gnuplot"}
}

// Render produces an SVG artifact for source via the mode's toolchain.
func (l *Latex) Render(ctx context.Context, kind scan.Kind, source string, p Params) (Artifact, error) {
	if err := ctx.Err(); err != nil {
		return Artifact{}, err
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Scoped scratch area, exclusively owned by this render.
	scratch, err := os.MkdirTemp("", "mdsci-"+ulid.Make().String()+"-")
	if err != nil {
		return Artifact{}, fmt.Errorf("creating scratch directory: %w", err)
	}
	defer os.RemoveAll(scratch)

	switch p.Mode {
	case "", ModeLatex:
		return l.renderLatex(ctx, scratch, kind, source, p, timeout)
	case ModeGnuplot:
		return l.renderGnuplot(ctx, scratch, source, timeout)
	default:
		return Artifact{}, fmt.Errorf("%w: %q", ErrUnsupportedMode, p.Mode)
	}
}

// renderLatex typesets math through latex then dvisvgm.
func (l *Latex) renderLatex(ctx context.Context, scratch string, kind scan.Kind, source string, p Params, timeout time.Duration) (Artifact, error) {
	texPath := filepath.Join(scratch, "equation.tex")
	if err := os.WriteFile(texPath, []byte(wrapDocument(kind, source, p.Preamble)), 0o600); err != nil {
		return Artifact{}, fmt.Errorf("writing tex input: %w", err)
	}

	stdout, stderr, err := l.runner.Run(ctx, scratch, l.latex,
		"-interaction=nonstopmode", "-halt-on-error", "equation.tex")
	if err != nil {
		if tErr := timeoutError(ctx, timeout); tErr != nil {
			return Artifact{}, tErr
		}
		return Artifact{}, fmt.Errorf("%w: %s", ErrRenderFailed, diagnostics(stdout, stderr))
	}

	args := []string{"--no-fonts"}
	if p.Scale > 0 {
		args = append(args, fmt.Sprintf("--zoom=%g", p.Scale))
	}
	args = append(args, "equation.dvi", "-o", "artifact.svg")

	_, stderr, err = l.runner.Run(ctx, scratch, l.dvisvgm, args...)
	if err != nil {
		if tErr := timeoutError(ctx, timeout); tErr != nil {
			return Artifact{}, tErr
		}
		return Artifact{}, fmt.Errorf("%w: %s", ErrConversion, diagnostics("", stderr))
	}

	content, err := os.ReadFile(filepath.Join(scratch, "artifact.svg"))
	if err != nil {
		return Artifact{}, fmt.Errorf("%w: dvisvgm produced no artifact: %s", ErrConversion, diagnostics("", stderr))
	}

	return Artifact{Content: content, MediaType: "image/svg+xml"}, nil
}

// renderGnuplot plots a figure script to SVG. The terminal and output
// lines are prepended so the script body stays a plain plot.
func (l *Latex) renderGnuplot(ctx context.Context, scratch, source string, timeout time.Duration) (Artifact, error) {
	script := "set terminal svg\nset output 'artifact.svg'\n" + source
	if err := os.WriteFile(filepath.Join(scratch, "figure.gp"), []byte(script), 0o600); err != nil {
		return Artifact{}, fmt.Errorf("writing gnuplot script: %w", err)
	}

	_, stderr, err := l.runner.Run(ctx, scratch, l.gnuplot, "figure.gp")
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return Artifact{}, fmt.Errorf("%w: gnuplot not on PATH", ErrToolchainMissing)
		}
		if tErr := timeoutError(ctx, timeout); tErr != nil {
			return Artifact{}, tErr
		}
		return Artifact{}, fmt.Errorf("%w: %s", ErrRenderFailed, diagnostics("", stderr))
	}

	content, err := os.ReadFile(filepath.Join(scratch, "artifact.svg"))
	if err != nil {
		return Artifact{}, fmt.Errorf("%w: gnuplot produced no artifact: %s", ErrConversion, diagnostics("", stderr))
	}

	return Artifact{Content: content, MediaType: "image/svg+xml"}, nil
}

// wrapDocument builds a minimal self-contained LaTeX document around the
// span source. Inline spans are set in text math mode, block spans in
// display mode.
func wrapDocument(kind scan.Kind, source, preamble string) string {
	var b strings.Builder
	b.WriteString("\\documentclass[preview,border=2pt]{standalone}\n")
	b.WriteString("\\usepackage{amsmath}\n\\usepackage{amssymb}\n")
	if preamble != "" {
		b.WriteString(preamble)
		if !strings.HasSuffix(preamble, "\n") {
			b.WriteByte('\n')
		}
	}
	b.WriteString("\\begin{document}\n")
	switch kind {
	case scan.Block:
		b.WriteString("\\[" + source + "\\]\n")
	default:
		b.WriteString("$" + source + "$\n")
	}
	b.WriteString("\\end{document}\n")
	return b.String()
}

// timeoutError maps a context-induced subprocess kill to the typed
// timeout error, or passes cancellation through untouched.
func timeoutError(ctx context.Context, timeout time.Duration) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w after %s", ErrTimeout, timeout)
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		return nil
	}
}

// diagnostics joins captured toolchain output, trimmed but otherwise
// verbatim.
func diagnostics(stdout, stderr string) string {
	out := strings.TrimSpace(stdout)
	errOut := strings.TrimSpace(stderr)
	switch {
	case out == "":
		return errOut
	case errOut == "":
		return out
	default:
		return out + "\n" + errOut
	}
}
