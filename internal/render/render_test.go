package render

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/scivant/go-mdsci/internal/scan"
)

// fakeRunner scripts subprocess behavior per tool name.
type fakeRunner struct {
	calls      []fakeCall
	latexErr   error
	latexOut   string
	svgErr     error
	svgErrOut  string
	writeDVI   bool
	writeSVG   bool
	svgBody    string
	gnuplotErr error
	gnuplotOut string
	writePlot  bool
	plotScript string // captured figure.gp content
}

type fakeCall struct {
	dir  string
	name string
	args []string
}

func (f *fakeRunner) Run(_ context.Context, dir, name string, args ...string) (string, string, error) {
	f.calls = append(f.calls, fakeCall{dir: dir, name: name, args: args})
	switch name {
	case "latex":
		if f.latexErr != nil {
			return f.latexOut, "", f.latexErr
		}
		if f.writeDVI {
			_ = os.WriteFile(filepath.Join(dir, "equation.dvi"), []byte("dvi"), 0o600)
		}
		return f.latexOut, "", nil
	case "dvisvgm":
		if f.svgErr != nil {
			return "", f.svgErrOut, f.svgErr
		}
		if f.writeSVG {
			_ = os.WriteFile(filepath.Join(dir, "artifact.svg"), []byte(f.svgBody), 0o600)
		}
		return "", "", nil
	case "gnuplot":
		if b, err := os.ReadFile(filepath.Join(dir, "figure.gp")); err == nil {
			f.plotScript = string(b)
		}
		if f.gnuplotErr != nil {
			return "", f.gnuplotOut, f.gnuplotErr
		}
		if f.writePlot {
			_ = os.WriteFile(filepath.Join(dir, "artifact.svg"), []byte(f.svgBody), 0o600)
		}
		return "", "", nil
	}
	return "", "", errors.New("unexpected tool " + name)
}

func TestLatex_RenderSuccess(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{writeDVI: true, writeSVG: true, svgBody: "<svg/>"}
	l := newLatexWithRunner(runner)

	art, err := l.Render(context.Background(), scan.Inline, `\frac{1}{2}`, Params{Scale: 1.3})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if string(art.Content) != "<svg/>" {
		t.Errorf("Content = %q, want %q", art.Content, "<svg/>")
	}
	if art.MediaType != "image/svg+xml" {
		t.Errorf("MediaType = %q", art.MediaType)
	}

	if len(runner.calls) != 2 {
		t.Fatalf("calls = %d, want 2", len(runner.calls))
	}
	latex := runner.calls[0]
	if latex.name != "latex" {
		t.Errorf("first call = %q, want latex", latex.name)
	}
	wantArgs := []string{"-interaction=nonstopmode", "-halt-on-error", "equation.tex"}
	for i, a := range wantArgs {
		if latex.args[i] != a {
			t.Errorf("latex args = %v, want %v", latex.args, wantArgs)
			break
		}
	}
	svg := runner.calls[1]
	joined := strings.Join(svg.args, " ")
	if !strings.Contains(joined, "--zoom=1.3") {
		t.Errorf("dvisvgm args missing zoom: %v", svg.args)
	}
	if !strings.Contains(joined, "equation.dvi") || !strings.Contains(joined, "artifact.svg") {
		t.Errorf("dvisvgm args = %v", svg.args)
	}
}

func TestLatex_ScratchDirRemoved(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		runner *fakeRunner
	}{
		{name: "success", runner: &fakeRunner{writeDVI: true, writeSVG: true, svgBody: "<svg/>"}},
		{name: "latex failure", runner: &fakeRunner{latexErr: errors.New("exit status 1"), latexOut: "! Undefined control sequence."}},
		{name: "conversion failure", runner: &fakeRunner{writeDVI: true, svgErr: errors.New("exit status 1")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			l := newLatexWithRunner(tt.runner)
			_, _ = l.Render(context.Background(), scan.Inline, "x", Params{})

			for _, c := range tt.runner.calls {
				if _, err := os.Stat(c.dir); !os.IsNotExist(err) {
					t.Errorf("scratch dir %s still exists after render", c.dir)
				}
			}
		})
	}
}

func TestLatex_RenderFailureCarriesDiagnostics(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{
		latexErr: errors.New("exit status 1"),
		latexOut: "! Undefined control sequence.\nl.5 \\frqc",
	}
	l := newLatexWithRunner(runner)

	_, err := l.Render(context.Background(), scan.Inline, `\frqc{1}{2}`, Params{})
	if !errors.Is(err, ErrRenderFailed) {
		t.Fatalf("Render() error = %v, want ErrRenderFailed", err)
	}
	if !strings.Contains(err.Error(), "! Undefined control sequence.") {
		t.Errorf("error should carry verbatim toolchain output, got %q", err)
	}
}

func TestLatex_MissingArtifactIsConversionError(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{writeDVI: true, writeSVG: false}
	l := newLatexWithRunner(runner)

	_, err := l.Render(context.Background(), scan.Inline, "x", Params{})
	if !errors.Is(err, ErrConversion) {
		t.Errorf("Render() error = %v, want ErrConversion", err)
	}
}

func TestLatex_ConversionFailure(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{writeDVI: true, svgErr: errors.New("exit status 1"), svgErrOut: "DVI format error"}
	l := newLatexWithRunner(runner)

	_, err := l.Render(context.Background(), scan.Inline, "x", Params{})
	if !errors.Is(err, ErrConversion) {
		t.Fatalf("Render() error = %v, want ErrConversion", err)
	}
	if !strings.Contains(err.Error(), "DVI format error") {
		t.Errorf("error should carry dvisvgm stderr, got %q", err)
	}
}

func TestGnuplot_RenderSuccess(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{writePlot: true, svgBody: "<svg/>"}
	l := newLatexWithRunner(runner)

	art, err := l.Render(context.Background(), scan.Block, "plot sin(x)", Params{Mode: ModeGnuplot})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if string(art.Content) != "<svg/>" {
		t.Errorf("Content = %q, want %q", art.Content, "<svg/>")
	}

	if len(runner.calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(runner.calls))
	}
	call := runner.calls[0]
	if call.name != "gnuplot" || len(call.args) != 1 || call.args[0] != "figure.gp" {
		t.Errorf("call = %s %v, want gnuplot [figure.gp]", call.name, call.args)
	}
	for _, want := range []string{"set terminal svg", "set output 'artifact.svg'", "plot sin(x)"} {
		if !strings.Contains(runner.plotScript, want) {
			t.Errorf("script missing %q:\n%s", want, runner.plotScript)
		}
	}
}

func TestGnuplot_MissingBinary(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{gnuplotErr: &exec.Error{Name: "gnuplot", Err: exec.ErrNotFound}}
	l := newLatexWithRunner(runner)

	_, err := l.Render(context.Background(), scan.Block, "plot sin(x)", Params{Mode: ModeGnuplot})
	if !errors.Is(err, ErrToolchainMissing) {
		t.Errorf("Render() error = %v, want ErrToolchainMissing", err)
	}
}

func TestGnuplot_FailureCarriesDiagnostics(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{gnuplotErr: errors.New("exit status 1"), gnuplotOut: `line 3: undefined variable: xs`}
	l := newLatexWithRunner(runner)

	_, err := l.Render(context.Background(), scan.Block, "plot xs", Params{Mode: ModeGnuplot})
	if !errors.Is(err, ErrRenderFailed) {
		t.Fatalf("Render() error = %v, want ErrRenderFailed", err)
	}
	if !strings.Contains(err.Error(), "undefined variable") {
		t.Errorf("error should carry verbatim gnuplot output, got %q", err)
	}
}

func TestLatex_UnsupportedMode(t *testing.T) {
	t.Parallel()

	l := newLatexWithRunner(&fakeRunner{})
	_, err := l.Render(context.Background(), scan.Inline, "x", Params{Mode: "groff"})
	if !errors.Is(err, ErrUnsupportedMode) {
		t.Errorf("Render() error = %v, want ErrUnsupportedMode", err)
	}
	if len(l.runner.(*fakeRunner).calls) != 0 {
		t.Error("no subprocess should run for an unsupported mode")
	}
}

func TestLatex_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	l := newLatexWithRunner(&fakeRunner{})
	_, err := l.Render(ctx, scan.Inline, "x", Params{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Render() error = %v, want context.Canceled", err)
	}
}

// timeoutRunner simulates a toolchain hang that the context kills.
type timeoutRunner struct{}

func (timeoutRunner) Run(ctx context.Context, _, _ string, _ ...string) (string, string, error) {
	<-ctx.Done()
	return "", "", errors.New("signal: killed")
}

func TestLatex_Timeout(t *testing.T) {
	t.Parallel()

	l := &Latex{runner: timeoutRunner{}, latex: "latex", dvisvgm: "dvisvgm"}
	_, err := l.Render(context.Background(), scan.Inline, "x", Params{Timeout: 20 * time.Millisecond})
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("Render() error = %v, want ErrTimeout", err)
	}
}

func TestWrapDocument(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		kind         scan.Kind
		source       string
		preamble     string
		wantContains []string
	}{
		{
			name:   "inline uses text math mode",
			kind:   scan.Inline,
			source: "a+b",
			wantContains: []string{
				`\documentclass[preview,border=2pt]{standalone}`,
				`\usepackage{amsmath}`,
				"$a+b$",
			},
		},
		{
			name:   "block uses display mode",
			kind:   scan.Block,
			source: "e=mc^2",
			wantContains: []string{
				`\[e=mc^2\]`,
			},
		},
		{
			name:     "preamble injected before document body",
			kind:     scan.Inline,
			source:   "x",
			preamble: `\usepackage{physics}`,
			wantContains: []string{
				"\\usepackage{physics}\n\\begin{document}",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := wrapDocument(tt.kind, tt.source, tt.preamble)
			for _, want := range tt.wantContains {
				if !strings.Contains(got, want) {
					t.Errorf("wrapDocument() missing %q in:\n%s", want, got)
				}
			}
		})
	}
}
