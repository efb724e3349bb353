package main

import (
	"os"

	flag "github.com/spf13/pflag"
)

// processFlags holds all flags for the process command.
type processFlags struct {
	config   string
	output   string
	cacheDir string
	bib      string
	workers  int
	timeout  string
	mode     string
	inline   float64
	block    float64
	preamble string
	quiet    bool
	verbose  bool
}

// parseProcessFlags parses process command flags and returns positional args.
func parseProcessFlags(args []string) (*processFlags, []string, error) {
	fs := flag.NewFlagSet("process", flag.ContinueOnError)
	f := &processFlags{}

	fs.StringVarP(&f.config, "config", "c", "", "config file name or path")
	fs.StringVarP(&f.output, "output", "o", "", "output file or directory")
	fs.StringVar(&f.cacheDir, "cache-dir", "", "artifact cache directory")
	fs.StringVarP(&f.bib, "bib", "b", "", "BibTeX bibliography file")
	fs.IntVarP(&f.workers, "workers", "w", 0, "concurrent renders (0 = auto)")
	fs.StringVarP(&f.timeout, "timeout", "t", "", "per-span render timeout (e.g., 30s, 2m)")
	fs.StringVar(&f.mode, "mode", "", "renderer mode (latex)")
	fs.Float64Var(&f.inline, "inline-scale", 0, "zoom factor for inline math")
	fs.Float64Var(&f.block, "block-scale", 0, "zoom factor for display math")
	fs.StringVar(&f.preamble, "preamble", "", "extra LaTeX preamble lines")
	fs.BoolVarP(&f.quiet, "quiet", "q", false, "only show errors")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "show per-document detail")

	fs.Usage = func() { printProcessUsage(os.Stderr) }

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	return f, fs.Args(), nil
}
