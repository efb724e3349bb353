package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"

	mdsci "github.com/scivant/go-mdsci"
	"github.com/scivant/go-mdsci/internal/assets"
	"github.com/scivant/go-mdsci/internal/config"
	"github.com/scivant/go-mdsci/internal/fileutil"
)

// Sentinel errors for CLI operations.
var (
	ErrNoInput            = errors.New("no input specified")
	ErrNoOutput           = errors.New("no output specified")
	ErrReadMarkdown       = errors.New("failed to read markdown file")
	ErrWriteOutput        = errors.New("failed to write output file")
	ErrInvalidExtension   = errors.New("file must have .md or .markdown extension")
	ErrInvalidWorkerCount = errors.New("invalid worker count")
)

// File permission constants.
const (
	dirPermissions  = 0o750 // rwxr-x---: owner full, group read+execute
	filePermissions = 0o644 // rw-r--r--: owner read+write, others read
)

// FileToProcess represents a single document to process.
type FileToProcess struct {
	InputPath  string
	OutputPath string
	HeadNumber string
}

// runProcess orchestrates the processing of one file or a document tree.
func runProcess(ctx context.Context, positionalArgs []string, flags *processFlags, deps *Dependencies) error {
	if err := validateWorkers(flags.workers); err != nil {
		return err
	}

	cfg := config.DefaultConfig()
	var err error
	if flags.config != "" {
		cfg, err = config.LoadConfig(flags.config)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
	}

	// Merge CLI flags into config (CLI wins)
	if err := mergeFlags(flags, cfg); err != nil {
		return err
	}

	inputPath, err := resolveInputPath(positionalArgs, cfg)
	if err != nil {
		return err
	}
	outputDir := resolveOutputDir(flags.output, cfg)
	if outputDir == "" {
		// Output defaulting to the input location would overwrite the
		// sources, so a destination is mandatory.
		return fmt.Errorf("%w: use --output or output.defaultDir in config", ErrNoOutput)
	}

	files, err := discoverFiles(inputPath, outputDir)
	if err != nil {
		return fmt.Errorf("discovering files: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no markdown files found in %s", inputPath)
	}

	proc, err := newProcessor(cfg)
	if err != nil {
		return err
	}
	defer proc.Close()

	runID := ulid.Make().String()
	if flags.verbose {
		fmt.Fprintf(deps.Stderr, "run %s: %d document(s), %d worker(s)\n",
			runID, len(files), mdsci.ResolveWorkers(cfg.Workers))
	}

	start := deps.Now()

	docs := make([]mdsci.Document, len(files))
	for i, f := range files {
		content, err := os.ReadFile(f.InputPath) // #nosec G304 -- user-provided input path
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrReadMarkdown, f.InputPath, err)
		}
		docs[i] = mdsci.Document{
			Name:       f.InputPath,
			Content:    string(content),
			HeadNumber: f.HeadNumber,
		}
	}

	results, err := proc.ProcessBook(ctx, docs)
	if err != nil {
		return err
	}

	used := make(map[string]struct{})
	var diagnostics []mdsci.Diagnostic
	for i, res := range results {
		f := files[i]
		if err := os.MkdirAll(filepath.Dir(f.OutputPath), dirPermissions); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrWriteOutput, f.OutputPath, err)
		}
		if err := fileutil.WriteFileAtomic(f.OutputPath, []byte(res.Content), filePermissions); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrWriteOutput, f.OutputPath, err)
		}

		for _, name := range res.UsedArtifacts {
			used[name] = struct{}{}
		}
		diagnostics = append(diagnostics, res.Diagnostics...)

		if flags.verbose {
			fmt.Fprintf(deps.Stderr, "  %s -> %s (%d artifact(s))\n",
				f.InputPath, f.OutputPath, len(res.UsedArtifacts))
		}
	}

	// Copy every referenced artifact next to the rewritten documents,
	// plus the stylesheet the embedded markup relies on.
	names := make([]string, 0, len(used))
	for name := range used {
		names = append(names, name)
	}
	assetsDir := filepath.Join(assetsBase(outputDir), "assets")
	if err := proc.ExportArtifacts(ctx, names, assetsDir); err != nil {
		return err
	}
	if err := writeStylesheet(assetsDir); err != nil {
		return err
	}

	for _, d := range diagnostics {
		fmt.Fprintf(deps.Stderr, "%s:%d:%d: %s\n", d.Document, d.Line, d.Column, d.Message)
	}
	if !flags.quiet {
		fmt.Fprintf(deps.Stdout, "processed %d document(s), %d artifact(s), %d render failure(s) in %s\n",
			len(files), len(names), len(diagnostics), deps.Now().Sub(start).Round(time.Millisecond))
	}

	return nil
}

// newProcessor builds the processor from resolved configuration.
func newProcessor(cfg *config.Config) (*mdsci.Processor, error) {
	opts := []mdsci.Option{
		mdsci.WithMode(cfg.Renderer.Mode),
		mdsci.WithScales(cfg.Renderer.InlineScale, cfg.Renderer.BlockScale),
		mdsci.WithWorkers(cfg.Workers),
	}
	if cfg.Cache.Dir != "" {
		opts = append(opts, mdsci.WithCacheDir(cfg.Cache.Dir))
	}
	if cfg.Bibliography.Path != "" {
		opts = append(opts, mdsci.WithBibliographyFile(cfg.Bibliography.Path))
	}
	if cfg.Renderer.Preamble != "" {
		opts = append(opts, mdsci.WithPreamble(cfg.Renderer.Preamble))
	}
	if cfg.Renderer.TimeoutSeconds > 0 {
		opts = append(opts, mdsci.WithTimeout(cfg.Renderer.Timeout()))
	}
	return mdsci.NewProcessor(opts...)
}

// mergeFlags merges CLI flags into config. CLI values override config values.
func mergeFlags(flags *processFlags, cfg *config.Config) error {
	if flags.cacheDir != "" {
		cfg.Cache.Dir = flags.cacheDir
	}
	if flags.bib != "" {
		cfg.Bibliography.Path = flags.bib
	}
	if flags.workers != 0 {
		cfg.Workers = flags.workers
	}
	if flags.mode != "" {
		cfg.Renderer.Mode = flags.mode
	}
	if flags.inline != 0 {
		cfg.Renderer.InlineScale = flags.inline
	}
	if flags.block != 0 {
		cfg.Renderer.BlockScale = flags.block
	}
	if flags.preamble != "" {
		cfg.Renderer.Preamble = flags.preamble
	}
	if flags.timeout != "" {
		d, err := time.ParseDuration(flags.timeout)
		if err != nil || d <= 0 {
			return fmt.Errorf("%w: invalid timeout %q", config.ErrInvalidField, flags.timeout)
		}
		cfg.Renderer.TimeoutSeconds = int(d / time.Second)
	}
	return cfg.Validate()
}

// resolveInputPath picks the input from positional args or config.
func resolveInputPath(args []string, cfg *config.Config) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if cfg.Input.DefaultDir != "" {
		return cfg.Input.DefaultDir, nil
	}
	return "", fmt.Errorf("%w: pass an input path or set input.defaultDir in config", ErrNoInput)
}

// resolveOutputDir picks the output destination from flag or config.
func resolveOutputDir(flagOutput string, cfg *config.Config) string {
	if flagOutput != "" {
		return flagOutput
	}
	return cfg.Output.DefaultDir
}

// writeStylesheet drops the embedded stylesheet into the assets
// directory so the emitted equation and citation markup is styled.
func writeStylesheet(assetsDir string) error {
	css, err := assets.LoadStyle(assets.DefaultStyleName)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(assetsDir, dirPermissions); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrWriteOutput, assetsDir, err)
	}
	path := filepath.Join(assetsDir, assets.DefaultStyleName+".css")
	if err := fileutil.WriteFileAtomic(path, []byte(css), filePermissions); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrWriteOutput, path, err)
	}
	return nil
}

// assetsBase returns the directory holding the assets/ subdirectory for
// an output destination that may be a single file path.
func assetsBase(outputDir string) string {
	if ext := filepath.Ext(outputDir); ext == ".md" || ext == ".markdown" {
		return filepath.Dir(outputDir)
	}
	return outputDir
}

// discoverFiles finds all markdown files to process. Directory trees
// are walked in lexical order and each document receives a sequential
// head number ("1.", "2.", ...) used to prefix its equation numbers.
func discoverFiles(inputPath, outputDir string) ([]FileToProcess, error) {
	info, err := os.Stat(inputPath)
	if err != nil {
		return nil, err
	}

	if !info.IsDir() {
		if err := validateMarkdownExtension(inputPath); err != nil {
			return nil, err
		}
		outPath := resolveOutputPath(inputPath, outputDir, "")
		return []FileToProcess{{InputPath: inputPath, OutputPath: outPath}}, nil
	}

	var files []FileToProcess
	err = filepath.WalkDir(inputPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("scanning %s: %w", path, err)
		}
		if d.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".md" && ext != ".markdown" {
			return nil
		}
		outPath := resolveOutputPath(path, outputDir, inputPath)
		files = append(files, FileToProcess{
			InputPath:  path,
			OutputPath: outPath,
			HeadNumber: fmt.Sprintf("%d.", len(files)+1),
		})
		return nil
	})

	return files, err
}

// resolveOutputPath determines the output path for a markdown file,
// mirroring the input layout under outputDir.
func resolveOutputPath(inputPath, outputDir, baseInputDir string) string {
	base := filepath.Base(inputPath)

	if ext := filepath.Ext(outputDir); ext == ".md" || ext == ".markdown" {
		return outputDir
	}

	if baseInputDir != "" {
		relPath, err := filepath.Rel(baseInputDir, inputPath)
		if err == nil {
			return filepath.Join(outputDir, relPath)
		}
	}

	return filepath.Join(outputDir, base)
}

// validateMarkdownExtension checks that the file has a .md or .markdown extension.
func validateMarkdownExtension(path string) error {
	ext := filepath.Ext(path)
	if ext != ".md" && ext != ".markdown" {
		return fmt.Errorf("%w: got %q", ErrInvalidExtension, ext)
	}
	return nil
}

// validateWorkers checks that the worker count is within valid bounds.
func validateWorkers(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: %d (must be >= 0, 0 means auto)", ErrInvalidWorkerCount, n)
	}
	if n > config.MaxWorkers {
		return fmt.Errorf("%w: %d (maximum is %d)", ErrInvalidWorkerCount, n, config.MaxWorkers)
	}
	return nil
}
