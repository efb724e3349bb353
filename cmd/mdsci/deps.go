package main

import (
	"io"
	"os"
	"time"
)

// Dependencies carries the ambient inputs of a CLI run. Commands write
// summaries to Stdout and diagnostics to Stderr; tests substitute
// buffers and a fixed clock.
type Dependencies struct {
	Now    func() time.Time
	Stdout io.Writer
	Stderr io.Writer
}

// DefaultDeps wires the real clock and process streams.
func DefaultDeps() *Dependencies {
	return &Dependencies{
		Now:    time.Now,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}
