//go:build !windows

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// notifyContext cancels the run on interrupt or termination, which
// aborts in-flight latex and gnuplot subprocesses through the render
// layer. The caller releases the signal handler via the cancel func.
func notifyContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
