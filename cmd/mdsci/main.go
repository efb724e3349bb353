package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/automaxprocs/maxprocs"

	mdsci "github.com/scivant/go-mdsci"
	"github.com/scivant/go-mdsci/internal/config"
	"github.com/scivant/go-mdsci/internal/hints"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	os.Exit(realMain(os.Args[1:]))
}

func realMain(args []string) int {
	deps := DefaultDeps()

	// Error ignored: maxprocs.Set only fails if GOMAXPROCS env is invalid,
	// in which case Go runtime defaults apply and the program continues safely.
	_, _ = maxprocs.Set(maxprocs.Logger(func(string, ...interface{}) {}))

	if len(args) == 0 {
		printUsage(deps.Stderr)
		return ExitUsage
	}

	cmd := args[0]
	rest := args[1:]

	switch cmd {
	case "process":
		return runProcessCmd(rest, deps)
	case "doctor":
		return runDoctorCmd(rest, deps)
	case "version":
		fmt.Fprintf(deps.Stdout, "mdsci %s\n", Version)
		return ExitSuccess
	case "help", "-h", "--help":
		runHelp(rest, deps)
		return ExitSuccess
	default:
		// Bare input path or flags: treat as process for convenience.
		return runProcessCmd(args, deps)
	}
}

// runProcessCmd parses flags, wires the signal context, and runs the
// process command.
func runProcessCmd(args []string, deps *Dependencies) int {
	flags, positional, err := parseProcessFlags(args)
	if err != nil {
		fmt.Fprintln(deps.Stderr, err)
		return ExitUsage
	}

	ctx, stop := notifyContext(context.Background())
	defer stop()

	if err := runProcess(ctx, positional, flags, deps); err != nil {
		fmt.Fprintln(deps.Stderr, err.Error()+hintFor(err))
		return exitCodeFor(err)
	}
	return ExitSuccess
}

// hintFor maps an error to an actionable suggestion, or "".
func hintFor(err error) string {
	switch {
	case errors.Is(err, mdsci.ErrToolchainMissing):
		return hints.ForToolchainMissing()
	case errors.Is(err, mdsci.ErrNoBibliography):
		return hints.ForNoBibliography()
	case errors.Is(err, mdsci.ErrRenderTimeout):
		return hints.ForTimeout()
	case errors.Is(err, config.ErrConfigNotFound):
		return hints.ForConfigNotFound(nil)
	case errors.Is(err, ErrWriteOutput):
		return hints.ForOutputDirectory()
	}
	return ""
}
