// Package main is the entry point for the hoptrace CLI application.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/hoptrace/hoptrace/internal/trace"
)

// Version information (set via ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Exit codes.
const (
	exitOK          = 0
	exitError       = 1
	exitAborted     = 2
	exitInterrupted = 130
)

func main() {
	SetVersion(version, commit, date)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	go func() {
		// Restore default handling so a second signal kills the process.
		<-ctx.Done()
		stop()
	}()

	err := Execute(ctx)
	stop()

	os.Exit(exitCode(err, os.Stderr))
}

// exitCode maps the outcome of a command to the process exit status and
// reports errors on stderr.
func exitCode(err error, stderr io.Writer) int {
	switch {
	case err == nil, errors.Is(err, errQuit):
		return exitOK
	case errors.Is(err, errAborted):
		// The abort message was already written with the trace output.
		return exitAborted
	case errors.Is(err, trace.ErrInterrupted), errors.Is(err, context.Canceled):
		return exitInterrupted
	}

	fmt.Fprintf(stderr, "Error: %v\n", err)

	var re *trace.ResolutionError
	if errors.As(err, &re) {
		fmt.Fprintf(stderr, "\n%s", rootCmd.UsageString())
	}
	return exitError
}
