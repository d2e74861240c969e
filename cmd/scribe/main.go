// Command scribe records a clinical encounter, transcribes it, and turns the
// transcript into a structured discharge report.
package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rbright/scribe/internal/app"
)

// shutdownSignals cancel the owner's context. SIGHUP covers the terminal
// hosting `scribe run` being closed mid-recording.
var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM, syscall.SIGHUP}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), shutdownSignals...)
	defer stop()

	return app.Execute(ctx, args, stdout, stderr)
}
