// Command otprobe connects to an OT gateway, logs in and prints every
// message it receives until the connection closes or it is interrupted.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/qntx/otprobe/config"
	"github.com/qntx/otprobe/logger"
	"github.com/qntx/otprobe/probe"
)

func main() {
	os.Exit(run(os.Stdout, os.Stderr))
}

// run executes one session, printing events to stdout and logs to stderr,
// and returns the process exit code.
func run(stdout, stderr io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load configuration: %v\n", err)

		return 1
	}

	log, err := logger.New(cfg.LogLevel, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to create logger: %v\n", err)

		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Restore default signal handling after the first interrupt so a second
	// one terminates the process while the close handshake is pending.
	context.AfterFunc(ctx, stop)

	p, err := probe.New(cfg, probe.NewPrinter(stdout, !cfg.NoColor), probe.WithLogger(log))
	if err != nil {
		log.Error("Failed to create probe: %v", err)

		return 1
	}

	if err := p.Start(ctx); err != nil {
		_ = p.Close()

		if ctx.Err() != nil {
			return 0
		}

		log.Error("Startup failed: %v", err)

		return 1
	}

	if err := p.RunForever(ctx); err != nil {
		log.Warn("Close failed: %v", err)
	}

	return 0
}
