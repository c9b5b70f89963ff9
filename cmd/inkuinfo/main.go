package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"inkuinfo/internal/cli"
	appLog "inkuinfo/internal/log"
)

var version = "0.1.0-dev"

func main() {
	appLog.Info("inkuinfo starting", "version", version)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cli.Execute(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
