// Package main provides the devkit command line client.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := &cli.Command{
		Name:    "devkit",
		Usage:   "Read configuration, secrets and feature flags from DevKit",
		Version: "1.0.0",
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			loginCommand(),
			profilesCommand(),
			configCommand(),
			secretsCommand(),
			flagsCommand(),
			keygenCommand(),
			keyHashCommand(),
			encryptCommand(),
			watchCommand(),
		},
	}

	if err := cmd.Run(ctx, os.Args); err != nil {
		slog.Error("devkit error", slog.Any("error", err))
		os.Exit(1)
	}
}
