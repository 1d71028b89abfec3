package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Turnstyle/ria-hunter-sub000/core/config"
)

func main() {
	// create a new logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	ctx := context.WithValue(context.Background(), "logger", logger)

	// an interrupt flushes the checkpoint and exits cleanly instead of
	// dying mid-batch
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	mode := flag.String("mode", "", "Override pipeline mode (narrative or embed)")
	maxProcessed := flag.Int64("max", 0, "Override the processed-count ceiling for this run")
	flag.Parse()

	newConfig, err := config.NewConfig(*configPath)
	if err != nil {
		logger.Error("Error reading configuration file", "error", err)
		os.Exit(1)
	}
	if *mode != "" {
		newConfig.Application.Mode = *mode
	}
	if *maxProcessed > 0 {
		newConfig.Application.MaxProcessed = *maxProcessed
	}
	if err := newConfig.Validate(); err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	manager, err := NewBackfillManager(ctx, newConfig)
	if err != nil {
		logger.Error("Error creating backfill manager", "error", err)
		os.Exit(1)
	}

	summary, err := manager.Run(ctx)
	if err != nil {
		logger.Error("Error running backfill manager", "error", err)
		os.Exit(1)
	}
	os.Exit(summary.Outcome.ExitCode())
}
