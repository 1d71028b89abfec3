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

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	query := flag.String("query", "", "Optional text for a similarity-search smoke check against the vector store")
	duplicates := flag.Int("duplicates", 10, "How many duplicated firm names to report")
	flag.Parse()

	newConfig, err := config.NewConfig(*configPath)
	if err != nil {
		logger.Error("Error reading configuration file", "error", err)
		os.Exit(1)
	}

	manager, err := NewAuditManager(ctx, newConfig)
	if err != nil {
		logger.Error("Error creating audit manager", "error", err)
		os.Exit(1)
	}

	healthy, err := manager.Run(ctx, *query, *duplicates)
	if err != nil {
		logger.Error("Error running audit", "error", err)
		os.Exit(1)
	}
	if !healthy {
		os.Exit(1)
	}
}
