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
	verify := flag.Bool("verify", false, "Re-read the archived artifact for each narrative event")
	flag.Parse()

	newConfig, err := config.NewConfig(*configPath)
	if err != nil {
		logger.Error("Error reading configuration file", "error", err)
		os.Exit(1)
	}

	manager, err := NewMonitorManager(ctx, newConfig, *verify)
	if err != nil {
		logger.Error("Error creating monitor manager", "error", err)
		os.Exit(1)
	}

	if err := manager.Run(ctx); err != nil {
		logger.Error("Error running monitor", "error", err)
		os.Exit(1)
	}
}
