package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Turnstyle/ria-hunter-sub000/core/buffer"
	"github.com/Turnstyle/ria-hunter-sub000/core/checkpoint"
	"github.com/Turnstyle/ria-hunter-sub000/core/config"
	"github.com/Turnstyle/ria-hunter-sub000/core/db"
	"github.com/Turnstyle/ria-hunter-sub000/core/engine"
	"github.com/Turnstyle/ria-hunter-sub000/core/generator"
	"github.com/Turnstyle/ria-hunter-sub000/core/pipeline"
	"github.com/Turnstyle/ria-hunter-sub000/core/sink"
	"github.com/Turnstyle/ria-hunter-sub000/core/storage"
)

type BackfillManager interface {
	Run(ctx context.Context) (pipeline.Summary, error)
}

type backfillManager struct {
	driver *pipeline.Driver
}

func NewBackfillManager(ctx context.Context, cfg *config.Config) (BackfillManager, error) {
	logger := ctx.Value("logger").(*slog.Logger)

	logger.Info("creating a new backfill manager", slog.String("component", "backfillManager"), slog.String("mode", cfg.Application.Mode))

	pgConfig, ok := cfg.Database.Value.(config.PostgresConfig)
	if !ok {
		return nil, fmt.Errorf("database config is not a postgres config")
	}
	database, err := db.NewPgDatabase(pgConfig)
	if err != nil {
		return nil, err
	}

	newGenerator, err := generator.NewGenerator(ctx, cfg.Generator, cfg.Application)
	if err != nil {
		return nil, err
	}

	newEngine, err := engine.NewEngine(ctx, cfg.Engine, cfg.Application)
	if err != nil {
		return nil, err
	}

	deps := pipeline.Deps{
		Generator:   newGenerator,
		Engine:      newEngine,
		Database:    database,
		Checkpoints: checkpoint.NewFileStore(cfg.Application.CheckpointPath),
		SourceTag:   fmt.Sprintf("%s-%d", cfg.Engine.Type, cfg.Application.EmbeddingDimensions),
	}

	switch cfg.Application.Mode {
	case config.ModeEmbed:
		deps.Selector = pipeline.NewMissingEmbeddingSelector(database)
	default:
		deps.Selector = pipeline.NewMissingNarrativeSelector(database, cfg.Application.OverfetchMultiplier)
	}

	if cfg.Sink != nil {
		newSink, err := sink.NewSink(ctx, *cfg.Sink)
		if err != nil {
			return nil, err
		}
		deps.Sink = newSink
	}
	if cfg.Buffer != nil {
		newBuffer, err := buffer.NewBuffer(ctx, *cfg.Buffer)
		if err != nil {
			return nil, err
		}
		deps.Buffer = newBuffer
	}
	if cfg.Storage != nil {
		newStorage, err := storage.NewStorage(ctx, *cfg.Storage)
		if err != nil {
			return nil, err
		}
		deps.Storage = newStorage
	}

	return backfillManager{driver: pipeline.NewDriver(cfg.Application, deps)}, nil
}

func (manager backfillManager) Run(ctx context.Context) (pipeline.Summary, error) {
	return manager.driver.Run(ctx)
}
