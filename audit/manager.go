package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Turnstyle/ria-hunter-sub000/core/config"
	"github.com/Turnstyle/ria-hunter-sub000/core/db"
	"github.com/Turnstyle/ria-hunter-sub000/core/engine"
	"github.com/Turnstyle/ria-hunter-sub000/core/sink"
)

type AuditManager interface {
	Run(ctx context.Context, query string, duplicateLimit int) (bool, error)
}

type auditManager struct {
	database   db.Database
	sink       sink.Sink
	engine     engine.Engine
	dimensions int
}

func NewAuditManager(ctx context.Context, cfg *config.Config) (AuditManager, error) {
	logger := ctx.Value("logger").(*slog.Logger)

	logger.Info("creating a new audit manager", slog.String("component", "auditManager"))

	pgConfig, ok := cfg.Database.Value.(config.PostgresConfig)
	if !ok {
		return nil, fmt.Errorf("database config is not a postgres config")
	}
	database, err := db.NewPgDatabase(pgConfig)
	if err != nil {
		return nil, err
	}

	manager := auditManager{
		database:   database,
		dimensions: cfg.Application.EmbeddingDimensions,
	}

	if cfg.Sink != nil {
		newSink, err := sink.NewSink(ctx, *cfg.Sink)
		if err != nil {
			return nil, err
		}
		manager.sink = newSink

		newEngine, err := engine.NewEngine(ctx, cfg.Engine, cfg.Application)
		if err != nil {
			return nil, err
		}
		manager.engine = newEngine
	}

	return manager, nil
}

// Run reports row counts and coverage, flags duplicated firm names, and when
// a vector store is configured checks that its collection width matches the
// configured embedding dimension. Returns false when the audit found
// something an operator should look at.
func (manager auditManager) Run(ctx context.Context, query string, duplicateLimit int) (bool, error) {
	logger := ctx.Value("logger").(*slog.Logger)
	healthy := true

	stats, err := manager.database.Stats(ctx)
	if err != nil {
		return false, err
	}
	logger.Info("store counts",
		slog.String("component", "auditManager"),
		slog.Int64("profiles", stats.Profiles),
		slog.Int64("narratives", stats.Narratives),
		slog.Int64("embedded", stats.Embedded),
		slog.Int64("missing_narratives", stats.MissingNarratives),
		slog.Int64("missing_embeddings", stats.MissingEmbeddings),
		slog.Int64("null_legal_names", stats.NullLegalNames))
	if stats.NullLegalNames > 0 {
		logger.Warn("profiles without a legal name cannot be narrated",
			slog.String("component", "auditManager"),
			slog.Int64("count", stats.NullLegalNames))
		healthy = false
	}

	duplicated, err := manager.database.DuplicateFirmNames(ctx, duplicateLimit)
	if err != nil {
		return false, err
	}
	for _, firm := range duplicated {
		logger.Warn("duplicated firm name",
			slog.String("component", "auditManager"),
			slog.String("legal_name", firm.LegalName),
			slog.Int64("crd_count", firm.CRDCount))
	}
	if len(duplicated) > 0 {
		healthy = false
	}

	if manager.sink == nil {
		return healthy, nil
	}

	points, err := manager.sink.Count(ctx)
	if err != nil {
		return false, err
	}
	width, err := manager.sink.CollectionDimensions(ctx)
	if err != nil {
		return false, err
	}
	logger.Info("vector store",
		slog.String("component", "auditManager"),
		slog.String("collection", manager.sink.GetCollection(ctx)),
		slog.Uint64("points", points),
		slog.Uint64("dimensions", width))
	if width != uint64(manager.dimensions) {
		logger.Error("vector store width disagrees with the configured embedding dimension",
			slog.String("component", "auditManager"),
			slog.Uint64("collection_dimensions", width),
			slog.Int("configured_dimensions", manager.dimensions))
		healthy = false
	}
	if int64(points) < stats.Embedded {
		logger.Warn("vector store holds fewer points than embedded narratives",
			slog.String("component", "auditManager"),
			slog.Uint64("points", points),
			slog.Int64("embedded", stats.Embedded))
		healthy = false
	}

	if query != "" {
		vector, err := manager.engine.Embed(ctx, query)
		if err != nil {
			return false, fmt.Errorf("embedding smoke query: %w", err)
		}
		matches, err := manager.sink.Search(ctx, vector, 3)
		if err != nil {
			return false, fmt.Errorf("similarity smoke search: %w", err)
		}
		for _, match := range matches {
			logger.Info("similarity match",
				slog.String("component", "auditManager"),
				slog.Int64("crd_number", match.CRDNumber),
				slog.String("source", match.Source))
		}
		if len(matches) == 0 {
			logger.Warn("similarity smoke search returned no matches",
				slog.String("component", "auditManager"))
			healthy = false
		}
	}

	return healthy, nil
}
