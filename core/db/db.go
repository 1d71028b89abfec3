package db

import (
	"context"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Turnstyle/ria-hunter-sub000/core/config"
	"github.com/Turnstyle/ria-hunter-sub000/core/data"
)

// Database is the relational store contract the pipeline depends on. The
// schema itself (tables, vector column width, search functions) is owned by
// the deployment, not by this code.
type Database interface {
	FetchProfileWindow(ctx context.Context, afterKey int64, limit int) ([]data.Profile, error)
	ExistingNarrativeKeys(ctx context.Context, keys []int64) (map[int64]struct{}, error)
	FetchNarrativesMissingEmbedding(ctx context.Context, afterKey int64, limit int) ([]data.Narrative, error)
	UpsertNarrative(ctx context.Context, narrative *data.Narrative) error
	MaxProfileKey(ctx context.Context) (int64, error)
	CountProfilesMissingNarrative(ctx context.Context) (int64, error)
	CountNarrativesMissingEmbedding(ctx context.Context) (int64, error)
	Stats(ctx context.Context) (Stats, error)
	DuplicateFirmNames(ctx context.Context, limit int) ([]DuplicateFirm, error)
}

type pgDatabase struct {
	db *gorm.DB
}

func NewPgDatabase(cfg config.PostgresConfig) (Database, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		cfg.Host,
		cfg.Username,
		cfg.Password,
		cfg.Name,
		cfg.Port,
	)

	gormDB, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	return &pgDatabase{db: gormDB}, nil
}
