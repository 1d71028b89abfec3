package storage

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Turnstyle/ria-hunter-sub000/core/config"
)

// Storage archives generated narrative artifacts so raw model output can
// be inspected after the run.
type Storage interface {
	Upload(ctx context.Context, key string, data string) error
	Download(ctx context.Context, key string) (string, error)
}

func NewStorage(ctx context.Context, rawStorage config.RawStorage) (Storage, error) {
	logger := ctx.Value("logger").(*slog.Logger)

	switch rawStorage.Type {
	case "minio":
		minioConfig, ok := rawStorage.Value.(config.MinioConfig)
		if !ok {
			logger.Error("could not cast minio config to minio storage",
				slog.String("component", "storage"),
				slog.String("type", rawStorage.Type))
			return nil, errors.New("invalid minio storage config")
		}
		logger.Info("creating minio storage",
			slog.String("component", "storage"),
			slog.String("type", rawStorage.Type))
		newMinioConnector, err := NewMinioConnector(ctx, minioConfig)
		if err != nil {
			return nil, err
		}
		return newMinioConnector, nil
	default:
		logger.Error("could not find storage type",
			slog.String("component", "storage"),
			slog.String("type", rawStorage.Type))
		return nil, errors.New("could not find storage type")
	}
}
