package sink

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Turnstyle/ria-hunter-sub000/core/config"
	"github.com/Turnstyle/ria-hunter-sub000/core/data"
)

// Sink mirrors narrative embeddings into a vector store. Similarity ranking
// itself happens inside the store; this side only writes points and runs
// smoke queries against them.
type Sink interface {
	Upsert(ctx context.Context, narratives []data.Narrative, size int) error
	Search(ctx context.Context, vector data.Vector, count int) ([]data.Narrative, error)
	Count(ctx context.Context) (uint64, error)
	CollectionDimensions(ctx context.Context) (uint64, error)
	GetCollection(ctx context.Context) string
}

func NewSink(ctx context.Context, sinkConfig config.RawSink) (Sink, error) {
	logger := ctx.Value("logger").(*slog.Logger)

	logger.Info("creating vector store", slog.String("component", "sink"), slog.String("type", sinkConfig.Type))
	switch sinkConfig.Type {
	case "qdrant":
		qdrantConfig, ok := sinkConfig.Value.(config.QdrantConfig)
		if !ok {
			logger.Error("failed to cast qdrant config", slog.String("type", sinkConfig.Type), slog.String("component", "sink"))
			return nil, fmt.Errorf("sink config is not a qdrant config")
		}
		qdrantConnector, err := NewQdrantConnector(ctx, qdrantConfig)
		if err != nil {
			return nil, err
		}
		return qdrantConnector, nil
	default:
		return nil, fmt.Errorf("sink type %s is not supported", sinkConfig.Type)
	}
}
