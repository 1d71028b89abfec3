package sink

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"
	qdrant "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/Turnstyle/ria-hunter-sub000/core/config"
	"github.com/Turnstyle/ria-hunter-sub000/core/data"
)

type QdrantConnector struct {
	config         config.QdrantConfig
	grpcConnection *grpc.ClientConn
	collection     string
}

func NewQdrantConnector(ctx context.Context, cfg config.QdrantConfig) (*QdrantConnector, error) {
	logger := ctx.Value("logger").(*slog.Logger)

	url := cfg.Host + ":" + cfg.Port
	conn, err := grpc.NewClient(url, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		logger.Error("failed to connect to qdrant", slog.String("url", url), slog.String("component", "sink"))
		return nil, err
	}
	return &QdrantConnector{config: cfg, grpcConnection: conn, collection: cfg.Collection}, nil
}

// pointID derives a stable UUID from the entity key so that re-mirroring a
// narrative replaces its point instead of accumulating duplicates.
func pointID(crdNumber int64) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("crd-"+strconv.FormatInt(crdNumber, 10))).String()
}

func (q *QdrantConnector) Upsert(ctx context.Context, narratives []data.Narrative, size int) error {
	logger := ctx.Value("logger").(*slog.Logger)

	if err := q.ensureCollection(ctx, size); err != nil {
		return err
	}

	points := make([]*qdrant.PointStruct, 0, len(narratives))
	for _, narrative := range narratives {
		if len(narrative.Embedding) == 0 {
			continue
		}
		point := &qdrant.PointStruct{
			Id:      &qdrant.PointId{PointIdOptions: &qdrant.PointId_Uuid{Uuid: pointID(narrative.CRDNumber)}},
			Payload: narrative.QdrantPayload(),
			Vectors: &qdrant.Vectors{VectorsOptions: &qdrant.Vectors_Vector{Vector: &qdrant.Vector{Data: narrative.Embedding}}},
		}
		points = append(points, point)
	}
	if len(points) == 0 {
		return nil
	}

	pointsClient := qdrant.NewPointsClient(q.grpcConnection)
	_, err := pointsClient.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Points:         points,
	})
	if err != nil {
		logger.Error("could not upsert the points", slog.String("collection", q.collection), slog.String("component", "sink"), slog.Any("error", err))
		return fmt.Errorf("failed to upsert points: %w", err)
	}

	logger.Info("upserted points", slog.String("collection", q.collection), slog.Int("count", len(points)), slog.String("component", "sink"))
	return nil
}

func (q *QdrantConnector) ensureCollection(ctx context.Context, size int) error {
	logger := ctx.Value("logger").(*slog.Logger)

	collectionsClient := qdrant.NewCollectionsClient(q.grpcConnection)
	_, err := collectionsClient.Get(ctx, &qdrant.GetCollectionInfoRequest{
		CollectionName: q.collection,
	})
	if err == nil {
		return nil
	}

	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.NotFound {
		logger.Error("failed to get collection", slog.String("collection", q.collection), slog.String("component", "sink"), slog.Any("error", err))
		return fmt.Errorf("failed to check collection: %w", err)
	}

	logger.Info("creating collection", slog.String("collection", q.collection), slog.String("component", "sink"))
	_, err = collectionsClient.Create(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: &qdrant.VectorsConfig{
			Config: &qdrant.VectorsConfig_Params{
				Params: &qdrant.VectorParams{
					Size:     uint64(size),
					Distance: qdrant.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		logger.Error("failed to create collection", slog.String("collection", q.collection), slog.String("component", "sink"), slog.Any("error", err))
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

func (q *QdrantConnector) Search(ctx context.Context, vector data.Vector, count int) ([]data.Narrative, error) {
	logger := ctx.Value("logger").(*slog.Logger)

	pointsClient := qdrant.NewPointsClient(q.grpcConnection)
	searchResp, err := pointsClient.Search(ctx, &qdrant.SearchPoints{
		CollectionName: q.collection,
		Vector:         vector,
		Limit:          uint64(count),
		WithPayload: &qdrant.WithPayloadSelector{
			SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		logger.Error("could not search for vectors", slog.String("collection", q.collection), slog.String("component", "sink"), slog.Any("error", err))
		return nil, fmt.Errorf("failed to search for vectors: %w", err)
	}

	results := make([]data.Narrative, 0, len(searchResp.Result))
	for _, point := range searchResp.Result {
		results = append(results, data.FromQdrantPayload(point.Payload))
	}
	return results, nil
}

func (q *QdrantConnector) Count(ctx context.Context) (uint64, error) {
	exact := true
	pointsClient := qdrant.NewPointsClient(q.grpcConnection)
	resp, err := pointsClient.Count(ctx, &qdrant.CountPoints{
		CollectionName: q.collection,
		Exact:          &exact,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count points: %w", err)
	}
	return resp.GetResult().GetCount(), nil
}

func (q *QdrantConnector) CollectionDimensions(ctx context.Context) (uint64, error) {
	collectionsClient := qdrant.NewCollectionsClient(q.grpcConnection)
	resp, err := collectionsClient.Get(ctx, &qdrant.GetCollectionInfoRequest{
		CollectionName: q.collection,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get collection: %w", err)
	}
	params := resp.GetResult().GetConfig().GetParams().GetVectorsConfig().GetParams()
	if params == nil {
		return 0, fmt.Errorf("collection %s has no vector params", q.collection)
	}
	return params.GetSize(), nil
}

func (q *QdrantConnector) GetCollection(ctx context.Context) string {
	return q.collection
}
