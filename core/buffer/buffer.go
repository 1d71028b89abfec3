package buffer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Turnstyle/ria-hunter-sub000/core/config"
	"github.com/Turnstyle/ria-hunter-sub000/core/data"
)

// ErrEmpty is returned by Dequeue when no message is waiting, letting a
// consumer tell a drained buffer apart from a broken one.
var ErrEmpty = errors.New("empty buffer")

type Message interface {
	GetMessageData() string
}

// Buffer carries progress events for consumers that track the backfill
// without querying the database.
type Buffer interface {
	EnqueueBatch(ctx context.Context, events []data.ProgressEvent) error
	Enqueue(ctx context.Context, event data.ProgressEvent) error
	Dequeue(ctx context.Context) (Message, error)
	MarkConsumed(ctx context.Context, message Message) error
}

func NewBuffer(ctx context.Context, rawBuffer config.RawBuffer) (Buffer, error) {
	logger := ctx.Value("logger").(*slog.Logger)

	switch rawBuffer.Type {
	case "nats":
		natsConfig, ok := rawBuffer.Value.(config.NatsConfig)
		if !ok {
			logger.Error("could not convert nats config to nats buffer",
				slog.String("component", "buffer"),
				slog.String("type", fmt.Sprintf("%T", rawBuffer.Value)))
			return nil, fmt.Errorf("invalid nats buffer config")
		}
		logger.Debug("creating nats buffer", slog.String("component", "buffer"))
		streamingBuffer, err := NewNATSStreamingBuffer(ctx, natsConfig)
		if err != nil {
			return nil, err
		}
		return streamingBuffer, nil
	default:
		logger.Error("could not create buffer", slog.String("type", rawBuffer.Type))
		return nil, fmt.Errorf("unknown buffer type: %s", rawBuffer.Type)
	}
}
