package buffer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/Turnstyle/ria-hunter-sub000/core/config"
	"github.com/Turnstyle/ria-hunter-sub000/core/data"
)

type natsStreamingBuffer struct {
	client   *nats.Conn
	producer jetstream.JetStream
	consumer jetstream.Consumer
	name     string
}

type natsMessage struct {
	message jetstream.Msg
}

func NewNATSStreamingBuffer(ctx context.Context, config config.NatsConfig) (Buffer, error) {
	logger := ctx.Value("logger").(*slog.Logger)

	url := config.Host + ":" + config.Port
	client, err := nats.Connect(url)
	if err != nil {
		logger.Error("could not connect to NATS",
			slog.String("component", "buffer"),
			slog.String("host", config.Host),
			slog.String("port", config.Port),
			slog.String("error", err.Error()))
		return nil, err
	}

	producer, err := jetstream.New(client)
	if err != nil {
		logger.Error("could not create JetStream producer",
			slog.String("component", "buffer"),
			slog.String("host", config.Host),
			slog.String("port", config.Port),
			slog.String("error", err.Error()))
		return nil, err
	}

	stream, err := producer.CreateStream(ctx, jetstream.StreamConfig{
		Name:     config.Name,
		Subjects: []string{fmt.Sprintf("%s.processed", config.Name)},
	})
	if err != nil {
		logger.Error("could not create JetStream stream",
			slog.String("component", "buffer"),
			slog.String("host", config.Host),
			slog.String("port", config.Port),
			slog.String("error", err.Error()))
		return nil, err
	}

	consumer, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Durable:   "CONS",
		AckPolicy: jetstream.AckExplicitPolicy,
	})
	if err != nil {
		logger.Error("could not create JetStream consumer",
			slog.String("component", "buffer"),
			slog.String("host", config.Host),
			slog.String("port", config.Port),
			slog.String("error", err.Error()))
		return nil, err
	}

	return &natsStreamingBuffer{
		client:   client,
		producer: producer,
		consumer: consumer,
		name:     config.Name,
	}, nil
}

func (buffer *natsStreamingBuffer) EnqueueBatch(ctx context.Context, events []data.ProgressEvent) error {
	logger := ctx.Value("logger").(*slog.Logger)

	logger.Debug("pushing progress events in a batch to the buffer",
		slog.String("component", "buffer"),
		slog.String("name", buffer.name),
		slog.Int("count", len(events)))
	for _, event := range events {
		if err := buffer.Enqueue(ctx, event); err != nil {
			return err
		}
	}

	return nil
}

func (buffer *natsStreamingBuffer) Enqueue(ctx context.Context, event data.ProgressEvent) error {
	logger := ctx.Value("logger").(*slog.Logger)

	_, err := buffer.producer.Publish(ctx, fmt.Sprintf("%s.processed", buffer.name), []byte(event.String()))
	if err != nil {
		logger.Error("could not enqueue progress event",
			slog.String("component", "buffer"),
			slog.String("name", buffer.name),
			slog.String("error", err.Error()),
			slog.Int64("crd_number", event.CRDNumber))
		return err
	}

	return nil
}

func (buffer *natsStreamingBuffer) Dequeue(ctx context.Context) (Message, error) {
	logger := ctx.Value("logger").(*slog.Logger)

	batch, err := buffer.consumer.Fetch(1)
	if err != nil {
		if errors.Is(err, nats.ErrTimeout) {
			return nil, ErrEmpty
		}
		logger.Error("could not dequeue progress event",
			slog.String("name", buffer.name),
			slog.String("error", err.Error()),
			slog.String("component", "buffer"))
		return nil, err
	}

	for message := range batch.Messages() {
		return natsMessage{message: message}, nil
	}

	return nil, ErrEmpty
}

func (buffer *natsStreamingBuffer) MarkConsumed(ctx context.Context, message Message) error {
	logger := ctx.Value("logger").(*slog.Logger)

	castNatsMessage := message.(natsMessage)
	err := castNatsMessage.message.Ack()
	if err != nil {
		logger.Error("could not mark message as consumed",
			slog.String("name", buffer.name),
			slog.String("error", err.Error()),
			slog.String("component", "buffer"))
		return err
	}

	return nil
}

func (msg natsMessage) GetMessageData() string {
	return string(msg.message.Data())
}
