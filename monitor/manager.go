package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Turnstyle/ria-hunter-sub000/core/buffer"
	"github.com/Turnstyle/ria-hunter-sub000/core/config"
	"github.com/Turnstyle/ria-hunter-sub000/core/data"
	"github.com/Turnstyle/ria-hunter-sub000/core/storage"
)

type MonitorManager interface {
	Run(ctx context.Context) error
}

// monitorManager drains the progress-event buffer a backfill run published
// to, logging each event. With verify set it also re-reads the archived
// narrative artifact for every narrative-stage event, which confirms the
// object store holds what the run claimed to archive.
type monitorManager struct {
	buffer  buffer.Buffer
	storage storage.Storage
	verify  bool
}

func NewMonitorManager(ctx context.Context, cfg *config.Config, verify bool) (MonitorManager, error) {
	logger := ctx.Value("logger").(*slog.Logger)

	logger.Info("creating a new monitor manager", slog.String("component", "monitorManager"))

	if cfg.Buffer == nil {
		return nil, fmt.Errorf("monitor requires a buffer section in the configuration")
	}
	newBuffer, err := buffer.NewBuffer(ctx, *cfg.Buffer)
	if err != nil {
		return nil, err
	}

	manager := monitorManager{
		buffer: newBuffer,
		verify: verify,
	}

	if cfg.Storage != nil {
		newStorage, err := storage.NewStorage(ctx, *cfg.Storage)
		if err != nil {
			return nil, err
		}
		manager.storage = newStorage
	}
	if verify && manager.storage == nil {
		return nil, fmt.Errorf("verify requires a storage section in the configuration")
	}

	return manager, nil
}

// Run consumes progress events until the buffer is drained or the context is
// cancelled. A malformed message is logged and acknowledged so it cannot
// wedge the stream.
func (manager monitorManager) Run(ctx context.Context) error {
	logger := ctx.Value("logger").(*slog.Logger)

	var drained int64
	for {
		if ctx.Err() != nil {
			logger.Info("stopping the monitor",
				slog.String("component", "monitorManager"),
				slog.Int64("events", drained))
			return nil
		}

		message, err := manager.buffer.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, buffer.ErrEmpty) {
				logger.Info("buffer drained",
					slog.String("component", "monitorManager"),
					slog.Int64("events", drained))
				return nil
			}
			logger.Error("could not dequeue a progress event",
				slog.String("component", "monitorManager"),
				slog.String("error", err.Error()))
			return err
		}

		event, err := data.ParseProgressEvent(message.GetMessageData())
		if err != nil {
			logger.Warn("discarding a malformed progress event",
				slog.String("component", "monitorManager"),
				slog.String("error", err.Error()))
			if err := manager.buffer.MarkConsumed(ctx, message); err != nil {
				return err
			}
			continue
		}

		logger.Info("progress event",
			slog.String("component", "monitorManager"),
			slog.Int64("crd_number", event.CRDNumber),
			slog.String("stage", event.Stage),
			slog.String("source", event.Source),
			slog.Time("at", event.At))

		if manager.verify && event.Stage == config.ModeNarrative {
			manager.verifyArtifact(ctx, logger, event.CRDNumber)
		}

		if err := manager.buffer.MarkConsumed(ctx, message); err != nil {
			logger.Error("could not mark a progress event as consumed",
				slog.String("component", "monitorManager"),
				slog.Int64("crd_number", event.CRDNumber),
				slog.String("error", err.Error()))
			return err
		}
		drained++
	}
}

func (manager monitorManager) verifyArtifact(ctx context.Context, logger *slog.Logger, crdNumber int64) {
	key := storage.ArtifactKey(crdNumber)
	text, err := manager.storage.Download(ctx, key)
	if err != nil {
		logger.Warn("archived narrative artifact is missing",
			slog.String("component", "monitorManager"),
			slog.Int64("crd_number", crdNumber),
			slog.String("key", key),
			slog.String("error", err.Error()))
		return
	}
	logger.Info("archived narrative artifact is present",
		slog.String("component", "monitorManager"),
		slog.Int64("crd_number", crdNumber),
		slog.String("key", key),
		slog.Int("bytes", len(text)))
}
