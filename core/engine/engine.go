package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	retry "github.com/avast/retry-go/v4"

	"github.com/Turnstyle/ria-hunter-sub000/core/config"
	"github.com/Turnstyle/ria-hunter-sub000/core/data"
	"github.com/Turnstyle/ria-hunter-sub000/core/generator"
)

// ErrDimensionMismatch is returned when a provider hands back a vector whose
// length disagrees with the configured width. The vector is never truncated
// or padded to fit.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

type Engine interface {
	Embed(ctx context.Context, text string) (data.Vector, error)
}

// NewEngine builds the configured embedding connector and wraps it with the
// same retry policy as text generation (bounded fixed-delay attempts with a
// per-call timeout, rate limits never retried) plus a width check on every
// returned vector.
func NewEngine(ctx context.Context, engineConfig config.RawEngine, appConfig config.ApplicationConfig) (Engine, error) {
	logger := ctx.Value("logger").(*slog.Logger)

	logger.Info("creating new engine", slog.String("component", "engine"), slog.String("type", engineConfig.Type))
	var connector Engine
	switch engineConfig.Type {
	case "openai":
		openaiConfig, ok := engineConfig.Value.(config.OpenAIConfig)
		if !ok {
			logger.Error("unable to parse openai config", slog.String("component", "engine"), slog.String("type", engineConfig.Type))
			return nil, fmt.Errorf("engine config is not an openai config")
		}
		connector = NewOpenAIConnector(openaiConfig)
	case "ollama":
		ollamaConfig, ok := engineConfig.Value.(config.OllamaConfig)
		if !ok {
			logger.Error("unable to parse ollama config", slog.String("component", "engine"), slog.String("type", engineConfig.Type))
			return nil, fmt.Errorf("engine config is not an ollama config")
		}
		ollamaConnector, err := NewOllamaConnector(ctx, ollamaConfig)
		if err != nil {
			return nil, err
		}
		connector = ollamaConnector
	default:
		logger.Error("unknown engine", slog.String("component", "engine"), slog.String("type", engineConfig.Type))
		return nil, fmt.Errorf("engine type %s is not supported", engineConfig.Type)
	}

	retrying := &retryingEngine{
		inner:          connector,
		maxRetries:     appConfig.MaxRetries,
		retryDelay:     appConfig.RetryDelay.Std(),
		requestTimeout: appConfig.RequestTimeout.Std(),
	}
	return &validatingEngine{inner: retrying, dimensions: appConfig.EmbeddingDimensions}, nil
}

// retryingEngine retries transient provider failures up to the shared retry
// ceiling with a fixed delay. Each attempt runs under its own timeout, so a
// hung call counts toward the ceiling like any other failure. Rate-limit
// errors go straight back to the caller.
type retryingEngine struct {
	inner          Engine
	maxRetries     int
	retryDelay     time.Duration
	requestTimeout time.Duration
}

func (e *retryingEngine) Embed(ctx context.Context, text string) (data.Vector, error) {
	var vector data.Vector
	err := retry.Do(
		func() error {
			callCtx := ctx
			if e.requestTimeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(ctx, e.requestTimeout)
				defer cancel()
			}

			out, err := e.inner.Embed(callCtx, text)
			if err != nil {
				return err
			}
			vector = out
			return nil
		},
		retry.Attempts(uint(e.maxRetries)),
		retry.Delay(e.retryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.RetryIf(generator.IsTransient),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	)
	if err != nil {
		return nil, err
	}
	return vector, nil
}

type validatingEngine struct {
	inner      Engine
	dimensions int
}

func (e *validatingEngine) Embed(ctx context.Context, text string) (data.Vector, error) {
	vector, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vector) != e.dimensions {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vector), e.dimensions)
	}
	return vector, nil
}
