package generator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	retry "github.com/avast/retry-go/v4"
	tiktoken "github.com/pkoukk/tiktoken-go"

	"github.com/Turnstyle/ria-hunter-sub000/core/config"
	"github.com/Turnstyle/ria-hunter-sub000/core/data"
)

// Generator produces narrative text for one profile.
type Generator interface {
	Generate(ctx context.Context, profile data.Profile) (string, error)
}

// Connector is a single text-completion provider.
type Connector interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Adapter wraps a primary connector (and an optional fallback) with the
// retry policy: a fixed number of attempts with fixed delay and a per-call
// timeout, shared across both providers. Rate-limit errors are returned to
// the caller immediately so the driver can count them.
type Adapter struct {
	primary         Connector
	fallback        Connector
	maxRetries      int
	retryDelay      time.Duration
	requestTimeout  time.Duration
	maxPromptTokens int
	countTokens     func(text string) (int, error)
}

func NewGenerator(ctx context.Context, generatorConfig config.RawGenerator, appConfig config.ApplicationConfig) (Generator, error) {
	logger := ctx.Value("logger").(*slog.Logger)

	logger.Info("creating new generator", slog.String("component", "generator"), slog.String("type", generatorConfig.Type))
	primary, err := newConnector(generatorConfig)
	if err != nil {
		return nil, err
	}

	var fallback Connector
	if generatorConfig.Fallback != nil {
		logger.Info("creating fallback generator", slog.String("component", "generator"), slog.String("type", generatorConfig.Fallback.Type))
		fallback, err = newConnector(*generatorConfig.Fallback)
		if err != nil {
			return nil, err
		}
	}

	return &Adapter{
		primary:         primary,
		fallback:        fallback,
		maxRetries:      appConfig.MaxRetries,
		retryDelay:      appConfig.RetryDelay.Std(),
		requestTimeout:  appConfig.RequestTimeout.Std(),
		maxPromptTokens: appConfig.MaxPromptTokens,
		countTokens:     newTokenCounter(modelName(generatorConfig)),
	}, nil
}

func newConnector(generatorConfig config.RawGenerator) (Connector, error) {
	switch generatorConfig.Type {
	case "openai":
		openaiConfig, ok := generatorConfig.Value.(config.OpenAIConfig)
		if !ok {
			return nil, fmt.Errorf("generator config is not an openai config")
		}
		return NewOpenAIChatConnector(openaiConfig), nil
	case "ollama":
		ollamaConfig, ok := generatorConfig.Value.(config.OllamaConfig)
		if !ok {
			return nil, fmt.Errorf("generator config is not an ollama config")
		}
		return NewOllamaChatConnector(ollamaConfig), nil
	default:
		return nil, fmt.Errorf("generator type %s is not supported", generatorConfig.Type)
	}
}

func modelName(generatorConfig config.RawGenerator) string {
	if openaiConfig, ok := generatorConfig.Value.(config.OpenAIConfig); ok {
		return openaiConfig.Model
	}
	return ""
}

func newTokenCounter(model string) func(string) (int, error) {
	return func(text string) (int, error) {
		enc, err := tiktoken.EncodingForModel(model)
		if err != nil {
			enc, err = tiktoken.GetEncoding("cl100k_base")
			if err != nil {
				return 0, fmt.Errorf("loading token encoding: %w", err)
			}
		}
		return len(enc.Encode(text, nil, nil)), nil
	}
}

func (a *Adapter) Generate(ctx context.Context, profile data.Profile) (string, error) {
	prompt, err := BuildPrompt(profile)
	if err != nil {
		return "", err
	}

	if a.maxPromptTokens > 0 && a.countTokens != nil {
		tokens, err := a.countTokens(prompt)
		if err != nil {
			return "", fmt.Errorf("counting prompt tokens: %w", err)
		}
		if tokens > a.maxPromptTokens {
			return "", fmt.Errorf("%w: prompt for profile %d is %d tokens, budget is %d",
				ErrDataInvalid, profile.CRDNumber, tokens, a.maxPromptTokens)
		}
	}

	var text string
	attempt := 0
	err = retry.Do(
		func() error {
			attempt++
			connector := a.primary
			// past the first attempt, failures move to the fallback provider
			if attempt > 1 && a.fallback != nil {
				connector = a.fallback
			}

			callCtx := ctx
			if a.requestTimeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(ctx, a.requestTimeout)
				defer cancel()
			}

			out, err := connector.Complete(callCtx, systemPrompt, prompt)
			if err != nil {
				return err
			}
			text = out
			return nil
		},
		retry.Attempts(uint(a.maxRetries)),
		retry.Delay(a.retryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.RetryIf(IsTransient),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	)
	if err != nil {
		return "", err
	}
	return text, nil
}
