package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ModeNarrative = "narrative"
	ModeEmbed     = "embed"

	RateLimitActionBackoff = "backoff"
	RateLimitActionStop    = "stop"
)

func NewConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	cfg := &Config{Application: defaultApplication()}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultApplication() ApplicationConfig {
	return ApplicationConfig{
		Mode:                ModeNarrative,
		BatchSize:           25,
		OverfetchMultiplier: 4,
		ItemDelay:           Duration(500 * time.Millisecond),
		BatchDelay:          Duration(2 * time.Second),
		RequestTimeout:      Duration(30 * time.Second),
		MaxRetries:          3,
		RetryDelay:          Duration(time.Second),
		MaxRateLimitHits:    3,
		RateLimitAction:     RateLimitActionBackoff,
		MaxBackoffDoublings: 3,
		EmptyBatchThreshold: 5,
		SkipIncrement:       1000,
		MaxProcessed:        0,
		MaxPromptTokens:     3000,
		EmbeddingDimensions: 1536,
		CheckpointPath:      "backfill.checkpoint.json",
	}
}

// Validate enforces everything that must hold before any work is attempted.
// A failure here is a fatal setup error: no checkpoint is touched.
func (c *Config) Validate() error {
	app := c.Application
	if app.Mode != ModeNarrative && app.Mode != ModeEmbed {
		return fmt.Errorf("unsupported mode: %s", app.Mode)
	}
	if app.BatchSize <= 0 {
		return errors.New("batchSize must be positive")
	}
	if app.OverfetchMultiplier < 1 {
		return errors.New("overfetchMultiplier must be at least 1")
	}
	if app.MaxRetries < 1 {
		return errors.New("maxRetries must be at least 1")
	}
	if app.MaxRateLimitHits < 1 {
		return errors.New("maxRateLimitHits must be at least 1")
	}
	if app.RateLimitAction != RateLimitActionBackoff && app.RateLimitAction != RateLimitActionStop {
		return fmt.Errorf("unsupported rateLimitAction: %s", app.RateLimitAction)
	}
	if app.EmptyBatchThreshold < 1 {
		return errors.New("emptyBatchThreshold must be at least 1")
	}
	if app.SkipIncrement < 1 {
		return errors.New("skipIncrement must be at least 1")
	}
	if app.EmbeddingDimensions < 1 {
		return errors.New("embeddingDimensions must be at least 1")
	}
	if app.CheckpointPath == "" {
		return errors.New("checkpointPath is required")
	}

	pgConfig, ok := c.Database.Value.(PostgresConfig)
	if !ok {
		return errors.New("database is required")
	}
	if pgConfig.Host == "" || pgConfig.Name == "" || pgConfig.Username == "" || pgConfig.Password == "" {
		return errors.New("database credentials are incomplete")
	}

	if err := validateGenerator(&c.Generator); err != nil {
		return err
	}
	if c.Engine.Value == nil {
		return errors.New("engine is required")
	}
	if openaiConfig, ok := c.Engine.Value.(OpenAIConfig); ok && openaiConfig.APIKey == "" {
		return errors.New("engine openai apikey is required")
	}

	return nil
}

func validateGenerator(rg *RawGenerator) error {
	if rg == nil || rg.Value == nil {
		return errors.New("generator is required")
	}
	if openaiConfig, ok := rg.Value.(OpenAIConfig); ok && openaiConfig.APIKey == "" {
		return errors.New("generator openai apikey is required")
	}
	if ollamaConfig, ok := rg.Value.(OllamaConfig); ok && ollamaConfig.Endpoint == "" {
		return errors.New("generator ollama endpoint is required")
	}
	if rg.Fallback != nil {
		return validateGenerator(rg.Fallback)
	}
	return nil
}
