package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
application:
  mode: narrative
  batchSize: 10
  itemDelay: 250ms
  batchDelay: 1s
  maxProcessed: 100
  embeddingDimensions: 1536
  checkpointPath: /tmp/cp.json
database:
  type: postgres
  config:
    host: localhost
    port: "5432"
    name: riahunter
    username: app
    password: secret
generator:
  type: openai
  config:
    apikey: sk-test
    model: gpt-4o-mini
  fallback:
    type: ollama
    config:
      model: llama3
      endpoint: http://localhost:11434
engine:
  type: openai
  config:
    apikey: sk-test
    model: text-embedding-3-small
sink:
  type: qdrant
  config:
    host: localhost
    port: "6334"
    collection: narratives
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestNewConfig(t *testing.T) {
	cfg, err := NewConfig(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, ModeNarrative, cfg.Application.Mode)
	assert.Equal(t, 10, cfg.Application.BatchSize)
	assert.Equal(t, 250*time.Millisecond, cfg.Application.ItemDelay.Std())
	assert.Equal(t, int64(100), cfg.Application.MaxProcessed)

	pg, ok := cfg.Database.Value.(PostgresConfig)
	require.True(t, ok)
	assert.Equal(t, "riahunter", pg.Name)

	gen, ok := cfg.Generator.Value.(OpenAIConfig)
	require.True(t, ok)
	assert.Equal(t, "gpt-4o-mini", gen.Model)

	require.NotNil(t, cfg.Generator.Fallback)
	fb, ok := cfg.Generator.Fallback.Value.(OllamaConfig)
	require.True(t, ok)
	assert.Equal(t, "llama3", fb.Model)

	require.NotNil(t, cfg.Sink)
	qd, ok := cfg.Sink.Value.(QdrantConfig)
	require.True(t, ok)
	assert.Equal(t, "narratives", qd.Collection)

	assert.Nil(t, cfg.Buffer)
	assert.Nil(t, cfg.Storage)
}

func TestNewConfigDefaults(t *testing.T) {
	minimal := `
database:
  type: postgres
  config:
    host: localhost
    name: riahunter
    username: app
    password: secret
generator:
  type: openai
  config:
    apikey: sk-test
    model: gpt-4o-mini
engine:
  type: openai
  config:
    apikey: sk-test
    model: text-embedding-3-small
`
	cfg, err := NewConfig(writeConfig(t, minimal))
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Application.BatchSize)
	assert.Equal(t, 4, cfg.Application.OverfetchMultiplier)
	assert.Equal(t, 5, cfg.Application.EmptyBatchThreshold)
	assert.Equal(t, int64(1000), cfg.Application.SkipIncrement)
	assert.Equal(t, 1536, cfg.Application.EmbeddingDimensions)
	assert.Equal(t, RateLimitActionBackoff, cfg.Application.RateLimitAction)
	assert.Equal(t, 30*time.Second, cfg.Application.RequestTimeout.Std())
}

func TestNewConfigMissingCredentials(t *testing.T) {
	noKey := `
database:
  type: postgres
  config:
    host: localhost
    name: riahunter
    username: app
    password: secret
generator:
  type: openai
  config:
    model: gpt-4o-mini
engine:
  type: openai
  config:
    apikey: sk-test
    model: text-embedding-3-small
`
	_, err := NewConfig(writeConfig(t, noKey))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "apikey")
}

func TestNewConfigUnsupportedTypes(t *testing.T) {
	bad := `
database:
  type: mysql
  config:
    host: localhost
`
	_, err := NewConfig(writeConfig(t, bad))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database type")
}

func TestNewConfigBadDuration(t *testing.T) {
	bad := `
application:
  itemDelay: soon
database:
  type: postgres
  config:
    host: localhost
    name: riahunter
    username: app
    password: secret
generator:
  type: openai
  config:
    apikey: sk-test
    model: gpt-4o-mini
engine:
  type: openai
  config:
    apikey: sk-test
    model: text-embedding-3-small
`
	_, err := NewConfig(writeConfig(t, bad))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid duration")
}
