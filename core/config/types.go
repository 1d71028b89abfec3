package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Application ApplicationConfig `yaml:"application"`
	Database    RawDatabase       `yaml:"database"`
	Generator   RawGenerator      `yaml:"generator"`
	Engine      RawEngine         `yaml:"engine"`
	Sink        *RawSink          `yaml:"sink"`
	Buffer      *RawBuffer        `yaml:"buffer"`
	Storage     *RawStorage       `yaml:"storage"`
}

// ApplicationConfig carries the pipeline knobs that used to vary between the
// one-off backfill scripts. Every recognized field is enumerated here; there
// are no environment fallbacks.
type ApplicationConfig struct {
	Mode                string   `yaml:"mode"`
	BatchSize           int      `yaml:"batchSize"`
	OverfetchMultiplier int      `yaml:"overfetchMultiplier"`
	ItemDelay           Duration `yaml:"itemDelay"`
	BatchDelay          Duration `yaml:"batchDelay"`
	RequestTimeout      Duration `yaml:"requestTimeout"`
	MaxRetries          int      `yaml:"maxRetries"`
	RetryDelay          Duration `yaml:"retryDelay"`
	MaxRateLimitHits    int      `yaml:"maxRateLimitHits"`
	RateLimitAction     string   `yaml:"rateLimitAction"`
	MaxBackoffDoublings int      `yaml:"maxBackoffDoublings"`
	EmptyBatchThreshold int      `yaml:"emptyBatchThreshold"`
	SkipIncrement       int64    `yaml:"skipIncrement"`
	MaxProcessed        int64    `yaml:"maxProcessed"`
	MaxPromptTokens     int      `yaml:"maxPromptTokens"`
	EmbeddingDimensions int      `yaml:"embeddingDimensions"`
	CheckpointPath      string   `yaml:"checkpointPath"`
}

type Database interface{}

type Generator interface{}

type Engine interface{}

type Sink interface{}

type Buffer interface{}

type Storage interface{}

type RawDatabase struct {
	Type   string    `yaml:"type"`
	Config yaml.Node `yaml:"config"`
	Value  Database  `yaml:"value"`
}

type RawGenerator struct {
	Type     string        `yaml:"type"`
	Config   yaml.Node     `yaml:"config"`
	Fallback *RawGenerator `yaml:"fallback"`
	Value    Generator     `yaml:"value"`
}

type RawEngine struct {
	Type   string    `yaml:"type"`
	Config yaml.Node `yaml:"config"`
	Value  Engine    `yaml:"value"`
}

type RawSink struct {
	Type   string    `yaml:"type"`
	Config yaml.Node `yaml:"config"`
	Value  Sink      `yaml:"value"`
}

type RawBuffer struct {
	Type   string    `yaml:"type"`
	Config yaml.Node `yaml:"config"`
	Value  Buffer    `yaml:"value"`
}

type RawStorage struct {
	Type   string    `yaml:"type"`
	Config yaml.Node `yaml:"config"`
	Value  Storage   `yaml:"value"`
}

type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Name     string `yaml:"name"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type QdrantConfig struct {
	Host       string `yaml:"host"`
	Port       string `yaml:"port"`
	Collection string `yaml:"collection"`
}

type OpenAIConfig struct {
	APIKey string `yaml:"apikey"`
	Model  string `yaml:"model"`
}

type OllamaConfig struct {
	Model    string `yaml:"model"`
	Endpoint string `yaml:"endpoint"`
}

type NatsConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
	Name string `yaml:"name"`
}

type MinioConfig struct {
	Host      string `yaml:"host"`
	Port      string `yaml:"port"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
}

// Duration is a yaml-friendly time.Duration ("500ms", "2s").
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (rd *RawDatabase) UnmarshalYAML(value *yaml.Node) error {
	var tmp struct {
		Type   string    `yaml:"type"`
		Config yaml.Node `yaml:"config"`
	}
	if err := value.Decode(&tmp); err != nil {
		return err
	}

	rd.Type = tmp.Type
	rd.Config = tmp.Config

	switch tmp.Type {
	case "postgres":
		var cfg PostgresConfig
		if err := tmp.Config.Decode(&cfg); err != nil {
			return fmt.Errorf("error decoding postgres config: %w", err)
		}
		rd.Value = cfg
	default:
		return fmt.Errorf("unsupported database type: %s", tmp.Type)
	}

	return nil
}

func (rg *RawGenerator) UnmarshalYAML(value *yaml.Node) error {
	var tmp struct {
		Type     string        `yaml:"type"`
		Config   yaml.Node     `yaml:"config"`
		Fallback *RawGenerator `yaml:"fallback"`
	}
	if err := value.Decode(&tmp); err != nil {
		return err
	}

	rg.Type = tmp.Type
	rg.Config = tmp.Config
	rg.Fallback = tmp.Fallback

	switch tmp.Type {
	case "openai":
		var cfg OpenAIConfig
		if err := tmp.Config.Decode(&cfg); err != nil {
			return fmt.Errorf("error decoding openai config: %w", err)
		}
		rg.Value = cfg
	case "ollama":
		var cfg OllamaConfig
		if err := tmp.Config.Decode(&cfg); err != nil {
			return fmt.Errorf("error decoding ollama config: %w", err)
		}
		rg.Value = cfg
	default:
		return fmt.Errorf("unsupported generator type: %s", tmp.Type)
	}

	return nil
}

func (re *RawEngine) UnmarshalYAML(value *yaml.Node) error {
	var tmp struct {
		Type   string    `yaml:"type"`
		Config yaml.Node `yaml:"config"`
	}
	if err := value.Decode(&tmp); err != nil {
		return err
	}

	re.Type = tmp.Type
	re.Config = tmp.Config

	switch tmp.Type {
	case "openai":
		var cfg OpenAIConfig
		if err := tmp.Config.Decode(&cfg); err != nil {
			return fmt.Errorf("error decoding openai config: %w", err)
		}
		re.Value = cfg
	case "ollama":
		var cfg OllamaConfig
		if err := tmp.Config.Decode(&cfg); err != nil {
			return fmt.Errorf("error decoding ollama config: %w", err)
		}
		re.Value = cfg
	default:
		return fmt.Errorf("unsupported engine type: %s", tmp.Type)
	}

	return nil
}

func (rs *RawSink) UnmarshalYAML(value *yaml.Node) error {
	var tmp struct {
		Type   string    `yaml:"type"`
		Config yaml.Node `yaml:"config"`
	}
	if err := value.Decode(&tmp); err != nil {
		return err
	}

	rs.Type = tmp.Type
	rs.Config = tmp.Config

	switch tmp.Type {
	case "qdrant":
		var cfg QdrantConfig
		if err := tmp.Config.Decode(&cfg); err != nil {
			return fmt.Errorf("error decoding qdrant config: %w", err)
		}
		rs.Value = cfg
	default:
		return fmt.Errorf("unsupported sink type: %s", tmp.Type)
	}

	return nil
}

func (rb *RawBuffer) UnmarshalYAML(value *yaml.Node) error {
	var tmp struct {
		Type   string    `yaml:"type"`
		Config yaml.Node `yaml:"config"`
	}
	if err := value.Decode(&tmp); err != nil {
		return err
	}

	rb.Type = tmp.Type
	rb.Config = tmp.Config

	switch tmp.Type {
	case "nats":
		var cfg NatsConfig
		if err := tmp.Config.Decode(&cfg); err != nil {
			return fmt.Errorf("error decoding nats config: %w", err)
		}
		rb.Value = cfg
	default:
		return fmt.Errorf("unsupported buffer type: %s", tmp.Type)
	}

	return nil
}

func (rs *RawStorage) UnmarshalYAML(value *yaml.Node) error {
	var tmp struct {
		Type   string    `yaml:"type"`
		Config yaml.Node `yaml:"config"`
	}
	if err := value.Decode(&tmp); err != nil {
		return err
	}

	rs.Type = tmp.Type
	rs.Config = tmp.Config

	switch tmp.Type {
	case "minio":
		var cfg MinioConfig
		if err := tmp.Config.Decode(&cfg); err != nil {
			return fmt.Errorf("error decoding minio config: %w", err)
		}
		rs.Value = cfg
	default:
		return fmt.Errorf("unsupported storage type: %s", tmp.Type)
	}

	return nil
}
