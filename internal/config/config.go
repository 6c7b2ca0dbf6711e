// Package config provides configuration loading for decisiond.
//
// Configuration is read from an optional YAML file and overlaid with
// environment variables. See LoadWithFile for precedence rules.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the complete decisiond configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Observability ObservabilityConfig `koanf:"observability"`
	Logging       LoggingConfig       `koanf:"logging"`
	Embeddings    EmbeddingsConfig    `koanf:"embeddings"`
	Store         StoreConfig         `koanf:"store"`
	Generation    GenerationConfig    `koanf:"generation"`
	Taxonomy      TaxonomyConfig      `koanf:"taxonomy"`
	Patterns      PatternsConfig      `koanf:"patterns"`
	Scheduler     SchedulerConfig     `koanf:"scheduler"`
	Events        EventsConfig        `koanf:"events"`
	Service       ServiceConfig       `koanf:"service"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	// CORSOrigins is a comma-separated allow list. Empty disables CORS.
	CORSOrigins string `koanf:"cors_origins"`
}

// ObservabilityConfig holds OpenTelemetry configuration.
type ObservabilityConfig struct {
	EnableTelemetry bool    `koanf:"enable_telemetry"`
	ServiceName     string  `koanf:"service_name"`
	Endpoint        string  `koanf:"endpoint"`
	Insecure        bool    `koanf:"insecure"`
	SampleRate      float64 `koanf:"sample_rate"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// EmbeddingsConfig selects and configures the embedding backend.
type EmbeddingsConfig struct {
	Provider  string `koanf:"provider"` // fastembed, tei, hash
	Model     string `koanf:"model"`
	BaseURL   string `koanf:"base_url"`
	CacheDir  string `koanf:"cache_dir"`
	Dimension int    `koanf:"dimension"`
	// QueryCacheSize bounds the query vector cache. Zero disables it.
	QueryCacheSize int `koanf:"query_cache_size"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver string `koanf:"driver"` // memory, sqlite, postgres
	DSN    Secret `koanf:"dsn"`
	// VectorIndex attaches a vector index to the sqlite driver: chromem or
	// qdrant. Empty ranks in memory.
	VectorIndex     string       `koanf:"vector_index"`
	VectorIndexPath string       `koanf:"vector_index_path"`
	Qdrant          QdrantConfig `koanf:"qdrant"`
}

// QdrantConfig locates the Qdrant server for vector_index: qdrant.
type QdrantConfig struct {
	Host   string `koanf:"host"`
	Port   int    `koanf:"port"` // gRPC
	APIKey Secret `koanf:"api_key"`
	UseTLS bool   `koanf:"use_tls"`
}

// GenerationConfig configures the text generation provider.
type GenerationConfig struct {
	Provider   string        `koanf:"provider"` // huggingface, openai, anthropic, ollama, noop
	Model      string        `koanf:"model"`
	APIKey     Secret        `koanf:"api_key"`
	BaseURL    string        `koanf:"base_url"`
	Timeout    time.Duration `koanf:"timeout"`
	RateLimit  float64       `koanf:"rate_limit"` // requests per second
	MaxRetries int           `koanf:"max_retries"`
	// RedactPrompts scrubs credentials from prompts. Defaults to true.
	RedactPrompts bool `koanf:"redact_prompts"`
}

// TaxonomyConfig points at an optional label table file.
type TaxonomyConfig struct {
	Path  string `koanf:"path"`
	Watch bool   `koanf:"watch"`
}

// PatternsConfig holds pattern analysis thresholds.
type PatternsConfig struct {
	PrincipleThreshold int `koanf:"principle_threshold"`
	PrincipleCap       int `koanf:"principle_cap"`
	LessonWindow       int `koanf:"lesson_window"`
	MinInsightLength   int `koanf:"min_insight_length"`
}

// SchedulerConfig controls background jobs.
type SchedulerConfig struct {
	Enabled       bool          `koanf:"enabled"`
	PruneInterval time.Duration `koanf:"prune_interval"`
	RunTimeout    time.Duration `koanf:"run_timeout"`
	Window        time.Duration `koanf:"window"`
}

// EventsConfig configures domain event publication. Empty URL disables it.
type EventsConfig struct {
	NATSURL       string `koanf:"nats_url"`
	SubjectPrefix string `koanf:"subject_prefix"`
}

// ServiceConfig holds workflow settings.
type ServiceConfig struct {
	DefaultUserID string `koanf:"default_user_id"`
}

var (
	validEmbeddingProviders  = map[string]bool{"fastembed": true, "tei": true, "hash": true}
	validStoreDrivers        = map[string]bool{"memory": true, "sqlite": true, "postgres": true}
	validVectorIndexes       = map[string]bool{"": true, "chromem": true, "qdrant": true}
	validGenerationProviders = map[string]bool{
		"huggingface": true, "openai": true, "anthropic": true, "ollama": true, "noop": true,
	}
)

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if c.Observability.EnableTelemetry && c.Observability.ServiceName == "" {
		return errors.New("service name required when telemetry is enabled")
	}
	if !validEmbeddingProviders[c.Embeddings.Provider] {
		return fmt.Errorf("unsupported embeddings provider: %q", c.Embeddings.Provider)
	}
	if c.Embeddings.Provider == "tei" && c.Embeddings.BaseURL == "" {
		return errors.New("embeddings.base_url is required for tei provider")
	}
	if c.Embeddings.QueryCacheSize < 0 {
		return errors.New("embeddings.query_cache_size cannot be negative")
	}
	if !validStoreDrivers[c.Store.Driver] {
		return fmt.Errorf("unsupported store driver: %q", c.Store.Driver)
	}
	if c.Store.Driver != "memory" && !c.Store.DSN.IsSet() {
		return fmt.Errorf("store.dsn is required for %s driver", c.Store.Driver)
	}
	if !validVectorIndexes[c.Store.VectorIndex] {
		return fmt.Errorf("unsupported store.vector_index: %q", c.Store.VectorIndex)
	}
	if c.Store.VectorIndex != "" && c.Store.Driver != "sqlite" {
		return fmt.Errorf("store.vector_index requires the sqlite driver, got %s", c.Store.Driver)
	}
	if c.Store.VectorIndex == "qdrant" && (c.Store.Qdrant.Port < 1 || c.Store.Qdrant.Port > 65535) {
		return fmt.Errorf("invalid store.qdrant.port: %d", c.Store.Qdrant.Port)
	}
	if !validGenerationProviders[c.Generation.Provider] {
		return fmt.Errorf("unsupported generation provider: %q", c.Generation.Provider)
	}
	if c.Generation.Timeout <= 0 {
		return errors.New("generation.timeout must be positive")
	}
	if c.Generation.MaxRetries < 0 {
		return errors.New("generation.max_retries cannot be negative")
	}
	if c.Patterns.PrincipleThreshold < 1 || c.Patterns.PrincipleCap < 1 || c.Patterns.LessonWindow < 1 {
		return errors.New("patterns thresholds must be positive")
	}
	if c.Scheduler.Enabled && c.Scheduler.PruneInterval <= 0 {
		return errors.New("scheduler.prune_interval must be positive when scheduler is enabled")
	}
	if c.Service.DefaultUserID == "" {
		return errors.New("service.default_user_id cannot be empty")
	}
	return nil
}
