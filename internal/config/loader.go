package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB

	// EnvPrefix prefixes every decisiond environment variable.
	EnvPrefix = "DECISIOND_"
)

// LoadWithFile loads configuration from a YAML file, then overrides with
// environment variables.
//
// Precedence (highest to lowest):
//  1. DECISIOND_* environment variables (DECISIOND_SERVER_PORT -> server.port)
//  2. Legacy variables: DATABASE_URL, HUGGINGFACE_API_KEY, HUGGINGFACE_MODEL,
//     DEFAULT_USER_ID, CORS_ORIGINS
//  3. YAML config file (default ~/.config/decisiond/config.yaml)
//  4. Defaults
//
// The file must live under ~/.config/decisiond/ or /etc/decisiond/, be at most
// 1MB and have 0600 or 0400 permissions. A missing file is not an error.
func LoadWithFile(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, ".config", "decisiond", "config.yaml")
	}

	if err := validateConfigPath(configPath); err != nil {
		return nil, fmt.Errorf("config path validation failed: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		content, err := readConfigFile(configPath)
		if err != nil {
			return nil, err
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// DECISIOND_GENERATION_MAX_RETRIES -> generation.max_retries
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		parts := strings.SplitN(lower, "_", 2)
		if len(parts) == 1 {
			return lower
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if !k.Exists("scheduler.enabled") {
		cfg.Scheduler.Enabled = true
	}
	if !k.Exists("generation.redact_prompts") {
		cfg.Generation.RedactPrompts = true
	}
	applyLegacyEnv(&cfg, k)
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Default returns a validated configuration built from defaults only.
func Default() *Config {
	cfg := Config{
		Scheduler:  SchedulerConfig{Enabled: true},
		Generation: GenerationConfig{RedactPrompts: true},
	}
	applyDefaults(&cfg)
	return &cfg
}

// readConfigFile opens the file once and validates the open descriptor.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if err := validateConfigFileProperties(info); err != nil {
		return nil, fmt.Errorf("config file validation failed: %w", err)
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

func validateConfigPath(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	resolvedPath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		// Path may not exist yet.
		resolvedPath = absPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	for _, dir := range []string{
		filepath.Join(home, ".config", "decisiond"),
		"/etc/decisiond",
	} {
		if strings.HasPrefix(resolvedPath, dir+string(filepath.Separator)) {
			return nil
		}
	}
	return fmt.Errorf("config file must be in ~/.config/decisiond/ or /etc/decisiond/")
}

func validateConfigFileProperties(info os.FileInfo) error {
	if runtime.GOOS != "windows" {
		perm := info.Mode().Perm()
		if perm != 0600 && perm != 0400 {
			return fmt.Errorf("insecure config file permissions: %v (expected 0600 or 0400)", perm)
		}
	}
	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	return nil
}

// applyLegacyEnv honors the variable names used by earlier deployments.
// Prefixed variables and file values win when both are set.
func applyLegacyEnv(cfg *Config, k *koanf.Koanf) {
	if v := os.Getenv("DATABASE_URL"); v != "" && !k.Exists("store.dsn") {
		cfg.Store.DSN = Secret(v)
		if !k.Exists("store.driver") {
			cfg.Store.Driver = driverForDSN(v)
		}
	}
	if v := os.Getenv("HUGGINGFACE_API_KEY"); v != "" && !k.Exists("generation.api_key") {
		cfg.Generation.APIKey = Secret(v)
	}
	if v := os.Getenv("HUGGINGFACE_MODEL"); v != "" && !k.Exists("generation.model") {
		cfg.Generation.Model = v
	}
	if v := os.Getenv("DEFAULT_USER_ID"); v != "" && !k.Exists("service.default_user_id") {
		cfg.Service.DefaultUserID = v
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" && !k.Exists("server.cors_origins") {
		cfg.Server.CORSOrigins = v
	}
}

func driverForDSN(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres"
	}
	return "sqlite"
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = "decisiond"
	}
	if cfg.Observability.Endpoint == "" {
		cfg.Observability.Endpoint = "localhost:4317"
		cfg.Observability.Insecure = true
	}
	if cfg.Observability.SampleRate == 0 {
		cfg.Observability.SampleRate = 1.0
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Embeddings.Provider == "" {
		cfg.Embeddings.Provider = "fastembed"
	}
	if cfg.Embeddings.Model == "" {
		cfg.Embeddings.Model = "sentence-transformers/all-MiniLM-L6-v2"
	}
	if cfg.Embeddings.Dimension == 0 {
		cfg.Embeddings.Dimension = 384
	}

	if cfg.Store.Driver == "" {
		cfg.Store.Driver = "memory"
	}
	if cfg.Store.Qdrant.Host == "" {
		cfg.Store.Qdrant.Host = "localhost"
	}
	if cfg.Store.Qdrant.Port == 0 {
		cfg.Store.Qdrant.Port = 6334
	}

	if cfg.Generation.Provider == "" {
		cfg.Generation.Provider = "huggingface"
	}
	if cfg.Generation.Model == "" && cfg.Generation.Provider == "huggingface" {
		cfg.Generation.Model = "mistralai/Mistral-7B-Instruct-v0.2"
	}
	if cfg.Generation.Timeout == 0 {
		cfg.Generation.Timeout = 30 * time.Second
	}
	if cfg.Generation.RateLimit == 0 {
		cfg.Generation.RateLimit = 2
	}
	if cfg.Generation.MaxRetries == 0 {
		cfg.Generation.MaxRetries = 2
	}

	if cfg.Patterns.PrincipleThreshold == 0 {
		cfg.Patterns.PrincipleThreshold = 5
	}
	if cfg.Patterns.PrincipleCap == 0 {
		cfg.Patterns.PrincipleCap = 5
	}
	if cfg.Patterns.LessonWindow == 0 {
		cfg.Patterns.LessonWindow = 10
	}
	if cfg.Patterns.MinInsightLength == 0 {
		cfg.Patterns.MinInsightLength = 80
	}

	if cfg.Scheduler.PruneInterval == 0 {
		cfg.Scheduler.PruneInterval = 24 * time.Hour
	}
	if cfg.Scheduler.RunTimeout == 0 {
		cfg.Scheduler.RunTimeout = 10 * time.Minute
	}
	if cfg.Scheduler.Window == 0 {
		cfg.Scheduler.Window = 7 * 24 * time.Hour
	}

	if cfg.Events.SubjectPrefix == "" {
		cfg.Events.SubjectPrefix = "decisiond"
	}

	if cfg.Service.DefaultUserID == "" {
		cfg.Service.DefaultUserID = "default_user"
	}
}
