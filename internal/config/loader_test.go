package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestHome points HOME at a temp dir and returns the allowed config dir.
func setupTestHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	dir := filepath.Join(home, ".config", "decisiond")
	require.NoError(t, os.MkdirAll(dir, 0700))
	return dir
}

func writeConfig(t *testing.T, dir, content string, perm os.FileMode) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), perm))
	require.NoError(t, os.Chmod(path, perm))
	return path
}

func TestLoadWithFile_Defaults(t *testing.T) {
	setupTestHome(t)

	cfg, err := LoadWithFile("")
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "fastembed", cfg.Embeddings.Provider)
	assert.Equal(t, 384, cfg.Embeddings.Dimension)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, "huggingface", cfg.Generation.Provider)
	assert.Equal(t, "mistralai/Mistral-7B-Instruct-v0.2", cfg.Generation.Model)
	assert.Equal(t, 5, cfg.Patterns.PrincipleThreshold)
	assert.Equal(t, 5, cfg.Patterns.PrincipleCap)
	assert.Equal(t, 10, cfg.Patterns.LessonWindow)
	assert.Equal(t, 80, cfg.Patterns.MinInsightLength)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.True(t, cfg.Generation.RedactPrompts)
	assert.Equal(t, "default_user", cfg.Service.DefaultUserID)
}

func TestLoadWithFile_ValidYAML(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, `server:
  port: 9191
store:
  driver: sqlite
  dsn: /tmp/decisions.db
generation:
  provider: openai
  model: gpt-4o-mini
  timeout: 5s
  redact_prompts: false
scheduler:
  enabled: false
`, 0600)

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "/tmp/decisions.db", cfg.Store.DSN.Value())
	assert.Equal(t, "openai", cfg.Generation.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.Generation.Model)
	assert.Equal(t, 5*time.Second, cfg.Generation.Timeout)
	assert.False(t, cfg.Generation.RedactPrompts)
	assert.False(t, cfg.Scheduler.Enabled)
}

func TestLoadWithFile_EnvironmentOverride(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, "server:\n  port: 9191\n", 0600)

	t.Setenv("DECISIOND_SERVER_PORT", "7777")
	t.Setenv("DECISIOND_GENERATION_MAX_RETRIES", "4")

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, 7777, cfg.Server.Port)
	assert.Equal(t, 4, cfg.Generation.MaxRetries)
}

func TestLoadWithFile_LegacyEnv(t *testing.T) {
	setupTestHome(t)

	t.Setenv("DATABASE_URL", "postgres://u:p@localhost/decisions")
	t.Setenv("HUGGINGFACE_API_KEY", "hf_abc")
	t.Setenv("HUGGINGFACE_MODEL", "HuggingFaceH4/zephyr-7b-beta")
	t.Setenv("DEFAULT_USER_ID", "alice")
	t.Setenv("CORS_ORIGINS", "http://localhost:3000")

	cfg, err := LoadWithFile("")
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://u:p@localhost/decisions", cfg.Store.DSN.Value())
	assert.Equal(t, "hf_abc", cfg.Generation.APIKey.Value())
	assert.Equal(t, "HuggingFaceH4/zephyr-7b-beta", cfg.Generation.Model)
	assert.Equal(t, "alice", cfg.Service.DefaultUserID)
	assert.Equal(t, "http://localhost:3000", cfg.Server.CORSOrigins)
}

func TestLoadWithFile_PrefixedEnvWinsOverLegacy(t *testing.T) {
	setupTestHome(t)

	t.Setenv("DEFAULT_USER_ID", "legacy")
	t.Setenv("DECISIOND_SERVICE_DEFAULT_USER_ID", "prefixed")

	cfg, err := LoadWithFile("")
	require.NoError(t, err)
	assert.Equal(t, "prefixed", cfg.Service.DefaultUserID)
}

func TestLoadWithFile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		perm    os.FileMode
		wantErr string
	}{
		{name: "invalid yaml", content: "server: [", perm: 0600, wantErr: "failed to load config file"},
		{name: "unknown store driver", content: "store:\n  driver: mongo\n", perm: 0600, wantErr: "unsupported store driver"},
		{name: "sqlite without dsn", content: "store:\n  driver: sqlite\n", perm: 0600, wantErr: "store.dsn is required"},
		{name: "unknown generation provider", content: "generation:\n  provider: bard\n", perm: 0600, wantErr: "unsupported generation provider"},
		{name: "tei without url", content: "embeddings:\n  provider: tei\n", perm: 0600, wantErr: "base_url is required"},
		{name: "unknown vector index", content: "store:\n  driver: sqlite\n  dsn: /tmp/d.db\n  vector_index: faiss\n", perm: 0600, wantErr: "unsupported store.vector_index"},
		{name: "vector index without sqlite", content: "store:\n  vector_index: qdrant\n", perm: 0600, wantErr: "requires the sqlite driver"},
	}
	if runtime.GOOS != "windows" {
		tests = append(tests, struct {
			name    string
			content string
			perm    os.FileMode
			wantErr string
		}{name: "insecure permissions", content: "server:\n  port: 9000\n", perm: 0644, wantErr: "insecure config file permissions"})
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := setupTestHome(t)
			path := writeConfig(t, dir, tt.content, tt.perm)

			_, err := LoadWithFile(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadWithFile_PathTraversal(t *testing.T) {
	setupTestHome(t)

	_, err := LoadWithFile(filepath.Join(t.TempDir(), "config.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config path validation failed")
}

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestSecret_Redaction(t *testing.T) {
	s := Secret("hunter2")
	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "hunter2", s.Value())
	assert.True(t, s.IsSet())

	b, err := s.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"[REDACTED]"`, string(b))

	assert.Equal(t, "", Secret("").String())
	assert.False(t, Secret("").IsSet())
}
