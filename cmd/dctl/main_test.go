package main

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/decisiond/internal/embeddings"
	httpapi "github.com/fyrsmithlabs/decisiond/internal/http"
	"github.com/fyrsmithlabs/decisiond/internal/service"
	"github.com/fyrsmithlabs/decisiond/internal/store"
	"github.com/fyrsmithlabs/decisiond/internal/store/memory"
)

func startServer(t *testing.T) *httptest.Server {
	t.Helper()
	embedder, err := embeddings.NewProvider(embeddings.ProviderConfig{Provider: "hash"}, nil)
	require.NoError(t, err)
	svc, err := service.New(service.Deps{Store: memory.New(), Embedder: embedder}, service.Config{})
	require.NoError(t, err)
	srv, err := httpapi.NewServer(svc, zap.NewNop(), nil)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

// execute runs dctl with args against server and returns stdout.
func execute(t *testing.T, server string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--server", server}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestWorkflow(t *testing.T) {
	ts := startServer(t)

	out, err := execute(t, ts.URL, "health")
	require.NoError(t, err)
	assert.Contains(t, out, "Server Status: ok")

	out, err = execute(t, ts.URL, "--json", "capture",
		"--title", "Hire a virtual assistant",
		"--reasoning", "Admin work eats my mornings",
		"--expected", "More time for sales",
		"--confidence", "150")
	require.NoError(t, err)
	var d store.Decision
	require.NoError(t, json.Unmarshal([]byte(out), &d))
	assert.Equal(t, 100, d.ConfidenceScore)
	assert.Equal(t, "irreversible", d.DecisionType)

	out, err = execute(t, ts.URL, "list")
	require.NoError(t, err)
	assert.Contains(t, out, d.ID)

	out, err = execute(t, ts.URL, "reflect", d.ID,
		"--outcome", "Onboarding was slow and I fell behind",
		"--lessons", "Document the process before delegating")
	require.NoError(t, err)
	assert.Contains(t, out, "Accuracy:")

	out, err = execute(t, ts.URL, "replay", "hiring", "help", "--top-k", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "Hire a virtual assistant")

	out, err = execute(t, ts.URL, "alternative", d.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, strings.TrimSpace(out))

	out, err = execute(t, ts.URL, "daily", "What", "should", "I", "do", "today?")
	require.NoError(t, err)
	assert.Contains(t, out, "High impact:")
	assert.Contains(t, out, "Based on 1 similar decisions")

	out, err = execute(t, ts.URL, "insights")
	require.NoError(t, err)
	assert.Contains(t, out, "demo data")
	assert.Contains(t, out, "Maintenance 61%")

	out, err = execute(t, ts.URL, "principles")
	require.NoError(t, err)
	assert.Contains(t, out, "No principles yet")
}

func TestErrorsSurfaceServerMessage(t *testing.T) {
	ts := startServer(t)

	_, err := execute(t, ts.URL, "reflect", "missing", "--outcome", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "decision not found")

	_, err = execute(t, ts.URL, "capture")
	assert.Error(t, err, "title is required")
}

func TestUserFlagScopesRequests(t *testing.T) {
	ts := startServer(t)

	_, err := execute(t, ts.URL, "--user", "alice", "capture", "--title", "Raise prices")
	require.NoError(t, err)

	out, err := execute(t, ts.URL, "--user", "bob", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No decisions yet.")

	out, err = execute(t, ts.URL, "--user", "alice", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Raise prices")
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{"shorter than max", "hello", 10, "hello"},
		{"equal to max", "hello", 5, "hello"},
		{"longer than max", "hello world", 8, "hello..."},
		{"very short max", "hello", 3, "..."},
		{"multibyte", "héllo wörld", 8, "héllo..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, truncate(tt.input, tt.maxLen))
		})
	}
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "decision not found", errorMessage([]byte(`{"message":"decision not found"}`)))
	assert.Equal(t, "bad gateway", errorMessage([]byte("bad gateway\n")))
}
