package generation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHuggingFace_Generate(t *testing.T) {
	var got hfRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/acme/tiny", r.URL.Path)
		assert.Equal(t, "Bearer hf-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"generated_text":"  You underestimated setup time.  "}]`))
	}))
	defer server.Close()

	hf, err := NewHuggingFace(HuggingFaceConfig{
		APIKey:  "hf-key",
		Model:   "acme/tiny",
		BaseURL: server.URL + "/models/",
	})
	require.NoError(t, err)

	out, err := hf.Generate(context.Background(), "reflect", 300)
	require.NoError(t, err)
	assert.Equal(t, "You underestimated setup time.", out)
	assert.Equal(t, "reflect", got.Inputs)
	assert.Equal(t, 300, got.Parameters.MaxNewTokens)
	assert.False(t, got.Parameters.ReturnFullText)
}

func TestHuggingFace_Errors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		retryable bool
		contains  string
	}{
		{name: "model loading", status: 503, body: `{"error":"Model is currently loading"}`, retryable: true, contains: "currently loading"},
		{name: "rate limited", status: 429, body: `{}`, retryable: true},
		{name: "unauthorized", status: 401, body: `{"error":"Invalid token"}`, retryable: false, contains: "Invalid token"},
		{name: "empty list", status: 200, body: `[]`, retryable: false, contains: "empty response"},
		{name: "unexpected shape", status: 200, body: `{"generated_text":"x"}`, retryable: false, contains: "parse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			hf, err := NewHuggingFace(HuggingFaceConfig{APIKey: "k", BaseURL: server.URL})
			require.NoError(t, err)

			_, err = hf.Generate(context.Background(), "p", 10)
			require.Error(t, err)
			assert.Equal(t, tt.retryable, IsRetryable(err))
			if tt.contains != "" {
				assert.Contains(t, err.Error(), tt.contains)
			}
		})
	}
}

func TestNewHuggingFace_RequiresKey(t *testing.T) {
	_, err := NewHuggingFace(HuggingFaceConfig{})
	assert.Error(t, err)
}
