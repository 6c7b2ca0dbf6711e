package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/decisiond/internal/embeddings"
	"github.com/fyrsmithlabs/decisiond/internal/insights"
	"github.com/fyrsmithlabs/decisiond/internal/service"
	"github.com/fyrsmithlabs/decisiond/internal/store"
	"github.com/fyrsmithlabs/decisiond/internal/store/memory"
)

// downProvider fails every call as an unreachable backend would.
type downProvider struct{}

func (downProvider) Embed(context.Context, string) ([]float32, error) {
	return nil, fmt.Errorf("tei: %w", embeddings.ErrProviderUnavailable)
}

func (downProvider) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, fmt.Errorf("tei: %w", embeddings.ErrProviderUnavailable)
}

func (downProvider) Dimension() int       { return 384 }
func (downProvider) ModelVersion() string { return "down" }
func (downProvider) Close() error         { return nil }

func setupTestServer(t *testing.T) *Server {
	t.Helper()
	embedder, err := embeddings.NewProvider(embeddings.ProviderConfig{Provider: "hash"}, nil)
	require.NoError(t, err)
	return serverWith(t, embedder)
}

func serverWith(t *testing.T, embedder embeddings.Provider) *Server {
	t.Helper()
	svc, err := service.New(service.Deps{Store: memory.New(), Embedder: embedder}, service.Config{})
	require.NoError(t, err)
	server, err := NewServer(svc, zap.NewNop(), &Config{Host: "localhost", Port: 8000})
	require.NoError(t, err)
	return server
}

// do sends a request and returns the recorder. body is JSON-encoded unless
// it is a string.
func do(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func captureDecision(t *testing.T, s *Server, title string) store.Decision {
	t.Helper()
	rec := do(t, s, http.MethodPost, "/api/v1/decisions", map[string]any{
		"title":            title,
		"reasoning":        "Free up time for product work",
		"expected_outcome": "More time for strategy",
		"confidence_score": 80,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[store.Decision](t, rec)
}

func TestNewServer(t *testing.T) {
	embedder, err := embeddings.NewProvider(embeddings.ProviderConfig{Provider: "hash"}, nil)
	require.NoError(t, err)
	svc, err := service.New(service.Deps{Store: memory.New(), Embedder: embedder}, service.Config{})
	require.NoError(t, err)

	t.Run("uses defaults when config is nil", func(t *testing.T) {
		server, err := NewServer(svc, zap.NewNop(), nil)
		require.NoError(t, err)
		assert.Equal(t, "localhost", server.config.Host)
		assert.Equal(t, 8000, server.config.Port)
		assert.Equal(t, "default_user", server.config.DefaultUserID)
	})

	t.Run("returns error when logger is nil", func(t *testing.T) {
		_, err := NewServer(svc, nil, nil)
		assert.ErrorContains(t, err, "logger is required")
	})

	t.Run("returns error when service is nil", func(t *testing.T) {
		_, err := NewServer(nil, zap.NewNop(), nil)
		assert.ErrorContains(t, err, "service cannot be nil")
	})
}

func TestHandleHealth(t *testing.T) {
	s := setupTestServer(t)
	rec := do(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[HealthResponse](t, rec).Status)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestMetricsEndpoint(t *testing.T) {
	s := setupTestServer(t)
	rec := do(t, s, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestDecisionsLifecycle(t *testing.T) {
	s := setupTestServer(t)

	d := captureDecision(t, s, "Hire a virtual assistant")
	assert.Equal(t, "default_user", d.UserID)
	assert.Equal(t, 80, d.ConfidenceScore)
	assert.NotEmpty(t, d.Category)
	assert.Equal(t, "irreversible", d.DecisionType)

	rec := do(t, s, http.MethodGet, "/api/v1/decisions/"+d.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, d.ID, decode[store.Decision](t, rec).ID)

	rec = do(t, s, http.MethodGet, "/api/v1/decisions?user_id=default_user&limit=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]store.Decision](t, rec), 1)

	rec = do(t, s, http.MethodGet, "/api/v1/decisions?user_id=someone_else", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]store.Decision](t, rec))

	rec = do(t, s, http.MethodDelete, "/api/v1/decisions/"+d.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/v1/decisions/"+d.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "decision not found")
}

func TestCaptureDecision_BadRequests(t *testing.T) {
	s := setupTestServer(t)
	tests := []struct {
		name string
		body any
		want string
	}{
		{"missing title", map[string]any{"reasoning": "x"}, "title"},
		{"blank title", map[string]any{"title": "   "}, "title"},
		{"malformed json", `{"title":`, "invalid request body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, "/api/v1/decisions", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.want)
		})
	}
}

func TestListDecisions_BadLimit(t *testing.T) {
	s := setupTestServer(t)
	rec := do(t, s, http.MethodGet, "/api/v1/decisions?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReflections(t *testing.T) {
	s := setupTestServer(t)
	d := captureDecision(t, s, "Hire a virtual assistant")

	rec := do(t, s, http.MethodPost, "/api/v1/reflections", map[string]any{
		"decision_id":    d.ID,
		"actual_outcome": "Onboarding was slow and I fell behind",
		"lessons":        "Document the process before delegating",
		"accuracy_score": 140,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decode[ReflectResponse](t, rec)
	assert.Equal(t, 100, resp.AccuracyScore)
	assert.NotEmpty(t, resp.AIInsight)
	assert.Equal(t, insights.SourceRuleBased, resp.InsightSource)
	assert.Equal(t, d.Category, resp.Category)

	rec = do(t, s, http.MethodGet, "/api/v1/reflections/"+d.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, resp.ID, decode[store.Reflection](t, rec).ID)

	rec = do(t, s, http.MethodGet, "/api/v1/reflections/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/v1/reflections", map[string]any{
		"decision_id": "unknown", "actual_outcome": "x",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/v1/reflections", map[string]any{"decision_id": d.ID})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "actual_outcome")
}

func TestReplay(t *testing.T) {
	s := setupTestServer(t)
	captureDecision(t, s, "Hire a virtual assistant")
	captureDecision(t, s, "Hire a designer")

	for _, path := range []string{"/api/v1/replay", "/api/v1/replay/similar"} {
		rec := do(t, s, http.MethodPost, path, map[string]any{"query": "hiring help", "top_k": 1})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		resp := decode[ReplayResponse](t, rec)
		assert.Equal(t, 1, resp.TotalFound)
		assert.Len(t, resp.Decisions, 1)
		assert.NotEmpty(t, resp.PatternSummary)
	}

	rec := do(t, s, http.MethodPost, "/api/v1/replay", map[string]any{"query": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAlternative(t *testing.T) {
	s := setupTestServer(t)
	d := captureDecision(t, s, "Hire a virtual assistant")

	rec := do(t, s, http.MethodPost, "/api/v1/replay/alternative?decision_id="+d.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[AlternativeResponse](t, rec)
	assert.Equal(t, d.ID, resp.DecisionID)
	assert.NotEmpty(t, resp.AlternativeStrategy)

	rec = do(t, s, http.MethodPost, "/api/v1/replay/alternative", map[string]any{"decision_id": d.ID})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/v1/replay/alternative", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/v1/replay/alternative?decision_id=unknown", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDailyGuidance(t *testing.T) {
	s := setupTestServer(t)
	captureDecision(t, s, "Hire a virtual assistant")

	rec := do(t, s, http.MethodPost, "/api/v1/daily/guidance", map[string]any{"query": "What should I focus on today?"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Query    string `json:"query"`
		Guidance struct {
			HighImpact        string `json:"high_impact"`
			AvoidBusyWork     string `json:"avoid_busy_work"`
			LongTermAlignment string `json:"long_term_alignment"`
		} `json:"guidance"`
		Context map[string]any `json:"context"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Guidance.HighImpact)
	assert.NotEmpty(t, resp.Guidance.AvoidBusyWork)
	assert.NotEmpty(t, resp.Guidance.LongTermAlignment)
	assert.EqualValues(t, 1, resp.Context["similar_decisions_used"])
	assert.Equal(t, false, resp.Context["weekly_summary_available"])
	assert.Contains(t, resp.Context, "top_categories")
}

func TestWeeklyInsights(t *testing.T) {
	s := setupTestServer(t)

	rec := do(t, s, http.MethodGet, "/api/v1/insights", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[WeeklyResponse](t, rec)
	assert.True(t, resp.Summary.Demo)
	assert.Equal(t, 61.0, resp.Summary.Maintenance)
	assert.Contains(t, resp.Summary.BalanceLabel, "more time maintaining than growing")
	assert.NotEmpty(t, resp.AIInsight)
	assert.Len(t, resp.RecentInsights, 1)

	rec = do(t, s, http.MethodPost, "/api/v1/insights/weekly", map[string]any{
		"week_start": "2025-03-10", "growth_pct": 55, "maintenance_pct": 25,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[WeeklySummaryCreatedResponse](t, rec)
	assert.Equal(t, "Weekly summary saved", created.Message)
	assert.Equal(t, 55.0, created.Summary.GrowthPct)
	assert.Equal(t, 8.0, created.Summary.BrandPct)

	rec = do(t, s, http.MethodGet, "/api/v1/insights/weekly", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decode[WeeklyResponse](t, rec)
	assert.False(t, resp.Summary.Demo)
	assert.Equal(t, 55.0, resp.Summary.Growth)
	require.NotNil(t, resp.Summary.WeekStart)

	rec = do(t, s, http.MethodPost, "/api/v1/insights/weekly", map[string]any{"week_start": "10/03/2025"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunWeeklyAnalysis(t *testing.T) {
	s := setupTestServer(t)
	captureDecision(t, s, "Fix the billing bugs")

	rec := do(t, s, http.MethodPost, "/api/v1/insights/weekly/run", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	report := decode[service.WeeklyRunReport](t, rec)
	assert.Equal(t, 1, report.Users)
}

func TestPrinciples(t *testing.T) {
	s := setupTestServer(t)
	rec := do(t, s, http.MethodGet, "/api/v1/principles?user_id=u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[PrinciplesResponse](t, rec)
	assert.Zero(t, resp.Total)
	assert.Empty(t, resp.Principles)
}

func TestEmbeddingUnavailable(t *testing.T) {
	s := serverWith(t, downProvider{})

	rec := do(t, s, http.MethodPost, "/api/v1/decisions", map[string]any{"title": "Hire a virtual assistant"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/v1/replay", map[string]any{"query": "hiring"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
