// Package http provides the decisiond HTTP API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/decisiond/internal/insights"
	"github.com/fyrsmithlabs/decisiond/internal/logging"
	"github.com/fyrsmithlabs/decisiond/internal/patterns"
	"github.com/fyrsmithlabs/decisiond/internal/service"
	"github.com/fyrsmithlabs/decisiond/internal/store"
)

// Service is the workflow surface the API exposes.
type Service interface {
	Capture(ctx context.Context, in service.CaptureInput) (*store.Decision, error)
	GetDecision(ctx context.Context, id string) (*store.Decision, error)
	ListDecisions(ctx context.Context, userID string, limit int) ([]store.Decision, error)
	DeleteDecision(ctx context.Context, id string) error

	Reflect(ctx context.Context, in service.ReflectInput) (*service.ReflectResult, error)
	LatestReflection(ctx context.Context, decisionID string) (*store.Reflection, error)

	Replay(ctx context.Context, userID, query string, k int) (*service.ReplayResult, error)
	Alternative(ctx context.Context, decisionID string) (insights.Text, error)
	Daily(ctx context.Context, userID, query string) (*service.DailyResult, error)

	WeeklyInsights(ctx context.Context, userID string) (*service.WeeklyResult, error)
	SaveWeeklySummary(ctx context.Context, userID string, weekStart time.Time, b patterns.Breakdown) (*store.WeeklySummary, error)
	RunWeeklyAnalysis(ctx context.Context) (*service.WeeklyRunReport, error)
	Principles(ctx context.Context, userID string) ([]store.Insight, error)
}

// Server provides HTTP endpoints for decisiond.
type Server struct {
	echo   *echo.Echo
	svc    Service
	logger *logging.Logger
	config *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
	// CORSOrigins enables CORS for the listed origins.
	CORSOrigins []string
	// DefaultUserID applies when a request omits user_id.
	DefaultUserID string
}

// NewServer creates a new HTTP server.
func NewServer(svc Service, logger *zap.Logger, cfg *Config) (*Server, error) {
	if svc == nil {
		return nil, fmt.Errorf("service cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{Host: "localhost", Port: 8000}
	}
	if cfg.DefaultUserID == "" {
		cfg.DefaultUserID = "default_user"
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = newRequestValidator()

	s := &Server{
		echo:   e,
		svc:    svc,
		logger: logging.Wrap(logger.Named("http")),
		config: cfg,
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.BodyLimit("1M"))
	if len(cfg.CORSOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: cfg.CORSOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization},
		}))
	}
	e.Use(s.requestLogger)
	e.Use(NewHTTPMetrics(logger).MetricsMiddleware())

	s.registerRoutes()
	return s, nil
}

// requestLogger attaches the request id, the queried user and the logger to
// the context and logs each request once it completes.
func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		req := c.Request()
		ctx := logging.WithRequestID(req.Context(), c.Response().Header().Get(echo.HeaderXRequestID))
		if user := c.QueryParam("user_id"); user != "" {
			ctx = logging.WithUserID(ctx, user)
		}
		c.SetRequest(req.WithContext(logging.WithLogger(ctx, s.logger)))

		err := next(c)

		s.logger.Info(c.Request().Context(), "http request",
			zap.String("method", req.Method),
			zap.String("uri", req.RequestURI),
			zap.Int("status", c.Response().Status),
			zap.Duration("duration", time.Since(start)),
		)
		return err
	}
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")

	v1.POST("/decisions", s.handleCaptureDecision)
	v1.GET("/decisions", s.handleListDecisions)
	v1.GET("/decisions/:id", s.handleGetDecision)
	v1.DELETE("/decisions/:id", s.handleDeleteDecision)

	v1.POST("/reflections", s.handleReflect)
	v1.GET("/reflections/:decision_id", s.handleGetReflection)

	v1.POST("/replay", s.handleReplay)
	v1.POST("/replay/similar", s.handleReplay)
	v1.POST("/replay/alternative", s.handleAlternative)

	v1.POST("/daily/guidance", s.handleDaily)

	v1.GET("/insights", s.handleWeeklyInsights)
	v1.GET("/insights/weekly", s.handleWeeklyInsights)
	v1.POST("/insights/weekly", s.handleCreateWeeklySummary)
	v1.POST("/insights/weekly/run", s.handleRunWeeklyAnalysis)

	v1.GET("/principles", s.handlePrinciples)
}

// Handler exposes the router for embedding and tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts the HTTP server. It returns nil after Shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}

// userID returns v, or the default user when v is blank.
func (s *Server) userID(v string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return s.config.DefaultUserID
}
