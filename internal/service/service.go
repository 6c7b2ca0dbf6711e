// Package service implements the decisiond workflows on top of the core
// engine: capture, reflection, replay, daily guidance and weekly analysis.
package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/decisiond/internal/embeddings"
	"github.com/fyrsmithlabs/decisiond/internal/events"
	"github.com/fyrsmithlabs/decisiond/internal/insights"
	"github.com/fyrsmithlabs/decisiond/internal/patterns"
	"github.com/fyrsmithlabs/decisiond/internal/retrieval"
	"github.com/fyrsmithlabs/decisiond/internal/store"
	"github.com/fyrsmithlabs/decisiond/internal/taxonomy"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

// ErrInvalidInput is returned for requests that fail validation.
var ErrInvalidInput = errors.New("invalid input")

// DefaultConfidence is used when a decision is captured without one.
const DefaultConfidence = 50

var tracer = otel.Tracer("decisiond.service")

// Config holds workflow thresholds. Zero values take defaults.
type Config struct {
	// PrincipleThreshold is the reflection count that enables extraction.
	PrincipleThreshold int
	// PrincipleCap bounds extracted and retained principles per user.
	PrincipleCap int
	// LessonWindow bounds the lessons read for extraction.
	LessonWindow int
	// WeeklyWindow is the look-back of the weekly analysis.
	WeeklyWindow time.Duration
	// RecentInsights is the number of insights returned with the weekly view.
	RecentInsights int
}

func (c *Config) applyDefaults() {
	if c.PrincipleThreshold <= 0 {
		c.PrincipleThreshold = patterns.DefaultThreshold
	}
	if c.PrincipleCap <= 0 {
		c.PrincipleCap = patterns.DefaultCap
	}
	if c.LessonWindow <= 0 {
		c.LessonWindow = patterns.DefaultLessonWindow
	}
	if c.WeeklyWindow <= 0 {
		c.WeeklyWindow = 7 * 24 * time.Hour
	}
	if c.RecentInsights <= 0 {
		c.RecentInsights = 5
	}
}

// Deps are the collaborators a Service needs. Publisher and Logger are
// optional.
type Deps struct {
	Store         store.Store
	Embedder      embeddings.Provider
	Categories    *taxonomy.CategoryClassifier
	Reversibility *taxonomy.ReversibilityClassifier
	Retriever     *retrieval.Retriever
	Insights      *insights.Orchestrator
	Publisher     events.Publisher
	Logger        *zap.Logger
}

// Service runs the workflows.
type Service struct {
	store         store.Store
	embedder      embeddings.Provider
	categories    *taxonomy.CategoryClassifier
	reversibility *taxonomy.ReversibilityClassifier
	retriever     *retrieval.Retriever
	insights      *insights.Orchestrator
	publisher     events.Publisher
	logger        *zap.Logger

	cfg   Config
	locks *keyedMutex
	now   func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// New creates a Service.
func New(deps Deps, cfg Config, opts ...Option) (*Service, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if deps.Embedder == nil {
		return nil, fmt.Errorf("embedder cannot be nil")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Publisher == nil {
		deps.Publisher = events.Noop{}
	}
	if deps.Categories == nil {
		deps.Categories = taxonomy.NewCategoryClassifier(deps.Embedder, nil, deps.Logger)
	}
	if deps.Reversibility == nil {
		deps.Reversibility = taxonomy.NewReversibilityClassifier(nil, nil, deps.Logger)
	}
	if deps.Retriever == nil {
		deps.Retriever = retrieval.New(deps.Embedder, deps.Store, deps.Logger)
	}
	if deps.Insights == nil {
		deps.Insights = insights.New(nil, insights.WithLogger(deps.Logger))
	}
	cfg.applyDefaults()

	s := &Service{
		store:         deps.Store,
		embedder:      deps.Embedder,
		categories:    deps.Categories,
		reversibility: deps.Reversibility,
		retriever:     deps.Retriever,
		insights:      deps.Insights,
		publisher:     deps.Publisher,
		logger:        deps.Logger,
		cfg:           cfg,
		locks:         newKeyedMutex(),
		now:           func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
