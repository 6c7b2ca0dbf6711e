package embeddings

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Lazy defers backend construction to the first embed call. Exactly one
// caller runs the factory; concurrent callers block and share its result,
// including a failure.
type Lazy struct {
	model     string
	dimension int
	factory   func() (Backend, error)
	logger    *zap.Logger
	metrics   *Metrics

	mu    sync.Mutex
	state atomic.Pointer[loadState]
}

// loadState is replaced, never mutated, so the unlocked read in load sees a
// consistent pair.
type loadState struct {
	backend Backend
	err     error
}

// LazyOption configures a Lazy provider.
type LazyOption func(*Lazy)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) LazyOption {
	return func(l *Lazy) {
		l.logger = logger
	}
}

// WithMetrics overrides the metrics recorder.
func WithMetrics(m *Metrics) LazyOption {
	return func(l *Lazy) {
		l.metrics = m
	}
}

// NewLazy wraps factory. dimension, when positive, is enforced against the
// backend once it loads.
func NewLazy(model string, dimension int, factory func() (Backend, error), opts ...LazyOption) *Lazy {
	l := &Lazy{
		model:     model,
		dimension: dimension,
		factory:   factory,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.metrics == nil {
		l.metrics = NewMetrics(l.logger)
	}
	return l
}

func (l *Lazy) load() (Backend, error) {
	if st := l.state.Load(); st != nil {
		return st.backend, st.err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if st := l.state.Load(); st != nil {
		return st.backend, st.err
	}

	start := time.Now()
	st := &loadState{}
	b, err := l.factory()
	switch {
	case err != nil:
		st.err = fmt.Errorf("%w: initializing %s: %v", ErrProviderUnavailable, l.model, err)
	case l.dimension > 0 && b.Dimension() != l.dimension:
		_ = b.Close()
		st.err = fmt.Errorf("%w: model %s has dimension %d, configured %d",
			ErrInvalidConfig, l.model, b.Dimension(), l.dimension)
	default:
		st.backend = b
		l.dimension = b.Dimension()
	}

	if st.err != nil {
		l.logger.Error("embedding model failed to load", zap.String("model", l.model), zap.Error(st.err))
	} else {
		l.logger.Info("embedding model loaded",
			zap.String("model", l.model),
			zap.Int("dimension", l.dimension),
			zap.Duration("duration", time.Since(start)))
	}
	l.state.Store(st)
	return st.backend, st.err
}

// Embed returns the normalized vector for text.
func (l *Lazy) Embed(ctx context.Context, text string) ([]float32, error) {
	if isBlank(text) {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}
	vecs, err := l.embed(ctx, "embed", []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch returns normalized vectors for texts.
func (l *Lazy) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}
	for i, t := range texts {
		if isBlank(t) {
			return nil, fmt.Errorf("%w: text %d is empty", ErrEmptyInput, i)
		}
	}
	return l.embed(ctx, "embed_batch", texts)
}

func (l *Lazy) embed(ctx context.Context, op string, texts []string) (vecs [][]float32, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b, err := l.load()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() {
		l.metrics.RecordGeneration(ctx, l.model, op, time.Since(start), len(texts), err)
	}()

	vecs, err = b.EmbedTexts(ctx, texts)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", ErrProviderUnavailable, len(vecs), len(texts))
	}
	for i, v := range vecs {
		if len(v) != l.dimension {
			return nil, fmt.Errorf("%w: vector %d has dimension %d, want %d",
				ErrProviderUnavailable, i, len(v), l.dimension)
		}
		Normalize(v)
	}
	return vecs, nil
}

// Dimension returns the configured dimension, or the backend's once loaded.
func (l *Lazy) Dimension() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dimension
}

// ModelVersion returns the model name.
func (l *Lazy) ModelVersion() string {
	return l.model
}

// Loaded reports whether the backend has been initialized.
func (l *Lazy) Loaded() bool {
	st := l.state.Load()
	return st != nil && st.backend != nil
}

// Close releases the backend if it was loaded. Later embed calls fail with
// ErrProviderUnavailable.
func (l *Lazy) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	st := l.state.Load()
	if st == nil || st.backend == nil {
		return nil
	}
	l.state.Store(&loadState{err: fmt.Errorf("%w: provider closed", ErrProviderUnavailable)})
	return st.backend.Close()
}
