package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/decisiond/internal/redact"
)

const (
	defaultTimeout     = 30 * time.Second
	defaultRateLimit   = 2.0
	defaultBurst       = 1
	defaultMaxRetries  = 2
	defaultBaseBackoff = time.Second
)

// retryableError marks a provider failure worth another attempt.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

// retryable wraps err so IsRetryable reports true.
func retryable(err error) error {
	if err == nil {
		return nil
	}
	return &retryableError{err: err}
}

// IsRetryable reports whether err is a transient provider failure.
func IsRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

// retryableStatus reports whether an HTTP status is worth retrying.
func retryableStatus(code int) bool {
	return code == 429 || code >= 500
}

// Resilient adds rate limiting, a wall-clock timeout and bounded retries
// with exponential backoff to a provider.
type Resilient struct {
	next        Generator
	name        string
	limiter     *rate.Limiter
	timeout     time.Duration
	maxRetries  int
	baseBackoff time.Duration
	metrics     *Metrics
	redactor    *redact.Redactor
	logger      *zap.Logger
}

// ResilientOption configures a Resilient generator.
type ResilientOption func(*Resilient)

// WithName sets the provider name used in logs and metrics.
func WithName(name string) ResilientOption {
	return func(r *Resilient) { r.name = name }
}

// WithRateLimit sets requests per second. Non-positive disables limiting.
func WithRateLimit(rps float64) ResilientOption {
	return func(r *Resilient) {
		if rps <= 0 {
			r.limiter = nil
			return
		}
		r.limiter = rate.NewLimiter(rate.Limit(rps), defaultBurst)
	}
}

// WithTimeout bounds each Generate call including retries.
func WithTimeout(d time.Duration) ResilientOption {
	return func(r *Resilient) { r.timeout = d }
}

// WithMaxRetries sets the number of retries after the first attempt.
func WithMaxRetries(n int) ResilientOption {
	return func(r *Resilient) {
		if n >= 0 {
			r.maxRetries = n
		}
	}
}

// WithBackoff sets the base backoff, doubled on each retry.
func WithBackoff(d time.Duration) ResilientOption {
	return func(r *Resilient) { r.baseBackoff = d }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) ResilientOption {
	return func(r *Resilient) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *Metrics) ResilientOption {
	return func(r *Resilient) { r.metrics = m }
}

// WithRedactor scrubs credentials from every prompt before it reaches the
// provider.
func WithRedactor(rd *redact.Redactor) ResilientOption {
	return func(r *Resilient) { r.redactor = rd }
}

// NewResilient wraps next.
func NewResilient(next Generator, opts ...ResilientOption) *Resilient {
	r := &Resilient{
		next:        next,
		name:        "generator",
		limiter:     rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst),
		timeout:     defaultTimeout,
		maxRetries:  defaultMaxRetries,
		baseBackoff: defaultBaseBackoff,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Name returns the wrapped provider's name.
func (r *Resilient) Name() string {
	return r.name
}

// Generate calls the wrapped provider. Every failure, including timeouts,
// wraps ErrGenerationFailed.
func (r *Resilient) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if r.redactor != nil {
		res := r.redactor.Redact(prompt)
		if res.Redacted() {
			r.logger.Info("redacted credentials from prompt",
				zap.String("provider", r.name),
				zap.Strings("rules", res.RuleIDs()))
			prompt = res.Text
		}
	}

	start := time.Now()
	out, err := r.generate(ctx, prompt, maxTokens)
	r.metrics.Record(ctx, r.name, time.Since(start), err)
	if err != nil {
		r.logger.Debug("generation failed",
			zap.String("provider", r.name),
			zap.Int("max_tokens", maxTokens),
			zap.Error(err))
		return "", err
	}
	return out, nil
}

func (r *Resilient) generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("%w: rate limiter: %w", ErrGenerationFailed, err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := r.baseBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", fmt.Errorf("%w: %w", ErrGenerationFailed, ctx.Err())
			}
		}

		out, err := r.next.Generate(ctx, prompt, maxTokens)
		if err == nil {
			return strings.TrimSpace(out), nil
		}
		lastErr = err
		if ctx.Err() != nil || !IsRetryable(err) {
			break
		}
		r.logger.Debug("retrying generation",
			zap.String("provider", r.name),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}
	return "", fmt.Errorf("%w: %s: %w", ErrGenerationFailed, r.name, lastErr)
}
