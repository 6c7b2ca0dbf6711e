package generation

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/decisiond/internal/generation"

// Metrics records generation latency and failures.
type Metrics struct {
	duration metric.Float64Histogram
	failures metric.Int64Counter
}

// NewMetrics creates metrics on the global meter provider.
func NewMetrics(logger *zap.Logger) *Metrics {
	return newMetrics(otel.Meter(instrumentationName), logger)
}

func newMetrics(meter metric.Meter, logger *zap.Logger) *Metrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Metrics{}

	var err error
	m.duration, err = meter.Float64Histogram(
		"decisiond.generation.duration_seconds",
		metric.WithDescription("Duration of generation calls in seconds, including retries"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60),
	)
	if err != nil {
		logger.Warn("failed to create generation duration histogram", zap.Error(err))
	}

	m.failures, err = meter.Int64Counter(
		"decisiond.generation.failures_total",
		metric.WithDescription("Generation calls that returned an error"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		logger.Warn("failed to create generation failures counter", zap.Error(err))
	}
	return m
}

// Record records one call. Safe on a nil receiver.
func (m *Metrics) Record(ctx context.Context, provider string, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("outcome", outcome),
	)
	if m.duration != nil {
		m.duration.Record(ctx, d.Seconds(), attrs)
	}
	if err != nil && m.failures != nil {
		m.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("provider", provider)))
	}
}
