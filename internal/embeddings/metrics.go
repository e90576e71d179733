package embeddings

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vaultorg/internal/vecmath"
)

const instrumentationName = "github.com/fyrsmithlabs/vaultorg/internal/embeddings"

// callMetrics records provider calls made through Resilient.
type callMetrics struct {
	duration metric.Float64Histogram
	texts    metric.Int64Histogram
	failures metric.Int64Counter
	retries  metric.Int64Counter
}

// newCallMetrics creates instruments on mp, or on the global provider when
// mp is nil. Instruments that fail to register are left nil and skipped.
func newCallMetrics(mp metric.MeterProvider, logger *zap.Logger) *callMetrics {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(instrumentationName)
	m := &callMetrics{}

	var err error
	m.duration, err = meter.Float64Histogram(
		"vaultorg.embedding.call_duration_seconds",
		metric.WithDescription("Wall time of an embedding call including retries and rate-limit waits"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60),
	)
	if err != nil {
		logger.Warn("failed to create call duration histogram", zap.Error(err))
	}

	m.texts, err = meter.Int64Histogram(
		"vaultorg.embedding.texts_per_call",
		metric.WithDescription("Snippets sent in one embedding call"),
		metric.WithUnit("{text}"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 50, 100),
	)
	if err != nil {
		logger.Warn("failed to create texts histogram", zap.Error(err))
	}

	m.failures, err = meter.Int64Counter(
		"vaultorg.embedding.failures_total",
		metric.WithDescription("Embedding calls that failed after retries, by reason"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		logger.Warn("failed to create failures counter", zap.Error(err))
	}

	m.retries, err = meter.Int64Counter(
		"vaultorg.embedding.retries_total",
		metric.WithDescription("Retried embedding attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		logger.Warn("failed to create retries counter", zap.Error(err))
	}
	return m
}

// observe records one finished call.
func (m *callMetrics) observe(ctx context.Context, model, operation string, d time.Duration, texts int, err error) {
	attrs := metric.WithAttributes(
		attribute.String("model", model),
		attribute.String("operation", operation),
	)
	if m.duration != nil {
		m.duration.Record(ctx, d.Seconds(), attrs)
	}
	if m.texts != nil && texts > 0 {
		m.texts.Record(ctx, int64(texts), attrs)
	}
	if m.failures != nil && err != nil {
		m.failures.Add(ctx, 1, metric.WithAttributes(
			attribute.String("model", model),
			attribute.String("operation", operation),
			attribute.String("reason", failureReason(err)),
		))
	}
}

// retried counts one retry.
func (m *callMetrics) retried(ctx context.Context, model string) {
	if m.retries != nil {
		m.retries.Add(ctx, 1, metric.WithAttributes(attribute.String("model", model)))
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, vecmath.ErrDimensionMismatch):
		return "dimension"
	case errors.Is(err, ErrRetriesExhausted):
		return "retries_exhausted"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}
