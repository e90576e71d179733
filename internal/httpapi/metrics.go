package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/vaultorg/internal/httpapi"

// requestMetrics records one series per route template and status class.
type requestMetrics struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
	inflight metric.Int64UpDownCounter
}

func newRequestMetrics(mp metric.MeterProvider, logger *zap.Logger) *requestMetrics {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	meter := mp.Meter(instrumentationName)
	m := &requestMetrics{}

	var err error
	if m.requests, err = meter.Int64Counter(
		"vaultorg.http.requests_total",
		metric.WithDescription("API requests by route and status class"),
		metric.WithUnit("{request}"),
	); err != nil {
		logger.Warn("http requests counter unavailable", zap.Error(err))
	}
	// Whole-vault analyses run inside a request.
	if m.duration, err = meter.Float64Histogram(
		"vaultorg.http.request_duration_seconds",
		metric.WithDescription("API request latency"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.25, 1, 2.5, 5, 10, 30, 60),
	); err != nil {
		logger.Warn("http duration histogram unavailable", zap.Error(err))
	}
	if m.inflight, err = meter.Int64UpDownCounter(
		"vaultorg.http.inflight_requests",
		metric.WithDescription("API requests being served"),
		metric.WithUnit("{request}"),
	); err != nil {
		logger.Warn("http inflight gauge unavailable", zap.Error(err))
	}
	return m
}

func (m *requestMetrics) middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			if m.inflight != nil {
				m.inflight.Add(ctx, 1)
				defer m.inflight.Add(ctx, -1)
			}

			start := time.Now()
			err := next(c)
			// Handler errors are written by the error handler after this
			// middleware returns, so the status comes from the error.
			status := c.Response().Status
			var he *echo.HTTPError
			switch {
			case errors.As(err, &he):
				status = he.Code
			case err != nil && !c.Response().Committed:
				status = http.StatusInternalServerError
			}

			attrs := metric.WithAttributes(
				attribute.String("route", routeOf(c)),
				attribute.String("status", statusClass(status)),
			)
			if m.requests != nil {
				m.requests.Add(ctx, 1, attrs)
			}
			if m.duration != nil {
				m.duration.Record(ctx, time.Since(start).Seconds(), attrs)
			}
			return err
		}
	}
}

// routeOf returns the route template so IDs in paths do not split series.
func routeOf(c echo.Context) string {
	if p := c.Path(); p != "" {
		return p
	}
	return "unmatched"
}

// statusClass maps 404 to "4xx" and so on.
func statusClass(code int) string {
	if code < 100 || code > 599 {
		return "other"
	}
	return strconv.Itoa(code/100) + "xx"
}
