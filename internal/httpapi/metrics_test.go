package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestRequestMetrics_Middleware(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	m := newRequestMetrics(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)), nil)

	e := echo.New()
	e.Use(m.middleware())
	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/api/v1/outliers", func(echo.Context) error {
		return echo.NewHTTPError(http.StatusBadRequest, "bad z")
	})
	e.GET("/api/v1/inbox", func(echo.Context) error {
		return errors.New("boom")
	})

	for _, target := range []string{"/health", "/health", "/api/v1/outliers", "/api/v1/inbox", "/nope"} {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, target, nil))
	}

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	byStatus := map[string]int64{}
	byRoute := map[string]int64{}
	var observed uint64
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			switch md.Name {
			case "vaultorg.http.requests_total":
				sum, ok := md.Data.(metricdata.Sum[int64])
				require.True(t, ok)
				for _, dp := range sum.DataPoints {
					route, _ := dp.Attributes.Value("route")
					status, _ := dp.Attributes.Value("status")
					byStatus[status.AsString()] += dp.Value
					byRoute[route.AsString()] += dp.Value
				}
			case "vaultorg.http.request_duration_seconds":
				hist, ok := md.Data.(metricdata.Histogram[float64])
				require.True(t, ok)
				for _, dp := range hist.DataPoints {
					observed += dp.Count
				}
			case "vaultorg.http.inflight_requests":
				sum, ok := md.Data.(metricdata.Sum[int64])
				require.True(t, ok)
				for _, dp := range sum.DataPoints {
					assert.Zero(t, dp.Value)
				}
			}
		}
	}

	assert.Equal(t, map[string]int64{"2xx": 2, "4xx": 2, "5xx": 1}, byStatus)
	assert.Equal(t, int64(2), byRoute["/health"])
	assert.Equal(t, int64(1), byRoute["/api/v1/outliers"])
	assert.Equal(t, int64(1), byRoute["/api/v1/inbox"])
	assert.Equal(t, uint64(5), observed)
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "2xx", statusClass(http.StatusOK))
	assert.Equal(t, "4xx", statusClass(http.StatusNotFound))
	assert.Equal(t, "5xx", statusClass(http.StatusBadGateway))
	assert.Equal(t, "other", statusClass(0))
}
