package obs_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-storefront/internal/device"
	"github.com/noah-isme/toko-storefront/internal/obs"
)

func TestHTTPMetricsLabels(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := obs.NewHTTPMetrics("toko", []float64{1, 10}, registry)
	handler := obs.HTTPObs{Metrics: metrics}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	req = req.WithContext(obs.WithRoutePattern(req.Context(), "/health/ready"))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNoContent, rr.Code)

	require.Equal(t, float64(1), testutil.ToFloat64(metrics.ReqTotal.WithLabelValues(http.MethodGet, "/health/ready", "204")))
	require.NotZero(t, testutil.CollectAndCount(metrics.ReqDur))
	require.Zero(t, testutil.ToFloat64(metrics.InFlight))

	again := obs.NewHTTPMetrics("toko", nil, registry)
	require.Same(t, metrics.ReqTotal, again.ReqTotal)
}

func TestMetricsHandlerExposesDomainCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	obs.MustRegisterDomainMetrics("toko", registry)
	obs.CountCartMutation("add_item")

	rr := httptest.NewRecorder()
	obs.MetricsHandler(registry).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "toko_cart_mutations_total")
}

func TestRequestLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	logger := obs.NewLoggerTo(&buf, "json", "info")

	inner := device.NewResolver("", "").Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	handler := obs.RequestLogger{Logger: logger}.Middleware(inner)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/coupon", nil)
	req.Header.Set(device.DefaultHeader, "dev-42")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "warn", entry["level"])
	require.Equal(t, "dev-42", entry["device"])
	require.Equal(t, float64(http.StatusUnprocessableEntity), entry["status"])
	require.Equal(t, "http_request", entry["message"])
}

func TestParseBucketsCSV(t *testing.T) {
	require.Nil(t, obs.ParseBucketsCSV("  "))
	require.Equal(t, []float64{5, 12.5, 100}, obs.ParseBucketsCSV("5, 12.5,,abc,-3,100"))
}
