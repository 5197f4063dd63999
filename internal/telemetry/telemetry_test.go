package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestTelemetry(t *testing.T) (*StorefrontTelemetry, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	tel := NewStorefrontTelemetry()
	require.NoError(t, tel.InitializeWithMeter(provider.Meter(MeterName)))
	return tel, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumOf(t *testing.T, data metricdata.Aggregation) int64 {
	t.Helper()
	sum, ok := data.(metricdata.Sum[int64])
	require.True(t, ok, "expected an int64 sum, got %T", data)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestMiddleware_RecordsRouteTemplates(t *testing.T) {
	// Arrange
	tel, reader := newTestTelemetry(t)
	router := mux.NewRouter()
	router.Use(NewTelemetryMiddleware(tel).Middleware)
	router.HandleFunc("/v1/sessions/{sessionId}/intents", func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).SetIntent("basket.add")
		w.WriteHeader(http.StatusAccepted)
	}).Methods(http.MethodPost)
	router.HandleFunc("/v1/sessions/{sessionId}/state", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "missing", http.StatusNotFound)
	}).Methods(http.MethodGet)

	// Act
	for _, id := range []string{"a", "b"} {
		req := httptest.NewRequest(http.MethodPost, "/v1/sessions/"+id+"/intents", nil)
		router.ServeHTTP(httptest.NewRecorder(), req)
	}
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/sessions/x/state", nil))

	// Assert
	data := collect(t, reader)
	assert.Equal(t, int64(2), sumOf(t, data["storefront_api_requests_total"]))
	assert.Equal(t, int64(1), sumOf(t, data["storefront_api_errors_total"]))

	requests := data["storefront_api_requests_total"].(metricdata.Sum[int64])
	require.Len(t, requests.DataPoints, 1, "session ids must not create series")
	endpoint, _ := requests.DataPoints[0].Attributes.Value("endpoint")
	assert.Equal(t, "/v1/sessions/{sessionId}/intents", endpoint.AsString())
	intent, _ := requests.DataPoints[0].Attributes.Value(attribute.Key("intent"))
	assert.Equal(t, "basket.add", intent.AsString())

	hist, ok := data["storefront_api_request_duration_seconds"].(metricdata.Histogram[float64])
	require.True(t, ok)
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	assert.Equal(t, uint64(3), count)
}

func TestDomainCounters(t *testing.T) {
	tel, reader := newTestTelemetry(t)
	ctx := context.Background()

	tel.RecordBasketChange(ctx, "basket.add")
	tel.RecordOrderSubmitted(ctx, "card", 3)
	tel.RecordOrderFailure(ctx, "upstream request failed with status 400")
	tel.RecordCatalogRefresh(ctx, true)
	tel.RecordCatalogRefresh(ctx, false)

	data := collect(t, reader)
	assert.Equal(t, int64(1), sumOf(t, data["storefront_basket_changes_total"]))
	assert.Equal(t, int64(1), sumOf(t, data["storefront_orders_submitted_total"]))
	assert.Equal(t, int64(1), sumOf(t, data["storefront_order_failures_total"]))
	assert.Equal(t, int64(2), sumOf(t, data["storefront_catalog_refreshes_total"]))
}

func TestUninitializedTelemetryIsNoop(t *testing.T) {
	tel := NewStorefrontTelemetry()

	assert.NotPanics(t, func() {
		tel.RegisterRequestReceived(context.Background(), RequestMetrics{})
		tel.RegisterRequestError(context.Background(), RequestMetrics{})
		tel.RegisterRequestDuration(context.Background(), RequestMetrics{})
		tel.RecordOrderSubmitted(context.Background(), "cash", 1)
	})
}

func TestNormalizeClientIP(t *testing.T) {
	tests := map[string]string{
		"":            "unknown",
		"not-an-ip":   "invalid",
		"127.0.0.1":   "localhost",
		"10.1.2.3":    "internal",
		"192.168.1.1": "internal",
		"8.8.8.8":     "external",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeClientIP(in), in)
	}
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	assert.Equal(t, "10.0.0.1", GetClientIP(req))

	req.Header.Set("X-Real-IP", "8.8.4.4")
	assert.Equal(t, "8.8.4.4", GetClientIP(req))

	req.Header.Set("X-Forwarded-For", "1.1.1.1, 10.0.0.2")
	assert.Equal(t, "1.1.1.1", GetClientIP(req))
}

func TestCategorizeError(t *testing.T) {
	assert.Equal(t, "unknown", categorizeError(""))
	assert.Equal(t, "not_found", categorizeError("Not Found"))
	assert.Equal(t, "rate_limited", categorizeError("Too Many Requests"))
	assert.Equal(t, "upstream", categorizeError("Bad Gateway"))
	assert.Equal(t, "other", categorizeError("teapot"))
}

func TestInitMetrics_None(t *testing.T) {
	tel := InitMetrics(context.Background(), "off", "")

	assert.Equal(t, ExporterNone, tel.Exporter())
	assert.Nil(t, tel.Provider)
	tel.Close(context.Background())
}
