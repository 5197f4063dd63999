package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MeterName is the instrumentation scope of the storefront instruments
const MeterName = "storefront-api"

// StorefrontTelemetry records request and checkout metrics
type StorefrontTelemetry struct {
	meter metric.Meter

	requestCounter    metric.Int64Counter
	errorCounter      metric.Int64Counter
	durationHistogram metric.Float64Histogram

	basketChangeCounter   metric.Int64Counter
	orderSubmittedCounter metric.Int64Counter
	orderFailureCounter   metric.Int64Counter
	catalogRefreshCounter metric.Int64Counter
}

// RequestMetrics contains the telemetry data for one request
type RequestMetrics struct {
	Method       string
	Endpoint     string
	StatusCode   int
	Duration     time.Duration
	ErrorMessage string
	ClientIP     string // logged only
	ClientIPType string // internal, external, localhost, unknown
	Intent       string
	EventCount   int
}

// NewStorefrontTelemetry creates an uninitialized telemetry; recording is a
// no-op until one of the Initialize methods succeeds.
func NewStorefrontTelemetry() *StorefrontTelemetry {
	return &StorefrontTelemetry{}
}

// InitializeTelemetry creates the instruments on the global meter provider
func (t *StorefrontTelemetry) InitializeTelemetry(ctx context.Context) error {
	return t.InitializeWithMeter(otel.Meter(MeterName))
}

// InitializeWithMeter creates the instruments on meter
func (t *StorefrontTelemetry) InitializeWithMeter(meter metric.Meter) error {
	slog.Info("Initializing storefront telemetry")
	t.meter = meter

	counters := []struct {
		target *metric.Int64Counter
		name   string
		desc   string
	}{
		{&t.requestCounter, "storefront_api_requests_total", "Total number of API requests"},
		{&t.errorCounter, "storefront_api_errors_total", "Total number of API requests answered with an error status"},
		{&t.basketChangeCounter, "storefront_basket_changes_total", "Total number of basket add and remove intents"},
		{&t.orderSubmittedCounter, "storefront_orders_submitted_total", "Total number of orders accepted upstream"},
		{&t.orderFailureCounter, "storefront_order_failures_total", "Total number of rejected order submissions"},
		{&t.catalogRefreshCounter, "storefront_catalog_refreshes_total", "Total number of catalog refresh attempts"},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit("1"))
		if err != nil {
			slog.Error("Failed to create counter", "name", c.name, "error", err)
			return fmt.Errorf("failed to create %s: %w", c.name, err)
		}
		*c.target = counter
	}

	var err error
	t.durationHistogram, err = meter.Float64Histogram(
		"storefront_api_request_duration_seconds",
		metric.WithDescription("Duration of API requests"),
		metric.WithUnit("s"),
	)
	if err != nil {
		slog.Error("Failed to create duration histogram", "error", err)
		return fmt.Errorf("failed to create duration histogram: %w", err)
	}

	slog.Info("Storefront telemetry initialized successfully")
	return nil
}

func requestAttributes(m RequestMetrics) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("method", m.Method),
		attribute.String("endpoint", m.Endpoint),
		attribute.Int("status_code", m.StatusCode),
	}
	if m.ClientIPType != "" {
		attrs = append(attrs, attribute.String("client_ip_type", m.ClientIPType))
	}
	if m.Intent != "" {
		attrs = append(attrs, attribute.String("intent", m.Intent))
	}
	return attrs
}

// RegisterRequestReceived records a successful API request
func (t *StorefrontTelemetry) RegisterRequestReceived(ctx context.Context, m RequestMetrics) {
	if t.requestCounter == nil {
		return
	}
	t.requestCounter.Add(ctx, 1, metric.WithAttributes(requestAttributes(m)...))

	slog.Debug("Recorded API request",
		"method", m.Method,
		"endpoint", m.Endpoint,
		"status_code", m.StatusCode,
		"client_ip", m.ClientIP,
		"duration_ms", m.Duration.Milliseconds(),
		"events", m.EventCount)
}

// RegisterRequestError records a failed API request
func (t *StorefrontTelemetry) RegisterRequestError(ctx context.Context, m RequestMetrics) {
	if t.errorCounter == nil {
		return
	}
	attrs := append(requestAttributes(m), attribute.String("error_type", categorizeError(m.ErrorMessage)))
	t.errorCounter.Add(ctx, 1, metric.WithAttributes(attrs...))

	slog.Warn("Recorded API request error",
		"method", m.Method,
		"endpoint", m.Endpoint,
		"status_code", m.StatusCode,
		"client_ip", m.ClientIP,
		"error", m.ErrorMessage)
}

// RegisterRequestDuration records the duration of an API request
func (t *StorefrontTelemetry) RegisterRequestDuration(ctx context.Context, m RequestMetrics) {
	if t.durationHistogram == nil {
		return
	}
	t.durationHistogram.Record(ctx, m.Duration.Seconds(), metric.WithAttributes(requestAttributes(m)...))
}

// RecordBasketChange counts a basket intent
func (t *StorefrontTelemetry) RecordBasketChange(ctx context.Context, intent string) {
	if t.basketChangeCounter == nil {
		return
	}
	t.basketChangeCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("intent", intent)))
}

// RecordOrderSubmitted counts an accepted order
func (t *StorefrontTelemetry) RecordOrderSubmitted(ctx context.Context, payment string, items int) {
	if t.orderSubmittedCounter == nil {
		return
	}
	t.orderSubmittedCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("payment", payment),
		attribute.String("size", basketSize(items)),
	))
}

// RecordOrderFailure counts a rejected submission
func (t *StorefrontTelemetry) RecordOrderFailure(ctx context.Context, reason string) {
	if t.orderFailureCounter == nil {
		return
	}
	t.orderFailureCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("error_type", categorizeError(reason))))
}

// RecordCatalogRefresh counts a catalog refresh attempt
func (t *StorefrontTelemetry) RecordCatalogRefresh(ctx context.Context, success bool) {
	if t.catalogRefreshCounter == nil {
		return
	}
	t.catalogRefreshCounter.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", success)))
}

// basketSize buckets item counts to keep cardinality low
func basketSize(items int) string {
	switch {
	case items <= 1:
		return "single"
	case items <= 5:
		return "small"
	default:
		return "large"
	}
}

// categorizeError groups similar errors to prevent high cardinality
func categorizeError(errorMessage string) string {
	msg := strings.ToLower(errorMessage)
	if msg == "" {
		return "unknown"
	}

	switch {
	case strings.Contains(msg, "not found"):
		return "not_found"
	case strings.Contains(msg, "invalid"), strings.Contains(msg, "unprocessable"):
		return "invalid_request"
	case strings.Contains(msg, "unauthorized"):
		return "unauthorized"
	case strings.Contains(msg, "too many"):
		return "rate_limited"
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline"):
		return "timeout"
	case strings.Contains(msg, "upstream"), strings.Contains(msg, "bad gateway"):
		return "upstream"
	case strings.Contains(msg, "conflict"):
		return "conflict"
	case strings.Contains(msg, "internal"):
		return "internal_error"
	default:
		return "other"
	}
}

// NormalizeClientIP categorizes client IPs to control cardinality
func NormalizeClientIP(clientIP string) string {
	if clientIP == "" {
		return "unknown"
	}
	ip := net.ParseIP(clientIP)
	if ip == nil {
		return "invalid"
	}
	if ip.IsLoopback() {
		return "localhost"
	}
	if ip.IsPrivate() || ip.IsLinkLocalUnicast() {
		return "internal"
	}
	return "external"
}
