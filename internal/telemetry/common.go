package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Exporter names accepted by InitMetrics
const (
	ExporterPrometheus = "prometheus"
	ExporterOTLP       = "otlp"
	ExporterNone       = "none"
)

// DefaultMetricsAddr is where the Prometheus scrape endpoint listens
const DefaultMetricsAddr = ":9080"

// Telemetry owns the meter provider and, for the Prometheus exporter, the
// scrape server.
type Telemetry struct {
	server   *http.Server
	Provider *metric.MeterProvider
	exporter string
}

// InitMetrics installs a global meter provider for the given exporter.
// "scraper" is accepted as an alias for the Prometheus exporter and "grpc"
// for OTLP. Unknown names fall back to Prometheus. Failures are logged and
// leave the global no-op provider in place.
func InitMetrics(ctx context.Context, exporter, metricsAddr string) *Telemetry {
	t := &Telemetry{exporter: normalizeExporter(exporter)}

	switch t.exporter {
	case ExporterNone:
		slog.Info("Metrics export disabled")
	case ExporterOTLP:
		slog.Info("Starting metrics with grpc exporter")
		t.initGRPCMetrics(ctx)
	default:
		slog.Info("Starting metrics with scraper exporter", "address", metricsAddr)
		t.initScrapeMetrics(metricsAddr)
	}
	return t
}

func normalizeExporter(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case ExporterNone, "off", "disabled":
		return ExporterNone
	case ExporterOTLP, "grpc":
		return ExporterOTLP
	case "", ExporterPrometheus, "scraper":
		return ExporterPrometheus
	default:
		slog.Warn("Unknown metrics exporter, using prometheus", "exporter", name)
		return ExporterPrometheus
	}
}

// Exporter returns the exporter in use
func (t *Telemetry) Exporter() string {
	return t.exporter
}

// Close flushes pending metrics and stops the scrape server
func (t *Telemetry) Close(ctx context.Context) {
	if t.server != nil {
		if err := t.server.Shutdown(ctx); err != nil {
			slog.Warn("Metrics server shutdown failed", "error", err)
		} else {
			slog.Info("Shutting down metrics server")
		}
	}
	if t.Provider != nil {
		if err := t.Provider.ForceFlush(ctx); err != nil {
			slog.Warn("Metrics flush failed", "error", err)
		}
		if err := t.Provider.Shutdown(ctx); err != nil {
			slog.Warn("Meter provider shutdown failed", "error", err)
		}
	}
}

// The OTLP endpoint comes from OTEL_EXPORTER_OTLP_METRICS_ENDPOINT and
// defaults to localhost:4317.
func (t *Telemetry) initGRPCMetrics(ctx context.Context) {
	exporter, err := otlpmetricgrpc.New(ctx)
	if err != nil {
		slog.Error("Creating GRPC exporter", "error", err)
		return
	}

	t.Provider = metric.NewMeterProvider(metric.WithReader(metric.NewPeriodicReader(exporter)))
	otel.SetMeterProvider(t.Provider)
}

func (t *Telemetry) initScrapeMetrics(addr string) {
	exporter, err := prometheus.New()
	if err != nil {
		slog.Error("Creating HTML scrape exporter", "error", err)
		return
	}

	t.Provider = metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(t.Provider)

	if addr == "" {
		addr = DefaultMetricsAddr
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	t.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go t.serveMetrics()
}

func (t *Telemetry) serveMetrics() {
	slog.Info("Serving metrics", "address", t.server.Addr, "path", "/metrics")
	err := t.server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("ListenAndServe exited with", "error", err)
	}
}
