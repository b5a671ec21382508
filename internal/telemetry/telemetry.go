package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry owns the tracer and meter providers and the instruments built
// on top of them.
type Telemetry struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	metricsHandler http.Handler

	save      *SaveMetrics
	documents *DocumentMetrics
	http      *HTTPMetrics
}

// New initializes telemetry from cfg. A nil or disabled configuration yields
// no-op providers. The caller must call Shutdown before exiting.
func New(ctx context.Context, cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry configuration: %w", err)
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Enabled {
		slog.Info("Initializing telemetry",
			"service_name", cfg.GetServiceName(),
			"service_version", cfg.GetServiceVersion())
	}

	tp, err := NewTracerProvider(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer provider: %w", err)
	}
	mp, metricsHandler, err := NewMeterProvider(ctx, cfg)
	if err != nil {
		if sdk, ok := tp.(*sdktrace.TracerProvider); ok {
			_ = sdk.Shutdown(ctx)
		}
		return nil, fmt.Errorf("failed to create meter provider: %w", err)
	}

	t := &Telemetry{tracerProvider: tp, meterProvider: mp, metricsHandler: metricsHandler}
	if err := t.initInstruments(); err != nil {
		_ = t.Shutdown(ctx)
		return nil, err
	}
	return t, nil
}

func (t *Telemetry) initInstruments() error {
	var err error
	if t.save, err = NewSaveMetrics(t.meterProvider); err != nil {
		return fmt.Errorf("failed to create save metrics: %w", err)
	}
	if t.documents, err = NewDocumentMetrics(t.meterProvider); err != nil {
		return fmt.Errorf("failed to create document metrics: %w", err)
	}
	if t.http, err = NewHTTPMetrics(t.meterProvider); err != nil {
		return fmt.Errorf("failed to create HTTP metrics: %w", err)
	}
	return nil
}

// TracerProvider returns the configured tracer provider
func (t *Telemetry) TracerProvider() trace.TracerProvider {
	return t.tracerProvider
}

// MeterProvider returns the configured meter provider
func (t *Telemetry) MeterProvider() metric.MeterProvider {
	return t.meterProvider
}

// MetricsHandler returns the Prometheus scrape handler, or nil when the
// endpoint is not enabled.
func (t *Telemetry) MetricsHandler() http.Handler {
	return t.metricsHandler
}

// Tracer returns a named tracer from the tracer provider
func (t *Telemetry) Tracer(name string, opts ...trace.TracerOption) trace.Tracer {
	return t.tracerProvider.Tracer(name, opts...)
}

// SaveMetrics returns the instruments for document writes
func (t *Telemetry) SaveMetrics() *SaveMetrics {
	return t.save
}

// DocumentMetrics returns the instruments for open documents and views
func (t *Telemetry) DocumentMetrics() *DocumentMetrics {
	return t.documents
}

// HTTPMiddleware returns the tracing and metrics middleware for the local API
func (t *Telemetry) HTTPMiddleware() []func(next http.Handler) http.Handler {
	return []func(next http.Handler) http.Handler{
		TracingMiddleware(t.tracerProvider),
		t.http.Middleware,
	}
}

// Shutdown flushes and stops the SDK providers
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	if tp, ok := t.tracerProvider.(*sdktrace.TracerProvider); ok {
		if err := tp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown tracer provider: %w", err))
		}
	}
	if mp, ok := t.meterProvider.(*sdkmetric.MeterProvider); ok {
		if err := mp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown meter provider: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	slog.Debug("Telemetry shutdown complete")
	return nil
}
