package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

func TestNew_Disabled(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		config *Config
	}{
		{name: "nil config", config: nil},
		{name: "disabled config", config: &Config{Tracing: &TracingConfig{Enabled: true}}},
		{name: "enabled without signals", config: &Config{Enabled: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tel, err := New(context.Background(), tt.config)
			require.NoError(t, err)

			assert.IsType(t, tracenoop.TracerProvider{}, tel.TracerProvider())
			assert.IsType(t, metricnoop.MeterProvider{}, tel.MeterProvider())
			assert.NotNil(t, tel.Tracer("test"))
			assert.NotNil(t, tel.SaveMetrics())
			assert.NotNil(t, tel.DocumentMetrics())
			assert.Len(t, tel.HTTPMiddleware(), 2)
			assert.Nil(t, tel.MetricsHandler())
			assert.NoError(t, tel.Shutdown(context.Background()))
		})
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), &Config{
		Enabled: true,
		Tracing: &TracingConfig{Enabled: true, Sampling: 2},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid telemetry configuration")
}

// Not parallel: an SDK provider is installed globally.
func TestNew_TracingEnabled(t *testing.T) {
	tel, err := New(context.Background(), &Config{
		Enabled:  true,
		Endpoint: "127.0.0.1:1",
		Insecure: true,
		Tracing:  &TracingConfig{Enabled: true},
	})
	require.NoError(t, err)

	assert.IsType(t, &sdktrace.TracerProvider{}, tel.TracerProvider())
	assert.IsType(t, metricnoop.MeterProvider{}, tel.MeterProvider())
	require.NoError(t, tel.Shutdown(context.Background()))
}

func TestTelemetry_HTTPMiddlewareWrapsHandler(t *testing.T) {
	t.Parallel()

	tel, err := New(context.Background(), nil)
	require.NoError(t, err)

	var handler http.Handler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	mws := tel.HTTPMiddleware()
	for i := len(mws) - 1; i >= 0; i-- {
		handler = mws[i](handler)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestNewPrometheusReader_ServesRecordedMetrics(t *testing.T) {
	t.Parallel()

	reader, handler, err := NewPrometheusReader()
	require.NoError(t, err)
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	counter, err := mp.Meter("test").Int64Counter("grain_probe_events")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "grain_probe_events_total")
}

func TestNewPrometheusReader_SeparateRegistries(t *testing.T) {
	t.Parallel()

	// each reader owns its registry, so creating two does not collide
	_, _, err := NewPrometheusReader()
	require.NoError(t, err)
	_, _, err = NewPrometheusReader()
	require.NoError(t, err)
}
