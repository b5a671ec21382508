package telemetry

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func newTestRouter(mw func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(mw)
	r.Get("/api/v1/documents/{documentID}/content", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Post("/api/v1/views/{viewID}/save", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusGone)
	})
	return r
}

func TestNewHTTPMetrics_NilProvider(t *testing.T) {
	t.Parallel()

	m, err := NewHTTPMetrics(nil)
	require.NoError(t, err)
	assert.Nil(t, m)

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	rec := httptest.NewRecorder()
	m.Middleware(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestHTTPMetrics_RecordsRoutePattern(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	m, err := NewHTTPMetrics(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	require.NoError(t, err)

	router := newTestRouter(m.Middleware)
	for _, path := range []string{"/api/v1/documents/a.md/content", "/api/v1/documents/b.md/content"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	found := collect(t, reader, HTTPMetricsMeterName)
	require.Contains(t, found, "grain_http_request_duration_seconds")
	require.Contains(t, found, "grain_http_active_requests")
	require.Contains(t, found, "grain_http_requests_total")

	sum, ok := found["grain_http_requests_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)

	counts := make(map[string]int64)
	for _, dp := range sum.DataPoints {
		route, _ := dp.Attributes.Value(attribute.Key("route"))
		code, _ := dp.Attributes.Value(attribute.Key("status_code"))
		counts[route.AsString()+" "+code.AsString()] += dp.Value
	}
	assert.Equal(t, map[string]int64{
		"/api/v1/documents/{documentID}/content 200": 2,
		unknownRoute + " 404":                        1,
	}, counts)

	active, ok := found["grain_http_active_requests"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	for _, dp := range active.DataPoints {
		assert.Zero(t, dp.Value)
	}
}

func TestTracingMiddleware_NilProvider(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	newTestRouter(TracingMiddleware(nil)).ServeHTTP(rec,
		httptest.NewRequest(http.MethodGet, "/api/v1/documents/a.md/content", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTracingMiddleware_Spans(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		method     string
		path       string
		wantName   string
		wantStatus codes.Code
	}{
		{
			name:       "successful request",
			method:     http.MethodGet,
			path:       "/api/v1/documents/a.md/content",
			wantName:   "GET /api/v1/documents/{documentID}/content",
			wantStatus: codes.Ok,
		},
		{
			name:       "client error",
			method:     http.MethodPost,
			path:       "/api/v1/views/v1/save",
			wantName:   "POST /api/v1/views/{viewID}/save",
			wantStatus: codes.Error,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			recorder := tracetest.NewSpanRecorder()
			tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

			rec := httptest.NewRecorder()
			newTestRouter(TracingMiddleware(tp)).ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			spans := recorder.Ended()
			require.Len(t, spans, 1)
			span := spans[0]
			assert.Equal(t, tt.wantName, span.Name())
			assert.Equal(t, trace.SpanKindServer, span.SpanKind())
			assert.Equal(t, tt.wantStatus, span.Status().Code)
		})
	}
}
