package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grain-editor/grain-shell/internal/api"
	"github.com/grain-editor/grain-shell/internal/binder"
	"github.com/grain-editor/grain-shell/internal/store"
)

func newTestServer(t *testing.T) (http.Handler, *binder.Registry) {
	t.Helper()

	contents := store.NewMemoryStore()
	registry, err := binder.NewRegistry(contents)
	require.NoError(t, err)
	t.Cleanup(func() { _ = registry.CloseAll(context.Background()) })

	return api.NewServer(registry, contents, api.WithMiddlewares(api.LoggingMiddleware)), registry
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)

	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"healthy"}`, rr.Body.String())
}

func TestReadinessEndpoint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		closeRegistry  bool
		expectedStatus int
		expectedKey    string
	}{
		{name: "accepting documents", expectedStatus: http.StatusOK, expectedKey: "status"},
		{name: "shutting down", closeRegistry: true, expectedStatus: http.StatusServiceUnavailable, expectedKey: "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server, registry := newTestServer(t)
			if tt.closeRegistry {
				require.NoError(t, registry.CloseAll(context.Background()))
			}

			rr := httptest.NewRecorder()
			server.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readiness", nil))

			assert.Equal(t, tt.expectedStatus, rr.Code)
			var response map[string]string
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
			assert.Contains(t, response, tt.expectedKey)
		})
	}
}

func TestVersionEndpoint(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)

	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/version", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	var response map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	for _, key := range []string{"version", "commit", "buildDate", "goVersion", "platform"} {
		assert.Contains(t, response, key)
	}
}

func TestUnknownRoute(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)

	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v2/documents", nil))

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	contents := store.NewMemoryStore()
	registry, err := binder.NewRegistry(contents)
	require.NoError(t, err)
	t.Cleanup(func() { _ = registry.CloseAll(context.Background()) })

	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("grain_documents_open 1\n"))
	})

	tests := []struct {
		name           string
		opts           []api.ServerOption
		expectedStatus int
	}{
		{name: "not configured", expectedStatus: http.StatusNotFound},
		{name: "configured", opts: []api.ServerOption{api.WithMetricsHandler(metrics)}, expectedStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := api.NewServer(registry, contents, tt.opts...)
			rr := httptest.NewRecorder()
			server.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

			assert.Equal(t, tt.expectedStatus, rr.Code)
			if tt.expectedStatus == http.StatusOK {
				assert.Contains(t, rr.Body.String(), "grain_documents_open")
			}
		})
	}
}
