// Package system provides the health and version endpoints.
package system

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/grain-editor/grain-shell/internal/api/common"
	"github.com/grain-editor/grain-shell/internal/versions"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadinessCheck reports whether the server can serve document requests
type ReadinessCheck func() error

// Router creates a router for the system endpoints
func Router(ready ReadinessCheck) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", healthHandler)
	r.Get("/readiness", readinessHandler(ready))
	r.Get("/version", versionHandler)

	return r
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, HealthResponse{Status: "healthy"}, http.StatusOK)
}

func readinessHandler(ready ReadinessCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if ready != nil {
			if err := ready(); err != nil {
				common.WriteErrorResponse(w, "Not ready: "+err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		common.WriteJSONResponse(w, HealthResponse{Status: "ready"}, http.StatusOK)
	}
}

func versionHandler(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, versions.GetInfo(), http.StatusOK)
}
