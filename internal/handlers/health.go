package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/printmesh/api/internal/platform/httpx"
)

// HealthHandlers serves liveness probes.
type HealthHandlers struct{}

// NewHealthHandlers constructs a new HealthHandlers instance.
func NewHealthHandlers() *HealthHandlers {
	return &HealthHandlers{}
}

// Routes registers the health endpoints.
func (h *HealthHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/healthz", h.healthz)
}

func (h *HealthHandlers) healthz(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
