package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/printmesh/api/internal/platform/httpx"
	"github.com/printmesh/api/internal/services"
)

type setOverrideRequest struct {
	Rate      float64   `json:"rate"`
	ExpiresAt time.Time `json:"expires_at"`
}

// PartnerHandlers exposes partner reads and commission override management.
type PartnerHandlers struct {
	partners services.PartnerService
}

// NewPartnerHandlers constructs a new PartnerHandlers instance.
func NewPartnerHandlers(partners services.PartnerService) *PartnerHandlers {
	return &PartnerHandlers{partners: partners}
}

// Routes registers the partner read endpoints.
func (h *PartnerHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/partners/{partnerID}", h.getPartner)
}

// AdminRoutes registers the commission override endpoints. These are expected
// to sit behind auth.RequireAdmin.
func (h *PartnerHandlers) AdminRoutes(r chi.Router) {
	if r == nil {
		return
	}
	r.Put("/partners/{partnerID}/commission-override", h.setOverride)
	r.Delete("/partners/{partnerID}/commission-override", h.clearOverride)
}

func (h *PartnerHandlers) getPartner(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	partner, err := h.partners.GetPartner(ctx, chi.URLParam(r, "partnerID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toPartnerResponse(partner))
}

func (h *PartnerHandlers) setOverride(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := actorFromContext(ctx)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	var req setOverrideRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	partner, err := h.partners.SetCommissionOverride(ctx, services.SetCommissionOverrideCommand{
		PartnerID: chi.URLParam(r, "partnerID"),
		Rate:      req.Rate,
		ExpiresAt: req.ExpiresAt,
		Actor:     actor,
		Context:   requestContextFrom(ctx),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toPartnerResponse(partner))
}

func (h *PartnerHandlers) clearOverride(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := actorFromContext(ctx)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	partner, err := h.partners.ClearCommissionOverride(ctx, services.ClearCommissionOverrideCommand{
		PartnerID: chi.URLParam(r, "partnerID"),
		Actor:     actor,
		Context:   requestContextFrom(ctx),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toPartnerResponse(partner))
}
