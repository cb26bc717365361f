package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/printmesh/api/internal/platform/httpx"
	"github.com/printmesh/api/internal/services"
)

type forceStatusRequest struct {
	SubOrderID string `json:"sub_order_id"`
	Status     string `json:"status"`
	Note       string `json:"note"`
}

type assignShipperRequest struct {
	ShipperID string `json:"shipper_id"`
}

// AdminOrderHandlers exposes the privileged mutation surface. Every route is
// expected to sit behind auth.RequireAdmin.
type AdminOrderHandlers struct {
	admin services.AdminOrderService
}

// NewAdminOrderHandlers constructs a new AdminOrderHandlers instance.
func NewAdminOrderHandlers(admin services.AdminOrderService) *AdminOrderHandlers {
	return &AdminOrderHandlers{admin: admin}
}

// Routes registers the admin order endpoints.
func (h *AdminOrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/orders/{orderID}/force-status", h.forceStatus)
	r.Put("/orders/{orderID}/sub-orders/{subOrderID}/shipper", h.assignShipper)
	r.Delete("/orders/{orderID}/sub-orders/{subOrderID}/shipper", h.unassignShipper)
}

func (h *AdminOrderHandlers) forceStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := actorFromContext(ctx)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	var req forceStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	order, err := h.admin.ForceUpdateStatus(ctx, services.ForceStatusCommand{
		OrderID:    chi.URLParam(r, "orderID"),
		SubOrderID: strings.TrimSpace(req.SubOrderID),
		Status:     strings.TrimSpace(req.Status),
		Note:       req.Note,
		Actor:      actor,
		Context:    requestContextFrom(ctx),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *AdminOrderHandlers) assignShipper(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := actorFromContext(ctx)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	var req assignShipperRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	order, err := h.admin.AssignShipper(ctx, services.AssignShipperCommand{
		OrderID:    chi.URLParam(r, "orderID"),
		SubOrderID: chi.URLParam(r, "subOrderID"),
		ShipperID:  strings.TrimSpace(req.ShipperID),
		Actor:      actor,
		Context:    requestContextFrom(ctx),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *AdminOrderHandlers) unassignShipper(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := actorFromContext(ctx)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	order, err := h.admin.UnassignShipper(ctx, services.UnassignShipperCommand{
		OrderID:    chi.URLParam(r, "orderID"),
		SubOrderID: chi.URLParam(r, "subOrderID"),
		Actor:      actor,
		Context:    requestContextFrom(ctx),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toOrderResponse(order))
}
