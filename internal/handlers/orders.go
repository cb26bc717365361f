package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/printmesh/api/internal/domain"
	"github.com/printmesh/api/internal/platform/httpx"
	"github.com/printmesh/api/internal/services"
)

const (
	defaultOrderPageSize = 20
	maxOrderPageSize     = 100
	maxOrderBodySize     = 64 * 1024
)

type placeOrderRequest struct {
	CustomerID      string           `json:"customer_id"`
	Currency        string           `json:"currency"`
	ShippingAddress *addressResponse `json:"shipping_address"`
	Lines           []placeOrderLine `json:"lines"`
}

type placeOrderLine struct {
	PartnerID string                 `json:"partner_id"`
	Items     []subOrderItemResponse `json:"items"`
}

type transitionRequest struct {
	Status       string `json:"status"`
	Notes        string `json:"notes"`
	TrackingNote string `json:"tracking_note"`
}

type artworkTransitionRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

type paymentStatusRequest struct {
	Status string `json:"status"`
}

// OrderHandlers exposes order placement, reads, and lifecycle transitions.
type OrderHandlers struct {
	orders services.OrderService
}

// NewOrderHandlers constructs a new OrderHandlers instance.
func NewOrderHandlers(orders services.OrderService) *OrderHandlers {
	return &OrderHandlers{orders: orders}
}

// Routes registers the /orders and /sub-orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/orders", h.placeOrder)
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{orderID}", h.getOrder)
	r.Post("/orders/{orderID}/payment-status", h.markPaymentStatus)
	r.Post("/sub-orders/{subOrderID}/status", h.applyPartnerTransition)
	r.Post("/sub-orders/{subOrderID}/artwork-status", h.applyArtworkTransition)
}

func (h *OrderHandlers) placeOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := actorFromContext(ctx)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	var req placeOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	cmd := services.PlaceOrderCommand{
		CustomerID: req.CustomerID,
		Currency:   req.Currency,
		Actor:      actor,
	}
	if req.ShippingAddress != nil {
		addr := domain.Address(*req.ShippingAddress)
		cmd.ShippingAddress = &addr
	}
	for _, line := range req.Lines {
		items := make([]services.SubOrderItem, 0, len(line.Items))
		for _, item := range line.Items {
			items = append(items, services.SubOrderItem(item))
		}
		cmd.Lines = append(cmd.Lines, services.CheckoutLine{
			PartnerID: line.PartnerID,
			Items:     items,
		})
	}

	order, err := h.orders.PlaceOrder(ctx, cmd)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toOrderResponse(order))
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	order, err := h.orders.GetOrder(ctx, chi.URLParam(r, "orderID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := actorFromContext(ctx)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	query := r.URL.Query()
	filter := services.OrderListFilter{
		CustomerID:   strings.TrimSpace(query.Get("customer_id")),
		MasterStatus: parseFilterValues(query["status"]),
		Pagination: services.Pagination{
			PageSize:  defaultOrderPageSize,
			PageToken: strings.TrimSpace(query.Get("page_token")),
		},
	}

	// Partner principals only ever see their own slice of the order book.
	if actor.Type == services.ActorTypePartner {
		filter.PartnerID = actor.PartnerID
	} else if partner := strings.TrimSpace(query.Get("partner_id")); partner != "" {
		filter.PartnerID = partner
	}

	if sizeRaw := strings.TrimSpace(query.Get("page_size")); sizeRaw != "" {
		size, err := strconv.Atoi(sizeRaw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "page_size must be an integer", http.StatusBadRequest))
			return
		}
		switch {
		case size <= 0:
			filter.Pagination.PageSize = defaultOrderPageSize
		case size > maxOrderPageSize:
			filter.Pagination.PageSize = maxOrderPageSize
		default:
			filter.Pagination.PageSize = size
		}
	}

	var dateRange domain.RangeQuery[time.Time]
	if raw := strings.TrimSpace(query.Get("created_after")); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "created_after must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		dateRange.From = &ts
	}
	if raw := strings.TrimSpace(query.Get("created_before")); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "created_before must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		dateRange.To = &ts
	}
	filter.DateRange = dateRange

	page, err := h.orders.ListOrders(ctx, filter)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	resp := orderListResponse{
		Orders:        make([]orderResponse, 0, len(page.Items)),
		NextPageToken: page.NextPageToken,
	}
	for _, order := range page.Items {
		resp.Orders = append(resp.Orders, toOrderResponse(order))
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *OrderHandlers) applyPartnerTransition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := actorFromContext(ctx)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	var req transitionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	order, err := h.orders.ApplyPartnerTransition(ctx, services.PartnerTransitionCommand{
		SubOrderID:   chi.URLParam(r, "subOrderID"),
		TargetStatus: services.PrinterStatus(strings.TrimSpace(req.Status)),
		Notes:        req.Notes,
		TrackingNote: req.TrackingNote,
		Actor:        actor,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *OrderHandlers) applyArtworkTransition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := actorFromContext(ctx)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	var req artworkTransitionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	order, err := h.orders.ApplyArtworkTransition(ctx, services.ArtworkTransitionCommand{
		SubOrderID:   chi.URLParam(r, "subOrderID"),
		TargetStatus: services.ArtworkStatus(strings.TrimSpace(req.Status)),
		Reason:       req.Reason,
		Actor:        actor,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *OrderHandlers) markPaymentStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := actorFromContext(ctx)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}
	// Payment axis changes come from payment collaborators or staff, never partners.
	if actor.Type == services.ActorTypePartner {
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "payment status updates are not available to partners", http.StatusForbidden))
		return
	}

	var req paymentStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	order, err := h.orders.MarkPaymentStatus(ctx, services.MarkPaymentStatusCommand{
		OrderID: chi.URLParam(r, "orderID"),
		Status:  services.PaymentStatus(strings.TrimSpace(req.Status)),
		Actor:   actor,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toOrderResponse(order))
}

func decodeJSON(w http.ResponseWriter, r *http.Request, target any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxOrderBodySize)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func parseFilterValues(values []string) []string {
	var out []string
	for _, raw := range values {
		for _, part := range strings.Split(raw, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
	}
	return out
}
