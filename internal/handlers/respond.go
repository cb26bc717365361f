package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	domain "github.com/printmesh/api/internal/domain"
	"github.com/printmesh/api/internal/platform/auth"
	"github.com/printmesh/api/internal/platform/httpx"
	"github.com/printmesh/api/internal/platform/requestctx"
	"github.com/printmesh/api/internal/services"
)

// writeServiceError maps service sentinel errors onto the JSON error envelope.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput),
		errors.Is(err, services.ErrPartnerInvalidInput),
		errors.Is(err, services.ErrAuditInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound),
		errors.Is(err, services.ErrPartnerNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("not_found", err.Error(), http.StatusNotFound))
	case errors.Is(err, services.ErrOrderInvalidState):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_state", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("conflict", "the order was modified concurrently, retry the request", http.StatusConflict))
	case errors.Is(err, services.ErrOrderForbidden):
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", err.Error(), http.StatusForbidden))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_server_error", "internal server error", http.StatusInternalServerError))
	}
}

// actorFromContext converts the gateway principal into the service actor shape.
func actorFromContext(ctx context.Context) (services.Actor, bool) {
	principal, ok := auth.PrincipalFromContext(ctx)
	if !ok {
		return services.Actor{}, false
	}
	return services.Actor{
		ID:        principal.ID,
		Type:      services.ActorType(principal.Type),
		PartnerID: principal.PartnerID,
	}, true
}

func requestContextFrom(ctx context.Context) services.RequestContext {
	origin, _ := requestctx.OriginFromContext(ctx)
	return services.RequestContext{
		IPAddress: origin.IPAddress,
		UserAgent: origin.UserAgent,
	}
}

// Response DTOs. The JSON shape is the public contract, domain types stay
// internal.

type addressResponse struct {
	Recipient  string  `json:"recipient"`
	Line1      string  `json:"line1"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city"`
	PostalCode string  `json:"postal_code"`
	Country    string  `json:"country"`
	Phone      *string `json:"phone,omitempty"`
}

type subOrderItemResponse struct {
	ProductRef string `json:"product_ref"`
	Name       string `json:"name,omitempty"`
	Quantity   int    `json:"quantity"`
	UnitPrice  int64  `json:"unit_price"`
	Subtotal   int64  `json:"subtotal"`
}

type subOrderResponse struct {
	ID                    string                 `json:"id"`
	PartnerID             string                 `json:"partner_id"`
	Items                 []subOrderItemResponse `json:"items"`
	PrinterTotalPrice     int64                  `json:"printer_total_price"`
	AppliedCommissionRate float64                `json:"applied_commission_rate"`
	CommissionFee         int64                  `json:"commission_fee"`
	PrinterPayout         int64                  `json:"printer_payout"`
	PrinterStatus         string                 `json:"printer_status"`
	ArtworkStatus         string                 `json:"artwork_status"`
	ShipperID             *string                `json:"shipper_id,omitempty"`
	TrackingNote          string                 `json:"tracking_note,omitempty"`
	PartnerNotes          string                 `json:"partner_notes,omitempty"`
	ShippedAt             *time.Time             `json:"shipped_at,omitempty"`
	CompletedAt           *time.Time             `json:"completed_at,omitempty"`
}

type orderResponse struct {
	ID              string             `json:"id"`
	OrderNumber     string             `json:"order_number"`
	CustomerID      string             `json:"customer_id"`
	ShippingAddress *addressResponse   `json:"shipping_address,omitempty"`
	SubOrders       []subOrderResponse `json:"sub_orders"`
	PaymentStatus   string             `json:"payment_status"`
	MasterStatus    string             `json:"master_status"`
	Currency        string             `json:"currency"`
	TotalPrice      int64              `json:"total_price"`
	TotalCommission int64              `json:"total_commission"`
	TotalPayout     int64              `json:"total_payout"`
	TotalItems      int                `json:"total_items"`
	Version         int64              `json:"version"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
	PaidAt          *time.Time         `json:"paid_at,omitempty"`
	CompletedAt     *time.Time         `json:"completed_at,omitempty"`
	CancelledAt     *time.Time         `json:"cancelled_at,omitempty"`
}

type orderListResponse struct {
	Orders        []orderResponse `json:"orders"`
	NextPageToken string          `json:"next_page_token,omitempty"`
}

func toOrderResponse(order domain.MasterOrder) orderResponse {
	resp := orderResponse{
		ID:              order.ID,
		OrderNumber:     order.OrderNumber,
		CustomerID:      order.CustomerID,
		SubOrders:       make([]subOrderResponse, 0, len(order.SubOrders)),
		PaymentStatus:   string(order.PaymentStatus),
		MasterStatus:    string(order.MasterStatus),
		Currency:        order.Currency,
		TotalPrice:      order.TotalPrice,
		TotalCommission: order.TotalCommission,
		TotalPayout:     order.TotalPayout,
		TotalItems:      order.TotalItems,
		Version:         order.Version,
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
		PaidAt:          order.PaidAt,
		CompletedAt:     order.CompletedAt,
		CancelledAt:     order.CancelledAt,
	}
	if order.ShippingAddress != nil {
		addr := addressResponse(*order.ShippingAddress)
		resp.ShippingAddress = &addr
	}
	for _, sub := range order.SubOrders {
		subResp := subOrderResponse{
			ID:                    sub.ID,
			PartnerID:             sub.PartnerID,
			Items:                 make([]subOrderItemResponse, 0, len(sub.Items)),
			PrinterTotalPrice:     sub.PrinterTotalPrice,
			AppliedCommissionRate: sub.AppliedCommissionRate,
			CommissionFee:         sub.CommissionFee,
			PrinterPayout:         sub.PrinterPayout,
			PrinterStatus:         string(sub.PrinterStatus),
			ArtworkStatus:         string(sub.ArtworkStatus),
			ShipperID:             sub.ShipperID,
			TrackingNote:          sub.TrackingNote,
			PartnerNotes:          sub.PartnerNotes,
			ShippedAt:             sub.ShippedAt,
			CompletedAt:           sub.CompletedAt,
		}
		for _, item := range sub.Items {
			subResp.Items = append(subResp.Items, subOrderItemResponse(item))
		}
		resp.SubOrders = append(resp.SubOrders, subResp)
	}
	return resp
}

type partnerResponse struct {
	ID                     string                      `json:"id"`
	Name                   string                      `json:"name"`
	StandardCommissionRate float64                     `json:"standard_commission_rate"`
	CommissionOverride     *commissionOverrideResponse `json:"commission_override,omitempty"`
	Active                 bool                        `json:"active"`
}

type commissionOverrideResponse struct {
	Rate      float64   `json:"rate"`
	ExpiresAt time.Time `json:"expires_at"`
}

func toPartnerResponse(partner domain.Partner) partnerResponse {
	resp := partnerResponse{
		ID:                     partner.ID,
		Name:                   partner.Name,
		StandardCommissionRate: partner.StandardCommissionRate,
		Active:                 partner.Active,
	}
	if partner.CommissionOverride != nil {
		resp.CommissionOverride = &commissionOverrideResponse{
			Rate:      partner.CommissionOverride.Rate,
			ExpiresAt: partner.CommissionOverride.ExpiresAt,
		}
	}
	return resp
}

type auditEntryResponse struct {
	ID         string         `json:"id"`
	Action     string         `json:"action"`
	Actor      string         `json:"actor"`
	ActorType  string         `json:"actor_type"`
	TargetType string         `json:"target_type"`
	TargetRef  string         `json:"target_ref"`
	Detail     map[string]any `json:"detail,omitempty"`
	Note       string         `json:"note,omitempty"`
	IPAddress  string         `json:"ip_address,omitempty"`
	UserAgent  string         `json:"user_agent,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

type auditListResponse struct {
	Entries       []auditEntryResponse `json:"entries"`
	NextPageToken string               `json:"next_page_token,omitempty"`
}

func toAuditEntryResponse(entry domain.AuditEntry) auditEntryResponse {
	return auditEntryResponse(entry)
}
