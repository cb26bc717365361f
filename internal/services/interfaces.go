package services

import (
	"context"
	"time"

	domain "github.com/printmesh/api/internal/domain"
	"github.com/printmesh/api/internal/repositories"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination         = domain.Pagination
	MasterOrder        = domain.MasterOrder
	SubOrder           = domain.SubOrder
	SubOrderItem       = domain.SubOrderItem
	MasterStatus       = domain.MasterStatus
	PrinterStatus      = domain.PrinterStatus
	ArtworkStatus      = domain.ArtworkStatus
	PaymentStatus      = domain.PaymentStatus
	Address            = domain.Address
	Partner            = domain.Partner
	CommissionOverride = domain.CommissionOverride
	Shipper            = domain.Shipper
	AuditEntry         = domain.AuditEntry
)

// ActorType classifies the authenticated principal performing a mutation.
type ActorType string

const (
	// ActorTypeAdmin marks platform staff with override authority.
	ActorTypeAdmin ActorType = "admin"
	// ActorTypePartner marks a production partner service principal.
	ActorTypePartner ActorType = "partner"
	// ActorTypeService marks internal machine-to-machine callers.
	ActorTypeService ActorType = "service"
)

// Actor identifies the authenticated principal supplied by the HTTP layer.
type Actor struct {
	ID        string
	Type      ActorType
	PartnerID string
}

// RequestContext carries the network origin recorded on audit entries.
type RequestContext struct {
	IPAddress string
	UserAgent string
}

// CheckoutLine groups the items one partner will produce for a new order.
type CheckoutLine struct {
	PartnerID string
	Items     []SubOrderItem
}

// PlaceOrderCommand creates a master order split across production partners.
type PlaceOrderCommand struct {
	CustomerID      string
	Currency        string
	ShippingAddress *Address
	Lines           []CheckoutLine
	Actor           Actor
}

// PartnerTransitionCommand moves a sub-order along the fulfillment axis.
type PartnerTransitionCommand struct {
	SubOrderID   string
	TargetStatus PrinterStatus
	Notes        string
	TrackingNote string
	Actor        Actor
}

// ArtworkTransitionCommand moves a sub-order along the artwork review axis.
type ArtworkTransitionCommand struct {
	SubOrderID   string
	TargetStatus ArtworkStatus
	Reason       string
	Actor        Actor
}

// MarkPaymentStatusCommand records a payment axis change reported by the
// payment collaborator.
type MarkPaymentStatusCommand struct {
	OrderID string
	Status  PaymentStatus
	Actor   Actor
}

// ForceStatusCommand applies an administrative status override. When
// SubOrderID is empty the master status itself is forced.
type ForceStatusCommand struct {
	OrderID    string
	SubOrderID string
	Status     string
	Note       string
	Actor      Actor
	Context    RequestContext
}

// AssignShipperCommand attaches a delivery agent to a sub-order.
type AssignShipperCommand struct {
	OrderID    string
	SubOrderID string
	ShipperID  string
	Actor      Actor
	Context    RequestContext
}

// UnassignShipperCommand detaches the current delivery agent, if any.
type UnassignShipperCommand struct {
	OrderID    string
	SubOrderID string
	Actor      Actor
	Context    RequestContext
}

// SetCommissionOverrideCommand attaches a time-bounded commission rate to a partner.
type SetCommissionOverrideCommand struct {
	PartnerID string
	Rate      float64
	ExpiresAt time.Time
	Actor     Actor
	Context   RequestContext
}

// ClearCommissionOverrideCommand detaches a partner's commission override.
type ClearCommissionOverrideCommand struct {
	PartnerID string
	Actor     Actor
	Context   RequestContext
}

// OrderListFilter narrows order listings for customers, partners, and admins.
type OrderListFilter = repositories.OrderListFilter

// AuditLogFilter narrows audit trail listings.
type AuditLogFilter = repositories.AuditLogFilter

// OrderService owns the master-order aggregate: placement, partner-driven
// lifecycle transitions, artwork review, and the payment axis. Every mutation
// recomputes the ledger totals and the derived master status before persisting.
type OrderService interface {
	PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (MasterOrder, error)
	GetOrder(ctx context.Context, orderID string) (MasterOrder, error)
	ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[MasterOrder], error)
	ApplyPartnerTransition(ctx context.Context, cmd PartnerTransitionCommand) (MasterOrder, error)
	ApplyArtworkTransition(ctx context.Context, cmd ArtworkTransitionCommand) (MasterOrder, error)
	MarkPaymentStatus(ctx context.Context, cmd MarkPaymentStatusCommand) (MasterOrder, error)
}

// AdminOrderService is the privileged mutation path: force overrides and
// shipper assignment, each paired with a mandatory audit record.
type AdminOrderService interface {
	ForceUpdateStatus(ctx context.Context, cmd ForceStatusCommand) (MasterOrder, error)
	AssignShipper(ctx context.Context, cmd AssignShipperCommand) (MasterOrder, error)
	UnassignShipper(ctx context.Context, cmd UnassignShipperCommand) (MasterOrder, error)
}

// PartnerService manages partner commission configuration.
type PartnerService interface {
	GetPartner(ctx context.Context, partnerID string) (Partner, error)
	SetCommissionOverride(ctx context.Context, cmd SetCommissionOverrideCommand) (Partner, error)
	ClearCommissionOverride(ctx context.Context, cmd ClearCommissionOverrideCommand) (Partner, error)
}

// AuditLogService writes and queries the append-only trail of privileged mutations.
type AuditLogService interface {
	// Append persists the record, returning an error on failure so privileged
	// mutations can abort when their trail cannot be written.
	Append(ctx context.Context, record AuditRecord) error
	List(ctx context.Context, filter AuditLogFilter) (domain.CursorPage[AuditEntry], error)
}

// AuditRecord is the pre-sanitisation input to the audit writer.
type AuditRecord struct {
	Action     string
	Actor      Actor
	TargetType string
	TargetRef  string
	Detail     map[string]any
	Note       string
	Context    RequestContext
	OccurredAt time.Time
}
