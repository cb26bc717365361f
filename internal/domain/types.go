package domain

import (
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// RangeQuery represents inclusive range filters for numeric or timestamp fields.
type RangeQuery[T comparable] struct {
	From *T
	To   *T
}

// CursorPage packages list results with an encoded next token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// PaymentStatus tracks the payment axis of a master order, independent of fulfillment.
type PaymentStatus string

const (
	// PaymentStatusUnpaid indicates no successful payment has been recorded yet.
	PaymentStatusUnpaid PaymentStatus = "unpaid"
	// PaymentStatusPaid indicates the order has been paid and fulfillment may proceed.
	PaymentStatusPaid PaymentStatus = "paid"
	// PaymentStatusRefunded indicates the payment was returned to the customer.
	PaymentStatusRefunded PaymentStatus = "refunded"
	// PaymentStatusFailed indicates the payment attempt failed.
	PaymentStatusFailed PaymentStatus = "failed"
)

// MasterStatus is the single customer-facing status derived from sub-order progress.
type MasterStatus string

const (
	// MasterStatusPending indicates payment is outstanding or no partner has started work.
	MasterStatusPending MasterStatus = "pending"
	// MasterStatusProcessing indicates at least one partner has progressed past intake.
	MasterStatusProcessing MasterStatus = "processing"
	// MasterStatusCompleted indicates every sub-order reached its fulfilled terminal state.
	MasterStatusCompleted MasterStatus = "completed"
	// MasterStatusCancelled indicates every sub-order has been cancelled.
	MasterStatusCancelled MasterStatus = "cancelled"
)

// PrinterStatus enumerates the partner-driven fulfillment states of a sub-order.
type PrinterStatus string

const (
	// PrinterStatusPending indicates the partner has not yet acknowledged the sub-order.
	PrinterStatusPending PrinterStatus = "pending"
	// PrinterStatusAccepted indicates the partner confirmed it will fulfill the sub-order.
	PrinterStatusAccepted PrinterStatus = "accepted"
	// PrinterStatusInProduction indicates the partner is actively producing the items.
	PrinterStatusInProduction PrinterStatus = "in_production"
	// PrinterStatusShipped indicates the items left the partner facility.
	PrinterStatusShipped PrinterStatus = "shipped"
	// PrinterStatusCompleted indicates the sub-order has been delivered and closed.
	PrinterStatusCompleted PrinterStatus = "completed"
	// PrinterStatusCancelled indicates the sub-order was cancelled before completion.
	PrinterStatusCancelled PrinterStatus = "cancelled"
)

// ArtworkStatus enumerates the artwork review axis of a sub-order.
type ArtworkStatus string

const (
	// ArtworkStatusPendingUpload indicates the customer still needs to provide artwork.
	ArtworkStatusPendingUpload ArtworkStatus = "pending_upload"
	// ArtworkStatusPendingApproval indicates uploaded artwork awaits partner review.
	ArtworkStatusPendingApproval ArtworkStatus = "pending_approval"
	// ArtworkStatusApproved indicates the partner accepted the artwork for production.
	ArtworkStatusApproved ArtworkStatus = "approved"
	// ArtworkStatusRejected indicates the artwork was rejected and must be re-uploaded.
	ArtworkStatusRejected ArtworkStatus = "rejected"
)

// Address represents the shipping destination snapshot stored on a master order.
type Address struct {
	Recipient  string
	Line1      string
	Line2      *string
	City       string
	PostalCode string
	Country    string
	Phone      *string
}

// MasterOrder is the aggregate root owning every partner sub-order of one checkout.
//
// The three ledger totals are stored, never derived lazily: after every
// successful mutation TotalPrice, TotalCommission and TotalPayout must equal
// the sums of the corresponding sub-order amounts exactly.
type MasterOrder struct {
	ID              string
	OrderNumber     string
	CustomerID      string
	ShippingAddress *Address
	SubOrders       []SubOrder
	PaymentStatus   PaymentStatus
	MasterStatus    MasterStatus
	Currency        string
	TotalPrice      int64
	TotalCommission int64
	TotalPayout     int64
	TotalItems      int
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
	PaidAt          *time.Time
	CompletedAt     *time.Time
	CancelledAt     *time.Time
}

// SubOrder is one fulfillment partner's slice of a master order. It is embedded
// in the aggregate and never addressable outside of it.
type SubOrder struct {
	ID                    string
	PartnerID             string
	Items                 []SubOrderItem
	PrinterTotalPrice     int64
	AppliedCommissionRate float64
	CommissionFee         int64
	PrinterPayout         int64
	PrinterStatus         PrinterStatus
	ArtworkStatus         ArtworkStatus
	ShipperID             *string
	TrackingNote          string
	PartnerNotes          string
	ShippedAt             *time.Time
	CompletedAt           *time.Time
}

// SubOrderItem is a single product line produced by one partner.
type SubOrderItem struct {
	ProductRef string
	Name       string
	Quantity   int
	UnitPrice  int64
	Subtotal   int64
}

// CommissionOverride shadows a partner's standard rate until it expires.
// Expiry is passive: an expired override is simply ignored at resolution time.
type CommissionOverride struct {
	Rate      float64
	ExpiresAt time.Time
}

// Partner is a production partner able to fulfill sub-orders.
type Partner struct {
	ID                     string
	Name                   string
	StandardCommissionRate float64
	CommissionOverride     *CommissionOverride
	Active                 bool
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// Shipper is a delivery agent assignable to sub-orders.
type Shipper struct {
	ID     string
	Name   string
	Phone  string
	Active bool
}

// AuditEntry is an append-only record of one privileged mutation.
type AuditEntry struct {
	ID         string
	Action     string
	Actor      string
	ActorType  string
	TargetType string
	TargetRef  string
	Detail     map[string]any
	Note       string
	IPAddress  string
	UserAgent  string
	CreatedAt  time.Time
}

// Audit action kinds recorded for privileged order mutations. Each kind carries
// a fixed detail shape so the trail stays machine-checkable.
const (
	AuditActionForceStatus       = "order.status.forced"
	AuditActionShipperAssigned   = "order.shipper.assigned"
	AuditActionShipperReplaced   = "order.shipper.replaced"
	AuditActionShipperUnassigned = "order.shipper.unassigned"
	AuditActionOverrideSet       = "partner.commission_override.set"
	AuditActionOverrideCleared   = "partner.commission_override.cleared"
)

// IsTerminal reports whether the master order accepts no further mutations
// outside refund-triggered exceptions.
func (s MasterStatus) IsTerminal() bool {
	return s == MasterStatusCompleted || s == MasterStatusCancelled
}

// IsTerminal reports whether the sub-order fulfillment state is final.
func (s PrinterStatus) IsTerminal() bool {
	return s == PrinterStatusCompleted || s == PrinterStatusCancelled
}

// ValidPrinterStatus reports whether the value is a member of the fulfillment enum.
func ValidPrinterStatus(s PrinterStatus) bool {
	switch s {
	case PrinterStatusPending, PrinterStatusAccepted, PrinterStatusInProduction,
		PrinterStatusShipped, PrinterStatusCompleted, PrinterStatusCancelled:
		return true
	}
	return false
}

// ValidMasterStatus reports whether the value is a member of the master enum.
func ValidMasterStatus(s MasterStatus) bool {
	switch s {
	case MasterStatusPending, MasterStatusProcessing, MasterStatusCompleted, MasterStatusCancelled:
		return true
	}
	return false
}

// ValidArtworkStatus reports whether the value is a member of the artwork enum.
func ValidArtworkStatus(s ArtworkStatus) bool {
	switch s {
	case ArtworkStatusPendingUpload, ArtworkStatusPendingApproval,
		ArtworkStatusApproved, ArtworkStatusRejected:
		return true
	}
	return false
}

// ValidPaymentStatus reports whether the value is a member of the payment enum.
func ValidPaymentStatus(s PaymentStatus) bool {
	switch s {
	case PaymentStatusUnpaid, PaymentStatusPaid, PaymentStatusRefunded, PaymentStatusFailed:
		return true
	}
	return false
}

// SubOrderByID returns a pointer to the embedded sub-order with the given ID,
// or nil when the aggregate does not contain it.
func (m *MasterOrder) SubOrderByID(subOrderID string) *SubOrder {
	for i := range m.SubOrders {
		if m.SubOrders[i].ID == subOrderID {
			return &m.SubOrders[i]
		}
	}
	return nil
}
