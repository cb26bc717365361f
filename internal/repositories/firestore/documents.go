package firestore

import (
	"time"

	domain "github.com/printmesh/api/internal/domain"
)

// Firestore document shapes. Domain models stay persistence-agnostic, the
// conversion lives here with the tags.

type addressDocument struct {
	Recipient  string  `firestore:"recipient"`
	Line1      string  `firestore:"line1"`
	Line2      *string `firestore:"line2,omitempty"`
	City       string  `firestore:"city"`
	PostalCode string  `firestore:"postalCode"`
	Country    string  `firestore:"country"`
	Phone      *string `firestore:"phone,omitempty"`
}

type subOrderItemDocument struct {
	ProductRef string `firestore:"productRef"`
	Name       string `firestore:"name"`
	Quantity   int    `firestore:"quantity"`
	UnitPrice  int64  `firestore:"unitPrice"`
	Subtotal   int64  `firestore:"subtotal"`
}

type subOrderDocument struct {
	ID                    string                 `firestore:"id"`
	PartnerID             string                 `firestore:"partnerId"`
	Items                 []subOrderItemDocument `firestore:"items"`
	PrinterTotalPrice     int64                  `firestore:"printerTotalPrice"`
	AppliedCommissionRate float64                `firestore:"appliedCommissionRate"`
	CommissionFee         int64                  `firestore:"commissionFee"`
	PrinterPayout         int64                  `firestore:"printerPayout"`
	PrinterStatus         string                 `firestore:"printerStatus"`
	ArtworkStatus         string                 `firestore:"artworkStatus"`
	ShipperID             *string                `firestore:"shipperId,omitempty"`
	TrackingNote          string                 `firestore:"trackingNote,omitempty"`
	PartnerNotes          string                 `firestore:"partnerNotes,omitempty"`
	ShippedAt             *time.Time             `firestore:"shippedAt,omitempty"`
	CompletedAt           *time.Time             `firestore:"completedAt,omitempty"`
}

type masterOrderDocument struct {
	OrderNumber     string             `firestore:"orderNumber"`
	CustomerID      string             `firestore:"customerId"`
	ShippingAddress *addressDocument   `firestore:"shippingAddress,omitempty"`
	SubOrders       []subOrderDocument `firestore:"subOrders"`
	PaymentStatus   string             `firestore:"paymentStatus"`
	MasterStatus    string             `firestore:"masterStatus"`
	Currency        string             `firestore:"currency"`
	TotalPrice      int64              `firestore:"totalPrice"`
	TotalCommission int64              `firestore:"totalCommission"`
	TotalPayout     int64              `firestore:"totalPayout"`
	TotalItems      int                `firestore:"totalItems"`
	Version         int64              `firestore:"version"`
	CreatedAt       time.Time          `firestore:"createdAt"`
	UpdatedAt       time.Time          `firestore:"updatedAt"`
	PaidAt          *time.Time         `firestore:"paidAt,omitempty"`
	CompletedAt     *time.Time         `firestore:"completedAt,omitempty"`
	CancelledAt     *time.Time         `firestore:"cancelledAt,omitempty"`

	// Denormalised lookup keys for array-contains queries.
	SubOrderIDs []string `firestore:"subOrderIds"`
	PartnerIDs  []string `firestore:"partnerIds"`
}

type commissionOverrideDocument struct {
	Rate      float64   `firestore:"rate"`
	ExpiresAt time.Time `firestore:"expiresAt"`
}

type partnerDocument struct {
	Name                   string                      `firestore:"name"`
	StandardCommissionRate float64                     `firestore:"standardCommissionRate"`
	CommissionOverride     *commissionOverrideDocument `firestore:"commissionOverride,omitempty"`
	Active                 bool                        `firestore:"active"`
	CreatedAt              time.Time                   `firestore:"createdAt"`
	UpdatedAt              time.Time                   `firestore:"updatedAt"`
}

type shipperDocument struct {
	Name   string `firestore:"name"`
	Phone  string `firestore:"phone,omitempty"`
	Active bool   `firestore:"active"`
}

type auditEntryDocument struct {
	Action     string         `firestore:"action"`
	Actor      string         `firestore:"actor"`
	ActorType  string         `firestore:"actorType"`
	TargetType string         `firestore:"targetType"`
	TargetRef  string         `firestore:"targetRef"`
	Detail     map[string]any `firestore:"detail,omitempty"`
	Note       string         `firestore:"note,omitempty"`
	IPAddress  string         `firestore:"ipAddress,omitempty"`
	UserAgent  string         `firestore:"userAgent,omitempty"`
	CreatedAt  time.Time      `firestore:"createdAt"`
}

func encodeMasterOrder(order domain.MasterOrder) masterOrderDocument {
	doc := masterOrderDocument{
		OrderNumber:     order.OrderNumber,
		CustomerID:      order.CustomerID,
		ShippingAddress: encodeAddress(order.ShippingAddress),
		SubOrders:       make([]subOrderDocument, 0, len(order.SubOrders)),
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
	for _, sub := range order.SubOrders {
		doc.SubOrders = append(doc.SubOrders, encodeSubOrder(sub))
		doc.SubOrderIDs = append(doc.SubOrderIDs, sub.ID)
		doc.PartnerIDs = append(doc.PartnerIDs, sub.PartnerID)
	}
	return doc
}

func decodeMasterOrder(id string, doc masterOrderDocument) domain.MasterOrder {
	order := domain.MasterOrder{
		ID:              id,
		OrderNumber:     doc.OrderNumber,
		CustomerID:      doc.CustomerID,
		ShippingAddress: decodeAddress(doc.ShippingAddress),
		SubOrders:       make([]domain.SubOrder, 0, len(doc.SubOrders)),
		PaymentStatus:   domain.PaymentStatus(doc.PaymentStatus),
		MasterStatus:    domain.MasterStatus(doc.MasterStatus),
		Currency:        doc.Currency,
		TotalPrice:      doc.TotalPrice,
		TotalCommission: doc.TotalCommission,
		TotalPayout:     doc.TotalPayout,
		TotalItems:      doc.TotalItems,
		Version:         doc.Version,
		CreatedAt:       doc.CreatedAt,
		UpdatedAt:       doc.UpdatedAt,
		PaidAt:          doc.PaidAt,
		CompletedAt:     doc.CompletedAt,
		CancelledAt:     doc.CancelledAt,
	}
	for _, sub := range doc.SubOrders {
		order.SubOrders = append(order.SubOrders, decodeSubOrder(sub))
	}
	return order
}

func encodeSubOrder(sub domain.SubOrder) subOrderDocument {
	doc := subOrderDocument{
		ID:                    sub.ID,
		PartnerID:             sub.PartnerID,
		Items:                 make([]subOrderItemDocument, 0, len(sub.Items)),
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
		doc.Items = append(doc.Items, subOrderItemDocument(item))
	}
	return doc
}

func decodeSubOrder(doc subOrderDocument) domain.SubOrder {
	sub := domain.SubOrder{
		ID:                    doc.ID,
		PartnerID:             doc.PartnerID,
		Items:                 make([]domain.SubOrderItem, 0, len(doc.Items)),
		PrinterTotalPrice:     doc.PrinterTotalPrice,
		AppliedCommissionRate: doc.AppliedCommissionRate,
		CommissionFee:         doc.CommissionFee,
		PrinterPayout:         doc.PrinterPayout,
		PrinterStatus:         domain.PrinterStatus(doc.PrinterStatus),
		ArtworkStatus:         domain.ArtworkStatus(doc.ArtworkStatus),
		ShipperID:             doc.ShipperID,
		TrackingNote:          doc.TrackingNote,
		PartnerNotes:          doc.PartnerNotes,
		ShippedAt:             doc.ShippedAt,
		CompletedAt:           doc.CompletedAt,
	}
	for _, item := range doc.Items {
		sub.Items = append(sub.Items, domain.SubOrderItem(item))
	}
	return sub
}

func encodeAddress(addr *domain.Address) *addressDocument {
	if addr == nil {
		return nil
	}
	doc := addressDocument(*addr)
	return &doc
}

func decodeAddress(doc *addressDocument) *domain.Address {
	if doc == nil {
		return nil
	}
	addr := domain.Address(*doc)
	return &addr
}

func encodePartner(partner domain.Partner) partnerDocument {
	doc := partnerDocument{
		Name:                   partner.Name,
		StandardCommissionRate: partner.StandardCommissionRate,
		Active:                 partner.Active,
		CreatedAt:              partner.CreatedAt,
		UpdatedAt:              partner.UpdatedAt,
	}
	if partner.CommissionOverride != nil {
		doc.CommissionOverride = &commissionOverrideDocument{
			Rate:      partner.CommissionOverride.Rate,
			ExpiresAt: partner.CommissionOverride.ExpiresAt,
		}
	}
	return doc
}

func decodePartner(id string, doc partnerDocument) domain.Partner {
	partner := domain.Partner{
		ID:                     id,
		Name:                   doc.Name,
		StandardCommissionRate: doc.StandardCommissionRate,
		Active:                 doc.Active,
		CreatedAt:              doc.CreatedAt,
		UpdatedAt:              doc.UpdatedAt,
	}
	if doc.CommissionOverride != nil {
		partner.CommissionOverride = &domain.CommissionOverride{
			Rate:      doc.CommissionOverride.Rate,
			ExpiresAt: doc.CommissionOverride.ExpiresAt,
		}
	}
	return partner
}

func encodeAuditEntry(entry domain.AuditEntry) auditEntryDocument {
	return auditEntryDocument{
		Action:     entry.Action,
		Actor:      entry.Actor,
		ActorType:  entry.ActorType,
		TargetType: entry.TargetType,
		TargetRef:  entry.TargetRef,
		Detail:     entry.Detail,
		Note:       entry.Note,
		IPAddress:  entry.IPAddress,
		UserAgent:  entry.UserAgent,
		CreatedAt:  entry.CreatedAt,
	}
}

func decodeAuditEntry(id string, doc auditEntryDocument) domain.AuditEntry {
	return domain.AuditEntry{
		ID:         id,
		Action:     doc.Action,
		Actor:      doc.Actor,
		ActorType:  doc.ActorType,
		TargetType: doc.TargetType,
		TargetRef:  doc.TargetRef,
		Detail:     doc.Detail,
		Note:       doc.Note,
		IPAddress:  doc.IPAddress,
		UserAgent:  doc.UserAgent,
		CreatedAt:  doc.CreatedAt,
	}
}
