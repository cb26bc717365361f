package handlers

import (
	"context"
	"time"

	domain "github.com/printmesh/api/internal/domain"
	"github.com/printmesh/api/internal/services"
)

var handlerTestNow = time.Date(2025, time.June, 15, 10, 0, 0, 0, time.UTC)

func sampleOrder() domain.MasterOrder {
	shipped := handlerTestNow.Add(-time.Hour)
	return domain.MasterOrder{
		ID:          "mo_1",
		OrderNumber: "PM-2025-000001",
		CustomerID:  "cus_1",
		SubOrders: []domain.SubOrder{
			{
				ID:        "so_a",
				PartnerID: "ptn_a",
				Items: []domain.SubOrderItem{
					{ProductRef: "prd_1", Name: "Poster A2", Quantity: 2, UnitPrice: 2500, Subtotal: 5000},
				},
				PrinterTotalPrice:     5000,
				AppliedCommissionRate: 0.10,
				CommissionFee:         500,
				PrinterPayout:         4500,
				PrinterStatus:         domain.PrinterStatusShipped,
				ArtworkStatus:         domain.ArtworkStatusApproved,
				ShippedAt:             &shipped,
			},
		},
		PaymentStatus:   domain.PaymentStatusPaid,
		MasterStatus:    domain.MasterStatusProcessing,
		Currency:        "EUR",
		TotalPrice:      5000,
		TotalCommission: 500,
		TotalPayout:     4500,
		TotalItems:      2,
		Version:         3,
		CreatedAt:       handlerTestNow.Add(-24 * time.Hour),
		UpdatedAt:       handlerTestNow,
	}
}

type stubOrderService struct {
	placed     []services.PlaceOrderCommand
	listFilter services.OrderListFilter

	order domain.MasterOrder
	page  domain.CursorPage[domain.MasterOrder]
	err   error
}

func (s *stubOrderService) PlaceOrder(_ context.Context, cmd services.PlaceOrderCommand) (domain.MasterOrder, error) {
	s.placed = append(s.placed, cmd)
	return s.order, s.err
}

func (s *stubOrderService) GetOrder(_ context.Context, _ string) (domain.MasterOrder, error) {
	return s.order, s.err
}

func (s *stubOrderService) ListOrders(_ context.Context, filter services.OrderListFilter) (domain.CursorPage[domain.MasterOrder], error) {
	s.listFilter = filter
	return s.page, s.err
}

func (s *stubOrderService) ApplyPartnerTransition(_ context.Context, _ services.PartnerTransitionCommand) (domain.MasterOrder, error) {
	return s.order, s.err
}

func (s *stubOrderService) ApplyArtworkTransition(_ context.Context, _ services.ArtworkTransitionCommand) (domain.MasterOrder, error) {
	return s.order, s.err
}

func (s *stubOrderService) MarkPaymentStatus(_ context.Context, _ services.MarkPaymentStatusCommand) (domain.MasterOrder, error) {
	return s.order, s.err
}

type stubAdminOrderService struct {
	forced []services.ForceStatusCommand

	order domain.MasterOrder
	err   error
}

func (s *stubAdminOrderService) ForceUpdateStatus(_ context.Context, cmd services.ForceStatusCommand) (domain.MasterOrder, error) {
	s.forced = append(s.forced, cmd)
	return s.order, s.err
}

func (s *stubAdminOrderService) AssignShipper(_ context.Context, _ services.AssignShipperCommand) (domain.MasterOrder, error) {
	return s.order, s.err
}

func (s *stubAdminOrderService) UnassignShipper(_ context.Context, _ services.UnassignShipperCommand) (domain.MasterOrder, error) {
	return s.order, s.err
}

type stubPartnerService struct {
	partner domain.Partner
	err     error
}

func (s *stubPartnerService) GetPartner(_ context.Context, _ string) (domain.Partner, error) {
	return s.partner, s.err
}

func (s *stubPartnerService) SetCommissionOverride(_ context.Context, _ services.SetCommissionOverrideCommand) (domain.Partner, error) {
	return s.partner, s.err
}

func (s *stubPartnerService) ClearCommissionOverride(_ context.Context, _ services.ClearCommissionOverrideCommand) (domain.Partner, error) {
	return s.partner, s.err
}

type stubAuditLogService struct {
	page domain.CursorPage[domain.AuditEntry]
	err  error
}

func (s *stubAuditLogService) Append(_ context.Context, _ services.AuditRecord) error {
	return s.err
}

func (s *stubAuditLogService) List(_ context.Context, _ services.AuditLogFilter) (domain.CursorPage[domain.AuditEntry], error) {
	return s.page, s.err
}
