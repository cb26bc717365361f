package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/printmesh/api/internal/domain"
)

var testNow = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

func testOrder() domain.MasterOrder {
	return domain.MasterOrder{
		ID:            "mo_1",
		OrderNumber:   "PM-2025-000001",
		CustomerID:    "cus_1",
		Currency:      "USD",
		PaymentStatus: domain.PaymentStatusPaid,
		MasterStatus:  domain.MasterStatusPending,
		SubOrders: []domain.SubOrder{
			{
				ID:                    "so_a",
				PartnerID:             "ptn_a",
				AppliedCommissionRate: 0.10,
				PrinterStatus:         domain.PrinterStatusPending,
				ArtworkStatus:         domain.ArtworkStatusApproved,
				Items: []domain.SubOrderItem{
					{ProductRef: "tshirt", Quantity: 10, UnitPrice: 10000, Subtotal: 100000},
				},
				PrinterTotalPrice: 100000,
				CommissionFee:     10000,
				PrinterPayout:     90000,
			},
			{
				ID:                    "so_b",
				PartnerID:             "ptn_b",
				AppliedCommissionRate: 0.10,
				PrinterStatus:         domain.PrinterStatusPending,
				ArtworkStatus:         domain.ArtworkStatusPendingUpload,
				Items: []domain.SubOrderItem{
					{ProductRef: "box", Quantity: 5, UnitPrice: 10000, Subtotal: 50000},
				},
				PrinterTotalPrice: 50000,
				CommissionFee:     5000,
				PrinterPayout:     45000,
			},
		},
		TotalPrice:      150000,
		TotalCommission: 15000,
		TotalPayout:     135000,
		TotalItems:      15,
		Version:         1,
		CreatedAt:       testNow.Add(-time.Hour),
		UpdatedAt:       testNow.Add(-time.Hour),
	}
}

func newTestOrderService(t *testing.T, orders *stubOrderRepo, partners *stubPartnerRepo, events OrderEventPublisher) OrderService {
	t.Helper()
	svc, err := NewOrderService(OrderServiceDeps{
		Orders:      orders,
		Partners:    partners,
		Counters:    &stubCounterRepo{},
		Clock:       fixedClock(testNow),
		IDGenerator: sequentialIDs("AAA", "BBB", "CCC", "DDD"),
		Events:      events,
	})
	if err != nil {
		t.Fatalf("failed to build order service: %v", err)
	}
	return svc
}

func TestPlaceOrderSplitsAcrossPartners(t *testing.T) {
	orders := newStubOrderRepo()
	partners := newStubPartnerRepo(
		domain.Partner{ID: "ptn_a", StandardCommissionRate: 0.10, Active: true},
		domain.Partner{
			ID:                     "ptn_b",
			StandardCommissionRate: 0.20,
			Active:                 true,
			CommissionOverride:     &domain.CommissionOverride{Rate: 0.05, ExpiresAt: testNow.Add(time.Hour)},
		},
	)
	publisher := &stubPublisher{}
	svc := newTestOrderService(t, orders, partners, publisher)

	order, err := svc.PlaceOrder(context.Background(), PlaceOrderCommand{
		CustomerID: "cus_1",
		Currency:   "usd",
		Lines: []CheckoutLine{
			{PartnerID: "ptn_a", Items: []SubOrderItem{{ProductRef: "tshirt", Quantity: 10, UnitPrice: 10000}}},
			{PartnerID: "ptn_b", Items: []SubOrderItem{{ProductRef: "box", Quantity: 5, UnitPrice: 10000}}},
		},
		Actor: Actor{ID: "cus_1", Type: ActorTypeService},
	})
	if err != nil {
		t.Fatalf("place order failed: %v", err)
	}

	if len(order.SubOrders) != 2 {
		t.Fatalf("expected 2 sub-orders, got %d", len(order.SubOrders))
	}
	if order.Currency != "USD" {
		t.Fatalf("expected normalised currency, got %s", order.Currency)
	}
	if order.OrderNumber != "PM-2025-000001" {
		t.Fatalf("unexpected order number %s", order.OrderNumber)
	}
	if order.Version != 1 {
		t.Fatalf("new aggregate must start at version 1, got %d", order.Version)
	}
	if order.MasterStatus != domain.MasterStatusPending {
		t.Fatalf("unpaid order must derive pending, got %s", order.MasterStatus)
	}

	// Partner A keeps the standard rate, partner B snapshots its live override.
	if got := order.SubOrders[0].AppliedCommissionRate; got != 0.10 {
		t.Fatalf("partner a rate: expected 0.10, got %v", got)
	}
	if got := order.SubOrders[1].AppliedCommissionRate; got != 0.05 {
		t.Fatalf("partner b rate: expected override 0.05, got %v", got)
	}

	if order.TotalPrice != 150000 {
		t.Fatalf("expected total price 150000, got %d", order.TotalPrice)
	}
	if order.TotalCommission != 10000+2500 {
		t.Fatalf("expected total commission 12500, got %d", order.TotalCommission)
	}
	if order.TotalPayout != order.TotalPrice-order.TotalCommission {
		t.Fatalf("payout %d breaks ledger identity", order.TotalPayout)
	}

	if got := publisher.byType(orderEventCreated); len(got) != 1 {
		t.Fatalf("expected one created event, got %d", len(got))
	}
}

func TestPlaceOrderRejectsBadInput(t *testing.T) {
	partners := newStubPartnerRepo(
		domain.Partner{ID: "ptn_a", StandardCommissionRate: 0.10, Active: true},
		domain.Partner{ID: "ptn_off", StandardCommissionRate: 0.10, Active: false},
	)
	svc := newTestOrderService(t, newStubOrderRepo(), partners, nil)
	ctx := context.Background()

	items := []SubOrderItem{{ProductRef: "tshirt", Quantity: 1, UnitPrice: 100}}
	base := PlaceOrderCommand{CustomerID: "cus_1", Currency: "USD"}

	cases := []struct {
		name  string
		lines []CheckoutLine
		want  error
	}{
		{"no lines", nil, ErrOrderInvalidInput},
		{"empty line", []CheckoutLine{{PartnerID: "ptn_a"}}, ErrOrderInvalidInput},
		{"duplicate partner", []CheckoutLine{{PartnerID: "ptn_a", Items: items}, {PartnerID: "ptn_a", Items: items}}, ErrOrderInvalidInput},
		{"zero quantity", []CheckoutLine{{PartnerID: "ptn_a", Items: []SubOrderItem{{ProductRef: "x", Quantity: 0, UnitPrice: 100}}}}, ErrOrderInvalidInput},
		{"negative price", []CheckoutLine{{PartnerID: "ptn_a", Items: []SubOrderItem{{ProductRef: "x", Quantity: 1, UnitPrice: -1}}}}, ErrOrderInvalidInput},
		{"inactive partner", []CheckoutLine{{PartnerID: "ptn_off", Items: items}}, ErrOrderInvalidInput},
		{"unknown partner", []CheckoutLine{{PartnerID: "ptn_missing", Items: items}}, ErrOrderNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cmd := base
			cmd.Lines = tc.lines
			if _, err := svc.PlaceOrder(ctx, cmd); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestApplyPartnerTransitionHappyPath(t *testing.T) {
	orders := newStubOrderRepo(testOrder())
	publisher := &stubPublisher{}
	svc := newTestOrderService(t, orders, newStubPartnerRepo(), publisher)

	updated, err := svc.ApplyPartnerTransition(context.Background(), PartnerTransitionCommand{
		SubOrderID:   "so_a",
		TargetStatus: domain.PrinterStatusAccepted,
		Notes:        "queued for monday",
		Actor:        Actor{ID: "usr_a", Type: ActorTypePartner, PartnerID: "ptn_a"},
	})
	if err != nil {
		t.Fatalf("transition failed: %v", err)
	}

	sub := updated.SubOrderByID("so_a")
	if sub.PrinterStatus != domain.PrinterStatusAccepted {
		t.Fatalf("expected accepted, got %s", sub.PrinterStatus)
	}
	if sub.PartnerNotes != "queued for monday" {
		t.Fatalf("notes not recorded: %q", sub.PartnerNotes)
	}
	if updated.MasterStatus != domain.MasterStatusProcessing {
		t.Fatalf("master should rederive to processing, got %s", updated.MasterStatus)
	}
	if updated.Version != 2 {
		t.Fatalf("expected version bump to 2, got %d", updated.Version)
	}

	events := publisher.byType(orderEventStatusChanged)
	if len(events) != 1 {
		t.Fatalf("expected one status-changed event, got %d", len(events))
	}
	if events[0].PreviousStatus != "pending" || events[0].CurrentStatus != "processing" {
		t.Fatalf("unexpected event payload: %+v", events[0])
	}
}

func TestApplyPartnerTransitionRejectsForeignPartner(t *testing.T) {
	svc := newTestOrderService(t, newStubOrderRepo(testOrder()), newStubPartnerRepo(), nil)

	_, err := svc.ApplyPartnerTransition(context.Background(), PartnerTransitionCommand{
		SubOrderID:   "so_a",
		TargetStatus: domain.PrinterStatusAccepted,
		Actor:        Actor{ID: "usr_b", Type: ActorTypePartner, PartnerID: "ptn_b"},
	})
	if !errors.Is(err, ErrOrderForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestApplyPartnerTransitionArtworkGate(t *testing.T) {
	order := testOrder()
	order.SubOrders[1].PrinterStatus = domain.PrinterStatusAccepted
	svc := newTestOrderService(t, newStubOrderRepo(order), newStubPartnerRepo(), nil)

	// so_b artwork is still pending_upload, production must stay blocked.
	_, err := svc.ApplyPartnerTransition(context.Background(), PartnerTransitionCommand{
		SubOrderID:   "so_b",
		TargetStatus: domain.PrinterStatusInProduction,
		Actor:        Actor{ID: "usr_b", Type: ActorTypePartner, PartnerID: "ptn_b"},
	})
	if !errors.Is(err, ErrOrderInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
}

func TestApplyPartnerTransitionIllegalJump(t *testing.T) {
	svc := newTestOrderService(t, newStubOrderRepo(testOrder()), newStubPartnerRepo(), nil)

	_, err := svc.ApplyPartnerTransition(context.Background(), PartnerTransitionCommand{
		SubOrderID:   "so_a",
		TargetStatus: domain.PrinterStatusShipped,
		Actor:        Actor{ID: "adm_1", Type: ActorTypeAdmin},
	})
	if !errors.Is(err, ErrOrderInvalidState) {
		t.Fatalf("expected invalid state for pending→shipped, got %v", err)
	}
}

func TestApplyPartnerTransitionIdempotentReentry(t *testing.T) {
	orders := newStubOrderRepo(testOrder())
	svc := newTestOrderService(t, orders, newStubPartnerRepo(), nil)

	got, err := svc.ApplyPartnerTransition(context.Background(), PartnerTransitionCommand{
		SubOrderID:   "so_a",
		TargetStatus: domain.PrinterStatusPending,
		Actor:        Actor{ID: "usr_a", Type: ActorTypePartner, PartnerID: "ptn_a"},
	})
	if err != nil {
		t.Fatalf("same-state re-entry must succeed: %v", err)
	}
	if orders.updateCalls != 0 {
		t.Fatalf("no-op transition must not write, got %d updates", orders.updateCalls)
	}
	if got.Version != 1 {
		t.Fatalf("version must be untouched, got %d", got.Version)
	}
}

func TestApplyPartnerTransitionShippedTimestampSetOnce(t *testing.T) {
	order := testOrder()
	shippedAt := testNow.Add(-30 * time.Minute)
	order.SubOrders[0].PrinterStatus = domain.PrinterStatusInProduction
	order.SubOrders[0].ShippedAt = &shippedAt
	orders := newStubOrderRepo(order)
	svc := newTestOrderService(t, orders, newStubPartnerRepo(), nil)

	updated, err := svc.ApplyPartnerTransition(context.Background(), PartnerTransitionCommand{
		SubOrderID:   "so_a",
		TargetStatus: domain.PrinterStatusShipped,
		Actor:        Actor{ID: "usr_a", Type: ActorTypePartner, PartnerID: "ptn_a"},
	})
	if err != nil {
		t.Fatalf("transition failed: %v", err)
	}
	if got := updated.SubOrderByID("so_a").ShippedAt; got == nil || !got.Equal(shippedAt) {
		t.Fatalf("shippedAt must be preserved, got %v", got)
	}
}

func TestApplyPartnerTransitionTerminalMasterRejected(t *testing.T) {
	order := testOrder()
	order.MasterStatus = domain.MasterStatusCancelled
	for i := range order.SubOrders {
		order.SubOrders[i].PrinterStatus = domain.PrinterStatusCancelled
	}
	svc := newTestOrderService(t, newStubOrderRepo(order), newStubPartnerRepo(), nil)

	_, err := svc.ApplyPartnerTransition(context.Background(), PartnerTransitionCommand{
		SubOrderID:   "so_a",
		TargetStatus: domain.PrinterStatusCancelled,
		Actor:        Actor{ID: "adm_1", Type: ActorTypeAdmin},
	})
	if err != nil {
		// Same-state re-entry short-circuits before the terminal guard.
		t.Fatalf("same-state on terminal order should be a no-op read, got %v", err)
	}

	_, err = svc.ApplyPartnerTransition(context.Background(), PartnerTransitionCommand{
		SubOrderID:   "so_a",
		TargetStatus: domain.PrinterStatusAccepted,
		Actor:        Actor{ID: "adm_1", Type: ActorTypeAdmin},
	})
	if !errors.Is(err, ErrOrderInvalidState) {
		t.Fatalf("expected invalid state on cancelled master, got %v", err)
	}
}

func TestApplyPartnerTransitionDeliveryConfirmAfterAllShipped(t *testing.T) {
	order := testOrder()
	shippedAt := testNow.Add(-time.Hour)
	for i := range order.SubOrders {
		order.SubOrders[i].PrinterStatus = domain.PrinterStatusShipped
		order.SubOrders[i].ShippedAt = &shippedAt
	}
	order.MasterStatus = domain.MasterStatusCompleted
	completedAt := shippedAt
	order.CompletedAt = &completedAt
	orders := newStubOrderRepo(order)
	svc := newTestOrderService(t, orders, newStubPartnerRepo(), nil)

	// The master is already Completed once everything has shipped; confirming
	// delivery on a sub-order must still go through.
	updated, err := svc.ApplyPartnerTransition(context.Background(), PartnerTransitionCommand{
		SubOrderID:   "so_a",
		TargetStatus: domain.PrinterStatusCompleted,
		Actor:        Actor{ID: "usr_a", Type: ActorTypePartner, PartnerID: "ptn_a"},
	})
	if err != nil {
		t.Fatalf("delivery confirmation failed: %v", err)
	}
	sub := updated.SubOrderByID("so_a")
	if sub.PrinterStatus != domain.PrinterStatusCompleted {
		t.Fatalf("expected completed, got %s", sub.PrinterStatus)
	}
	if sub.CompletedAt == nil || !sub.CompletedAt.Equal(testNow) {
		t.Fatalf("completedAt not stamped: %v", sub.CompletedAt)
	}
	if updated.MasterStatus != domain.MasterStatusCompleted {
		t.Fatalf("master must stay completed, got %s", updated.MasterStatus)
	}
}

func TestApplyPartnerTransitionRetriesOnConflict(t *testing.T) {
	orders := newStubOrderRepo(testOrder())
	orders.failUpdates = 2
	svc := newTestOrderService(t, orders, newStubPartnerRepo(), nil)

	updated, err := svc.ApplyPartnerTransition(context.Background(), PartnerTransitionCommand{
		SubOrderID:   "so_a",
		TargetStatus: domain.PrinterStatusAccepted,
		Actor:        Actor{ID: "adm_1", Type: ActorTypeAdmin},
	})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if updated.SubOrderByID("so_a").PrinterStatus != domain.PrinterStatusAccepted {
		t.Fatal("transition lost across retries")
	}
	if orders.updateCalls != 3 {
		t.Fatalf("expected 3 update attempts, got %d", orders.updateCalls)
	}
}

func TestApplyPartnerTransitionConflictExhaustion(t *testing.T) {
	orders := newStubOrderRepo(testOrder())
	orders.failUpdates = 3
	svc := newTestOrderService(t, orders, newStubPartnerRepo(), nil)

	_, err := svc.ApplyPartnerTransition(context.Background(), PartnerTransitionCommand{
		SubOrderID:   "so_a",
		TargetStatus: domain.PrinterStatusAccepted,
		Actor:        Actor{ID: "adm_1", Type: ActorTypeAdmin},
	})
	if !errors.Is(err, ErrOrderConflict) {
		t.Fatalf("expected conflict after exhausted retries, got %v", err)
	}
}

func TestApplyArtworkTransition(t *testing.T) {
	svc := newTestOrderService(t, newStubOrderRepo(testOrder()), newStubPartnerRepo(), nil)
	ctx := context.Background()

	updated, err := svc.ApplyArtworkTransition(ctx, ArtworkTransitionCommand{
		SubOrderID:   "so_b",
		TargetStatus: domain.ArtworkStatusPendingApproval,
		Actor:        Actor{ID: "svc_upload", Type: ActorTypeService},
	})
	if err != nil {
		t.Fatalf("upload transition failed: %v", err)
	}
	if updated.SubOrderByID("so_b").ArtworkStatus != domain.ArtworkStatusPendingApproval {
		t.Fatal("artwork status not advanced")
	}

	updated, err = svc.ApplyArtworkTransition(ctx, ArtworkTransitionCommand{
		SubOrderID:   "so_b",
		TargetStatus: domain.ArtworkStatusRejected,
		Reason:       "resolution too low",
		Actor:        Actor{ID: "usr_b", Type: ActorTypePartner, PartnerID: "ptn_b"},
	})
	if err != nil {
		t.Fatalf("rejection failed: %v", err)
	}
	sub := updated.SubOrderByID("so_b")
	if sub.ArtworkStatus != domain.ArtworkStatusRejected {
		t.Fatal("artwork not rejected")
	}
	if sub.PartnerNotes != "resolution too low" {
		t.Fatalf("rejection reason not recorded: %q", sub.PartnerNotes)
	}

	// Rejected loops back to pending_upload, approval from rejected is illegal.
	if _, err := svc.ApplyArtworkTransition(ctx, ArtworkTransitionCommand{
		SubOrderID:   "so_b",
		TargetStatus: domain.ArtworkStatusApproved,
		Actor:        Actor{ID: "usr_b", Type: ActorTypePartner, PartnerID: "ptn_b"},
	}); !errors.Is(err, ErrOrderInvalidState) {
		t.Fatalf("expected invalid state for rejected→approved, got %v", err)
	}
}

func TestApplyArtworkTransitionBlockedOnTerminalSubOrder(t *testing.T) {
	order := testOrder()
	order.SubOrders[0].PrinterStatus = domain.PrinterStatusCancelled
	svc := newTestOrderService(t, newStubOrderRepo(order), newStubPartnerRepo(), nil)

	_, err := svc.ApplyArtworkTransition(context.Background(), ArtworkTransitionCommand{
		SubOrderID:   "so_a",
		TargetStatus: domain.ArtworkStatusPendingApproval,
		Actor:        Actor{ID: "adm_1", Type: ActorTypeAdmin},
	})
	if !errors.Is(err, ErrOrderInvalidState) {
		t.Fatalf("expected invalid state on cancelled sub-order, got %v", err)
	}
}

func TestMarkPaymentStatus(t *testing.T) {
	order := testOrder()
	order.PaymentStatus = domain.PaymentStatusUnpaid
	orders := newStubOrderRepo(order)
	svc := newTestOrderService(t, orders, newStubPartnerRepo(), nil)

	updated, err := svc.MarkPaymentStatus(context.Background(), MarkPaymentStatusCommand{
		OrderID: "mo_1",
		Status:  domain.PaymentStatusPaid,
		Actor:   Actor{ID: "svc_pay", Type: ActorTypeService},
	})
	if err != nil {
		t.Fatalf("mark paid failed: %v", err)
	}
	if updated.PaymentStatus != domain.PaymentStatusPaid {
		t.Fatalf("expected paid, got %s", updated.PaymentStatus)
	}
	if updated.PaidAt == nil || !updated.PaidAt.Equal(testNow) {
		t.Fatalf("paidAt not stamped: %v", updated.PaidAt)
	}
}

func TestMarkPaymentStatusRefundExceptionOnTerminalOrder(t *testing.T) {
	order := testOrder()
	order.MasterStatus = domain.MasterStatusCancelled
	for i := range order.SubOrders {
		order.SubOrders[i].PrinterStatus = domain.PrinterStatusCancelled
	}
	orders := newStubOrderRepo(order)
	svc := newTestOrderService(t, orders, newStubPartnerRepo(), nil)
	ctx := context.Background()

	if _, err := svc.MarkPaymentStatus(ctx, MarkPaymentStatusCommand{
		OrderID: "mo_1",
		Status:  domain.PaymentStatusFailed,
		Actor:   Actor{ID: "svc_pay", Type: ActorTypeService},
	}); !errors.Is(err, ErrOrderInvalidState) {
		t.Fatalf("expected invalid state for non-refund on terminal order, got %v", err)
	}

	updated, err := svc.MarkPaymentStatus(ctx, MarkPaymentStatusCommand{
		OrderID: "mo_1",
		Status:  domain.PaymentStatusRefunded,
		Actor:   Actor{ID: "svc_pay", Type: ActorTypeService},
	})
	if err != nil {
		t.Fatalf("refund on terminal order must succeed: %v", err)
	}
	if updated.PaymentStatus != domain.PaymentStatusRefunded {
		t.Fatalf("expected refunded, got %s", updated.PaymentStatus)
	}
	// Cancelled stays cancelled, refund does not reopen the aggregate.
	if updated.MasterStatus != domain.MasterStatusCancelled {
		t.Fatalf("refund must not change master status, got %s", updated.MasterStatus)
	}
}

func TestGetOrderNotFound(t *testing.T) {
	svc := newTestOrderService(t, newStubOrderRepo(), newStubPartnerRepo(), nil)
	if _, err := svc.GetOrder(context.Background(), "mo_missing"); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
