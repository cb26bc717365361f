package services

import (
	"context"
	"errors"
	"testing"

	domain "github.com/printmesh/api/internal/domain"
)

func newTestAdminService(t *testing.T, orders *stubOrderRepo, shippers *stubShipperRepo, audit *stubAuditService, events OrderEventPublisher) AdminOrderService {
	t.Helper()
	svc, err := NewAdminOrderService(AdminOrderServiceDeps{
		Orders:     orders,
		Shippers:   shippers,
		AuditLog:   audit,
		UnitOfWork: stubUnitOfWork{},
		Clock:      fixedClock(testNow),
		Events:     events,
	})
	if err != nil {
		t.Fatalf("failed to build admin service: %v", err)
	}
	return svc
}

var adminActor = Actor{ID: "adm_1", Type: ActorTypeAdmin}

func TestForceUpdateStatusSubOrderBypassesTable(t *testing.T) {
	orders := newStubOrderRepo(testOrder())
	audit := &stubAuditService{}
	svc := newTestAdminService(t, orders, newStubShipperRepo(), audit, nil)

	// pending → shipped is illegal for partners, the override jumps anyway.
	updated, err := svc.ForceUpdateStatus(context.Background(), ForceStatusCommand{
		OrderID:    "mo_1",
		SubOrderID: "so_a",
		Status:     "shipped",
		Note:       "partner confirmed dispatch by phone",
		Actor:      adminActor,
		Context:    RequestContext{IPAddress: "10.0.0.1"},
	})
	if err != nil {
		t.Fatalf("force failed: %v", err)
	}

	sub := updated.SubOrderByID("so_a")
	if sub.PrinterStatus != domain.PrinterStatusShipped {
		t.Fatalf("expected shipped, got %s", sub.PrinterStatus)
	}
	if sub.ShippedAt == nil || !sub.ShippedAt.Equal(testNow) {
		t.Fatalf("shippedAt not stamped: %v", sub.ShippedAt)
	}
	if updated.MasterStatus != domain.MasterStatusProcessing {
		t.Fatalf("master should rederive after sub-order force, got %s", updated.MasterStatus)
	}

	if len(audit.records) != 1 {
		t.Fatalf("expected one audit record, got %d", len(audit.records))
	}
	rec := audit.records[0]
	if rec.Action != domain.AuditActionForceStatus {
		t.Fatalf("unexpected action %s", rec.Action)
	}
	if rec.TargetRef != "so_a" {
		t.Fatalf("unexpected target %s", rec.TargetRef)
	}
	if rec.Detail["previous_status"] != "pending" || rec.Detail["new_status"] != "shipped" {
		t.Fatalf("audit detail missing transition: %v", rec.Detail)
	}
	if rec.Context.IPAddress != "10.0.0.1" {
		t.Fatalf("request origin not recorded: %+v", rec.Context)
	}
}

func TestForceUpdateStatusMaster(t *testing.T) {
	orders := newStubOrderRepo(testOrder())
	audit := &stubAuditService{}
	events := &stubPublisher{}
	svc := newTestAdminService(t, orders, newStubShipperRepo(), audit, events)

	updated, err := svc.ForceUpdateStatus(context.Background(), ForceStatusCommand{
		OrderID: "mo_1",
		Status:  "cancelled",
		Note:    "customer chargeback",
		Actor:   adminActor,
	})
	if err != nil {
		t.Fatalf("force failed: %v", err)
	}
	if updated.MasterStatus != domain.MasterStatusCancelled {
		t.Fatalf("expected cancelled, got %s", updated.MasterStatus)
	}
	if updated.CancelledAt == nil {
		t.Fatal("cancelledAt not stamped")
	}
	if len(audit.records) != 1 || audit.records[0].TargetType != auditTargetMasterOrder {
		t.Fatalf("unexpected audit trail: %+v", audit.records)
	}
	if got := events.byType(orderEventStatusChanged); len(got) != 1 || got[0].CurrentStatus != "cancelled" {
		t.Fatalf("expected cancelled status event, got %+v", got)
	}
}

func TestForceUpdateStatusValidation(t *testing.T) {
	svc := newTestAdminService(t, newStubOrderRepo(testOrder()), newStubShipperRepo(), &stubAuditService{}, nil)
	ctx := context.Background()

	if _, err := svc.ForceUpdateStatus(ctx, ForceStatusCommand{
		OrderID: "mo_1", Status: "in_production", Note: "n", Actor: adminActor,
	}); !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("printer-only status must be rejected for master force, got %v", err)
	}

	if _, err := svc.ForceUpdateStatus(ctx, ForceStatusCommand{
		OrderID: "mo_1", SubOrderID: "so_a", Status: "exploded", Note: "n", Actor: adminActor,
	}); !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("unknown status must be rejected, got %v", err)
	}

	if _, err := svc.ForceUpdateStatus(ctx, ForceStatusCommand{
		OrderID: "mo_1", Status: "cancelled", Note: "n",
		Actor: Actor{ID: "usr_a", Type: ActorTypePartner, PartnerID: "ptn_a"},
	}); !errors.Is(err, ErrOrderForbidden) {
		t.Fatalf("non-admin actor must be rejected, got %v", err)
	}
}

func TestForceUpdateStatusSubOrderStampsTerminalMaster(t *testing.T) {
	order := testOrder()
	order.SubOrders[1].PrinterStatus = domain.PrinterStatusShipped
	orders := newStubOrderRepo(order)
	svc := newTestAdminService(t, orders, newStubShipperRepo(), &stubAuditService{}, nil)

	// Forcing the last open sub-order to shipped finishes the whole order.
	updated, err := svc.ForceUpdateStatus(context.Background(), ForceStatusCommand{
		OrderID:    "mo_1",
		SubOrderID: "so_a",
		Status:     "shipped",
		Note:       "carrier scan recovered manually",
		Actor:      adminActor,
	})
	if err != nil {
		t.Fatalf("force failed: %v", err)
	}
	if updated.MasterStatus != domain.MasterStatusCompleted {
		t.Fatalf("expected completed, got %s", updated.MasterStatus)
	}
	if updated.CompletedAt == nil || !updated.CompletedAt.Equal(testNow) {
		t.Fatalf("completedAt not stamped: %v", updated.CompletedAt)
	}

	cancelled := testOrder()
	cancelled.SubOrders[1].PrinterStatus = domain.PrinterStatusCancelled
	svc = newTestAdminService(t, newStubOrderRepo(cancelled), newStubShipperRepo(), &stubAuditService{}, nil)

	updated, err = svc.ForceUpdateStatus(context.Background(), ForceStatusCommand{
		OrderID:    "mo_1",
		SubOrderID: "so_a",
		Status:     "cancelled",
		Note:       "partner unable to fulfil",
		Actor:      adminActor,
	})
	if err != nil {
		t.Fatalf("force failed: %v", err)
	}
	if updated.MasterStatus != domain.MasterStatusCancelled {
		t.Fatalf("expected cancelled, got %s", updated.MasterStatus)
	}
	if updated.CancelledAt == nil || !updated.CancelledAt.Equal(testNow) {
		t.Fatalf("cancelledAt not stamped: %v", updated.CancelledAt)
	}
}

func TestForceUpdateStatusNoteOptional(t *testing.T) {
	orders := newStubOrderRepo(testOrder())
	audit := &stubAuditService{}
	svc := newTestAdminService(t, orders, newStubShipperRepo(), audit, nil)

	updated, err := svc.ForceUpdateStatus(context.Background(), ForceStatusCommand{
		OrderID: "mo_1", Status: "cancelled", Actor: adminActor,
	})
	if err != nil {
		t.Fatalf("force without a note must succeed: %v", err)
	}
	if updated.MasterStatus != domain.MasterStatusCancelled {
		t.Fatalf("expected cancelled, got %s", updated.MasterStatus)
	}
	if len(audit.records) != 1 || audit.records[0].Note != "" {
		t.Fatalf("expected one audit record with empty note, got %+v", audit.records)
	}
}

func TestForceUpdateStatusAbortsWhenAuditFails(t *testing.T) {
	orders := newStubOrderRepo(testOrder())
	audit := &stubAuditService{failErr: errors.New("trail unavailable")}
	svc := newTestAdminService(t, orders, newStubShipperRepo(), audit, nil)

	_, err := svc.ForceUpdateStatus(context.Background(), ForceStatusCommand{
		OrderID: "mo_1", SubOrderID: "so_a", Status: "accepted",
		Note: "manual acceptance", Actor: adminActor,
	})
	if err == nil {
		t.Fatal("expected failure when audit append fails")
	}
}

func TestAssignShipper(t *testing.T) {
	orders := newStubOrderRepo(testOrder())
	shippers := newStubShipperRepo(
		domain.Shipper{ID: "shp_1", Name: "North Courier", Active: true},
		domain.Shipper{ID: "shp_2", Name: "South Courier", Active: true},
		domain.Shipper{ID: "shp_off", Name: "Closed Courier", Active: false},
	)
	audit := &stubAuditService{}
	svc := newTestAdminService(t, orders, shippers, audit, nil)
	ctx := context.Background()

	updated, err := svc.AssignShipper(ctx, AssignShipperCommand{
		OrderID: "mo_1", SubOrderID: "so_a", ShipperID: "shp_1", Actor: adminActor,
	})
	if err != nil {
		t.Fatalf("assign failed: %v", err)
	}
	if got := updated.SubOrderByID("so_a").ShipperID; got == nil || *got != "shp_1" {
		t.Fatalf("shipper not attached: %v", got)
	}
	if len(audit.records) != 1 || audit.records[0].Action != domain.AuditActionShipperAssigned {
		t.Fatalf("expected assigned audit record, got %+v", audit.records)
	}

	// Same shipper again is an idempotent no-op without a second record.
	if _, err := svc.AssignShipper(ctx, AssignShipperCommand{
		OrderID: "mo_1", SubOrderID: "so_a", ShipperID: "shp_1", Actor: adminActor,
	}); err != nil {
		t.Fatalf("idempotent assign failed: %v", err)
	}
	if len(audit.records) != 1 {
		t.Fatalf("no-op assign must not audit, got %d records", len(audit.records))
	}

	// Replacement names both agents.
	updated, err = svc.AssignShipper(ctx, AssignShipperCommand{
		OrderID: "mo_1", SubOrderID: "so_a", ShipperID: "shp_2", Actor: adminActor,
	})
	if err != nil {
		t.Fatalf("replace failed: %v", err)
	}
	if got := updated.SubOrderByID("so_a").ShipperID; got == nil || *got != "shp_2" {
		t.Fatalf("replacement not applied: %v", got)
	}
	rec := audit.records[len(audit.records)-1]
	if rec.Action != domain.AuditActionShipperReplaced {
		t.Fatalf("expected replaced action, got %s", rec.Action)
	}
	if rec.Detail["previous_shipper_id"] != "shp_1" || rec.Detail["shipper_id"] != "shp_2" {
		t.Fatalf("replacement detail incomplete: %v", rec.Detail)
	}

	// Inactive shipper cannot be attached.
	if _, err := svc.AssignShipper(ctx, AssignShipperCommand{
		OrderID: "mo_1", SubOrderID: "so_b", ShipperID: "shp_off", Actor: adminActor,
	}); !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("inactive shipper must be rejected, got %v", err)
	}
}

func TestAssignShipperBlockedOnTerminalSubOrder(t *testing.T) {
	order := testOrder()
	order.SubOrders[0].PrinterStatus = domain.PrinterStatusCompleted
	shippers := newStubShipperRepo(domain.Shipper{ID: "shp_1", Active: true})
	svc := newTestAdminService(t, newStubOrderRepo(order), shippers, &stubAuditService{}, nil)

	_, err := svc.AssignShipper(context.Background(), AssignShipperCommand{
		OrderID: "mo_1", SubOrderID: "so_a", ShipperID: "shp_1", Actor: adminActor,
	})
	if !errors.Is(err, ErrOrderInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
}

func TestUnassignShipper(t *testing.T) {
	order := testOrder()
	shipperID := "shp_1"
	order.SubOrders[0].ShipperID = &shipperID
	orders := newStubOrderRepo(order)
	audit := &stubAuditService{}
	svc := newTestAdminService(t, orders, newStubShipperRepo(), audit, nil)
	ctx := context.Background()

	updated, err := svc.UnassignShipper(ctx, UnassignShipperCommand{
		OrderID: "mo_1", SubOrderID: "so_a", Actor: adminActor,
	})
	if err != nil {
		t.Fatalf("unassign failed: %v", err)
	}
	if updated.SubOrderByID("so_a").ShipperID != nil {
		t.Fatal("shipper still attached")
	}
	if len(audit.records) != 1 || audit.records[0].Action != domain.AuditActionShipperUnassigned {
		t.Fatalf("expected unassigned audit record, got %+v", audit.records)
	}

	// Unassigning with nothing attached succeeds quietly.
	if _, err := svc.UnassignShipper(ctx, UnassignShipperCommand{
		OrderID: "mo_1", SubOrderID: "so_b", Actor: adminActor,
	}); err != nil {
		t.Fatalf("no-op unassign must succeed: %v", err)
	}
	if len(audit.records) != 1 {
		t.Fatalf("no-op unassign must not audit, got %d records", len(audit.records))
	}
}
