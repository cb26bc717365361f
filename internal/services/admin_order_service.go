package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/printmesh/api/internal/domain"
	"github.com/printmesh/api/internal/repositories"
)

const (
	auditTargetMasterOrder = "master_order"
	auditTargetSubOrder    = "sub_order"
)

// AdminOrderServiceDeps bundles collaborators for the privileged mutation path.
type AdminOrderServiceDeps struct {
	Orders     repositories.MasterOrderRepository
	Shippers   repositories.ShipperRepository
	AuditLog   AuditLogService
	UnitOfWork repositories.UnitOfWork
	Clock      func() time.Time
	Events     OrderEventPublisher
	Logger     func(ctx context.Context, event string, fields map[string]any)
}

type adminOrderService struct {
	orders   repositories.MasterOrderRepository
	shippers repositories.ShipperRepository
	audit    AuditLogService
	uow      repositories.UnitOfWork
	clock    func() time.Time
	events   OrderEventPublisher
	logger   func(context.Context, string, map[string]any)
}

// NewAdminOrderService wires dependencies into a concrete AdminOrderService.
// The audit log and unit of work are mandatory: privileged mutations commit
// together with their audit record or not at all.
func NewAdminOrderService(deps AdminOrderServiceDeps) (AdminOrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("admin order service: order repository is required")
	}
	if deps.Shippers == nil {
		return nil, errors.New("admin order service: shipper repository is required")
	}
	if deps.AuditLog == nil {
		return nil, errors.New("admin order service: audit log service is required")
	}
	if deps.UnitOfWork == nil {
		return nil, errors.New("admin order service: unit of work is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &adminOrderService{
		orders:   deps.Orders,
		shippers: deps.Shippers,
		audit:    deps.AuditLog,
		uow:      deps.UnitOfWork,
		clock: func() time.Time {
			return clock().UTC()
		},
		events: deps.Events,
		logger: logger,
	}, nil
}

func (s *adminOrderService) ForceUpdateStatus(ctx context.Context, cmd ForceStatusCommand) (MasterOrder, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return MasterOrder{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if cmd.Actor.Type != ActorTypeAdmin {
		return MasterOrder{}, fmt.Errorf("%w: force overrides require an admin actor", ErrOrderForbidden)
	}

	subOrderID := strings.TrimSpace(cmd.SubOrderID)
	status := strings.TrimSpace(cmd.Status)
	if subOrderID == "" {
		if !domain.ValidMasterStatus(domain.MasterStatus(status)) {
			return MasterOrder{}, fmt.Errorf("%w: unknown master status %q", ErrOrderInvalidInput, status)
		}
	} else if !domain.ValidPrinterStatus(domain.PrinterStatus(status)) {
		return MasterOrder{}, fmt.Errorf("%w: unknown printer status %q", ErrOrderInvalidInput, status)
	}

	return s.mutateAudited(ctx, orderID, cmd.Actor, func(order *MasterOrder, now time.Time) (*AuditRecord, bool, error) {
		if subOrderID == "" {
			previous := order.MasterStatus
			if previous == domain.MasterStatus(status) {
				return nil, false, nil
			}
			// Forced master status is written as-is. Enum membership is the only
			// guard, the derivation is deliberately bypassed.
			order.MasterStatus = domain.MasterStatus(status)
			return &AuditRecord{
				Action:     domain.AuditActionForceStatus,
				Actor:      cmd.Actor,
				TargetType: auditTargetMasterOrder,
				TargetRef:  order.ID,
				Detail: map[string]any{
					"previous_status": string(previous),
					"new_status":      status,
				},
				Note:       cmd.Note,
				Context:    cmd.Context,
				OccurredAt: now,
			}, true, nil
		}

		sub := order.SubOrderByID(subOrderID)
		if sub == nil {
			return nil, false, fmt.Errorf("%w: sub-order %s", ErrOrderNotFound, subOrderID)
		}
		previous := sub.PrinterStatus
		if previous == domain.PrinterStatus(status) {
			return nil, false, nil
		}
		sub.PrinterStatus = domain.PrinterStatus(status)
		applyPrinterTimestamps(sub, sub.PrinterStatus, now)
		order.Rederive()
		return &AuditRecord{
			Action:     domain.AuditActionForceStatus,
			Actor:      cmd.Actor,
			TargetType: auditTargetSubOrder,
			TargetRef:  sub.ID,
			Detail: map[string]any{
				"order_id":        order.ID,
				"previous_status": string(previous),
				"new_status":      status,
			},
			Note:       cmd.Note,
			Context:    cmd.Context,
			OccurredAt: now,
		}, true, nil
	})
}

func (s *adminOrderService) AssignShipper(ctx context.Context, cmd AssignShipperCommand) (MasterOrder, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	subOrderID := strings.TrimSpace(cmd.SubOrderID)
	shipperID := strings.TrimSpace(cmd.ShipperID)
	if orderID == "" || subOrderID == "" {
		return MasterOrder{}, fmt.Errorf("%w: order id and sub-order id are required", ErrOrderInvalidInput)
	}
	if shipperID == "" {
		return MasterOrder{}, fmt.Errorf("%w: shipper id is required", ErrOrderInvalidInput)
	}
	if cmd.Actor.Type != ActorTypeAdmin {
		return MasterOrder{}, fmt.Errorf("%w: shipper assignment requires an admin actor", ErrOrderForbidden)
	}

	shipper, err := s.shippers.FindByID(ctx, shipperID)
	if err != nil {
		return MasterOrder{}, mapOrderRepositoryError(err)
	}
	if !shipper.Active {
		return MasterOrder{}, fmt.Errorf("%w: shipper %s is inactive", ErrOrderInvalidInput, shipperID)
	}

	return s.mutateAudited(ctx, orderID, cmd.Actor, func(order *MasterOrder, now time.Time) (*AuditRecord, bool, error) {
		sub := order.SubOrderByID(subOrderID)
		if sub == nil {
			return nil, false, fmt.Errorf("%w: sub-order %s", ErrOrderNotFound, subOrderID)
		}
		if sub.PrinterStatus.IsTerminal() {
			return nil, false, fmt.Errorf("%w: sub-order %s is %s", ErrOrderInvalidState, sub.ID, sub.PrinterStatus)
		}

		if sub.ShipperID != nil && *sub.ShipperID == shipperID {
			return nil, false, nil
		}

		record := AuditRecord{
			Action:     domain.AuditActionShipperAssigned,
			Actor:      cmd.Actor,
			TargetType: auditTargetSubOrder,
			TargetRef:  sub.ID,
			Detail: map[string]any{
				"order_id":   order.ID,
				"shipper_id": shipperID,
			},
			Context:    cmd.Context,
			OccurredAt: now,
		}
		if sub.ShipperID != nil {
			// Replacement names both agents so the trail reconstructs handovers.
			record.Action = domain.AuditActionShipperReplaced
			record.Detail["previous_shipper_id"] = *sub.ShipperID
		}

		sub.ShipperID = &shipperID
		return &record, true, nil
	})
}

func (s *adminOrderService) UnassignShipper(ctx context.Context, cmd UnassignShipperCommand) (MasterOrder, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	subOrderID := strings.TrimSpace(cmd.SubOrderID)
	if orderID == "" || subOrderID == "" {
		return MasterOrder{}, fmt.Errorf("%w: order id and sub-order id are required", ErrOrderInvalidInput)
	}
	if cmd.Actor.Type != ActorTypeAdmin {
		return MasterOrder{}, fmt.Errorf("%w: shipper assignment requires an admin actor", ErrOrderForbidden)
	}

	return s.mutateAudited(ctx, orderID, cmd.Actor, func(order *MasterOrder, now time.Time) (*AuditRecord, bool, error) {
		sub := order.SubOrderByID(subOrderID)
		if sub == nil {
			return nil, false, fmt.Errorf("%w: sub-order %s", ErrOrderNotFound, subOrderID)
		}
		if sub.ShipperID == nil {
			// Already unassigned, success without a write or an audit entry.
			return nil, false, nil
		}

		previous := *sub.ShipperID
		sub.ShipperID = nil
		return &AuditRecord{
			Action:     domain.AuditActionShipperUnassigned,
			Actor:      cmd.Actor,
			TargetType: auditTargetSubOrder,
			TargetRef:  sub.ID,
			Detail: map[string]any{
				"order_id":   order.ID,
				"shipper_id": previous,
			},
			Context:    cmd.Context,
			OccurredAt: now,
		}, true, nil
	})
}

// mutateAudited runs the bounded optimistic-concurrency loop for privileged
// mutations. The aggregate write and the audit append share one transaction:
// when the audit record cannot be written the whole mutation rolls back.
func (s *adminOrderService) mutateAudited(
	ctx context.Context,
	orderID string,
	actor Actor,
	apply func(order *MasterOrder, now time.Time) (*AuditRecord, bool, error),
) (MasterOrder, error) {
	var lastErr error
	for attempt := 0; attempt < conflictRetryAttempts; attempt++ {
		order, err := s.orders.FindByID(ctx, orderID)
		if err != nil {
			return MasterOrder{}, mapOrderRepositoryError(err)
		}
		statusBefore := order.MasterStatus

		now := s.clock()
		record, dirty, err := apply(&order, now)
		if err != nil {
			return MasterOrder{}, err
		}
		if !dirty {
			return order, nil
		}

		// A forced sub-order status can drive the rederived master status into a
		// terminal value, which must stamp completedAt/cancelledAt just like the
		// regular transition path.
		applyMasterTimestamps(&order, now)
		order.RecomputeTotals()
		if err := order.CheckInvariants(); err != nil {
			return MasterOrder{}, err
		}
		order.UpdatedAt = now

		var updated MasterOrder
		txErr := s.uow.RunInTx(ctx, func(ctx context.Context) error {
			var err error
			updated, err = s.orders.Update(ctx, order)
			if err != nil {
				return mapOrderRepositoryError(err)
			}
			if record != nil {
				if err := s.audit.Append(ctx, *record); err != nil {
					return fmt.Errorf("order: audit append failed, aborting mutation: %w", err)
				}
			}
			return nil
		})
		if txErr == nil {
			if updated.MasterStatus != statusBefore {
				s.publishStatusChange(ctx, updated, statusBefore, actor, now)
			}
			return updated, nil
		}
		if !errors.Is(txErr, ErrOrderConflict) {
			return MasterOrder{}, txErr
		}
		lastErr = txErr
	}
	return MasterOrder{}, lastErr
}

func (s *adminOrderService) publishStatusChange(ctx context.Context, order MasterOrder, previous MasterStatus, actor Actor, now time.Time) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishOrderEvent(ctx, OrderEvent{
		Type:           orderEventStatusChanged,
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		PreviousStatus: string(previous),
		CurrentStatus:  string(order.MasterStatus),
		ActorID:        actor.ID,
		OccurredAt:     now,
	}); err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"type":  orderEventStatusChanged,
			"order": order.ID,
			"error": err.Error(),
		})
	}
}
