package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/printmesh/api/internal/domain"
	"github.com/printmesh/api/internal/repositories"
)

const (
	orderEventCreated       = "order.created"
	orderEventStatusChanged = "order.status.changed"
	orderEventPaymentMarked = "order.payment.marked"

	masterOrderIDPrefix = "mo_"
	subOrderIDPrefix    = "so_"

	// Bounded read-modify-write retries on optimistic-concurrency conflicts.
	// Each attempt re-reads the aggregate; exhaustion surfaces ErrOrderConflict.
	conflictRetryAttempts = 3
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the master order or sub-order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderInvalidState indicates an illegal lifecycle transition was attempted.
	ErrOrderInvalidState = errors.New("order: invalid status transition")
	// ErrOrderConflict indicates optimistic-concurrency conflicts or duplicates.
	ErrOrderConflict = errors.New("order: conflict")
	// ErrOrderForbidden indicates the actor lacks authority over the target.
	ErrOrderForbidden = errors.New("order: forbidden")
)

var printerStateTransitions = map[domain.PrinterStatus][]domain.PrinterStatus{
	domain.PrinterStatusPending:      {domain.PrinterStatusAccepted, domain.PrinterStatusCancelled},
	domain.PrinterStatusAccepted:     {domain.PrinterStatusInProduction, domain.PrinterStatusCancelled},
	domain.PrinterStatusInProduction: {domain.PrinterStatusShipped, domain.PrinterStatusCancelled},
	domain.PrinterStatusShipped:      {domain.PrinterStatusCompleted},
}

var artworkStateTransitions = map[domain.ArtworkStatus][]domain.ArtworkStatus{
	domain.ArtworkStatusPendingUpload:   {domain.ArtworkStatusPendingApproval},
	domain.ArtworkStatusPendingApproval: {domain.ArtworkStatusApproved, domain.ArtworkStatusRejected},
	domain.ArtworkStatusRejected:        {domain.ArtworkStatusPendingUpload},
}

// OrderEventPublisher publishes order domain events for downstream consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

// OrderEvent captures metadata for emitted order domain events.
type OrderEvent struct {
	Type           string
	OrderID        string
	OrderNumber    string
	SubOrderID     string
	PreviousStatus string
	CurrentStatus  string
	ActorID        string
	OccurredAt     time.Time
}

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders      repositories.MasterOrderRepository
	Partners    repositories.PartnerRepository
	Counters    repositories.CounterRepository
	Clock       func() time.Time
	IDGenerator func() string
	Events      OrderEventPublisher
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders   repositories.MasterOrderRepository
	partners repositories.PartnerRepository
	counters repositories.CounterRepository
	clock    func() time.Time
	newID    func() string
	events   OrderEventPublisher
	logger   func(context.Context, string, map[string]any)
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Partners == nil {
		return nil, errors.New("order service: partner repository is required")
	}
	if deps.Counters == nil {
		return nil, errors.New("order service: counter repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders:   deps.Orders,
		partners: deps.Partners,
		counters: deps.Counters,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		events: deps.Events,
		logger: logger,
	}, nil
}

func (s *orderService) PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (MasterOrder, error) {
	customerID := strings.TrimSpace(cmd.CustomerID)
	if customerID == "" {
		return MasterOrder{}, fmt.Errorf("%w: customer id is required", ErrOrderInvalidInput)
	}
	currency := strings.ToUpper(strings.TrimSpace(cmd.Currency))
	if currency == "" {
		return MasterOrder{}, fmt.Errorf("%w: currency is required", ErrOrderInvalidInput)
	}
	if len(cmd.Lines) == 0 {
		return MasterOrder{}, fmt.Errorf("%w: at least one partner line is required", ErrOrderInvalidInput)
	}

	now := s.now()

	order := MasterOrder{
		ID:              masterOrderIDPrefix + s.newID(),
		CustomerID:      customerID,
		Currency:        currency,
		ShippingAddress: cloneAddress(cmd.ShippingAddress),
		PaymentStatus:   domain.PaymentStatusUnpaid,
		SubOrders:       make([]domain.SubOrder, 0, len(cmd.Lines)),
		CreatedAt:       now,
		UpdatedAt:       now,
		Version:         1,
	}

	seen := make(map[string]bool, len(cmd.Lines))
	for _, line := range cmd.Lines {
		partnerID := strings.TrimSpace(line.PartnerID)
		if partnerID == "" {
			return MasterOrder{}, fmt.Errorf("%w: partner id is required on every line", ErrOrderInvalidInput)
		}
		if seen[partnerID] {
			return MasterOrder{}, fmt.Errorf("%w: duplicate partner %s", ErrOrderInvalidInput, partnerID)
		}
		seen[partnerID] = true
		if len(line.Items) == 0 {
			return MasterOrder{}, fmt.Errorf("%w: partner %s line has no items", ErrOrderInvalidInput, partnerID)
		}
		for _, item := range line.Items {
			if item.Quantity <= 0 {
				return MasterOrder{}, fmt.Errorf("%w: item %s quantity must be positive", ErrOrderInvalidInput, item.ProductRef)
			}
			if item.UnitPrice < 0 {
				return MasterOrder{}, fmt.Errorf("%w: item %s unit price must not be negative", ErrOrderInvalidInput, item.ProductRef)
			}
		}

		partner, err := s.partners.FindByID(ctx, partnerID)
		if err != nil {
			return MasterOrder{}, s.mapRepositoryError(err)
		}
		if !partner.Active {
			return MasterOrder{}, fmt.Errorf("%w: partner %s is inactive", ErrOrderInvalidInput, partnerID)
		}

		order.SubOrders = append(order.SubOrders, domain.SubOrder{
			ID:                    subOrderIDPrefix + s.newID(),
			PartnerID:             partnerID,
			Items:                 slices.Clone(line.Items),
			AppliedCommissionRate: domain.ResolveCommissionRate(partner, now),
			PrinterStatus:         domain.PrinterStatusPending,
			ArtworkStatus:         domain.ArtworkStatusPendingUpload,
		})
	}

	order.RecomputeTotals()
	order.Rederive()
	if err := order.CheckInvariants(); err != nil {
		return MasterOrder{}, err
	}

	number, err := s.generateOrderNumber(ctx, now)
	if err != nil {
		return MasterOrder{}, err
	}
	order.OrderNumber = number

	if err := s.orders.Insert(ctx, order); err != nil {
		return MasterOrder{}, s.mapRepositoryError(err)
	}

	s.publishEvent(ctx, OrderEvent{
		Type:          orderEventCreated,
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		CurrentStatus: string(order.MasterStatus),
		ActorID:       cmd.Actor.ID,
		OccurredAt:    now,
	})

	return order, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID string) (MasterOrder, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return MasterOrder{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return MasterOrder{}, s.mapRepositoryError(err)
	}
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[MasterOrder], error) {
	page, err := s.orders.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[MasterOrder]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

func (s *orderService) ApplyPartnerTransition(ctx context.Context, cmd PartnerTransitionCommand) (MasterOrder, error) {
	subOrderID := strings.TrimSpace(cmd.SubOrderID)
	if subOrderID == "" {
		return MasterOrder{}, fmt.Errorf("%w: sub-order id is required", ErrOrderInvalidInput)
	}
	target := cmd.TargetStatus
	if !domain.ValidPrinterStatus(target) {
		return MasterOrder{}, fmt.Errorf("%w: unknown printer status %q", ErrOrderInvalidInput, target)
	}

	return s.mutateBySubOrder(ctx, subOrderID, func(order *MasterOrder, sub *domain.SubOrder, now time.Time) (bool, error) {
		if err := requireSubOrderAuthority(cmd.Actor, sub); err != nil {
			return false, err
		}
		if sub.PrinterStatus == target {
			// Idempotent re-entry: not an error, nothing to persist.
			return false, nil
		}
		if order.MasterStatus.IsTerminal() {
			// The master derives Completed once every sub-order has shipped.
			// Confirming delivery afterwards is still legal bookkeeping: it
			// cannot change the derived master status.
			deliveryConfirm := order.MasterStatus == domain.MasterStatusCompleted &&
				sub.PrinterStatus == domain.PrinterStatusShipped &&
				target == domain.PrinterStatusCompleted
			if !deliveryConfirm {
				return false, fmt.Errorf("%w: master order %s is %s", ErrOrderInvalidState, order.ID, order.MasterStatus)
			}
		}
		if !canTransitionPrinter(sub.PrinterStatus, target) {
			return false, fmt.Errorf("%w: %s → %s is not a legal partner transition", ErrOrderInvalidState, sub.PrinterStatus, target)
		}
		if target == domain.PrinterStatusInProduction && sub.ArtworkStatus != domain.ArtworkStatusApproved {
			return false, fmt.Errorf("%w: production requires approved artwork, artwork is %s", ErrOrderInvalidState, sub.ArtworkStatus)
		}

		sub.PrinterStatus = target
		applyPrinterTimestamps(sub, target, now)
		if notes := strings.TrimSpace(cmd.Notes); notes != "" {
			sub.PartnerNotes = notes
		}
		if tracking := strings.TrimSpace(cmd.TrackingNote); tracking != "" {
			sub.TrackingNote = tracking
		}
		return true, nil
	}, cmd.Actor)
}

func (s *orderService) ApplyArtworkTransition(ctx context.Context, cmd ArtworkTransitionCommand) (MasterOrder, error) {
	subOrderID := strings.TrimSpace(cmd.SubOrderID)
	if subOrderID == "" {
		return MasterOrder{}, fmt.Errorf("%w: sub-order id is required", ErrOrderInvalidInput)
	}
	target := cmd.TargetStatus
	if !domain.ValidArtworkStatus(target) {
		return MasterOrder{}, fmt.Errorf("%w: unknown artwork status %q", ErrOrderInvalidInput, target)
	}

	return s.mutateBySubOrder(ctx, subOrderID, func(order *MasterOrder, sub *domain.SubOrder, now time.Time) (bool, error) {
		if err := requireSubOrderAuthority(cmd.Actor, sub); err != nil {
			return false, err
		}
		if sub.PrinterStatus.IsTerminal() {
			return false, fmt.Errorf("%w: sub-order %s is %s", ErrOrderInvalidState, sub.ID, sub.PrinterStatus)
		}

		if sub.ArtworkStatus == target {
			return false, nil
		}
		if !canTransitionArtwork(sub.ArtworkStatus, target) {
			return false, fmt.Errorf("%w: %s → %s is not a legal artwork transition", ErrOrderInvalidState, sub.ArtworkStatus, target)
		}

		sub.ArtworkStatus = target
		if target == domain.ArtworkStatusRejected && strings.TrimSpace(cmd.Reason) != "" {
			sub.PartnerNotes = strings.TrimSpace(cmd.Reason)
		}
		return true, nil
	}, cmd.Actor)
}

func (s *orderService) MarkPaymentStatus(ctx context.Context, cmd MarkPaymentStatusCommand) (MasterOrder, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return MasterOrder{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if !domain.ValidPaymentStatus(cmd.Status) {
		return MasterOrder{}, fmt.Errorf("%w: unknown payment status %q", ErrOrderInvalidInput, cmd.Status)
	}

	return s.mutateByOrder(ctx, orderID, func(order *MasterOrder, now time.Time) (bool, error) {
		if order.PaymentStatus == cmd.Status {
			return false, nil
		}
		// Terminal orders accept only the refund exception.
		if order.MasterStatus.IsTerminal() && cmd.Status != domain.PaymentStatusRefunded {
			return false, fmt.Errorf("%w: master order %s is %s", ErrOrderInvalidState, order.ID, order.MasterStatus)
		}

		order.PaymentStatus = cmd.Status
		if cmd.Status == domain.PaymentStatusPaid && order.PaidAt == nil {
			order.PaidAt = &now
		}
		return true, nil
	}, cmd.Actor, orderEventPaymentMarked)
}

// mutateBySubOrder runs the bounded optimistic-concurrency loop for mutations
// addressed by sub-order ID. apply returns false when there is nothing to
// persist (idempotent no-ops).
func (s *orderService) mutateBySubOrder(
	ctx context.Context,
	subOrderID string,
	apply func(order *MasterOrder, sub *domain.SubOrder, now time.Time) (bool, error),
	actor Actor,
) (MasterOrder, error) {
	var lastErr error
	for attempt := 0; attempt < conflictRetryAttempts; attempt++ {
		order, err := s.orders.FindBySubOrderID(ctx, subOrderID)
		if err != nil {
			return MasterOrder{}, s.mapRepositoryError(err)
		}
		sub := order.SubOrderByID(subOrderID)
		if sub == nil {
			return MasterOrder{}, fmt.Errorf("%w: sub-order %s", ErrOrderNotFound, subOrderID)
		}

		now := s.now()
		dirty, err := apply(&order, sub, now)
		if err != nil {
			return MasterOrder{}, err
		}
		if !dirty {
			return order, nil
		}

		updated, err := s.finalizeAndPersist(ctx, order, now, actor, orderEventStatusChanged)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, ErrOrderConflict) {
			return MasterOrder{}, err
		}
		lastErr = err
	}
	return MasterOrder{}, lastErr
}

// mutateByOrder is the order-ID addressed variant of the retry loop.
func (s *orderService) mutateByOrder(
	ctx context.Context,
	orderID string,
	apply func(order *MasterOrder, now time.Time) (bool, error),
	actor Actor,
	eventType string,
) (MasterOrder, error) {
	var lastErr error
	for attempt := 0; attempt < conflictRetryAttempts; attempt++ {
		order, err := s.orders.FindByID(ctx, orderID)
		if err != nil {
			return MasterOrder{}, s.mapRepositoryError(err)
		}

		now := s.now()
		dirty, err := apply(&order, now)
		if err != nil {
			return MasterOrder{}, err
		}
		if !dirty {
			return order, nil
		}

		updated, err := s.finalizeAndPersist(ctx, order, now, actor, eventType)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, ErrOrderConflict) {
			return MasterOrder{}, err
		}
		lastErr = err
	}
	return MasterOrder{}, lastErr
}

// finalizeAndPersist recomputes ledger totals, re-derives the master status,
// verifies invariants, and writes the aggregate back under its version marker.
// A status change emits an event after the write committed.
func (s *orderService) finalizeAndPersist(ctx context.Context, order MasterOrder, now time.Time, actor Actor, eventType string) (MasterOrder, error) {
	order.RecomputeTotals()
	prevStatus, statusChanged := order.Rederive()
	if err := order.CheckInvariants(); err != nil {
		s.logger(ctx, "order.invariant.violation", map[string]any{
			"order": order.ID,
			"error": err.Error(),
		})
		return MasterOrder{}, err
	}

	applyMasterTimestamps(&order, now)
	order.UpdatedAt = now

	updated, err := s.orders.Update(ctx, order)
	if err != nil {
		return MasterOrder{}, s.mapRepositoryError(err)
	}

	if statusChanged {
		s.publishEvent(ctx, OrderEvent{
			Type:           orderEventStatusChanged,
			OrderID:        updated.ID,
			OrderNumber:    updated.OrderNumber,
			PreviousStatus: string(prevStatus),
			CurrentStatus:  string(updated.MasterStatus),
			ActorID:        actor.ID,
			OccurredAt:     now,
		})
	} else if eventType != orderEventStatusChanged {
		s.publishEvent(ctx, OrderEvent{
			Type:          eventType,
			OrderID:       updated.ID,
			OrderNumber:   updated.OrderNumber,
			CurrentStatus: string(updated.MasterStatus),
			ActorID:       actor.ID,
			OccurredAt:    now,
		})
	}

	return updated, nil
}

func (s *orderService) mapRepositoryError(err error) error {
	return mapOrderRepositoryError(err)
}

// mapOrderRepositoryError translates categorised persistence failures into the
// order sentinel vocabulary shared by every order-mutating service.
func mapOrderRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("order: repository unavailable: %w", err)
		}
	}

	return err
}

func (s *orderService) generateOrderNumber(ctx context.Context, now time.Time) (string, error) {
	seq, err := s.counters.Next(ctx, "orders", 1)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("PM-%04d-%06d", now.Year(), seq), nil
}

func (s *orderService) now() time.Time {
	return s.clock()
}

func (s *orderService) publishEvent(ctx context.Context, event OrderEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"type":   event.Type,
			"order":  event.OrderID,
			"error":  err.Error(),
			"status": event.CurrentStatus,
		})
	}
}

// requireSubOrderAuthority rejects partner principals acting on another
// partner's sub-order. Admin and service principals pass through.
func requireSubOrderAuthority(actor Actor, sub *domain.SubOrder) error {
	if actor.Type != ActorTypePartner {
		return nil
	}
	if strings.TrimSpace(actor.PartnerID) != sub.PartnerID {
		return fmt.Errorf("%w: partner %s cannot mutate sub-order owned by %s", ErrOrderForbidden, actor.PartnerID, sub.PartnerID)
	}
	return nil
}

// applyPrinterTimestamps stamps shipped/completed exactly once, on first entry.
func applyPrinterTimestamps(sub *domain.SubOrder, status domain.PrinterStatus, now time.Time) {
	switch status {
	case domain.PrinterStatusShipped:
		if sub.ShippedAt == nil {
			sub.ShippedAt = &now
		}
	case domain.PrinterStatusCompleted:
		if sub.CompletedAt == nil {
			sub.CompletedAt = &now
		}
	}
}

func applyMasterTimestamps(order *MasterOrder, now time.Time) {
	switch order.MasterStatus {
	case domain.MasterStatusCompleted:
		if order.CompletedAt == nil {
			order.CompletedAt = &now
		}
	case domain.MasterStatusCancelled:
		if order.CancelledAt == nil {
			order.CancelledAt = &now
		}
	}
}

func cloneAddress(addr *Address) *Address {
	if addr == nil {
		return nil
	}
	cloned := *addr
	return &cloned
}

func canTransitionPrinter(current, target domain.PrinterStatus) bool {
	if current == target {
		return true
	}
	next, ok := printerStateTransitions[current]
	if !ok {
		return false
	}
	return slices.Contains(next, target)
}

func canTransitionArtwork(current, target domain.ArtworkStatus) bool {
	if current == target {
		return true
	}
	next, ok := artworkStateTransitions[current]
	if !ok {
		return false
	}
	return slices.Contains(next, target)
}
