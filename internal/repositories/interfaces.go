package repositories

import (
	"context"
	"time"

	domain "github.com/printmesh/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Orders() MasterOrderRepository
	Partners() PartnerRepository
	Shippers() ShipperRepository
	AuditLogs() AuditLogRepository
	Counters() CounterRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// MasterOrderRepository persists whole master-order aggregates.
//
// The aggregate (header plus every embedded sub-order) is the unit of
// concurrency control: Update must fail with a conflict-categorised
// RepositoryError when the stored Version differs from the Version carried on
// the supplied aggregate, and must bump Version by one on success. Partial
// writes of individual sub-orders are not offered by design.
type MasterOrderRepository interface {
	Insert(ctx context.Context, order domain.MasterOrder) error
	Update(ctx context.Context, order domain.MasterOrder) (domain.MasterOrder, error)
	FindByID(ctx context.Context, orderID string) (domain.MasterOrder, error)
	FindBySubOrderID(ctx context.Context, subOrderID string) (domain.MasterOrder, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.MasterOrder], error)
}

// PartnerRepository stores production partner profiles and commission settings.
type PartnerRepository interface {
	Insert(ctx context.Context, partner domain.Partner) error
	Update(ctx context.Context, partner domain.Partner) error
	FindByID(ctx context.Context, partnerID string) (domain.Partner, error)
}

// ShipperRepository looks up delivery agents for assignment checks.
type ShipperRepository interface {
	FindByID(ctx context.Context, shipperID string) (domain.Shipper, error)
}

// AuditLogRepository persists immutable audit trail entries. Append failures
// must surface to the caller: privileged mutations roll back when their audit
// record cannot be written.
type AuditLogRepository interface {
	Append(ctx context.Context, entry domain.AuditEntry) error
	List(ctx context.Context, filter AuditLogFilter) (domain.CursorPage[domain.AuditEntry], error)
}

// CounterRepository provides transaction-safe sequence numbers.
type CounterRepository interface {
	Next(ctx context.Context, counterID string, step int64) (int64, error)
}

// OrderListFilter narrows master-order listings.
type OrderListFilter struct {
	CustomerID   string
	PartnerID    string
	MasterStatus []string
	DateRange    domain.RangeQuery[time.Time]
	Pagination   domain.Pagination
}

// AuditLogFilter narrows audit trail listings for traceability queries.
type AuditLogFilter struct {
	TargetRef  string
	Actor      string
	Action     string
	DateRange  domain.RangeQuery[time.Time]
	Pagination domain.Pagination
}
