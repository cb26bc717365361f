package firestore

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"

	pfirestore "github.com/printmesh/api/internal/platform/firestore"
	"github.com/printmesh/api/internal/repositories"
)

// Registry implements repositories.Registry over a shared Firestore provider.
type Registry struct {
	provider *pfirestore.Provider

	orders    *OrderRepository
	partners  *PartnerRepository
	shippers  *ShipperRepository
	auditLogs *AuditLogRepository
	counters  *CounterRepository
}

// NewRegistry wires every repository against the provider.
func NewRegistry(provider *pfirestore.Provider) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("registry requires firestore provider")
	}

	orders, err := NewOrderRepository(provider)
	if err != nil {
		return nil, err
	}
	partners, err := NewPartnerRepository(provider)
	if err != nil {
		return nil, err
	}
	shippers, err := NewShipperRepository(provider)
	if err != nil {
		return nil, err
	}
	auditLogs, err := NewAuditLogRepository(provider)
	if err != nil {
		return nil, err
	}
	counters, err := NewCounterRepository(provider)
	if err != nil {
		return nil, err
	}

	return &Registry{
		provider:  provider,
		orders:    orders,
		partners:  partners,
		shippers:  shippers,
		auditLogs: auditLogs,
		counters:  counters,
	}, nil
}

// Close releases the shared Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	return r.provider.Close(ctx)
}

// Orders returns the master order repository.
func (r *Registry) Orders() repositories.MasterOrderRepository { return r.orders }

// Partners returns the partner repository.
func (r *Registry) Partners() repositories.PartnerRepository { return r.partners }

// Shippers returns the shipper repository.
func (r *Registry) Shippers() repositories.ShipperRepository { return r.shippers }

// AuditLogs returns the audit log repository.
func (r *Registry) AuditLogs() repositories.AuditLogRepository { return r.auditLogs }

// Counters returns the counter repository.
func (r *Registry) Counters() repositories.CounterRepository { return r.counters }

// RunInTx executes fn inside one Firestore transaction. Repository calls made
// with the inner context join the transaction automatically.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.provider.RunTransaction(ctx, func(txCtx context.Context, _ *firestore.Transaction) error {
		return fn(txCtx)
	})
}
