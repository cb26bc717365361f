package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	domain "github.com/printmesh/api/internal/domain"
	"github.com/printmesh/api/internal/repositories"
)

// stubRepoError implements repositories.RepositoryError for test wiring.
type stubRepoError struct {
	msg         string
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e stubRepoError) Error() string       { return e.msg }
func (e stubRepoError) IsNotFound() bool    { return e.notFound }
func (e stubRepoError) IsConflict() bool    { return e.conflict }
func (e stubRepoError) IsUnavailable() bool { return e.unavailable }

func notFoundErr(ref string) error {
	return stubRepoError{msg: fmt.Sprintf("%s not found", ref), notFound: true}
}

func conflictErr(ref string) error {
	return stubRepoError{msg: fmt.Sprintf("%s version conflict", ref), conflict: true}
}

// stubOrderRepo keeps aggregates in memory and enforces the version contract
// the way the production repository does.
type stubOrderRepo struct {
	mu     sync.Mutex
	orders map[string]domain.MasterOrder

	// failUpdates injects N version conflicts before updates succeed.
	failUpdates int
	updateCalls int
}

func newStubOrderRepo(orders ...domain.MasterOrder) *stubOrderRepo {
	repo := &stubOrderRepo{orders: make(map[string]domain.MasterOrder)}
	for _, o := range orders {
		repo.orders[o.ID] = o
	}
	return repo
}

func (r *stubOrderRepo) Insert(_ context.Context, order domain.MasterOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[order.ID]; ok {
		return conflictErr(order.ID)
	}
	r.orders[order.ID] = order
	return nil
}

func (r *stubOrderRepo) Update(_ context.Context, order domain.MasterOrder) (domain.MasterOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updateCalls++
	if r.failUpdates > 0 {
		r.failUpdates--
		return domain.MasterOrder{}, conflictErr(order.ID)
	}
	stored, ok := r.orders[order.ID]
	if !ok {
		return domain.MasterOrder{}, notFoundErr(order.ID)
	}
	if stored.Version != order.Version {
		return domain.MasterOrder{}, conflictErr(order.ID)
	}
	order.Version++
	r.orders[order.ID] = order
	return order, nil
}

func (r *stubOrderRepo) FindByID(_ context.Context, orderID string) (domain.MasterOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[orderID]
	if !ok {
		return domain.MasterOrder{}, notFoundErr(orderID)
	}
	return order, nil
}

func (r *stubOrderRepo) FindBySubOrderID(_ context.Context, subOrderID string) (domain.MasterOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, order := range r.orders {
		for _, sub := range order.SubOrders {
			if sub.ID == subOrderID {
				return order, nil
			}
		}
	}
	return domain.MasterOrder{}, notFoundErr(subOrderID)
}

func (r *stubOrderRepo) List(_ context.Context, _ repositories.OrderListFilter) (domain.CursorPage[domain.MasterOrder], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	page := domain.CursorPage[domain.MasterOrder]{}
	for _, order := range r.orders {
		page.Items = append(page.Items, order)
	}
	return page, nil
}

type stubPartnerRepo struct {
	mu       sync.Mutex
	partners map[string]domain.Partner
	updated  []domain.Partner
}

func newStubPartnerRepo(partners ...domain.Partner) *stubPartnerRepo {
	repo := &stubPartnerRepo{partners: make(map[string]domain.Partner)}
	for _, p := range partners {
		repo.partners[p.ID] = p
	}
	return repo
}

func (r *stubPartnerRepo) Insert(_ context.Context, partner domain.Partner) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.partners[partner.ID] = partner
	return nil
}

func (r *stubPartnerRepo) Update(_ context.Context, partner domain.Partner) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.partners[partner.ID]; !ok {
		return notFoundErr(partner.ID)
	}
	r.partners[partner.ID] = partner
	r.updated = append(r.updated, partner)
	return nil
}

func (r *stubPartnerRepo) FindByID(_ context.Context, partnerID string) (domain.Partner, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	partner, ok := r.partners[partnerID]
	if !ok {
		return domain.Partner{}, notFoundErr(partnerID)
	}
	return partner, nil
}

type stubShipperRepo struct {
	shippers map[string]domain.Shipper
}

func newStubShipperRepo(shippers ...domain.Shipper) *stubShipperRepo {
	repo := &stubShipperRepo{shippers: make(map[string]domain.Shipper)}
	for _, s := range shippers {
		repo.shippers[s.ID] = s
	}
	return repo
}

func (r *stubShipperRepo) FindByID(_ context.Context, shipperID string) (domain.Shipper, error) {
	shipper, ok := r.shippers[shipperID]
	if !ok {
		return domain.Shipper{}, notFoundErr(shipperID)
	}
	return shipper, nil
}

type stubAuditRepo struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
	failErr error
}

func (r *stubAuditRepo) Append(_ context.Context, entry domain.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failErr != nil {
		return r.failErr
	}
	r.entries = append(r.entries, entry)
	return nil
}

func (r *stubAuditRepo) List(_ context.Context, _ repositories.AuditLogFilter) (domain.CursorPage[domain.AuditEntry], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return domain.CursorPage[domain.AuditEntry]{Items: append([]domain.AuditEntry(nil), r.entries...)}, nil
}

// stubAuditService records AuditRecord inputs handed to the privileged path.
type stubAuditService struct {
	mu      sync.Mutex
	records []AuditRecord
	failErr error
}

func (s *stubAuditService) Append(_ context.Context, record AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	s.records = append(s.records, record)
	return nil
}

func (s *stubAuditService) List(_ context.Context, _ repositories.AuditLogFilter) (domain.CursorPage[domain.AuditEntry], error) {
	return domain.CursorPage[domain.AuditEntry]{}, nil
}

type stubCounterRepo struct {
	mu   sync.Mutex
	next int64
}

func (r *stubCounterRepo) Next(_ context.Context, _ string, step int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next += step
	return r.next, nil
}

type stubUnitOfWork struct{}

func (stubUnitOfWork) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type stubPublisher struct {
	mu     sync.Mutex
	events []OrderEvent
	err    error
}

func (p *stubPublisher) PublishOrderEvent(_ context.Context, event OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *stubPublisher) byType(eventType string) []OrderEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []OrderEvent
	for _, e := range p.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func sequentialIDs(prefixless ...string) func() string {
	i := 0
	return func() string {
		if i < len(prefixless) {
			id := prefixless[i]
			i++
			return id
		}
		i++
		return fmt.Sprintf("generated-%d", i)
	}
}
