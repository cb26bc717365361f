package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/printmesh/api/internal/domain"
	pfirestore "github.com/printmesh/api/internal/platform/firestore"
	"github.com/printmesh/api/internal/repositories"
)

const masterOrdersCollection = "master_orders"

// OrderRepository implements repositories.MasterOrderRepository. The whole
// aggregate lives in a single document, so the stored version field is the
// unit of optimistic concurrency.
type OrderRepository struct {
	provider *pfirestore.Provider
}

// NewOrderRepository constructs a Firestore-backed master order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{provider: provider}, nil
}

func (r *OrderRepository) Insert(ctx context.Context, order domain.MasterOrder) error {
	ref, err := r.docRef(ctx, order.ID)
	if err != nil {
		return err
	}

	doc := encodeMasterOrder(order)
	if tx, ok := pfirestore.TxFromContext(ctx); ok {
		return pfirestore.WrapError("master_orders.insert", tx.Create(ref, doc))
	}
	if _, err := ref.Create(ctx, doc); err != nil {
		return pfirestore.WrapError("master_orders.insert", err)
	}
	return nil
}

// Update persists the aggregate when the stored version still matches the one
// carried on the supplied order, bumping it by one. A mismatch surfaces as a
// conflict-categorised error. Outside of an ambient transaction the
// read-compare-write runs in its own transaction.
func (r *OrderRepository) Update(ctx context.Context, order domain.MasterOrder) (domain.MasterOrder, error) {
	ref, err := r.docRef(ctx, order.ID)
	if err != nil {
		return domain.MasterOrder{}, err
	}

	apply := func(tx *firestore.Transaction) error {
		snapshot, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return pfirestore.NotFoundError("master_orders.update", order.ID)
		}
		if err != nil {
			return pfirestore.WrapError("master_orders.update", err)
		}

		var stored masterOrderDocument
		if err := snapshot.DataTo(&stored); err != nil {
			return fmt.Errorf("firestore: decode master order %s: %w", order.ID, err)
		}
		if stored.Version != order.Version {
			return pfirestore.ConflictError("master_orders.update",
				fmt.Errorf("version mismatch on %s: stored %d, submitted %d", order.ID, stored.Version, order.Version))
		}

		next := order
		next.Version++
		return tx.Set(ref, encodeMasterOrder(next))
	}

	if tx, ok := pfirestore.TxFromContext(ctx); ok {
		if err := apply(tx); err != nil {
			return domain.MasterOrder{}, err
		}
	} else {
		err := r.provider.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
			return apply(tx)
		}, pfirestore.WithTxAttempts(1))
		if err != nil {
			return domain.MasterOrder{}, err
		}
	}

	order.Version++
	return order, nil
}

func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.MasterOrder, error) {
	ref, err := r.docRef(ctx, orderID)
	if err != nil {
		return domain.MasterOrder{}, err
	}

	var snapshot *firestore.DocumentSnapshot
	if tx, ok := pfirestore.TxFromContext(ctx); ok {
		snapshot, err = tx.Get(ref)
	} else {
		snapshot, err = ref.Get(ctx)
	}
	if status.Code(err) == codes.NotFound {
		return domain.MasterOrder{}, pfirestore.NotFoundError("master_orders.get", orderID)
	}
	if err != nil {
		return domain.MasterOrder{}, pfirestore.WrapError("master_orders.get", err)
	}

	var doc masterOrderDocument
	if err := snapshot.DataTo(&doc); err != nil {
		return domain.MasterOrder{}, fmt.Errorf("firestore: decode master order %s: %w", orderID, err)
	}
	return decodeMasterOrder(snapshot.Ref.ID, doc), nil
}

func (r *OrderRepository) FindBySubOrderID(ctx context.Context, subOrderID string) (domain.MasterOrder, error) {
	subOrderID = strings.TrimSpace(subOrderID)
	if subOrderID == "" {
		return domain.MasterOrder{}, pfirestore.NotFoundError("master_orders.find_by_sub_order", subOrderID)
	}

	coll, err := r.collection(ctx)
	if err != nil {
		return domain.MasterOrder{}, err
	}

	iter := coll.Where("subOrderIds", "array-contains", subOrderID).Limit(1).Documents(ctx)
	defer iter.Stop()

	snapshot, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return domain.MasterOrder{}, pfirestore.NotFoundError("master_orders.find_by_sub_order", subOrderID)
	}
	if err != nil {
		return domain.MasterOrder{}, pfirestore.WrapError("master_orders.find_by_sub_order", err)
	}

	var doc masterOrderDocument
	if err := snapshot.DataTo(&doc); err != nil {
		return domain.MasterOrder{}, fmt.Errorf("firestore: decode master order %s: %w", snapshot.Ref.ID, err)
	}
	return decodeMasterOrder(snapshot.Ref.ID, doc), nil
}

func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.MasterOrder], error) {
	coll, err := r.collection(ctx)
	if err != nil {
		return domain.CursorPage[domain.MasterOrder]{}, err
	}

	query := coll.Query
	if customer := strings.TrimSpace(filter.CustomerID); customer != "" {
		query = query.Where("customerId", "==", customer)
	}
	if partner := strings.TrimSpace(filter.PartnerID); partner != "" {
		query = query.Where("partnerIds", "array-contains", partner)
	}
	if len(filter.MasterStatus) > 0 {
		query = query.Where("masterStatus", "in", filter.MasterStatus)
	}
	if filter.DateRange.From != nil {
		query = query.Where("createdAt", ">=", *filter.DateRange.From)
	}
	if filter.DateRange.To != nil {
		query = query.Where("createdAt", "<=", *filter.DateRange.To)
	}

	query = query.
		OrderBy("createdAt", firestore.Desc).
		OrderBy(firestore.DocumentID, firestore.Desc)

	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		cursor, err := decodePageCursor(token)
		if err != nil {
			return domain.CursorPage[domain.MasterOrder]{}, pfirestore.WrapError("master_orders.list", err)
		}
		query = query.StartAfter(cursor.createdAt, cursor.id)
	}

	pageSize := clampPageSize(filter.Pagination)
	iter := query.Limit(pageSize + 1).Documents(ctx)
	defer iter.Stop()

	var page domain.CursorPage[domain.MasterOrder]
	for {
		snapshot, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return domain.CursorPage[domain.MasterOrder]{}, pfirestore.WrapError("master_orders.list", err)
		}

		var doc masterOrderDocument
		if err := snapshot.DataTo(&doc); err != nil {
			return domain.CursorPage[domain.MasterOrder]{}, fmt.Errorf("firestore: decode master order %s: %w", snapshot.Ref.ID, err)
		}
		page.Items = append(page.Items, decodeMasterOrder(snapshot.Ref.ID, doc))
	}

	if len(page.Items) > pageSize {
		page.Items = page.Items[:pageSize]
		last := page.Items[len(page.Items)-1]
		page.NextPageToken = encodePageCursor(pageCursor{createdAt: last.CreatedAt, id: last.ID})
	}
	return page, nil
}

func (r *OrderRepository) collection(ctx context.Context) (*firestore.CollectionRef, error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(masterOrdersCollection), nil
}

func (r *OrderRepository) docRef(ctx context.Context, orderID string) (*firestore.DocumentRef, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, pfirestore.WrapError("master_orders", errors.New("order id is required"))
	}
	coll, err := r.collection(ctx)
	if err != nil {
		return nil, err
	}
	return coll.Doc(orderID), nil
}
