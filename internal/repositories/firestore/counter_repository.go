package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	pfirestore "github.com/printmesh/api/internal/platform/firestore"
)

const countersCollection = "counters"

type counterDocument struct {
	CurrentValue int64     `firestore:"currentValue"`
	UpdatedAt    time.Time `firestore:"updatedAt"`
}

// CounterRepository implements repositories.CounterRepository backed by
// Firestore transactions, used for human-readable order numbers.
type CounterRepository struct {
	provider *pfirestore.Provider
}

// NewCounterRepository constructs a Firestore-backed counter repository.
func NewCounterRepository(provider *pfirestore.Provider) (*CounterRepository, error) {
	if provider == nil {
		return nil, errors.New("counter repository requires firestore provider")
	}
	return &CounterRepository{provider: provider}, nil
}

// Next atomically increments the counter identified by counterID and returns
// the next value. Missing counters start at step.
func (r *CounterRepository) Next(ctx context.Context, counterID string, step int64) (int64, error) {
	id := strings.TrimSpace(counterID)
	if id == "" {
		return 0, pfirestore.WrapError("counters.next", errors.New("counter id is required"))
	}
	if step <= 0 {
		step = 1
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return 0, err
	}
	ref := client.Collection(countersCollection).Doc(id)

	now := time.Now().UTC()
	var nextValue int64

	apply := func(tx *firestore.Transaction) error {
		snapshot, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			doc := counterDocument{CurrentValue: step, UpdatedAt: now}
			if err := tx.Create(ref, doc); err != nil {
				return err
			}
			nextValue = doc.CurrentValue
			return nil
		}
		if err != nil {
			return err
		}

		var doc counterDocument
		if err := snapshot.DataTo(&doc); err != nil {
			return fmt.Errorf("firestore: decode counter %s: %w", id, err)
		}
		doc.CurrentValue += step
		doc.UpdatedAt = now
		if err := tx.Set(ref, doc); err != nil {
			return err
		}
		nextValue = doc.CurrentValue
		return nil
	}

	if tx, ok := pfirestore.TxFromContext(ctx); ok {
		if err := apply(tx); err != nil {
			return 0, pfirestore.WrapError("counters.next", err)
		}
		return nextValue, nil
	}

	err = r.provider.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		return apply(tx)
	})
	if err != nil {
		return 0, pfirestore.WrapError("counters.next", err)
	}
	return nextValue, nil
}
