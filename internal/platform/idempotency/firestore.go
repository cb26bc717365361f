package idempotency

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	pfirestore "github.com/printmesh/api/internal/platform/firestore"
)

const idempotencyCollection = "idempotency_keys"

// FirestoreStore implements Store on Firestore. Reservations are made inside a
// transaction so concurrent requests holding the same key observe a single
// winner.
type FirestoreStore struct {
	provider *pfirestore.Provider
}

// NewFirestoreStore constructs a Firestore-backed idempotency store.
func NewFirestoreStore(provider *pfirestore.Provider) (*FirestoreStore, error) {
	if provider == nil {
		return nil, errors.New("idempotency store requires firestore provider")
	}
	return &FirestoreStore{provider: provider}, nil
}

type idempotencyDocument struct {
	Key             string              `firestore:"key"`
	Fingerprint     string              `firestore:"fingerprint"`
	Status          string              `firestore:"status"`
	ResponseStatus  int                 `firestore:"responseStatus"`
	ResponseHeaders map[string][]string `firestore:"responseHeaders"`
	ResponseBody    []byte              `firestore:"responseBody"`
	CreatedAt       time.Time           `firestore:"createdAt"`
	UpdatedAt       time.Time           `firestore:"updatedAt"`
	ExpiresAt       time.Time           `firestore:"expiresAt"`
}

func (d idempotencyDocument) toRecord() Record {
	return Record{
		Key:             d.Key,
		Fingerprint:     d.Fingerprint,
		Status:          Status(d.Status),
		ResponseStatus:  d.ResponseStatus,
		ResponseHeaders: d.ResponseHeaders,
		ResponseBody:    d.ResponseBody,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
		ExpiresAt:       d.ExpiresAt,
	}
}

// Reserve claims the key for the caller or reports the stored outcome.
func (s *FirestoreStore) Reserve(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error) {
	now = now.UTC()
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	client, err := s.provider.Client(ctx)
	if err != nil {
		return Reservation{}, err
	}
	ref := client.Collection(idempotencyCollection).Doc(recordID(key))

	var result Reservation
	err = client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) != codes.NotFound {
				return err
			}
			doc := idempotencyDocument{
				Key:         key,
				Fingerprint: fingerprint,
				Status:      string(StatusPending),
				CreatedAt:   now,
				UpdatedAt:   now,
				ExpiresAt:   now.Add(ttl),
			}
			if err := tx.Set(ref, doc); err != nil {
				return err
			}
			result = Reservation{Outcome: OutcomeNew, Record: doc.toRecord()}
			return nil
		}

		var doc idempotencyDocument
		if err := snap.DataTo(&doc); err != nil {
			return err
		}
		if doc.Fingerprint != fingerprint {
			return ErrFingerprintMismatch
		}

		// Expired records are reclaimed as fresh reservations.
		if !doc.ExpiresAt.IsZero() && !now.Before(doc.ExpiresAt) {
			doc = idempotencyDocument{
				Key:         key,
				Fingerprint: fingerprint,
				Status:      string(StatusPending),
				CreatedAt:   now,
				UpdatedAt:   now,
				ExpiresAt:   now.Add(ttl),
			}
			if err := tx.Set(ref, doc); err != nil {
				return err
			}
			result = Reservation{Outcome: OutcomeNew, Record: doc.toRecord()}
			return nil
		}

		if doc.Status == string(StatusCompleted) {
			result = Reservation{Outcome: OutcomeReplay, Record: doc.toRecord()}
			return nil
		}
		result = Reservation{Outcome: OutcomeInFlight, Record: doc.toRecord()}
		return nil
	})
	return result, err
}

// SaveResponse stores the completed response against the key.
func (s *FirestoreStore) SaveResponse(ctx context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error {
	now = now.UTC()
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	client, err := s.provider.Client(ctx)
	if err != nil {
		return err
	}
	ref := client.Collection(idempotencyCollection).Doc(recordID(key))
	headers := storableHeaders(resp.Headers)
	var body []byte
	if len(resp.Body) > 0 {
		body = append([]byte(nil), resp.Body...)
	}

	return client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		var doc idempotencyDocument
		if err != nil {
			if status.Code(err) != codes.NotFound {
				return err
			}
			doc = idempotencyDocument{Key: key, Fingerprint: fingerprint, CreatedAt: now}
		} else {
			if err := snap.DataTo(&doc); err != nil {
				return err
			}
			if doc.Fingerprint != fingerprint {
				return ErrFingerprintMismatch
			}
			if doc.CreatedAt.IsZero() {
				doc.CreatedAt = now
			}
		}

		doc.Status = string(StatusCompleted)
		doc.ResponseStatus = resp.Status
		doc.ResponseHeaders = headers
		doc.ResponseBody = body
		doc.UpdatedAt = now
		doc.ExpiresAt = now.Add(ttl)
		return tx.Set(ref, doc)
	})
}

// Release drops the reservation so the caller may retry the request.
func (s *FirestoreStore) Release(ctx context.Context, key string) error {
	client, err := s.provider.Client(ctx)
	if err != nil {
		return err
	}
	_, err = client.Collection(idempotencyCollection).Doc(recordID(key)).Delete(ctx)
	if status.Code(err) == codes.NotFound {
		return nil
	}
	return err
}

// CleanupExpired removes stale records up to the provided limit.
func (s *FirestoreStore) CleanupExpired(ctx context.Context, now time.Time, limit int) (int, error) {
	now = now.UTC()
	if limit <= 0 {
		limit = 100
	}

	client, err := s.provider.Client(ctx)
	if err != nil {
		return 0, err
	}
	docs, err := client.Collection(idempotencyCollection).
		Where("expiresAt", "<=", now).
		Limit(limit).
		Documents(ctx).
		GetAll()
	if err != nil {
		return 0, err
	}
	if len(docs) == 0 {
		return 0, nil
	}

	writer := client.BulkWriter(ctx)
	for _, doc := range docs {
		if _, err := writer.Delete(doc.Ref); err != nil {
			writer.End()
			return 0, err
		}
	}
	writer.End()
	return len(docs), nil
}
