package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/printmesh/api/internal/domain"
	pfirestore "github.com/printmesh/api/internal/platform/firestore"
)

const partnersCollection = "partners"

// PartnerRepository implements repositories.PartnerRepository.
type PartnerRepository struct {
	provider *pfirestore.Provider
}

// NewPartnerRepository constructs a Firestore-backed partner repository.
func NewPartnerRepository(provider *pfirestore.Provider) (*PartnerRepository, error) {
	if provider == nil {
		return nil, errors.New("partner repository requires firestore provider")
	}
	return &PartnerRepository{provider: provider}, nil
}

func (r *PartnerRepository) Insert(ctx context.Context, partner domain.Partner) error {
	ref, err := r.docRef(ctx, partner.ID)
	if err != nil {
		return err
	}
	doc := encodePartner(partner)
	if tx, ok := pfirestore.TxFromContext(ctx); ok {
		return pfirestore.WrapError("partners.insert", tx.Create(ref, doc))
	}
	if _, err := ref.Create(ctx, doc); err != nil {
		return pfirestore.WrapError("partners.insert", err)
	}
	return nil
}

func (r *PartnerRepository) Update(ctx context.Context, partner domain.Partner) error {
	ref, err := r.docRef(ctx, partner.ID)
	if err != nil {
		return err
	}
	doc := encodePartner(partner)
	if tx, ok := pfirestore.TxFromContext(ctx); ok {
		return pfirestore.WrapError("partners.update", tx.Set(ref, doc))
	}
	if _, err := ref.Set(ctx, doc); err != nil {
		return pfirestore.WrapError("partners.update", err)
	}
	return nil
}

func (r *PartnerRepository) FindByID(ctx context.Context, partnerID string) (domain.Partner, error) {
	ref, err := r.docRef(ctx, partnerID)
	if err != nil {
		return domain.Partner{}, err
	}

	var snapshot *firestore.DocumentSnapshot
	if tx, ok := pfirestore.TxFromContext(ctx); ok {
		snapshot, err = tx.Get(ref)
	} else {
		snapshot, err = ref.Get(ctx)
	}
	if status.Code(err) == codes.NotFound {
		return domain.Partner{}, pfirestore.NotFoundError("partners.get", partnerID)
	}
	if err != nil {
		return domain.Partner{}, pfirestore.WrapError("partners.get", err)
	}

	var doc partnerDocument
	if err := snapshot.DataTo(&doc); err != nil {
		return domain.Partner{}, fmt.Errorf("firestore: decode partner %s: %w", partnerID, err)
	}
	return decodePartner(snapshot.Ref.ID, doc), nil
}

func (r *PartnerRepository) docRef(ctx context.Context, partnerID string) (*firestore.DocumentRef, error) {
	partnerID = strings.TrimSpace(partnerID)
	if partnerID == "" {
		return nil, pfirestore.WrapError("partners", errors.New("partner id is required"))
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(partnersCollection).Doc(partnerID), nil
}
