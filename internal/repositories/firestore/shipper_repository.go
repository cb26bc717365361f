package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/printmesh/api/internal/domain"
	pfirestore "github.com/printmesh/api/internal/platform/firestore"
)

const shippersCollection = "shippers"

// ShipperRepository implements repositories.ShipperRepository.
type ShipperRepository struct {
	provider *pfirestore.Provider
}

// NewShipperRepository constructs a Firestore-backed shipper repository.
func NewShipperRepository(provider *pfirestore.Provider) (*ShipperRepository, error) {
	if provider == nil {
		return nil, errors.New("shipper repository requires firestore provider")
	}
	return &ShipperRepository{provider: provider}, nil
}

func (r *ShipperRepository) FindByID(ctx context.Context, shipperID string) (domain.Shipper, error) {
	shipperID = strings.TrimSpace(shipperID)
	if shipperID == "" {
		return domain.Shipper{}, pfirestore.WrapError("shippers", errors.New("shipper id is required"))
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.Shipper{}, err
	}

	snapshot, err := client.Collection(shippersCollection).Doc(shipperID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return domain.Shipper{}, pfirestore.NotFoundError("shippers.get", shipperID)
	}
	if err != nil {
		return domain.Shipper{}, pfirestore.WrapError("shippers.get", err)
	}

	var doc shipperDocument
	if err := snapshot.DataTo(&doc); err != nil {
		return domain.Shipper{}, fmt.Errorf("firestore: decode shipper %s: %w", shipperID, err)
	}
	return domain.Shipper{
		ID:     snapshot.Ref.ID,
		Name:   doc.Name,
		Phone:  doc.Phone,
		Active: doc.Active,
	}, nil
}
