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

const auditTargetPartner = "partner"

var (
	// ErrPartnerInvalidInput signals the caller provided invalid data.
	ErrPartnerInvalidInput = errors.New("partner: invalid input")
	// ErrPartnerNotFound indicates the partner does not exist.
	ErrPartnerNotFound = errors.New("partner: not found")
)

// PartnerServiceDeps bundles collaborators for partner commission management.
type PartnerServiceDeps struct {
	Partners   repositories.PartnerRepository
	AuditLog   AuditLogService
	UnitOfWork repositories.UnitOfWork
	Clock      func() time.Time
	Logger     func(ctx context.Context, event string, fields map[string]any)
}

type partnerService struct {
	partners repositories.PartnerRepository
	audit    AuditLogService
	uow      repositories.UnitOfWork
	clock    func() time.Time
	logger   func(context.Context, string, map[string]any)
}

// NewPartnerService wires dependencies into a concrete PartnerService.
func NewPartnerService(deps PartnerServiceDeps) (PartnerService, error) {
	if deps.Partners == nil {
		return nil, errors.New("partner service: partner repository is required")
	}
	if deps.AuditLog == nil {
		return nil, errors.New("partner service: audit log service is required")
	}
	if deps.UnitOfWork == nil {
		return nil, errors.New("partner service: unit of work is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &partnerService{
		partners: deps.Partners,
		audit:    deps.AuditLog,
		uow:      deps.UnitOfWork,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

func (s *partnerService) GetPartner(ctx context.Context, partnerID string) (Partner, error) {
	partnerID = strings.TrimSpace(partnerID)
	if partnerID == "" {
		return Partner{}, fmt.Errorf("%w: partner id is required", ErrPartnerInvalidInput)
	}
	partner, err := s.partners.FindByID(ctx, partnerID)
	if err != nil {
		return Partner{}, s.mapRepositoryError(err)
	}
	return partner, nil
}

func (s *partnerService) SetCommissionOverride(ctx context.Context, cmd SetCommissionOverrideCommand) (Partner, error) {
	partnerID := strings.TrimSpace(cmd.PartnerID)
	if partnerID == "" {
		return Partner{}, fmt.Errorf("%w: partner id is required", ErrPartnerInvalidInput)
	}
	if cmd.Actor.Type != ActorTypeAdmin {
		return Partner{}, fmt.Errorf("%w: commission overrides require an admin actor", ErrOrderForbidden)
	}
	if err := domain.ValidateCommissionRate(cmd.Rate); err != nil {
		return Partner{}, fmt.Errorf("%w: %v", ErrPartnerInvalidInput, err)
	}

	now := s.clock()
	if !cmd.ExpiresAt.After(now) {
		return Partner{}, fmt.Errorf("%w: override expiry must be in the future", ErrPartnerInvalidInput)
	}

	partner, err := s.partners.FindByID(ctx, partnerID)
	if err != nil {
		return Partner{}, s.mapRepositoryError(err)
	}

	partner.CommissionOverride = &domain.CommissionOverride{
		Rate:      cmd.Rate,
		ExpiresAt: cmd.ExpiresAt.UTC(),
	}
	partner.UpdatedAt = now

	err = s.uow.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.partners.Update(ctx, partner); err != nil {
			return s.mapRepositoryError(err)
		}
		return s.audit.Append(ctx, AuditRecord{
			Action:     domain.AuditActionOverrideSet,
			Actor:      cmd.Actor,
			TargetType: auditTargetPartner,
			TargetRef:  partner.ID,
			Detail: map[string]any{
				"rate":       cmd.Rate,
				"expires_at": cmd.ExpiresAt.UTC().Format(time.RFC3339),
			},
			Context:    cmd.Context,
			OccurredAt: now,
		})
	})
	if err != nil {
		return Partner{}, err
	}

	return partner, nil
}

func (s *partnerService) ClearCommissionOverride(ctx context.Context, cmd ClearCommissionOverrideCommand) (Partner, error) {
	partnerID := strings.TrimSpace(cmd.PartnerID)
	if partnerID == "" {
		return Partner{}, fmt.Errorf("%w: partner id is required", ErrPartnerInvalidInput)
	}
	if cmd.Actor.Type != ActorTypeAdmin {
		return Partner{}, fmt.Errorf("%w: commission overrides require an admin actor", ErrOrderForbidden)
	}

	partner, err := s.partners.FindByID(ctx, partnerID)
	if err != nil {
		return Partner{}, s.mapRepositoryError(err)
	}
	if partner.CommissionOverride == nil {
		// Nothing attached, success without a write or an audit entry.
		return partner, nil
	}

	now := s.clock()
	cleared := *partner.CommissionOverride
	partner.CommissionOverride = nil
	partner.UpdatedAt = now

	err = s.uow.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.partners.Update(ctx, partner); err != nil {
			return s.mapRepositoryError(err)
		}
		return s.audit.Append(ctx, AuditRecord{
			Action:     domain.AuditActionOverrideCleared,
			Actor:      cmd.Actor,
			TargetType: auditTargetPartner,
			TargetRef:  partner.ID,
			Detail: map[string]any{
				"rate":       cleared.Rate,
				"expires_at": cleared.ExpiresAt.Format(time.RFC3339),
			},
			Context:    cmd.Context,
			OccurredAt: now,
		})
	})
	if err != nil {
		return Partner{}, err
	}

	return partner, nil
}

func (s *partnerService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrPartnerNotFound, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("partner: repository unavailable: %w", err)
		}
	}

	return err
}
