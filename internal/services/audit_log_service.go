package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/oklog/ulid/v2"

	domain "github.com/printmesh/api/internal/domain"
	"github.com/printmesh/api/internal/repositories"
)

const (
	auditEntryIDPrefix = "aud_"

	maxAuditNoteLen   = 1000
	maxAuditFieldLen  = 256
	maxAuditDetailLen = 512
)

// ErrAuditInvalidInput signals a malformed audit record.
var ErrAuditInvalidInput = errors.New("audit: invalid input")

// AuditLogServiceDeps bundles collaborators for the audit trail writer.
type AuditLogServiceDeps struct {
	AuditLogs   repositories.AuditLogRepository
	Clock       func() time.Time
	IDGenerator func() string
}

type auditLogService struct {
	logs  repositories.AuditLogRepository
	clock func() time.Time
	newID func() string
}

// NewAuditLogService wires dependencies into a concrete AuditLogService.
func NewAuditLogService(deps AuditLogServiceDeps) (AuditLogService, error) {
	if deps.AuditLogs == nil {
		return nil, errors.New("audit log service: repository is required")
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

	return &auditLogService{
		logs: deps.AuditLogs,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID: idGen,
	}, nil
}

// Append sanitises and persists the record. Errors surface to the caller so
// privileged mutations sharing a transaction with the trail roll back together.
func (s *auditLogService) Append(ctx context.Context, record AuditRecord) error {
	action := strings.TrimSpace(record.Action)
	if action == "" {
		return fmt.Errorf("%w: action is required", ErrAuditInvalidInput)
	}
	actorID := strings.TrimSpace(record.Actor.ID)
	if actorID == "" {
		return fmt.Errorf("%w: actor is required", ErrAuditInvalidInput)
	}
	targetRef := strings.TrimSpace(record.TargetRef)
	if targetRef == "" {
		return fmt.Errorf("%w: target reference is required", ErrAuditInvalidInput)
	}

	occurredAt := record.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = s.clock()
	}

	entry := domain.AuditEntry{
		ID:         auditEntryIDPrefix + s.newID(),
		Action:     sanitizeAuditText(action, maxAuditFieldLen),
		Actor:      sanitizeAuditText(actorID, maxAuditFieldLen),
		ActorType:  string(record.Actor.Type),
		TargetType: sanitizeAuditText(record.TargetType, maxAuditFieldLen),
		TargetRef:  sanitizeAuditText(targetRef, maxAuditFieldLen),
		Detail:     sanitizeAuditDetail(record.Detail),
		Note:       sanitizeAuditText(record.Note, maxAuditNoteLen),
		IPAddress:  sanitizeAuditText(record.Context.IPAddress, maxAuditFieldLen),
		UserAgent:  sanitizeAuditText(record.Context.UserAgent, maxAuditFieldLen),
		CreatedAt:  occurredAt.UTC(),
	}

	return s.logs.Append(ctx, entry)
}

func (s *auditLogService) List(ctx context.Context, filter AuditLogFilter) (domain.CursorPage[AuditEntry], error) {
	return s.logs.List(ctx, filter)
}

// sanitizeAuditText strips control characters and clamps length so the trail
// stays safe to render and index.
func sanitizeAuditText(value string, maxLen int) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}

	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			return -1
		}
		return r
	}, value)

	runes := []rune(cleaned)
	if len(runes) > maxLen {
		return string(runes[:maxLen])
	}
	return cleaned
}

func sanitizeAuditDetail(detail map[string]any) map[string]any {
	if len(detail) == 0 {
		return nil
	}
	out := make(map[string]any, len(detail))
	for key, value := range detail {
		key = sanitizeAuditText(key, maxAuditFieldLen)
		if key == "" {
			continue
		}
		if s, ok := value.(string); ok {
			out[key] = sanitizeAuditText(s, maxAuditDetailLen)
			continue
		}
		out[key] = value
	}
	return out
}
