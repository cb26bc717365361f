package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	domain "github.com/printmesh/api/internal/domain"
	pfirestore "github.com/printmesh/api/internal/platform/firestore"
	"github.com/printmesh/api/internal/repositories"
)

const auditLogsCollection = "audit_logs"

// AuditLogRepository implements repositories.AuditLogRepository. Entries are
// created, never updated: Create fails on ID collisions so the trail stays
// append-only.
type AuditLogRepository struct {
	provider *pfirestore.Provider
}

// NewAuditLogRepository constructs a Firestore-backed audit log repository.
func NewAuditLogRepository(provider *pfirestore.Provider) (*AuditLogRepository, error) {
	if provider == nil {
		return nil, errors.New("audit log repository requires firestore provider")
	}
	return &AuditLogRepository{provider: provider}, nil
}

func (r *AuditLogRepository) Append(ctx context.Context, entry domain.AuditEntry) error {
	id := strings.TrimSpace(entry.ID)
	if id == "" {
		return pfirestore.WrapError("audit_logs.append", errors.New("entry id is required"))
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}
	ref := client.Collection(auditLogsCollection).Doc(id)
	doc := encodeAuditEntry(entry)

	if tx, ok := pfirestore.TxFromContext(ctx); ok {
		return pfirestore.WrapError("audit_logs.append", tx.Create(ref, doc))
	}
	if _, err := ref.Create(ctx, doc); err != nil {
		return pfirestore.WrapError("audit_logs.append", err)
	}
	return nil
}

func (r *AuditLogRepository) List(ctx context.Context, filter repositories.AuditLogFilter) (domain.CursorPage[domain.AuditEntry], error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.CursorPage[domain.AuditEntry]{}, err
	}

	query := client.Collection(auditLogsCollection).Query
	if target := strings.TrimSpace(filter.TargetRef); target != "" {
		query = query.Where("targetRef", "==", target)
	}
	if actor := strings.TrimSpace(filter.Actor); actor != "" {
		query = query.Where("actor", "==", actor)
	}
	if action := strings.TrimSpace(filter.Action); action != "" {
		query = query.Where("action", "==", action)
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
			return domain.CursorPage[domain.AuditEntry]{}, pfirestore.WrapError("audit_logs.list", err)
		}
		query = query.StartAfter(cursor.createdAt, cursor.id)
	}

	pageSize := clampPageSize(filter.Pagination)
	iter := query.Limit(pageSize + 1).Documents(ctx)
	defer iter.Stop()

	var page domain.CursorPage[domain.AuditEntry]
	for {
		snapshot, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return domain.CursorPage[domain.AuditEntry]{}, pfirestore.WrapError("audit_logs.list", err)
		}

		var doc auditEntryDocument
		if err := snapshot.DataTo(&doc); err != nil {
			return domain.CursorPage[domain.AuditEntry]{}, fmt.Errorf("firestore: decode audit entry %s: %w", snapshot.Ref.ID, err)
		}
		page.Items = append(page.Items, decodeAuditEntry(snapshot.Ref.ID, doc))
	}

	if len(page.Items) > pageSize {
		page.Items = page.Items[:pageSize]
		last := page.Items[len(page.Items)-1]
		page.NextPageToken = encodePageCursor(pageCursor{createdAt: last.CreatedAt, id: last.ID})
	}
	return page, nil
}
