package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/printmesh/api/internal/domain"
	"github.com/printmesh/api/internal/platform/httpx"
	"github.com/printmesh/api/internal/services"
)

// AuditLogHandlers exposes read access to the privileged-mutation trail.
type AuditLogHandlers struct {
	auditLogs services.AuditLogService
}

// NewAuditLogHandlers constructs a new AuditLogHandlers instance.
func NewAuditLogHandlers(auditLogs services.AuditLogService) *AuditLogHandlers {
	return &AuditLogHandlers{auditLogs: auditLogs}
}

// Routes registers the audit log endpoints.
func (h *AuditLogHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/audit-logs", h.listEntries)
}

func (h *AuditLogHandlers) listEntries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	filter := services.AuditLogFilter{
		TargetRef: strings.TrimSpace(query.Get("target_ref")),
		Actor:     strings.TrimSpace(query.Get("actor")),
		Action:    strings.TrimSpace(query.Get("action")),
		Pagination: domain.Pagination{
			PageSize:  defaultOrderPageSize,
			PageToken: strings.TrimSpace(query.Get("page_token")),
		},
	}

	if sizeRaw := strings.TrimSpace(query.Get("page_size")); sizeRaw != "" {
		size, err := strconv.Atoi(sizeRaw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "page_size must be an integer", http.StatusBadRequest))
			return
		}
		if size > 0 {
			filter.Pagination.PageSize = size
		}
	}

	if raw := strings.TrimSpace(query.Get("created_after")); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "created_after must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		filter.DateRange.From = &ts
	}
	if raw := strings.TrimSpace(query.Get("created_before")); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "created_before must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		filter.DateRange.To = &ts
	}

	page, err := h.auditLogs.List(ctx, filter)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	resp := auditListResponse{
		Entries:       make([]auditEntryResponse, 0, len(page.Items)),
		NextPageToken: page.NextPageToken,
	}
	for _, entry := range page.Items {
		resp.Entries = append(resp.Entries, toAuditEntryResponse(entry))
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}
