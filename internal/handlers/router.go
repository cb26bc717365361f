package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/printmesh/api/internal/platform/auth"
	"github.com/printmesh/api/internal/platform/httpx"
	"github.com/printmesh/api/internal/platform/observability"
)

// RouterDeps bundles the handler groups mounted on the API router.
type RouterDeps struct {
	Logger    *zap.Logger
	ProjectID string

	// Idempotency guards the admin mutation routes against accidental
	// replays. Optional, requests pass through unguarded when nil.
	Idempotency func(http.Handler) http.Handler

	Health      *HealthHandlers
	Orders      *OrderHandlers
	AdminOrders *AdminOrderHandlers
	Partners    *PartnerHandlers
	AuditLogs   *AuditLogHandlers
}

// NewRouter assembles the chi router with the full middleware stack and all
// route groups. Admin surfaces sit behind RequireAdmin, the order surface
// behind RequireAuthenticated.
func NewRouter(deps RouterDeps) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(observability.InjectLoggerMiddleware(deps.Logger))
	r.Use(observability.TraceMiddleware(deps.ProjectID))
	r.Use(observability.OriginMiddleware())
	r.Use(auth.Middleware())
	r.Use(observability.RequestLoggerMiddleware())
	r.Use(observability.RecoveryMiddleware(deps.Logger))

	if deps.Health != nil {
		deps.Health.Routes(r)
	}

	r.Route("/v1", func(v1 chi.Router) {
		v1.Group(func(private chi.Router) {
			private.Use(auth.RequireAuthenticated)
			if deps.Orders != nil {
				deps.Orders.Routes(private)
			}
			if deps.Partners != nil {
				deps.Partners.Routes(private)
			}
		})

		v1.Route("/admin", func(admin chi.Router) {
			admin.Use(auth.RequireAdmin)
			if deps.Idempotency != nil {
				admin.Use(deps.Idempotency)
			}
			if deps.AdminOrders != nil {
				deps.AdminOrders.Routes(admin)
			}
			if deps.Partners != nil {
				deps.Partners.AdminRoutes(admin)
			}
			if deps.AuditLogs != nil {
				deps.AuditLogs.Routes(admin)
			}
		})
	})

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("not_found", "resource not found", http.StatusNotFound))
	})

	return r
}
