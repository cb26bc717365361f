package auth

import (
	"net/http"

	"github.com/printmesh/api/internal/platform/httpx"
)

// Middleware extracts the gateway-asserted principal and stores it on the
// request context. Requests without an identity pass through anonymously,
// route-level guards decide what they may reach.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if principal, ok := PrincipalFromHeaders(r.Header); ok {
				r = r.WithContext(WithPrincipal(r.Context(), principal))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuthenticated rejects requests without a principal.
func RequireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := PrincipalFromContext(r.Context()); !ok {
			httpx.WriteError(r.Context(), w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects requests whose principal lacks admin authority.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := PrincipalFromContext(r.Context())
		if !ok {
			httpx.WriteError(r.Context(), w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
			return
		}
		if !principal.IsAdmin() {
			httpx.WriteError(r.Context(), w, httpx.NewError("forbidden", "admin authority required", http.StatusForbidden))
			return
		}
		next.ServeHTTP(w, r)
	})
}
