package auth

import (
	"context"
	"net/http"
	"strings"
)

// Headers populated by the API gateway after it verifies the caller's token.
// This service trusts them blindly and must never be exposed without the
// gateway in front.
const (
	HeaderActorID   = "X-Actor-Id"
	HeaderActorType = "X-Actor-Type"
	HeaderPartnerID = "X-Partner-Id"
)

// PrincipalType classifies authenticated callers.
type PrincipalType string

const (
	PrincipalTypeAdmin   PrincipalType = "admin"
	PrincipalTypePartner PrincipalType = "partner"
	PrincipalTypeService PrincipalType = "service"
)

// Principal identifies the authenticated caller as asserted by the gateway.
type Principal struct {
	ID        string
	Type      PrincipalType
	PartnerID string
}

// IsAdmin reports whether the principal carries admin authority.
func (p Principal) IsAdmin() bool { return p.Type == PrincipalTypeAdmin }

type principalContextKey struct{}

// WithPrincipal stores the principal on the context.
func WithPrincipal(ctx context.Context, principal Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, principal)
}

// PrincipalFromContext retrieves the principal when present.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	principal, ok := ctx.Value(principalContextKey{}).(Principal)
	return principal, ok
}

// PrincipalFromHeaders parses the gateway identity headers. Returns false when
// the request carries no identity or a malformed one.
func PrincipalFromHeaders(header http.Header) (Principal, bool) {
	id := strings.TrimSpace(header.Get(HeaderActorID))
	if id == "" {
		return Principal{}, false
	}

	principal := Principal{ID: id}
	switch PrincipalType(strings.ToLower(strings.TrimSpace(header.Get(HeaderActorType)))) {
	case PrincipalTypeAdmin:
		principal.Type = PrincipalTypeAdmin
	case PrincipalTypePartner:
		principal.Type = PrincipalTypePartner
		principal.PartnerID = strings.TrimSpace(header.Get(HeaderPartnerID))
		if principal.PartnerID == "" {
			return Principal{}, false
		}
	case PrincipalTypeService:
		principal.Type = PrincipalTypeService
	default:
		return Principal{}, false
	}
	return principal, true
}
