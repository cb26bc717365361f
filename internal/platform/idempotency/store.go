package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"
)

// DefaultTTL bounds how long a completed record may be replayed.
const DefaultTTL = 24 * time.Hour

// Status is the lifecycle state of a stored record.
type Status string

const (
	// StatusPending marks a key reserved by an in-flight request.
	StatusPending Status = "pending"
	// StatusCompleted marks a key whose response is stored for replay.
	StatusCompleted Status = "completed"
)

// ReserveOutcome describes what the caller should do after reserving a key.
type ReserveOutcome int

const (
	// OutcomeNew means the key is fresh and the request should proceed.
	OutcomeNew ReserveOutcome = iota
	// OutcomeReplay means a stored response exists and should be replayed.
	OutcomeReplay
	// OutcomeInFlight means another request currently holds the key.
	OutcomeInFlight
)

// Reservation is the result of attempting to reserve a key.
type Reservation struct {
	Outcome ReserveOutcome
	Record  Record
}

// Record captures the persisted response for one idempotency key.
type Record struct {
	Key             string
	Fingerprint     string
	Status          Status
	ResponseStatus  int
	ResponseHeaders map[string][]string
	ResponseBody    []byte
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ExpiresAt       time.Time
}

// Response is the HTTP result stored for future replays.
type Response struct {
	Status  int
	Headers http.Header
	Body    []byte
}

// Store persists idempotency reservations and their responses.
type Store interface {
	Reserve(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error)
	SaveResponse(ctx context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error
	Release(ctx context.Context, key string) error
	CleanupExpired(ctx context.Context, now time.Time, limit int) (int, error)
}

// ErrFingerprintMismatch is returned when a key is reused for a different request.
var ErrFingerprintMismatch = errors.New("idempotency: key reused with a different request fingerprint")

// recordID derives the document identifier from the scoped key. The raw key is
// hashed so actor identifiers never appear in document names.
func recordID(key string) string {
	return sha256Hex([]byte(strings.TrimSpace(key)))
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// storableHeaders drops hop-by-hop headers before persisting a response.
func storableHeaders(header http.Header) map[string][]string {
	if len(header) == 0 {
		return nil
	}
	filtered := make(map[string][]string, len(header))
	for name, values := range header {
		canonical := http.CanonicalHeaderKey(name)
		switch strings.ToLower(canonical) {
		case "content-length", "date", "connection", "keep-alive", "transfer-encoding", "upgrade", "te", "trailers":
			continue
		}
		copied := make([]string, len(values))
		copy(copied, values)
		filtered[canonical] = copied
	}
	if len(filtered) == 0 {
		return nil
	}
	return filtered
}
