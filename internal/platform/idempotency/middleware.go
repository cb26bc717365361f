package idempotency

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/printmesh/api/internal/platform/auth"
	"github.com/printmesh/api/internal/platform/httpx"
	"github.com/printmesh/api/internal/platform/requestctx"
)

const (
	// HeaderName is the request header carrying the caller's idempotency key.
	HeaderName = "Idempotency-Key"
	// ReplayHeader marks responses served from a stored record.
	ReplayHeader = "X-Idempotent-Replay"
)

type middlewareConfig struct {
	ttl   time.Duration
	clock func() time.Time
}

// MiddlewareOption customises middleware behaviour.
type MiddlewareOption func(*middlewareConfig)

// WithTTL configures how long completed records are retained.
func WithTTL(ttl time.Duration) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		if ttl > 0 {
			cfg.ttl = ttl
		}
	}
}

// WithClock overrides the time source, primarily for testing.
func WithClock(clock func() time.Time) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		if clock != nil {
			cfg.clock = clock
		}
	}
}

// Middleware enforces idempotency for mutating requests. Every POST, PUT,
// PATCH, or DELETE passing through must carry an Idempotency-Key header. The
// first request with a given key executes and its response is stored; repeats
// with the same key and payload replay the stored response, repeats with a
// different payload are rejected.
func Middleware(store Store, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	if store == nil {
		return func(next http.Handler) http.Handler { return next }
	}

	cfg := middlewareConfig{ttl: DefaultTTL, clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
			default:
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			key := strings.TrimSpace(r.Header.Get(HeaderName))
			if key == "" {
				httpx.WriteError(ctx, w, httpx.NewError("idempotency_key_required", "Idempotency-Key header is required", http.StatusBadRequest))
				return
			}

			body, err := bufferBody(r)
			if err != nil {
				httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "unable to read request body", http.StatusBadRequest))
				return
			}

			scoped := scopeKey(ctx, key)
			fingerprint := fingerprintRequest(r, body)
			now := cfg.clock().UTC()

			reservation, err := store.Reserve(ctx, scoped, fingerprint, now, cfg.ttl)
			if err != nil {
				if errors.Is(err, ErrFingerprintMismatch) {
					httpx.WriteError(ctx, w, httpx.NewError("idempotency_key_conflict", "idempotency key already used for a different request", http.StatusConflict))
					return
				}
				requestctx.Logger(ctx).Error("idempotency reserve failed", zap.Error(err))
				httpx.WriteError(ctx, w, httpx.NewError("internal_server_error", "unable to process idempotency key", http.StatusInternalServerError))
				return
			}

			switch reservation.Outcome {
			case OutcomeReplay:
				replayResponse(w, reservation.Record)
				return
			case OutcomeInFlight:
				httpx.WriteError(ctx, w, httpx.NewError("idempotency_in_progress", "another request is processing this idempotency key", http.StatusConflict))
				return
			}

			recorder := newBufferedWriter(w)
			next.ServeHTTP(recorder, r)

			saveErr := store.SaveResponse(ctx, scoped, fingerprint, Response{
				Status:  recorder.Status(),
				Headers: recorder.HeaderSnapshot(),
				Body:    recorder.Body(),
			}, cfg.clock().UTC(), cfg.ttl)
			if saveErr != nil {
				requestctx.Logger(ctx).Error("idempotency save failed", zap.Error(saveErr))
				if releaseErr := store.Release(ctx, scoped); releaseErr != nil {
					requestctx.Logger(ctx).Warn("idempotency release failed", zap.Error(releaseErr))
				}
				httpx.WriteError(ctx, w, httpx.NewError("internal_server_error", "unable to persist idempotency state", http.StatusInternalServerError))
				return
			}

			if err := recorder.Flush(); err != nil {
				requestctx.Logger(ctx).Warn("idempotency response flush failed", zap.Error(err))
			}
		})
	}
}

func bufferBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	if err := r.Body.Close(); err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(bytes.NewReader(data))
	return data, nil
}

// scopeKey prefixes the client key with the principal so two actors cannot
// collide on the same header value.
func scopeKey(ctx context.Context, key string) string {
	actor := "anonymous"
	if principal, ok := auth.PrincipalFromContext(ctx); ok && principal.ID != "" {
		actor = principal.ID
	}
	return actor + "|" + key
}

func fingerprintRequest(r *http.Request, body []byte) string {
	builder := strings.Builder{}
	builder.WriteString(strings.ToUpper(r.Method))
	builder.WriteString("|")
	builder.WriteString(r.URL.Path)
	builder.WriteString("|")
	builder.WriteString(r.URL.RawQuery)
	builder.WriteString("|")
	if len(body) > 0 {
		builder.WriteString(sha256Hex(body))
	}
	return sha256Hex([]byte(builder.String()))
}

func replayResponse(w http.ResponseWriter, record Record) {
	for key := range w.Header() {
		w.Header().Del(key)
	}
	for key, values := range record.ResponseHeaders {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	w.Header().Set(ReplayHeader, "true")

	status := record.ResponseStatus
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if len(record.ResponseBody) > 0 {
		_, _ = w.Write(record.ResponseBody)
	}
}

// bufferedWriter holds the handler's response until the record is persisted,
// so a stored record always matches what the caller received.
type bufferedWriter struct {
	parent http.ResponseWriter
	header http.Header
	status int
	body   bytes.Buffer
}

func newBufferedWriter(parent http.ResponseWriter) *bufferedWriter {
	return &bufferedWriter{parent: parent, header: make(http.Header)}
}

func (b *bufferedWriter) Header() http.Header {
	return b.header
}

func (b *bufferedWriter) WriteHeader(status int) {
	if status <= 0 {
		status = http.StatusOK
	}
	b.status = status
}

func (b *bufferedWriter) Write(data []byte) (int, error) {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	return b.body.Write(data)
}

func (b *bufferedWriter) Status() int {
	if b.status == 0 {
		return http.StatusOK
	}
	return b.status
}

func (b *bufferedWriter) Body() []byte {
	if b.body.Len() == 0 {
		return nil
	}
	return b.body.Bytes()
}

func (b *bufferedWriter) HeaderSnapshot() http.Header {
	snapshot := make(http.Header, len(b.header))
	for key, values := range b.header {
		copied := make([]string, len(values))
		copy(copied, values)
		snapshot[key] = copied
	}
	return snapshot
}

func (b *bufferedWriter) Flush() error {
	dst := b.parent.Header()
	for key := range dst {
		dst.Del(key)
	}
	for key, values := range b.header {
		for _, value := range values {
			dst.Add(key, value)
		}
	}
	b.parent.WriteHeader(b.Status())
	if b.body.Len() == 0 {
		return nil
	}
	_, err := b.parent.Write(b.body.Bytes())
	return err
}
