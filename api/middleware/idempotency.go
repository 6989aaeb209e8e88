package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/orderbridge-backend/api/responses"
	"github.com/angelmondragon/orderbridge-backend/pkg/auth"
	pkgerrors "github.com/angelmondragon/orderbridge-backend/pkg/errors"
	"github.com/angelmondragon/orderbridge-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/orderbridge-backend/pkg/redis"
)

const (
	idempotencyHeader      = "Idempotency-Key"
	defaultIdempotencyTTL  = 24 * time.Hour
	criticalIdempotencyTTL = 7 * 24 * time.Hour
	inFlightTTL            = time.Minute
)

// keyed by "METHOD pattern"
var idempotentRoutes = map[string]time.Duration{
	http.MethodPost + " /orders":          defaultIdempotencyTTL,
	http.MethodPost + " /payments/refund": criticalIdempotencyTTL,
}

// storedResponse is what a key holds: an in-flight marker while the first
// request runs, then the replayable response.
type storedResponse struct {
	Status      int    `json:"status"`
	Body        string `json:"body"`
	ContentType string `json:"content_type,omitempty"`
	RequestHash string `json:"request_hash"`
	InFlight    bool   `json:"in_flight,omitempty"`
}

type idempotencyStore interface {
	pkgredis.IdempotencyStore
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

var (
	errKeyInProgress = pkgerrors.New(pkgerrors.CodeIdempotency, "request with this idempotency key is in progress")
	errKeyReused     = pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body")
)

// Idempotency replays the first response for a repeated Idempotency-Key on
// idempotentRoutes. The key is claimed before the handler runs; a 5xx
// releases it so the client can retry.
func Idempotency(store idempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			pattern := routePattern(r)
			ttl, ok := routeTTL(r.Method, pattern)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			clientKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			if clientKey == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, idempotencyHeader+" header required"))
				return
			}
			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			hash := hashBody(body)
			key := store.IdempotencyKey(scopeOf(r, pattern), clientKey)

			claimed, err := claimKey(ctx, store, key, hash)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key"))
				return
			}
			if !claimed {
				stored, err := lookup(ctx, store, key, hash)
				if err != nil {
					responses.WriteError(ctx, logg, w, err)
					return
				}
				stored.writeTo(w)
				return
			}

			var captured bytes.Buffer
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			ww.Tee(&captured)
			next.ServeHTTP(ww, r)

			status := writtenStatus(ww)
			if status >= http.StatusInternalServerError {
				if err := store.Del(ctx, key); err != nil && logg != nil {
					logg.Error(ctx, "release idempotency key", err)
				}
				return
			}
			stored := storedResponse{
				Status:      status,
				Body:        base64.StdEncoding.EncodeToString(captured.Bytes()),
				ContentType: ww.Header().Get("Content-Type"),
				RequestHash: hash,
			}
			if err := persist(ctx, store, key, stored, ttl); err != nil && logg != nil {
				logg.Error(ctx, "persist idempotency record", err)
			}
		})
	}
}

func claimKey(ctx context.Context, store idempotencyStore, key, hash string) (bool, error) {
	marker, err := json.Marshal(storedResponse{RequestHash: hash, InFlight: true})
	if err != nil {
		return false, err
	}
	return store.SetNX(ctx, key, string(marker), inFlightTTL)
}

// lookup returns the replayable response, or an error for an in-flight or
// mismatched key.
func lookup(ctx context.Context, store idempotencyStore, key, hash string) (*storedResponse, error) {
	raw, err := store.Get(ctx, key)
	switch {
	case errors.Is(err, redis.Nil) || (err == nil && raw == ""):
		// marker expired between SETNX and GET
		return nil, errKeyInProgress
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency")
	}
	var stored storedResponse
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record")
	}
	if stored.RequestHash != hash {
		return nil, errKeyReused
	}
	if stored.InFlight {
		return nil, errKeyInProgress
	}
	return &stored, nil
}

func persist(ctx context.Context, store idempotencyStore, key string, stored storedResponse, ttl time.Duration) error {
	payload, err := json.Marshal(stored)
	if err != nil {
		return err
	}
	return store.Set(ctx, key, string(payload), ttl)
}

func (s *storedResponse) writeTo(w http.ResponseWriter) {
	if s.ContentType != "" {
		w.Header().Set("Content-Type", s.ContentType)
	}
	w.WriteHeader(s.Status)
	if body, err := base64.StdEncoding.DecodeString(s.Body); err == nil {
		_, _ = w.Write(body)
	}
}

// scopeOf keeps keys from colliding across callers and routes. Anonymous
// storefront callers share the empty actor.
func scopeOf(r *http.Request, pattern string) string {
	actor, _ := auth.ActorFrom(r.Context())
	return strings.Join([]string{actor.UserID, r.Method, pattern}, "|")
}

func hashBody(payload []byte) string {
	sum := sha256.Sum256(payload)
	return base64.StdEncoding.EncodeToString(sum[:])
}

func routePattern(r *http.Request) string {
	if pattern := routeOf(r); pattern != "" {
		return pattern
	}
	return r.URL.Path
}

func routeTTL(method, pattern string) (time.Duration, bool) {
	ttl, ok := idempotentRoutes[method+" "+pattern]
	return ttl, ok
}
