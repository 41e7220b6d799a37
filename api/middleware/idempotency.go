package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/tableorders-backend/api/responses"
	pkgerrors "github.com/angelmondragon/tableorders-backend/pkg/errors"
	"github.com/angelmondragon/tableorders-backend/pkg/logger"
)

const (
	idempotencyHeader = "Idempotency-Key"
	replayedHeader    = "Idempotent-Replayed"

	defaultIdempotencyTTL  = 24 * time.Hour
	criticalIdempotencyTTL = 7 * 24 * time.Hour
	// inFlightTTL bounds how long a crashed request can block retries of its key.
	inFlightTTL = 30 * time.Second
)

// ReplayStore is the redis surface used to reserve keys and persist responses.
type ReplayStore interface {
	Get(ctx context.Context, key string) (string, error)
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	DeleteIfValue(ctx context.Context, key, value string) (bool, error)
	IdempotencyKey(scope, id string) string
}

type idempotencyRule struct {
	method string
	// glob is matched with path.Match, so "*" spans exactly one path segment.
	glob string
	ttl  time.Duration
}

var idempotencyRules = []idempotencyRule{
	{http.MethodPost, "/api/v1/tables/*/orders", defaultIdempotencyTTL},
	{http.MethodPost, "/api/v1/tables/*/receipt", criticalIdempotencyTTL},
	{http.MethodPost, "/api/v1/tables/*/pay", criticalIdempotencyTTL},
	{http.MethodPost, "/api/v1/sessions/*/pay", criticalIdempotencyTTL},
}

func ruleFor(method, pattern string) (idempotencyRule, bool) {
	for _, rule := range idempotencyRules {
		if rule.method != method {
			continue
		}
		if ok, _ := path.Match(rule.glob, pattern); ok {
			return rule, true
		}
	}
	return idempotencyRule{}, false
}

// storedResponse is what a completed request leaves behind for replays.
type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        string `json:"body"`
	Fingerprint string `json:"request_hash"`
}

func (s storedResponse) writeTo(w http.ResponseWriter) {
	if s.ContentType != "" {
		w.Header().Set("Content-Type", s.ContentType)
	}
	w.Header().Set(replayedHeader, "true")
	w.WriteHeader(s.Status)
	if body, err := base64.StdEncoding.DecodeString(s.Body); err == nil {
		_, _ = w.Write(body)
	}
}

type replayGuard struct {
	store ReplayStore
	logg  *logger.Logger
}

// Idempotency requires an Idempotency-Key on order submission and billing routes.
// Retrying a key replays the first response. Reusing it with another body is a
// conflict, as is retrying while the first attempt is still running.
func Idempotency(store ReplayStore, logg *logger.Logger) func(http.Handler) http.Handler {
	guard := &replayGuard{store: store, logg: logg}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rule, guarded := ruleFor(r.Method, routePattern(r))
			if !guarded || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			if err := guard.serve(w, r, next, rule.ttl); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
			}
		})
	}
}

// serve returns an error only when the request was not handed to next.
func (g *replayGuard) serve(w http.ResponseWriter, r *http.Request, next http.Handler, ttl time.Duration) error {
	ctx := r.Context()
	clientKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
	if clientKey == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required")
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unreadable request body")
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	scope := fmt.Sprintf("http|%s|%s", r.Method, r.URL.Path)
	responseKey := g.store.IdempotencyKey(scope, clientKey)
	fingerprint := fingerprintOf(body)

	previous, err := g.lookup(ctx, responseKey)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency")
	}
	if previous != nil {
		if previous.Fingerprint != fingerprint {
			return pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body")
		}
		previous.writeTo(w)
		return nil
	}

	markerKey := g.store.IdempotencyKey(scope+"|inflight", clientKey)
	token := uuid.NewString()
	reserved, err := g.store.SetNX(ctx, markerKey, token, inFlightTTL)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve idempotency key")
	}
	if !reserved {
		return pkgerrors.New(pkgerrors.CodeIdempotency, "a request with this idempotency key is still being processed")
	}
	defer func() {
		if _, err := g.store.DeleteIfValue(context.WithoutCancel(ctx), markerKey, token); err != nil {
			g.logError(ctx, "release idempotency key", err)
		}
	}()

	recorder := &responseCapture{ResponseWriter: w}
	next.ServeHTTP(recorder, r)
	if recorder.status >= http.StatusInternalServerError || recorder.Header().Get("Retry-After") != "" {
		return nil
	}
	g.remember(ctx, responseKey, ttl, storedResponse{
		Status:      recorder.statusOrOK(),
		ContentType: recorder.Header().Get("Content-Type"),
		Body:        base64.StdEncoding.EncodeToString(recorder.body.Bytes()),
		Fingerprint: fingerprint,
	})
	return nil
}

func (g *replayGuard) lookup(ctx context.Context, key string) (*storedResponse, error) {
	raw, err := g.store.Get(ctx, key)
	switch {
	case errors.Is(err, redis.Nil):
		return nil, nil
	case err != nil:
		return nil, err
	case raw == "":
		return nil, nil
	}
	var stored storedResponse
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, fmt.Errorf("decode stored response: %w", err)
	}
	return &stored, nil
}

// remember is best effort: the client already has its response.
func (g *replayGuard) remember(ctx context.Context, key string, ttl time.Duration, resp storedResponse) {
	payload, err := json.Marshal(resp)
	if err != nil {
		g.logError(ctx, "marshal idempotency record", err)
		return
	}
	if _, err := g.store.SetNX(ctx, key, string(payload), ttl); err != nil {
		g.logError(ctx, "persist idempotency record", err)
	}
}

func (g *replayGuard) logError(ctx context.Context, msg string, err error) {
	if g.logg != nil {
		g.logg.Error(ctx, msg, err)
	}
}

func fingerprintOf(body []byte) string {
	sum := sha256.Sum256(body)
	return base64.StdEncoding.EncodeToString(sum[:])
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		// Mounted middleware runs before the final route resolves and only sees "/*".
		if pattern := rctx.RoutePattern(); pattern != "" && !strings.HasSuffix(pattern, "*") {
			return pattern
		}
	}
	return r.URL.Path
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	c.status = code
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) statusOrOK() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}
