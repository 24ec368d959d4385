package handlers

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/routelens/routelens/internal/core"
	"github.com/routelens/routelens/internal/core/engine"
	"github.com/routelens/routelens/internal/core/query"
	apperrors "github.com/routelens/routelens/internal/errors"
	"github.com/routelens/routelens/internal/server/middleware"
)

// Response headers set by the lookup endpoints.
const (
	HeaderRetryAfter   = "Retry-After"
	HeaderResponseTime = "X-Response-Time-Ms"
)

// Looker runs one lookup for a caller. *engine.Orchestrator satisfies it.
type Looker interface {
	Lookup(ctx context.Context, raw, caller string) *core.LookupResult
}

// LookupHandler serves /api/bgp/lookup and /api/bgp/classify.
type LookupHandler struct {
	engine Looker
}

// NewLookupHandler binds the HTTP surface to a lookup engine.
func NewLookupHandler(engine Looker) *LookupHandler {
	return &LookupHandler{engine: engine}
}

// Lookup answers GET /api/bgp/lookup?q=<query>. The envelope is always JSON;
// its status decides the HTTP status code.
func (h *LookupHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	if h == nil || h.engine == nil {
		respondWithError(w, r, apperrors.NewInternalError("lookup engine not configured"))
		return
	}

	ctx := r.Context()
	if id := middleware.GetRequestID(ctx); id != "" {
		ctx = engine.WithRequestID(ctx, id)
	}

	result := h.engine.Lookup(ctx, r.URL.Query().Get("q"), CallerKey(r))
	if result == nil {
		respondWithError(w, r, apperrors.NewInternalError("lookup produced no result"))
		return
	}

	status := result.Status
	if status == 0 {
		status = http.StatusOK
	}

	if rl := result.RateLimit; rl != nil && !rl.Allowed && rl.RetryAfterSec != nil {
		w.Header().Set(HeaderRetryAfter, strconv.Itoa(*rl.RetryAfterSec))
	}
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set(HeaderResponseTime, strconv.FormatInt(time.Since(started).Milliseconds(), 10))

	writeJSON(w, status, result)
}

// Classify answers GET /api/bgp/classify?q=<query> without any upstream call.
func (h *LookupHandler) Classify(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("q"))
	if raw == "" {
		respondWithError(w, r, apperrors.NewInvalidInputError(engine.ErrMissingQuery))
		return
	}
	writeJSON(w, http.StatusOK, query.Classify(raw))
}

// CallerKey identifies the rate-limit bucket for a request: the first valid
// address in X-Forwarded-For, then X-Real-IP, then the peer address.
func CallerKey(r *http.Request) string {
	candidates := []string{
		r.Header.Get("X-Forwarded-For"),
		r.Header.Get("X-Real-IP"),
		r.RemoteAddr,
	}
	for _, candidate := range candidates {
		if ip, ok := query.NormalizeIP(candidate); ok {
			return "ip:" + ip
		}
	}
	// RemoteAddr may carry a zone or an unusual port form.
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		if ip, ok := query.NormalizeIP(host); ok {
			return "ip:" + ip
		}
	}
	return "ip:anon"
}
