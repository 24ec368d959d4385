package middleware

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// maxRequestIDLength caps caller-supplied ids
const maxRequestIDLength = 128

// requestIDContextKey keeps our context key distinct from other packages
type requestIDContextKey string

const RequestIDContextKey requestIDContextKey = "request_id"

// RequestID accepts a caller-supplied X-Request-ID when it is short and made
// of safe characters, otherwise it generates one. The id is echoed on the
// response and stored in the context for logs and response metadata.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// chi's RequestID middleware may already have assigned one
		requestID := middleware.GetReqID(r.Context())

		// Otherwise accept the caller's header when it looks safe
		if requestID == "" {
			if inbound := r.Header.Get(RequestIDHeader); validRequestID(inbound) {
				requestID = inbound
			}
		}

		// Generate a fresh UUID as the last resort
		if requestID == "" {
			requestID = uuid.New().String()
		}

		// Echo it back and expose it to downstream handlers
		w.Header().Set(RequestIDHeader, requestID)
		ctx := context.WithValue(r.Context(), RequestIDContextKey, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID returns the id set by RequestID, falling back to chi's.
func GetRequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	// Our key wins, chi's is the fallback
	if requestID, ok := ctx.Value(RequestIDContextKey).(string); ok {
		return requestID
	}
	return middleware.GetReqID(ctx)
}

// validRequestID allows letters, digits and - _ . : only
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.', c == ':':
		default:
			return false
		}
	}
	return true
}
