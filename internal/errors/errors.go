// Package errors builds gofulmen error envelopes for routelens and maps them
// to HTTP statuses.
package errors

import (
	"context"
	"net/http"

	"github.com/fulmenhq/gofulmen/errors"
	"github.com/google/uuid"

	"github.com/routelens/routelens/internal/core"
	"github.com/routelens/routelens/internal/server/middleware"
)

// Envelope codes.
const (
	CodeInvalidInput        = "INVALID_INPUT"
	CodeNotFound            = "NOT_FOUND"
	CodeMethodNotAllowed    = "METHOD_NOT_ALLOWED"
	CodeRateLimited         = "RATE_LIMITED"
	CodeTimeout             = "TIMEOUT"
	CodeExternalService     = "EXTERNAL_SERVICE_ERROR"
	CodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	CodeServiceUnavailable  = "SERVICE_UNAVAILABLE"
	CodeConfigInvalid       = "CONFIG_INVALID"
	CodeInternal            = "INTERNAL_ERROR"
)

var codeStatus = map[string]int{
	CodeInvalidInput:        http.StatusBadRequest,
	"VALIDATION_FAILED":     http.StatusBadRequest,
	"UNAUTHORIZED":          http.StatusUnauthorized,
	"FORBIDDEN":             http.StatusForbidden,
	CodeNotFound:            http.StatusNotFound,
	CodeMethodNotAllowed:    http.StatusMethodNotAllowed,
	CodeRateLimited:         http.StatusTooManyRequests,
	CodeTimeout:             http.StatusGatewayTimeout,
	CodeExternalService:     http.StatusBadGateway,
	CodeUpstreamUnavailable: http.StatusBadGateway,
	CodeServiceUnavailable:  http.StatusServiceUnavailable,
}

func NewInvalidInputError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeInvalidInput, message)
}

func NewNotFoundError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeNotFound, message)
}

func NewMethodNotAllowedError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeMethodNotAllowed, message)
}

func NewRateLimitedError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeRateLimited, message)
}

func NewInternalError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeInternal, message)
}

func NewConfigInvalidError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeConfigInvalid, message)
}

// WrapInternal wraps err with the request id from ctx as correlation id.
func WrapInternal(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	return wrap(ctx, CodeInternal, err, message)
}

func WrapExternalService(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	return wrap(ctx, CodeExternalService, err, message)
}

func WrapConfigInvalid(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	return wrap(ctx, CodeConfigInvalid, err, message)
}

func wrap(ctx context.Context, code string, err error, message string) *errors.ErrorEnvelope {
	id := correlationID(ctx)
	// no tracing backend; the correlation id doubles as trace id
	envelope := errors.NewErrorEnvelope(code, message).
		WithCorrelationID(id).
		WithTraceID(id)
	return withWrappedError(envelope, err)
}

// lookupCodes maps lookup failure kinds onto envelope codes.
var lookupCodes = map[core.ErrorKind]string{
	core.ErrorKindClientInput:       CodeInvalidInput,
	core.ErrorKindRateLimitExceeded: CodeRateLimited,
	core.ErrorKindUpstream:          CodeUpstreamUnavailable,
	core.ErrorKindUnrecognizedQuery: CodeNotFound,
}

// FromLookup converts a failed lookup into an envelope carrying the query,
// error kind and hint. It returns nil for successful results.
func FromLookup(ctx context.Context, result *core.LookupResult) *errors.ErrorEnvelope {
	if !result.Failed() {
		return nil
	}

	code, ok := lookupCodes[result.ErrorKind]
	if !ok {
		code = CodeInternal
	}

	id := result.Meta.RequestID
	if id == "" {
		id = correlationID(ctx)
	}
	envelope := errors.NewErrorEnvelope(code, result.Error).WithCorrelationID(id)

	details := map[string]interface{}{
		"query":      result.Query,
		"error_kind": string(result.ErrorKind),
	}
	if result.Hint != "" {
		details["hint"] = result.Hint
	}
	if result.RateLimit != nil && result.RateLimit.RetryAfterSec != nil {
		details["retry_after_sec"] = *result.RateLimit.RetryAfterSec
	}
	return envelope.WithDetails(details)
}

// correlationID prefers the request id from ctx and falls back to a new UUID.
func correlationID(ctx context.Context) string {
	if ctx != nil {
		if requestID := middleware.GetRequestID(ctx); requestID != "" {
			return requestID
		}
	}
	return uuid.New().String()
}

// EnsureEnvelope normalizes any error into a gofulmen ErrorEnvelope.
func EnsureEnvelope(err error) *errors.ErrorEnvelope {
	if err == nil {
		env := errors.NewErrorEnvelope(CodeInternal, "unexpected nil error")
		env, _ = env.WithSeverity(errors.SeverityCritical)
		return env
	}

	if envelope, ok := err.(*errors.ErrorEnvelope); ok && envelope != nil {
		return envelope
	}

	env := withWrappedError(errors.NewErrorEnvelope(CodeInternal, "unexpected error"), err)
	env, _ = env.WithSeverity(errors.SeverityHigh)
	return env
}

// HTTPStatusFromEnvelope resolves the HTTP status code corresponding to an error envelope.
func HTTPStatusFromEnvelope(envelope *errors.ErrorEnvelope) int {
	if envelope == nil {
		return http.StatusInternalServerError
	}
	return HTTPStatusFromCode(envelope.Code)
}

// HTTPStatusFromCode resolves the HTTP status code corresponding to an error code.
func HTTPStatusFromCode(code string) int {
	if status, ok := codeStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func withWrappedError(envelope *errors.ErrorEnvelope, err error) *errors.ErrorEnvelope {
	if envelope == nil || err == nil {
		return envelope
	}

	updated, updateErr := envelope.WithContext(map[string]interface{}{
		"wrapped_error": err.Error(),
	})
	if updateErr != nil {
		return envelope
	}
	return updated
}
