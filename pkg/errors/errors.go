// Package errors defines the error taxonomy shared by the search
// services: sentinel values for classification with errors.Is, an
// HTTPError wrapper that pins a response status to a message, and the
// mapping from either form to an HTTP status code.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidInput marks malformed payloads: undecodable JSON, missing
	// required document fields. Rejected before any engine state changes.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidQuery marks structurally valid but unsatisfiable query
	// configuration: negative limits, offsets or distances, contradictory
	// filter ranges.
	ErrInvalidQuery     = errors.New("invalid query")
	ErrDocumentNotFound = errors.New("document not found")
	ErrDocumentExists   = errors.New("document already exists")
	ErrUnavailable      = errors.New("service unavailable")
	ErrRateLimited      = errors.New("rate limit exceeded")
	ErrInternal         = errors.New("internal error")
	ErrTimeout          = errors.New("operation timed out")
)

// HTTPError carries a sentinel for errors.Is matching, a human-readable
// message, and the status the HTTP layer should answer with.
type HTTPError struct {
	Err     error
	Message string
	Status  int
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return e.Err.Error()
	}
	return e.Err.Error() + ": " + e.Message
}

func (e *HTTPError) Unwrap() error { return e.Err }

// Newf builds an HTTPError with a formatted message.
func Newf(sentinel error, status int, format string, args ...any) *HTTPError {
	return &HTTPError{
		Err:     sentinel,
		Message: fmt.Sprintf(format, args...),
		Status:  status,
	}
}

// InvalidInput wraps a malformed-payload condition with a 400 status.
func InvalidInput(format string, args ...any) *HTTPError {
	return Newf(ErrInvalidInput, http.StatusBadRequest, format, args...)
}

// InvalidQuery wraps an unsatisfiable-configuration condition with a 400
// status.
func InvalidQuery(format string, args ...any) *HTTPError {
	return Newf(ErrInvalidQuery, http.StatusBadRequest, format, args...)
}

// HTTPStatusCode resolves err to a response status. An HTTPError anywhere
// in the chain wins; otherwise the sentinel decides; anything
// unrecognized is a 500.
func HTTPStatusCode(err error) int {
	var herr *HTTPError
	if errors.As(err, &herr) {
		return herr.Status
	}

	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidQuery):
		return http.StatusBadRequest
	case errors.Is(err, ErrDocumentNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDocumentExists):
		return http.StatusConflict
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
