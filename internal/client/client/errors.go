package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrTransport covers every network or HTTP failure: connection errors,
	// timeouts, cancelled requests, unexpected statuses and malformed bodies.
	ErrTransport = errors.New("transport error")

	// ErrUnavailable and ErrUnauthorized are transport errors too.
	ErrUnavailable  = fmt.Errorf("%w: server unavailable", ErrTransport)
	ErrUnauthorized = fmt.Errorf("%w: unauthorized", ErrTransport)

	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")

	// ErrConflict is returned when the server refuses an operation because the
	// record is already in the requested state (e.g. a repeated trash).
	ErrConflict = errors.New("conflict")

	ErrLocalDataNotAvailable = errors.New("local data unavailable")
)

// APIError is a non-2xx response. It matches both ErrTransport and the
// sentinel of its status class (ErrNotFound, ErrValidation, ...) with
// errors.Is.
type APIError struct {
	StatusCode int
	Message    string
	kind       error
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%v (HTTP %d)", e.kind, e.StatusCode)
	}
	return fmt.Sprintf("%v (HTTP %d): %s", e.kind, e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() []error {
	return []error{e.kind, ErrTransport}
}

func newAPIError(status int, message string) *APIError {
	return &APIError{StatusCode: status, Message: message, kind: classifyStatus(status)}
}

func classifyStatus(status int) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return ErrValidation
	case http.StatusConflict:
		return ErrConflict
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return ErrUnavailable
	default:
		return ErrTransport
	}
}
