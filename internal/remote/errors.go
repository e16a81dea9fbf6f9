// Package remote implements reconcile.RemoteClient against the hosting
// service's storage REST API. Grounded on the teacher's internal/graph
// package: same retry/backoff HTTP core, same sentinel-error
// classification, same context-first/pagination idiom.
package remote

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for HTTP status classification. Use errors.Is to
// check, mirroring the teacher's graph.ErrNotFound family.
var (
	ErrBadRequest   = errors.New("remote: bad request")
	ErrUnauthorized = errors.New("remote: unauthorized")
	ErrForbidden    = errors.New("remote: forbidden")
	ErrNotFound     = errors.New("remote: not found")
	ErrConflict     = errors.New("remote: conflict")
	ErrGone         = errors.New("remote: resource gone")
	ErrThrottled    = errors.New("remote: throttled")
	ErrLocked       = errors.New("remote: resource locked")
	ErrServerError  = errors.New("remote: server error")
)

// APIError wraps a sentinel with the HTTP status, request ID, and raw
// body for diagnostics — the remote-package analogue of the teacher's
// *GraphError.
type APIError struct {
	StatusCode int
	RequestID  string
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("remote: HTTP %d (request-id: %s): %s", e.StatusCode, e.RequestID, e.Message)
	}

	return fmt.Sprintf("remote: HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// classifyStatus maps an HTTP status code to a sentinel, nil for 2xx.
func classifyStatus(code int) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	case http.StatusGone:
		return ErrGone
	case http.StatusTooManyRequests:
		return ErrThrottled
	case http.StatusLocked:
		return ErrLocked
	default:
		if code >= http.StatusInternalServerError {
			return ErrServerError
		}

		return nil
	}
}

// isRetryable reports whether a status code should be retried.
func isRetryable(code int) bool {
	switch code {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
