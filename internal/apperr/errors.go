// Package apperr defines the error taxonomy shared by scribe components.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidRequest = errors.New("invalid request")
	// ErrUnavailable marks an operation whose backing service is not configured.
	ErrUnavailable    = errors.New("unavailable")
)

// Kind classifies a failed call to an external service.
type Kind string

const (
	KindRateLimited  Kind = "rate_limited"
	KindUnauthorized Kind = "unauthorized"
	KindServerError  Kind = "server_error"
	KindTimeout      Kind = "timeout"
	KindUnknown      Kind = "unknown"
)

// Kind sentinels, matched through errors.Is on an *ExternalError.
var (
	ErrRateLimited  = errors.New("rate limited")
	ErrUnauthorized = errors.New("unauthorized")
	ErrServerError  = errors.New("server error")
	ErrTimeout      = errors.New("timeout")
	ErrUnknown      = errors.New("unknown external error")
)

var kindSentinels = map[Kind]error{
	KindRateLimited:  ErrRateLimited,
	KindUnauthorized: ErrUnauthorized,
	KindServerError:  ErrServerError,
	KindTimeout:      ErrTimeout,
	KindUnknown:      ErrUnknown,
}

var kindHints = map[Kind]string{
	KindRateLimited:  "the provider is throttling requests; slow down or raise the quota",
	KindUnauthorized: "the credentials were rejected; check the API key",
	KindServerError:  "the provider failed; try again later",
	KindTimeout:      "the call did not finish in time; raise the timeout or retry",
	KindUnknown:      "unexpected failure",
}

// Hint returns a short actionable description of the failure kind.
func (k Kind) Hint() string {
	if h, ok := kindHints[k]; ok {
		return h
	}
	return kindHints[KindUnknown]
}

// ExternalError is a classified transport, auth or server failure.
type ExternalError struct {
	Service    string
	Kind       Kind
	StatusCode int
	Err        error
}

func (e *ExternalError) Error() string {
	msg := fmt.Sprintf("%s: %s (%s)", e.Service, e.Kind, e.Kind.Hint())
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": http %d", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ExternalError) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel of e's kind.
func (e *ExternalError) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

// KindForStatus maps an HTTP status code onto a Kind.
func KindForStatus(status int) Kind {
	switch {
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindUnauthorized
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return KindTimeout
	case status >= 500:
		return KindServerError
	default:
		return KindUnknown
	}
}

// Classify wraps err as an *ExternalError for service. A non-zero status
// wins over the error value; otherwise deadlines and net timeouts become
// KindTimeout. An error that is already classified is returned unchanged.
func Classify(service string, status int, err error) error {
	var ext *ExternalError
	if errors.As(err, &ext) {
		return err
	}
	kind := KindUnknown
	switch {
	case status != 0:
		kind = KindForStatus(status)
	case isTimeout(err):
		kind = KindTimeout
	}
	return &ExternalError{Service: service, Kind: kind, StatusCode: status, Err: err}
}

// KindOf returns the kind of a classified error, or "" if err is not one.
func KindOf(err error) Kind {
	var ext *ExternalError
	if errors.As(err, &ext) {
		return ext.Kind
	}
	return ""
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
