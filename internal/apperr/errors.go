// Package apperr defines the error kinds shared by the neurod services and the
// HTTP status each maps to. Every kind satisfies the httpapi.HTTPError
// contract (Error + StatusCode) and unwraps to its cause.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// authError signals a missing or wrong API key (401).
type authError struct{ msg string }

func (e authError) Error() string   { return e.msg }
func (e authError) StatusCode() int { return http.StatusUnauthorized }

// Auth returns an authentication failure.
func Auth(msg string) error { return authError{msg: msg} }

// IsAuth reports whether err is an authentication failure.
func IsAuth(err error) bool {
	var e authError
	return errors.As(err, &e)
}

// invalidInputError signals an upload or payload the models cannot accept (400).
type invalidInputError struct {
	msg   string
	cause error
}

func (e invalidInputError) Error() string {
	if e.cause != nil {
		return e.msg + ": " + e.cause.Error()
	}
	return e.msg
}
func (e invalidInputError) StatusCode() int { return http.StatusBadRequest }
func (e invalidInputError) Unwrap() error   { return e.cause }

// InvalidInput returns a client input error.
func InvalidInput(format string, args ...any) error {
	return invalidInputError{msg: fmt.Sprintf(format, args...)}
}

// WrapInvalidInput marks cause as a client input error.
func WrapInvalidInput(cause error, msg string) error {
	return invalidInputError{msg: msg, cause: cause}
}

// IsInvalidInput reports whether err is a client input error.
func IsInvalidInput(err error) bool {
	var e invalidInputError
	return errors.As(err, &e)
}

// inferenceError signals a failure while loading or running a model (500).
// Error() keeps the cause for logs; Public() is what callers get to see.
type inferenceError struct {
	op    string
	cause error
}

func (e inferenceError) Error() string {
	if e.cause == nil {
		return e.op + " failed"
	}
	return e.op + " failed: " + e.cause.Error()
}
func (e inferenceError) StatusCode() int { return http.StatusInternalServerError }
func (e inferenceError) Unwrap() error   { return e.cause }
func (e inferenceError) Public() string  { return e.op + " failed" }

// Inference wraps cause as a model failure during op.
func Inference(op string, cause error) error { return inferenceError{op: op, cause: cause} }

// dependencyUnavailableError signals a missing runtime dependency such as an
// unconfigured upstream key or a backend not compiled in (503).
type dependencyUnavailableError struct{ msg string }

func (e dependencyUnavailableError) Error() string   { return e.msg }
func (e dependencyUnavailableError) StatusCode() int { return http.StatusServiceUnavailable }

// DependencyUnavailable constructs a dependencyUnavailableError.
func DependencyUnavailable(msg string) error { return dependencyUnavailableError{msg: msg} }

// IsDependencyUnavailable reports whether err indicates a missing dependency.
func IsDependencyUnavailable(err error) bool {
	var e dependencyUnavailableError
	return errors.As(err, &e)
}

// upstreamError signals a non-success answer from a remote service (502).
type upstreamError struct {
	Status int
	Body   string
}

func (e upstreamError) Error() string {
	return fmt.Sprintf("upstream returned %d: %s", e.Status, e.Body)
}
func (e upstreamError) StatusCode() int { return http.StatusBadGateway }
func (e upstreamError) Public() string {
	return fmt.Sprintf("upstream completion failed (status %d)", e.Status)
}

// Upstream constructs an upstreamError.
func Upstream(status int, body string) error { return upstreamError{Status: status, Body: body} }

// IsUpstream reports whether err came from a failed upstream call.
func IsUpstream(err error) bool {
	var e upstreamError
	return errors.As(err, &e)
}

// UpstreamStatus returns the status code carried by an upstream failure.
func UpstreamStatus(err error) (int, bool) {
	var e upstreamError
	if errors.As(err, &e) {
		return e.Status, true
	}
	return 0, false
}

// PublicMessage returns the text that is safe to send to a client: kinds that
// carry internal detail expose a redacted message, the rest their Error().
func PublicMessage(err error) string {
	var p interface{ Public() string }
	if errors.As(err, &p) {
		return p.Public()
	}
	return err.Error()
}
