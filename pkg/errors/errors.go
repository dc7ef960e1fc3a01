// Package errors provides the structured error type both the client and
// server engines report failures through, plus the handful of predicates
// callers use to branch on an error's category.
package errors

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrorType categorizes where in the request/response pipeline a failure
// originated.
type ErrorType string

const (
	// ErrorTypeDNS represents DNS resolution errors.
	ErrorTypeDNS ErrorType = "dns"
	// ErrorTypeConnection represents TCP connect/accept errors.
	ErrorTypeConnection ErrorType = "connection"
	// ErrorTypeTLS represents errors from the TLS socket seam. The
	// handshake and certificate policy behind that seam are not part of
	// this package; this type only classifies failures surfaced through it.
	ErrorTypeTLS ErrorType = "tls"
	// ErrorTypeTimeout represents deadline-expiry errors: a pkg/deadline
	// Timer fired and forced the socket shut while an operation was
	// blocked on it, rather than the operation failing on its own.
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeProtocol represents malformed request/status lines,
	// header blocks, Content-Length values, or chunk headers.
	ErrorTypeProtocol ErrorType = "protocol"
	// ErrorTypeIO represents read/write failures from the OS that were
	// not caused by a deadline expiring.
	ErrorTypeIO ErrorType = "io"
	// ErrorTypeValidation represents bad configuration supplied by the caller.
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeHandler represents a failure thrown out of a user-supplied
	// handler on the server side, before any response was written.
	ErrorTypeHandler ErrorType = "handler"
)

// Error is the structured error both engines return. Addr is "host:port"
// when both are known, or just the host when Port is 0; Host/Port are
// carried separately so a caller can
// react to the host alone (e.g. for a retry against a different port).
type Error struct {
	Type      ErrorType
	Op        string
	Message   string
	Cause     error
	Host      string
	Port      int
	Addr      string
	Timestamp time.Time
}

// newError builds an Error, stamping the current time and deriving Addr
// from host and port.
func newError(typ ErrorType, op, message string, cause error, host string, port int) *Error {
	addr := host
	if host != "" && port != 0 {
		addr = fmt.Sprintf("%s:%d", host, port)
	}
	return &Error{
		Type:      typ,
		Op:        op,
		Message:   message,
		Cause:     cause,
		Host:      host,
		Port:      port,
		Addr:      addr,
		Timestamp: time.Now(),
	}
}

// Error renders "[type] op addr: message: cause", omitting any piece that
// is empty.
func (e *Error) Error() string {
	s := fmt.Sprintf("[%s]", e.Type)
	if e.Op != "" {
		s += " " + e.Op
	}
	if e.Addr != "" {
		s += " " + e.Addr
	}
	if e.Message != "" {
		s += ": " + e.Message
	}
	if e.Cause != nil {
		s += ": " + e.Cause.Error()
	}
	return s
}

// Unwrap exposes Cause to errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same Type, so callers can
// write errors.Is(err, &errors.Error{Type: errors.ErrorTypeTimeout}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e.Type == t.Type
}

// NewDNSError wraps a failed name lookup.
func NewDNSError(host string, cause error) *Error {
	return newError(ErrorTypeDNS, "lookup", fmt.Sprintf("DNS lookup failed for host %s", host), cause, host, 0)
}

// NewConnectionError wraps a failed TCP dial.
func NewConnectionError(host string, port int, cause error) *Error {
	return newError(ErrorTypeConnection, "dial", fmt.Sprintf("failed to connect to %s:%d", host, port), cause, host, port)
}

// NewTLSError wraps a failed TLS handshake surfaced through the socket seam.
func NewTLSError(host string, port int, cause error) *Error {
	return newError(ErrorTypeTLS, "handshake", fmt.Sprintf("TLS handshake failed for %s:%d", host, port), cause, host, port)
}

// NewTimeoutError reports an operation abandoned because its pkg/deadline
// Timer fired; timer.Expired() is how a caller decides to reach for this
// instead of NewIOError.
func NewTimeoutError(operation string, timeout time.Duration) *Error {
	return newError(ErrorTypeTimeout, operation, fmt.Sprintf("%s timed out after %s", operation, timeout), nil, "", 0)
}

// NewProtocolError wraps a malformed request/status line, header block,
// or body-framing value.
func NewProtocolError(message string, cause error) *Error {
	return newError(ErrorTypeProtocol, "parse", message, cause, "", 0)
}

// NewIOError wraps a read or write failure not attributable to a timer.
func NewIOError(op string, cause error) *Error {
	return newError(ErrorTypeIO, op, fmt.Sprintf("I/O error during %s", op), cause, "", 0)
}

// NewValidationError reports invalid caller-supplied configuration.
func NewValidationError(message string) *Error {
	return newError(ErrorTypeValidation, "validate", message, nil, "", 0)
}

// NewHandlerError wraps a failure thrown out of a user handler. The server
// reports these via on_error as ErrorTypeHandler and abandons the
// connection without writing a response.
func NewHandlerError(cause error) *Error {
	return newError(ErrorTypeHandler, "dispatch", "handler failed before a response was written", cause, "", 0)
}

// NewAcceptError wraps a failed accept() on the listening socket.
func NewAcceptError(cause error) *Error {
	return newError(ErrorTypeConnection, "accept", "accept failed", cause, "", 0)
}

// IsTimeoutError reports whether err is a structured Error classified as
// ErrorTypeTimeout, or an unwrapped context.DeadlineExceeded.
func IsTimeoutError(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Type == ErrorTypeTimeout
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// GetErrorType returns the error's Type, or "" if err is not a structured Error.
func GetErrorType(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ""
}

// IsContextCanceled reports whether err is due to context cancellation.
func IsContextCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}

// IsContextTimeout reports whether err is due to a context deadline.
func IsContextTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
