package parley

import (
	"errors"
	"fmt"
)

// ErrorCode represents a categorized error type.
type ErrorCode int

const (
	ErrorUnknown ErrorCode = iota

	// ErrorTransport is a socket-level failure. It feeds the reconnect
	// policy and is never surfaced as a hard crash.
	ErrorTransport

	// ErrorAuthenticationFailed means the handshake was not acknowledged
	// in time or was explicitly rejected.
	ErrorAuthenticationFailed

	// ErrorNotConnected means a send was attempted while the session is
	// not authenticated.
	ErrorNotConnected

	// ErrorEncoding and ErrorDecoding are per-frame codec failures.
	ErrorEncoding
	ErrorDecoding

	// ErrorMaxReconnectAttempts means the reconnect attempt cap was hit.
	ErrorMaxReconnectAttempts

	// ErrorServer is an error reported by the server over the socket.
	ErrorServer

	// ErrorInvalidConfig means the client configuration is unusable.
	ErrorInvalidConfig
)

// String returns the string representation of an ErrorCode.
func (e ErrorCode) String() string {
	switch e {
	case ErrorUnknown:
		return "unknown"
	case ErrorTransport:
		return "transport_error"
	case ErrorAuthenticationFailed:
		return "authentication_failed"
	case ErrorNotConnected:
		return "not_connected"
	case ErrorEncoding:
		return "encoding_failure"
	case ErrorDecoding:
		return "decoding_failure"
	case ErrorMaxReconnectAttempts:
		return "max_reconnect_attempts"
	case ErrorServer:
		return "server_error"
	case ErrorInvalidConfig:
		return "invalid_config"
	default:
		return fmt.Sprintf("unknown_code_%d", e)
	}
}

// Error is a structured error with code and context.
type Error struct {
	Code    ErrorCode
	Message string
	Wrapped error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error for errors.Unwrap support.
func (e *Error) Unwrap() error {
	return e.Wrapped
}

// Is implements errors.Is comparison by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError wraps an existing error with code and context.
func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{Code: code, Message: message, Wrapped: err}
}

// CodeOf extracts the ErrorCode from err, or ErrorUnknown.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrorUnknown
}

// IsNotConnected reports whether err means the session was not authenticated.
func IsNotConnected(err error) bool {
	return CodeOf(err) == ErrorNotConnected
}

// IsAuthenticationFailed reports whether err is a handshake failure.
func IsAuthenticationFailed(err error) bool {
	return CodeOf(err) == ErrorAuthenticationFailed
}

// IsTransportError reports whether err is a socket-level failure.
func IsTransportError(err error) bool {
	return CodeOf(err) == ErrorTransport
}
