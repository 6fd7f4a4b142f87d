package apierr

import (
	"errors"
	"net/http"
)

// Stable machine-readable error codes surfaced across the API boundary.
const (
	CodeInvalidCredentials  = "InvalidCredentials"
	CodeTokenExpired        = "TokenExpired"
	CodeTokenMalformed      = "TokenMalformed"
	CodeUnauthenticated     = "Unauthenticated"
	CodeInvalidArgument     = "InvalidArgument"
	CodeInvalidRange        = "InvalidRange"
	CodeUpstreamTimeout     = "UpstreamTimeout"
	CodeUpstreamUnavailable = "UpstreamUnavailable"
)

// Error pairs a stable code with a human-readable message. Internal detail
// (driver errors, schema, stack traces) never rides along.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string { return e.Code + ": " + e.Message }

// Status maps the code to its HTTP status.
func (e *Error) Status() int {
	switch e.Code {
	case CodeInvalidArgument, CodeInvalidRange:
		return http.StatusBadRequest
	case CodeInvalidCredentials, CodeTokenExpired, CodeTokenMalformed, CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeUpstreamTimeout:
		return http.StatusGatewayTimeout
	case CodeUpstreamUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func New(code, message string) *Error { return &Error{Code: code, Message: message} }

func InvalidCredentials() *Error {
	return New(CodeInvalidCredentials, "incorrect username or password")
}

func TokenExpired() *Error { return New(CodeTokenExpired, "session token expired") }

func TokenMalformed() *Error { return New(CodeTokenMalformed, "session token invalid") }

func Unauthenticated() *Error { return New(CodeUnauthenticated, "missing session token") }

func InvalidArgument(message string) *Error { return New(CodeInvalidArgument, message) }

func InvalidRange(message string) *Error { return New(CodeInvalidRange, message) }

func UpstreamTimeout() *Error { return New(CodeUpstreamTimeout, "data store timed out") }

func UpstreamUnavailable() *Error {
	return New(CodeUpstreamUnavailable, "data store unavailable")
}

// From unwraps err into an *Error when one is present in the chain.
func From(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}
