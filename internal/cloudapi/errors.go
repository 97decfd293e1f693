package cloudapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Code classifies a control plane failure. Callers branch on the code,
// never on the message text.
type Code string

const (
	CodeNotFound        Code = "not_found"
	CodeAlreadyExists   Code = "already_exists"
	CodeVersionConflict Code = "version_conflict"
	CodeValidation      Code = "validation"
	CodeTransient       Code = "transient"
	CodeUnauthorized    Code = "unauthorized"
	CodeUnknown         Code = "unknown"
)

// gRPC status codes as reported by the JSON gateway.
const (
	grpcInvalidArgument    = 3
	grpcDeadlineExceeded   = 4
	grpcNotFound           = 5
	grpcAlreadyExists      = 6
	grpcPermissionDenied   = 7
	grpcResourceExhausted  = 8
	grpcFailedPrecondition = 9
	grpcAborted            = 10
	grpcOutOfRange         = 11
	grpcUnavailable        = 14
	grpcUnauthenticated    = 16
)

type Error struct {
	Code     Code
	Op       string
	Resource string
	Status   int
	Message  string
	Err      error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Resource != "" {
		return fmt.Sprintf("%s %s: %s: %s", e.Op, e.Resource, e.Code, msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the classification of err, or CodeUnknown when err did not
// come from this package.
func CodeOf(err error) Code {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return CodeUnknown
}

func IsNotFound(err error) bool        { return CodeOf(err) == CodeNotFound }
func IsAlreadyExists(err error) bool   { return CodeOf(err) == CodeAlreadyExists }
func IsVersionConflict(err error) bool { return CodeOf(err) == CodeVersionConflict }
func IsValidation(err error) bool      { return CodeOf(err) == CodeValidation }
func IsTransient(err error) bool       { return CodeOf(err) == CodeTransient }

// classify maps an HTTP status and optional gateway status code to a Code.
// The gateway code wins when present because some conflicts surface as 400.
func classify(status int, grpcCode int) Code {
	switch grpcCode {
	case grpcNotFound:
		return CodeNotFound
	case grpcAlreadyExists:
		return CodeAlreadyExists
	case grpcFailedPrecondition, grpcAborted:
		return CodeVersionConflict
	case grpcInvalidArgument, grpcOutOfRange:
		return CodeValidation
	case grpcUnavailable, grpcDeadlineExceeded, grpcResourceExhausted:
		return CodeTransient
	case grpcUnauthenticated, grpcPermissionDenied:
		return CodeUnauthorized
	}

	switch {
	case status == http.StatusNotFound:
		return CodeNotFound
	case status == http.StatusConflict, status == http.StatusPreconditionFailed:
		return CodeVersionConflict
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return CodeValidation
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return CodeUnauthorized
	case status == http.StatusTooManyRequests, status == http.StatusRequestTimeout, status >= 500:
		return CodeTransient
	}
	return CodeUnknown
}

// transportError wraps a failure that happened before a response was read.
// Network failures are transient, caller cancellation is not.
func transportError(op, resource string, err error) *Error {
	code := CodeUnknown
	var netErr net.Error
	switch {
	case errors.Is(err, context.Canceled):
		code = CodeUnknown
	case errors.Is(err, context.DeadlineExceeded):
		code = CodeTransient
	case errors.As(err, &netErr):
		code = CodeTransient
	}
	return &Error{Code: code, Op: op, Resource: resource, Err: err}
}
