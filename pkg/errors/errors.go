// Package errors defines the error kinds services share and how each one is
// presented over HTTP.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Sentinel kinds. Wrap them with %w so Describe can classify the failure.
var (
	ErrNotFound       = errors.New("resource not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrServiceUnavail = errors.New("service unavailable")

	// ErrBackendUnavailable marks failures of the search backend: transport
	// errors, error responses and undecodable bodies.
	ErrBackendUnavailable = errors.New("search backend unavailable")
)

// AppError carries the public code and message of a failure. Err keeps the
// kind and cause for errors.Is and logging.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound reports a missing resource.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s with id %s not found", resource, id),
		Status:  http.StatusNotFound,
		Err:     ErrNotFound,
	}
}

// InvalidInput reports a request the caller must fix. message is shown as is.
func InvalidInput(message string) *AppError {
	return &AppError{
		Code:    "INVALID_INPUT",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidInput,
	}
}

// ServiceUnavailable reports an operation the running configuration does
// not provide.
func ServiceUnavailable(message string) *AppError {
	return &AppError{
		Code:    "SERVICE_UNAVAILABLE",
		Message: message,
		Status:  http.StatusServiceUnavailable,
		Err:     ErrServiceUnavail,
	}
}

// BackendFailure wraps a search backend failure. The cause is kept for logs
// and hidden from callers.
func BackendFailure(err error) *AppError {
	return &AppError{
		Code:    "BACKEND_FAILURE",
		Message: "the search backend failed to answer",
		Status:  http.StatusBadGateway,
		Err:     fmt.Errorf("%w: %w", ErrBackendUnavailable, err),
	}
}

// Public is the part of an error that may be returned to a caller.
type Public struct {
	Status  int
	Code    string
	Message string
}

type kind struct {
	target error
	Public
}

// kinds is checked in order. An empty message shows the error text itself.
var kinds = []kind{
	{ErrNotFound, Public{http.StatusNotFound, "NOT_FOUND", "resource not found"}},
	{ErrInvalidInput, Public{http.StatusBadRequest, "INVALID_INPUT", ""}},
	{ErrServiceUnavail, Public{http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "service unavailable"}},
	{ErrBackendUnavailable, Public{http.StatusBadGateway, "BACKEND_FAILURE", "the search backend failed to answer"}},
	{context.DeadlineExceeded, Public{http.StatusGatewayTimeout, "TIMEOUT", "the request took too long"}},
}

var internal = Public{http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred"}

// Describe classifies err. An AppError anywhere in the chain wins, then the
// first matching sentinel kind; anything else is an internal error whose
// text is not exposed.
func Describe(err error) Public {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return Public{Status: appErr.Status, Code: appErr.Code, Message: appErr.Message}
	}
	for _, k := range kinds {
		if errors.Is(err, k.target) {
			p := k.Public
			if p.Message == "" {
				p.Message = err.Error()
			}
			return p
		}
	}
	return internal
}

// HTTPStatus returns the status Describe assigns to err.
func HTTPStatus(err error) int {
	return Describe(err).Status
}
