package api

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

type Kind int

const (
	// No response from the service.
	NetworkFailure Kind = iota
	// Credential missing, expired or rejected.
	Unauthorized
	NotFound
	// 4xx with a message for the user.
	ValidationFailure
	// 5xx
	ServerFailure
)

func (k Kind) String() string {
	switch k {
	case NetworkFailure:
		return "network_failure"
	case Unauthorized:
		return "unauthorized"
	case NotFound:
		return "not_found"
	case ValidationFailure:
		return "validation_failure"
	case ServerFailure:
		return "server_failure"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is returned by every Client call that failed, possibly wrapped.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s (%d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

func (e *Error) Cause() error { return e.cause }

// KindOf finds the *Error in err's chain. ok is false for errors that did not
// come from the client.
func KindOf(err error) (kind Kind, ok bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind, true
	}
	return 0, false
}

func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// MessageOf is the text to show the user for err.
func MessageOf(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return "Something went wrong!"
}

func NewUnauthorized(message string) *Error {
	return &Error{Kind: Unauthorized, Message: message}
}

func networkError(err error) *Error {
	return &Error{Kind: NetworkFailure, Message: err.Error(), cause: err}
}

func statusError(status int, message string) *Error {
	if message == "" {
		message = http.StatusText(status)
	}
	e := &Error{Status: status, Message: message}
	switch {
	case status == http.StatusUnauthorized:
		e.Kind = Unauthorized
	case status == http.StatusNotFound:
		e.Kind = NotFound
	case status >= 500:
		e.Kind = ServerFailure
	default:
		e.Kind = ValidationFailure
	}
	return e
}
