package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for transport mapping.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindAuthentication
	KindAuthorization
	KindConflict
	KindCapacity
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindConflict:
		return "conflict"
	case KindCapacity:
		return "capacity"
	case KindInternal:
		return "internal"
	}
	return "internal"
}

// Error is an application error carrying a kind and a client-safe message.
// Reason is for server-side logs only and is never sent to clients.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Reason  string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Kind.String() + ": " + e.Message
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Validation reports missing or invalid input.
func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Code: "validation_error", Message: fmt.Sprintf(format, args...)}
}

// NotFound reports an absent resource, e.g. NotFound("event").
func NotFound(resource string) *Error {
	return &Error{Kind: KindNotFound, Code: "not_found", Message: resource + " not found"}
}

// Unauthenticated reports a missing, invalid or stale credential.
func Unauthenticated(msg string) *Error {
	if msg == "" {
		msg = "authentication required"
	}
	return &Error{Kind: KindAuthentication, Code: "unauthenticated", Message: msg}
}

// Forbidden reports a denied action. The client always sees "not authorized".
func Forbidden(reason string) *Error {
	return &Error{Kind: KindAuthorization, Code: "not_authorized", Message: "not authorized", Reason: reason}
}

// Conflict reports a uniqueness violation.
func Conflict(msg string) *Error {
	return &Error{Kind: KindConflict, Code: "conflict", Message: msg}
}

// AlreadyRegistered is the conflict for a duplicate (event, user) registration.
func AlreadyRegistered() *Error {
	return &Error{Kind: KindConflict, Code: "already_registered", Message: "already registered for this event"}
}

// Full reports that an event has no seats remaining.
func Full() *Error {
	return &Error{Kind: KindCapacity, Code: "event_full", Message: "event is full"}
}

// Internal wraps an unexpected failure. Its cause is logged but not returned to clients.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Code: "internal_error", Message: "something went wrong", Err: err}
}

// As returns err as *Error. Errors that are not application errors become Internal.
func As(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return Internal(err)
}

// KindOf returns the kind of err, KindInternal for foreign errors.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	return As(err).Kind
}

// Is reports whether err is an application error of kind k.
func Is(err error, k Kind) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Kind == k
}

// HTTPStatus maps a kind to its HTTP status code.
func HTTPStatus(k Kind) int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindConflict, KindCapacity:
		return http.StatusConflict
	case KindInternal:
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}
