// Package apperr defines the failure kinds surfaced to the front end.
package apperr

import (
	"errors"
	"fmt"
)

// Kind categorizes an application error.
type Kind int

const (
	// KindTransport indicates the backend could not be reached or answered non-2xx.
	KindTransport Kind = iota
	// KindMalformed indicates the backend answered with a body that is not a valid envelope.
	KindMalformed
	// KindTimeout indicates no response arrived before the deadline.
	KindTimeout
	// KindBackend indicates the remote function rejected the call.
	KindBackend
	// KindValidation indicates a client-side precondition failed; nothing was sent.
	KindValidation
	// KindSessionInvalid indicates the backend no longer accepts the session.
	KindSessionInvalid
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindMalformed:
		return "malformed"
	case KindTimeout:
		return "timeout"
	case KindBackend:
		return "backend"
	case KindValidation:
		return "validation"
	case KindSessionInvalid:
		return "session_invalid"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by the bridge, the view model and
// the controller.
type Error struct {
	Kind    Kind
	Op      string
	Field   string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsTransportFailure reports whether the error belongs to the transport
// family (unreachable, non-2xx or malformed body).
func (e *Error) IsTransportFailure() bool {
	return e.Kind == KindTransport || e.Kind == KindMalformed
}

// Transport wraps a network level failure.
func Transport(op string, cause error) *Error {
	return &Error{Kind: KindTransport, Op: op, Message: "transport failure", Cause: cause}
}

// Malformed wraps a decoding failure of the backend response.
func Malformed(op string, cause error) *Error {
	return &Error{Kind: KindMalformed, Op: op, Message: "malformed response", Cause: cause}
}

// Timeout reports an expired deadline.
func Timeout(op string) *Error {
	return &Error{Kind: KindTimeout, Op: op, Message: "Request timed out"}
}

// Backend carries the message of an explicit backend rejection.
func Backend(op, message string) *Error {
	return &Error{Kind: KindBackend, Op: op, Message: message}
}

// SessionInvalid reports that the backend rejected the session.
func SessionInvalid(op, message string) *Error {
	if message == "" {
		message = "Session is no longer valid, please log in again"
	}
	return &Error{Kind: KindSessionInvalid, Op: op, Message: message}
}

// Validation reports a failed client-side precondition on field.
func Validation(field, message string) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: message}
}

// Validationf is Validation with a formatted message.
func Validationf(field, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: fmt.Sprintf(format, args...)}
}

// As extracts an *Error from an error chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	appErr, ok := As(err)
	return ok && appErr.Kind == kind
}

// KindOf returns the kind of err, defaulting to KindTransport for foreign errors.
func KindOf(err error) Kind {
	if appErr, ok := As(err); ok {
		return appErr.Kind
	}
	return KindTransport
}

// UserMessage renders err for display, falling back when the message is empty.
func UserMessage(err error, fallback string) string {
	if err == nil {
		return ""
	}
	if appErr, ok := As(err); ok && appErr.Message != "" {
		if appErr.IsTransportFailure() && appErr.Cause != nil {
			return appErr.Error()
		}
		return appErr.Message
	}
	if fallback != "" {
		return fallback
	}
	return err.Error()
}
