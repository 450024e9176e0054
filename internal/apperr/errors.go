// Package apperr defines the error taxonomy shared by the stores, the
// composition services and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for status mapping.
type Kind int

const (
	// KindUnknown marks errors that carry no classification.
	KindUnknown Kind = iota
	// KindAuthentication marks a missing or invalid credential.
	KindAuthentication
	// KindAuthorization marks a caller lacking the required role.
	KindAuthorization
	// KindNotFound marks an id with no row.
	KindNotFound
	// KindValidation marks a malformed body or parameter.
	KindValidation
	// KindUpstream marks a failing downstream dependency.
	KindUpstream
	// KindInternal marks a local storage or programming failure.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindUpstream:
		return "upstream"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is a classified error. Message is safe to show to clients; the cause is only logged.
type Error struct {
	kind    Kind
	code    string
	message string
	err     error
}

func (e *Error) Error() string {
	if e.err == nil {
		return fmt.Sprintf("%s: %s", e.code, e.message)
	}
	return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.err)
}

func (e *Error) Unwrap() error {
	return e.err
}

// Kind returns the error classification.
func (e *Error) Kind() Kind {
	return e.kind
}

// Code returns the operation.reason code.
func (e *Error) Code() string {
	return e.code
}

// Message returns the client-facing message.
func (e *Error) Message() string {
	return e.message
}

// New builds a classified error without a cause.
func New(kind Kind, code, message string) *Error {
	return &Error{kind: kind, code: code, message: message}
}

// Wrap builds a classified error around cause.
func Wrap(kind Kind, code, message string, cause error) *Error {
	return &Error{kind: kind, code: code, message: message, err: cause}
}

func Authentication(code, message string) *Error { return New(KindAuthentication, code, message) }
func Authorization(code, message string) *Error  { return New(KindAuthorization, code, message) }
func NotFound(code, message string) *Error       { return New(KindNotFound, code, message) }
func Validation(code, message string) *Error     { return New(KindValidation, code, message) }

// Upstream wraps a downstream failure.
func Upstream(code string, cause error) *Error {
	return Wrap(KindUpstream, code, "bad gateway", cause)
}

// Internal wraps a local failure.
func Internal(code string, cause error) *Error {
	return Wrap(KindInternal, code, "internal error", cause)
}

// KindOf returns the classification of the first *Error in err's chain.
func KindOf(err error) Kind {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.kind
	}
	return KindUnknown
}

// Is reports whether err carries the given classification.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
