package auth

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the HTTP boundary
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuthentication
	KindAuthorization
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// Error is a classified application error. Message is safe to show to clients;
// Err carries the underlying cause and is only ever logged.
type Error struct {
	Kind    Kind
	Message string
	Field   string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ValidationError reports missing or malformed input
func ValidationError(field, message string) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: message}
}

// AuthenticationError reports bad credentials or a missing/invalid token
func AuthenticationError(message string) *Error {
	return &Error{Kind: KindAuthentication, Message: message}
}

// AuthorizationError reports an authenticated principal lacking the required role
func AuthorizationError(message string) *Error {
	return &Error{Kind: KindAuthorization, Message: message}
}

// NotFoundError reports an absent administrative target
func NotFoundError(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// InternalError wraps a store or crypto failure
func InternalError(err error) *Error {
	return &Error{Kind: KindInternal, Message: "internal server error", Err: err}
}

// KindOf classifies err. Unclassified errors are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Token verification failures. Callers must not expose which one occurred.
var (
	ErrTokenInvalid   = errors.New("token invalid")
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenMalformed = errors.New("token malformed")
)
