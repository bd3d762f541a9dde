package common

import "errors"

// Error kinds. Every service operation fails with exactly one of these;
// callers match them with errors.Is.
var (
	// user-correctable input problems (missing or blank fields)
	ErrorValidation = errors.New("validation error")

	// duplicate username or email
	ErrorAlreadyExists = errors.New("already exists")

	ErrorNotFound     = errors.New("not found")
	ErrorUnauthorized = errors.New("unauthorized")

	// hashing or persistence failures
	ErrorInternal = errors.New("internal error")

	// signature invalid, expired or malformed token
	ErrInvalidToken = errors.New("invalid token")

	// a validly signed refresh token that is no longer the stored one
	ErrRefreshTokenReuse = errors.New("refresh token reuse detected")
)

// Error is a kind plus a human-readable message for the client.
// Cause keeps the underlying error for logs; it is never shown to clients.
type Error struct {
	Kind  error
	Msg   string
	Cause error
}

// NewError builds an *Error of the given kind.
func NewError(kind error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap builds an *Error of the given kind keeping cause for diagnostics.
func Wrap(kind error, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Cause: cause}
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

// Message returns the client-facing message of err. Internal errors never
// expose their cause.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Error()
	}
	if errors.Is(err, ErrorInternal) || err == nil {
		return ErrorInternal.Error()
	}
	for _, kind := range []error{ErrorValidation, ErrorAlreadyExists, ErrorNotFound, ErrorUnauthorized, ErrInvalidToken} {
		if errors.Is(err, kind) {
			return kind.Error()
		}
	}
	return ErrorInternal.Error()
}
