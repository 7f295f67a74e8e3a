package credentials

import (
	"errors"
	"fmt"
)

// Error kinds. Callers map them to transport status codes with errors.Is.
var (
	ErrValidation     = errors.New("validation failed")
	ErrAuthentication = errors.New("authentication failed")
	ErrNotFound       = errors.New("not found")
	ErrInternal       = errors.New("internal error")
)

// Error is a typed operation error with a stable Op + Kind contract.
// Msg is client-safe: it never carries secrets or says which credential was wrong.
type Error struct {
	Op   string
	Kind error
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, e.Kind, e.Msg)
}

// Unwrap exposes both the kind and the underlying cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Message returns the client-facing message for err, or fallback when err carries none.
func Message(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) && e.Msg != "" {
		return e.Msg
	}
	return fallback
}

func IsValidation(err error) bool     { return errors.Is(err, ErrValidation) }
func IsAuthentication(err error) bool { return errors.Is(err, ErrAuthentication) }
func IsNotFound(err error) bool       { return errors.Is(err, ErrNotFound) }

func validationError(op, msg string) error {
	return &Error{Op: op, Kind: ErrValidation, Msg: msg}
}

func notFoundError(op string) error {
	return &Error{Op: op, Kind: ErrNotFound, Msg: "not found"}
}

func internalError(op string, err error) error {
	return &Error{Op: op, Kind: ErrInternal, Err: err}
}
