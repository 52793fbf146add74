package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can react without parsing messages.
type Kind string

const (
	InvalidInput  Kind = "invalid_input"
	Upstream      Kind = "upstream"
	Configuration Kind = "configuration"
	NotFound      Kind = "not_found"
	Conflict      Kind = "conflict"
	Internal      Kind = "internal"
)

// Error is the typed failure returned by services.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	// Status and Body are set for upstream HTTP failures.
	Status int
	Body   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind, so errors.Is(err, &Error{Kind: NotFound}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Op == "" || t.Op == e.Op)
}

// New builds an error of the given kind.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap builds an error of the given kind around a cause.
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Invalid reports bad user input; no provider call has been attempted.
func Invalid(op, message string) *Error {
	return New(InvalidInput, op, message)
}

// UpstreamFailure reports a provider, network or payload failure.
func UpstreamFailure(op string, err error) *Error {
	return Wrap(Upstream, op, err)
}

// KindOf returns the kind of err, or Internal for untyped errors.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
