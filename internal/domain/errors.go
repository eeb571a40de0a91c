package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")

	ErrValidation         = errors.New("validation failed")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrInvalidTransition  = errors.New("invalid transition")
	ErrStateConflict      = errors.New("state conflict")
	ErrTransport          = errors.New("transport error")
	ErrSubmission         = errors.New("submission failed")
)

// Error is a categorized failure. Kind is one of the sentinels above and is
// matched through errors.Is; the remaining fields say which input, action or
// state the failure refers to.
type Error struct {
	Kind     error
	Action   string
	Field    string
	Expected State
	Actual   State
	Message  string
	Err      error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Action != "" {
		fmt.Fprintf(&b, " (%s)", e.Action)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, ": %s", e.Field)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	if e.Expected != "" || e.Actual != "" {
		fmt.Fprintf(&b, " [expected=%s actual=%s]", e.Expected, e.Actual)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func Validation(field, format string, args ...any) error {
	return &Error{Kind: ErrValidation, Field: field, Message: fmt.Sprintf(format, args...)}
}

func Unauthorized(action string, role Role) error {
	return &Error{Kind: ErrUnauthorized, Action: action, Message: fmt.Sprintf("role %q may not perform this action", role)}
}

func PreconditionFailed(action, field, message string) error {
	return &Error{Kind: ErrPreconditionFailed, Action: action, Field: field, Message: message}
}

func InvalidTransition(action string, from State) error {
	return &Error{Kind: ErrInvalidTransition, Action: action, Actual: from, Message: fmt.Sprintf("no %s transition from %s", action, from)}
}

func StateConflict(expected, actual State) error {
	return &Error{Kind: ErrStateConflict, Expected: expected, Actual: actual, Message: "order state changed, refresh and retry"}
}

func Transport(op string, err error) error {
	return &Error{Kind: ErrTransport, Action: op, Err: err}
}

func Submission(err error) error {
	return &Error{Kind: ErrSubmission, Err: err}
}

// AsError returns the first *Error in err's chain.
func AsError(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// Retryable reports whether repeating the request after a refresh can succeed.
func Retryable(err error) bool {
	return errors.Is(err, ErrStateConflict) || errors.Is(err, ErrTransport)
}
