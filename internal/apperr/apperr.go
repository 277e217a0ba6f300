// Package apperr defines the small set of error kinds the ledger reports to callers.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

type Kind string

const (
	KindValidation        Kind = "validation"
	KindNotFound          Kind = "not_found"
	KindInvalidTransition Kind = "invalid_transition"
	KindShiftConflict     Kind = "shift_conflict"
	KindNoActiveShift     Kind = "no_active_shift"
	KindOverReceipt       Kind = "over_receipt"
	KindNotAuthorized     Kind = "not_authorized"
	KindPermissionDenied  Kind = "permission_denied"
	KindPersistence       Kind = "persistence"
)

// Sentinels for errors.Is; they match any *Error of the same kind.
var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition}
	ErrShiftConflict     = &Error{Kind: KindShiftConflict}
	ErrNoActiveShift     = &Error{Kind: KindNoActiveShift}
	ErrOverReceipt       = &Error{Kind: KindOverReceipt}
	ErrNotAuthorized     = &Error{Kind: KindNotAuthorized}
	ErrPermissionDenied  = &Error{Kind: KindPermissionDenied}
	ErrPersistence       = &Error{Kind: KindPersistence}
)

// Violation is a single field-level validation failure.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type Error struct {
	Kind       Kind
	Message    string
	Violations []Violation
	Err        error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if len(e.Violations) > 0 {
		parts := make([]string, 0, len(e.Violations))
		for _, v := range e.Violations {
			parts = append(parts, v.Field+": "+v.Message)
		}
		msg = msg + " (" + strings.Join(parts, "; ") + ")"
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Err == nil && len(t.Violations) == 0
}

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func Validation(format string, args ...any) *Error {
	return New(KindValidation, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, format, args...)
}

func InvalidTransition(format string, args ...any) *Error {
	return New(KindInvalidTransition, format, args...)
}

func Persistence(err error) *Error {
	return &Error{Kind: KindPersistence, Message: "persistence failure", Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "" when there is none.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}

// ViolationsOf returns the field violations carried by err, if any.
func ViolationsOf(err error) []Violation {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Violations
	}
	return nil
}
