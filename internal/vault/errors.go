package vault

import (
	"errors"
	"fmt"
)

// Code classifies vault failures.
type Code string

const (
	CodeValidation Code = "VALIDATION"
	CodeNotFound   Code = "NOT_FOUND"
	CodeAuth       Code = "AUTH"
	CodeConflict   Code = "CONFLICT"
	CodeThrottled  Code = "THROTTLED"
)

// Error is the structured error returned by every vault operation.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("vault: [%s] %s: %v", e.Code, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("vault: [%s] %s", e.Code, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("vault: [%s] %v", e.Code, e.Err)
	default:
		return fmt.Sprintf("vault: [%s]", e.Code)
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches by code so callers can use the sentinels below with errors.Is.
// A throttled error also matches ErrAuth.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	if e.Code == t.Code {
		return true
	}
	return e.Code == CodeThrottled && t.Code == CodeAuth
}

var (
	ErrValidation = &Error{Code: CodeValidation}
	ErrNotFound   = &Error{Code: CodeNotFound}
	ErrAuth       = &Error{Code: CodeAuth}
	ErrConflict   = &Error{Code: CodeConflict}
	ErrThrottled  = &Error{Code: CodeThrottled}
)

func validationf(format string, args ...any) error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFound builds a NotFound error for the given id.
func NotFound(id string) error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf("item %q not found", id)}
}

// Conflict builds a Conflict error.
func Conflict(msg string) error {
	return &Error{Code: CodeConflict, Message: msg}
}

// CodeOf returns the code of the first *Error in err's chain, or "" when there is none.
func CodeOf(err error) Code {
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Code
	}
	return ""
}
