package types

import (
	"errors"
	"fmt"
)

// ErrorCode classifies failures so callers can map them to a suggestion
type ErrorCode string

const (
	ErrToolUnavailable   ErrorCode = "TOOL_UNAVAILABLE"
	ErrParseAmbiguous    ErrorCode = "PARSE_AMBIGUOUS"
	ErrProfileUnresolved ErrorCode = "PROFILE_UNRESOLVED"
	ErrCommandFailed     ErrorCode = "COMMAND_FAILED"
	ErrConflictDetected  ErrorCode = "CONFLICT_DETECTED"
	ErrInvalidInput      ErrorCode = "INVALID_INPUT"
	ErrInventoryFailed   ErrorCode = "INVENTORY_FAILED"
)

// Error is a classified error carrying an actionable hint for the user
type Error struct {
	Code    ErrorCode
	Message string
	Hint    string
	Wrapped error
}

func (e *Error) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *Error) Unwrap() error {
	return e.Wrapped
}

// Is matches any *Error with the same code
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// WithHint sets the user-facing suggestion
func (e *Error) WithHint(format string, args ...interface{}) *Error {
	e.Hint = fmt.Sprintf(format, args...)
	return e
}

// NewError creates a classified error
func NewError(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError wraps err with a code; returns nil for a nil err
func WrapError(err error, code ErrorCode, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Wrapped: err}
}

// IsCode reports whether err (or anything it wraps) carries code
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	for err != nil {
		if errors.As(err, &e) {
			if e.Code == code {
				return true
			}
			err = e.Wrapped
			continue
		}
		return false
	}
	return false
}

// HintOf returns the first hint found along the wrap chain
func HintOf(err error) string {
	var e *Error
	for err != nil {
		if !errors.As(err, &e) {
			return ""
		}
		if e.Hint != "" {
			return e.Hint
		}
		err = e.Wrapped
	}
	return ""
}
