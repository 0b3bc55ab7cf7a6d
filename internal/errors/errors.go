// Package errors provides structured error types for planview.
package errors

import (
	"errors"
	"strings"
)

// Code represents a unique error code.
type Code string

// Error codes for planview.
const (
	// Initialization errors
	CodeNotInitialized Code = "PLANVIEW_NOT_INITIALIZED"

	// Record errors
	CodeRecordParseFailed Code = "RECORD_PARSE_FAILED"
	CodeRecordWriteFailed Code = "RECORD_WRITE_FAILED"

	// Item errors
	CodeItemNotFound  Code = "ITEM_NOT_FOUND"
	CodeRefUnresolved Code = "REF_UNRESOLVED"

	// Transition errors
	CodeTransitionInvalid Code = "TRANSITION_INVALID"
)

// Error is the structured error type for planview.
type Error struct {
	Code  Code   `json:"code"`
	What  string `json:"what"`
	Why   string `json:"why,omitempty"`
	Fix   string `json:"fix,omitempty"`
	Cause error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.What)
	if e.Why != "" {
		b.WriteString(": ")
		b.WriteString(e.Why)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// UserMessage returns a user-friendly message for CLI output.
func (e *Error) UserMessage() string {
	var b strings.Builder
	b.WriteString("Error: ")
	b.WriteString(e.What)
	if e.Why != "" {
		b.WriteString("\n  Why: ")
		b.WriteString(e.Why)
	}
	if e.Fix != "" {
		b.WriteString("\n  Fix: ")
		b.WriteString(e.Fix)
	}
	return b.String()
}

// New creates a structured error.
func New(code Code, what string) *Error {
	return &Error{Code: code, What: what}
}

// Wrap creates a structured error with an underlying cause.
func Wrap(code Code, what string, cause error) *Error {
	return &Error{Code: code, What: what, Cause: cause}
}

// WithWhy adds a reason to the error.
func (e *Error) WithWhy(why string) *Error {
	e.Why = why
	return e
}

// WithFix adds a suggested fix to the error.
func (e *Error) WithFix(fix string) *Error {
	e.Fix = fix
	return e
}

// CodeOf extracts the code from an error, or "" if it is not a planview error.
func CodeOf(err error) Code {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// HasCode reports whether any error in err's chain carries the given code.
func HasCode(err error, code Code) bool {
	return CodeOf(err) == code
}
