package errors

import (
	"errors"
	"fmt"
	"strconv"
)

// Error codes used across the generator.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeFormat     = "FORMAT_ERROR"
	CodeLookup     = "LOOKUP_ERROR"
	CodeIndex      = "INDEX_ERROR"
)

// Error is a typed failure of a generation run. Row is the 0-based data
// row the error refers to, or -1 when the error is not tied to a row.
type Error struct {
	Code    string
	Message string
	Row     int
	Column  string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.Message
	if e.Column != "" {
		msg = e.Column + ": " + msg
	}
	if e.Row >= 0 {
		msg = "row " + strconv.Itoa(e.Row) + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches any *Error carrying the same code, so callers can test
// errors.Is(err, ErrValidation).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// Sentinels for errors.Is checks.
var (
	ErrValidation = New(CodeValidation, "invalid timetable row")
	ErrFormat     = New(CodeFormat, "malformed value")
	ErrLookup     = New(CodeLookup, "unknown name")
	ErrIndex      = New(CodeIndex, "index out of range")
)

// New creates an Error not tied to a row.
func New(code, message string) *Error {
	return &Error{Code: code, Message: message, Row: -1}
}

// Wrap attaches a code and message to an existing error.
func Wrap(err error, code, message string) *Error {
	return &Error{Code: code, Message: message, Row: -1, Err: err}
}

// Validation reports a bad cell of the timetable.
func Validation(row int, column, message string) *Error {
	return &Error{Code: CodeValidation, Message: message, Row: row, Column: column}
}

// Format reports a configuration value that could not be parsed.
func Format(value string, err error) *Error {
	return &Error{Code: CodeFormat, Message: fmt.Sprintf("cannot parse %q", value), Row: -1, Err: err}
}

// Lookup reports a name that matches nothing known.
func Lookup(kind, name string) *Error {
	return &Error{Code: CodeLookup, Message: fmt.Sprintf("unknown %s %q", kind, name), Row: -1}
}

// Index reports a 1-based index outside [1, max].
func Index(kind string, index, max int) *Error {
	return &Error{Code: CodeIndex, Message: fmt.Sprintf("%s %d out of range [1, %d]", kind, index, max), Row: -1}
}

// AtRow returns a copy of err bound to a row, leaving other errors untouched.
func AtRow(err error, row int) error {
	var e *Error
	if !errors.As(err, &e) {
		return err
	}
	clone := *e
	clone.Row = row
	return &clone
}
