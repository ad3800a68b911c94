// Package compiler implements μ: O → A, the content-addressed,
// idempotent lowering from a declarative graph model into packed IR.
package compiler

import "fmt"

// ErrorCode enumerates the four compiler failure kinds, each with the
// same propagation policy: the previous A is always left untouched.
type ErrorCode string

const (
	ErrShapeViolation ErrorCode = "ShapeViolation"
	ErrUnsupported    ErrorCode = "Unsupported"
	ErrAmbiguous      ErrorCode = "Ambiguous"
	ErrCalendar       ErrorCode = "CalendarError"
)

// CodedError is the compiler's single error type; Path names the
// first-violating node or quad for ShapeViolation.
type CodedError struct {
	Code ErrorCode
	Path string
	Msg  string
}

func (e *CodedError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Path == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Msg)
	}
	return fmt.Sprintf("%s at %s: %s", e.Code, e.Path, e.Msg)
}

func coded(code ErrorCode, path, msg string) error {
	return &CodedError{Code: code, Path: path, Msg: msg}
}
