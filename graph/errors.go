package graph

import "fmt"

// ErrorCode classifies ingress-parsing failures. ShapeViolation is the
// only kind this package raises: deeper RDF/SHACL shape enforcement
// belongs to an external collaborator.
type ErrorCode string

const ErrShapeViolation ErrorCode = "ShapeViolation"

// CodedError reports a malformed-ingress condition with the position
// of the offending input, so callers can report the first violation's
// path: the array element index for ParseJSONLD (0 when the document
// itself does not parse) and the zero-based line index for ParseTurtle.
type CodedError struct {
	Code   ErrorCode
	Offset int
	Msg    string
}

func (e *CodedError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s at position %d: %s", e.Code, e.Offset, e.Msg)
}

func shapeErr(offset int, msg string) error {
	return &CodedError{Code: ErrShapeViolation, Offset: offset, Msg: msg}
}
