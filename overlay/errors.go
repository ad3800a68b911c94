// Package overlay implements ΔΣ: a typed, proof-gated mutation to a
// sealed artifact, and the validator/promotion machinery that proves
// it safe under doctrine before installing it.
package overlay

import "fmt"

type ErrorCode string

const (
	ErrObligationFailed  ErrorCode = "ObligationFailed"
	ErrNotProven         ErrorCode = "NotProven"
	ErrPromotionRaced    ErrorCode = "PromotionRaced"
	ErrConcurrencyCapped ErrorCode = "ConcurrencyCapped"
)

type CodedError struct {
	Code ErrorCode
	Msg  string
}

func (e *CodedError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func coded(code ErrorCode, msg string) error {
	return &CodedError{Code: code, Msg: msg}
}
