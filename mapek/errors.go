// Package mapek implements the autonomic loop: Monitor, Analyze, Plan,
// and Execute stages sharing a copy-on-write Knowledge snapshot, never
// blocking the hot path.
package mapek

import "fmt"

type ErrorCode string

const (
	ErrControllerAlreadyRunning ErrorCode = "ControllerAlreadyRunning"
	ErrControllerNotRunning     ErrorCode = "ControllerNotRunning"
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
