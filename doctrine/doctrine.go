// Package doctrine holds Q: the global, non-negotiable invariants and
// bounds that gate hot-path execution and overlay promotion.
package doctrine

import (
	"fmt"
	"time"
)

// Doctrine is the closed set of recognized configuration options. No
// field is extensible without a code change.
type Doctrine struct {
	MaxExecTicks             int           `yaml:"max_exec_ticks"`
	MaxRunLen                int           `yaml:"max_run_len"`
	MaxCallDepth             int           `yaml:"max_call_depth"`
	MaxConcurrentAdaptations int           `yaml:"max_concurrent_adaptations"`
	MinSLOCompliance         float64       `yaml:"min_slo_compliance"`
	MaxFailureRate           float64       `yaml:"max_failure_rate"`
	MapeKCycle               time.Duration `yaml:"mape_k_cycle"`
	FoldWindow               int           `yaml:"fold_window"`
	StrictSHACL              bool          `yaml:"strict_shacl"`

	// EnableCancelMIComp gates pattern 25 ("Cancel Multiple Instance
	// Activity's compensation companion"): the compiler only admits a
	// node classified to it when this flag is set. Default false
	// leaves pattern 25 unused.
	EnableCancelMIComp bool `yaml:"enable_cancel_mi_comp"`
}

// Default returns the documented baseline doctrine.
func Default() Doctrine {
	return Doctrine{
		MaxExecTicks:             8,
		MaxRunLen:                8,
		MaxCallDepth:             8,
		MaxConcurrentAdaptations: 10,
		MinSLOCompliance:         0.95,
		MaxFailureRate:           0.05,
		MapeKCycle:               30 * time.Second,
		FoldWindow:               512,
		StrictSHACL:              false,
		EnableCancelMIComp:       false,
	}
}

// ErrorCode classifies doctrine configuration failures.
type ErrorCode string

const ErrInvalidDoctrine ErrorCode = "GuardViolation"

// CodedError reports a doctrine validation failure.
type CodedError struct {
	Code  ErrorCode
	Field string
	Msg   string
}

func (e *CodedError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s: %s: %s", e.Code, e.Field, e.Msg)
}

func invalid(field, msg string) error {
	return &CodedError{Code: ErrInvalidDoctrine, Field: field, Msg: msg}
}

// Validate checks every field's documented constraint, failing fast on
// the first violation. MaxExecTicks and MaxRunLen are validated
// independently: they default equal but are never required to stay
// equal.
func (d Doctrine) Validate() error {
	if d.MaxExecTicks < 1 {
		return invalid("max_exec_ticks", "must be >= 1")
	}
	if d.MaxRunLen < 1 {
		return invalid("max_run_len", "must be >= 1")
	}
	if d.MaxCallDepth < 1 {
		return invalid("max_call_depth", "must be >= 1")
	}
	if d.MaxConcurrentAdaptations < 0 {
		return invalid("max_concurrent_adaptations", "must be >= 0")
	}
	if d.MinSLOCompliance < 0 || d.MinSLOCompliance > 1 {
		return invalid("min_slo_compliance", "must be in [0, 1]")
	}
	if d.MaxFailureRate < 0 || d.MaxFailureRate > 1 {
		return invalid("max_failure_rate", "must be in [0, 1]")
	}
	if d.MapeKCycle <= 0 {
		return invalid("mape_k_cycle", "must be > 0")
	}
	if d.FoldWindow <= 0 || d.FoldWindow&(d.FoldWindow-1) != 0 {
		return invalid("fold_window", "must be a power of two")
	}
	return nil
}

// Hash returns a stable content hash of the doctrine, used as
// H(doctrine) in the sealed artifact trailer.
func (d Doctrine) Hash() [32]byte {
	return hashDoctrine(d)
}
