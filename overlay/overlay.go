package overlay

import "github.com/rubintree/loom/doctrine"

// ProofState is the closed state ΔΣ moves through on its way to
// installation.
type ProofState int

const (
	Unproven ProofState = iota
	ProofPending
	Proven
	Rejected
)

func (s ProofState) String() string {
	switch s {
	case Unproven:
		return "Unproven"
	case ProofPending:
		return "ProofPending"
	case Proven:
		return "Proven"
	case Rejected:
		return "Rejected"
	default:
		return "Unknown"
	}
}

// ChangeKind enumerates ΔΣ.changes' typed operations.
type ChangeKind int

const (
	ChangeScaleMultiInstance ChangeKind = iota
	ChangeAdjustPerformance
	ChangeWidenPolicy
	ChangeNarrowPolicy
)

// Change is one typed mutation to the artifact, scoped to a pattern
// id and (for node-local changes) a node index.
type Change struct {
	Kind            ChangeKind
	TargetPatternID uint8
	TargetNodeIndex uint32
	Delta           int32 // ScaleMultiInstance
	TargetTicks     int   // AdjustPerformance
	Policy          doctrine.PolicyElement
}

// Scope is the set of pattern ids and node indices ΔΣ touches, used
// by the validator to know which pattern invariant checks apply.
type Scope struct {
	PatternIDs  []uint8
	NodeIndices []uint32
}

// Overlay is a proposed mutation to A, carrying its proof state. Only
// a Validator may advance state; Promote refuses anything not Proven.
// The unexported proven field is the closest idiomatic Go equivalent
// to a type-level proof guarantee: it is set exactly once, by
// Validate, and nothing outside this package can set it.
type Overlay struct {
	ID       [32]byte // H(ΔΣ): content hash of Scope+Changes, the validator's memoization key
	Scope    Scope
	Changes  []Change
	State    ProofState
	Rejected string // reason, set when State == Rejected

	proven bool
}

// IsProven reports whether o has passed validation and may be
// promoted.
func (o *Overlay) IsProven() bool {
	return o != nil && o.State == Proven && o.proven
}

func markProven(o *Overlay) {
	o.State = Proven
	o.proven = true
}

func markRejected(o *Overlay, reason string) {
	o.State = Rejected
	o.Rejected = reason
	o.proven = false
}
