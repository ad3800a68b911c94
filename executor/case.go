package executor

import (
	"github.com/google/uuid"

	"github.com/rubintree/loom/doctrine"
	"github.com/rubintree/loom/ir"
)

// MICounter tracks a multi-instance node's instance population: the
// design/runtime-resolved total, how many have completed, and how
// many were cancelled out from under a still-running set (pattern 22).
type MICounter struct {
	Total     uint32
	Completed uint32
	Cancelled uint32
}

// InitialInputs carries the admission-time values an artifact's
// ingress shape requires: currently just the set of role bindings
// the case starts with, since the IR does not (yet) name typed data
// ports beyond node/timer/role records.
type InitialInputs struct {
	Roles map[string]string
}

// Case is one in-flight instance of a sealed artifact: session
// isolation holds because a Case never stores a pointer into another
// Case's state — only its own masks, counters and event ring.
type Case struct {
	SessionID     uuid.UUID
	Artifact      *ir.Artifact
	Doctrine      doctrine.Doctrine
	TokenMask     ir.Mask128
	CompletedMask ir.Mask128
	CancelledMask ir.Mask128
	MilestoneMask ir.Mask128
	MICounters    map[uint32]MICounter
	events        *eventRing
	children      map[uint32][]*Case // thread-split (38) sub-case handles, keyed by the spawning node

	interleavedOwner int32 // node index currently holding the mutex token for pattern 17; -1 if none

	Faulted     bool
	FaultReason string
	TicksUsed   int
}

const defaultEventRingCapacity = 64

// Admit validates inputs against the artifact's ingress shape,
// constructs a Case, and sets TokenMask to the start nodes (every
// node whose InMask is empty). cfg supplies the MaxRunLen/MaxExecTicks
// budgets Step enforces.
func Admit(a *ir.Artifact, caseID uuid.UUID, inputs InitialInputs, cfg doctrine.Doctrine) (*Case, error) {
	if a == nil {
		return nil, coded(ErrAdmissionRejected, "nil artifact")
	}
	if len(a.Nodes) == 0 {
		return nil, coded(ErrAdmissionRejected, "artifact declares no nodes")
	}
	for i, n := range a.Nodes {
		if int(n.Index) != i {
			return nil, coded(ErrAdmissionRejected, "artifact node index is not dense; stale compilation")
		}
	}
	for role := range inputs.Roles {
		if role == "" {
			return nil, coded(ErrAdmissionRejected, "malformed ingress input: empty role name")
		}
	}

	c := &Case{
		SessionID:        caseID,
		Artifact:         a,
		Doctrine:         cfg,
		MICounters:       make(map[uint32]MICounter),
		events:           newEventRing(defaultEventRingCapacity),
		children:         make(map[uint32][]*Case),
		interleavedOwner: -1,
	}
	for _, n := range a.Nodes {
		if n.InMask.IsZero() {
			c.TokenMask = c.TokenMask.Set(n.Index)
		}
	}
	return c, nil
}

// InjectEvent delivers an external event into the case's own FIFO
// ring. Ordering is preserved per case; no ordering is implied or
// required across cases.
func InjectEvent(c *Case, ev Event) error {
	if c.Faulted {
		return coded(ErrCancellationRequested, "case is faulted")
	}
	if !c.events.push(ev) {
		return coded(ErrAdmissionRejected, "event ring full")
	}
	return nil
}

// CancelScope selects what Cancel removes from the live mask set.
type CancelScope struct {
	Kind   CancelKind
	Target uint32 // node index, meaningful for Activity/Region/MI scopes
}

// CancelKind enumerates the cancellation scopes patterns 19-22 and 42
// operate over.
type CancelKind uint8

const (
	CancelActivity CancelKind = iota
	CancelRegion
	CancelMultiInstance
	CancelWholeCase
)

// Cancel removes the named scope from the case's live masks via mask
// subtraction, the mechanism behind patterns 19-22 and 42.
func Cancel(c *Case, scope CancelScope) {
	switch scope.Kind {
	case CancelWholeCase:
		c.TokenMask = ir.Zero128
		c.CancelledMask = c.CancelledMask.Or(allNodesMask(c.Artifact))
		c.Faulted = true
		c.FaultReason = "case cancelled"
	case CancelActivity, CancelRegion, CancelMultiInstance:
		bit := ir.MaskFromBits(scope.Target)
		c.TokenMask = c.TokenMask.AndNot(bit)
		c.CancelledMask = c.CancelledMask.Or(bit)
	}
}

func allNodesMask(a *ir.Artifact) ir.Mask128 {
	var m ir.Mask128
	for _, n := range a.Nodes {
		m = m.Set(n.Index)
	}
	return m
}
