package executor

import "github.com/rubintree/loom/ir"

// StepKind classifies the outcome of one Step call: Completed,
// Blocked, Fault, or Cancelled.
type StepKind uint8

const (
	StepCompleted StepKind = iota
	StepBlocked
	StepFault
	StepCancelled
)

// StepResult reports how far Step advanced the case.
type StepResult struct {
	Kind       StepKind
	Reason     string
	FiredNodes []uint32
}

type joinKind uint8

const (
	joinAND joinKind = iota
	joinOR
	joinPartial
)

func kindOf(p ir.Pattern) joinKind {
	switch p {
	case ir.PatternSimpleMerge, ir.PatternMultiMerge, ir.PatternStructuredSyncMerge:
		return joinOR
	case ir.PatternStaticPartialJoin, ir.PatternDynamicPartialJoin:
		return joinPartial
	default:
		return joinAND
	}
}

// refirable reports whether a node already in CompletedMask may still
// be selected by enabling_mask — the patterns that legitimately fire
// more than once per case (multi-merge, streaming MI discovery,
// quorum-building completion, and a persistent trigger's re-arm).
func refirable(p ir.Pattern) bool {
	switch p {
	case ir.PatternMultiMerge, ir.PatternMINoPriorKnowledge, ir.PatternMultipleInstancesNoApriori,
		ir.PatternCompleteMIActivity, ir.PatternPersistentTrigger:
		return true
	default:
		return false
	}
}

// enablingMask computes which nodes are enabled this tick: a bitwise
// combination of the AND-join subset test, the OR-merge intersect
// test, the partial-join masked popcount test, and the plain
// start-node token test — one test per node, evaluated independently.
func enablingMask(c *Case) ir.Mask128 {
	var m ir.Mask128
	for _, n := range c.Artifact.Nodes {
		if c.CancelledMask.Test(n.Index) {
			continue
		}
		if c.CompletedMask.Test(n.Index) && !refirable(n.Pattern) {
			continue
		}
		if n.InMask.IsZero() {
			if c.TokenMask.Test(n.Index) {
				m = m.Set(n.Index)
			}
			continue
		}
		switch kindOf(n.Pattern) {
		case joinOR:
			if n.InMask.Intersects(c.TokenMask) {
				m = m.Set(n.Index)
			}
		case joinPartial:
			k := int(n.Param)
			if k == 0 {
				k = 1
			}
			if n.InMask.And(c.TokenMask).PopCount() >= k {
				m = m.Set(n.Index)
			}
		default: // joinAND
			if n.InMask.Subset(c.TokenMask) {
				m = m.Set(n.Index)
			}
		}
	}
	return m
}

// selectNext deterministically chooses the lowest-index enabled node,
// the priority order reproducible replay requires.
func selectNext(enabled ir.Mask128) (uint32, bool) {
	return enabled.Lowest()
}

// Step fires at most Doctrine.MaxRunLen enabled transitions, honoring
// Doctrine.MaxExecTicks as a hard per-transition tick budget. It never logs
// and never allocates beyond the FiredNodes slice it returns.
func Step(c *Case) (StepResult, error) {
	if c.Faulted {
		return StepResult{Kind: StepFault, Reason: c.FaultReason}, coded(ErrCancellationRequested, c.FaultReason)
	}

	maxRun := c.Doctrine.MaxRunLen
	if maxRun <= 0 {
		maxRun = 1
	}
	var fired []uint32

	for i := 0; i < maxRun; i++ {
		enabled := enablingMask(c)
		if enabled.IsZero() {
			// No transition is ready and no handler is mid-wait: the
			// case has run as far as it currently can, which is a
			// normal (not blocked) outcome for this Step call.
			return StepResult{Kind: StepCompleted, FiredNodes: fired}, nil
		}
		nodeIdx, _ := selectNext(enabled)
		node := c.Artifact.Nodes[nodeIdx]
		handler := handlerTable[node.Pattern]
		if handler == nil {
			c.Faulted = true
			c.FaultReason = "no handler registered for pattern " + node.Pattern.String()
			return StepResult{Kind: StepFault, Reason: c.FaultReason, FiredNodes: fired}, coded(ErrUnsupported, c.FaultReason)
		}

		result := handler(&ExecContext{Case: c, Node: node})
		if result.Err != nil {
			c.Faulted = true
			c.FaultReason = result.Err.Error()
			return StepResult{Kind: StepFault, Reason: c.FaultReason, FiredNodes: fired}, result.Err
		}

		// Budget enforcement is per-transition, not cumulative:
		// a single handler exceeding max_exec_ticks faults the case
		// immediately, regardless of how much budget prior transitions
		// in this Step used.
		if c.Doctrine.MaxExecTicks > 0 && result.Cost > c.Doctrine.MaxExecTicks {
			c.Faulted = true
			c.FaultReason = "tick budget exceeded"
			return StepResult{Kind: StepFault, Reason: c.FaultReason, FiredNodes: fired}, coded(ErrBudgetExceeded, c.FaultReason)
		}
		c.TicksUsed += result.Cost

		if !result.Completed {
			return StepResult{Kind: StepBlocked, Reason: "handler awaiting external input", FiredNodes: fired}, nil
		}

		fired = append(fired, node.Index)
		if c.Faulted {
			// The handler itself cancelled the whole case (pattern 20);
			// its own token/mask mutations already reflect that.
			return StepResult{Kind: StepCancelled, Reason: c.FaultReason, FiredNodes: fired}, nil
		}

		// TokenMask accumulates monotonically: a firing deposits a token
		// at its own index, which is what the InMask.Subset/Intersects/
		// PopCount checks above read as "this predecessor is done".
		// TokensOut (ctx.Node.OutMask) names the successor edges for
		// handlers that need them, but is not folded into TokenMask —
		// doing so would let a split's successor bits satisfy a
		// downstream join's predecessor check before those successors
		// ever actually fire. A firer's own bit is never cleared here;
		// CompletedMask.Test above is what stops a non-refirable node
		// from being re-selected, so the lingering bit is exactly what
		// lets a later-firing sibling still see a shared predecessor as
		// done.
		c.TokenMask = c.TokenMask.Set(node.Index)
		c.CompletedMask = c.CompletedMask.Set(node.Index)
		if !result.Cancel.IsZero() {
			c.CancelledMask = c.CancelledMask.Or(result.Cancel)
			c.TokenMask = c.TokenMask.AndNot(result.Cancel)
		}
	}
	return StepResult{Kind: StepCompleted, FiredNodes: fired}, nil
}
