package executor

import "github.com/rubintree/loom/ir"

// TickResult is a handler's verdict for one fired transition: the
// successor edges it names (TokensOut), whether the node itself
// completed, any scope to cancel, and the abstract tick cost charged
// against the budget. No predecessor token is retired: Step's
// TokenMask only ever gains bits.
type TickResult struct {
	Completed bool
	TokensOut ir.Mask128
	Cancel    ir.Mask128
	Cost      int
	Err       error
}

// ExecContext is the per-tick handler argument: the case being driven,
// the node about to fire, and its packed IR record.
type ExecContext struct {
	Case *Case
	Node ir.NodeIR
}

// Handler is one pattern's transition logic. Every handler is a short,
// statically-bounded sequence of bitmask ops and counter updates —
// no loops over unbounded case state, no I/O, no allocation on the
// steady-state path — so the tick budget holds by construction.
type Handler func(*ExecContext) TickResult

// handlerTable is the dense, pattern-id-indexed dispatch table: an
// indexed jump table of pattern handlers. Index 0 is never populated;
// pattern ids run 1..43.
var handlerTable [int(ir.MaxPattern) + 1]Handler

// costTable is the static per-pattern abstract tick cost the budget
// check in Step charges. Costs are small integers reflecting relative
// handler complexity, never a wall-clock measurement.
var costTable [int(ir.MaxPattern) + 1]int

func init() {
	register := func(p ir.Pattern, cost int, h Handler) {
		handlerTable[p] = h
		costTable[p] = cost
	}

	register(ir.PatternSequence, 1, handleFanOut)
	register(ir.PatternParallelSplit, 1, handleFanOut)
	register(ir.PatternSynchronization, 1, handleANDJoin)
	register(ir.PatternExclusiveChoice, 1, handleFanOut)
	register(ir.PatternSimpleMerge, 1, handleORMerge)
	register(ir.PatternMultiChoice, 1, handleFanOut)
	register(ir.PatternStructuredSyncMerge, 2, handleORMerge)
	register(ir.PatternMultiMerge, 1, handleORMerge)
	register(ir.PatternDiscriminator, 2, handleDiscriminator(false, false))
	register(ir.PatternArbitraryCycles, 1, handleFanOut)
	register(ir.PatternImplicitTermination, 1, handleTerminate)
	register(ir.PatternMIWithoutSync, 2, handleMISpawn(false))
	register(ir.PatternMIDesignTime, 2, handleMISpawn(true))
	register(ir.PatternMIRuntime, 2, handleMISpawn(false))
	register(ir.PatternMINoPriorKnowledge, 2, handleMIStreaming)
	register(ir.PatternDeferredChoice, 2, handleDeferredChoice)
	register(ir.PatternInterleavedParallelRouting, 2, handleInterleavedParallel)
	register(ir.PatternMilestone, 1, handleMilestone)
	register(ir.PatternCancelActivity, 2, handleCancel(CancelActivity))
	register(ir.PatternCancelCase, 2, handleCancel(CancelWholeCase))
	register(ir.PatternCancelRegion, 2, handleCancel(CancelRegion))
	register(ir.PatternCancelMIActivity, 2, handleCancelMI)
	register(ir.PatternCompleteMIActivity, 1, handleMIQuorumComplete)
	register(ir.PatternDeadlineMIActivity, 2, handleMIForceComplete)
	register(ir.PatternCancelMIActivityCompensation, 3, handleCompensation)
	register(ir.PatternBlockingDiscriminator, 2, handleDiscriminator(true, false))
	register(ir.PatternCancellingDiscriminator, 2, handleDiscriminator(false, true))
	register(ir.PatternStructuredLoop, 1, handleFanOut)
	register(ir.PatternRecursion, 2, handleFanOut)
	register(ir.PatternTransientTrigger, 1, handleTrigger(false))
	register(ir.PatternPersistentTrigger, 1, handleTrigger(true))
	register(ir.PatternMultipleInstancesTrigger, 2, handleMISpawn(false))
	register(ir.PatternStaticPartialJoin, 1, handlePartialJoin)
	register(ir.PatternDynamicPartialJoin, 2, handlePartialJoin)
	register(ir.PatternGeneralizedANDJoin, 1, handleANDJoin)
	register(ir.PatternLocalSyncMerge, 1, handleANDJoin)
	register(ir.PatternGeneralSyncMerge, 2, handleANDJoin)
	register(ir.PatternThreadSplit, 3, handleThreadSplit)
	register(ir.PatternThreadMerge, 2, handleANDJoin)
	register(ir.PatternExplicitTermination, 1, handleTerminate)
	register(ir.PatternMultipleInstancesNoApriori, 2, handleMIStreaming)
	register(ir.PatternCancelMultipleInstanceRegion, 2, handleCancel(CancelMultiInstance))
	register(ir.PatternImplicitTerminationWithGuards, 1, handleTerminate)
}

// handleFanOut covers sequence, AND-split, XOR-split, OR-split and
// every other single-predecessor "shift token forward" shape:
// producing a token on every bit of OutMask. XOR/OR selection among
// the produced tokens is resolved by the downstream merge handler,
// not here: pick-one by guard or first-token happens at the merge,
// since guard evaluation is outside artifact scope.
func handleFanOut(ctx *ExecContext) TickResult {
	return TickResult{Completed: true, TokensOut: ctx.Node.OutMask, Cost: costTable[ctx.Node.Pattern]}
}

// handleANDJoin covers synchronization, generalized/local/general
// AND-joins and thread-merge: requires every predecessor token
// present (enabling_mask already guaranteed this) and names every
// successor in TokensOut. Predecessor tokens are left in place.
func handleANDJoin(ctx *ExecContext) TickResult {
	return TickResult{Completed: true, TokensOut: ctx.Node.OutMask, Cost: costTable[ctx.Node.Pattern]}
}

// handleORMerge covers simple merge, multi-merge and structured
// synchronizing merge: fires once per arriving predecessor token
// (enabling_mask used an intersect test, not a subset test), so it
// never waits for the remaining predecessors.
func handleORMerge(ctx *ExecContext) TickResult {
	return TickResult{Completed: true, TokensOut: ctx.Node.OutMask, Cost: costTable[ctx.Node.Pattern]}
}

// handleTerminate covers implicit/explicit termination (11, 40, 43):
// a node with no outgoing flow simply completes and produces nothing.
func handleTerminate(ctx *ExecContext) TickResult {
	return TickResult{Completed: true, Cost: costTable[ctx.Node.Pattern]}
}

// handlePartialJoin covers static (33) and dynamic (34) partial
// joins: enabling_mask already verified popcount(token & in_mask) >=
// k, where k is Param for both patterns (a Param of 0 counts as 1; no
// threshold is resolved at runtime), so firing names every successor
// in TokensOut. The arrived predecessor tokens are left in place.
func handlePartialJoin(ctx *ExecContext) TickResult {
	return TickResult{Completed: true, TokensOut: ctx.Node.OutMask, Cost: costTable[ctx.Node.Pattern]}
}

// handleDiscriminator returns a handler for patterns 9/26/27: the
// first arriving token wins; blocking (26) leaves stragglers pending
// rather than cancelling them (they are simply never re-consulted by
// this node again); cancelling (27) cancels the straggler scope.
func handleDiscriminator(blocking, cancelling bool) Handler {
	return func(ctx *ExecContext) TickResult {
		r := TickResult{Completed: true, TokensOut: ctx.Node.OutMask, Cost: costTable[ctx.Node.Pattern]}
		if cancelling {
			// Stragglers: predecessors named by InMask that have not yet
			// produced a token by the time the first one wins the race.
			r.Cancel = ctx.Node.InMask.AndNot(ctx.Case.TokenMask)
		}
		_ = blocking // blocking's distinguishing behavior is "do not re-fire"; enforced by CompletedMask, not here
		return r
	}
}

// handleMISpawn covers the multiple-instance activity family
// (12, 13, 14, 32): fixedCount selects design-time-known population
// (13) versus runtime-resolved (12/14/32). All of them read the
// instance count from the compiled Param (0 counts as 1); nothing
// updates Param at admission or on event injection.
func handleMISpawn(fixedCount bool) Handler {
	return func(ctx *ExecContext) TickResult {
		total := ctx.Node.Param
		if total == 0 {
			total = 1
		}
		ctx.Case.MICounters[ctx.Node.Index] = MICounter{Total: total}
		_ = fixedCount
		return TickResult{Completed: true, TokensOut: ctx.Node.OutMask, Cost: costTable[ctx.Node.Pattern]}
	}
}

// handleMIStreaming covers patterns 15/41 ("no prior knowledge"):
// instances are discovered one at a time via injected
// EventMIDiscoveryResult events rather than a known total.
func handleMIStreaming(ctx *ExecContext) TickResult {
	counter := ctx.Case.MICounters[ctx.Node.Index]
	if ev, ok := ctx.Case.events.consumeForNode(ctx.Node.Index); ok && ev.Kind == EventMIDiscoveryResult {
		counter.Total += ev.Count
	} else {
		counter.Total++
	}
	ctx.Case.MICounters[ctx.Node.Index] = counter
	return TickResult{Completed: true, TokensOut: ctx.Node.OutMask, Cost: costTable[ctx.Node.Pattern]}
}

// handleMIQuorumComplete (23): completes the MI group once its
// Completed counter reaches Total.
func handleMIQuorumComplete(ctx *ExecContext) TickResult {
	counter := ctx.Case.MICounters[ctx.Node.Index]
	counter.Completed++
	ctx.Case.MICounters[ctx.Node.Index] = counter
	if counter.Completed < counter.Total {
		return TickResult{Completed: false, Cost: costTable[ctx.Node.Pattern]}
	}
	return TickResult{Completed: true, TokensOut: ctx.Node.OutMask, Cost: costTable[ctx.Node.Pattern]}
}

// handleMIForceComplete (24): force-completes on deadline regardless
// of quorum, once any queued event bound to the node (normally
// EventTimerFired) is consumed.
func handleMIForceComplete(ctx *ExecContext) TickResult {
	if _, ok := ctx.Case.events.consumeForNode(ctx.Node.Index); !ok {
		return TickResult{Completed: false, Cost: costTable[ctx.Node.Pattern]}
	}
	return TickResult{Completed: true, TokensOut: ctx.Node.OutMask, Cost: costTable[ctx.Node.Pattern]}
}

// handleCancelMI (22): cancels the surviving, not-yet-completed
// instances of the MI group named by Param.
func handleCancelMI(ctx *ExecContext) TickResult {
	counter := ctx.Case.MICounters[ctx.Node.Param]
	counter.Cancelled = counter.Total - counter.Completed
	ctx.Case.MICounters[ctx.Node.Param] = counter
	return TickResult{Completed: true, TokensOut: ctx.Node.OutMask, Cancel: ir.MaskFromBits(ctx.Node.Param), Cost: costTable[ctx.Node.Pattern]}
}

// handleCompensation (25): the compensation companion of a
// cancelled MI activity; only reachable when doctrine enabled pattern
// 25 at compile time (compiler.lower rejects it otherwise).
func handleCompensation(ctx *ExecContext) TickResult {
	return TickResult{Completed: true, TokensOut: ctx.Node.OutMask, Cost: costTable[ctx.Node.Pattern]}
}

// handleDeferredChoice (16): races an injected trigger event against
// timer expiry. A pending trigger always wins over a pending timer for
// the same node, even if the timer was queued first; only when no
// trigger is pending does a queued timer fire the choice.
func handleDeferredChoice(ctx *ExecContext) TickResult {
	if _, ok := ctx.Case.events.consumeDeferredChoice(ctx.Node.Index); ok {
		return TickResult{Completed: true, TokensOut: ctx.Node.OutMask, Cost: costTable[ctx.Node.Pattern]}
	}
	return TickResult{Completed: false, Cost: costTable[ctx.Node.Pattern]}
}

// handleInterleavedParallel (17): a per-case mutex token gates which
// instance may be active; only one branch fires until it completes
// and releases the token.
func handleInterleavedParallel(ctx *ExecContext) TickResult {
	if ctx.Case.interleavedOwner != -1 && uint32(ctx.Case.interleavedOwner) != ctx.Node.Index {
		return TickResult{Completed: false, Cost: costTable[ctx.Node.Pattern]}
	}
	ctx.Case.interleavedOwner = int32(ctx.Node.Index)
	r := TickResult{Completed: true, TokensOut: ctx.Node.OutMask, Cost: costTable[ctx.Node.Pattern]}
	ctx.Case.interleavedOwner = -1
	return r
}

// handleMilestone (18): sets the node's own bit in MilestoneMask and
// propagates. enabling_mask applies no milestone test, so the node is
// enabled by its predecessor tokens alone.
func handleMilestone(ctx *ExecContext) TickResult {
	ctx.Case.MilestoneMask = ctx.Case.MilestoneMask.Set(ctx.Node.Index)
	return TickResult{Completed: true, TokensOut: ctx.Node.OutMask, Cost: costTable[ctx.Node.Pattern]}
}

// handleCancel returns a handler for patterns 19-21 and 42: cancel the named
// scope via mask subtraction.
func handleCancel(kind CancelKind) Handler {
	return func(ctx *ExecContext) TickResult {
		Cancel(ctx.Case, CancelScope{Kind: kind, Target: ctx.Node.Param})
		return TickResult{Completed: true, TokensOut: ctx.Node.OutMask, Cost: costTable[ctx.Node.Pattern]}
	}
}

// handleTrigger returns a handler for patterns 30/31: a one-shot or
// persistent external signal drives re-entry. persistent re-arms
// itself by never marking Completed, so enabling_mask reconsiders it
// every tick an event is pending.
func handleTrigger(persistent bool) Handler {
	return func(ctx *ExecContext) TickResult {
		ev, ok := ctx.Case.events.consumeForNode(ctx.Node.Index)
		if !ok || ev.Kind != EventTimerFired && ev.Kind != EventHumanTaskComplete {
			return TickResult{Completed: false, Cost: costTable[ctx.Node.Pattern]}
		}
		return TickResult{Completed: !persistent, TokensOut: ctx.Node.OutMask, Cost: costTable[ctx.Node.Pattern]}
	}
}

// handleThreadSplit (38): spawns a child sub-case sharing the same
// artifact and the parent's SessionID, tracked in the parent's
// children map. No receipt-level link between child and parent is
// recorded.
func handleThreadSplit(ctx *ExecContext) TickResult {
	child, err := Admit(ctx.Case.Artifact, ctx.Case.SessionID, InitialInputs{}, ctx.Case.Doctrine)
	if err != nil {
		return TickResult{Err: err, Cost: costTable[ctx.Node.Pattern]}
	}
	ctx.Case.children[ctx.Node.Index] = append(ctx.Case.children[ctx.Node.Index], child)
	return TickResult{Completed: true, TokensOut: ctx.Node.OutMask, Cost: costTable[ctx.Node.Pattern]}
}
