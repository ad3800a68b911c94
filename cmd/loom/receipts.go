package main

import (
	"github.com/rubintree/loom/executor"
	"github.com/rubintree/loom/ir"
	"github.com/rubintree/loom/receipt"
)

// chainRun drives a case to completion, injecting any fixture events
// due at each step, and folds every fired node into a receipt chain.
// It mirrors the hot-path/warm-path split at CLI scale: Step never
// sees the chain, only the caller does.
func chainRun(c *executor.Case, a *ir.Artifact, f fixture, maxSteps int, onStep func(step int, result executor.StepResult)) (executor.StepResult, [32]byte, uint64, error) {
	var chainHash [32]byte
	var seq uint64
	var last executor.StepResult

	for i := 0; i < maxSteps; i++ {
		if err := injectDue(c, f, i); err != nil {
			return last, chainHash, seq, err
		}
		result, stepErr := executor.Step(c)
		last = result
		if onStep != nil {
			onStep(i, result)
		}
		// Fold every node this Step call actually fired into the chain
		// before looking at stepErr: a fault carries a non-nil error
		// but the transitions that completed earlier in the same call
		// are real and still belong in the receipt chain.
		for _, node := range result.FiredNodes {
			pattern := uint8(0)
			if int(node) < len(a.Nodes) {
				pattern = uint8(a.Nodes[node].Pattern)
			}
			r := receipt.Receipt{
				CaseID:           c.SessionID,
				Seq:              seq,
				SrcNode:          node,
				DstMask:          c.TokenMask,
				PatternID:        pattern,
				DeltaTimestampNS: int64(c.TicksUsed),
			}
			chainHash = receipt.ChainHash(chainHash, r)
			seq++
		}
		if stepErr != nil {
			return last, chainHash, seq, stepErr
		}
		switch result.Kind {
		case executor.StepCompleted:
			// Step also reports Completed when it stops at MaxRunLen;
			// only a call that fired nothing means no transition is left.
			if len(result.FiredNodes) == 0 {
				return last, chainHash, seq, nil
			}
		case executor.StepFault, executor.StepCancelled, executor.StepBlocked:
			return last, chainHash, seq, nil
		}
	}
	return last, chainHash, seq, nil
}
