package executor

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rubintree/loom/doctrine"
	"github.com/rubintree/loom/graph"
	"github.com/rubintree/loom/ir"
	"github.com/rubintree/loom/kvstore"
	"github.com/rubintree/loom/overlay"
	"github.com/rubintree/loom/receipt"
)

// names returns the dense index the compiler would assign each of the
// given node names, which extract's sort.Strings pass derives purely
// from alphabetical order, independent of quad declaration order.
func names(all ...string) map[string]uint32 {
	uniq := append([]string(nil), all...)
	sort.Strings(uniq)
	out := make(map[string]uint32, len(uniq))
	for i, n := range uniq {
		out[n] = uint32(i)
	}
	return out
}

// end-to-end scenarios exercising whole workflows rather than single
// transitions, mirroring the shapes TestStepParallelSplitAndJoin and
// TestInjectEventDeferredChoice already establish but driving each
// case through to its final outcome.

// Scenario A: two sequential gates feeding an AND-join.
func TestScenarioSequenceIntoANDJoin(t *testing.T) {
	c := compileSimple(t, []graph.Quad{
		{Subject: "t1", Predicate: "pattern", Object: "sequence", Graph: "default"},
		{Subject: "t1", Predicate: "flow:next", Object: "s", Graph: "default"},
		{Subject: "s", Predicate: "split", Object: "and", Graph: "default"},
		{Subject: "s", Predicate: "flow:next", Object: "t2a", Graph: "default"},
		{Subject: "s", Predicate: "flow:next", Object: "t2b", Graph: "default"},
		{Subject: "t2a", Predicate: "pattern", Object: "sequence", Graph: "default"},
		{Subject: "t2a", Predicate: "flow:next", Object: "t3", Graph: "default"},
		{Subject: "t2b", Predicate: "pattern", Object: "sequence", Graph: "default"},
		{Subject: "t2b", Predicate: "flow:next", Object: "t3", Graph: "default"},
		{Subject: "t3", Predicate: "join", Object: "and", Graph: "default"},
		{Subject: "t3", Predicate: "flow:next", Object: "end", Graph: "default"},
		{Subject: "end", Predicate: "pattern", Object: "implicit_termination", Graph: "default"},
	}, doctrine.Default())

	idx := names("t1", "s", "t2a", "t2b", "t3", "end")

	res, err := Step(c)
	require.NoError(t, err)
	require.Equal(t, StepCompleted, res.Kind)

	// A single Step call drains the whole case: the AND-split's two
	// branches both complete and the AND-join only fires once both
	// have, carrying the case through to "end".
	for _, name := range []string{"t1", "s", "t2a", "t2b", "t3", "end"} {
		require.Truef(t, c.CompletedMask.Test(idx[name]), "%s did not complete", name)
	}
	require.False(t, c.Faulted)
}

// Scenario B: three approvers feed a partial join that only needs two
// of them; the third approval's token never causes a second downstream
// completion, on this Step call or any later one.
func TestScenarioApproversAbsorbedAfterFirstWinner(t *testing.T) {
	c := compileSimple(t, []graph.Quad{
		{Subject: "start", Predicate: "pattern", Object: "sequence", Graph: "default"},
		{Subject: "start", Predicate: "split", Object: "and", Graph: "default"},
		{Subject: "start", Predicate: "flow:next", Object: "a1", Graph: "default"},
		{Subject: "start", Predicate: "flow:next", Object: "a2", Graph: "default"},
		{Subject: "start", Predicate: "flow:next", Object: "a3", Graph: "default"},
		{Subject: "a1", Predicate: "pattern", Object: "sequence", Graph: "default"},
		{Subject: "a1", Predicate: "flow:next", Object: "j", Graph: "default"},
		{Subject: "a2", Predicate: "pattern", Object: "sequence", Graph: "default"},
		{Subject: "a2", Predicate: "flow:next", Object: "j", Graph: "default"},
		{Subject: "a3", Predicate: "pattern", Object: "sequence", Graph: "default"},
		{Subject: "a3", Predicate: "flow:next", Object: "j", Graph: "default"},
		{Subject: "j", Predicate: "join", Object: "and", Graph: "default"},
		{Subject: "j", Predicate: "join:k", Object: "2", Graph: "default"},
		{Subject: "j", Predicate: "flow:next", Object: "end", Graph: "default"},
		{Subject: "end", Predicate: "pattern", Object: "implicit_termination", Graph: "default"},
	}, doctrine.Default())

	idx := names("start", "a1", "a2", "a3", "j", "end")

	res, err := Step(c)
	require.NoError(t, err)
	require.Equal(t, StepCompleted, res.Kind)
	require.True(t, c.CompletedMask.Test(idx["end"]))

	completedAfterFirst := c.CompletedMask

	// A further Step call fires nothing new: "j" and "end" are both
	// already complete and neither is refirable, so the third
	// approval's token is inert.
	res2, err := Step(c)
	require.NoError(t, err)
	require.Equal(t, StepCompleted, res2.Kind)
	require.Empty(t, res2.FiredNodes)
	require.Equal(t, completedAfterFirst, c.CompletedMask)
}

// Scenario C: a deferred choice between an external event and a timer;
// when only the timer fires, the choice resolves on the timer branch
// and flow continues downstream.
func TestScenarioDeferredChoiceTimerBranch(t *testing.T) {
	c := compileSimple(t, []graph.Quad{
		{Subject: "d", Predicate: "pattern", Object: "deferred_choice", Graph: "default"},
		{Subject: "d", Predicate: "flow:next", Object: "m", Graph: "default"},
		{Subject: "m", Predicate: "pattern", Object: "milestone", Graph: "default"},
	}, doctrine.Default())

	idx := names("d", "m")

	res, err := Step(c)
	require.NoError(t, err)
	require.Equal(t, StepBlocked, res.Kind)
	require.False(t, c.CompletedMask.Test(idx["d"]))

	// No EventDeferredChoiceTrigger ever arrives; only the timer fires.
	require.NoError(t, InjectEvent(c, Event{Kind: EventTimerFired, NodeIndex: idx["d"]}))

	res, err = Step(c)
	require.NoError(t, err)
	require.Equal(t, StepCompleted, res.Kind)
	require.True(t, c.CompletedMask.Test(idx["d"]))
	require.True(t, c.CompletedMask.Test(idx["m"]))
}

// Scenario D: a runtime multi-instance node records its resolved
// instance population as the case flows through it.
func TestScenarioMultiInstanceRecordsPopulation(t *testing.T) {
	c := compileSimple(t, []graph.Quad{
		{Subject: "m", Predicate: "pattern", Object: "mi_runtime", Graph: "default"},
		{Subject: "m", Predicate: "mi:count", Object: "3", Graph: "default"},
		{Subject: "m", Predicate: "flow:next", Object: "end", Graph: "default"},
		{Subject: "end", Predicate: "pattern", Object: "implicit_termination", Graph: "default"},
	}, doctrine.Default())

	idx := names("m", "end")
	mIdx := idx["m"]

	res, err := Step(c)
	require.NoError(t, err)
	require.Equal(t, StepCompleted, res.Kind)
	require.True(t, c.CompletedMask.Test(mIdx))
	require.True(t, c.CompletedMask.Test(idx["end"]))

	counter, ok := c.MICounters[mIdx]
	require.True(t, ok)
	require.Equal(t, uint32(3), counter.Total)
}

// Scenario E: a validated, promoted overlay flips the installed
// artifact hash atomically; a second concurrent adaptation attempt is
// refused by the doctrine's concurrency cap rather than racing ahead.
func TestScenarioOverlayPromotionRespectsConcurrencyCap(t *testing.T) {
	nodes := []ir.NodeIR{
		{Index: 0, Pattern: ir.PatternMIRuntime, InMask: ir.Mask128{}, OutMask: ir.Mask128{}.Set(1), Param: 4},
		{Index: 1, Pattern: ir.PatternImplicitTermination, InMask: ir.Mask128{}.Set(0)},
	}
	baseline, err := ir.Seal([32]byte{1}, [32]byte{2}, nodes, nil, nil)
	require.NoError(t, err)

	d := doctrine.Default()
	d.MaxConcurrentAdaptations = 1
	store := &memStore{data: map[string]string{}}
	idx := overlay.NewPromotionIndex(store, d)

	baseHash := baseline.HashA()
	require.NoError(t, store.Put([]byte("index:workflow:spec-a"), baseHash[:]))

	v := overlay.NewValidator(baseline, d)
	o1 := &overlay.Overlay{
		ID:      [32]byte{9},
		Scope:   overlay.Scope{PatternIDs: []uint8{uint8(ir.PatternMIRuntime)}},
		Changes: []overlay.Change{{Kind: overlay.ChangeScaleMultiInstance, TargetPatternID: uint8(ir.PatternMIRuntime), Delta: 2}},
	}
	report, err := v.Validate(context.Background(), o1)
	require.NoError(t, err)
	require.True(t, report.Proven)

	scaled := []ir.NodeIR{
		{Index: 0, Pattern: ir.PatternMIRuntime, InMask: ir.Mask128{}, OutMask: ir.Mask128{}.Set(1), Param: 6},
		{Index: 1, Pattern: ir.PatternImplicitTermination, InMask: ir.Mask128{}.Set(0)},
	}
	nextArtifact, err := ir.Seal([32]byte{1}, [32]byte{3}, scaled, nil, nil)
	require.NoError(t, err)

	err = idx.Promote("spec-a", o1, baseHash, nextArtifact)
	require.NoError(t, err)

	installed, ok, err := idx.Installed("spec-a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, nextArtifact.HashA(), installed)

	// A second overlay attempt admitted while the cap is already
	// exhausted — here by holding the slot open explicitly — is
	// rejected rather than promoted underneath the first.
	release, err := idx.BeginAdaptation("spec-b")
	require.NoError(t, err)
	defer release()

	o2 := &overlay.Overlay{ID: [32]byte{10}}
	_, err = v.Validate(context.Background(), o2)
	require.NoError(t, err)
	require.True(t, o2.IsProven())
	err = idx.Promote("spec-a", o2, nextArtifact.HashA(), nextArtifact)
	require.Error(t, err)
	var ce *overlay.CodedError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, overlay.ErrConcurrencyCapped, ce.Code)
}

// Scenario F: a transition whose cost exceeds the tick budget faults
// the case partway through a Step call; the transitions that already
// completed earlier in that same call still get folded into the
// receipt chain and remain verifiable.
func TestScenarioBudgetExceededPreservesPriorReceipts(t *testing.T) {
	oldCost := costTable[ir.PatternThreadSplit]
	costTable[ir.PatternThreadSplit] = 9
	t.Cleanup(func() { costTable[ir.PatternThreadSplit] = oldCost })

	c := compileSimple(t, []graph.Quad{
		{Subject: "a", Predicate: "pattern", Object: "sequence", Graph: "default"},
		{Subject: "a", Predicate: "flow:next", Object: "b", Graph: "default"},
		{Subject: "b", Predicate: "pattern", Object: "thread_split", Graph: "default"},
	}, doctrine.Default())
	idx := names("a", "b")

	ring := receipt.NewRing(16)
	var chainHash [32]byte

	// "a" clears its own transition within budget; "b" is selected
	// next in the same Step call and its patched cost blows the
	// budget, faulting the case before it completes.
	res, err := Step(c)
	require.Error(t, err)
	require.Equal(t, StepFault, res.Kind)
	require.True(t, c.Faulted)
	var ce *CodedError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, ErrBudgetExceeded, ce.Code)
	require.Equal(t, []uint32{idx["a"]}, res.FiredNodes)
	require.True(t, c.CompletedMask.Test(idx["a"]))
	require.False(t, c.CompletedMask.Test(idx["b"]))

	appendReceipts(ring, &chainHash, c, res)
	require.Equal(t, 1, ring.Len())
	lastSeq := ring.Window()[0].Seq

	ok, err := receipt.Verify(nil, ring, receipt.FoldRecord{}, c.SessionID, lastSeq)
	require.NoError(t, err)
	require.True(t, ok)

	// "a"'s receipt is the chain's only entry, and the chain hash it
	// produced is the last one computed — no receipt for "b" was ever
	// appended, since "b" never completed.
	window := ring.Window()
	require.Len(t, window, 1)
	require.Equal(t, idx["a"], window[0].SrcNode)
	require.Equal(t, uint64(0), window[0].Seq)
	require.Equal(t, receipt.ChainHash([32]byte{}, window[0]), chainHash)
}

func appendReceipts(ring *receipt.Ring, chainHash *[32]byte, c *Case, res StepResult) {
	for _, node := range res.FiredNodes {
		pattern := uint8(0)
		if int(node) < len(c.Artifact.Nodes) {
			pattern = uint8(c.Artifact.Nodes[node].Pattern)
		}
		r := receipt.Receipt{
			CaseID:           c.SessionID,
			SrcNode:          node,
			DstMask:          c.TokenMask,
			PatternID:        pattern,
			DeltaTimestampNS: int64(c.TicksUsed),
		}
		ring.Append(r)
		*chainHash = receipt.ChainHash(*chainHash, r)
	}
}

type memStore struct {
	data map[string]string
}

func (s *memStore) Get(key []byte) ([]byte, bool, error) {
	v, ok := s.data[string(key)]
	if !ok {
		return nil, false, nil
	}
	return []byte(v), true, nil
}

func (s *memStore) Put(key, value []byte) error {
	s.data[string(key)] = string(value)
	return nil
}

func (s *memStore) CompareAndSwap(key, oldValue, newValue []byte) (bool, error) {
	cur, ok := s.data[string(key)]
	if ok != (len(oldValue) > 0) || (ok && cur != string(oldValue)) {
		return false, nil
	}
	s.data[string(key)] = string(newValue)
	return true, nil
}

func (s *memStore) ScanPrefix(prefix []byte) ([]kvstore.KV, error) { return nil, nil }
func (s *memStore) Close() error                                  { return nil }
