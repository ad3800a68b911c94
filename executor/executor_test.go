package executor

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/rubintree/loom/compiler"
	"github.com/rubintree/loom/doctrine"
	"github.com/rubintree/loom/graph"
)

func compileSimple(t *testing.T, quads []graph.Quad, cfg doctrine.Doctrine) *Case {
	t.Helper()
	g := graph.New(quads)
	a, _, _, err := compiler.Compile(g, cfg, compiler.NewSystemCalendar())
	require.NoError(t, err)
	c, err := Admit(a, uuid.New(), InitialInputs{}, cfg)
	require.NoError(t, err)
	return c
}

func TestHandlerTableIsComplete(t *testing.T) {
	for p := 1; p <= 43; p++ {
		require.NotNilf(t, handlerTable[p], "pattern %d has no registered handler", p)
		require.Greaterf(t, costTable[p], 0, "pattern %d has no registered cost", p)
	}
}

func TestStepSequenceToCompletion(t *testing.T) {
	c := compileSimple(t, []graph.Quad{
		{Subject: "a", Predicate: "pattern", Object: "sequence", Graph: "default"},
		{Subject: "a", Predicate: "flow:next", Object: "b", Graph: "default"},
		{Subject: "b", Predicate: "pattern", Object: "implicit_termination", Graph: "default"},
	}, doctrine.Default())

	res, err := Step(c)
	require.NoError(t, err)
	require.Equal(t, StepCompleted, res.Kind)
	require.Equal(t, []uint32{0, 1}, res.FiredNodes)

	res, err = Step(c)
	require.NoError(t, err)
	require.Equal(t, StepCompleted, res.Kind)
	require.Empty(t, res.FiredNodes)
}

func TestStepParallelSplitAndJoin(t *testing.T) {
	c := compileSimple(t, []graph.Quad{
		{Subject: "a", Predicate: "pattern", Object: "sequence", Graph: "default"},
		{Subject: "a", Predicate: "flow:next", Object: "s", Graph: "default"},
		{Subject: "s", Predicate: "split", Object: "and", Graph: "default"},
		{Subject: "s", Predicate: "flow:next", Object: "b1", Graph: "default"},
		{Subject: "s", Predicate: "flow:next", Object: "b2", Graph: "default"},
		{Subject: "b1", Predicate: "pattern", Object: "sequence", Graph: "default"},
		{Subject: "b1", Predicate: "flow:next", Object: "j", Graph: "default"},
		{Subject: "b2", Predicate: "pattern", Object: "sequence", Graph: "default"},
		{Subject: "b2", Predicate: "flow:next", Object: "j", Graph: "default"},
		{Subject: "j", Predicate: "join", Object: "and", Graph: "default"},
		{Subject: "j", Predicate: "flow:next", Object: "end", Graph: "default"},
		{Subject: "end", Predicate: "pattern", Object: "implicit_termination", Graph: "default"},
	}, doctrine.Default())

	res, err := Step(c)
	require.NoError(t, err)
	require.Equal(t, StepCompleted, res.Kind)
	require.True(t, c.CompletedMask.PopCount() >= 5)
}

func TestStepBudgetExceededFaultsCase(t *testing.T) {
	cfg := doctrine.Default()
	cfg.MaxExecTicks = 1
	c := compileSimple(t, []graph.Quad{
		{Subject: "a", Predicate: "pattern", Object: "thread_split", Graph: "default"},
	}, cfg)

	res, err := Step(c)
	require.Error(t, err)
	require.Equal(t, StepFault, res.Kind)
	require.True(t, c.Faulted)
	var ce *CodedError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, ErrBudgetExceeded, ce.Code)
}

func TestCancelWholeCase(t *testing.T) {
	c := compileSimple(t, []graph.Quad{
		{Subject: "a", Predicate: "pattern", Object: "cancel_case", Graph: "default"},
	}, doctrine.Default())

	res, err := Step(c)
	require.NoError(t, err)
	require.Equal(t, StepCancelled, res.Kind)
	require.True(t, c.Faulted)
	require.True(t, c.TokenMask.IsZero())
}

func TestInjectEventDeferredChoice(t *testing.T) {
	c := compileSimple(t, []graph.Quad{
		{Subject: "d", Predicate: "pattern", Object: "deferred_choice", Graph: "default"},
	}, doctrine.Default())

	res, err := Step(c)
	require.NoError(t, err)
	require.Equal(t, StepBlocked, res.Kind)

	require.NoError(t, InjectEvent(c, Event{Kind: EventDeferredChoiceTrigger, NodeIndex: 0}))
	res, err = Step(c)
	require.NoError(t, err)
	require.Equal(t, StepCompleted, res.Kind)
	require.True(t, c.CompletedMask.Test(0))
}

func TestAdmitRejectsNilArtifact(t *testing.T) {
	_, err := Admit(nil, uuid.New(), InitialInputs{}, doctrine.Default())
	require.Error(t, err)
	var ce *CodedError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, ErrAdmissionRejected, ce.Code)
}
