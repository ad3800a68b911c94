package session

import (
	"testing"

	"github.com/google/uuid"
	"github.com/rubintree/loom/doctrine"
	"github.com/rubintree/loom/mapek"
	"github.com/stretchr/testify/require"
)

func TestActRefusesWhenConcurrentCapReached(t *testing.T) {
	s := New(uuid.New())
	d := doctrine.Default()
	s.Metrics.ComplianceEst = 1

	decision := s.Act(d, d.MaxConcurrentAdaptations, ActionRetry, "latency spike", 0.4)
	require.True(t, decision.Refused)
	require.Len(t, s.History, 1)
}

func TestActRefusesWhenBelowComplianceFloor(t *testing.T) {
	s := New(uuid.New())
	d := doctrine.Default()
	s.Metrics.ComplianceEst = d.MinSLOCompliance - 0.1

	decision := s.Act(d, 0, ActionDegrade, "fault rate high", 0.3)
	require.True(t, decision.Refused)
}

func TestActSucceedsWithinBounds(t *testing.T) {
	s := New(uuid.New())
	d := doctrine.Default()
	s.Metrics.ComplianceEst = 1

	decision := s.Act(d, 0, ActionCompensate, "retry exhausted", 0.2)
	require.False(t, decision.Refused)
	require.Equal(t, ActionCompensate, decision.Action)
}

func TestRecordTaskUpdatesCompliance(t *testing.T) {
	s := New(uuid.New())
	s.RecordTask(false)
	s.RecordTask(true)
	require.Equal(t, 0.5, s.Metrics.ComplianceEst)
	require.Equal(t, uint64(2), s.Metrics.TaskCount)
}

func TestAggregatorFlushProducesFacts(t *testing.T) {
	agg := NewAggregator()
	s1 := New(uuid.New())
	s1.RecordTask(false)
	s1.RecordTask(true)
	agg.Record("spec-a", "tenant-1", s1)

	k := mapek.NewKnowledge()
	agg.Flush(k)

	snap := k.Snapshot()
	require.Contains(t, snap.Facts, "spec_failure_rate:spec-a")
	require.Equal(t, 0.5, snap.Facts["spec_failure_rate:spec-a"].Value)
	require.Contains(t, snap.Facts, "tenant_failure_rate:tenant-1")
}

func TestAggregatorFlushRollsUpCost(t *testing.T) {
	agg := NewAggregator()
	s1 := New(uuid.New())
	d := doctrine.Default()
	s1.Metrics.ComplianceEst = 1
	s1.Act(d, 0, ActionRetry, "latency spike", 0.4)
	s1.RecordTicks(12)
	agg.Record("spec-a", "tenant-1", s1)

	k := mapek.NewKnowledge()
	agg.Flush(k)

	snap := k.Snapshot()
	require.Equal(t, 12.0, snap.Facts["spec_ticks_consumed:spec-a"].Value)
	require.Equal(t, 1.0, snap.Facts["spec_adaptations_applied:spec-a"].Value)
	require.Equal(t, 12.0, snap.Facts["tenant_ticks_consumed:tenant-1"].Value)
	require.Equal(t, 1.0, snap.Facts["tenant_adaptations_applied:tenant-1"].Value)
}
