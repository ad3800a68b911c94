package session

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rubintree/loom/mapek"
)

// Aggregator rolls up per-case session counters into per-tenant and
// per-spec facts for the knowledge base, closing the MAPE-K loop.
type Aggregator struct {
	mu       sync.Mutex
	bySpec   map[string]rollup
	byTenant map[string]rollup
}

type rollup struct {
	taskCount          uint64
	faultCount         uint64
	ticksConsumed      uint64
	adaptationsApplied uint64
	sessions           map[uuid.UUID]struct{}
}

func newRollup() rollup {
	return rollup{sessions: make(map[uuid.UUID]struct{})}
}

// NewAggregator returns an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		bySpec:   make(map[string]rollup),
		byTenant: make(map[string]rollup),
	}
}

// Record folds s's current metrics into the specID/tenantID rollups.
// Safe for concurrent use across sessions.
func (a *Aggregator) Record(specID, tenantID string, s *Session) {
	a.mu.Lock()
	defer a.mu.Unlock()

	specRoll := a.bySpec[specID]
	if specRoll.sessions == nil {
		specRoll = newRollup()
	}
	specRoll.taskCount += s.Metrics.TaskCount
	specRoll.faultCount += s.Metrics.FaultCount
	specRoll.ticksConsumed += s.Metrics.TicksConsumed
	specRoll.adaptationsApplied += s.Metrics.AdaptationsApplied
	specRoll.sessions[s.CaseID] = struct{}{}
	a.bySpec[specID] = specRoll

	tenantRoll := a.byTenant[tenantID]
	if tenantRoll.sessions == nil {
		tenantRoll = newRollup()
	}
	tenantRoll.taskCount += s.Metrics.TaskCount
	tenantRoll.faultCount += s.Metrics.FaultCount
	tenantRoll.ticksConsumed += s.Metrics.TicksConsumed
	tenantRoll.adaptationsApplied += s.Metrics.AdaptationsApplied
	tenantRoll.sessions[s.CaseID] = struct{}{}
	a.byTenant[tenantID] = tenantRoll
}

// Flush pushes the current rollups into k as facts and resets the
// internal counters, intended to run once per MAPE-K cycle alongside
// mapek.Monitor.Drain.
func (a *Aggregator) Flush(k *mapek.Knowledge) {
	a.mu.Lock()
	bySpec := a.bySpec
	byTenant := a.byTenant
	a.bySpec = make(map[string]rollup)
	a.byTenant = make(map[string]rollup)
	a.mu.Unlock()

	now := mapek.Now()
	for specID, r := range bySpec {
		if r.taskCount > 0 {
			k.AddFact(mapek.Fact{
				Metric:      "spec_failure_rate:" + specID,
				Value:       float64(r.faultCount) / float64(r.taskCount),
				Source:      "session_aggregator",
				TimestampNS: now,
			})
		}
		k.AddFact(mapek.Fact{
			Metric:      "spec_active_sessions:" + specID,
			Value:       float64(len(r.sessions)),
			Source:      "session_aggregator",
			TimestampNS: now,
		})
		k.AddFact(mapek.Fact{
			Metric:      "spec_ticks_consumed:" + specID,
			Value:       float64(r.ticksConsumed),
			Source:      "session_aggregator",
			TimestampNS: now,
		})
		k.AddFact(mapek.Fact{
			Metric:      "spec_adaptations_applied:" + specID,
			Value:       float64(r.adaptationsApplied),
			Source:      "session_aggregator",
			TimestampNS: now,
		})
	}
	for tenantID, r := range byTenant {
		if r.taskCount > 0 {
			k.AddFact(mapek.Fact{
				Metric:      "tenant_failure_rate:" + tenantID,
				Value:       float64(r.faultCount) / float64(r.taskCount),
				Source:      "session_aggregator",
				TimestampNS: now,
			})
		}
		k.AddFact(mapek.Fact{
			Metric:      "tenant_ticks_consumed:" + tenantID,
			Value:       float64(r.ticksConsumed),
			Source:      "session_aggregator",
			TimestampNS: now,
		})
		k.AddFact(mapek.Fact{
			Metric:      "tenant_adaptations_applied:" + tenantID,
			Value:       float64(r.adaptationsApplied),
			Source:      "session_aggregator",
			TimestampNS: now,
		})
	}
}
