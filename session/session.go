// Package session implements per-case adaptation scopes: a restricted
// subset of adaptation actions, each gated by doctrine before acting.
package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rubintree/loom/doctrine"
)

// ActionKind is the strict subset of global adaptation actions a
// session may take, grounded on the autonomic source's SessionAction
// enum (`original_source/.../autonomic/session_adapter.rs`).
type ActionKind int

const (
	ActionRetry ActionKind = iota
	ActionDegrade
	ActionRequestResources
	ActionCancelOptional
	ActionCompensate
	ActionLogAndContinue
)

func (a ActionKind) String() string {
	switch a {
	case ActionRetry:
		return "Retry"
	case ActionDegrade:
		return "Degrade"
	case ActionRequestResources:
		return "RequestResources"
	case ActionCancelOptional:
		return "CancelOptional"
	case ActionCompensate:
		return "Compensate"
	case ActionLogAndContinue:
		return "LogAndContinue"
	default:
		return "Unknown"
	}
}

// Decision is one session-scoped adaptation, recorded in the
// session's history whether it was taken or refused.
type Decision struct {
	TimestampNS    int64
	Action         ActionKind
	Reason         string
	ExpectedImpact float64
	Refused        bool
	RefusalReason  string
}

// Metrics is a per-case adaptation metrics snapshot.
type Metrics struct {
	TaskCount          uint64
	FaultCount         uint64
	TicksConsumed      uint64
	AdaptationsApplied uint64
	ComplianceEst      float64 // running estimate of this case's SLO compliance
}

// Session represents one case's adaptation scope, isolated from every
// other case's: its own metrics snapshot and decision history.
type Session struct {
	CaseID  uuid.UUID
	Metrics Metrics
	History []Decision
}

// New returns an empty Session for caseID.
func New(caseID uuid.UUID) *Session {
	return &Session{CaseID: caseID}
}

// Act attempts a session-scoped adaptation, checking it against q
// before recording it as taken. An action is refused (and recorded as
// refused, not taken) if concurrentAdaptations has already reached
// the doctrine's concurrent-adaptation cap or if this session's
// current compliance estimate is already below the floor.
func (s *Session) Act(q doctrine.Doctrine, concurrentAdaptations int, action ActionKind, reason string, expectedImpact float64) Decision {
	d := Decision{
		TimestampNS:    time.Now().UnixNano(),
		Action:         action,
		Reason:         reason,
		ExpectedImpact: expectedImpact,
	}

	if concurrentAdaptations >= q.MaxConcurrentAdaptations {
		d.Refused = true
		d.RefusalReason = fmt.Sprintf("concurrent adaptation cap reached (%d)", q.MaxConcurrentAdaptations)
		s.History = append(s.History, d)
		return d
	}
	if s.Metrics.ComplianceEst < q.MinSLOCompliance {
		d.Refused = true
		d.RefusalReason = fmt.Sprintf("session compliance %.3f below floor %.3f", s.Metrics.ComplianceEst, q.MinSLOCompliance)
		s.History = append(s.History, d)
		return d
	}

	s.Metrics.AdaptationsApplied++
	s.History = append(s.History, d)
	return d
}

// RecordTask updates the session's running metrics after one task
// completes, faulted or not.
func (s *Session) RecordTask(faulted bool) {
	s.Metrics.TaskCount++
	if faulted {
		s.Metrics.FaultCount++
	}
	if s.Metrics.TaskCount > 0 {
		s.Metrics.ComplianceEst = 1 - float64(s.Metrics.FaultCount)/float64(s.Metrics.TaskCount)
	}
}

// RecordTicks adds ticks to the session's running tick-cost total,
// intended to be called once per executor.Step alongside RecordTask.
func (s *Session) RecordTicks(ticks uint64) {
	s.Metrics.TicksConsumed += ticks
}
