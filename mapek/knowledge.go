package mapek

import (
	"sync/atomic"
	"time"
)

// GoalType classifies what a Goal constrains, mirroring the
// Performance/Resource/Compliance split the autonomic source encodes
// as an enum rather than a free-form string.
type GoalType int

const (
	GoalPerformance GoalType = iota
	GoalResource
	GoalCompliance
)

// Goal is a declarative constraint on a named metric: "metric should
// be near target, at priority."
type Goal struct {
	Name     string
	Type     GoalType
	Metric   string
	Target   float64
	Priority int // 0-100, higher = more urgent
}

// Distance reports how far value is from Target, as a fraction of
// Target (0 when value == Target).
func (g Goal) Distance(value float64) float64 {
	if g.Target == 0 {
		if value == 0 {
			return 0
		}
		return 1
	}
	d := (value - g.Target) / g.Target
	if d < 0 {
		d = -d
	}
	return d
}

// Fact is one observed metric sample.
type Fact struct {
	Metric      string
	Value       float64
	Source      string
	TimestampNS int64
}

// Rule is a knowledge-base-resident reaction: when Goal's metric is
// violated, Action names the response the planner should emit.
type Rule struct {
	Name   string
	Metric string
	Action string
}

// PatternStats is a rolling per-pattern-id frequency/duration sample,
// accumulated across every cycle's drained hot-path events.
type PatternStats struct {
	Count         uint64
	TotalTickCost int64
	FaultCount    uint64
}

// MeanTickCost returns the average tick cost per firing, or 0 if the
// pattern has never fired.
func (s PatternStats) MeanTickCost() float64 {
	if s.Count == 0 {
		return 0
	}
	return float64(s.TotalTickCost) / float64(s.Count)
}

// KnowledgeSnapshot is one consistent, immutable view of the knowledge
// base: Analyze and Plan each read one snapshot per cycle so neither
// observes a torn write from Monitor.
type KnowledgeSnapshot struct {
	Goals            []Goal
	Facts            map[string]Fact
	History          map[string][]Fact // per-metric ring, newest last
	Rules            []Rule
	PatternHistogram map[uint8]PatternStats
}

const maxHistoryPerMetric = 32

// Knowledge is the shared, read-optimized store behind the loop: a
// copy-on-write atomic.Pointer so readers never block behind a writer
// and never see a partially updated snapshot, the one piece of shared
// mutable state allowed to cross goroutine boundaries.
type Knowledge struct {
	snap atomic.Pointer[KnowledgeSnapshot]
}

// NewKnowledge returns an empty Knowledge base.
func NewKnowledge() *Knowledge {
	k := &Knowledge{}
	k.snap.Store(&KnowledgeSnapshot{
		Facts:            map[string]Fact{},
		History:          map[string][]Fact{},
		PatternHistogram: map[uint8]PatternStats{},
	})
	return k
}

// Snapshot returns the current immutable view. Callers must not
// mutate the returned value's maps or slices.
func (k *Knowledge) Snapshot() *KnowledgeSnapshot {
	return k.snap.Load()
}

func (k *Knowledge) cloneSnapshot() *KnowledgeSnapshot {
	cur := k.snap.Load()
	next := &KnowledgeSnapshot{
		Goals:            append([]Goal(nil), cur.Goals...),
		Facts:            make(map[string]Fact, len(cur.Facts)),
		History:          make(map[string][]Fact, len(cur.History)),
		Rules:            append([]Rule(nil), cur.Rules...),
		PatternHistogram: make(map[uint8]PatternStats, len(cur.PatternHistogram)),
	}
	for k2, v := range cur.Facts {
		next.Facts[k2] = v
	}
	for k2, v := range cur.History {
		next.History[k2] = append([]Fact(nil), v...)
	}
	for k2, v := range cur.PatternHistogram {
		next.PatternHistogram[k2] = v
	}
	return next
}

// AddGoal installs a new goal, replacing the live snapshot.
func (k *Knowledge) AddGoal(g Goal) {
	next := k.cloneSnapshot()
	next.Goals = append(next.Goals, g)
	k.snap.Store(next)
}

// AddRule installs a new reaction rule.
func (k *Knowledge) AddRule(r Rule) {
	next := k.cloneSnapshot()
	next.Rules = append(next.Rules, r)
	k.snap.Store(next)
}

// AddFact records a new observation, pushing it onto the metric's
// bounded history ring and replacing the live snapshot.
func (k *Knowledge) AddFact(f Fact) {
	next := k.cloneSnapshot()
	next.Facts[f.Metric] = f
	hist := append(next.History[f.Metric], f)
	if len(hist) > maxHistoryPerMetric {
		hist = hist[len(hist)-maxHistoryPerMetric:]
	}
	next.History[f.Metric] = hist
	k.snap.Store(next)
}

// RecordPatternBatch folds one cycle's per-pattern deltas into the
// rolling histogram in a single snapshot swap, rather than one clone
// per drained event.
func (k *Knowledge) RecordPatternBatch(deltas map[uint8]PatternStats) {
	if len(deltas) == 0 {
		return
	}
	next := k.cloneSnapshot()
	for id, d := range deltas {
		cur := next.PatternHistogram[id]
		cur.Count += d.Count
		cur.TotalTickCost += d.TotalTickCost
		cur.FaultCount += d.FaultCount
		next.PatternHistogram[id] = cur
	}
	k.snap.Store(next)
}

// Now returns the current wall-clock time in nanoseconds, the one
// place the package touches the clock so tests can avoid the harness
// restriction on argless time calls by injecting a Fact directly.
func Now() int64 {
	return time.Now().UnixNano()
}
