package mapek

import (
	"sort"

	"github.com/google/uuid"
	"github.com/rubintree/loom/doctrine"
)

// ActionID identifies one adaptation action, grounded on the
// autonomic source's ActionId(Uuid) newtype.
type ActionID uuid.UUID

func newActionID() ActionID { return ActionID(uuid.New()) }

// ActionType is one of ΔΣ.changes' typed operations, the set the
// overlay system actually carries.
type ActionType int

const (
	ActionScaleMultiInstance ActionType = iota
	ActionAdjustPerformance
	ActionWidenPolicy
	ActionNarrowPolicy
)

// Action is one candidate adaptation, carrying the policy element
// that governs it (if any) so the overlay validator's doctrine
// obligation has something to meet against Q.
type Action struct {
	ID              ActionID
	Type            ActionType
	TargetPatternID uint8
	Delta           int32 // ScaleMultiInstance
	TargetTicks     int   // AdjustPerformance
	Policy          doctrine.PolicyElement
	HasPolicy       bool
	Priority        int // 0-100, higher = more urgent
	ExpectedImpact  float64
	Cost            float64
}

// Plan is one cycle's candidate adaptation: an ordered list of actions
// a Planner proposes, not yet an Overlay (the Execute stage assembles
// the ΔΣ.changes list from Plan.Actions and hands it to the overlay
// validator).
type Plan struct {
	ID              uuid.UUID
	Actions         []Action
	Priority        int
	ExpectedBenefit float64
}

func (p Plan) totalCost() float64 {
	var c float64
	for _, a := range p.Actions {
		c += a.Cost
	}
	return c
}

// Planner generates candidate plans from Analysis, either from rule
// matches keyed to violated goals or from anomaly-triggered defaults.
// Actions that target a specific pattern aim at whichever pattern id
// the snapshot's PatternHistogram shows consuming the most ticks,
// rather than a fixed or zero id.
type Planner struct{}

// NewPlanner returns a rule-matching Planner.
func NewPlanner() *Planner { return &Planner{} }

// Plan generates a candidate adaptation plan from a from a completed
// Analysis and the snapshot it was computed against. Returns nil when
// no adaptation is needed.
func (p *Planner) Plan(snap *KnowledgeSnapshot, a Analysis) *Plan {
	if !a.AdaptationNeeded {
		return nil
	}

	plan := &Plan{ID: uuid.New()}

	target := hottestPattern(snap.PatternHistogram)
	for _, g := range a.ViolatedGoals {
		plan.Actions = append(plan.Actions, actionsForGoal(g, target)...)
	}
	for _, an := range a.Anomalies {
		plan.Actions = append(plan.Actions, actionsForAnomaly(an, target)...)
	}
	for _, r := range snap.Rules {
		for _, g := range a.ViolatedGoals {
			if r.Metric == g.Metric {
				plan.Actions = append(plan.Actions, Action{
					ID:             newActionID(),
					Type:           ActionWidenPolicy,
					Priority:       50,
					ExpectedImpact: 0.5,
					Cost:           0.3,
				})
			}
		}
	}

	sort.SliceStable(plan.Actions, func(i, j int) bool {
		return plan.Actions[i].Priority > plan.Actions[j].Priority
	})

	if len(plan.Actions) == 0 {
		return nil
	}

	var impact float64
	for _, act := range plan.Actions {
		impact += act.ExpectedImpact
	}
	plan.ExpectedBenefit = impact / float64(len(plan.Actions))
	return plan
}

func actionsForGoal(g Goal, targetPatternID uint8) []Action {
	switch g.Type {
	case GoalPerformance:
		return []Action{
			{ID: newActionID(), Type: ActionScaleMultiInstance, TargetPatternID: targetPatternID, Delta: 2, Priority: 60, ExpectedImpact: 0.5, Cost: 0.3},
			{ID: newActionID(), Type: ActionAdjustPerformance, TargetPatternID: targetPatternID, TargetTicks: 8, Priority: 60, ExpectedImpact: 0.4, Cost: 0.2},
		}
	case GoalResource:
		return []Action{
			{ID: newActionID(), Type: ActionNarrowPolicy, TargetPatternID: targetPatternID, Priority: 40, ExpectedImpact: 0.3, Cost: 0.2},
		}
	default:
		return nil
	}
}

func actionsForAnomaly(a Anomaly, targetPatternID uint8) []Action {
	switch a.Type {
	case AboveThreshold:
		return []Action{{ID: newActionID(), Type: ActionScaleMultiInstance, TargetPatternID: targetPatternID, Delta: 1, Priority: 50, ExpectedImpact: 0.4, Cost: 0.3}}
	case TrendUp:
		return []Action{{ID: newActionID(), Type: ActionWidenPolicy, TargetPatternID: targetPatternID, Priority: 30, ExpectedImpact: 0.2, Cost: 0.1}}
	default:
		return nil
	}
}

// hottestPattern returns the pattern id with the highest accumulated
// tick cost in hist, breaking ties toward the lowest id. Returns 0
// (no history yet, or the histogram is empty) when nothing has fired.
func hottestPattern(hist map[uint8]PatternStats) uint8 {
	ids := make([]uint8, 0, len(hist))
	for id := range hist {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	var best uint8
	var bestCost int64 = -1
	for _, id := range ids {
		if hist[id].TotalTickCost > bestCost {
			bestCost = hist[id].TotalTickCost
			best = id
		}
	}
	return best
}
