package compiler

import (
	"sort"
	"strconv"

	"github.com/rubintree/loom/graph"
)

// extractedNode is the language-neutral intermediate record: one entry
// per workflow node, not yet packed.
type extractedNode struct {
	Name             string
	ExplicitPattern  uint8
	Splits           map[string]bool
	Joins            map[string]bool
	JoinK            *int
	JoinKExpr        string
	MICount          *int
	Milestone        bool
	CancelOf         string
	Roles            []string
	Out              []string
	Timer            *extractedTimer
}

type extractedTimer struct {
	Kind     string
	DueAtRaw string
	CatchUp  string
	RRule    string
}

// extract walks the canonical quad sequence once, grouping assertions
// by subject node name into extractedNode records.
func extract(g graph.Graph) (map[string]*extractedNode, []string, error) {
	nodes := make(map[string]*extractedNode)
	get := func(name string) *extractedNode {
		n, ok := nodes[name]
		if !ok {
			n = &extractedNode{Name: name, Splits: map[string]bool{}, Joins: map[string]bool{}}
			nodes[name] = n
		}
		return n
	}

	for _, q := range g.Quads() {
		n := get(q.Subject)
		switch q.Predicate {
		case predPattern:
			id, ok := patternByName[q.Object]
			if !ok {
				return nil, nil, coded(ErrUnsupported, q.Subject, "unknown pattern name: "+q.Object)
			}
			n.ExplicitPattern = id
		case predSplit:
			n.Splits[q.Object] = true
		case predJoin:
			n.Joins[q.Object] = true
		case predJoinK:
			v, err := strconv.Atoi(q.Object)
			if err != nil {
				return nil, nil, coded(ErrShapeViolation, q.Subject, "join:k must be an integer")
			}
			n.JoinK = &v
		case predJoinKExpr:
			n.JoinKExpr = q.Object
		case predFlowNext:
			n.Out = append(n.Out, q.Object)
			get(q.Object) // ensure target node record exists
		case predMICount:
			v, err := strconv.Atoi(q.Object)
			if err != nil {
				return nil, nil, coded(ErrShapeViolation, q.Subject, "mi:count must be an integer")
			}
			n.MICount = &v
		case predMilestone:
			n.Milestone = q.Object == "true"
		case predCancelOf:
			n.CancelOf = q.Object
		case predRole:
			n.Roles = append(n.Roles, q.Object)
		case predTimerKind:
			t := timerOf(n)
			t.Kind = q.Object
		case predTimerDueAtNS:
			timerOf(n).DueAtRaw = q.Object
		case predTimerCatchUp:
			timerOf(n).CatchUp = q.Object
		case predTimerRRule:
			timerOf(n).RRule = q.Object
		}
	}

	names := make([]string, 0, len(nodes))
	for n := range nodes {
		names = append(names, n)
	}
	sort.Strings(names) // stable dense-index assignment, independent of quad order
	return nodes, names, nil
}

func timerOf(n *extractedNode) *extractedTimer {
	if n.Timer == nil {
		n.Timer = &extractedTimer{}
	}
	return n.Timer
}
