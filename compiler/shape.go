package compiler

import "github.com/rubintree/loom/graph"

// validateShape enforces structural well-formedness of the observed
// graph: a node is declared by a "pattern" quad or by a "split"/"join"
// classification hint (lower resolves the hint to a pattern id), every
// flow quad's source and target are declared nodes, and every timer
// and join-threshold quad binds to a declared node. Failures are
// fail-fast with the first violating subject's path; no partial A is
// produced.
func validateShape(g graph.Graph, cfg ShapeConfig) error {
	nodes := make(map[string]bool)
	for _, q := range g.Quads() {
		if q.Predicate == predPattern || q.Predicate == predSplit || q.Predicate == predJoin {
			nodes[q.Subject] = true
		}
	}
	if len(nodes) == 0 {
		return coded(ErrShapeViolation, "", "graph declares no nodes (missing \"pattern\" assertions)")
	}

	for _, q := range g.Quads() {
		switch q.Predicate {
		case predFlowNext:
			if !nodes[q.Subject] {
				return coded(ErrShapeViolation, q.Subject, "flow source has no pattern tag")
			}
			if !nodes[q.Object] {
				return coded(ErrShapeViolation, q.Object, "flow target has no pattern tag")
			}
		case predTimerKind:
			if !nodes[q.Subject] {
				return coded(ErrShapeViolation, q.Subject, "timer bound to unknown node")
			}
		case predJoinK:
			if !nodes[q.Subject] {
				return coded(ErrShapeViolation, q.Subject, "join threshold on unknown node")
			}
		}
	}

	if cfg.StrictSHACL {
		for n := range nodes {
			hasOut := false
			hasIn := false
			for _, q := range g.Quads() {
				if q.Predicate == predFlowNext && q.Subject == n {
					hasOut = true
				}
				if q.Predicate == predFlowNext && q.Object == n {
					hasIn = true
				}
			}
			if !hasOut && !hasIn {
				return coded(ErrShapeViolation, n, "strict_shacl: node has neither inbound nor outbound flow")
			}
		}
	}
	return nil
}

// ShapeConfig carries the subset of doctrine that shape validation
// needs, keeping this package decoupled from doctrine's full surface.
type ShapeConfig struct {
	StrictSHACL bool
}
