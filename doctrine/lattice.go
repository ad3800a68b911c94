package doctrine

// PolicyElement is one point in the lattice of policy constraints an
// overlay or session action must respect, ordered by refinement:
// tighter bounds and stricter guards refine (are ≤) looser ones. The
// lattice's meet (⊓) is the pointwise tightest-common bound; its join
// (⊔) is the pointwise loosest-common bound.
type PolicyElement struct {
	LatencyBoundNS   uint64 // 0 = unbounded
	FailureBound     float64
	GuardStrict      bool
	CapacityEnvelope int // 0 = unbounded
}

// UnconstrainedPolicy is the lattice top (⊤): no bound refines it
// further in the "looser" direction.
var UnconstrainedPolicy = PolicyElement{
	LatencyBoundNS:   0,
	FailureBound:     1,
	GuardStrict:      false,
	CapacityEnvelope: 0,
}

// Meet returns the tightest-common-bound (⊓) of p and o: the most
// refined element both satisfy.
func (p PolicyElement) Meet(o PolicyElement) PolicyElement {
	return PolicyElement{
		LatencyBoundNS:   minBoundedU64(p.LatencyBoundNS, o.LatencyBoundNS),
		FailureBound:     minFloat(p.FailureBound, o.FailureBound),
		GuardStrict:      p.GuardStrict || o.GuardStrict,
		CapacityEnvelope: minBoundedInt(p.CapacityEnvelope, o.CapacityEnvelope),
	}
}

// Join returns the loosest-common-bound (⊔) of p and o.
func (p PolicyElement) Join(o PolicyElement) PolicyElement {
	return PolicyElement{
		LatencyBoundNS:   maxBoundedU64(p.LatencyBoundNS, o.LatencyBoundNS),
		FailureBound:     maxFloat(p.FailureBound, o.FailureBound),
		GuardStrict:      p.GuardStrict && o.GuardStrict,
		CapacityEnvelope: maxBoundedInt(p.CapacityEnvelope, o.CapacityEnvelope),
	}
}

// Refines reports whether p is at least as tight as o (p ≤ o in the
// refinement order: every bound p carries is ≤ the corresponding
// bound in o, and p.Meet(o) == p).
func (p PolicyElement) Refines(o PolicyElement) bool {
	return p.Meet(o) == p
}

// FromDoctrine projects a Doctrine's relevant fields into a
// PolicyElement, giving Q a single lattice point to meet overlays
// against.
func FromDoctrine(d Doctrine) PolicyElement {
	return PolicyElement{
		LatencyBoundNS:   uint64(d.MaxExecTicks),
		FailureBound:     d.MaxFailureRate,
		GuardStrict:      d.StrictSHACL,
		CapacityEnvelope: d.MaxConcurrentAdaptations,
	}
}

// Satisfiable implements "Q ∧ ΔΣ has models" (doctrine
// conformance obligation) as a non-bottom meet check: the overlay's
// policy element, combined with Q's own policy element via lattice
// meet, must keep every latency and capacity bound Q's own projection
// fixes (the meet may not come out zero, i.e. unbounded, where Q's is
// non-zero), and its failure bound must not be negative.
func Satisfiable(q Doctrine, p PolicyElement) bool {
	qp := FromDoctrine(q)
	m := qp.Meet(p)
	if qp.LatencyBoundNS != 0 && m.LatencyBoundNS == 0 {
		return false
	}
	if m.FailureBound < 0 {
		return false
	}
	if qp.CapacityEnvelope != 0 && m.CapacityEnvelope == 0 {
		return false
	}
	return true
}

func minBoundedU64(a, b uint64) uint64 {
	if a == 0 {
		return b
	}
	if b == 0 {
		return a
	}
	if a < b {
		return a
	}
	return b
}

func maxBoundedU64(a, b uint64) uint64 {
	if a == 0 || b == 0 {
		return 0
	}
	if a > b {
		return a
	}
	return b
}

func minBoundedInt(a, b int) int {
	if a == 0 {
		return b
	}
	if b == 0 {
		return a
	}
	if a < b {
		return a
	}
	return b
}

func maxBoundedInt(a, b int) int {
	if a == 0 || b == 0 {
		return 0
	}
	if a > b {
		return a
	}
	return b
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
