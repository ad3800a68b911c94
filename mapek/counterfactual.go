package mapek

// ReceiptDiff is one sequence position where a baseline and an
// alternate replay of the same observable segment diverge: a
// different node/pattern fired, or one side fired and the other
// didn't.
type ReceiptDiff struct {
	Seq              uint64
	BaselineNode     uint32
	BaselinePattern  uint8
	AlternateNode    uint32
	AlternatePattern uint8
	BaselineOnly     bool
	AlternateOnly    bool
}

// CounterfactualDiff is the composed result of replaying the same
// observable segment against two artifacts or doctrines: which
// receipts diverged, and by how much every SLO-relevant metric moved.
type CounterfactualDiff struct {
	BaselineOutcome   string
	AlternateOutcome  string
	ChainHashDiverged bool
	ReceiptDelta      []ReceiptDiff
	SLODelta          map[string]float64
}
