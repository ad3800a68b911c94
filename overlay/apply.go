package overlay

import "github.com/rubintree/loom/ir"

// Apply materializes a Proven overlay's artifact-level changes into a
// new sealed Artifact, re-sealed under the same H(O)/H(doctrine)
// provenance pair since an overlay mutates A in place rather than
// recompiling from a new observed graph. Only ScaleMultiInstance has
// an artifact-level effect (it adjusts a node's Param, the MI
// population field); AdjustPerformance, WidenPolicy, and NarrowPolicy
// are doctrine-level changes the caller applies separately before
// re-validating against the new doctrine.
func Apply(artifact *ir.Artifact, o *Overlay) (*ir.Artifact, error) {
	if !o.IsProven() {
		return nil, coded(ErrNotProven, "overlay is not Proven")
	}
	nodes := append([]ir.NodeIR(nil), artifact.Nodes...)
	byIndex := make(map[uint32]int, len(nodes))
	for i, n := range nodes {
		byIndex[n.Index] = i
	}

	for _, c := range o.Changes {
		if c.Kind != ChangeScaleMultiInstance {
			continue
		}
		i, ok := byIndex[c.TargetNodeIndex]
		if !ok {
			continue
		}
		next := int64(nodes[i].Param) + int64(c.Delta)
		if next < 0 {
			next = 0
		}
		nodes[i].Param = uint32(next)
	}

	return ir.Seal(artifact.HashO, artifact.HashDoctrine, nodes, artifact.Timers, artifact.RoleTable)
}
