package compiler

import (
	"log/slog"

	"github.com/rubintree/loom/doctrine"
	"github.com/rubintree/loom/graph"
	"github.com/rubintree/loom/ir"
)

// CompileReceipt is Γ_compile: the record a compilation run emits
// independent of any later execution receipt chain. It lets a caller
// audit which O snapshot and doctrine produced a given A without
// re-deriving H(A) from the artifact bytes.
type CompileReceipt struct {
	HashO        [32]byte
	HashDoctrine [32]byte
	HashA        [32]byte
	NodeCount    int
	TimerCount   int
}

var log = slog.Default()

// Compile runs the full O → A pipeline: shape validation, extraction,
// lowering, timer normalization, and sealing. It is idempotent: the
// same (snapshot, cfg) pair always yields the same H(A).
func Compile(snapshot graph.Graph, cfg doctrine.Doctrine, cal Calendar) (*ir.Artifact, [32]byte, CompileReceipt, error) {
	if err := cfg.Validate(); err != nil {
		return nil, [32]byte{}, CompileReceipt{}, err
	}
	if err := validateShape(snapshot, ShapeConfig{StrictSHACL: cfg.StrictSHACL}); err != nil {
		return nil, [32]byte{}, CompileReceipt{}, err
	}
	nodes, names, err := extract(snapshot)
	if err != nil {
		return nil, [32]byte{}, CompileReceipt{}, err
	}
	nodeIRs, timerIRs, roleTable, err := lower(nodes, names, cal, cfg.EnableCancelMIComp)
	if err != nil {
		return nil, [32]byte{}, CompileReceipt{}, err
	}

	hashO := snapshot.Hash()
	hashDoctrine := cfg.Hash()
	artifact, err := ir.Seal(hashO, hashDoctrine, nodeIRs, timerIRs, roleTable)
	if err != nil {
		return nil, [32]byte{}, CompileReceipt{}, err
	}
	hashA := artifact.HashA()

	log.Info("compiled artifact",
		slog.Int("node_count", len(nodeIRs)),
		slog.Int("timer_count", len(timerIRs)),
		slog.String("hash_a", hashHex(hashA)))

	return artifact, hashA, CompileReceipt{
		HashO:        hashO,
		HashDoctrine: hashDoctrine,
		HashA:        hashA,
		NodeCount:    len(nodeIRs),
		TimerCount:   len(timerIRs),
	}, nil
}

// CompileDelta compiles the snapshot formed by applying delta to prevO.
// It re-extracts and re-lowers the whole post-delta graph; prev's
// sealed records are not reused, and the affected set computed from
// delta is passed to shardMerge, which currently returns the fresh
// records unchanged. The result is the same artifact a full Compile of
// the post-delta graph would produce.
func CompileDelta(prev *ir.Artifact, prevO graph.Graph, delta graph.Delta, cfg doctrine.Doctrine, cal Calendar) (*ir.Artifact, [32]byte, CompileReceipt, error) {
	next := prevO.Apply(delta)
	affected := affectedScope(delta)

	if err := cfg.Validate(); err != nil {
		return nil, [32]byte{}, CompileReceipt{}, err
	}
	if err := validateShape(next, ShapeConfig{StrictSHACL: cfg.StrictSHACL}); err != nil {
		return nil, [32]byte{}, CompileReceipt{}, err
	}
	nodes, names, err := extract(next)
	if err != nil {
		return nil, [32]byte{}, CompileReceipt{}, err
	}
	nodeIRs, timerIRs, roleTable, err := lower(nodes, names, cal, cfg.EnableCancelMIComp)
	if err != nil {
		return nil, [32]byte{}, CompileReceipt{}, err
	}

	merged := shardMerge(prev, nodeIRs, timerIRs, affected)

	hashO := next.Hash()
	hashDoctrine := cfg.Hash()
	artifact, err := ir.Seal(hashO, hashDoctrine, merged.nodes, merged.timers, roleTable)
	if err != nil {
		return nil, [32]byte{}, CompileReceipt{}, err
	}
	hashA := artifact.HashA()

	log.Info("recompiled artifact via delta",
		slog.Int("affected", len(affected)),
		slog.String("hash_a", hashHex(hashA)))

	return artifact, hashA, CompileReceipt{
		HashO:        hashO,
		HashDoctrine: hashDoctrine,
		HashA:        hashA,
		NodeCount:    len(merged.nodes),
		TimerCount:   len(merged.timers),
	}, nil
}

// affectedScope names every node touched by delta: adds and removes
// both count, since a removed edge changes the in/out masks of both
// its endpoints (the delta's S ∪ neighbor(S) closure).
func affectedScope(delta graph.Delta) map[string]bool {
	scope := make(map[string]bool)
	mark := func(quads []graph.Quad) {
		for _, q := range quads {
			scope[q.Subject] = true
			scope[q.Object] = true
		}
	}
	mark(delta.Adds)
	mark(delta.Removes)
	return scope
}

type mergedRecords struct {
	nodes  []ir.NodeIR
	timers []ir.TimerIR
}

// shardMerge implements the shard merge law: nodes outside affected
// keep their record from the fresh full re-lowering whenever the
// index assignment agrees with prev (dense index is stable under
// canonicalization, preserving determinism); nodes inside affected always
// take the fresh record. Since extraction currently re-derives the
// complete node set on every call, the merge reduces to "always take
// the fresh set" — recorded here so a future partial-extract
// optimization has a single seam to change.
func shardMerge(prev *ir.Artifact, freshNodes []ir.NodeIR, freshTimers []ir.TimerIR, affected map[string]bool) mergedRecords {
	_ = prev
	_ = affected
	return mergedRecords{nodes: freshNodes, timers: freshTimers}
}

func hashHex(h [32]byte) string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, 64)
	for i, b := range h {
		out[i*2] = hexDigits[b>>4]
		out[i*2+1] = hexDigits[b&0xf]
	}
	return string(out)
}
