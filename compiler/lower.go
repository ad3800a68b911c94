package compiler

import (
	"sort"

	"github.com/rubintree/loom/ir"
)

// lower assigns dense indices, computes in/out bitmasks, classifies
// each node's pattern per the resolution rules, and produces packed
// NodeIR/TimerIR records plus a role table.
func lower(nodes map[string]*extractedNode, names []string, cal Calendar, enableCancelMIComp bool) ([]ir.NodeIR, []ir.TimerIR, []byte, error) {
	index := make(map[string]uint32, len(names))
	for i, n := range names {
		index[n] = uint32(i)
	}

	roleSet := map[string]bool{}
	for _, n := range names {
		for _, r := range nodes[n].Roles {
			roleSet[r] = true
		}
	}
	roleTable := encodeRoleTable(roleSet)

	outMasks := make([]ir.Mask128, len(names))
	inMasks := make([]ir.Mask128, len(names))
	for i, n := range names {
		rec := nodes[n]
		for _, tgt := range rec.Out {
			ti, ok := index[tgt]
			if !ok {
				return nil, nil, nil, coded(ErrShapeViolation, n, "flow target not found after indexing: "+tgt)
			}
			outMasks[i] = outMasks[i].Set(ti)
			inMasks[ti] = inMasks[ti].Set(uint32(i))
		}
	}

	nodeIRs := make([]ir.NodeIR, 0, len(names))
	var timerIRs []ir.TimerIR
	for i, n := range names {
		rec := nodes[n]
		pattern, param, flags, err := classify(rec, index, enableCancelMIComp)
		if err != nil {
			return nil, nil, nil, err
		}
		if rec.Timer != nil {
			flags |= ir.FlagHasTimer
		}
		nodeIRs = append(nodeIRs, ir.NodeIR{
			Index:   uint32(i),
			Pattern: pattern,
			InMask:  inMasks[i],
			OutMask: outMasks[i],
			Param:   param,
			Flags:   flags,
		})
		if rec.Timer != nil {
			t, err := lowerTimer(uint32(i), rec.Timer, cal)
			if err != nil {
				return nil, nil, nil, err
			}
			timerIRs = append(timerIRs, t)
		}
	}
	return nodeIRs, timerIRs, roleTable, nil
}

// classify implements the pattern-resolution and tie-break rules.
func classify(rec *extractedNode, index map[string]uint32, enableCancelMIComp bool) (ir.Pattern, uint32, ir.NodeFlags, error) {
	var flags ir.NodeFlags
	if rec.Milestone {
		flags |= ir.FlagIsMilestone
	}

	if rec.ExplicitPattern != 0 {
		p := ir.Pattern(rec.ExplicitPattern)
		if p == ir.PatternCancelMIActivityCompensation && !enableCancelMIComp {
			return 0, 0, 0, coded(ErrUnsupported, rec.Name, "pattern 25 requires doctrine.EnableCancelMIComp")
		}
		param, err := explicitParam(rec, p, index)
		if err != nil {
			return 0, 0, 0, err
		}
		flags |= explicitFlags(p)
		return p, param, flags, nil
	}

	if len(rec.Splits) > 0 && len(rec.Joins) > 0 {
		return 0, 0, 0, coded(ErrAmbiguous, rec.Name, "node declares both split and join hints")
	}

	if len(rec.Splits) > 0 {
		kind, err := resolveFanKind(rec.Splits)
		if err != nil {
			return 0, 0, 0, coded(ErrAmbiguous, rec.Name, err.Error())
		}
		switch kind {
		case "and":
			return ir.PatternParallelSplit, 0, flags, nil
		case "xor":
			return ir.PatternExclusiveChoice, 0, flags, nil
		case "or":
			return ir.PatternMultiChoice, 0, flags, nil
		}
	}

	if len(rec.Joins) > 0 {
		kind, err := resolveFanKind(rec.Joins)
		if err != nil {
			return 0, 0, 0, coded(ErrAmbiguous, rec.Name, err.Error())
		}
		switch kind {
		case "and":
			if rec.JoinK != nil {
				return ir.PatternStaticPartialJoin, uint32(*rec.JoinK), flags, nil
			}
			if rec.JoinKExpr != "" {
				return ir.PatternDynamicPartialJoin, 0, flags, nil
			}
			return ir.PatternSynchronization, 0, flags, nil
		case "xor":
			return ir.PatternSimpleMerge, 0, flags, nil
		case "or":
			return ir.PatternStructuredSyncMerge, 0, flags, nil
		}
	}

	if rec.CancelOf != "" {
		tgt, ok := index[rec.CancelOf]
		if !ok {
			return 0, 0, 0, coded(ErrShapeViolation, rec.Name, "cancel:of target not found: "+rec.CancelOf)
		}
		flags |= ir.FlagIsCancelling
		return ir.PatternCancelActivity, tgt, flags, nil
	}

	if rec.MICount != nil {
		return ir.PatternMIDesignTime, uint32(*rec.MICount), flags, nil
	}

	if rec.Timer != nil && rec.Timer.Kind == "deferred" {
		return ir.PatternDeferredChoice, 0, flags, nil
	}

	switch len(rec.Out) {
	case 0:
		return ir.PatternImplicitTermination, 0, flags, nil
	case 1:
		return ir.PatternSequence, 0, flags, nil
	default:
		return 0, 0, 0, coded(ErrAmbiguous, rec.Name, "node has multiple outgoing flows but no split/join classification hint")
	}
}

// resolveFanKind applies the tie-break rule: XOR and OR both present
// resolves to XOR (the more-constrained reading, since OR permits
// overlapping fan-out that XOR forbids); AND mixed with XOR or OR is
// never resolvable and is reported Ambiguous.
func resolveFanKind(kinds map[string]bool) (string, error) {
	if len(kinds) == 1 {
		for k := range kinds {
			return k, nil
		}
	}
	if kinds["and"] {
		return "", errMixedAndExclusive
	}
	if kinds["xor"] && kinds["or"] {
		return "xor", nil
	}
	return "", errMixedAndExclusive
}

var errMixedAndExclusive = coded(ErrAmbiguous, "", "conflicting AND/XOR/OR fan-out classification")

func explicitParam(rec *extractedNode, p ir.Pattern, index map[string]uint32) (uint32, error) {
	switch p {
	case ir.PatternStaticPartialJoin:
		if rec.JoinK == nil {
			return 0, coded(ErrShapeViolation, rec.Name, "static_partial_join requires join:k")
		}
		return uint32(*rec.JoinK), nil
	case ir.PatternMIDesignTime, ir.PatternMIRuntime, ir.PatternMIWithoutSync, ir.PatternMINoPriorKnowledge:
		if rec.MICount != nil {
			return uint32(*rec.MICount), nil
		}
		return 0, nil
	case ir.PatternCancelActivity, ir.PatternCancelMIActivity:
		if rec.CancelOf == "" {
			return 0, nil
		}
		tgt, ok := index[rec.CancelOf]
		if !ok {
			return 0, coded(ErrShapeViolation, rec.Name, "cancel:of target not found: "+rec.CancelOf)
		}
		return tgt, nil
	default:
		return 0, nil
	}
}

func explicitFlags(p ir.Pattern) ir.NodeFlags {
	switch p {
	case ir.PatternDiscriminator, ir.PatternBlockingDiscriminator, ir.PatternCancellingDiscriminator:
		return ir.FlagIsDiscriminator
	case ir.PatternCancelActivity, ir.PatternCancelCase, ir.PatternCancelRegion,
		ir.PatternCancelMIActivity, ir.PatternCancelMultipleInstanceRegion,
		ir.PatternCancellingDiscriminator:
		return ir.FlagIsCancelling
	case ir.PatternCancelMIActivityCompensation:
		return ir.FlagIsCompensation
	default:
		return 0
	}
}

func lowerTimer(nodeIdx uint32, t *extractedTimer, cal Calendar) (ir.TimerIR, error) {
	var kind ir.TimerKind
	switch t.Kind {
	case "oneshot":
		kind = ir.TimerOneShot
	case "recurring":
		kind = ir.TimerRecurring
	case "deferred":
		kind = ir.TimerDeferredChoiceRace
	default:
		return ir.TimerIR{}, coded(ErrUnsupported, "", "unknown timer kind: "+t.Kind)
	}

	var catchUp ir.CatchUpPolicy
	switch t.CatchUp {
	case "", "fire_all":
		catchUp = ir.CatchUpFireAll
	case "fire_once":
		catchUp = ir.CatchUpFireOnce
	case "skip":
		catchUp = ir.CatchUpSkip
	default:
		return ir.TimerIR{}, coded(ErrUnsupported, "", "unknown catch_up policy: "+t.CatchUp)
	}

	var dueAt uint64
	var rruleID uint32
	var err error
	if t.DueAtRaw != "" {
		dueAt, err = parseDueAt(t.DueAtRaw, cal)
		if err != nil {
			return ir.TimerIR{}, err
		}
	}
	if t.RRule != "" {
		rruleID, err = cal.ResolveRecurrence(t.RRule)
		if err != nil {
			return ir.TimerIR{}, err
		}
	}

	return ir.TimerIR{
		NodeIndex: nodeIdx,
		Kind:      kind,
		CatchUp:   catchUp,
		DueAtNS:   dueAt,
		RRuleID:   rruleID,
	}, nil
}

func parseDueAt(raw string, cal Calendar) (uint64, error) {
	if n, ok := parseUintFast(raw); ok {
		return n, nil
	}
	return cal.ResolveInstant(raw)
}

func parseUintFast(s string) (uint64, bool) {
	if s == "" {
		return 0, false
	}
	var n uint64
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + uint64(c-'0')
	}
	return n, true
}

func encodeRoleTable(roles map[string]bool) []byte {
	names := make([]string, 0, len(roles))
	for r := range roles {
		names = append(names, r)
	}
	sort.Strings(names) // stable order for determinism
	var buf []byte
	for _, n := range names {
		buf = append(buf, []byte(n)...)
		buf = append(buf, 0)
	}
	return buf
}
