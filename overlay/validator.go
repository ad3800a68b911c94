package overlay

import (
	"context"
	"sync"
	"time"

	"github.com/rubintree/loom/doctrine"
	"github.com/rubintree/loom/ir"
	"github.com/rubintree/loom/kvstore"
)

// ObligationResult records one proof obligation's verdict, grounded
// structurally on the autonomic source's ObligationResult/TestResults
// shapes (`original_source/.../autonomic/overlay_validator.rs`).
type ObligationResult struct {
	Obligation  string
	Satisfied   bool
	Error       string
	DurationNS  int64
	Tests       *TestResults
	Performance *PerformanceMetrics
}

// TestResults is an optional detail attached to an obligation that ran
// focused tests rather than a static check.
type TestResults struct {
	Total, Passed, Failed int
	Failures              []string
}

// PerformanceMetrics is an optional detail attached to the
// performance obligation.
type PerformanceMetrics struct {
	EstimatedTicks int
	Budget         int
}

// ValidationReport is the composed verdict across all obligations.
type ValidationReport struct {
	Obligations []ObligationResult
	Proven      bool
}

const validatorCacheCap = 1024

// Validator runs ΔΣ's proof obligations against a sealed artifact and
// doctrine, memoizing results by overlay content hash.
type Validator struct {
	artifact *ir.Artifact
	doctrine doctrine.Doctrine

	mu    sync.Mutex
	cache map[[32]byte]ValidationReport
	order [][32]byte // LRU eviction order, oldest first

	certStore kvstore.Store // optional; set via WithCertificateStore
}

// NewValidator returns a Validator bound to artifact and doctrine.
func NewValidator(artifact *ir.Artifact, d doctrine.Doctrine) *Validator {
	return &Validator{
		artifact: artifact,
		doctrine: d,
		cache:    make(map[[32]byte]ValidationReport),
	}
}

// Validate runs every obligation for o, advances o's ProofState, and
// returns the composed report. A cache hit short-circuits the checks
// but still mutates o to match the cached verdict, since callers pass
// fresh Overlay values each cycle.
func (v *Validator) Validate(ctx context.Context, o *Overlay) (ValidationReport, error) {
	if o == nil {
		return ValidationReport{}, coded(ErrObligationFailed, "nil overlay")
	}

	v.mu.Lock()
	if cached, ok := v.cache[o.ID]; ok {
		v.mu.Unlock()
		applyReport(o, cached)
		return cached, nil
	}
	v.mu.Unlock()

	o.State = ProofPending

	obligations := []func(context.Context, *Overlay) ObligationResult{
		v.checkPatternInvariants,
		v.checkPerformance,
		v.checkGuards,
		v.checkDoctrineConformance,
	}

	report := ValidationReport{Proven: true}
	for _, check := range obligations {
		result := check(ctx, o)
		report.Obligations = append(report.Obligations, result)
		if !result.Satisfied {
			report.Proven = false
		}
	}

	applyReport(o, report)
	v.memoize(o.ID, report)
	v.persistCertificate(o, report)
	return report, nil
}

func applyReport(o *Overlay, report ValidationReport) {
	if report.Proven {
		markProven(o)
		return
	}
	var reason string
	for _, r := range report.Obligations {
		if !r.Satisfied {
			reason = r.Obligation + ": " + r.Error
			break
		}
	}
	markRejected(o, reason)
}

func (v *Validator) memoize(id [32]byte, report ValidationReport) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.cache[id]; ok {
		return
	}
	if len(v.order) >= validatorCacheCap {
		oldest := v.order[0]
		v.order = v.order[1:]
		delete(v.cache, oldest)
	}
	v.cache[id] = report
	v.order = append(v.order, id)
}

// checkPatternInvariants verifies every pattern id in o.Scope is one
// the artifact's pattern index actually carries nodes for and is a
// valid, registered pattern — the "handler contract still holds"
// obligation, checked structurally since there is no separate
// executable contract object to re-run per overlay.
func (v *Validator) checkPatternInvariants(_ context.Context, o *Overlay) ObligationResult {
	start := nowNS()
	idx := v.artifact.PatternIndex()
	for _, pid := range o.Scope.PatternIDs {
		p := ir.Pattern(pid)
		if !p.Valid() {
			return failResult("pattern_invariants", "invalid pattern id", start)
		}
		if len(idx[p]) == 0 {
			return failResult("pattern_invariants", "pattern id not present in artifact scope", start)
		}
	}
	return okResult("pattern_invariants", start)
}

// checkPerformance estimates whether the change preserves the tick
// budget: AdjustPerformance changes propose a new per-transition
// ceiling, which must not exceed doctrine's hard max.
func (v *Validator) checkPerformance(_ context.Context, o *Overlay) ObligationResult {
	start := nowNS()
	for _, c := range o.Changes {
		if c.Kind != ChangeAdjustPerformance {
			continue
		}
		result := okResult("performance", start)
		result.Performance = &PerformanceMetrics{EstimatedTicks: c.TargetTicks, Budget: v.doctrine.MaxExecTicks}
		if c.TargetTicks > v.doctrine.MaxExecTicks {
			failed := failResult("performance", "target ticks exceeds doctrine max_exec_ticks", start)
			failed.Performance = result.Performance
			return failed
		}
		return result
	}
	return okResult("performance", start)
}

// checkGuards verifies that no ScaleMultiInstance change's Delta
// exceeds max_run_len, the transitions one scheduling slice may fire.
func (v *Validator) checkGuards(_ context.Context, o *Overlay) ObligationResult {
	start := nowNS()
	for _, c := range o.Changes {
		if c.Kind != ChangeScaleMultiInstance {
			continue
		}
		if int(c.Delta) > v.doctrine.MaxRunLen {
			return failResult("guards", "scale delta exceeds max_run_len", start)
		}
	}
	return okResult("guards", start)
}

// checkDoctrineConformance implements "Q ∧ ΔΣ has models" via the
// policy lattice's non-bottom meet check.
func (v *Validator) checkDoctrineConformance(_ context.Context, o *Overlay) ObligationResult {
	start := nowNS()
	for _, c := range o.Changes {
		if c.Kind != ChangeWidenPolicy && c.Kind != ChangeNarrowPolicy {
			continue
		}
		if !doctrine.Satisfiable(v.doctrine, c.Policy) {
			return failResult("doctrine_conformance", "policy meet collapses to bottom", start)
		}
	}
	return okResult("doctrine_conformance", start)
}

func okResult(name string, start int64) ObligationResult {
	return ObligationResult{Obligation: name, Satisfied: true, DurationNS: nowNS() - start}
}

func failResult(name, msg string, start int64) ObligationResult {
	return ObligationResult{Obligation: name, Satisfied: false, Error: msg, DurationNS: nowNS() - start}
}

func nowNS() int64 {
	return time.Now().UnixNano()
}
