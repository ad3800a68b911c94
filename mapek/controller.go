package mapek

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rubintree/loom/doctrine"
)

// ControllerState tracks the cycle loop's lifecycle, grounded on the
// autonomic source's Stopped/Starting/Running/Stopping/Error enum,
// re-expressed as an atomic.Int32 rather than an async RwLock<T> since
// Go's cycle loop is a single goroutine guarded by a context.
type ControllerState int32

const (
	StateStopped ControllerState = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s ControllerState) String() string {
	switch s {
	case StateStopped:
		return "Stopped"
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	default:
		return "Unknown"
	}
}

// CycleStats accumulates counters across cycles for observability.
type CycleStats struct {
	Cycles       uint64
	PlansEmitted uint64
	LastHealth   HealthStatus
}

// OverlayProposal is what Plan hands to Execute: a candidate plan
// plus the knowledge snapshot it was derived from, so the executor of
// the cycle (normally overlay.Validator, wired in by the caller) can
// re-check obligations against the same facts that motivated it.
type OverlayProposal struct {
	Plan     *Plan
	Snapshot *KnowledgeSnapshot
}

// ExecuteFunc is supplied by the caller (normally wraps
// overlay.Validator.Validate + overlay.Promote) so mapek stays free of
// an import cycle back to overlay, which itself never needs to know
// about the controller.
type ExecuteFunc func(ctx context.Context, proposal OverlayProposal) error

// Controller runs the sequential Monitor(drain)->Analyze->Plan->Execute
// cycle on a fixed cadence, never touching the hot path directly.
type Controller struct {
	cfg       doctrine.Doctrine
	knowledge *Knowledge
	monitor   *Monitor
	analyzer  *Analyzer
	planner   *Planner
	execute   ExecuteFunc

	state atomic.Int32
	stats atomic.Pointer[CycleStats]
	stop  context.CancelFunc
	done  chan struct{}
}

// NewController wires a Controller from its stages. execute may be
// nil, in which case a proven plan is simply dropped (useful for
// Monitor/Analyze-only deployments or tests).
func NewController(cfg doctrine.Doctrine, knowledge *Knowledge, monitor *Monitor, execute ExecuteFunc) *Controller {
	c := &Controller{
		cfg:       cfg,
		knowledge: knowledge,
		monitor:   monitor,
		analyzer:  NewAnalyzer(),
		planner:   NewPlanner(),
		execute:   execute,
	}
	c.stats.Store(&CycleStats{})
	c.state.Store(int32(StateStopped))
	return c
}

// State returns the controller's current lifecycle state.
func (c *Controller) State() ControllerState {
	return ControllerState(c.state.Load())
}

// Stats returns a snapshot of cycle counters.
func (c *Controller) Stats() CycleStats {
	return *c.stats.Load()
}

// Start begins the cycle loop on cfg.MapeKCycle, returning once the
// loop goroutine has been launched. Returns an error if already
// running.
func (c *Controller) Start(ctx context.Context) error {
	if !c.state.CompareAndSwap(int32(StateStopped), int32(StateStarting)) {
		return coded(ErrControllerAlreadyRunning, "controller already running")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	c.stop = cancel
	c.done = make(chan struct{})
	c.state.Store(int32(StateRunning))

	go c.runLoop(loopCtx)
	return nil
}

// Stop requests the cycle loop to exit and blocks until it has.
func (c *Controller) Stop() error {
	if c.State() != StateRunning {
		return coded(ErrControllerNotRunning, "controller not running")
	}
	c.state.Store(int32(StateStopping))
	c.stop()
	<-c.done
	c.state.Store(int32(StateStopped))
	return nil
}

func (c *Controller) runLoop(ctx context.Context) {
	defer close(c.done)
	ticker := time.NewTicker(c.cfg.MapeKCycle)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.runCycle(ctx)
		}
	}
}

func (c *Controller) runCycle(ctx context.Context) {
	c.monitor.Drain(c.knowledge)

	snap := c.knowledge.Snapshot()
	analysis := c.analyzer.Analyze(snap)

	stats := c.Stats()
	stats.Cycles++
	stats.LastHealth = analysis.Health

	plan := c.planner.Plan(snap, analysis)
	if plan != nil {
		stats.PlansEmitted++
		if c.execute != nil {
			_ = c.execute(ctx, OverlayProposal{Plan: plan, Snapshot: snap})
		}
	}
	c.stats.Store(&stats)
}
