package mapek

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// DeltaEvent is the lock-free payload the hot path enqueues on every
// receipt emission: tick cost, fault flag, and which pattern fired.
// Monitor never blocks producing or consuming it: the push is a
// lock-free enqueue onto a ring the warm tier drains separately.
type DeltaEvent struct {
	PatternID  uint8
	TickCost   int
	Faulted    bool
	QueueDepth int
}

const monitorRingCapacity = 4096

// eventRing is a bounded circular buffer of DeltaEvent, deliberately
// separate from receipt.Ring (different payload, different package)
// but structurally the same fixed-capacity, overwrite-oldest design.
type eventRing struct {
	buf   []DeltaEvent
	head  int
	count int
}

func newEventRing(capacity int) *eventRing {
	return &eventRing{buf: make([]DeltaEvent, capacity)}
}

func (r *eventRing) push(ev DeltaEvent) {
	idx := (r.head + r.count) % len(r.buf)
	if r.count == len(r.buf) {
		r.head = (r.head + 1) % len(r.buf)
	} else {
		r.count++
	}
	r.buf[idx] = ev
}

func (r *eventRing) drain() []DeltaEvent {
	out := make([]DeltaEvent, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = r.buf[(r.head+i)%len(r.buf)]
	}
	r.head, r.count = 0, 0
	return out
}

// Monitor collects hot-path delta events into a bounded ring and
// exposes drained metrics via a Prometheus registry.
type Monitor struct {
	ring *eventRing

	ticksTotal    *prometheus.CounterVec
	faultsTotal   *prometheus.CounterVec
	receiptsTotal prometheus.Counter
	queueDepth    prometheus.Gauge
}

// NewMonitor returns a Monitor with its gauges/counters registered
// against reg.
func NewMonitor(reg *prometheus.Registry) *Monitor {
	m := &Monitor{
		ring: newEventRing(monitorRingCapacity),
		ticksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loom",
			Name:      "pattern_tick_total",
			Help:      "Total tick cost consumed per firing pattern id.",
		}, []string{"pattern_id"}),
		faultsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loom",
			Name:      "pattern_fault_total",
			Help:      "Total faulted transitions per pattern id.",
		}, []string{"pattern_id"}),
		receiptsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "loom",
			Name:      "receipts_total",
			Help:      "Total receipts observed by the monitor.",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "loom",
			Name:      "monitor_queue_depth",
			Help:      "Most recently observed monitor ring occupancy.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.ticksTotal, m.faultsTotal, m.receiptsTotal, m.queueDepth)
	}
	return m
}

// Push enqueues ev without blocking. Intended to be called from the
// hot path; never does I/O, never allocates beyond the ring slot
// write.
func (m *Monitor) Push(ev DeltaEvent) {
	m.ring.push(ev)
}

// Drain consumes the ring's current contents into facts on k, and
// updates Prometheus counters/gauges. Intended to run on the warm
// tier once per MAPE-K cycle.
func (m *Monitor) Drain(k *Knowledge) {
	events := m.ring.drain()
	m.queueDepth.Set(float64(len(events)))

	var totalTicks, faultCount int
	deltas := make(map[uint8]PatternStats, len(events))
	for _, ev := range events {
		label := patternLabel(ev.PatternID)
		m.ticksTotal.WithLabelValues(label).Add(float64(ev.TickCost))
		if ev.Faulted {
			m.faultsTotal.WithLabelValues(label).Inc()
			faultCount++
		}
		m.receiptsTotal.Inc()
		totalTicks += ev.TickCost

		d := deltas[ev.PatternID]
		d.Count++
		d.TotalTickCost += int64(ev.TickCost)
		if ev.Faulted {
			d.FaultCount++
		}
		deltas[ev.PatternID] = d
	}
	k.RecordPatternBatch(deltas)

	if len(events) == 0 {
		return
	}
	now := Now()
	k.AddFact(Fact{Metric: "avg_tick_cost", Value: float64(totalTicks) / float64(len(events)), Source: "monitor", TimestampNS: now})
	k.AddFact(Fact{Metric: "fault_rate", Value: float64(faultCount) / float64(len(events)), Source: "monitor", TimestampNS: now})
	k.AddFact(Fact{Metric: "queue_depth", Value: float64(len(events)), Source: "monitor", TimestampNS: now})
}

func patternLabel(id uint8) string {
	return "p" + strconv.Itoa(int(id))
}
