package compiler

import (
	"sync"
	"time"
)

// Calendar resolves civil-time timer expressions to monotonic
// nanosecond instants and recurrence rules to a compiled plan table
// index, the compiler's timer normalization stage.
type Calendar interface {
	ResolveInstant(civil string) (uint64, error)
	ResolveRecurrence(rrule string) (uint32, error)
}

// SystemCalendar resolves RFC3339 instants to Unix-epoch nanoseconds
// by parsing alone (no clock is read) and assigns stable incrementing
// ids to distinct recurrence-rule strings.
type SystemCalendar struct {
	mu     sync.Mutex
	rrules map[string]uint32
	next   uint32
}

// NewSystemCalendar returns a ready-to-use SystemCalendar.
func NewSystemCalendar() *SystemCalendar {
	return &SystemCalendar{rrules: make(map[string]uint32)}
}

// ResolveInstant parses civil as RFC3339 and returns nanoseconds since
// the Unix epoch, or CalendarError if it cannot be parsed.
func (c *SystemCalendar) ResolveInstant(civil string) (uint64, error) {
	t, err := time.Parse(time.RFC3339, civil)
	if err != nil {
		return 0, coded(ErrCalendar, civil, "unresolvable civil-time expression: "+err.Error())
	}
	ns := t.UnixNano()
	if ns < 0 {
		return 0, coded(ErrCalendar, civil, "resolved instant precedes the epoch")
	}
	return uint64(ns), nil
}

// ResolveRecurrence assigns (or reuses) a stable small integer id for
// rrule, the index into the compiled recurrence plan table.
func (c *SystemCalendar) ResolveRecurrence(rrule string) (uint32, error) {
	if rrule == "" {
		return 0, coded(ErrCalendar, rrule, "empty recurrence rule")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if id, ok := c.rrules[rrule]; ok {
		return id, nil
	}
	id := c.next
	c.rrules[rrule] = id
	c.next++
	return id, nil
}
