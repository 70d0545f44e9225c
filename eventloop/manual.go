package eventloop

import (
	"context"
	"sort"
	"time"
)

// Manual is a deterministic Timers implementation driven by Advance.
// Callbacks run synchronously on the caller's goroutine, which stands in for
// the loop in single-goroutine tests.
type Manual struct {
	now    time.Duration
	seq    int
	timers []*manualTimer
}

type manualTimer struct {
	m    *Manual
	due  time.Duration
	seq  int
	fn   func()
	done bool
}

// NewManual returns a Manual clock at time zero.
func NewManual() *Manual {
	return &Manual{}
}

// AfterFunc implements Timers.
func (m *Manual) AfterFunc(d time.Duration, fn func()) Timer {
	m.seq++
	t := &manualTimer{m: m, due: m.now + d, seq: m.seq, fn: fn}
	m.timers = append(m.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	if t.done {
		return false
	}
	t.done = true
	t.m.remove(t)
	return true
}

func (m *Manual) remove(t *manualTimer) {
	for i, x := range m.timers {
		if x == t {
			m.timers = append(m.timers[:i], m.timers[i+1:]...)
			return
		}
	}
}

// Advance moves the clock forward and fires every timer that comes due, in
// due-time order. Timers scheduled by callbacks are honored in the same call.
func (m *Manual) Advance(d time.Duration) {
	target := m.now + d
	for {
		next := m.nextDue(target)
		if next == nil {
			break
		}
		m.now = next.due
		next.done = true
		m.remove(next)
		next.fn()
	}
	m.now = target
}

func (m *Manual) nextDue(limit time.Duration) *manualTimer {
	if len(m.timers) == 0 {
		return nil
	}
	sort.SliceStable(m.timers, func(i, j int) bool {
		if m.timers[i].due != m.timers[j].due {
			return m.timers[i].due < m.timers[j].due
		}
		return m.timers[i].seq < m.timers[j].seq
	})
	if m.timers[0].due > limit {
		return nil
	}
	return m.timers[0]
}

// Call implements Executor by running fn inline.
func (m *Manual) Call(ctx context.Context, fn func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fn()
	return nil
}

// Pending reports how many timers are armed.
func (m *Manual) Pending() int {
	return len(m.timers)
}
