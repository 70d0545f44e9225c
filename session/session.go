// Package session keeps the per-handle aggregate of recent match events and
// running counts. Every method must be called from the event loop goroutine.
package session

import (
	"trackerlens/adblock"
)

// Session 一个标签页/会话的记录
type Session struct {
	ID           string
	Domain       string
	events       recentEvents
	TotalCount   int
	AdCount      int
	TrackerCount int
}

func newSession(id, domain string, maxEvents int, overflow Overflow) *Session {
	return &Session{
		ID:     id,
		Domain: domain,
		events: newRecentEvents(maxEvents, overflow),
	}
}

// Events returns the retained events, newest first.
func (s *Session) Events() []Event {
	return s.events.GetAll()
}

// record 记录一次匹配
// 计数总是递增，即使事件列表已满；因此计数可能大于保留的事件数。
func (s *Session) record(ev Event) {
	s.events.Add(ev)
	s.TotalCount++
	switch ev.Category {
	case adblock.CategoryTracker:
		s.TrackerCount++
	default:
		s.AdCount++
	}
}

// State 会话的只读快照
type State struct {
	ID           string  `json:"id"`
	Domain       string  `json:"domain"`
	Events       []Event `json:"events"`
	TotalCount   int     `json:"total_count"`
	AdCount      int     `json:"ad_count"`
	TrackerCount int     `json:"tracker_count"`
}

// Snapshot returns a deep copy of the session.
func (s *Session) Snapshot() State {
	return State{
		ID:           s.ID,
		Domain:       s.Domain,
		Events:       s.events.GetAll(),
		TotalCount:   s.TotalCount,
		AdCount:      s.AdCount,
		TrackerCount: s.TrackerCount,
	}
}
