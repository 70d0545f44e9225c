package session

import (
	"time"

	"trackerlens/adblock"
)

// Event 一次匹配事件
type Event struct {
	DisplayURL string           `json:"display_url"`
	FullURL    string           `json:"full_url"`
	Timestamp  time.Time        `json:"timestamp"`
	Category   adblock.Category `json:"category"`
}

// Overflow 事件列表已满时的处理策略
type Overflow int

const (
	// DropOldest 丢弃最旧的事件，列表始终是最近 K 条
	DropOldest Overflow = iota
	// DropNewest 列表满后不再追加，只递增计数
	DropNewest
)

// ParseOverflow 解析配置值，未知值回退到 DropOldest
func ParseOverflow(s string) Overflow {
	if s == "drop_newest" {
		return DropNewest
	}
	return DropOldest
}

// recentEvents 有界的最近事件列表，最新的在最前
type recentEvents struct {
	events   []Event
	maxSize  int
	overflow Overflow
}

func newRecentEvents(maxSize int, overflow Overflow) recentEvents {
	if maxSize < 0 {
		maxSize = 0
	}
	return recentEvents{maxSize: maxSize, overflow: overflow}
}

// Add 在头部插入事件
func (r *recentEvents) Add(ev Event) {
	if r.maxSize == 0 {
		return
	}
	if len(r.events) < r.maxSize {
		r.events = append(r.events, Event{})
	} else if r.overflow == DropNewest {
		return
	}
	copy(r.events[1:], r.events)
	r.events[0] = ev
}

// GetAll returns a copy of the events, newest first
func (r *recentEvents) GetAll() []Event {
	result := make([]Event, len(r.events))
	copy(result, r.events)
	return result
}

// Clear clears all events
func (r *recentEvents) Clear() {
	r.events = nil
}

// Len returns the current number of events in the list
func (r *recentEvents) Len() int {
	return len(r.events)
}
