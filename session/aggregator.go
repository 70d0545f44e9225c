package session

import (
	"sort"
)

// Aggregator 管理所有会话
// 状态机: absent -> active (首次匹配或首次导航)
//         active -> active(reset) (导航到不同主机名)
//         active -> absent (句柄关闭)
type Aggregator struct {
	sessions  map[string]*Session
	maxEvents int
	overflow  Overflow
}

// NewAggregator 创建会话聚合器，maxEvents 为每个会话保留的事件上限
func NewAggregator(maxEvents int, overflow Overflow) *Aggregator {
	if maxEvents < 0 {
		maxEvents = 0
	}
	return &Aggregator{
		sessions:  make(map[string]*Session),
		maxEvents: maxEvents,
		overflow:  overflow,
	}
}

func (a *Aggregator) newSession(id, domain string) *Session {
	return newSession(id, domain, a.maxEvents, a.overflow)
}

// Get 获取会话
func (a *Aggregator) Get(id string) (*Session, bool) {
	s, ok := a.sessions[id]
	return s, ok
}

// RecordMatch 记录一次匹配，会话不存在时创建（domain 为空）
func (a *Aggregator) RecordMatch(id string, ev Event) *Session {
	s, ok := a.sessions[id]
	if !ok {
		s = a.newSession(id, "")
		a.sessions[id] = s
	}
	s.record(ev)
	return s
}

// Navigate 处理导航
// 会话不存在时创建；主机名变化时整体替换为新记录（计数和事件全部清零）。
// 返回值 changed 表示记录是否被创建或重置。
func (a *Aggregator) Navigate(id, domain string) (s *Session, changed bool) {
	s, ok := a.sessions[id]
	if ok && s.Domain == domain {
		return s, false
	}
	s = a.newSession(id, domain)
	a.sessions[id] = s
	return s, true
}

// ClearLog 只清空事件列表，保留计数
func (a *Aggregator) ClearLog(id string) bool {
	s, ok := a.sessions[id]
	if !ok {
		return false
	}
	s.events.Clear()
	return true
}

// Close 删除会话
func (a *Aggregator) Close(id string) bool {
	if _, ok := a.sessions[id]; !ok {
		return false
	}
	delete(a.sessions, id)
	return true
}

// Restore 用持久化数据恢复一个会话，事件按最新在前的顺序给出
func (a *Aggregator) Restore(st State) {
	s := a.newSession(st.ID, st.Domain)
	events := st.Events
	if len(events) > a.maxEvents {
		events = events[:a.maxEvents]
	}
	for i := len(events) - 1; i >= 0; i-- {
		s.events.Add(events[i])
	}
	s.TotalCount = st.TotalCount
	s.AdCount = st.AdCount
	s.TrackerCount = st.TrackerCount
	a.sessions[st.ID] = s
}

// Reset 清空所有会话
func (a *Aggregator) Reset() {
	a.sessions = make(map[string]*Session)
}

// IDs 返回所有会话 ID（已排序）
func (a *Aggregator) IDs() []string {
	ids := make([]string, 0, len(a.sessions))
	for id := range a.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len 返回会话数量
func (a *Aggregator) Len() int {
	return len(a.sessions)
}
