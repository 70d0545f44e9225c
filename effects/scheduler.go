// Package effects schedules the side effects of a match that can be
// coalesced: badge repaints per session and reward accrual.
package effects

import (
	"time"

	"trackerlens/eventloop"
)

// BadgeSink 接收角标重绘请求，core 只负责通知，不负责绘制
type BadgeSink interface {
	Repaint(handle string, totalCount int)
}

// BadgeSinkFunc adapts a function to BadgeSink.
type BadgeSinkFunc func(handle string, totalCount int)

func (f BadgeSinkFunc) Repaint(handle string, totalCount int) { f(handle, totalCount) }

// CountFunc 在重绘时读取会话最新计数；会话不存在时 ok 为 false
type CountFunc func(handle string) (count int, ok bool)

// RewardFunc 在奖励窗口关闭时一次性应用累计值
type RewardFunc func(units int64)

// Scheduler 角标防抖与奖励批量累计
// 所有方法都必须在事件循环协程上调用。
type Scheduler struct {
	timers        eventloop.Timers
	badgeDebounce time.Duration
	rewardWindow  time.Duration
	sink          BadgeSink
	counts        CountFunc
	applyReward   RewardFunc

	badges      map[string]eventloop.Timer
	pending     int64
	rewardTimer eventloop.Timer
}

func NewScheduler(timers eventloop.Timers, badgeDebounce, rewardWindow time.Duration, sink BadgeSink, counts CountFunc, applyReward RewardFunc) *Scheduler {
	return &Scheduler{
		timers:        timers,
		badgeDebounce: badgeDebounce,
		rewardWindow:  rewardWindow,
		sink:          sink,
		counts:        counts,
		applyReward:   applyReward,
		badges:        make(map[string]eventloop.Timer),
	}
}

// RequestBadge 请求重绘某个会话的角标
// 每个会话只有一个防抖槽：新请求取消旧定时器并重新计时，
// 触发时读取的是最终计数。
func (s *Scheduler) RequestBadge(handle string) {
	if t, ok := s.badges[handle]; ok {
		t.Stop()
	}
	s.badges[handle] = s.timers.AfterFunc(s.badgeDebounce, func() {
		delete(s.badges, handle)
		s.repaint(handle)
	})
}

func (s *Scheduler) repaint(handle string) {
	count, ok := s.counts(handle)
	if !ok {
		return
	}
	s.sink.Repaint(handle, count)
}

// RefreshNow 立即重绘，不经过防抖（用于显式刷新命令）
func (s *Scheduler) RefreshNow(handle string) {
	if t, ok := s.badges[handle]; ok {
		t.Stop()
		delete(s.badges, handle)
	}
	s.repaint(handle)
}

// AccrueReward 累计奖励；窗口内第一次累计时启动窗口定时器
func (s *Scheduler) AccrueReward(units int64) {
	if units <= 0 {
		return
	}
	s.pending += units
	if s.rewardTimer != nil {
		return
	}
	s.rewardTimer = s.timers.AfterFunc(s.rewardWindow, func() {
		s.rewardTimer = nil
		s.applyPending()
	})
}

func (s *Scheduler) applyPending() {
	if s.pending == 0 {
		return
	}
	units := s.pending
	s.pending = 0
	s.applyReward(units)
}

// PendingReward 返回尚未应用的奖励
func (s *Scheduler) PendingReward() int64 {
	return s.pending
}

// PendingBadges 返回等待中的角标定时器数量
func (s *Scheduler) PendingBadges() int {
	return len(s.badges)
}

// Cancel 取消某个会话的待重绘角标
func (s *Scheduler) Cancel(handle string) {
	if t, ok := s.badges[handle]; ok {
		t.Stop()
		delete(s.badges, handle)
	}
}

// CancelAll 取消所有待重绘角标，并丢弃未应用的奖励
func (s *Scheduler) CancelAll() {
	for handle, t := range s.badges {
		t.Stop()
		delete(s.badges, handle)
	}
	if s.rewardTimer != nil {
		s.rewardTimer.Stop()
		s.rewardTimer = nil
	}
	s.pending = 0
}

// Close 取消所有定时器，并把未应用的奖励立即应用
func (s *Scheduler) Close() {
	for handle, t := range s.badges {
		t.Stop()
		delete(s.badges, handle)
	}
	if s.rewardTimer != nil {
		s.rewardTimer.Stop()
		s.rewardTimer = nil
	}
	s.applyPending()
}
