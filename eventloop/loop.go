// Package eventloop provides the cooperative scheduler that owns all mutable
// engine state. Tasks run one at a time on a single goroutine; timers post
// their callbacks back onto the loop instead of running on their own goroutine.
package eventloop

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrClosed is returned when work is submitted to a stopped loop.
var ErrClosed = errors.New("event loop closed")

// Timer is a cancellable scheduled callback.
type Timer interface {
	// Stop prevents the callback from running. It reports whether the
	// callback was still pending.
	Stop() bool
}

// Timers schedules callbacks. The loop implementation delivers them as loop
// tasks; tests use Manual.
type Timers interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

// Executor runs fn on the goroutine that owns the engine state and waits for
// it to finish.
type Executor interface {
	Call(ctx context.Context, fn func()) error
}

// Loop 单协程事件循环
type Loop struct {
	tasks    chan func()
	done     chan struct{}
	finished chan struct{}
	stopOnce sync.Once
	started  sync.Once
}

// New 创建事件循环，queueSize 为任务队列长度
func New(queueSize int) *Loop {
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &Loop{
		tasks:    make(chan func(), queueSize),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}
}

// Start 在后台协程中运行事件循环
func (l *Loop) Start() {
	l.started.Do(func() {
		go l.run()
	})
}

func (l *Loop) run() {
	defer close(l.finished)
	for {
		select {
		case fn := <-l.tasks:
			fn()
		case <-l.done:
			// 处理已入队的任务后退出
			for {
				select {
				case fn := <-l.tasks:
					fn()
				default:
					return
				}
			}
		}
	}
}

// Post 将任务加入队列；循环已停止时返回 false
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.tasks <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Call 在循环上执行 fn 并等待其完成
// 不能在循环任务内部调用，否则会死锁。
func (l *Loop) Call(ctx context.Context, fn func()) error {
	reply := make(chan struct{})
	task := func() {
		defer close(reply)
		fn()
	}

	select {
	case l.tasks <- task:
	case <-l.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-reply:
		return nil
	case <-l.finished:
		// 循环退出前会清空队列，再检查一次
		select {
		case <-reply:
			return nil
		default:
			return ErrClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop 停止接收新任务，执行完队列中的任务后返回
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		close(l.done)
	})
	l.Start()
	<-l.finished
}

// AfterFunc 在 d 之后把 fn 作为循环任务执行
func (l *Loop) AfterFunc(d time.Duration, fn func()) Timer {
	lt := &loopTimer{}
	lt.t = time.AfterFunc(d, func() {
		l.Post(func() {
			if lt.cancelled {
				return
			}
			lt.fired = true
			fn()
		})
	})
	return lt
}

// loopTimer 的 cancelled/fired 只在循环协程上读写
type loopTimer struct {
	t         *time.Timer
	cancelled bool
	fired     bool
}

func (lt *loopTimer) Stop() bool {
	lt.t.Stop()
	if lt.cancelled || lt.fired {
		return false
	}
	lt.cancelled = true
	return true
}
