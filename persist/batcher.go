package persist

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"trackerlens/eventloop"
	"trackerlens/logger"
	"trackerlens/metrics"
	"trackerlens/session"
)

var log = logger.With("Persist")

// SnapshotFunc 在循环协程上调用，返回给定会话的当前状态（已不存在的会话省略）以及全局计数
type SnapshotFunc func(ids []string) (map[string]session.State, GlobalsRecord)

// Batcher 将脏会话合并为一次延迟写入
// 除 Close 外的方法都必须在事件循环协程上调用。
//
// 同一时刻最多只有一个待触发的刷新定时器；定时器已挂起时再次标脏不会重置它。
// 写入一旦发出就清空脏集合，写入失败只记录日志，不重试。
// 同一时刻最多只有一次写入在进行；上一次写入未完成时定时刷新保留脏集合并重新挂起定时器，
// 因此存储变慢时循环协程不会被阻塞。
type Batcher struct {
	store    Store
	timers   eventloop.Timers
	delay    time.Duration
	snapshot SnapshotFunc

	dirty        map[string]struct{}
	removed      map[string]struct{}
	globalsDirty bool
	reset        bool
	timer        eventloop.Timer

	writes    chan Batch
	busy      atomic.Bool
	wg        sync.WaitGroup
	closeOnce sync.Once
	closed    bool
}

// NewBatcher 创建批量写入器并启动写协程
func NewBatcher(store Store, timers eventloop.Timers, delay time.Duration, snapshot SnapshotFunc) *Batcher {
	b := &Batcher{
		store:    store,
		timers:   timers,
		delay:    delay,
		snapshot: snapshot,
		dirty:    make(map[string]struct{}),
		removed:  make(map[string]struct{}),
		writes:   make(chan Batch, 1),
	}
	b.wg.Add(1)
	go b.writer()
	return b
}

// writer 按发出顺序串行执行写入
func (b *Batcher) writer() {
	defer b.wg.Done()
	for batch := range b.writes {
		b.save(batch)
		b.busy.Store(false)
	}
}

func (b *Batcher) save(batch Batch) {
	start := time.Now()
	if err := b.store.Save(context.Background(), batch); err != nil {
		metrics.PersistFlushes.WithLabelValues("error").Inc()
		log.Errorf("write failed (%d sessions, %d removed): %v", len(batch.Sessions), len(batch.Removed), err)
		return
	}
	metrics.PersistFlushes.WithLabelValues("ok").Inc()
	log.Debugf("wrote %d sessions, %d removed in %v", len(batch.Sessions), len(batch.Removed), time.Since(start))
}

// MarkDirty 标记会话需要写入，必要时启动刷新定时器
func (b *Batcher) MarkDirty(id string) {
	b.dirty[id] = struct{}{}
	b.arm()
}

// MarkGlobals 标记全局计数需要写入
func (b *Batcher) MarkGlobals() {
	b.globalsDirty = true
	b.arm()
}

// MarkRemoved 丢弃会话的脏标记，并在下次刷新时从存储中删除它
func (b *Batcher) MarkRemoved(id string) {
	delete(b.dirty, id)
	b.removed[id] = struct{}{}
	b.arm()
}

// Reset 丢弃所有待写入内容，下次刷新时清空存储
func (b *Batcher) Reset() {
	b.dirty = make(map[string]struct{})
	b.removed = make(map[string]struct{})
	b.reset = true
	b.globalsDirty = true
	b.arm()
}

// Pending 是否有等待中的刷新
func (b *Batcher) Pending() bool {
	return b.timer != nil
}

// Writing 是否有写入正在进行（可在任意协程调用）
func (b *Batcher) Writing() bool {
	return b.busy.Load()
}

// DirtyCount 返回当前脏会话数量
func (b *Batcher) DirtyCount() int {
	return len(b.dirty)
}

func (b *Batcher) arm() {
	if b.timer != nil || b.closed {
		return
	}
	b.timer = b.timers.AfterFunc(b.delay, b.fire)
}

func (b *Batcher) fire() {
	b.timer = nil
	b.flush(false)
}

// Flush 立即发出一次写入（如有需要）
// 上一次写入仍在进行时不发出，保留脏集合并重新挂起定时器。
func (b *Batcher) Flush() {
	b.flush(false)
}

// Drain 停止接受新的定时刷新，并发出剩余内容
// 会等待正在进行的写入让出通道，只应在关闭流程中调用。
func (b *Batcher) Drain() {
	b.stopTimer()
	b.closed = true
	b.flush(true)
}

func (b *Batcher) stopTimer() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}

func (b *Batcher) flush(wait bool) {
	b.stopTimer()
	if b.closed && !wait {
		return
	}
	if len(b.dirty) == 0 && len(b.removed) == 0 && !b.globalsDirty && !b.reset {
		return
	}
	if !wait && b.busy.Load() {
		b.arm()
		return
	}

	ids := make([]string, 0, len(b.dirty))
	for id := range b.dirty {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	sessions, globals := b.snapshot(ids)

	removed := make([]string, 0, len(b.removed))
	for id := range b.removed {
		removed = append(removed, id)
	}
	sort.Strings(removed)

	batch := Batch{
		Reset:    b.reset,
		Sessions: sessions,
		Removed:  removed,
		Globals:  globals,
	}

	// 写入发出即视为成功
	b.dirty = make(map[string]struct{})
	b.removed = make(map[string]struct{})
	b.globalsDirty = false
	b.reset = false

	b.busy.Store(true)
	b.writes <- batch
}

// Close 取消定时器，同步刷新剩余内容并等待所有写入完成
// 必须在事件循环停止后调用，或在循环协程之外且不再有并发的标脏操作时调用。
func (b *Batcher) Close() error {
	b.closeOnce.Do(func() {
		b.Drain()
		close(b.writes)
		b.wg.Wait()
	})
	return b.store.Close()
}
