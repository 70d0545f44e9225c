// Package engine ties the request-observation pipeline together. An Engine
// owns the pattern store, the match cache, the session map and the global
// counters; all of them are touched only from the executor's goroutine.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"trackerlens/adblock"
	"trackerlens/cache"
	"trackerlens/config"
	"trackerlens/effects"
	"trackerlens/eventloop"
	util "trackerlens/internal"
	"trackerlens/logger"
	"trackerlens/metrics"
	"trackerlens/persist"
	"trackerlens/session"
	"trackerlens/stats"
)

var (
	// ErrEngineClosed is returned by every entry point after Close.
	ErrEngineClosed = errors.New("engine closed")
	// ErrInvalidCommand is returned for a nil command or missing required input.
	ErrInvalidCommand = errors.New("invalid command")
)

var log = logger.With("Engine")

// GlobalCounters 全局计数，只由匹配事件驱动，与会话生命周期无关
type GlobalCounters struct {
	TotalMatches   int64 `json:"total_matches"`
	TimeSavedMs    int64 `json:"time_saved_ms"`
	DataSavedBytes int64 `json:"data_saved_bytes"`
	Rewards        int64 `json:"rewards"`
	Enabled        bool  `json:"enabled"`
}

// Auditor reports whether a host would have been let through by one of the
// discarded allowlist rules.
type Auditor interface {
	Audit(host string) (bool, string)
}

// Deps 引擎的外部依赖
type Deps struct {
	Exec   eventloop.Executor
	Timers eventloop.Timers
	Store  persist.Store
	Sink   effects.BadgeSink
	Stats  *stats.Stats
	Now    func() time.Time
}

type Engine struct {
	cfg  *config.Config
	exec eventloop.Executor
	now  func() time.Time

	matcher    adblock.Matcher
	auditor    Auditor
	matchCache *cache.MatchCache
	display    *cache.DisplayCache
	sessions   *session.Aggregator
	counters   GlobalCounters
	batcher    *persist.Batcher
	effects    *effects.Scheduler
	stats      *stats.Stats
	store      persist.Store
	closed     bool

	// 串行化规则重载，只在调用方协程中使用
	reloadMu sync.Mutex
}

// New 创建引擎
// 规则集在 InstallMatcher 之前为空，所有请求都视为未匹配。
func New(cfg *config.Config, deps Deps) *Engine {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Stats == nil {
		deps.Stats = stats.NewStats(&cfg.Stats)
	}
	if deps.Sink == nil {
		deps.Sink = effects.BadgeSinkFunc(func(string, int) {})
	}

	e := &Engine{
		cfg:        cfg,
		exec:       deps.Exec,
		now:        deps.Now,
		matcher:    adblock.NewPatternStore(),
		matchCache: cache.NewMatchCache(cfg.Cache.MatchCacheSize),
		display:    cache.NewDisplayCache(cfg.Cache.DisplayCacheSize, cfg.Session.DisplayMaxLen),
		sessions:   session.NewAggregator(cfg.Session.MaxEvents, session.ParseOverflow(cfg.Session.Overflow)),
		counters:   GlobalCounters{Enabled: cfg.Engine.Enabled},
		stats:      deps.Stats,
		store:      deps.Store,
	}

	e.batcher = persist.NewBatcher(deps.Store, deps.Timers,
		time.Duration(cfg.Persist.FlushDelayMs)*time.Millisecond, e.snapshot)
	e.effects = effects.NewScheduler(deps.Timers,
		time.Duration(cfg.Effects.BadgeDebounceMs)*time.Millisecond,
		time.Duration(cfg.Effects.RewardWindowMs)*time.Millisecond,
		deps.Sink, e.sessionCount, e.applyReward)
	return e
}

// call 在执行器上运行 fn；引擎关闭后返回 ErrEngineClosed
func (e *Engine) call(ctx context.Context, fn func() error) error {
	var err error
	callErr := e.exec.Call(ctx, func() {
		if e.closed {
			err = ErrEngineClosed
			return
		}
		err = fn()
	})
	if errors.Is(callErr, eventloop.ErrClosed) {
		return ErrEngineClosed
	}
	if callErr != nil {
		return callErr
	}
	return err
}

// Restore 从持久化存储恢复会话和全局计数
// 读取失败只记录日志，引擎以空状态继续运行。
func (e *Engine) Restore(ctx context.Context) error {
	snap, err := e.store.Load(ctx)
	if err != nil {
		log.Errorf("restore failed, starting empty: %v", err)
		return nil
	}

	return e.call(ctx, func() error {
		for _, st := range snap.Sessions {
			e.sessions.Restore(st)
		}
		g := snap.Globals
		e.counters.TotalMatches = g.TotalMatches
		e.counters.TimeSavedMs = g.TimeSavedMs
		e.counters.DataSavedBytes = g.DataSavedBytes
		e.counters.Rewards = g.Rewards
		if g.Enabled != nil {
			e.counters.Enabled = *g.Enabled
		}
		metrics.ActiveSessions.Set(float64(e.sessions.Len()))
		log.Infof("restored %d sessions, %d total matches", len(snap.Sessions), g.TotalMatches)
		return nil
	})
}

// InstallMatcher 安装新构建的规则集并清空匹配缓存
func (e *Engine) InstallMatcher(ctx context.Context, m adblock.Matcher, auditor Auditor) error {
	return e.call(ctx, func() error {
		e.matcher = m
		e.auditor = auditor
		e.matchCache.Clear()
		metrics.PatternsLoaded.Set(float64(m.Len()))
		log.Infof("installed rule set with %d patterns", m.Len())
		return nil
	})
}

// Observe 处理一次出站请求
// 引擎禁用时不做任何事（放行），返回未匹配。
func (e *Engine) Observe(ctx context.Context, handle, url string) (adblock.MatchResult, error) {
	var result adblock.MatchResult
	err := e.call(ctx, func() error {
		result = e.observe(handle, url)
		return nil
	})
	return result, err
}

func (e *Engine) observe(handle, url string) adblock.MatchResult {
	if !e.counters.Enabled {
		return adblock.NoMatch
	}
	e.stats.IncRequests()
	metrics.RequestsObserved.Inc()

	result, ok := e.matchCache.Get(url)
	if ok {
		e.stats.IncCacheHits()
		metrics.MatchCacheLookups.WithLabelValues("hit").Inc()
	} else {
		e.stats.IncCacheMisses()
		metrics.MatchCacheLookups.WithLabelValues("miss").Inc()
		result = e.matcher.Match(url)
		e.matchCache.Set(url, result)
	}
	if !result.Matched {
		return result
	}

	e.sessions.RecordMatch(handle, session.Event{
		DisplayURL: e.display.Display(url),
		FullURL:    url,
		Timestamp:  e.now().UTC(),
		Category:   result.Category,
	})
	e.batcher.MarkDirty(handle)
	e.effects.RequestBadge(handle)
	e.effects.AccrueReward(int64(e.cfg.Effects.RewardPerMatch))

	// 计数与匹配在同一任务内完成，不存在读-改-写竞争
	e.counters.TotalMatches++
	e.counters.TimeSavedMs += int64(e.cfg.Estimates.TimePerMatchMs)
	e.counters.DataSavedBytes += int64(e.cfg.Estimates.BytesPerMatch)

	e.stats.RecordMatch(util.ExtractHostname(url))
	metrics.MatchesTotal.WithLabelValues(string(result.Category)).Inc()
	metrics.ActiveSessions.Set(float64(e.sessions.Len()))
	return result
}

// Navigate 处理会话导航；主机名变化时重置会话
func (e *Engine) Navigate(ctx context.Context, handle, url string) error {
	domain := util.ExtractHostname(url)
	return e.call(ctx, func() error {
		if _, changed := e.sessions.Navigate(handle, domain); changed {
			log.Debugf("session %s now on %q", handle, domain)
			e.batcher.MarkDirty(handle)
			e.effects.RequestBadge(handle)
			metrics.ActiveSessions.Set(float64(e.sessions.Len()))
		}
		return nil
	})
}

// CloseSession 丢弃会话，取消其角标定时器和脏标记，并从存储中删除
// 全局计数不受影响。
func (e *Engine) CloseSession(ctx context.Context, handle string) error {
	return e.call(ctx, func() error {
		e.sessions.Close(handle)
		e.effects.Cancel(handle)
		e.batcher.MarkRemoved(handle)
		metrics.ActiveSessions.Set(float64(e.sessions.Len()))
		return nil
	})
}

// Counters 返回全局计数的副本
func (e *Engine) Counters(ctx context.Context) (GlobalCounters, error) {
	var c GlobalCounters
	err := e.call(ctx, func() error {
		c = e.counters
		return nil
	})
	return c, err
}

// CacheStats 返回匹配缓存统计
func (e *Engine) CacheStats(ctx context.Context) (cache.Stats, error) {
	var s cache.Stats
	err := e.call(ctx, func() error {
		s = e.matchCache.Stats()
		return nil
	})
	return s, err
}

// Close 关闭引擎：应用未结算的奖励，取消所有定时器，并同步写入剩余状态
func (e *Engine) Close(ctx context.Context) error {
	err := e.exec.Call(ctx, func() {
		if e.closed {
			return
		}
		e.closed = true
		e.effects.Close()
		e.batcher.Drain()
	})
	if err != nil && !errors.Is(err, eventloop.ErrClosed) {
		return err
	}
	return e.batcher.Close()
}

func (e *Engine) sessionCount(handle string) (int, bool) {
	s, ok := e.sessions.Get(handle)
	if !ok {
		return 0, false
	}
	return s.TotalCount, true
}

func (e *Engine) applyReward(units int64) {
	e.counters.Rewards += units
	e.batcher.MarkGlobals()
}

// snapshot 供 Batcher 在刷新时读取状态
func (e *Engine) snapshot(ids []string) (map[string]session.State, persist.GlobalsRecord) {
	states := make(map[string]session.State, len(ids))
	for _, id := range ids {
		if s, ok := e.sessions.Get(id); ok {
			states[id] = s.Snapshot()
		}
	}
	enabled := e.counters.Enabled
	return states, persist.GlobalsRecord{
		TotalMatches:   e.counters.TotalMatches,
		TimeSavedMs:    e.counters.TimeSavedMs,
		DataSavedBytes: e.counters.DataSavedBytes,
		Rewards:        e.counters.Rewards,
		Enabled:        &enabled,
	}
}
