package stats

import (
	"runtime"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"trackerlens/config"
	"trackerlens/logger"
)

// Stats 运行统计
// 计数器由事件循环写入，HTTP 处理器并发读取，因此使用原子操作。
type Stats struct {
	requests    int64
	matches     int64
	cacheHits   int64
	cacheMisses int64

	topHosts *TopHostsTracker

	// 启动时间
	startTime time.Time
}

// NewStats 创建新的统计实例
func NewStats(cfg *config.StatsConfig) *Stats {
	// 第一次调用 Percent 会返回 0，所以在这里预热一下
	go func() {
		if _, err := cpu.Percent(time.Second, false); err != nil {
			logger.Warnf("无法初始化 CPU 使用率统计: %v", err)
		}
	}()

	return &Stats{
		topHosts:  NewTopHostsTracker(cfg.TopHostsMax),
		startTime: time.Now(),
	}
}

// IncRequests 增加已检查请求计数
func (s *Stats) IncRequests() {
	atomic.AddInt64(&s.requests, 1)
}

// IncCacheHits 增加缓存命中计数
func (s *Stats) IncCacheHits() {
	atomic.AddInt64(&s.cacheHits, 1)
}

// IncCacheMisses 增加缓存未命中计数
func (s *Stats) IncCacheMisses() {
	atomic.AddInt64(&s.cacheMisses, 1)
}

// RecordMatch 记录一次命中及其主机名
func (s *Stats) RecordMatch(host string) {
	atomic.AddInt64(&s.matches, 1)
	s.topHosts.RecordMatch(host)
}

// GetTopHosts 获取匹配次数最多的主机名
func (s *Stats) GetTopHosts(limit int) []HostCount {
	return s.topHosts.Top(limit)
}

// SystemStats 进程和主机资源快照
type SystemStats struct {
	CPUCores     int     `json:"cpu_cores"`
	CPUUsagePct  float64 `json:"cpu_usage_pct"`
	MemTotalMB   uint64  `json:"mem_total_mb"`
	MemUsedMB    uint64  `json:"mem_used_mb"`
	MemUsagePct  float64 `json:"mem_usage_pct"`
	GoMemAllocMB uint64  `json:"go_mem_alloc_mb"`
	Goroutines   int     `json:"goroutines"`
}

// GetSystemStats 获取系统状态 (使用 gopsutil)
func GetSystemStats() SystemStats {
	// 使用非阻塞方式获取CPU使用率，避免阻塞统计调用
	cpuUsage := 0.0
	cpuUsageCh := make(chan float64, 1)
	go func() {
		usage, err := cpu.Percent(200*time.Millisecond, false)
		if err != nil || len(usage) == 0 {
			if err != nil {
				logger.Warnf("无法获取 CPU 使用率: %v", err)
			}
			cpuUsageCh <- 0
			return
		}
		cpuUsageCh <- usage[0]
	}()

	select {
	case cpuUsage = <-cpuUsageCh:
	case <-time.After(100 * time.Millisecond):
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	sys := SystemStats{
		CPUCores:     runtime.NumCPU(),
		CPUUsagePct:  cpuUsage,
		GoMemAllocMB: memStats.Alloc / 1024 / 1024,
		Goroutines:   runtime.NumGoroutine(),
	}

	memInfo, err := mem.VirtualMemory()
	if err != nil {
		logger.Warnf("无法获取内存信息: %v", err)
		return sys
	}
	sys.MemTotalMB = memInfo.Total / 1024 / 1024
	sys.MemUsedMB = memInfo.Used / 1024 / 1024
	sys.MemUsagePct = memInfo.UsedPercent
	return sys
}

// Snapshot 运行统计快照
type Snapshot struct {
	Requests      int64       `json:"requests"`
	Matches       int64       `json:"matches"`
	CacheHits     int64       `json:"cache_hits"`
	CacheMisses   int64       `json:"cache_misses"`
	CacheHitRate  float64     `json:"cache_hit_rate"`
	TopHosts      []HostCount `json:"top_hosts"`
	System        SystemStats `json:"system"`
	UptimeSeconds float64     `json:"uptime_seconds"`
}

// GetStats 获取统计信息
func (s *Stats) GetStats(topLimit int) Snapshot {
	hits := atomic.LoadInt64(&s.cacheHits)
	misses := atomic.LoadInt64(&s.cacheMisses)

	var hitRate float64
	if hits+misses > 0 {
		hitRate = float64(hits) / float64(hits+misses) * 100
	}

	return Snapshot{
		Requests:      atomic.LoadInt64(&s.requests),
		Matches:       atomic.LoadInt64(&s.matches),
		CacheHits:     hits,
		CacheMisses:   misses,
		CacheHitRate:  hitRate,
		TopHosts:      s.topHosts.Top(topLimit),
		System:        GetSystemStats(),
		UptimeSeconds: time.Since(s.startTime).Seconds(),
	}
}

// Reset 重置统计
func (s *Stats) Reset() {
	atomic.StoreInt64(&s.requests, 0)
	atomic.StoreInt64(&s.matches, 0)
	atomic.StoreInt64(&s.cacheHits, 0)
	atomic.StoreInt64(&s.cacheMisses, 0)
	s.topHosts.Reset()
}
