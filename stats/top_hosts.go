package stats

import (
	"container/heap"
	"hash/fnv"
	"sync"
	"sync/atomic"
)

const topHostsShardCount = 16

// TopHostsTracker 统计匹配次数最多的主机名
// 主机名数量达到上限后，新主机名被忽略，已有主机名继续计数。
type TopHostsTracker struct {
	shards      []*hostShard
	maxPerShard int
}

type hostShard struct {
	mu    sync.RWMutex
	hosts map[string]*int64
}

// HostCount 用于排序的结构体
type HostCount struct {
	Host  string `json:"host"`
	Count int64  `json:"count"`
}

func NewTopHostsTracker(maxHosts int) *TopHostsTracker {
	maxPerShard := maxHosts / topHostsShardCount
	if maxPerShard < 1 {
		maxPerShard = 1
	}
	t := &TopHostsTracker{
		shards:      make([]*hostShard, topHostsShardCount),
		maxPerShard: maxPerShard,
	}
	for i := range t.shards {
		t.shards[i] = &hostShard{hosts: make(map[string]*int64)}
	}
	return t
}

func (t *TopHostsTracker) shardFor(host string) *hostShard {
	h := fnv.New32a()
	h.Write([]byte(host))
	return t.shards[h.Sum32()%uint32(len(t.shards))]
}

// RecordMatch 记录一次匹配
func (t *TopHostsTracker) RecordMatch(host string) {
	if host == "" {
		return
	}
	shard := t.shardFor(host)

	// Fast path: check if exists
	shard.mu.RLock()
	counter, exists := shard.hosts[host]
	shard.mu.RUnlock()
	if exists {
		atomic.AddInt64(counter, 1)
		return
	}

	shard.mu.Lock()
	defer shard.mu.Unlock()
	if counter, exists = shard.hosts[host]; exists {
		atomic.AddInt64(counter, 1)
		return
	}
	if len(shard.hosts) < t.maxPerShard {
		n := int64(1)
		shard.hosts[host] = &n
	}
}

// Top 返回匹配次数最多的 k 个主机名，按次数降序，次数相同时按名称升序
func (t *TopHostsTracker) Top(k int) []HostCount {
	if k <= 0 {
		return nil
	}

	h := &hostMinHeap{}
	heap.Init(h)
	for _, shard := range t.shards {
		shard.mu.RLock()
		for host, counter := range shard.hosts {
			c := HostCount{Host: host, Count: atomic.LoadInt64(counter)}
			if h.Len() < k {
				heap.Push(h, c)
			} else if (*h)[0].worseThan(c) {
				heap.Pop(h)
				heap.Push(h, c)
			}
		}
		shard.mu.RUnlock()
	}

	result := make([]HostCount, h.Len())
	for i := h.Len() - 1; i >= 0; i-- {
		result[i] = heap.Pop(h).(HostCount)
	}
	return result
}

// Reset 清空所有计数
func (t *TopHostsTracker) Reset() {
	for _, shard := range t.shards {
		shard.mu.Lock()
		shard.hosts = make(map[string]*int64)
		shard.mu.Unlock()
	}
}

func (c HostCount) worseThan(o HostCount) bool {
	if c.Count != o.Count {
		return c.Count < o.Count
	}
	return c.Host > o.Host
}

// hostMinHeap 堆顶是当前 Top-K 中最差的一项
type hostMinHeap []HostCount

func (h hostMinHeap) Len() int           { return len(h) }
func (h hostMinHeap) Less(i, j int) bool { return h[i].worseThan(h[j]) }
func (h hostMinHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *hostMinHeap) Push(x interface{}) {
	*h = append(*h, x.(HostCount))
}

func (h *hostMinHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[0 : n-1]
	return x
}
