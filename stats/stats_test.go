package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"trackerlens/config"
)

func TestGetTopHosts(t *testing.T) {
	s := NewStats(&config.StatsConfig{TopHostsMax: 1000})

	s.RecordMatch("doubleclick.net")
	s.RecordMatch("doubleclick.net")
	s.RecordMatch("doubleclick.net")
	s.RecordMatch("adnxs.com")
	s.RecordMatch("adnxs.com")
	s.RecordMatch("hotjar.com")
	s.RecordMatch("taboola.com")
	s.RecordMatch("taboola.com")
	s.RecordMatch("outbrain.com")

	// Test with limit > number of hosts
	top10 := s.GetTopHosts(10)
	assert.Len(t, top10, 5, "Expected 5 hosts")
	assert.Equal(t, "doubleclick.net", top10[0].Host)
	assert.Equal(t, int64(3), top10[0].Count)
	assert.Equal(t, "adnxs.com", top10[1].Host)
	assert.Equal(t, int64(2), top10[1].Count)
	assert.Equal(t, "taboola.com", top10[2].Host)
	assert.Equal(t, int64(2), top10[2].Count)

	// Test with limit < number of hosts
	top2 := s.GetTopHosts(2)
	assert.Len(t, top2, 2, "Expected 2 hosts")
	assert.Equal(t, "doubleclick.net", top2[0].Host)

	assert.Len(t, s.GetTopHosts(0), 0)

	s.Reset()
	assert.Len(t, s.GetTopHosts(5), 0, "Expected 0 hosts after reset")
}

func TestTopHostsTrackerCapsNewHosts(t *testing.T) {
	tr := NewTopHostsTracker(16)
	for i := 0; i < 100; i++ {
		tr.RecordMatch(string(rune('a'+i%26)) + ".example")
	}
	total := 0
	for _, hc := range tr.Top(100) {
		total++
		assert.Positive(t, hc.Count)
	}
	assert.LessOrEqual(t, total, 16)
	tr.RecordMatch("")
}

func TestGetStatsHitRate(t *testing.T) {
	s := NewStats(&config.StatsConfig{TopHostsMax: 10})
	s.IncRequests()
	s.IncRequests()
	s.IncCacheHits()
	s.IncCacheMisses()

	snap := s.GetStats(5)
	assert.Equal(t, int64(2), snap.Requests)
	assert.InDelta(t, 50.0, snap.CacheHitRate, 0.001)
	assert.Positive(t, snap.System.CPUCores)
}
