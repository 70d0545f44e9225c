package adblock

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trackerlens/config"
)

const sampleList = `[Adblock Plus 2.0]
! Title: sample
||doubleclick.net^$third-party
||adserver.example^
example.com##.banner
@@||good.example^
||tracker.example/pixel.gif$image
`

func testRulesConfig(t *testing.T, urls ...string) *config.RulesConfig {
	t.Helper()
	return &config.RulesConfig{
		RuleURLs:               urls,
		CacheDir:               t.TempDir(),
		LoadChunkSize:          2,
		MaxConcurrentDownloads: 2,
		DownloadTimeoutSeconds: 5,
		AuditExceptions:        true,
		Categories:             config.DefaultCategories,
	}
}

func TestManagerLoadFromLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "list.txt")
	require.NoError(t, os.WriteFile(path, []byte(sampleList), 0644))

	m, err := NewManager(testRulesConfig(t, path))
	require.NoError(t, err)

	store, report, err := m.Load(context.Background(), true)
	require.NoError(t, err)

	assert.Equal(t, 3, store.Len())
	assert.Equal(t, 3, report.Inserted)
	assert.Equal(t, 2, report.Skipped[SkipComment])
	assert.Equal(t, 1, report.Skipped[SkipCosmetic])
	assert.Equal(t, 1, report.Skipped[SkipException])
	assert.Equal(t, 1, report.Sources)
	assert.Empty(t, report.FailedSources)

	assert.Equal(t, CategoryTracker, store.Match("https://ad.doubleclick.net/x").Category)
	assert.Equal(t, CategoryAd, store.Match("https://adserver.example/b.js").Category)
	assert.False(t, store.Match("https://good.example/").Matched)

	allowed, rule := m.Auditor().Audit("good.example")
	assert.True(t, allowed)
	assert.Equal(t, "@@||good.example^", rule)
}

func TestManagerLoadUsesETag(t *testing.T) {
	var hits, notModified atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			notModified.Add(1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		fmt.Fprint(w, sampleList)
	}))
	defer srv.Close()

	cfg := testRulesConfig(t, srv.URL+"/list.txt")
	m, err := NewManager(cfg)
	require.NoError(t, err)

	store, _, err := m.Load(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 3, store.Len())

	// second run reuses the cached file
	m2, err := NewManager(cfg)
	require.NoError(t, err)
	store, _, err = m2.Load(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 3, store.Len())
	assert.Equal(t, int32(2), hits.Load())
	assert.Equal(t, int32(1), notModified.Load())
}

func TestManagerLoadWhileTogglingSources(t *testing.T) {
	var n atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", fmt.Sprintf(`"v%d"`, n.Add(1)))
		w.Header().Set("Last-Modified", "Mon, 02 Jan 2006 15:04:05 GMT")
		fmt.Fprint(w, sampleList)
	}))
	defer srv.Close()

	urls := []string{srv.URL + "/a.txt", srv.URL + "/b.txt"}
	m, err := NewManager(testRulesConfig(t, urls...))
	require.NoError(t, err)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			_, _, err := m.Load(ctx, true)
			assert.NoError(t, err)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			assert.NoError(t, m.SetSourceEnabled(urls[i%2], i%3 != 0))
			_ = m.GetSources()
		}
	}()
	wg.Wait()

	require.NoError(t, m.SetSourceEnabled(urls[0], true))
	require.NoError(t, m.SetSourceEnabled(urls[1], true))
	_, report, err := m.Load(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, report.FailedSources)
	for _, url := range urls {
		src := m.sourcesMgr.GetSource(url)
		assert.NotEmpty(t, src.ETag, "validators are recorded for %s", url)
		assert.Equal(t, "Mon, 02 Jan 2006 15:04:05 GMT", src.LastModified)
	}
}

func TestIsLocalSource(t *testing.T) {
	tests := []struct {
		url   string
		local bool
		path  string
	}{
		{"https://example.com/list.txt", false, ""},
		{"HTTPS://EXAMPLE.COM/list.txt", false, ""},
		{"Http://example.com/list.txt", false, ""},
		{"file:///etc/lists/a.txt", true, "/etc/lists/a.txt"},
		{"FILE:///etc/lists/a.txt", true, "/etc/lists/a.txt"},
		{"/var/lib/trackerlens/custom.txt", true, "/var/lib/trackerlens/custom.txt"},
		{"httpdocs/list.txt", true, "httpdocs/list.txt"},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.local, isLocalSource(tt.url))
			if tt.local {
				assert.Equal(t, tt.path, localPath(tt.url))
			}
		})
	}
}

func TestManagerLoadToleratesFailedSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "local.txt")
	require.NoError(t, os.WriteFile(path, []byte("||beacon.example^\n"), 0644))

	m, err := NewManager(testRulesConfig(t, srv.URL+"/missing.txt", path))
	require.NoError(t, err)

	store, report, err := m.Load(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 1, store.Len())
	assert.Equal(t, []string{srv.URL + "/missing.txt"}, report.FailedSources)

	statuses := m.GetSources()
	require.Len(t, statuses, 2)
	assert.Equal(t, "failed", statuses[0].Status)
}

func TestBuildStopsOnCancel(t *testing.T) {
	c, err := NewCategorizer(config.DefaultCategories)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store, _, err := Build(ctx, strings.Split("a\nb\nc", "\n"), c, 1)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, store.Len())
}

func TestBuildLaterLineWins(t *testing.T) {
	c, err := NewCategorizer([]config.CategoryRule{{Pattern: `^\|\|`, Category: "tracker"}})
	require.NoError(t, err)

	store, report, err := Build(context.Background(), []string{"x.example", "||x.example^"}, c, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Inserted)
	assert.Equal(t, 1, store.Len())
	assert.Equal(t, CategoryTracker, store.Match("http://x.example").Category)

	store, _, err = Build(context.Background(), []string{"||x.example^", "x.example$script"}, c, 0)
	require.NoError(t, err)
	assert.Equal(t, CategoryAd, store.Match("http://x.example").Category)
}
