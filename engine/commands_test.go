package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trackerlens/adblock"
)

type fakeAuditor map[string]string

func (f fakeAuditor) Audit(host string) (bool, string) {
	rule, ok := f[host]
	return ok, rule
}

func TestExecuteClearSessionLogKeepsCounts(t *testing.T) {
	env := newTestEnv(t, testConfig(t, nil), "")
	ctx := context.Background()

	_, err := env.engine.Observe(ctx, "1", "https://ad.doubleclick.net/p")
	require.NoError(t, err)

	res, err := env.engine.Execute(ctx, ClearSessionLog{Handle: "1"})
	require.NoError(t, err)
	assert.Equal(t, Ack{OK: true}, res)

	st := env.state(t, "1")
	assert.Empty(t, st.Events)
	assert.Equal(t, 1, st.TotalCount)

	// unknown handles are acknowledged
	_, err = env.engine.Execute(ctx, ClearSessionLog{Handle: "missing"})
	assert.NoError(t, err)
}

func TestExecuteGlobalTotalAndCounters(t *testing.T) {
	env := newTestEnv(t, testConfig(t, nil), "")
	ctx := context.Background()

	for _, h := range []string{"1", "2", "3"} {
		_, err := env.engine.Observe(ctx, h, "https://adserver.example/b.js")
		require.NoError(t, err)
	}

	res, err := env.engine.Execute(ctx, GetGlobalTotal{})
	require.NoError(t, err)
	assert.Equal(t, GlobalTotal{Total: 3}, res)

	res, err = env.engine.Execute(ctx, GetGlobalCounters{})
	require.NoError(t, err)
	counters := res.(GlobalCounters)
	assert.Equal(t, int64(150), counters.TimeSavedMs)
	assert.True(t, counters.Enabled)
}

func TestExecuteSetEnabledRefreshesBadges(t *testing.T) {
	env := newTestEnv(t, testConfig(t, nil), "")
	ctx := context.Background()

	_, err := env.engine.Observe(ctx, "1", "https://ad.doubleclick.net/p")
	require.NoError(t, err)
	_, err = env.engine.Observe(ctx, "2", "https://ad.doubleclick.net/p")
	require.NoError(t, err)
	env.clock.Advance(time.Second)
	env.repaints = nil

	_, err = env.engine.Execute(ctx, SetEnabled{Enabled: false})
	require.NoError(t, err)
	env.clock.Advance(time.Second)
	assert.ElementsMatch(t, []repaint{{"1", 1}, {"2", 1}}, env.repaints)

	res, err := env.engine.Observe(ctx, "1", "https://ad.doubleclick.net/p")
	require.NoError(t, err)
	assert.False(t, res.Matched)
}

func TestExecuteResetAll(t *testing.T) {
	env := newTestEnv(t, testConfig(t, nil), "")
	ctx := context.Background()

	_, err := env.engine.Observe(ctx, "1", "https://ad.doubleclick.net/p")
	require.NoError(t, err)
	env.clock.Advance(5 * time.Second)

	_, err = env.engine.Execute(ctx, ResetAll{})
	require.NoError(t, err)

	res, _ := env.engine.Execute(ctx, GetGlobalCounters{})
	assert.Equal(t, GlobalCounters{Enabled: true}, res)
	assert.Equal(t, 0, env.engine.sessions.Len())
	assert.Equal(t, 0, env.engine.matchCache.Len())

	require.NoError(t, env.engine.Close(ctx))
	snap, err := env.store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Sessions)
	assert.Equal(t, int64(0), snap.Globals.TotalMatches)
}

func TestExecuteRequestBadgeRefresh(t *testing.T) {
	env := newTestEnv(t, testConfig(t, nil), "")
	ctx := context.Background()

	_, err := env.engine.Observe(ctx, "1", "https://ad.doubleclick.net/p")
	require.NoError(t, err)
	_, err = env.engine.Observe(ctx, "2", "https://ad.doubleclick.net/p")
	require.NoError(t, err)
	env.clock.Advance(time.Second)
	env.repaints = nil

	_, err = env.engine.Execute(ctx, RequestBadgeRefresh{Handle: "2"})
	require.NoError(t, err)
	env.clock.Advance(time.Second)
	assert.Equal(t, []repaint{{"2", 1}}, env.repaints)

	env.repaints = nil
	_, err = env.engine.Execute(ctx, RequestBadgeRefresh{})
	require.NoError(t, err)
	env.clock.Advance(time.Second)
	assert.Len(t, env.repaints, 2)
}

func TestExecuteTestURL(t *testing.T) {
	env := newTestEnv(t, testConfig(t, nil), "")
	ctx := context.Background()

	store := adblock.NewPatternStore()
	store.Insert("||ads.good.example^", adblock.CategoryAd)
	require.NoError(t, env.engine.InstallMatcher(ctx, store, fakeAuditor{"ads.good.example": "@@||good.example^"}))

	res, err := env.engine.Execute(ctx, TestURL{URL: "https://ads.good.example/x"})
	require.NoError(t, err)
	tr := res.(TestResult)
	assert.True(t, tr.Matched)
	assert.Equal(t, adblock.CategoryAd, tr.Category)
	assert.Equal(t, "ads.good.example", tr.Host)
	assert.True(t, tr.Allowlisted)
	assert.False(t, tr.Cached)

	// diagnostics record nothing
	assert.Equal(t, 0, env.engine.sessions.Len())
	c, _ := env.engine.Counters(ctx)
	assert.Equal(t, int64(0), c.TotalMatches)
}

func TestExecuteRejectsInvalidCommands(t *testing.T) {
	env := newTestEnv(t, testConfig(t, nil), "")
	ctx := context.Background()

	for _, cmd := range []Command{nil, GetSessionState{}, ClearSessionLog{}, TestURL{}} {
		_, err := env.engine.Execute(ctx, cmd)
		assert.ErrorIs(t, err, ErrInvalidCommand, "%T", cmd)
	}
}

func TestGlobalTotalSurvivesManySessions(t *testing.T) {
	env := newTestEnv(t, testConfig(t, nil), "")
	ctx := context.Background()

	const n = 200
	for i := 0; i < n; i++ {
		handle := string(rune('a' + i%20))
		_, err := env.engine.Observe(ctx, handle, "https://ad.doubleclick.net/p")
		require.NoError(t, err)
		if i%7 == 0 {
			require.NoError(t, env.engine.CloseSession(ctx, handle))
		}
	}
	c, _ := env.engine.Counters(ctx)
	assert.Equal(t, int64(n), c.TotalMatches)
}
