package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trackerlens/adblock"
	"trackerlens/config"
)

func TestReloadRulesInstallsStoreAndAuditor(t *testing.T) {
	list := filepath.Join(t.TempDir(), "list.txt")
	require.NoError(t, os.WriteFile(list, []byte("||newads.example^\n@@||newads.example/ok^\n"), 0644))

	cfg := testConfig(t, func(c *config.Config) {
		c.Rules.RuleURLs = []string{list}
		c.Rules.CacheDir = t.TempDir()
		c.Rules.CustomRulesFile = filepath.Join(c.Rules.CacheDir, "custom_rules.txt")
		c.Rules.AuditExceptions = true
	})
	env := newTestEnv(t, cfg, "")
	ctx := context.Background()

	mgr, err := adblock.NewManager(&cfg.Rules)
	require.NoError(t, err)

	report, err := env.engine.ReloadRules(ctx, mgr, false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Patterns)
	assert.Equal(t, 1, report.Exceptions)

	// 旧规则集已被替换
	res, err := env.engine.Observe(ctx, "tab-1", "https://ad.doubleclick.net/x")
	require.NoError(t, err)
	assert.False(t, res.Matched)

	res, err = env.engine.Observe(ctx, "tab-1", "https://newads.example/banner.js")
	require.NoError(t, err)
	assert.True(t, res.Matched)
	assert.Equal(t, adblock.CategoryAd, res.Category)
}

func TestReloadRulesKeepsStoreOnCancel(t *testing.T) {
	cfg := testConfig(t, func(c *config.Config) {
		c.Rules.RuleURLs = nil
		c.Rules.CacheDir = t.TempDir()
		c.Rules.CustomRulesFile = filepath.Join(c.Rules.CacheDir, "custom_rules.txt")
	})
	env := newTestEnv(t, cfg, "")

	mgr, err := adblock.NewManager(&cfg.Rules)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = env.engine.ReloadRules(ctx, mgr, false)
	require.Error(t, err)

	res, err := env.engine.Observe(context.Background(), "tab-1", "https://ad.doubleclick.net/x")
	require.NoError(t, err)
	assert.True(t, res.Matched)
}
