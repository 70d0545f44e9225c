package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoadConfigCreatesDefault 配置文件不存在时写出默认配置
func TestLoadConfigCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	_, statErr := os.Stat(path)
	assert.NoError(t, statErr, "default config should be written to disk")

	assert.True(t, cfg.Engine.Enabled)
	assert.Equal(t, 100, cfg.Session.MaxEvents)
	assert.Equal(t, "file", cfg.Persist.Backend)
	assert.Len(t, cfg.Rules.Categories, 2)
	assert.Equal(t, "tracker", cfg.Rules.Categories[0].Category)
}

// TestParseFillsMissingValues 缺失字段使用默认值
func TestParseFillsMissingValues(t *testing.T) {
	cfg, err := Parse([]byte("session:\n  max_events: 3\n"))
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Session.MaxEvents)
	assert.Equal(t, 60, cfg.Session.DisplayMaxLen)
	assert.Equal(t, "drop_oldest", cfg.Session.Overflow)
	assert.Equal(t, 5000, cfg.Cache.MatchCacheSize)
	assert.Equal(t, 1000, cfg.Persist.FlushDelayMs)
	assert.Equal(t, 250, cfg.Effects.BadgeDebounceMs)
	assert.Equal(t, "info", cfg.System.LogLevel)
	assert.True(t, cfg.Engine.Enabled, "omitted engine.enabled defaults to true")
	assert.Equal(t, DefaultCategories, cfg.Rules.Categories)
}

func TestParseRespectsExplicitFalse(t *testing.T) {
	cfg, err := Parse([]byte("engine:\n  enabled: false\n"))
	require.NoError(t, err)
	assert.False(t, cfg.Engine.Enabled)
}

func TestParseKeepsCategoryOrder(t *testing.T) {
	data := `
rules:
  categories:
    - pattern: "ads"
      category: ad
    - pattern: "track"
      category: tracker
`
	cfg, err := Parse([]byte(data))
	require.NoError(t, err)
	require.Len(t, cfg.Rules.Categories, 2)
	assert.Equal(t, "ad", cfg.Rules.Categories[0].Category)
	assert.Equal(t, "tracker", cfg.Rules.Categories[1].Category)
}

func TestParseSqliteDefaultPath(t *testing.T) {
	cfg, err := Parse([]byte("persist:\n  backend: sqlite\n"))
	require.NoError(t, err)
	assert.Equal(t, "./trackerlens_state.db", cfg.Persist.Path)
}

func TestParseRejectsUnknownBackend(t *testing.T) {
	_, err := Parse([]byte("persist:\n  backend: redis\n"))
	assert.Error(t, err)
}

func TestParseRejectsEmptyCategoryPattern(t *testing.T) {
	_, err := Parse([]byte("rules:\n  categories:\n    - pattern: \"\"\n      category: ad\n"))
	assert.Error(t, err)
}

func TestParseRejectsUnknownOverflowPolicy(t *testing.T) {
	_, err := Parse([]byte("session:\n  overflow: ring\n"))
	assert.Error(t, err)
}
