// Package persist batches session and counter changes into single durable
// writes. Two backends are provided: a JSON file and an SQLite database.
package persist

import (
	"context"
	"fmt"
	"strings"

	"trackerlens/config"
	"trackerlens/session"
)

// GlobalsRecord 持久化的全局计数
type GlobalsRecord struct {
	TotalMatches   int64 `json:"total_matches"`
	TimeSavedMs    int64 `json:"time_saved_ms"`
	DataSavedBytes int64 `json:"data_saved_bytes"`
	Rewards        int64 `json:"rewards"`
	Enabled        *bool `json:"enabled,omitempty"`
}

// Snapshot 完整的持久化状态
type Snapshot struct {
	Sessions map[string]session.State `json:"sessions"`
	Globals  GlobalsRecord            `json:"globals"`
}

// Batch 一次刷新写入的内容
// Reset 为 true 时先清空存储，再应用其余字段。
type Batch struct {
	Reset    bool
	Sessions map[string]session.State
	Removed  []string
	Globals  GlobalsRecord
}

// Store 持久化后端
type Store interface {
	// Load 读取完整状态，存储为空时返回空快照
	Load(ctx context.Context) (*Snapshot, error)
	// Save 原子地应用一个批次
	Save(ctx context.Context, b Batch) error
	Close() error
}

func emptySnapshot() *Snapshot {
	return &Snapshot{Sessions: make(map[string]session.State)}
}

// Open 按配置创建存储后端
func Open(cfg *config.PersistConfig) (Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case "file":
		return NewFileStore(cfg.Path), nil
	case "sqlite":
		return OpenSQLiteStore(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown persist backend: %s", cfg.Backend)
	}
}
