package persist

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"trackerlens/session"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id            TEXT PRIMARY KEY,
	domain        TEXT NOT NULL DEFAULT '',
	total_count   INTEGER NOT NULL DEFAULT 0,
	ad_count      INTEGER NOT NULL DEFAULT 0,
	tracker_count INTEGER NOT NULL DEFAULT 0,
	events        TEXT NOT NULL DEFAULT '[]'
);
CREATE TABLE IF NOT EXISTS globals (
	id               INTEGER PRIMARY KEY CHECK (id = 1),
	total_matches    INTEGER NOT NULL DEFAULT 0,
	time_saved_ms    INTEGER NOT NULL DEFAULT 0,
	data_saved_bytes INTEGER NOT NULL DEFAULT 0,
	rewards          INTEGER NOT NULL DEFAULT 0,
	enabled          INTEGER
);
`

// SQLiteStore 基于 modernc.org/sqlite 的存储，每次 Save 为一个事务
type SQLiteStore struct {
	sqlDB *sql.DB
}

// OpenSQLiteStore 打开数据库并创建表
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// 写入已由 Batcher 串行化
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(sqliteSchema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{sqlDB: sqlDB}, nil
}

func (s *SQLiteStore) Load(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	snap := emptySnapshot()

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, domain, total_count, ad_count, tracker_count, events
FROM sessions
`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			st     session.State
			events string
		)
		if err := rows.Scan(&st.ID, &st.Domain, &st.TotalCount, &st.AdCount, &st.TrackerCount, &events); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if err := json.Unmarshal([]byte(events), &st.Events); err != nil {
			return nil, fmt.Errorf("decode events for %s: %w", st.ID, err)
		}
		snap.Sessions[st.ID] = st
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	var enabled sql.NullBool
	err = s.sqlDB.QueryRowContext(ctx, `
SELECT total_matches, time_saved_ms, data_saved_bytes, rewards, enabled
FROM globals WHERE id = 1
`).Scan(&snap.Globals.TotalMatches, &snap.Globals.TimeSavedMs, &snap.Globals.DataSavedBytes, &snap.Globals.Rewards, &enabled)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return nil, fmt.Errorf("load globals: %w", err)
	case enabled.Valid:
		snap.Globals.Enabled = &enabled.Bool
	}
	return snap, nil
}

func (s *SQLiteStore) Save(ctx context.Context, b Batch) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if b.Reset {
		if _, err = tx.ExecContext(ctx, `DELETE FROM sessions`); err != nil {
			return fmt.Errorf("clear sessions: %w", err)
		}
	}
	for _, id := range b.Removed {
		if _, err = tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
			return fmt.Errorf("remove session %s: %w", id, err)
		}
	}
	for id, st := range b.Sessions {
		var events []byte
		if events, err = json.Marshal(st.Events); err != nil {
			return err
		}
		if st.Events == nil {
			events = []byte("[]")
		}
		_, err = tx.ExecContext(ctx, `
INSERT INTO sessions (id, domain, total_count, ad_count, tracker_count, events)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	domain = excluded.domain,
	total_count = excluded.total_count,
	ad_count = excluded.ad_count,
	tracker_count = excluded.tracker_count,
	events = excluded.events
`, id, st.Domain, st.TotalCount, st.AdCount, st.TrackerCount, string(events))
		if err != nil {
			return fmt.Errorf("save session %s: %w", id, err)
		}
	}

	var enabled sql.NullBool
	if b.Globals.Enabled != nil {
		enabled = sql.NullBool{Bool: *b.Globals.Enabled, Valid: true}
	}
	_, err = tx.ExecContext(ctx, `
INSERT INTO globals (id, total_matches, time_saved_ms, data_saved_bytes, rewards, enabled)
VALUES (1, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	total_matches = excluded.total_matches,
	time_saved_ms = excluded.time_saved_ms,
	data_saved_bytes = excluded.data_saved_bytes,
	rewards = excluded.rewards,
	enabled = excluded.enabled
`, b.Globals.TotalMatches, b.Globals.TimeSavedMs, b.Globals.DataSavedBytes, b.Globals.Rewards, enabled)
	if err != nil {
		return fmt.Errorf("save globals: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Close releases the SQLite connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}
