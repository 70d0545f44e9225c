package persist

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trackerlens/adblock"
	"trackerlens/config"
	"trackerlens/session"
)

func sampleState(id string) session.State {
	return session.State{
		ID:     id,
		Domain: "news.example",
		Events: []session.Event{{
			DisplayURL: "https://ads.example/b...",
			FullURL:    "https://ads.example/banner.js",
			Timestamp:  time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
			Category:   adblock.CategoryAd,
		}},
		TotalCount: 4,
		AdCount:    4,
	}
}

func testStoreRoundTrip(t *testing.T, store Store) {
	ctx := context.Background()

	snap, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Sessions)

	enabled := false
	require.NoError(t, store.Save(ctx, Batch{
		Sessions: map[string]session.State{"1": sampleState("1"), "2": sampleState("2")},
		Globals:  GlobalsRecord{TotalMatches: 8, TimeSavedMs: 400, DataSavedBytes: 1024, Rewards: 8, Enabled: &enabled},
	}))
	require.NoError(t, store.Save(ctx, Batch{
		Removed: []string{"2"},
		Globals: GlobalsRecord{TotalMatches: 9, Enabled: &enabled},
	}))

	snap, err = store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Sessions, 1)
	assert.Equal(t, sampleState("1"), snap.Sessions["1"])
	assert.Equal(t, int64(9), snap.Globals.TotalMatches)
	require.NotNil(t, snap.Globals.Enabled)
	assert.False(t, *snap.Globals.Enabled)

	require.NoError(t, store.Save(ctx, Batch{Reset: true}))
	snap, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Sessions)
	assert.Equal(t, int64(0), snap.Globals.TotalMatches)
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	store := NewFileStore(path)
	testStoreRoundTrip(t, store)

	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file must be renamed away")

	// a fresh store reads what the first one wrote
	require.NoError(t, store.Save(context.Background(), Batch{Sessions: map[string]session.State{"5": sampleState("5")}}))
	snap, err := NewFileStore(path).Load(context.Background())
	require.NoError(t, err)
	assert.Contains(t, snap.Sessions, "5")
}

func TestFileStoreRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := NewFileStore(path).Load(context.Background())
	assert.Error(t, err)
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	store, err := OpenSQLiteStore(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	defer store.Close()

	testStoreRoundTrip(t, store)
}

func TestOpenSelectsBackend(t *testing.T) {
	dir := t.TempDir()

	store, err := Open(&config.PersistConfig{Backend: "file", Path: filepath.Join(dir, "s.json")})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, store)

	store, err = Open(&config.PersistConfig{Backend: "sqlite", Path: filepath.Join(dir, "s.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, store)
	require.NoError(t, store.Close())

	_, err = Open(&config.PersistConfig{Backend: "redis"})
	assert.Error(t, err)
}
