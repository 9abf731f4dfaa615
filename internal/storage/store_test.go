package storage_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/totescan/internal/config"
	"github.com/TheMichaelB/totescan/internal/events"
	"github.com/TheMichaelB/totescan/internal/storage"
)

func TestJSONStore(t *testing.T) {
	var buf bytes.Buffer
	logger := events.NewTestLogger(events.DebugLevel, "json", &buf)

	store, err := storage.NewJSONStore(filepath.Join(t.TempDir(), "nested", "recent.json"), logger)
	require.NoError(t, err)
	defer store.Close()

	testStoreOperations(t, store)
}

func TestSQLiteStore(t *testing.T) {
	var buf bytes.Buffer
	logger := events.NewTestLogger(events.DebugLevel, "json", &buf)

	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "recent.db"), logger)
	require.NoError(t, err)
	defer store.Close()

	testStoreOperations(t, store)
}

func TestMockStore(t *testing.T) {
	store := storage.NewMockStore()
	testStoreOperations(t, store)
	assert.Equal(t, 3, store.SaveCount())
}

func testStoreOperations(t *testing.T, store storage.RecentStore) {
	t.Run("load empty", func(t *testing.T) {
		barcodes, err := store.Load()
		require.NoError(t, err)
		assert.NotNil(t, barcodes)
		assert.Empty(t, barcodes)
	})

	t.Run("save and load keeps order", func(t *testing.T) {
		want := []string{"demo-tote-3", "demo-tote-1", "demo-tote-2"}
		require.NoError(t, store.Save(want))

		got, err := store.Load()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("save replaces", func(t *testing.T) {
		require.NoError(t, store.Save([]string{"demo-tote-9"}))

		got, err := store.Load()
		require.NoError(t, err)
		assert.Equal(t, []string{"demo-tote-9"}, got)
	})

	t.Run("save empty", func(t *testing.T) {
		require.NoError(t, store.Save(nil))

		got, err := store.Load()
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestJSONStoreCorruptionFallsBackToBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recent.json")
	store, err := storage.NewJSONStore(path, events.Discard())
	require.NoError(t, err)

	require.NoError(t, store.Save([]string{"demo-tote-1"}))
	require.NoError(t, store.Save([]string{"demo-tote-2", "demo-tote-1"}))

	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"demo-tote-1"}, got)
}

func TestJSONStoreChecksumMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recent.json")
	store, err := storage.NewJSONStore(path, events.Discard())
	require.NoError(t, err)

	require.NoError(t, store.Save([]string{"demo-tote-1"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	tampered := bytes.Replace(data, []byte("demo-tote-1"), []byte("demo-tote-7"), 1)
	require.NoError(t, os.WriteFile(path, tampered, 0600))

	_, err = store.Load()
	assert.ErrorIs(t, err, storage.ErrCorrupt)
}

func TestJSONStoreNoTempFileLeft(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "recent.json")
	store, err := storage.NewJSONStore(path, events.Discard())
	require.NoError(t, err)

	require.NoError(t, store.Save([]string{"demo-tote-1"}))

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestSQLiteStoreReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recent.db")

	store, err := storage.NewSQLiteStore(path, events.Discard())
	require.NoError(t, err)
	require.NoError(t, store.Save([]string{"demo-tote-2", "demo-tote-1"}))
	require.NoError(t, store.Close())

	store, err = storage.NewSQLiteStore(path, events.Discard())
	require.NoError(t, err)
	defer store.Close()

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"demo-tote-2", "demo-tote-1"}, got)
}

func TestNew(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		backend string
		file    string
		wantErr error
	}{
		{"json", "recent.json", nil},
		{"sqlite", "recent.db", nil},
		{"redis", "", storage.ErrUnknownBackend},
	}

	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			cfg := &config.HistoryConfig{Backend: tt.backend, Path: filepath.Join(dir, "recent")}
			store, err := storage.New(cfg, events.Discard())
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			defer store.Close()

			require.NoError(t, store.Save([]string{"demo-tote-1"}))
			_, err = os.Stat(filepath.Join(dir, tt.file))
			assert.NoError(t, err)
		})
	}
}

func TestMigrate(t *testing.T) {
	from := storage.NewMockStore("demo-tote-2", "demo-tote-1")
	to, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "recent.db"), events.Discard())
	require.NoError(t, err)
	defer to.Close()

	n, err := storage.Migrate(from, to)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := to.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"demo-tote-2", "demo-tote-1"}, got)

	from.LoadErr = errors.New("disk gone")
	_, err = storage.Migrate(from, to)
	assert.ErrorContains(t, err, "load source")
}
