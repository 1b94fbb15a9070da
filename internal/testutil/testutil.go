// Package testutil provides shared test helpers for setting up data directories,
// stores and index databases.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/starford/lifeos/internal/index"
	"github.com/starford/lifeos/internal/storage"
	"github.com/starford/lifeos/internal/store"
)

// Now is the fixed clock used by TestStore: Saturday 2026-03-14 09:30 UTC.
var Now = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "lifeos-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestData creates a temporary data directory with a storage.Provider.
func TestData(t *testing.T) (string, storage.Provider) {
	t.Helper()
	dataDir := t.TempDir()
	fs, err := storage.NewFS(dataDir)
	if err != nil {
		t.Fatal(err)
	}
	return dataDir, fs
}

// TestStore creates a store over a temporary data directory with a fixed
// clock and a discarding logger. opts are applied after those defaults.
func TestStore(t *testing.T, opts ...store.Option) *store.Store {
	t.Helper()
	_, fs := TestData(t)
	base := []store.Option{
		store.WithClock(func() time.Time { return Now }),
		store.WithLogger(Logger()),
	}
	return store.New(fs, append(base, opts...)...)
}

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}
