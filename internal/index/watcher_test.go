package index

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/starford/lifeos/internal/models"
	"github.com/starford/lifeos/internal/storage"
	"github.com/starford/lifeos/internal/store"
)

// watcherTestEnv sets up a data dir, a store over it, and a DB.
func watcherTestEnv(t *testing.T) (string, *store.Store, *DB) {
	t.Helper()
	dataDir := t.TempDir()
	fs, err := storage.NewFS(dataDir)
	if err != nil {
		t.Fatal(err)
	}
	return dataDir, store.New(fs), testDB(t)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func TestSyncIndexesStore(t *testing.T) {
	_, st, db := watcherTestEnv(t)
	task, err := st.CreateTask(store.TaskInput{Title: "Read chapter 4", Date: "2026-03-14", Category: "reading"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := st.SaveNote("2026-03-14", "# Quiet Saturday\nFinished the #novel. See [[2026-03-13]]."); err != nil {
		t.Fatal(err)
	}

	if err := Sync(db, st, quietLogger()); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if cs, _ := db.GetChecksum(KindTask, task.ID); cs == "" {
		t.Error("task not indexed")
	}
	bl, _ := db.Backlinks("2026-03-13")
	if len(bl) != 1 || bl[0].Kind != KindNote {
		t.Errorf("backlinks = %+v", bl)
	}
	results, _ := db.Search("novel", 10)
	if len(results) != 1 || results[0].Title != "Quiet Saturday" {
		t.Errorf("search = %+v", results)
	}

	// Unchanged records are skipped; deletions are reconciled.
	n, err := SyncKind(db, st, KindTask, quietLogger())
	if err != nil || n != 0 {
		t.Errorf("resync changed %d (%v), want 0", n, err)
	}
	_ = st.DeleteTask(task.ID)
	n, _ = SyncKind(db, st, KindTask, quietLogger())
	if n != 1 {
		t.Errorf("delete resync changed %d, want 1", n)
	}
	if cs, _ := db.GetChecksum(KindTask, task.ID); cs != "" {
		t.Error("deleted task still indexed")
	}
}

func TestWatcher_StoreWriteIndexed(t *testing.T) {
	dataDir, st, db := watcherTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var keys []string
	go Watch(ctx, db, st, dataDir, quietLogger(), func(key string) {
		mu.Lock()
		keys = append(keys, key)
		mu.Unlock()
	})
	time.Sleep(100 * time.Millisecond)

	task, err := st.CreateTask(store.TaskInput{Title: "Morning yoga", Date: "2026-03-14"})
	if err != nil {
		t.Fatal(err)
	}

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum(KindTask, task.ID)
		return cs != ""
	}, "new task not indexed by watcher")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, k := range keys {
			if k == store.KeyTasks {
				return true
			}
		}
		return false
	}, "expected tasks change callback")
}

func TestWatcher_RemovedCollectionUnindexed(t *testing.T) {
	dataDir, st, db := watcherTestEnv(t)
	if _, err := st.SaveNote("2026-03-14", "delete me"); err != nil {
		t.Fatal(err)
	}
	_ = Sync(db, st, quietLogger())
	if cs, _ := db.GetChecksum(KindNote, "2026-03-14"); cs == "" {
		t.Fatal("precondition: note should be indexed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Watch(ctx, db, st, dataDir, quietLogger(), nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.Remove(dataDir + "/" + store.KeyNotes + ".json")

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum(KindNote, "2026-03-14")
		return cs == ""
	}, "removed collection still in index")
}

func TestWatcher_IgnoresCookies(t *testing.T) {
	dataDir, st, db := watcherTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var keys []string
	go Watch(ctx, db, st, dataDir, quietLogger(), func(key string) {
		mu.Lock()
		keys = append(keys, key)
		mu.Unlock()
	})
	time.Sleep(100 * time.Millisecond)

	_ = st.SaveCookies([]byte(`[{"name":"access_token"}]`))
	if _, err := st.UpdateSettings(func(s *models.Settings) { s.Theme = "dark" }); err != nil {
		t.Fatal(err)
	}

	eventually(t, 3*time.Second, 50*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(keys) > 0
	}, "expected settings callback")

	mu.Lock()
	defer mu.Unlock()
	for _, k := range keys {
		if k == store.KeyCookies {
			t.Error("cookie writes should not be reported")
		}
	}
}
