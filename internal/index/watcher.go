package index

import (
	"context"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/lifeos/internal/storage"
	"github.com/starford/lifeos/internal/store"
)

const debounce = 200 * time.Millisecond

// ChangeCallback is called with the storage key of a collection whose index
// entries changed.
type ChangeCallback func(key string)

// Watch starts an fsnotify watcher on the data directory and re-syncs the
// collection behind every changed key until ctx is cancelled. Bursts of
// events for the same key are debounced. It calls cb (if non-nil) after each
// re-sync, including keys that are not indexed (such as settings), so other
// processes' writes reach live clients.
func Watch(ctx context.Context, db *DB, src Source, dataDir string, logger *slog.Logger, cb ChangeCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(dataDir); err != nil {
		return err
	}
	logger.Info("watcher: started", slog.String("root", dataDir))

	pending := make(map[string]struct{})
	var timer *time.Timer
	var timerCh <-chan time.Time

	schedule := func(key string) {
		pending[key] = struct{}{}
		if timer == nil {
			timer = time.NewTimer(debounce)
			timerCh = timer.C
		} else {
			timer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-timerCh:
			for key := range pending {
				resync(db, src, key, logger, cb)
			}
			clear(pending)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			key, isKey := storage.KeyFromPath(dataDir, ev.Name)
			if !isKey || key == store.KeyCookies || key == store.KeyTombstones {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				schedule(key)
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

func resync(db *DB, src Source, key string, logger *slog.Logger, cb ChangeCallback) {
	if kind, ok := KindForKey(key); ok {
		n, err := SyncKind(db, src, kind, logger)
		if err != nil {
			logger.Warn("watcher: sync failed", slog.String("key", key), slog.String("error", err.Error()))
			return
		}
		logger.Debug("watcher: synced", slog.String("key", key), slog.Int("changed", n))
	}
	if cb != nil {
		cb(key)
	}
}
