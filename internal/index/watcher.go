package index

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/calendle/internal/storage"
)

// Event kinds passed to EventCallback.
const (
	KindCreated = "created"
	KindUpdated = "updated"
	KindDeleted = "deleted"
)

const reconcileDelay = 200 * time.Millisecond

// EventCallback is called after a watcher-driven index change.
type EventCallback func(kind string, key string)

// Watch starts an fsnotify watcher on the data directory and keeps the
// index current until ctx is cancelled. The directory is flat: nested
// directories and dot-files (including in-flight temp files) are ignored.
//
// Saves land as a rename of a temp file onto the key, which arrives as a
// Create on the key. Renames away from a key delete it immediately and
// schedule a reconciliation pass against the directory listing.
func Watch(ctx context.Context, db BulletIndex, store storage.Provider, root string, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(reconcileDelay)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(reconcileDelay)
		}
	}

	notify := func(kind, key string) {
		if cb != nil {
			cb(kind, key)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			reconcile(db, store, logger, cb)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Dir(ev.Name) != filepath.Clean(root) {
				continue
			}
			key := filepath.Base(ev.Name)
			if strings.HasPrefix(key, ".") {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				if info, statErr := os.Stat(ev.Name); statErr != nil || info.IsDir() {
					continue
				}
				data, readErr := store.ReadDocument(key)
				if readErr != nil {
					logger.Warn("watcher: read failed", slog.String("key", key), slog.String("error", readErr.Error()))
					continue
				}
				existed, _ := db.GetChecksum(key)
				if existed == storage.Checksum(data) {
					continue
				}
				if idxErr := indexDocument(db, key, data); idxErr != nil {
					logger.Warn("watcher: index failed", slog.String("key", key), slog.String("error", idxErr.Error()))
					continue
				}
				kind := KindUpdated
				if existed == "" {
					kind = KindCreated
				}
				logger.Debug("watcher: indexed", slog.String("key", key), slog.String("op", kind))
				notify(kind, key)

			case ev.Op&fsnotify.Remove != 0:
				if delErr := db.DeleteDocument(key); delErr != nil {
					logger.Warn("watcher: delete failed", slog.String("key", key), slog.String("error", delErr.Error()))
					continue
				}
				logger.Debug("watcher: deleted", slog.String("key", key))
				notify(KindDeleted, key)

			case ev.Op&fsnotify.Rename != 0:
				if delErr := db.DeleteDocument(key); delErr != nil {
					logger.Warn("watcher: rename delete failed", slog.String("key", key), slog.String("error", delErr.Error()))
				} else {
					notify(KindDeleted, key)
				}
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// reconcile removes index entries without a document on disk and indexes
// documents whose checksum changed.
func reconcile(db BulletIndex, store storage.Provider, logger *slog.Logger, cb EventCallback) {
	checksums, err := db.AllChecksums()
	if err != nil {
		logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}

	metas, err := store.Keys()
	if err != nil {
		logger.Warn("reconcile: keys failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]string, len(metas))
	for _, m := range metas {
		disk[m.Key] = m.Checksum
	}

	for k := range checksums {
		if _, ok := disk[k]; ok {
			continue
		}
		if delErr := db.DeleteDocument(k); delErr == nil {
			logger.Debug("reconcile: removed stale", slog.String("key", k))
			if cb != nil {
				cb(KindDeleted, k)
			}
		}
	}

	for k, cs := range disk {
		if checksums[k] == cs {
			continue
		}
		data, readErr := store.ReadDocument(k)
		if readErr != nil {
			continue
		}
		if idxErr := indexDocument(db, k, data); idxErr == nil {
			logger.Debug("reconcile: indexed", slog.String("key", k))
			if cb != nil {
				cb(KindCreated, k)
			}
		}
	}
}
