package index

import (
	"log/slog"

	"github.com/starford/calendle/internal/storage"
)

// Sync walks the data directory and brings the index up to date:
//   - new/changed documents are parsed and upserted
//   - documents removed from disk are deleted from the index
//
// A document that fails to parse is logged and skipped so one corrupt file
// does not block the rest of the catalog.
func Sync(db BulletIndex, store storage.Provider, logger *slog.Logger) error {
	metas, err := store.Keys()
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Key] = struct{}{}

		if checksums[m.Key] == m.Checksum {
			continue
		}

		data, err := store.ReadDocument(m.Key)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("key", m.Key), slog.String("error", err.Error()))
			continue
		}
		if err := indexDocument(db, m.Key, data); err != nil {
			logger.Warn("sync: index failed", slog.String("key", m.Key), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("key", m.Key))
		}
	}

	for k := range checksums {
		if _, ok := disk[k]; ok {
			continue
		}
		if err := db.DeleteDocument(k); err != nil {
			logger.Warn("sync: delete failed", slog.String("key", k), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: removed stale", slog.String("key", k))
		}
	}

	return nil
}
