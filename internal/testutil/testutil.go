// Package testutil provides shared test helpers for setting up data
// directories and index databases.
package testutil

import (
	"os"
	"testing"

	"github.com/starford/calendle/internal/index"
	"github.com/starford/calendle/internal/storage"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "calendle-test-*.db")
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

// TestDataDir creates a temporary data directory backed by a storage.FS.
func TestDataDir(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// WriteDocument stores v under key and fails the test on error.
func WriteDocument(t *testing.T, store storage.Provider, key string, v any) {
	t.Helper()
	if err := store.WriteDocument(key, v); err != nil {
		t.Fatalf("write %s: %v", key, err)
	}
}
