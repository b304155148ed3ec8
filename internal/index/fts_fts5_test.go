//go:build sqlite_fts5

package index

import (
	"strings"
	"testing"
	"time"

	"github.com/starford/calendle/internal/document"
)

func TestFTS5_TableExists(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM bullets_fts`).Scan(&count); err != nil {
		t.Fatalf("bullets_fts table missing: %v", err)
	}
}

func TestFTS5_SearchWithSnippet(t *testing.T) {
	db := testDB(t)
	row := DocumentRow{Key: "someday", Kind: document.KindList, Checksum: "f1", UpdatedAt: time.Now()}
	if err := db.UpsertDocument(row, []BulletRow{{Position: 0, ID: "b1", Text: "learn powerful keyboard shortcuts"}}); err != nil {
		t.Fatalf("UpsertDocument: %v", err)
	}

	results, err := db.Search("powerful", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Key != "someday" || results[0].BulletID != "b1" {
		t.Errorf("result = %+v", results[0])
	}
	if !strings.Contains(results[0].Snippet, "<b>") {
		t.Errorf("snippet %q lacks match markers", results[0].Snippet)
	}
}

func TestFTS5_DeleteRemovesFromFTS(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertDocument(DocumentRow{Key: "gone", Kind: document.KindList, Checksum: "g", UpdatedAt: time.Now()},
		[]BulletRow{{Position: 0, ID: "x", Text: "vanishing content"}})
	_ = db.DeleteDocument("gone")

	results, err := db.Search("vanishing", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected 0 results after delete, got %d", len(results))
	}
}
