package index

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/calendle/internal/document"
	"github.com/starford/calendle/internal/storage"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "calendle-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func sampleWeek() document.Week {
	return document.Week{
		{Name: "Monday", Date: "2024-08-12", Bullets: []document.Bullet{
			{ID: "m1", Style: "todo", Text: "review pull request"},
			{ID: "m2", Style: "note", Text: "standup moved", Indent: 1},
		}},
		{Name: "Tuesday", Date: "2024-08-13", Bullets: []document.Bullet{
			{ID: "t1", Style: "todo", Text: ""},
		}},
	}
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM documents`).Scan(&count); err != nil {
		t.Fatalf("documents table missing: %v", err)
	}
	if err := db.conn.QueryRow(`SELECT count(*) FROM bullets`).Scan(&count); err != nil {
		t.Fatalf("bullets table missing: %v", err)
	}
}

func TestUpsertAndGetChecksum(t *testing.T) {
	db := testDB(t)
	row := DocumentRow{Key: "2024-33", Kind: document.KindWeek, Checksum: "abc123", UpdatedAt: time.Now()}
	if err := db.UpsertDocument(row, []BulletRow{{Position: 0, ID: "a", Text: "x"}}); err != nil {
		t.Fatalf("UpsertDocument: %v", err)
	}
	cs, err := db.GetChecksum("2024-33")
	if err != nil {
		t.Fatalf("GetChecksum: %v", err)
	}
	if cs != "abc123" {
		t.Errorf("checksum = %q, want %q", cs, "abc123")
	}

	cs, err = db.GetChecksum("missing")
	if err != nil || cs != "" {
		t.Errorf("missing checksum = %q, %v; want empty, nil", cs, err)
	}
}

func TestUpsertReplacesBullets(t *testing.T) {
	db := testDB(t)
	row := DocumentRow{Key: "work", Kind: document.KindList, Checksum: "1", UpdatedAt: time.Now()}
	_ = db.UpsertDocument(row, []BulletRow{{Position: 0, ID: "a", Text: "alpha"}, {Position: 1, ID: "b", Text: "beta"}})
	row.Checksum = "2"
	if err := db.UpsertDocument(row, []BulletRow{{Position: 0, ID: "c", Text: "gamma"}}); err != nil {
		t.Fatalf("UpsertDocument: %v", err)
	}
	var n int
	_ = db.conn.QueryRow(`SELECT count(*) FROM bullets WHERE doc_key = 'work'`).Scan(&n)
	if n != 1 {
		t.Errorf("bullets = %d, want 1", n)
	}
	if res, _ := db.Search("alpha", 10); len(res) != 0 {
		t.Errorf("stale bullet still searchable: %+v", res)
	}
}

func TestDeleteDocument(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertDocument(DocumentRow{Key: "gone", Kind: document.KindList, Checksum: "x", UpdatedAt: time.Now()},
		[]BulletRow{{Position: 0, ID: "a", Text: "vanishing"}})
	if err := db.DeleteDocument("gone"); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	if cs, _ := db.GetChecksum("gone"); cs != "" {
		t.Errorf("expected empty checksum after delete, got %q", cs)
	}
	if res, _ := db.Search("vanishing", 10); len(res) != 0 {
		t.Errorf("expected no results after delete, got %d", len(res))
	}
}

func TestSearchFindsWeekAndListBullets(t *testing.T) {
	db := testDB(t)
	wk, _ := document.Encode(sampleWeek())
	if err := indexDocument(db, "2024-33", wk); err != nil {
		t.Fatalf("index week: %v", err)
	}
	lst, _ := document.Encode(document.List{Name: "someday", Bullets: []document.Bullet{{ID: "s1", Style: "todo", Text: "review garden plans"}}})
	if err := indexDocument(db, "someday", lst); err != nil {
		t.Fatalf("index list: %v", err)
	}

	results, err := db.Search("review", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d: %+v", len(results), results)
	}
	byKey := map[string]SearchResult{}
	for _, r := range results {
		byKey[r.Key] = r
	}
	if r := byKey["2024-33"]; r.Date != "2024-08-12" || r.BulletID != "m1" {
		t.Errorf("week hit = %+v", r)
	}
	if r := byKey["someday"]; r.Date != "" || r.BulletID != "s1" {
		t.Errorf("list hit = %+v", r)
	}
}

func TestIndexDocumentMigratesLegacyIndent(t *testing.T) {
	db := testDB(t)
	legacy := `[{"name":"Monday","date":"2024-08-12","bullets":[{"id":"a","style":"todo","text":"legacy","indent":true}]}]`
	if err := indexDocument(db, "2024-33", []byte(legacy)); err != nil {
		t.Fatalf("indexDocument: %v", err)
	}
	var indent int
	if err := db.conn.QueryRow(`SELECT indent FROM bullets WHERE bullet_id = 'a'`).Scan(&indent); err != nil {
		t.Fatal(err)
	}
	if indent != 1 {
		t.Errorf("indent = %d, want 1", indent)
	}
}

func TestIndexDocumentRejectsCorrupt(t *testing.T) {
	db := testDB(t)
	if err := indexDocument(db, "broken", []byte(`{"name":`)); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestIndexDocumentRejectsWeekUnderListKey(t *testing.T) {
	db := testDB(t)
	wk := []byte(`[{"name":"Monday","date":"2024-08-12","bullets":[]}]`)
	for _, key := range []string{"someday", "2024-54", "2021-53"} {
		if err := indexDocument(db, key, wk); err == nil {
			t.Errorf("indexDocument(%q): expected error for week document", key)
		}
		if cs, _ := db.GetChecksum(key); cs != "" {
			t.Errorf("%q was indexed", key)
		}
	}
	if err := indexDocument(db, "2020-53", wk); err != nil {
		t.Errorf("indexDocument(2020-53): %v", err)
	}
}

// upsertFailingIndex fails upserts for one key and delegates the rest.
type upsertFailingIndex struct {
	BulletIndex
	failKey string
	upserts []string
}

func (f *upsertFailingIndex) UpsertDocument(doc DocumentRow, bullets []BulletRow) error {
	f.upserts = append(f.upserts, doc.Key)
	if doc.Key == f.failKey {
		return errors.New("disk full")
	}
	return f.BulletIndex.UpsertDocument(doc, bullets)
}

func TestSyncContinuesPastUpsertFailure(t *testing.T) {
	db := testDB(t)
	store, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	_ = store.WriteDocument("2024-33", sampleWeek())
	_ = store.WriteDocument("someday", document.NewList("someday", "s1"))

	idx := &upsertFailingIndex{BulletIndex: db, failKey: "2024-33"}
	if err := Sync(idx, store, quietLogger()); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if len(idx.upserts) != 2 {
		t.Errorf("upserts = %v, want both documents attempted", idx.upserts)
	}
	if cs, _ := db.GetChecksum("someday"); cs == "" {
		t.Error("list not indexed after week failure")
	}
	if cs, _ := db.GetChecksum("2024-33"); cs != "" {
		t.Error("failed week should not be indexed")
	}
}

func TestSync(t *testing.T) {
	db := testDB(t)
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	_ = store.WriteDocument("2024-33", sampleWeek())
	_ = store.WriteDocument("someday", document.NewList("someday", "s1"))
	_ = os.WriteFile(filepath.Join(dir, "corrupt"), []byte("{nope"), 0o644)

	if err := Sync(db, store, quietLogger()); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	sums, _ := db.AllChecksums()
	if len(sums) != 2 {
		t.Fatalf("indexed %d documents, want 2: %v", len(sums), sums)
	}

	// Remove one document and sync again.
	_ = os.Remove(filepath.Join(dir, "someday"))
	if err := Sync(db, store, quietLogger()); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if cs, _ := db.GetChecksum("someday"); cs != "" {
		t.Error("stale document not removed")
	}
	if cs, _ := db.GetChecksum("2024-33"); cs == "" {
		t.Error("week document missing after resync")
	}
}

func TestSyncSkipsUnchanged(t *testing.T) {
	db := testDB(t)
	dir := t.TempDir()
	store, _ := storage.NewFS(dir)
	_ = store.WriteDocument("someday", document.NewList("someday", "s1"))
	_ = Sync(db, store, quietLogger())

	var before time.Time
	_ = db.conn.QueryRow(`SELECT updated_at FROM documents WHERE key = 'someday'`).Scan(&before)
	time.Sleep(10 * time.Millisecond)
	_ = Sync(db, store, quietLogger())

	var after time.Time
	_ = db.conn.QueryRow(`SELECT updated_at FROM documents WHERE key = 'someday'`).Scan(&after)
	if !after.Equal(before) {
		t.Errorf("unchanged document was re-indexed: %v -> %v", before, after)
	}
}
