package storage

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/starford/calendle/internal/apperr"
	"github.com/starford/calendle/internal/document"
)

func tempRoot(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempRoot(t)
	v := map[string]any{"name": "someday", "date": nil, "bullets": []any{}}
	if err := s.WriteDocument("someday", v); err != nil {
		t.Fatalf("WriteDocument: %v", err)
	}
	data, err := s.ReadDocument("someday")
	if err != nil {
		t.Fatalf("ReadDocument: %v", err)
	}
	want, _ := document.Encode(v)
	if string(data) != string(want) {
		t.Errorf("content mismatch:\n got %s\nwant %s", data, want)
	}
	if !strings.Contains(string(data), "\n  \"bullets\": []") {
		t.Errorf("expected two-space indented JSON, got %s", data)
	}
}

func TestWeekRoundTrip(t *testing.T) {
	s := tempRoot(t)
	week := document.Week{
		{Name: "Monday", Date: "2024-08-12", Bullets: []document.Bullet{{ID: "a", Style: "todo", Text: "ship", Indent: 2}}},
		{Name: "Tuesday", Date: "2024-08-13", Bullets: []document.Bullet{}},
	}
	if err := s.WriteDocument("2024-33", week); err != nil {
		t.Fatalf("WriteDocument: %v", err)
	}
	got, err := s.ReadWeek("2024-33")
	if err != nil {
		t.Fatalf("ReadWeek: %v", err)
	}
	if !reflect.DeepEqual(got, week) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, week)
	}
}

func TestReadWeekMigratesLegacyIndent(t *testing.T) {
	s := tempRoot(t)
	legacy := `[{"name":"Monday","date":"2024-08-12","bullets":[{"id":"a","style":"todo","text":"","indent":true},{"id":"b","style":"todo","text":"","indent":false}]}]`
	if err := os.WriteFile(filepath.Join(s.Root(), "2024-33"), []byte(legacy), 0o644); err != nil {
		t.Fatal(err)
	}
	week, err := s.ReadWeek("2024-33")
	if err != nil {
		t.Fatalf("ReadWeek: %v", err)
	}
	if week[0].Bullets[0].Indent != 1 || week[0].Bullets[1].Indent != 0 {
		t.Errorf("indents = %d,%d, want 1,0", week[0].Bullets[0].Indent, week[0].Bullets[1].Indent)
	}
}

func TestEnsureDocumentIsIdempotent(t *testing.T) {
	s := tempRoot(t)
	created, err := s.EnsureDocument("work", document.NewList("work", "first"))
	if err != nil {
		t.Fatalf("EnsureDocument: %v", err)
	}
	if !created {
		t.Error("first call should create the document")
	}
	before, _ := s.ReadDocument("work")

	created, err = s.EnsureDocument("work", document.NewList("work", "second"))
	if err != nil {
		t.Fatalf("EnsureDocument: %v", err)
	}
	if created {
		t.Error("second call should be a no-op")
	}
	after, _ := s.ReadDocument("work")
	if string(before) != string(after) {
		t.Errorf("document changed by second ensure:\n%s\n%s", before, after)
	}
}

func TestReadMissingIsNotFound(t *testing.T) {
	s := tempRoot(t)
	_, err := s.ReadDocument("2030-1")
	if err == nil {
		t.Fatal("expected error for missing document")
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("error %v should match ErrNotFound", err)
	}
	if !apperr.IsStorage(err) {
		t.Errorf("error %v should be a StorageError", err)
	}
}

func TestReadCorruptIsStorageError(t *testing.T) {
	s := tempRoot(t)
	_ = os.WriteFile(filepath.Join(s.Root(), "personal"), []byte(`{"name": "personal", "bul`), 0o644)
	_, err := s.ReadList("personal")
	if err == nil {
		t.Fatal("expected parse error")
	}
	var se *apperr.StorageError
	if !errors.As(err, &se) || se.Op != "parse" {
		t.Errorf("error = %v, want parse StorageError", err)
	}
}

func TestInvalidKeysRejected(t *testing.T) {
	s := tempRoot(t)
	for _, key := range []string{"", ".", "..", "../outside", "a/b", `a\b`, ".hidden", "/etc/passwd"} {
		if _, err := s.ReadDocument(key); err == nil {
			t.Errorf("expected read error for key %q", key)
		}
		if err := s.WriteDocument(key, 1); err == nil {
			t.Errorf("expected write error for key %q", key)
		}
	}
}

func TestAtomicWriteLeavesNoTempFiles(t *testing.T) {
	s := tempRoot(t)
	_ = s.WriteDocument("someday", "original")
	if err := s.WriteDocument("someday", "updated"); err != nil {
		t.Fatalf("WriteDocument: %v", err)
	}
	got, _ := s.ReadDocument("someday")
	if string(got) != `"updated"` {
		t.Errorf("expected updated content, got %s", got)
	}
	matches, _ := filepath.Glob(filepath.Join(s.Root(), TempPrefix+"*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestKeys(t *testing.T) {
	s := tempRoot(t)
	_ = s.WriteDocument("2024-33", []int{})
	_ = s.WriteDocument("someday", map[string]string{})
	_ = os.WriteFile(filepath.Join(s.Root(), ".DS_Store"), []byte("x"), 0o644)
	_ = os.Mkdir(filepath.Join(s.Root(), "sub"), 0o755)

	metas, err := s.Keys()
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if len(metas) != 2 {
		t.Fatalf("len = %d, want 2: %+v", len(metas), metas)
	}
	for _, m := range metas {
		data, _ := s.ReadDocument(m.Key)
		if m.Checksum != Checksum(data) {
			t.Errorf("checksum mismatch for %s", m.Key)
		}
	}
}

func TestEnsureRootCreatesNestedDirs(t *testing.T) {
	root := filepath.Join(t.TempDir(), "a", "b", "planner")
	s, err := NewFS(root)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	if err := s.EnsureRoot(); err != nil {
		t.Fatalf("EnsureRoot: %v", err)
	}
	if err := s.EnsureRoot(); err != nil {
		t.Fatalf("second EnsureRoot: %v", err)
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		t.Fatalf("root not created: %v", err)
	}
}

func TestEnsureDirectoryFailsUnderFile(t *testing.T) {
	f, _ := os.CreateTemp(t.TempDir(), "calendle-test-*")
	_ = f.Close()
	err := EnsureDirectory(filepath.Join(f.Name(), "child"))
	if err == nil {
		t.Fatal("expected error creating a directory beneath a file")
	}
	if !apperr.IsStorage(err) {
		t.Errorf("error %v should be a StorageError", err)
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "calendle-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	if _, err := NewFS(f.Name()); err == nil {
		t.Error("expected error when root is a file")
	}
}
