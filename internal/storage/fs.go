package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/starford/calendle/internal/apperr"
	"github.com/starford/calendle/internal/document"
)

// TempPrefix marks in-flight writes; such files are never documents.
const TempPrefix = ".calendle-tmp-"

var _ Provider = (*FS)(nil)

// FS implements Provider backed by the local file system.
type FS struct {
	root  string // absolute path to the data directory
	locks keyLocks
}

// NewFS creates a new FS provider rooted at the given directory. The
// directory may not exist yet (see EnsureRoot), but if it exists it must be
// a directory.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, apperr.Storage("resolve", "", err)
	}
	info, err := os.Stat(abs)
	switch {
	case err == nil && !info.IsDir():
		return nil, apperr.Storage("resolve", "", fmt.Errorf("root is not a directory: %s", abs))
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		return nil, apperr.Storage("resolve", "", err)
	}
	return &FS{root: abs, locks: keyLocks{m: make(map[string]*sync.RWMutex)}}, nil
}

// Root returns the absolute data directory.
func (f *FS) Root() string { return f.root }

// EnsureDirectory creates path and any missing parents. An existing
// directory is not an error.
func EnsureDirectory(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return apperr.Storage("mkdir", path, err)
	}
	return nil
}

// EnsureRoot creates the data directory if it does not exist.
func (f *FS) EnsureRoot() error {
	return EnsureDirectory(f.root)
}

// safePath resolves a document key to a file directly under the root.
// Keys are flat: separators, dot-files and traversal are rejected.
func (f *FS) safePath(key string) (string, error) {
	if key == "" || key == "." || key == ".." ||
		strings.HasPrefix(key, ".") ||
		strings.ContainsAny(key, `/\`) ||
		filepath.Base(key) != key {
		return "", apperr.Storage("resolve", key, errors.New("invalid document key"))
	}
	return filepath.Join(f.root, key), nil
}

// EnsureDocument writes v under key if no such document exists. It reports
// whether a new document was created.
func (f *FS) EnsureDocument(key string, v any) (bool, error) {
	abs, err := f.safePath(key)
	if err != nil {
		return false, err
	}
	unlock := f.locks.lock(key)
	defer unlock()

	if _, err := os.Stat(abs); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, apperr.Storage("create", key, err)
	}
	data, err := document.Encode(v)
	if err != nil {
		return false, apperr.Storage("create", key, err)
	}
	if err := f.writeAtomic(abs, data); err != nil {
		return false, apperr.Storage("create", key, err)
	}
	return true, nil
}

// ReadDocument returns the raw bytes of a document. A missing document
// yields a StorageError matching apperr.ErrNotFound.
func (f *FS) ReadDocument(key string) ([]byte, error) {
	abs, err := f.safePath(key)
	if err != nil {
		return nil, err
	}
	unlock := f.locks.rlock(key)
	defer unlock()

	data, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = fmt.Errorf("%w: %w", apperr.ErrNotFound, err)
		}
		return nil, apperr.Storage("read", key, err)
	}
	return data, nil
}

// ReadWeek reads a week document and applies legacy indent migration.
func (f *FS) ReadWeek(key string) (document.Week, error) {
	data, err := f.ReadDocument(key)
	if err != nil {
		return nil, err
	}
	week, _, err := document.DecodeWeek(data)
	if err != nil {
		return nil, apperr.Storage("parse", key, err)
	}
	return week, nil
}

// ReadList reads a list document.
func (f *FS) ReadList(key string) (document.List, error) {
	data, err := f.ReadDocument(key)
	if err != nil {
		return document.List{}, err
	}
	list, err := document.DecodeList(data)
	if err != nil {
		return document.List{}, apperr.Storage("parse", key, err)
	}
	return list, nil
}

// WriteDocument encodes v as indented JSON and atomically replaces the
// document under key.
func (f *FS) WriteDocument(key string, v any) error {
	abs, err := f.safePath(key)
	if err != nil {
		return err
	}
	data, err := document.Encode(v)
	if err != nil {
		return apperr.Storage("write", key, err)
	}
	unlock := f.locks.lock(key)
	defer unlock()

	if err := f.writeAtomic(abs, data); err != nil {
		return apperr.Storage("write", key, err)
	}
	return nil
}

// Keys lists every document in the root, skipping directories, dot-files
// and in-flight temp files.
func (f *FS) Keys() ([]Meta, error) {
	entries, err := os.ReadDir(f.root)
	if err != nil {
		return nil, apperr.Storage("list", "", err)
	}
	var out []Meta
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, apperr.Storage("list", e.Name(), err)
		}
		data, err := f.ReadDocument(e.Name())
		if errors.Is(err, apperr.ErrNotFound) {
			continue // removed since ReadDir
		}
		if err != nil {
			return nil, err
		}
		out = append(out, Meta{
			Key:       e.Name(),
			Checksum:  Checksum(data),
			UpdatedAt: info.ModTime(),
		})
	}
	return out, nil
}

// writeAtomic writes content via tmp file → fsync → rename.
func (f *FS) writeAtomic(abs string, content []byte) error {
	dir := filepath.Dir(abs)
	tmp, err := os.CreateTemp(dir, TempPrefix+"*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		return fmt.Errorf("chmod temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	success = true
	return nil
}

// Checksum returns the hex-encoded SHA-256 digest of data.
func Checksum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// keyLocks hands out one RWMutex per document key.
type keyLocks struct {
	mu sync.Mutex
	m  map[string]*sync.RWMutex
}

func (l *keyLocks) get(key string) *sync.RWMutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	mu, ok := l.m[key]
	if !ok {
		mu = &sync.RWMutex{}
		l.m[key] = mu
	}
	return mu
}

func (l *keyLocks) lock(key string) func() {
	mu := l.get(key)
	mu.Lock()
	return mu.Unlock
}

func (l *keyLocks) rlock(key string) func() {
	mu := l.get(key)
	mu.RLock()
	return mu.RUnlock
}
