package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/harrisonrobin/friday/pkg/model"
)

// Key identifies one cached fetch: a source on a given day.
type Key struct {
	Source string
	Date   civil.Date
}

func (k Key) String() string {
	return k.Source + "/" + k.Date.String()
}

// Entry is what a Store keeps for a Key.
type Entry struct {
	Records   []model.RawRecord `json:"records"`
	WrittenAt time.Time         `json:"written_at"`
}

// Store persists entries. Get returns nil, nil when the key is absent.
type Store interface {
	Get(ctx context.Context, k Key) (*Entry, error)
	Put(ctx context.Context, k Key, e *Entry) error
	Delete(ctx context.Context, k Key) error
	Clear(ctx context.Context) error
}

// FileStore keeps one JSON file per key under Dir as <source>/<date>.json.
type FileStore struct {
	Dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{Dir: dir}
}

func (s *FileStore) path(k Key) string {
	return filepath.Join(s.Dir, sanitize(k.Source), k.Date.String()+".json")
}

// sanitize keeps source tags from escaping the cache directory.
func sanitize(name string) string {
	name = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == os.PathSeparator {
			return '_'
		}
		return r
	}, name)
	if name == "" || name == "." || name == ".." {
		return "_"
	}
	return name
}

func (s *FileStore) Get(_ context.Context, k Key) (*Entry, error) {
	f, err := os.Open(s.path(k))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var e Entry
	if err := json.NewDecoder(f).Decode(&e); err != nil {
		return nil, fmt.Errorf("failed to decode cache entry %s: %w", k, err)
	}
	return &e, nil
}

// Put writes to a temp file in the same directory and renames it into place
// so readers never see a partial entry.
func (s *FileStore) Put(_ context.Context, k Key, e *Entry) error {
	path := s.path(k)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	f, err := os.CreateTemp(dir, ".tmp-*.json")
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}
	tmp := f.Name()
	if err := json.NewEncoder(f).Encode(e); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to encode cache entry %s: %w", k, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write cache entry %s: %w", k, err)
	}
	return nil
}

func (s *FileStore) Delete(_ context.Context, k Key) error {
	if err := os.Remove(s.path(k)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Clear removes every cached entry.
func (s *FileStore) Clear(_ context.Context) error {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, de := range entries {
		if err := os.RemoveAll(filepath.Join(s.Dir, de.Name())); err != nil {
			return err
		}
	}
	return nil
}
