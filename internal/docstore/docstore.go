// Package docstore persists a single JSON document with atomic whole-file
// rewrites (tmp + rename). It is the backing store for the session registry
// and the analytics aggregator, each of which owns one document.
package docstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Store reads and writes one JSON document at a fixed path.
// Concurrency control is the caller's job; both owners serialize access
// behind their own mutex.
type Store struct {
	path string
}

func New(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("docstore: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("docstore: create dir: %w", err)
	}
	return &Store{path: path}, nil
}

func (s *Store) Path() string { return s.path }

// Load decodes the document into v. A missing file is not an error:
// v is left untouched and ok is false.
func (s *Store) Load(v any) (ok bool, err error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("docstore: read %s: %w", s.path, err)
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("docstore: decode %s: %w", s.path, err)
	}
	return true, nil
}

// Save writes v as indented JSON via a temp file in the same directory,
// then renames it over the target so readers never observe a torn write.
func (s *Store) Save(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("docstore: encode: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("docstore: create temp: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("docstore: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("docstore: sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("docstore: close temp: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("docstore: rename: %w", err)
	}
	return nil
}
