package sendlog

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"rosterbot/pkg/logx"
)

// fileMaxEntries bounds the on-disk history; oldest entries are dropped
// when the array is rewritten.
const fileMaxEntries = 1000

// fileStore keeps the history as one JSON array, rewritten atomically on
// every append. Cheap for a log that grows by a handful of rows per month.
type fileStore struct {
	log  logx.Logger
	path string

	mu      sync.Mutex
	entries []Entry
	closed  bool
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("send_log.path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	s := &fileStore{log: log, path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *fileStore) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	if len(data) == 0 {
		return nil
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		// A corrupt history must not block sends; start fresh and keep
		// the bad file aside.
		s.log.Warn("send log unreadable, starting fresh",
			logx.String("path", s.path), logx.Err(err))
		_ = os.Rename(s.path, s.path+".corrupt")
		return nil
	}
	s.entries = entries
	return nil
}

func (s *fileStore) Append(ctx context.Context, e Entry) error {
	_ = ctx
	if e.At.IsZero() {
		e.At = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("send log closed")
	}
	s.entries = append(s.entries, e)
	if len(s.entries) > fileMaxEntries {
		s.entries = s.entries[len(s.entries)-fileMaxEntries:]
	}
	return s.rewriteLocked()
}

func (s *fileStore) Recent(ctx context.Context, limit int) ([]Entry, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 || limit > len(s.entries) {
		limit = len(s.entries)
	}
	out := make([]Entry, 0, limit)
	for i := len(s.entries) - 1; i >= len(s.entries)-limit; i-- {
		out = append(out, s.entries[i])
	}
	return out, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *fileStore) rewriteLocked() error {
	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
