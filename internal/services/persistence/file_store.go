package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/apogeecmb/smartSprinkler/internal/model/messages"
)

const (
	statusLogName      = "status.jsonl"
	statusSnapshotName = "status.json"
)

// FileStore appends records as JSON lines and keeps the latest one in a snapshot file.
type FileStore struct {
	mu  sync.Mutex
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create status dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) Append(_ context.Context, rec messages.StatusRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(filepath.Join(s.dir, statusLogName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return fmt.Errorf("open status log: %w", err)
	}
	if _, err := f.Write(append(b, '\n')); err != nil {
		_ = f.Close()
		return fmt.Errorf("append status log: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	tmp := filepath.Join(s.dir, statusSnapshotName+".tmp")
	if err := os.WriteFile(tmp, b, 0o640); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return os.Rename(tmp, filepath.Join(s.dir, statusSnapshotName))
}

// Latest reads the snapshot written by the last Append.
func (s *FileStore) Latest() (messages.StatusRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var rec messages.StatusRecord
	b, err := os.ReadFile(filepath.Join(s.dir, statusSnapshotName))
	if os.IsNotExist(err) {
		return rec, false, nil
	}
	if err != nil {
		return rec, false, err
	}
	if err := json.Unmarshal(b, &rec); err != nil {
		return rec, false, fmt.Errorf("decode snapshot: %w", err)
	}
	return rec, true, nil
}
