package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Store is the persistence abstraction for group snapshots.
// Load of an unknown group returns an empty snapshot, not an error.
type Store interface {
	Load(group string) (*Snapshot, error)
	Save(group string, s *Snapshot) error
}

// FileStore keeps one JSON file per group: <dir>/history_<group>.json.
type FileStore struct {
	dir string
}

// NewFileStore returns a FileStore rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Path returns the snapshot file of group.
func (f *FileStore) Path(group string) string {
	return filepath.Join(f.dir, fmt.Sprintf("history_%s.json", group))
}

// Load implements Store.Load.
func (f *FileStore) Load(group string) (*Snapshot, error) {
	b, err := os.ReadFile(f.Path(group))
	if errors.Is(err, os.ErrNotExist) {
		return NewSnapshot(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", group, err)
	}
	var s Snapshot
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", group, err)
	}
	s.normalize()
	return &s, nil
}

// Save implements Store.Save. The file is replaced atomically: readers see
// either the previous snapshot or the new one, never a partial write.
func (f *FileStore) Save(group string, s *Snapshot) error {
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", group, err)
	}

	tmp, err := os.CreateTemp(f.dir, fmt.Sprintf(".history_%s-*.json", group))
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot %s: %w", group, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync snapshot %s: %w", group, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot %s: %w", group, err)
	}
	if err := os.Rename(tmpName, f.Path(group)); err != nil {
		return fmt.Errorf("replace snapshot %s: %w", group, err)
	}
	return nil
}

// InMemoryStore is an in-memory implementation of Store. It stores deep
// copies so callers cannot mutate persisted state behind its back.
type InMemoryStore struct {
	mu        sync.Mutex
	snapshots map[string]*Snapshot
}

// NewInMemoryStore returns a new empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{snapshots: make(map[string]*Snapshot)}
}

// Load implements Store.Load.
func (m *InMemoryStore) Load(group string) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.snapshots[group]
	if !ok {
		return NewSnapshot(), nil
	}
	return s.Clone(), nil
}

// Save implements Store.Save.
func (m *InMemoryStore) Save(group string, s *Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[group] = s.Clone()
	return nil
}
