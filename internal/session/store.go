package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps the session in a JSON file readable only by its owner.
type FileStore struct {
	path string
}

// NewFileStore creates a FileStore at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultSessionPath returns the per-user session file location.
func DefaultSessionPath() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("locating cache dir: %w", err)
	}
	return filepath.Join(dir, "portal", "session.json"), nil
}

// Load returns the stored identity, or nil when no session exists.
func (s *FileStore) Load() (*Identity, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading session file: %w", err)
	}
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}

	var id Identity
	if err := json.Unmarshal(data, &id); err != nil {
		return nil, fmt.Errorf("decoding session file: %w", err)
	}
	return &id, nil
}

// Save writes id, replacing any previous session.
func (s *FileStore) Save(id *Identity) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("creating session dir: %w", err)
	}
	data, err := json.Marshal(id)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing session file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing session file: %w", err)
	}
	return nil
}

// Clear removes the session file. A missing file is not an error.
func (s *FileStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing session file: %w", err)
	}
	return nil
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu sync.Mutex
	id *Identity
}

func (s *MemoryStore) Load() (*Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.id == nil {
		return nil, nil
	}
	cp := *s.id
	return &cp, nil
}

func (s *MemoryStore) Save(id *Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *id
	s.id = &cp
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = nil
	return nil
}
