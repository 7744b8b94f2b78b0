package save

import (
	"fmt"
	"sort"
	"sync"
)

// MemoryStore is a ByteStore held in memory, for tests and dry runs.
type MemoryStore struct {
	mu    sync.RWMutex
	files map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{files: make(map[string]string)}
}

func (s *MemoryStore) Write(name, contents string) error {
	if err := validateName(name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.files[name] = contents
	return nil
}

func (s *MemoryStore) Read(name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	contents, exists := s.files[name]
	if !exists {
		s.files[name] = ""
	}
	return contents, nil
}

func (s *MemoryStore) Move(oldName, newName string) error {
	if err := validateName(oldName); err != nil {
		return err
	}
	if err := validateName(newName); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	contents, exists := s.files[oldName]
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotExist, oldName)
	}
	delete(s.files, oldName)
	s.files[newName] = contents
	return nil
}

func (s *MemoryStore) List() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.files))
	for name := range s.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Exists reports whether name is present, without materializing it
func (s *MemoryStore) Exists(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.files[name]
	return exists
}
