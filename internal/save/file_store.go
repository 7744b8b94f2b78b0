package save

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// FileStore keeps save files in a single directory.
type FileStore struct {
	root string
}

// NewFileStore creates a file store rooted at dir, creating dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create save directory: %w", err)
	}
	return &FileStore{root: dir}, nil
}

// Root returns the directory holding the save files
func (s *FileStore) Root() string {
	return s.root
}

// Path returns the full path of a save file
func (s *FileStore) Path(name string) string {
	return filepath.Join(s.root, name)
}

func (s *FileStore) Write(name, contents string) error {
	if err := validateName(name); err != nil {
		return err
	}
	if err := os.WriteFile(s.Path(name), []byte(contents), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", s.Path(name), err)
	}
	return nil
}

func (s *FileStore) Read(name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	path := s.Path(name)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := os.WriteFile(path, nil, 0644); err != nil {
			return "", fmt.Errorf("failed to create %s: %w", path, err)
		}
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}

func (s *FileStore) Move(oldName, newName string) error {
	if err := validateName(oldName); err != nil {
		return err
	}
	if err := validateName(newName); err != nil {
		return err
	}
	oldPath, newPath := s.Path(oldName), s.Path(newName)

	if _, err := os.Stat(oldPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotExist, oldPath)
		}
		return fmt.Errorf("failed to stat %s: %w", oldPath, err)
	}
	if err := os.Remove(newPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", newPath, err)
	}
	if err := os.Rename(oldPath, newPath); err != nil {
		return fmt.Errorf("failed to move %s to %s: %w", oldPath, newPath, err)
	}
	return nil
}

// List returns the names of the regular files in the store, sorted.
func (s *FileStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read save directory %s: %w", s.root, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
