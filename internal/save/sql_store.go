package save

import (
	"errors"
	"fmt"

	"github.com/lawnchairsociety/questgraph/internal/database"
)

// SQLStore keeps save files in the save_files table of a database.
type SQLStore struct {
	db *database.Database
}

// NewSQLStore wraps an open database
func NewSQLStore(db *database.Database) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Write(name, contents string) error {
	if err := validateName(name); err != nil {
		return err
	}
	return s.db.WriteSaveFile(name, contents)
}

func (s *SQLStore) Read(name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	return s.db.ReadSaveFile(name)
}

func (s *SQLStore) Move(oldName, newName string) error {
	if err := validateName(oldName); err != nil {
		return err
	}
	if err := validateName(newName); err != nil {
		return err
	}
	err := s.db.MoveSaveFile(oldName, newName)
	if errors.Is(err, database.ErrSaveFileNotFound) {
		return fmt.Errorf("%w: %s", ErrNotExist, oldName)
	}
	return err
}

func (s *SQLStore) List() ([]string, error) {
	files, err := s.db.ListSaveFiles()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	return names, nil
}
