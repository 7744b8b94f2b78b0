package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrSaveFileNotFound is returned when a save file lookup fails.
var ErrSaveFileNotFound = errors.New("save file not found")

// SaveFile is one named save blob.
type SaveFile struct {
	Name      string
	Contents  string
	UpdatedAt time.Time
}

// WriteSaveFile creates or replaces the save file with the given name.
func (d *Database) WriteSaveFile(name, contents string) error {
	_, err := d.db.Exec(d.qb.Build(
		`INSERT INTO save_files (name, contents, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET contents = excluded.contents, updated_at = excluded.updated_at`),
		name, contents, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to write save file %s: %w", name, err)
	}
	return nil
}

// ReadSaveFile returns the contents of the named save file.
// A missing file is created empty and "" is returned.
func (d *Database) ReadSaveFile(name string) (string, error) {
	contents, err := d.selectSaveFile(name)
	if err == nil {
		return contents, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("failed to read save file %s: %w", name, err)
	}

	created, err := d.createSaveFile(name)
	if err != nil {
		return "", err
	}
	if created {
		return "", nil
	}

	// Another writer created it between the select and the insert
	contents, err = d.selectSaveFile(name)
	if err != nil {
		return "", fmt.Errorf("failed to read save file %s: %w", name, err)
	}
	return contents, nil
}

func (d *Database) selectSaveFile(name string) (string, error) {
	var contents string
	err := d.db.QueryRow(d.qb.Build("SELECT contents FROM save_files WHERE name = ?"), name).Scan(&contents)
	return contents, err
}

// createSaveFile inserts an empty save file. It reports false when the
// name already exists.
func (d *Database) createSaveFile(name string) (bool, error) {
	_, err := d.db.Exec(d.qb.Build("INSERT INTO save_files (name, contents, updated_at) VALUES (?, '', ?)"),
		name, time.Now().UTC())
	if d.dialect.IsDuplicateKeyError(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to create save file %s: %w", name, err)
	}
	return true, nil
}

// MoveSaveFile renames oldName to newName, replacing any file already named newName.
// Returns ErrSaveFileNotFound if oldName does not exist.
func (d *Database) MoveSaveFile(oldName, newName string) error {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRow(d.qb.Build("SELECT 1 FROM save_files WHERE name = ?"), oldName).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrSaveFileNotFound, oldName)
	}
	if err != nil {
		return fmt.Errorf("failed to look up save file %s: %w", oldName, err)
	}

	if oldName != newName {
		if _, err := tx.Exec(d.qb.Build("DELETE FROM save_files WHERE name = ?"), newName); err != nil {
			return fmt.Errorf("failed to replace save file %s: %w", newName, err)
		}
		if _, err := tx.Exec(d.qb.Build("UPDATE save_files SET name = ?, updated_at = ? WHERE name = ?"),
			newName, time.Now().UTC(), oldName); err != nil {
			return fmt.Errorf("failed to move save file %s to %s: %w", oldName, newName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ListSaveFiles returns every save file ordered by name.
func (d *Database) ListSaveFiles() ([]SaveFile, error) {
	rows, err := d.db.Query("SELECT name, contents, updated_at FROM save_files ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list save files: %w", err)
	}
	defer rows.Close()

	var files []SaveFile
	for rows.Next() {
		var f SaveFile
		if err := rows.Scan(&f.Name, &f.Contents, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan save file: %w", err)
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate save files: %w", err)
	}
	return files, nil
}
