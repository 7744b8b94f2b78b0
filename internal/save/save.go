// Package save persists progress snapshots to durable storage, keeping one
// backup of the previous save per slot.
package save

import (
	"github.com/lawnchairsociety/questgraph/internal/logger"
)

// Config names the save files and toggles verbose logging.
type Config struct {
	PrimaryFileName string `yaml:"primary_file_name" env:"PRIMARY_FILE_NAME"`
	BackupFileName  string `yaml:"backup_file_name" env:"BACKUP_FILE_NAME"`
	LogEvents       bool   `yaml:"log_events" env:"LOG_EVENTS"`
}

// DefaultConfig returns the default file names
func DefaultConfig() Config {
	return Config{
		PrimaryFileName: "save.prgrs",
		BackupFileName:  "save.prgrs.bak",
	}
}

// Snapshot is a fragment of a game save that can be written and read as a whole.
type Snapshot interface {
	ToJSON() (string, error)
	// LoadFromJSON must leave the snapshot untouched on error.
	LoadFromJSON(data string) error
}

// Store saves, loads and deletes snapshots by (snapshotKey, slotKey).
//
// Saving moves the previous primary file to the backup name and then writes
// the new primary. If the process stops between the two steps there is no
// primary file and the previous save only exists as the backup.
type Store struct {
	files  ByteStore
	config Config
}

// NewStore creates a save store writing through files. Empty file names in
// config fall back to the defaults.
func NewStore(files ByteStore, config Config) *Store {
	defaults := DefaultConfig()
	if config.PrimaryFileName == "" {
		config.PrimaryFileName = defaults.PrimaryFileName
	}
	if config.BackupFileName == "" {
		config.BackupFileName = defaults.BackupFileName
	}
	return &Store{files: files, config: config}
}

// Files returns the underlying byte store
func (s *Store) Files() ByteStore {
	return s.files
}

// Config returns the effective configuration
func (s *Store) Config() Config {
	return s.config
}

// FilePath returns the primary file name for a snapshot and slot.
func (s *Store) FilePath(snapshotKey, slotKey string) string {
	return snapshotKey + "_" + slotKey + "_" + s.config.PrimaryFileName
}

// BackupFilePath returns the backup file name for a snapshot and slot.
func (s *Store) BackupFilePath(snapshotKey, slotKey string) string {
	return snapshotKey + "_" + slotKey + "_" + s.config.BackupFileName
}

// Save writes snapshot to its primary file, after moving the previous primary
// to the backup name. Failures are logged; the result reports whether the
// new primary was written.
func (s *Store) Save(snapshot Snapshot, snapshotKey, slotKey string) bool {
	path := s.FilePath(snapshotKey, slotKey)
	backupPath := s.BackupFilePath(snapshotKey, slotKey)

	if err := s.files.Move(path, backupPath); err != nil {
		logger.Warning("Couldn't create a backup save file", "path", backupPath, "error", err)
	}

	contents, err := snapshot.ToJSON()
	if err != nil {
		logger.Error("Failed to serialize snapshot", "path", path, "error", err)
		return false
	}

	if err := s.files.Write(path, contents); err != nil {
		logger.Error("Failed to write save to file", "path", path, "error", err)
		return false
	}

	if s.config.LogEvents {
		logger.Info("Generated JSON", "json", contents)
		logger.Info("Save successful", "path", path)
	}
	return true
}

// Load reads the primary file into target. It returns false when the file
// cannot be read, is empty (nothing saved yet) or does not decode; target is
// untouched in every one of those cases.
func (s *Store) Load(snapshotKey, slotKey string, target Snapshot) bool {
	path := s.FilePath(snapshotKey, slotKey)

	contents, err := s.files.Read(path)
	if err != nil {
		logger.Error("Failed to read save file", "path", path, "error", err)
		return false
	}

	if s.config.LogEvents {
		logger.Info("Loaded JSON", "json", contents)
	}

	if contents == "" {
		logger.Warning("The save file is empty", "path", path)
		return false
	}

	if err := target.LoadFromJSON(contents); err != nil {
		logger.Error("Failed to decode save file", "path", path, "error", err)
		return false
	}

	if s.config.LogEvents {
		logger.Info("Snapshot loaded successfully from save file", "path", path)
	}
	return true
}

// Delete empties the primary file so the next Load fails. The backup is kept.
func (s *Store) Delete(snapshotKey, slotKey string) bool {
	path := s.FilePath(snapshotKey, slotKey)

	if err := s.files.Write(path, ""); err != nil {
		logger.Error("Failed to delete save file", "path", path, "error", err)
		return false
	}

	if s.config.LogEvents {
		logger.Info("Save data file deleted", "path", path)
	}
	return true
}
