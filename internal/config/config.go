// Package config loads the questgraph configuration from YAML with
// environment overrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/lawnchairsociety/questgraph/internal/database"
	"github.com/lawnchairsociety/questgraph/internal/logger"
	"github.com/lawnchairsociety/questgraph/internal/save"
)

// EnvPrefix prefixes every environment override, e.g. QUESTGRAPH_STORAGE_DIR.
const EnvPrefix = "QUESTGRAPH_"

// Storage backends
const (
	BackendFile   = "file"
	BackendSQL    = "sql"
	BackendMemory = "memory"
)

// Config holds all questgraph settings.
type Config struct {
	// QuestsPath is a quests YAML file or a directory of them.
	QuestsPath string `yaml:"quests_path" env:"QUESTS_PATH"`

	// SnapshotKey prefixes save file names.
	SnapshotKey string `yaml:"snapshot_key" env:"SNAPSHOT_KEY"`

	// Slot is the save slot used when none is given on the command line.
	Slot string `yaml:"slot" env:"SLOT"`

	Save    save.Config   `yaml:"save" envPrefix:"SAVE_"`
	Storage StorageConfig `yaml:"storage" envPrefix:"STORAGE_"`
	Feed    FeedConfig    `yaml:"feed" envPrefix:"FEED_"`
	Logging logger.Config `yaml:"logging"`
}

// StorageConfig selects where save files live.
type StorageConfig struct {
	// Backend is "file", "sql" or "memory".
	Backend string `yaml:"backend" env:"BACKEND"`

	// Dir is the save directory of the file backend.
	Dir string `yaml:"dir" env:"DIR"`

	// Database is used by the sql backend.
	Database database.Config `yaml:"database" envPrefix:"DB_"`
}

// FeedConfig holds the WebSocket event feed settings.
type FeedConfig struct {
	// Address is the listen address of the feed server.
	Address string `yaml:"address" env:"ADDRESS"`

	// AllowedOrigins is a list of origins allowed to connect via WebSocket.
	// Empty list enforces same-origin policy.
	// Use "*" to allow all origins (not recommended for production).
	AllowedOrigins []string `yaml:"allowed_origins" env:"ALLOWED_ORIGINS" envSeparator:","`

	// MaxMessageSize is the maximum size of a message read from a client.
	MaxMessageSize int64 `yaml:"max_message_size" env:"MAX_MESSAGE_SIZE"`

	// WriteTimeout bounds a single write to a client.
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`

	// SendBuffer is the number of events queued per client before it is dropped.
	SendBuffer int `yaml:"send_buffer" env:"SEND_BUFFER"`

	// MaxClients caps concurrent feed connections. 0 means unlimited.
	MaxClients int `yaml:"max_clients" env:"MAX_CLIENTS"`

	// MaxPerIP caps concurrent feed connections from one address. 0 means unlimited.
	MaxPerIP int `yaml:"max_per_ip" env:"MAX_PER_IP"`
}

// DefaultConfig returns a Config with the default file names and a local
// file store.
func DefaultConfig() *Config {
	return &Config{
		QuestsPath:  "data/quests",
		SnapshotKey: save.DefaultSnapshotKey,
		Slot:        "default",
		Save:        save.DefaultConfig(),
		Storage: StorageConfig{
			Backend:  BackendFile,
			Dir:      "data/saves",
			Database: database.DefaultConfig("data/saves.db"),
		},
		Feed: FeedConfig{
			Address:        "127.0.0.1:4080",
			AllowedOrigins: []string{}, // Same-origin only by default
			MaxMessageSize: 512,
			WriteTimeout:   10 * time.Second,
			SendBuffer:     64,
			MaxClients:     32,
			MaxPerIP:       4,
		},
		Logging: logger.DefaultConfig(),
	}
}

// LoadConfig loads configuration from a YAML file, then applies environment
// overrides and validates the result. A missing file means defaults.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	if err := config.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// ApplyEnv overrides fields from QUESTGRAPH_* environment variables.
func (c *Config) ApplyEnv() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate checks the settings that would otherwise fail late.
func (c *Config) Validate() error {
	if c.SnapshotKey == "" {
		return fmt.Errorf("snapshot_key must not be empty")
	}
	if c.Save.PrimaryFileName == "" || c.Save.BackupFileName == "" {
		return fmt.Errorf("save file names must not be empty")
	}
	if c.Save.PrimaryFileName == c.Save.BackupFileName {
		return fmt.Errorf("save.primary_file_name and save.backup_file_name must differ")
	}

	switch c.Storage.Backend {
	case BackendFile:
		if c.Storage.Dir == "" {
			return fmt.Errorf("storage.dir is required for the file backend")
		}
	case BackendSQL:
		switch database.DialectType(c.Storage.Database.Driver) {
		case database.DialectSQLite:
			if c.Storage.Database.SQLitePath == "" {
				return fmt.Errorf("storage.database.sqlite_path is required for sqlite")
			}
		case database.DialectPostgres, database.DialectPgx:
		default:
			return fmt.Errorf("unknown storage.database.driver %q", c.Storage.Database.Driver)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown storage.backend %q", c.Storage.Backend)
	}

	if c.Feed.SendBuffer <= 0 {
		return fmt.Errorf("feed.send_buffer must be positive")
	}
	return nil
}

// IsOriginAllowed checks if the given origin is allowed based on the config.
// Returns true if:
// - AllowedOrigins contains "*" (allow all)
// - AllowedOrigins contains the exact origin
// - AllowedOrigins is empty and origin matches the request host (same-origin)
func (c *FeedConfig) IsOriginAllowed(origin, requestHost string) bool {
	if len(c.AllowedOrigins) == 0 {
		return isSameOrigin(origin, requestHost)
	}

	for _, allowed := range c.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}

	return false
}

// isSameOrigin checks if the origin matches the request host (same-origin policy).
func isSameOrigin(origin, requestHost string) bool {
	if origin == "" {
		return true // No origin header means same-origin (e.g., non-browser client)
	}

	// Extract host from origin URL (e.g., "http://localhost:3000" -> "localhost:3000")
	originHost := origin
	if idx := strings.Index(origin, "://"); idx != -1 {
		originHost = origin[idx+3:]
	}
	originHost = strings.TrimSuffix(originHost, "/")

	return originHost == requestHost
}
