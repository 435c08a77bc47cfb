// Package config assembles the runtime configuration: pipeline tuning, lock
// backend, snapshot storage, and the audit sink. Values merge with priority
// environment > file > defaults, then validate as a whole.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/agent-governor/internal/governor"
	"github.com/danielpatrickdp/agent-governor/internal/lock"
	"github.com/danielpatrickdp/agent-governor/internal/repo"
)

// #region sections

// LockBackend selects how per-agent updates are serialized.
type LockBackend string

const (
	// LockInProcess serializes agents within a single governor process.
	LockInProcess LockBackend = "inprocess"
	// LockFile coordinates across processes through lock files.
	LockFile LockBackend = "file"
)

// StorageBackend selects where agent snapshots persist.
type StorageBackend string

const (
	StorageMemory StorageBackend = "memory"
	StorageSQLite StorageBackend = "sqlite"
	StorageBadger StorageBackend = "badger"
)

// Lock configures update serialization. The embedded timing applies to both
// backends; Dir only matters for the file backend.
type Lock struct {
	Backend LockBackend `yaml:"backend" validate:"oneof=inprocess file"`
	Dir     string      `yaml:"dir"`

	lock.Config `yaml:",inline"`
}

// Storage configures the snapshot store. Path backs the sqlite backend;
// the badger section backs the badger backend.
type Storage struct {
	Backend StorageBackend    `yaml:"backend" validate:"oneof=memory sqlite badger"`
	Path    string            `yaml:"path"`
	Badger  repo.BadgerConfig `yaml:"badger"`
}

// Audit configures the decision audit log. With an empty Path the log shares
// the sqlite snapshot database; other storage backends need an explicit path.
type Audit struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// #endregion sections

// #region config

// Config is the full runtime configuration for one governor process.
type Config struct {
	LogLevel string `yaml:"log_level" validate:"oneof=debug info warn error"`

	Governor governor.Config `yaml:"governor"`
	Lock     Lock            `yaml:"lock"`
	Storage  Storage         `yaml:"storage"`
	Audit    Audit           `yaml:"audit"`
}

// Default returns the reference configuration: sqlite snapshots with a
// shared audit log, in-process locking, info logging.
func Default() Config {
	return Config{
		LogLevel: "info",
		Governor: governor.DefaultConfig(),
		Lock: Lock{
			Backend: LockInProcess,
			Dir:     "governor-locks",
			Config:  lock.DefaultConfig(),
		},
		Storage: Storage{
			Backend: StorageSQLite,
			Path:    "governor.db",
			Badger: repo.BadgerConfig{
				Path: "governor-badger",
			},
		},
		Audit: Audit{Enabled: true},
	}
}

// #endregion config

// #region load

// Load merges defaults, the YAML file at path (when non-empty), and
// environment overrides, then validates. An explicitly named file that
// cannot be read is an error, never a silent fallback.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	overlayEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// overlayEnv applies the operational knobs that deployments override most
// often without shipping a file.
func overlayEnv(cfg *Config) {
	if v := os.Getenv("GOVERNOR_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("GOVERNOR_DB_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("GOVERNOR_LOCK_DIR"); v != "" {
		cfg.Lock.Dir = v
	}
	if v := os.Getenv("GOVERNOR_LOCK_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Lock.Timeout = d
		}
	}
}

// #endregion load

// #region validate

var validate = validator.New()

// Validate checks tag constraints plus the cross-section rules the tags
// cannot express.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Lock.Backend == LockFile && c.Lock.Dir == "" {
		return fmt.Errorf("invalid config: lock.dir required for the file lock backend")
	}
	if c.Storage.Backend == StorageSQLite && c.Storage.Path == "" {
		return fmt.Errorf("invalid config: storage.path required for the sqlite backend")
	}
	if c.Storage.Backend == StorageBadger && !c.Storage.Badger.InMemory && c.Storage.Badger.Path == "" {
		return fmt.Errorf("invalid config: storage.badger.path required for the badger backend")
	}
	if c.Audit.Enabled && c.Audit.Path == "" && c.Storage.Backend != StorageSQLite {
		return fmt.Errorf("invalid config: audit.path required when the snapshot store is not sqlite")
	}
	return nil
}

// #endregion validate
