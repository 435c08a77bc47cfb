// governor is the CLI for the adaptive agent governor: a stdin decision
// loop, snapshot inspection, and fixture replay and export.
package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/agent-governor/internal/audit"
	"github.com/danielpatrickdp/agent-governor/internal/config"
	"github.com/danielpatrickdp/agent-governor/internal/lock"
	"github.com/danielpatrickdp/agent-governor/internal/repo"
)

var (
	cfgFile string
	verbose bool
	jsonOut bool
)

var rootCmd = &cobra.Command{
	Use:   "governor",
	Short: "Adaptive state governor for agent sessions",
	Long: `governor tracks a compact adaptive state per agent, scores every
observation against it, and answers with proceed or pause plus the full
metrics snapshot.

Core commands:
  run      Process observations from stdin, one JSON object per line
  inspect  Show stored agent snapshots without taking the update lock
  replay   Re-run a recorded fixture and compare decisions
  export   Build a replay fixture from the audit log`,
	SilenceUsage: true,
}

// Execute runs the root command. Cobra prints the error itself.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "print JSON instead of tables")
}

// #region wiring

func loadConfig() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, nil, err
	}
	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, log, nil
}

// newLogger builds the process logger on stderr; stdout belongs to
// command output.
func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}
	if verbose {
		lvl = zapcore.DebugLevel
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}
	return zcfg.Build()
}

// storeHandle pairs the snapshot store with its sqlite connection when one
// exists, so the audit sink can share the database file.
type storeHandle struct {
	store repo.Store
	sqlDB *sql.DB
}

func openStore(cfg config.Config, log *zap.Logger) (storeHandle, error) {
	switch cfg.Storage.Backend {
	case config.StorageMemory:
		return storeHandle{store: repo.NewMemory()}, nil
	case config.StorageSQLite:
		s, err := repo.NewSQLite(cfg.Storage.Path)
		if err != nil {
			return storeHandle{}, fmt.Errorf("open sqlite store: %w", err)
		}
		return storeHandle{store: s, sqlDB: s.DB()}, nil
	case config.StorageBadger:
		s, err := repo.NewBadger(cfg.Storage.Badger, log)
		if err != nil {
			return storeHandle{}, fmt.Errorf("open badger store: %w", err)
		}
		return storeHandle{store: s}, nil
	}
	return storeHandle{}, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
}

// openAudit returns the configured sink plus its queryable form. The
// returned closer is non-nil only when the sink opened its own database.
func openAudit(cfg config.Config, h storeHandle) (audit.Sink, *audit.SQLiteSink, func() error, error) {
	if !cfg.Audit.Enabled {
		return audit.NopSink{}, nil, nil, nil
	}
	db := h.sqlDB
	var closer func() error
	if cfg.Audit.Path != "" {
		own, err := openSQLiteDB(cfg.Audit.Path)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open audit db: %w", err)
		}
		db = own
		closer = own.Close
	}
	if db == nil {
		return nil, nil, nil, fmt.Errorf("audit enabled but no sqlite database to write to")
	}
	sink, err := audit.NewSQLiteSink(db)
	if err != nil {
		if closer != nil {
			closer()
		}
		return nil, nil, nil, err
	}
	return sink, sink, closer, nil
}

func openSQLiteDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("pragma: %w", err)
		}
	}
	return db, nil
}

// newLocks returns the lock manager and, for the file backend, its
// concrete form so the caller can hook reclaim notifications.
func newLocks(cfg config.Config, log *zap.Logger) (lock.Manager, *lock.FileManager, error) {
	switch cfg.Lock.Backend {
	case config.LockFile:
		fm, err := lock.NewFileManager(cfg.Lock.Dir, cfg.Lock.Config, log)
		if err != nil {
			return nil, nil, fmt.Errorf("init file locks: %w", err)
		}
		return fm, fm, nil
	default:
		return lock.NewInProcess(cfg.Lock.Config), nil, nil
	}
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// #endregion wiring
