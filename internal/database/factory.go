package database

import (
	"fmt"
	"os"
	"path/filepath"

	"sbk-go/internal/config"
	"sbk-go/internal/sbk"
)

// FileName is the database file created under data_dir.
const FileName = "sbk.db"

// NewDatabaseFromConfig opens the snapshot database under cfg.DataDir,
// creating the directory if needed.
func NewDatabaseFromConfig(cfg *config.Config, clock sbk.Clock) (*SQLiteDatabase, error) {
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("data_dir required for sqlite database")
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return NewSQLiteDatabase(filepath.Join(cfg.DataDir, FileName), clock)
}
