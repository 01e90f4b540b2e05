package store

import (
	"fmt"
	"os"
	"path/filepath"

	"fo-go/internal/config"
)

// NewStoreFromConfig creates a Store based on the store config type. The
// caller is responsible for running migrations before use.
func NewStoreFromConfig(cfg config.StoreConfig) (*SQLiteStore, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite store")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		return NewSQLiteStore(filepath.Join(cfg.DataDir, "fo.db"))
	case "memory":
		return NewSQLiteStore(":memory:")
	default:
		return nil, fmt.Errorf("unknown store type: %s", cfg.Type)
	}
}
