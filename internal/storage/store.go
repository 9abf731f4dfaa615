// Package storage persists the recent-barcode list between runs.
package storage

import (
	"errors"
	"fmt"

	"github.com/TheMichaelB/totescan/internal/config"
	"github.com/TheMichaelB/totescan/internal/events"
)

// RecentStore persists an ordered list of barcodes, newest first.
type RecentStore interface {
	// Load returns the saved list, or an empty list when nothing was saved.
	Load() ([]string, error)

	// Save replaces the saved list.
	Save(barcodes []string) error

	Close() error
}

// Common errors
var (
	ErrCorrupt        = errors.New("recent barcodes file is corrupt")
	ErrUnknownBackend = errors.New("unknown history backend")
)

// CurrentSchemaVersion for migrations.
const CurrentSchemaVersion = 1

// New opens the store selected by cfg.Backend.
func New(cfg *config.HistoryConfig, logger *events.Logger) (RecentStore, error) {
	switch cfg.Backend {
	case "json", "":
		return NewJSONStore(cfg.Path+".json", logger)
	case "sqlite":
		return NewSQLiteStore(cfg.Path+".db", logger)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, cfg.Backend)
	}
}

// Migrate copies the saved list from one store to another.
func Migrate(from, to RecentStore) (int, error) {
	barcodes, err := from.Load()
	if err != nil {
		return 0, fmt.Errorf("load source: %w", err)
	}
	if err := to.Save(barcodes); err != nil {
		return 0, fmt.Errorf("save target: %w", err)
	}
	return len(barcodes), nil
}
