package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/TheMichaelB/totescan/internal/events"
)

// SQLiteStore implements SQLite-based recent barcode storage.
type SQLiteStore struct {
	db     *sql.DB
	logger *events.Logger
}

// NewSQLiteStore opens (or creates) the database at dbPath.
func NewSQLiteStore(dbPath string, logger *events.Logger) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	store := &SQLiteStore{
		db:     db,
		logger: logger.WithField("component", "sqlite_recent_store"),
	}

	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize database: %w", err)
	}

	return store, nil
}

// initialize creates tables.
func (s *SQLiteStore) initialize() error {
	schema := `
    CREATE TABLE IF NOT EXISTS recent_barcodes (
        position INTEGER PRIMARY KEY,
        barcode TEXT NOT NULL,
        saved_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS schema_info (
        version INTEGER PRIMARY KEY
    );

    INSERT OR IGNORE INTO schema_info (version) VALUES (?);
    `

	if _, err := s.db.Exec(schema, CurrentSchemaVersion); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	return nil
}

// Load returns the saved list in position order.
func (s *SQLiteStore) Load() ([]string, error) {
	s.logger.Debug("Loading recent barcodes from SQLite")

	rows, err := s.db.Query("SELECT barcode FROM recent_barcodes ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("query recent barcodes: %w", err)
	}
	defer rows.Close()

	barcodes := []string{}
	for rows.Next() {
		var barcode string
		if err := rows.Scan(&barcode); err != nil {
			return nil, fmt.Errorf("scan barcode row: %w", err)
		}
		barcodes = append(barcodes, barcode)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate barcodes: %w", err)
	}

	return barcodes, nil
}

// Save replaces the list in one transaction.
func (s *SQLiteStore) Save(barcodes []string) error {
	s.logger.WithField("count", len(barcodes)).Debug("Saving recent barcodes to SQLite")

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec("DELETE FROM recent_barcodes"); err != nil {
		return fmt.Errorf("delete old barcodes: %w", err)
	}

	stmt, err := tx.Prepare("INSERT INTO recent_barcodes (position, barcode) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, barcode := range barcodes {
		if _, err := stmt.Exec(i, barcode); err != nil {
			return fmt.Errorf("insert barcode %s: %w", barcode, err)
		}
	}

	return tx.Commit()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
