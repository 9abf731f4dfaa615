package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/TheMichaelB/totescan/internal/events"
)

// recentFile is the on-disk layout. Checksum covers the other fields.
type recentFile struct {
	Barcodes      []string  `json:"barcodes"`
	SchemaVersion int       `json:"schema_version"`
	SavedAt       time.Time `json:"saved_at"`
	Checksum      string    `json:"checksum,omitempty"`
}

// JSONStore implements file-based recent barcode storage.
type JSONStore struct {
	path   string
	logger *events.Logger

	mu sync.RWMutex
}

// NewJSONStore creates a JSON-backed store writing to path.
func NewJSONStore(path string, logger *events.Logger) (*JSONStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}

	return &JSONStore{
		path:   path,
		logger: logger.WithField("component", "json_recent_store"),
	}, nil
}

// Load reads the list. A corrupt file falls back to the backup copy.
func (s *JSONStore) Load() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	s.logger.WithField("path", s.path).Debug("Loading recent barcodes")

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read recent file: %w", err)
	}

	barcodes, err := s.decode(data)
	if err != nil {
		s.logger.WithError(err).Error("Recent barcodes file is corrupt")

		if backup, berr := s.loadBackup(); berr == nil {
			s.logger.Warn("Loaded recent barcodes from backup due to corruption")
			return backup, nil
		}
		return nil, ErrCorrupt
	}

	return barcodes, nil
}

func (s *JSONStore) decode(data []byte) ([]string, error) {
	var file recentFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode recent file: %w", err)
	}

	if file.Checksum != "" {
		calculated, err := checksum(file)
		if err != nil {
			return nil, err
		}
		if calculated != file.Checksum {
			return nil, fmt.Errorf("checksum mismatch: expected %s, got %s", file.Checksum, calculated)
		}
	}

	if file.SchemaVersion != CurrentSchemaVersion {
		s.logger.WithField("version", file.SchemaVersion).Warn("Recent barcodes schema version mismatch")
	}

	if file.Barcodes == nil {
		return []string{}, nil
	}
	return file.Barcodes, nil
}

// Save writes the list atomically, keeping the previous file as a backup.
func (s *JSONStore) Save(barcodes []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.WithField("count", len(barcodes)).Debug("Saving recent barcodes")

	if barcodes == nil {
		barcodes = []string{}
	}
	file := recentFile{
		Barcodes:      barcodes,
		SchemaVersion: CurrentSchemaVersion,
		SavedAt:       time.Now().UTC(),
	}

	sum, err := checksum(file)
	if err != nil {
		return err
	}
	file.Checksum = sum

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal recent barcodes: %w", err)
	}

	if _, err := os.Stat(s.path); err == nil {
		if err := copyFile(s.path, s.path+".backup"); err != nil {
			s.logger.WithError(err).Warn("Failed to create backup")
		}
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}

	if f, err := os.Open(tmpPath); err == nil {
		_ = f.Sync()
		f.Close()
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename recent file: %w", err)
	}

	return nil
}

// Close releases resources.
func (s *JSONStore) Close() error {
	return nil
}

func (s *JSONStore) loadBackup() ([]string, error) {
	data, err := os.ReadFile(s.path + ".backup")
	if err != nil {
		return nil, err
	}
	return s.decode(data)
}

func checksum(file recentFile) (string, error) {
	file.Checksum = ""
	data, err := json.Marshal(file)
	if err != nil {
		return "", fmt.Errorf("marshal recent barcodes for checksum: %w", err)
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
