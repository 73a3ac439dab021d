package state

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Store handles progress record storage under <basePath>/.stride/.
type Store struct {
	basePath string
}

// NewStore creates a new Store with the given base path.
// The base path should be the project root.
func NewStore(basePath string) *Store {
	return &Store{basePath: basePath}
}

// strideDir returns the path to the .stride directory.
func (s *Store) strideDir() string {
	return filepath.Join(s.basePath, ".stride")
}

// RecordPath returns the path to the progress record file. Reported to the
// operator on every stop or abort.
func (s *Store) RecordPath() string {
	return filepath.Join(s.strideDir(), "progress.yaml")
}

// RecordExists checks whether a progress record has been materialized.
func (s *Store) RecordExists() bool {
	_, err := os.Stat(s.RecordPath())
	return err == nil
}

// SaveRecord writes the progress record atomically (write-to-temp-then-rename)
// so a crash mid-write never truncates the previous record.
func (s *Store) SaveRecord(rec *Record) error {
	if err := os.MkdirAll(s.strideDir(), 0o755); err != nil {
		return fmt.Errorf("failed to create .stride directory: %w", err)
	}

	data, err := yaml.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal progress record: %w", err)
	}

	path := s.RecordPath()
	tmp, err := os.CreateTemp(s.strideDir(), "progress-*.yaml.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write progress record: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync progress record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace progress record: %w", err)
	}

	return nil
}

// LoadRecord reads the progress record. Returns (nil, nil) if no record
// exists yet.
func (s *Store) LoadRecord() (*Record, error) {
	data, err := os.ReadFile(s.RecordPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read progress record: %w", err)
	}

	var rec Record
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse progress record: %w", err)
	}

	return &rec, nil
}
