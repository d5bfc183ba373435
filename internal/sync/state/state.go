// Package state records the outcome of synchronization runs next to the catalog.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	// CurrentVersion is the current version of the sync state format
	CurrentVersion = "1.0"
	// FileName is the state file's name inside the bkmgr home directory
	FileName = "sync_state.json"
)

// State holds the history of sync runs
type State struct {
	Version  string `json:"version"`
	LastSync int64  `json:"lastSync"`
	LastRun  *Run   `json:"lastRun,omitempty"`
	Total    int    `json:"totalAdded"`
	mu       sync.RWMutex
}

// Run is a single synchronization
type Run struct {
	ID       string `json:"id"`
	Started  int64  `json:"started"`
	Scanned  int    `json:"scanned"`
	Added    int    `json:"added"`
	Skipped  int    `json:"skipped"`
	Failed   bool   `json:"failed,omitempty"`
	Duration string `json:"duration"`
}

// NewState creates a new empty state with current version
func NewState() *State {
	return &State{Version: CurrentVersion}
}

// Path returns the state file location for a bkmgr home directory
func Path(home string) string {
	return filepath.Join(home, FileName)
}

// LoadState loads the sync state from path. A missing file yields an empty state.
func LoadState(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewState(), nil
		}
		return nil, fmt.Errorf("failed to read state file at %q: %w", path, err)
	}

	s := NewState()
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("invalid state file format: %w", err)
	}
	if s.Version != CurrentVersion {
		return nil, fmt.Errorf("unsupported state version: %s", s.Version)
	}
	return s, nil
}

// Save writes the state to path through a temporary file
func (s *State) Save(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	targetDir := filepath.Dir(path)
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return fmt.Errorf("failed to create state directory %q: %w", targetDir, err)
	}

	tmpFile, err := os.CreateTemp(targetDir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %q: %w", targetDir, err)
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath)

	encoder := json.NewEncoder(tmpFile)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(s); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to encode state: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file to %q: %w", path, err)
	}
	return nil
}

// RecordRun stores run as the latest synchronization
func (s *State) RecordRun(run Run) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.LastRun = &run
	s.LastSync = run.Started
	s.Total += run.Added
}

// LastSyncTime returns when the last run started, or the zero time
func (s *State) LastSyncTime() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.LastSync == 0 {
		return time.Time{}
	}
	return time.Unix(s.LastSync, 0)
}
