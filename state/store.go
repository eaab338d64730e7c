package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// persistedState is the JSON snapshot layout on disk.
type persistedState struct {
	LastExecutionDate string  `json:"last_execution_date,omitempty"`
	ExecutionsToday   int     `json:"executions_today"`
	DailyPnL          float64 `json:"daily_pnl"`
	ConsecutiveLosses int     `json:"consecutive_losses"`
	PositionsCount    int     `json:"positions_count"`
	AutoExitsToday    int     `json:"auto_exits_today"`
	BreakerOpen       bool    `json:"circuit_breaker_open"`
	BreakerUntil      string  `json:"circuit_breaker_until,omitempty"`
}

// Store persists execution state snapshots as a single JSON file.
type Store struct {
	path string
}

// NewStore creates a store at path, creating the parent directory.
func NewStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &Store{path: path}, nil
}

// Load reads the last snapshot. Missing or unparseable files are errors the
// caller treats as "start fresh".
func (s *Store) Load() (persistedState, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return persistedState{}, err
	}
	var p persistedState
	if err := json.Unmarshal(b, &p); err != nil {
		return persistedState{}, fmt.Errorf("parse state snapshot: %w", err)
	}
	return p, nil
}

// Save writes the snapshot atomically (tmp file + fsync + rename) with a
// best-effort .bak of the previous content.
func (s *Store) Save(p persistedState) error {
	b, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	if prev, err := os.ReadFile(s.path); err == nil {
		_ = os.WriteFile(s.path+".bak", prev, 0o600)
	}
	return writeFileAtomic(s.path, b, 0o600)
}

// writeFileAtomic writes data to path atomically. It also fsyncs the parent
// directory to harden the rename durability.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return err
	}

	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}
