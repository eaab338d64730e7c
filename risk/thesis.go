package risk

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ThesisStore persists one Thesis per open position, keyed by contract
// symbol. The thesis is written at entry, its conviction may be refreshed,
// and the record is deleted when the position closes.
type ThesisStore struct {
	mu   sync.Mutex
	path string
	data map[string]Thesis
}

// NewThesisStore loads existing theses from path. An unparseable file starts
// empty rather than failing; thesis loss only weakens exit reasoning, it
// never blocks trading.
func NewThesisStore(path string) (*ThesisStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create thesis dir: %w", err)
	}
	s := &ThesisStore{path: path, data: map[string]Thesis{}}
	if b, err := os.ReadFile(path); err == nil {
		_ = json.Unmarshal(b, &s.data)
	}
	return s, nil
}

// Get returns the thesis recorded for symbol.
func (s *ThesisStore) Get(symbol string) (Thesis, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.data[symbol]
	return t, ok
}

// Put records the thesis for symbol at entry.
func (s *ThesisStore) Put(symbol string, t Thesis) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[symbol] = t
	return s.saveLocked()
}

// Delete removes the thesis once the position is closed.
func (s *ThesisStore) Delete(symbol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, symbol)
	return s.saveLocked()
}

func (s *ThesisStore) saveLocked() error {
	b, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, b, 0o600); err != nil {
		return fmt.Errorf("write thesis store: %w", err)
	}
	return nil
}
