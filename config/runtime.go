package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// RuntimeOverlay holds the monitor settings that can be flipped at runtime
// (e.g. from a chat command) and persisted across restarts without touching
// the main config file. Nil fields mean "no override".
type RuntimeOverlay struct {
	AutoCloseEnabled   *bool `json:"auto_close_enabled,omitempty"`
	AutoCloseThreshold *int  `json:"auto_close_threshold,omitempty"`
	AlertThreshold     *int  `json:"alert_threshold,omitempty"`
	MinHoldDays        *int  `json:"min_hold_days,omitempty"`
	MaxAutoExitsPerDay *int  `json:"max_auto_exits_per_day,omitempty"`
}

// LoadOverlay reads the runtime overlay. A missing file is not an error; it
// just means no overrides are active.
func LoadOverlay(path string) (RuntimeOverlay, error) {
	var o RuntimeOverlay
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return o, nil
		}
		return o, fmt.Errorf("read runtime overlay: %w", err)
	}
	if err := json.Unmarshal(data, &o); err != nil {
		return RuntimeOverlay{}, fmt.Errorf("parse runtime overlay: %w", err)
	}
	return o, nil
}

// SaveOverlay persists the overlay, creating the parent directory if needed.
func SaveOverlay(path string, o RuntimeOverlay) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create overlay dir: %w", err)
	}
	data, err := json.MarshalIndent(o, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal runtime overlay: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write runtime overlay: %w", err)
	}
	return nil
}

// Apply merges the overlay into a monitor config, returning the result.
func (o RuntimeOverlay) Apply(m MonitorConfig) MonitorConfig {
	if o.AutoCloseEnabled != nil {
		m.AutoCloseEnabled = *o.AutoCloseEnabled
	}
	if o.AutoCloseThreshold != nil {
		m.AutoCloseThreshold = *o.AutoCloseThreshold
	}
	if o.AlertThreshold != nil {
		m.AlertThreshold = *o.AlertThreshold
	}
	if o.MinHoldDays != nil {
		m.MinHoldDays = *o.MinHoldDays
	}
	if o.MaxAutoExitsPerDay != nil {
		m.MaxAutoExitsPerDay = *o.MaxAutoExitsPerDay
	}
	return m
}
