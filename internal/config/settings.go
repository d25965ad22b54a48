package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/verte-zerg/cpsclick/internal/model"
)

// LoadSettings reads the settings file. A missing or unreadable file yields
// the defaults; fields absent from the file keep their default values.
func LoadSettings(path string) model.Settings {
	settings := model.DefaultSettings()
	data, err := os.ReadFile(path)
	if err != nil {
		return settings
	}
	decoded := model.DefaultSettings()
	if err := json.Unmarshal(data, &decoded); err != nil {
		return settings
	}
	return decoded
}

// SaveSettings writes settings to path, creating the directory if needed.
func SaveSettings(path string, settings model.Settings) error {
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	return nil
}
