package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Backend names accepted in Settings.Backend.
const (
	BackendNative  = "native"
	BackendOpenSSL = "openssl"
)

// Settings holds the tool's own preferences. They never live in the
// server's config store.
type Settings struct {
	Backend      string `yaml:"backend" json:"backend"`
	OpenSSL      string `yaml:"openssl,omitempty" json:"openssl,omitempty"`
	ValidityDays int    `yaml:"validity_days" json:"validity_days"`
}

// settingsDir is the default settings directory under $HOME
const settingsDir = ".config/omero-certificates"
const settingsFile = "config.yaml"

// NewSettings creates Settings with default values
func NewSettings() *Settings {
	return &Settings{
		Backend:      BackendNative,
		ValidityDays: 365,
	}
}

// SettingsDir returns the settings directory path
func SettingsDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, settingsDir), nil
}

// SettingsPath returns the settings file path
func SettingsPath() (string, error) {
	dir, err := SettingsDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, settingsFile), nil
}

// LoadSettings reads the settings from disk, falling back to defaults when
// the file does not exist
func LoadSettings() (*Settings, error) {
	path, err := SettingsPath()
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return NewSettings(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}

	s := NewSettings()
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings in %s: %w", path, err)
	}

	return s, nil
}

// Save writes the settings to disk
func (s *Settings) Save() error {
	if err := s.Validate(); err != nil {
		return err
	}

	dir, err := SettingsDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, settingsFile), data, 0644); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}

	return nil
}

// Validate checks the backend name and validity period
func (s *Settings) Validate() error {
	switch s.Backend {
	case BackendNative, BackendOpenSSL:
	default:
		return fmt.Errorf("unknown backend %q (available: %s, %s)", s.Backend, BackendNative, BackendOpenSSL)
	}
	if s.ValidityDays < 1 {
		return fmt.Errorf("validity_days must be positive, got %d", s.ValidityDays)
	}
	return nil
}
