package config

import (
	"os"
	"path/filepath"

	"vocal-splitter/internal/domain"
)

const (
	// DefaultTargetSampleRate is the rate the processed vocal stem is written at.
	DefaultTargetSampleRate = 16000
	// DefaultModel is the Spleeter preset used when none is configured.
	DefaultModel = "spleeter:4stems"
)

// HomeDir returns the application directory under the user's home.
func HomeDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(homeDir, ".vocal-splitter")
}

// DefaultSettingsPath returns where the JSON settings file lives.
func DefaultSettingsPath() string {
	return filepath.Join(HomeDir(), "settings.json")
}

// DefaultSettings returns baseline local configuration for first launch.
func DefaultSettings() domain.Settings {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	return domain.Settings{
		SeparatorPath:    "spleeter",
		Model:            DefaultModel,
		ModelDir:         filepath.Join(HomeDir(), "models"),
		TargetSampleRate: DefaultTargetSampleRate,
		OutputDir:        filepath.Join(homeDir, "Music", "Stems"),
		LogLevel:         "info",
	}
}
