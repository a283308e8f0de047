package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"

	"vocal-splitter/internal/domain"
	"vocal-splitter/internal/separate"
)

// Store defines persistence operations for app settings.
type Store interface {
	Load() (domain.Settings, error)
	Save(domain.Settings) error
}

// JSONStore persists settings in a single JSON file on disk.
type JSONStore struct {
	path string
}

// NewJSONStore creates a JSON-backed settings store.
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

// Load reads settings from disk or returns defaults when missing.
// Fields absent from the file keep their default values.
func (s *JSONStore) Load() (domain.Settings, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultSettings(), nil
		}

		return domain.Settings{}, errors.Wrapf(err, "read settings %s", s.path)
	}

	cfg := DefaultSettings()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return domain.Settings{}, errors.Wrapf(err, "parse settings %s", s.path)
	}

	return cfg, nil
}

// Save writes settings as indented JSON and creates parent directories.
func (s *JSONStore) Save(cfg domain.Settings) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return errors.Wrap(err, "create settings directory")
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode settings")
	}

	return os.WriteFile(s.path, data, 0o644)
}

// Normalize trims user input and fills empty fields with defaults.
func Normalize(settings domain.Settings) domain.Settings {
	defaults := DefaultSettings()

	settings.SeparatorPath = strings.TrimSpace(settings.SeparatorPath)
	settings.Model = strings.TrimSpace(settings.Model)
	settings.ModelDir = strings.TrimSpace(settings.ModelDir)
	settings.OutputDir = strings.TrimSpace(settings.OutputDir)
	settings.LogLevel = strings.ToLower(strings.TrimSpace(settings.LogLevel))

	if settings.SeparatorPath == "" {
		settings.SeparatorPath = defaults.SeparatorPath
	}
	if settings.Model == "" {
		settings.Model = defaults.Model
	}
	if settings.ModelDir == "" {
		settings.ModelDir = defaults.ModelDir
	}
	if settings.TargetSampleRate == 0 {
		settings.TargetSampleRate = defaults.TargetSampleRate
	}
	if settings.LogLevel == "" {
		settings.LogLevel = defaults.LogLevel
	}
	return settings
}

// Validate checks settings for values the pipeline cannot run with.
func Validate(settings domain.Settings) error {
	if strings.TrimSpace(settings.SeparatorPath) == "" {
		return errors.New("separator path must not be empty")
	}

	if _, ok := separate.LookupModel(settings.Model); !ok {
		return errors.Newf("unknown separation model %q", settings.Model)
	}

	if settings.TargetSampleRate <= 0 || settings.TargetSampleRate > 192000 {
		return errors.Newf("target sample rate must be in (0, 192000], got %d", settings.TargetSampleRate)
	}

	switch settings.LogLevel {
	case "trace", "debug", "info", "warn", "error":
	default:
		return errors.Newf("log level must be trace, debug, info, warn, or error, got %q", settings.LogLevel)
	}

	return nil
}
