package bootstrap

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"

	"vocal-splitter/internal/domain"
	"vocal-splitter/internal/separate"
)

// GetSeparationModels returns the Spleeter presets, marking cached and selected ones.
func (a *App) GetSeparationModels() []domain.SeparationModelOption {
	models := separate.Models()

	settings, err := a.GetSettings()
	if err != nil {
		a.Logger.Warn("model catalog without settings", "error", err)
		return models
	}

	markDownloadedModels(models, settings.ModelDir)
	for i := range models {
		models[i].Selected = models[i].ID == settings.Model
	}
	return models
}

// SelectSeparationModel persists the chosen preset as the active model.
func (a *App) SelectSeparationModel(modelID string) (domain.Settings, error) {
	id := strings.TrimSpace(modelID)
	if id == "" {
		return domain.Settings{}, errors.New("model id is required")
	}
	if _, ok := separate.LookupModel(id); !ok {
		return domain.Settings{}, errors.Newf("unknown model id: %s", id)
	}

	settings, err := a.GetSettings()
	if err != nil {
		return domain.Settings{}, err
	}
	settings.Model = id
	return a.SaveSettings(settings)
}

// markDownloadedModels flags presets whose pretrained weights exist under modelDir.
func markDownloadedModels(models []domain.SeparationModelOption, modelDir string) {
	if strings.TrimSpace(modelDir) == "" {
		return
	}
	for i := range models {
		info, err := os.Stat(filepath.Join(modelDir, separate.ModelCacheName(models[i].ID)))
		models[i].Downloaded = err == nil && info.IsDir()
	}
}
