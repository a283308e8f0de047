package diagnostics

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"vocal-splitter/internal/domain"
	"vocal-splitter/internal/separate"
)

// Diagnostic item IDs shared with the fix actions.
const (
	ToolFFmpegID = "tool_ffmpeg"
	ModelID      = "model"
	OutputDirID  = "output_dir"
)

// Checker validates external tools, the model preset and the output folder.
type Checker struct {
	lookPath   func(string) (string, error)
	stat       func(string) (os.FileInfo, error)
	mkdirAll   func(string, os.FileMode) error
	createTemp func(string, string) (*os.File, error)
	remove     func(string) error
}

// NewChecker builds a checker using real OS dependencies.
func NewChecker() *Checker {
	return &Checker{
		lookPath:   exec.LookPath,
		stat:       os.Stat,
		mkdirAll:   os.MkdirAll,
		createTemp: os.CreateTemp,
		remove:     os.Remove,
	}
}

// Run executes all startup checks and returns a combined report.
func (c *Checker) Run(settings domain.Settings) domain.DiagnosticReport {
	items := []domain.DiagnosticItem{
		c.checkTool(settings.SeparatorPath),
		c.checkTool("ffmpeg"),
		c.checkModel(settings.Model, settings.ModelDir),
		c.checkOutputDir(settings.OutputDir),
	}

	hasFailures := false
	for _, item := range items {
		if item.Status == domain.DiagnosticStatusFail {
			hasFailures = true
			break
		}
	}

	return domain.DiagnosticReport{
		GeneratedAt: time.Now().UTC(),
		HasFailures: hasFailures,
		Items:       items,
	}
}

// ToolID returns the diagnostic ID for an executable path or name.
func ToolID(binary string) string {
	name := filepath.Base(strings.TrimSpace(binary))
	if name == "." || name == string(filepath.Separator) {
		name = ""
	}
	return "tool_" + name
}

// checkTool verifies a required CLI executable is on PATH.
func (c *Checker) checkTool(binary string) domain.DiagnosticItem {
	binary = strings.TrimSpace(binary)
	item := domain.DiagnosticItem{
		ID:      ToolID(binary),
		Name:    filepath.Base(binary),
		Fixable: true,
	}
	if binary == "" {
		item.Name = "separator"
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Separator executable is not configured."
		item.Hint = "Set the separator path in settings, for example \"spleeter\"."
		item.Fixable = false
		return item
	}

	path, err := c.lookPath(binary)
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Tool not found in PATH: %s", binary)
		item.Hint = "Install it and ensure the binary is available on PATH before starting a separation job."
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Found at %s", path)
	item.Fixable = false
	return item
}

// checkModel validates the configured preset and whether its weights are cached.
func (c *Checker) checkModel(modelID, modelDir string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   ModelID,
		Name: "Separation model",
	}

	model, ok := separate.LookupModel(modelID)
	if !ok {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Unknown separation model: %q", modelID)
		item.Hint = "Pick one of the Spleeter presets, for example spleeter:4stems."
		item.Fixable = true
		return item
	}

	if strings.TrimSpace(modelDir) != "" {
		cached := filepath.Join(modelDir, separate.ModelCacheName(model.ID))
		if info, err := c.stat(cached); err == nil && info.IsDir() {
			item.Status = domain.DiagnosticStatusPass
			item.Message = fmt.Sprintf("%s cached at %s", model.Name, cached)
			return item
		}
	}

	item.Status = domain.DiagnosticStatusWarn
	item.Message = fmt.Sprintf("%s is not cached yet.", model.Name)
	item.Hint = "The pretrained weights are downloaded on the first separation run."
	return item
}

// checkOutputDir validates output directory existence and write access.
func (c *Checker) checkOutputDir(outputDir string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   OutputDirID,
		Name: "Output directory",
	}

	if strings.TrimSpace(outputDir) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Output directory is empty."
		item.Hint = "Set an output directory where stem folders can be written."
		return item
	}

	if err := c.mkdirAll(outputDir, 0o755); err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot create output directory: %s", outputDir)
		item.Hint = "Choose a writable location or adjust filesystem permissions."
		item.Fixable = true
		return item
	}

	tmpFile, err := c.createTemp(outputDir, ".write-check-*")
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Output directory is not writable: %s", outputDir)
		item.Hint = "Choose a writable directory for separated stems."
		return item
	}

	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()
	_ = c.remove(tmpPath)

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Writable directory: %s", outputDir)
	return item
}

// NewCheckerForTests creates checker with injectable dependencies.
func NewCheckerForTests(
	lookPath func(string) (string, error),
	stat func(string) (os.FileInfo, error),
	mkdirAll func(string, os.FileMode) error,
	createTemp func(string, string) (*os.File, error),
	remove func(string) error,
) *Checker {
	return &Checker{
		lookPath:   lookPath,
		stat:       stat,
		mkdirAll:   mkdirAll,
		createTemp: createTemp,
		remove:     remove,
	}
}
