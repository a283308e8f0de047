package bootstrap

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/hashicorp/go-hclog"

	"vocal-splitter/internal/config"
	"vocal-splitter/internal/diagnostics"
	"vocal-splitter/internal/domain"
)

const (
	installCommandTimeout = 45 * time.Minute
	spleeterPackage       = "spleeter"
)

type installOption struct {
	manager  string
	commands [][]string
}

// installer runs package manager commands until one option succeeds.
type installer struct {
	goos     string
	lookPath func(string) (string, error)
	run      func(name string, args ...string) error
	logger   hclog.Logger
}

func newInstaller(logger hclog.Logger) *installer {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &installer{
		goos:     goruntime.GOOS,
		lookPath: exec.LookPath,
		run:      runCommand,
		logger:   logger.Named("installer"),
	}
}

// InstallOrFixDiagnostic applies an OS-specific remediation for one failed diagnostic item.
func (a *App) InstallOrFixDiagnostic(itemID string) (domain.DiagnosticReport, error) {
	if a.Store == nil {
		return domain.DiagnosticReport{}, errors.New("settings store is not configured")
	}

	id := strings.TrimSpace(itemID)
	if id == "" {
		return domain.DiagnosticReport{}, errors.New("diagnostic item id is required")
	}

	settings, err := a.GetSettings()
	if err != nil {
		return domain.DiagnosticReport{}, err
	}
	if a.installer == nil {
		a.installer = newInstaller(a.Logger)
	}

	settingsChanged := false
	var fixErr error

	switch id {
	case diagnostics.ToolID(settings.SeparatorPath):
		settings, settingsChanged, fixErr = a.installer.installSeparator(settings)
	case diagnostics.ToolFFmpegID:
		fixErr = a.installer.installFFmpeg()
	case diagnostics.ModelID:
		settings, settingsChanged = resetModel(settings)
	case diagnostics.OutputDirID:
		settings, settingsChanged, fixErr = installOrFixOutputDir(settings)
	default:
		return domain.DiagnosticReport{}, errors.Newf("unsupported diagnostic item id: %s", id)
	}

	if settingsChanged {
		if saveErr := a.Store.Save(settings); saveErr != nil {
			report := a.refreshDiagnosticsFromSettings(settings)
			return report, errors.Wrap(saveErr, "save settings after fix")
		}
	}

	report := a.refreshDiagnosticsFromSettings(settings)
	if fixErr != nil {
		a.Logger.Warn("diagnostic fix failed", "item", id, "error", fixErr)
		return report, fixErr
	}
	a.Logger.Info("diagnostic fix applied", "item", id)
	return report, nil
}

func (a *App) refreshDiagnosticsFromSettings(settings domain.Settings) domain.DiagnosticReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Settings = settings
	if a.checker != nil {
		a.Diagnostics = a.checker.Run(settings)
	}
	return a.Diagnostics
}

// ensureLocalBinOnPATH prepends ~/.local/bin, where pipx and pip --user place scripts.
func ensureLocalBinOnPATH(homeDir string) error {
	binDir := localBinDir(homeDir)
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return err
	}

	current := os.Getenv("PATH")
	for _, entry := range filepath.SplitList(current) {
		if filepath.Clean(entry) == filepath.Clean(binDir) {
			return nil
		}
	}

	if current == "" {
		return os.Setenv("PATH", binDir)
	}
	return os.Setenv("PATH", binDir+string(os.PathListSeparator)+current)
}

func localBinDir(homeDir string) string {
	return filepath.Join(homeDir, ".local", "bin")
}

// installSeparator installs Spleeter from PyPI. A configured path that still
// cannot be found afterwards is replaced with the plain executable name.
func (i *installer) installSeparator(settings domain.Settings) (domain.Settings, bool, error) {
	if err := i.firstSuccessful(spleeterInstallOptions(i.goos)); err != nil {
		return settings, false, errors.Wrap(err, "install spleeter")
	}

	if err := i.requireTools(settings.SeparatorPath); err == nil {
		return settings, false, nil
	}
	if err := i.requireTools(spleeterPackage); err != nil {
		return settings, false, errors.Wrap(err, "verify spleeter on PATH")
	}
	settings.SeparatorPath = spleeterPackage
	return settings, true, nil
}

func (i *installer) installFFmpeg() error {
	if err := i.firstSuccessful(ffmpegInstallOptions(i.goos)); err != nil {
		return errors.Wrap(err, "install ffmpeg")
	}
	if err := i.requireTools("ffmpeg"); err != nil {
		return errors.Wrap(err, "verify ffmpeg on PATH")
	}
	return nil
}

func spleeterInstallOptions(goos string) []installOption {
	python := "python3"
	if goos == "windows" {
		python = "python"
	}
	return []installOption{
		{
			manager:  "pipx",
			commands: [][]string{{"pipx", "install", spleeterPackage}},
		},
		{
			manager:  python,
			commands: [][]string{{python, "-m", "pip", "install", "--user", spleeterPackage}},
		},
		{
			manager:  "pip",
			commands: [][]string{{"pip", "install", "--user", spleeterPackage}},
		},
	}
}

func ffmpegInstallOptions(goos string) []installOption {
	switch goos {
	case "windows":
		return []installOption{
			{
				manager: "winget",
				commands: [][]string{
					{"winget", "install", "--id", "Gyan.FFmpeg", "--exact", "--accept-source-agreements", "--accept-package-agreements"},
				},
			},
			{manager: "choco", commands: [][]string{{"choco", "install", "ffmpeg", "-y"}}},
			{manager: "scoop", commands: [][]string{{"scoop", "install", "ffmpeg"}}},
		}
	case "darwin":
		return []installOption{
			{manager: "brew", commands: [][]string{{"brew", "install", "ffmpeg"}}},
		}
	default:
		return []installOption{
			{
				manager: "apt-get",
				commands: [][]string{
					{"apt-get", "update"},
					{"apt-get", "install", "-y", "ffmpeg"},
				},
			},
			{manager: "dnf", commands: [][]string{{"dnf", "install", "-y", "ffmpeg"}}},
			{manager: "pacman", commands: [][]string{{"pacman", "-Sy", "--noconfirm", "ffmpeg"}}},
			{manager: "zypper", commands: [][]string{{"zypper", "install", "-y", "ffmpeg"}}},
			{manager: "brew", commands: [][]string{{"brew", "install", "ffmpeg"}}},
		}
	}
}

// firstSuccessful tries each available manager in order and stops at the first success.
func (i *installer) firstSuccessful(options []installOption) error {
	if len(options) == 0 {
		return errors.Newf("no install commands configured for OS %s", i.goos)
	}

	failures := make([]string, 0, len(options))
	attempted := false

	for _, option := range options {
		if !i.available(option.manager) {
			continue
		}
		attempted = true
		i.logger.Info("installing", "manager", option.manager)
		err := i.runCommands(option.commands)
		if err == nil {
			return nil
		}
		failures = append(failures, option.manager+": "+err.Error())
	}

	if !attempted {
		return errors.Newf("no supported package manager found for %s", i.goos)
	}
	return errors.New(strings.Join(failures, " | "))
}

func (i *installer) runCommands(commands [][]string) error {
	for _, command := range commands {
		if err := i.runWithPossibleElevation(command); err != nil {
			return err
		}
	}
	return nil
}

func (i *installer) runWithPossibleElevation(command []string) error {
	if len(command) == 0 {
		return errors.New("empty command")
	}

	candidates := [][]string{command}
	if i.goos == "linux" && requiresElevation(command[0]) {
		if i.available("pkexec") {
			candidates = append(candidates, append([]string{"pkexec"}, command...))
		}
		if i.available("sudo") {
			candidates = append(candidates, append([]string{"sudo", "-n"}, command...))
		}
	}

	attempts := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		err := i.run(candidate[0], candidate[1:]...)
		if err == nil {
			return nil
		}
		i.logger.Debug("install command failed", "command", formatCommand(candidate[0], candidate[1:]), "error", err)
		attempts = append(attempts, err.Error())
	}

	return errors.New(strings.Join(attempts, " | "))
}

func (i *installer) available(name string) bool {
	_, err := i.lookPath(name)
	return err == nil
}

func (i *installer) requireTools(names ...string) error {
	missing := make([]string, 0, len(names))
	for _, name := range names {
		if !i.available(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return errors.Newf("missing tools on PATH: %s", strings.Join(missing, ", "))
	}
	return nil
}

func runCommand(name string, args ...string) error {
	ctx, cancel := context.WithTimeout(context.Background(), installCommandTimeout)
	defer cancel()

	output, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err == nil {
		return nil
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.Newf("%s timed out after %s", formatCommand(name, args), installCommandTimeout)
	}

	trimmed := strings.TrimSpace(string(output))
	if len(trimmed) > 500 {
		trimmed = trimmed[:500] + "..."
	}
	if trimmed == "" {
		return errors.Wrapf(err, "%s failed", formatCommand(name, args))
	}
	return errors.Wrapf(err, "%s failed (%s)", formatCommand(name, args), trimmed)
}

func formatCommand(name string, args []string) string {
	return strings.Join(append([]string{name}, args...), " ")
}

func requiresElevation(manager string) bool {
	switch manager {
	case "apt-get", "dnf", "pacman", "zypper":
		return true
	default:
		return false
	}
}

// resetModel restores the default preset when the configured one is unknown.
func resetModel(settings domain.Settings) (domain.Settings, bool) {
	if settings.Model == config.DefaultModel {
		return settings, false
	}
	settings.Model = config.DefaultModel
	return settings, true
}

func installOrFixOutputDir(settings domain.Settings) (domain.Settings, bool, error) {
	outputDir := strings.TrimSpace(settings.OutputDir)
	changed := false
	if outputDir == "" {
		outputDir = config.DefaultSettings().OutputDir
		settings.OutputDir = outputDir
		changed = true
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return settings, changed, errors.Wrapf(err, "create output directory %s", outputDir)
	}

	return settings, changed, nil
}
