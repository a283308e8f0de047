package bootstrap

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hashicorp/go-hclog"

	"vocal-splitter/internal/config"
	"vocal-splitter/internal/domain"
)

// fakeInstaller builds an installer whose PATH and command outcomes are scripted.
func fakeInstaller(goos string, onPath map[string]bool, fail map[string]bool, ran *[]string) *installer {
	return &installer{
		goos: goos,
		lookPath: func(name string) (string, error) {
			if onPath[name] {
				return "/usr/bin/" + name, nil
			}
			return "", errors.New("not found")
		},
		run: func(name string, args ...string) error {
			command := formatCommand(name, args)
			*ran = append(*ran, command)
			if fail[name] {
				return errors.New(name + " failed")
			}
			if strings.Contains(command, "install") && strings.Contains(command, spleeterPackage) {
				onPath[spleeterPackage] = true
			}
			return nil
		},
		logger: hclog.NewNullLogger(),
	}
}

// TestInstallSeparatorPrefersPipx ensures the first available manager wins.
func TestInstallSeparatorPrefersPipx(t *testing.T) {
	var ran []string
	inst := fakeInstaller("linux", map[string]bool{"pipx": true, "pip": true}, nil, &ran)

	settings, changed, err := inst.installSeparator(domain.Settings{SeparatorPath: "spleeter"})
	if err != nil {
		t.Fatalf("install: %v", err)
	}
	if changed {
		t.Fatal("settings should not change when the configured name resolves")
	}
	if settings.SeparatorPath != "spleeter" {
		t.Fatalf("SeparatorPath = %s", settings.SeparatorPath)
	}
	if len(ran) != 1 || ran[0] != "pipx install spleeter" {
		t.Fatalf("ran = %v", ran)
	}
}

// TestInstallSeparatorFallsBackToPip ensures failed managers are skipped.
func TestInstallSeparatorFallsBackToPip(t *testing.T) {
	var ran []string
	inst := fakeInstaller("linux",
		map[string]bool{"pipx": true, "pip": true},
		map[string]bool{"pipx": true},
		&ran,
	)

	settings, changed, err := inst.installSeparator(domain.Settings{SeparatorPath: "/opt/missing/spleeter"})
	if err != nil {
		t.Fatalf("install: %v", err)
	}
	if !changed || settings.SeparatorPath != "spleeter" {
		t.Fatalf("settings = %+v changed=%v, want plain spleeter", settings, changed)
	}
	want := []string{"pipx install spleeter", "pip install --user spleeter"}
	if strings.Join(ran, ",") != strings.Join(want, ",") {
		t.Fatalf("ran = %v, want %v", ran, want)
	}
}

// TestInstallWithoutManagersFails reports missing package managers.
func TestInstallWithoutManagersFails(t *testing.T) {
	var ran []string
	inst := fakeInstaller("linux", map[string]bool{}, nil, &ran)

	if err := inst.installFFmpeg(); err == nil || !strings.Contains(err.Error(), "no supported package manager") {
		t.Fatalf("error = %v", err)
	}
	if len(ran) != 0 {
		t.Fatalf("ran = %v, want nothing", ran)
	}
}

// TestRunWithPossibleElevationRetriesWithSudo checks elevated retry on linux.
func TestRunWithPossibleElevationRetriesWithSudo(t *testing.T) {
	var ran []string
	inst := fakeInstaller("linux", map[string]bool{"sudo": true}, map[string]bool{"apt-get": true}, &ran)

	if err := inst.runWithPossibleElevation([]string{"apt-get", "update"}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(ran) != 2 || ran[1] != "sudo -n apt-get update" {
		t.Fatalf("ran = %v", ran)
	}
}

// TestFFmpegInstallOptionsPerOS checks the manager order for each platform.
func TestFFmpegInstallOptionsPerOS(t *testing.T) {
	cases := map[string]string{
		"windows": "winget",
		"darwin":  "brew",
		"linux":   "apt-get",
	}
	for goos, first := range cases {
		options := ffmpegInstallOptions(goos)
		if len(options) == 0 || options[0].manager != first {
			t.Fatalf("%s: first manager = %+v, want %s", goos, options, first)
		}
	}

	if got := spleeterInstallOptions("windows")[1].commands[0][0]; got != "python" {
		t.Fatalf("windows python = %s, want python", got)
	}
}

// TestResetModel restores the default preset.
func TestResetModel(t *testing.T) {
	fixed, changed := resetModel(domain.Settings{Model: "demucs"})
	if !changed || fixed.Model != config.DefaultModel {
		t.Fatalf("fixed = %+v changed=%v", fixed, changed)
	}
	if _, changed := resetModel(fixed); changed {
		t.Fatal("default model should not be reported as changed")
	}
}

// TestInstallOrFixOutputDirCreatesDirectory ensures output dir fix creates missing directories.
func TestInstallOrFixOutputDirCreatesDirectory(t *testing.T) {
	outputDir := filepath.Join(t.TempDir(), "nested", "stems")

	fixed, changed, err := installOrFixOutputDir(domain.Settings{OutputDir: outputDir})
	if err != nil {
		t.Fatalf("fix output dir: %v", err)
	}
	if changed {
		t.Fatal("expected settings to remain unchanged")
	}
	if fixed.OutputDir != outputDir {
		t.Fatalf("OutputDir = %s, want %s", fixed.OutputDir, outputDir)
	}
	if _, err := os.Stat(outputDir); err != nil {
		t.Fatalf("stat output dir: %v", err)
	}
}

// TestEnsureLocalBinOnPATH verifies the pipx script dir is prepended once.
func TestEnsureLocalBinOnPATH(t *testing.T) {
	home := t.TempDir()
	t.Setenv("PATH", "/usr/bin")

	if err := ensureLocalBinOnPATH(home); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if err := ensureLocalBinOnPATH(home); err != nil {
		t.Fatalf("ensure again: %v", err)
	}

	want := filepath.Join(home, ".local", "bin") + string(os.PathListSeparator) + "/usr/bin"
	if got := os.Getenv("PATH"); got != want {
		t.Fatalf("PATH = %s, want %s", got, want)
	}
}

// TestInstallOrFixDiagnosticModel persists the reset preset.
func TestInstallOrFixDiagnosticModel(t *testing.T) {
	settings := config.DefaultSettings()
	settings.Model = "spleeter:9stems"
	store := &fakeStore{settings: settings}
	app := newApp(store, settings, nil, nil)

	if _, err := app.InstallOrFixDiagnostic("model"); err != nil {
		t.Fatalf("fix: %v", err)
	}
	if store.saved.Model != config.DefaultModel {
		t.Fatalf("saved model = %s, want %s", store.saved.Model, config.DefaultModel)
	}

	if _, err := app.InstallOrFixDiagnostic("tool_unknown"); err == nil {
		t.Fatal("expected unsupported id error")
	}
}
