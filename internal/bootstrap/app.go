package bootstrap

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"vocal-splitter/internal/config"
	"vocal-splitter/internal/diagnostics"
	"vocal-splitter/internal/domain"
	"vocal-splitter/internal/jobs"
	"vocal-splitter/internal/logging"
	"vocal-splitter/internal/media"
	"vocal-splitter/internal/separate"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

// Status log messages shown in the window.
const (
	msgSelectFile       = "Please select a file first."
	msgSelectOutputDir  = "Please select an output folder."
	msgJobRunning       = "A job is already running."
	msgSelectedFile     = "Selected file: %s"
	msgSelectedFolder   = "Selected output folder: %s"
	msgSeparationDone   = "Audio separation complete. Output saved to folder: %s"
	msgSeparationFailed = "An error occurred: %s"
)

var (
	// ErrNoInputFile is returned when a job is triggered without a selected file.
	ErrNoInputFile = errors.New("no input file selected")
	// ErrNoOutputDir is returned when a job is triggered without an output folder.
	ErrNoOutputDir = errors.New("no output folder selected")
)

var audioDialogFilter = []wailsruntime.FileFilter{
	{
		DisplayName: "Audio files",
		Pattern:     media.DialogPattern,
	},
}

// App wires configuration, jobs, pipeline, and UI runtime callbacks.
type App struct {
	Settings    domain.Settings
	Store       config.Store
	Jobs        *jobs.Manager
	Diagnostics domain.DiagnosticReport
	Logger      hclog.Logger
	assets      fs.FS
	checker     *diagnostics.Checker
	installer   *installer
	newPipeline func(settings domain.Settings, logger hclog.Logger) pipelineRunner
	inspect     func(path string) (domain.InputInfo, error)

	mu         sync.Mutex
	inputPath  string
	outputDir  string
	lastOutput string
	status     *jobs.StatusLog
	events     *jobs.EventBus
	runtimeCtx context.Context
	appCtx     context.Context
	stopApp    context.CancelFunc
}

// pipelineRunner isolates the separation pipeline behind an interface.
type pipelineRunner interface {
	Run(ctx context.Context, req separate.Request) (separate.Result, error)
}

// New builds the application with persisted settings and startup diagnostics.
func New() (*App, error) {
	return NewWithAssets(nil)
}

// NewWithAssets builds the application and optionally configures embedded frontend assets.
func NewWithAssets(assets fs.FS) (*App, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.Wrap(err, "resolve user home")
	}
	if err := ensureLocalBinOnPATH(homeDir); err != nil {
		return nil, errors.Wrap(err, "prepare local tool path")
	}

	store := config.NewJSONStore(config.DefaultSettingsPath())
	settings, err := store.Load()
	if err != nil {
		return nil, errors.Wrap(err, "load settings")
	}
	settings = config.Normalize(settings)

	logger := logging.New("vocal-splitter", settings.LogLevel, os.Stderr)
	app := newApp(store, settings, logger, newSeparationPipeline)
	app.assets = assets
	app.checker = diagnostics.NewChecker()
	app.Diagnostics = app.checker.Run(settings)
	app.installer = newInstaller(logger)

	logger.Info("settings loaded", "path", config.DefaultSettingsPath(), "model", settings.Model,
		"target_rate", settings.TargetSampleRate)
	if app.Diagnostics.HasFailures {
		logger.Warn("startup diagnostics reported failures")
	}
	return app, nil
}

// newApp builds an App around a settings store and a pipeline factory.
func newApp(
	store config.Store,
	settings domain.Settings,
	logger hclog.Logger,
	newPipeline func(domain.Settings, hclog.Logger) pipelineRunner,
) *App {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &App{
		Settings:    settings,
		Store:       store,
		Jobs:        jobs.NewManager(),
		Logger:      logger,
		newPipeline: newPipeline,
		inspect:     media.Inspect,
		status:      jobs.NewStatusLog(),
		events:      jobs.NewEventBus(1000),
		appCtx:      ctx,
		stopApp:     cancel,
	}
}

// newSeparationPipeline builds the production pipeline for one job.
func newSeparationPipeline(settings domain.Settings, logger hclog.Logger) pipelineRunner {
	separator := separate.NewSpleeterSeparator(settings.SeparatorPath, settings.Model, settings.ModelDir)
	return separate.NewPipeline(separator, settings.TargetSampleRate, logger)
}

// Run starts the Wails desktop application and binds backend methods.
func (a *App) Run() error {
	assetOptions := &assetserver.Options{}
	if a.assets != nil {
		assetOptions.Assets = a.assets
	} else {
		assetOptions.Handler = http.FileServer(http.Dir("./frontend"))
	}

	return wails.Run(&options.App{
		Title:       "Vocal Splitter",
		Width:       960,
		Height:      720,
		AssetServer: assetOptions,
		OnStartup:   a.Startup,
		OnShutdown:  a.Shutdown,
		Bind:        []interface{}{a},
	})
}

// Startup stores Wails runtime context for dialogs and push events.
func (a *App) Startup(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runtimeCtx = ctx
}

// Shutdown cancels any in-flight job and drops the runtime context.
func (a *App) Shutdown(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runtimeCtx = nil
	if a.stopApp != nil {
		a.stopApp()
	}
}

// GetDiagnostics returns the latest cached diagnostics report.
func (a *App) GetDiagnostics() domain.DiagnosticReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Diagnostics
}

// GetSettings loads and returns the latest persisted settings.
func (a *App) GetSettings() (domain.Settings, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.Settings{}, errors.Wrap(err, "load settings")
	}
	settings = config.Normalize(settings)

	a.mu.Lock()
	a.Settings = settings
	a.mu.Unlock()

	return settings, nil
}

// SaveSettings normalizes, validates and persists settings, then refreshes diagnostics.
func (a *App) SaveSettings(settings domain.Settings) (domain.Settings, error) {
	normalized := config.Normalize(settings)
	if err := config.Validate(normalized); err != nil {
		return domain.Settings{}, errors.Wrap(err, "invalid settings")
	}
	if err := a.Store.Save(normalized); err != nil {
		return domain.Settings{}, errors.Wrap(err, "save settings")
	}

	a.Logger.SetLevel(logging.ParseLevel(normalized.LogLevel))
	a.refreshDiagnosticsFromSettings(normalized)
	return normalized, nil
}

// RefreshDiagnostics reloads settings and reruns dependency checks.
func (a *App) RefreshDiagnostics() (domain.DiagnosticReport, error) {
	settings, err := a.GetSettings()
	if err != nil {
		return domain.DiagnosticReport{}, err
	}
	return a.refreshDiagnosticsFromSettings(settings), nil
}

// PickInputFile opens a native file dialog and selects the chosen audio file.
func (a *App) PickInputFile() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenFileDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:   "Select audio file",
		Filters: audioDialogFilter,
	})
	if err != nil {
		return "", err
	}

	path = strings.TrimSpace(path)
	if path != "" {
		a.SetInputFile(path)
	}
	return path, nil
}

// PickOutputDirectory opens a native directory picker for the stem folder.
func (a *App) PickOutputDirectory() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	a.mu.Lock()
	defaultDir := a.Settings.OutputDir
	a.mu.Unlock()

	path, err := wailsruntime.OpenDirectoryDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:            "Select output folder",
		DefaultDirectory: existingDir(defaultDir),
	})
	if err != nil {
		return "", err
	}

	path = strings.TrimSpace(path)
	if path != "" {
		a.SetOutputDirectory(path)
	}
	return path, nil
}

// SetInputFile records the selected input file and reports it in the status log.
// A cancelled dialog (empty path) leaves the selection unchanged.
func (a *App) SetInputFile(path string) {
	path = strings.TrimSpace(path)
	if path == "" {
		return
	}

	a.mu.Lock()
	a.inputPath = path
	a.mu.Unlock()
	a.status.Append(fmt.Sprintf(msgSelectedFile, path))

	if a.inspect == nil {
		return
	}
	info, err := a.inspect(path)
	if err != nil {
		a.Logger.Debug("cannot inspect input", "input", path, "error", err)
		return
	}
	if line, ok := media.Describe(info); ok {
		a.status.Append(line)
	}
}

// SetOutputDirectory records the selected output folder and reports it in the status log.
func (a *App) SetOutputDirectory(dir string) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return
	}

	a.mu.Lock()
	a.outputDir = dir
	a.mu.Unlock()
	a.status.Append(fmt.Sprintf(msgSelectedFolder, dir))
}

// StartSeparation validates the selection and hands one job to a background worker.
func (a *App) StartSeparation() (domain.Job, error) {
	a.mu.Lock()
	request := domain.JobRequest{InputPath: a.inputPath, OutputDir: a.outputDir}
	a.mu.Unlock()

	if request.InputPath == "" {
		a.status.Append(msgSelectFile)
		return a.Jobs.Current(), ErrNoInputFile
	}
	if request.OutputDir == "" {
		a.status.Append(msgSelectOutputDir)
		return a.Jobs.Current(), ErrNoOutputDir
	}

	settings, err := a.GetSettings()
	if err != nil {
		a.status.Append(fmt.Sprintf(msgSeparationFailed, err))
		return a.Jobs.Current(), err
	}
	if err := config.Validate(settings); err != nil {
		err = errors.Wrap(err, "invalid settings")
		a.status.Append(fmt.Sprintf(msgSeparationFailed, err))
		return a.Jobs.Current(), err
	}

	jobID := uuid.NewString()
	if err := a.Jobs.Start(jobID, request); err != nil {
		if errors.Is(err, jobs.ErrJobAlreadyRunning) {
			a.status.Append(msgJobRunning)
		}
		return a.Jobs.Current(), err
	}

	a.mu.Lock()
	ctx := a.appCtx
	a.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	a.Logger.Info("job started", "job", jobID, "input", request.InputPath, "output_dir", request.OutputDir)
	a.publishStatus(jobID, domain.JobStatusSeparating, "Job started")

	pipeline := a.newPipeline(settings, a.Logger.With("job", jobID))
	results := make(chan domain.JobResult, 1)
	go a.runWorker(ctx, jobID, request, pipeline, results)
	go a.awaitResult(results)

	return a.Jobs.Current(), nil
}

// ShellState returns a snapshot of the selections, busy flag and status log.
// Busy mirrors the job manager so it can never disagree with Jobs.Start.
func (a *App) ShellState() domain.ShellState {
	a.mu.Lock()
	state := domain.ShellState{
		InputPath: a.inputPath,
		OutputDir: a.outputDir,
	}
	a.mu.Unlock()

	state.Log = a.status.Lines()
	state.Job = a.Jobs.Current()
	state.Busy = a.Jobs.IsRunning()
	return state
}

// StatusLog returns every status line in append order.
func (a *App) StatusLog() []string {
	return a.status.Lines()
}

// CurrentJob returns current job metadata and status.
func (a *App) CurrentJob() domain.Job {
	return a.Jobs.Current()
}

// JobEvents returns all events with sequence greater than sinceSeq.
func (a *App) JobEvents(sinceSeq int64) []jobs.Event {
	return a.events.Since(sinceSeq)
}

// OpenOutputFolder opens the given path, or the last stem folder, in the file manager.
func (a *App) OpenOutputFolder(path string) error {
	target := strings.TrimSpace(path)
	if target == "" {
		a.mu.Lock()
		target = firstNonEmpty(a.lastOutput, a.outputDir, a.Settings.OutputDir)
		a.mu.Unlock()
	}
	if target == "" {
		return errors.New("output path is empty")
	}

	info, err := os.Stat(target)
	if err != nil {
		return errors.Wrap(err, "resolve output path")
	}

	openPath := target
	if !info.IsDir() {
		openPath = filepath.Dir(target)
	}

	return openInFileManager(openPath)
}

// runWorker executes one job and reports exactly one result.
func (a *App) runWorker(
	ctx context.Context,
	jobID string,
	request domain.JobRequest,
	pipeline pipelineRunner,
	results chan<- domain.JobResult,
) {
	results <- a.executeJob(ctx, jobID, request, pipeline)
}

// executeJob runs the pipeline and converts every outcome, panics included, into a result.
func (a *App) executeJob(
	ctx context.Context,
	jobID string,
	request domain.JobRequest,
	pipeline pipelineRunner,
) (result domain.JobResult) {
	defer func() {
		if r := recover(); r != nil {
			a.Logger.Error("worker panicked", "job", jobID, "panic", r)
			result = domain.JobResult{
				JobID:   jobID,
				Success: false,
				Message: fmt.Sprintf("internal error: %v", r),
			}
		}
	}()

	req := separate.Request{
		InputPath: request.InputPath,
		OutputDir: request.OutputDir,
		OnStage: func(stage string) {
			status, ok := mapStageToStatus(stage)
			if !ok {
				return
			}
			if err := a.Jobs.Transition(status); err == nil {
				a.publishEvent(jobs.Event{
					JobID:   jobID,
					Type:    jobs.EventTypeStatus,
					Status:  status,
					Stage:   stage,
					Message: "Running " + stage + " stage",
				})
			}
		},
		OnLog: func(log separate.CommandLog) {
			a.publishCommand(jobID, separate.StageSeparating, "Command completed", log)
		},
	}

	out, err := pipeline.Run(ctx, req)
	if err != nil {
		var pipelineErr *separate.PipelineError
		if errors.As(err, &pipelineErr) && pipelineErr.CommandLog.Command != "" {
			a.publishCommand(jobID, pipelineErr.Stage, "Failed command", pipelineErr.CommandLog)
		}
		result := domain.JobResult{JobID: jobID, Success: false, Message: err.Error()}
		if kind := separate.KindOf(err); kind != nil {
			result.ErrorKind = kind.Error()
		}
		return result
	}

	for _, name := range separate.SortedStemNames(out.Stems) {
		a.Logger.Debug("stem written", "job", jobID, "stem", name, "path", out.Stems[name])
	}
	return domain.JobResult{JobID: jobID, Success: true, OutputPath: out.VocalsPath}
}

// awaitResult is the completion handler: it consumes the single result of a job.
func (a *App) awaitResult(results <-chan domain.JobResult) {
	a.completeJob(<-results)
}

// completeJob appends exactly one outcome line and releases the job guard.
// The line and lastOutput are recorded before Finish so a job started right
// after release cannot interleave with them.
func (a *App) completeJob(result domain.JobResult) {
	terminal := domain.JobStatusFailed
	if result.Success {
		terminal = domain.JobStatusDone
		a.status.Append(fmt.Sprintf(msgSeparationDone, result.OutputPath))
		a.mu.Lock()
		a.lastOutput = result.OutputPath
		a.mu.Unlock()
	} else {
		a.status.Append(fmt.Sprintf(msgSeparationFailed, result.Message))
	}

	if err := a.Jobs.Finish(terminal); err != nil {
		a.Logger.Warn("finish job", "job", result.JobID, "error", err)
	}

	if result.Success {
		a.Logger.Info("job finished", "job", result.JobID, "vocals", result.OutputPath)
		a.publishStatus(result.JobID, domain.JobStatusDone, "Job completed")
		a.publishEvent(jobs.Event{
			JobID:      result.JobID,
			Type:       jobs.EventTypeResult,
			Status:     domain.JobStatusDone,
			Message:    "Vocals written",
			OutputPath: result.OutputPath,
		})
		return
	}

	a.Logger.Error("job failed", "job", result.JobID, "kind", result.ErrorKind, "error", result.Message)
	a.publishStatus(result.JobID, domain.JobStatusFailed, "Job failed")
	a.publishEvent(jobs.Event{
		JobID:   result.JobID,
		Type:    jobs.EventTypeError,
		Status:  domain.JobStatusFailed,
		Kind:    result.ErrorKind,
		Message: result.Message,
	})
}

// publishStatus sends a normalized status event.
func (a *App) publishStatus(jobID string, status domain.JobStatus, message string) {
	a.publishEvent(jobs.Event{
		JobID:   jobID,
		Type:    jobs.EventTypeStatus,
		Status:  status,
		Message: message,
	})
}

// publishCommand sends the output of one external command as a log event.
func (a *App) publishCommand(jobID, stage, message string, log separate.CommandLog) {
	a.publishEvent(jobs.Event{
		JobID:    jobID,
		Type:     jobs.EventTypeLog,
		Stage:    stage,
		Message:  message,
		Command:  log.Command,
		Args:     log.Args,
		ExitCode: log.ExitCode,
		Stdout:   log.Stdout,
		Stderr:   log.Stderr,
	})
}

// publishEvent stores event history and emits runtime push notifications.
func (a *App) publishEvent(event jobs.Event) {
	published := a.events.Publish(event)

	a.mu.Lock()
	ctx := a.runtimeCtx
	a.mu.Unlock()
	if ctx != nil {
		wailsruntime.EventsEmit(ctx, "job:event", published)
	}
}

// mapStageToStatus maps pipeline stage names to job statuses.
func mapStageToStatus(stage string) (domain.JobStatus, bool) {
	switch stage {
	case separate.StageSeparating:
		return domain.JobStatusSeparating, true
	case separate.StageDenoising:
		return domain.JobStatusDenoising, true
	case separate.StageResampling:
		return domain.JobStatusResampling, true
	case separate.StageWriting:
		return domain.JobStatusWriting, true
	default:
		return "", false
	}
}

// runtimeContext returns current Wails runtime context for dialog APIs.
func (a *App) runtimeContext() (context.Context, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runtimeCtx == nil {
		return nil, errors.New("runtime context is not initialized")
	}
	return a.runtimeCtx, nil
}

func existingDir(dir string) string {
	if dir == "" {
		return ""
	}
	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		return dir
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

// openInFileManager launches the platform file explorer for the provided path.
func openInFileManager(path string) error {
	var cmd *exec.Cmd
	switch goruntime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("explorer", filepath.Clean(path))
	default:
		cmd = exec.Command("xdg-open", path)
	}

	if err := cmd.Start(); err != nil {
		return errors.Wrap(err, "launch file manager")
	}
	return nil
}
