package bootstrap

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"

	"vocal-splitter/internal/config"
	"vocal-splitter/internal/domain"
	"vocal-splitter/internal/jobs"
	"vocal-splitter/internal/separate"
)

// fakeStore keeps settings in memory for App tests.
type fakeStore struct {
	mu       sync.Mutex
	settings domain.Settings
	saved    domain.Settings
	saves    int
}

// Load returns the current settings.
func (s *fakeStore) Load() (domain.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings, nil
}

// Save records and applies settings.
func (s *fakeStore) Save(settings domain.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
	s.saved = settings
	s.saves++
	return nil
}

// fakePipeline allows injecting custom run behavior per test.
type fakePipeline struct {
	calls atomic.Int32
	run   func(ctx context.Context, req separate.Request) (separate.Result, error)
}

// Run delegates to injected function.
func (p *fakePipeline) Run(ctx context.Context, req separate.Request) (separate.Result, error) {
	p.calls.Add(1)
	if p.run == nil {
		return separate.Result{}, nil
	}
	return p.run(ctx, req)
}

// newTestApp builds an App whose jobs run the given fake pipeline.
func newTestApp(t *testing.T, pipeline *fakePipeline) (*App, *fakeStore) {
	t.Helper()
	settings := config.DefaultSettings()
	settings.OutputDir = t.TempDir()
	store := &fakeStore{settings: settings}

	app := newApp(store, settings, hclog.NewNullLogger(), func(domain.Settings, hclog.Logger) pipelineRunner {
		return pipeline
	})
	app.inspect = nil
	return app, store
}

// TestStartSeparationWithoutFileLogsMessage checks no worker starts without input.
func TestStartSeparationWithoutFileLogsMessage(t *testing.T) {
	pipeline := &fakePipeline{}
	app, _ := newTestApp(t, pipeline)

	if _, err := app.StartSeparation(); !errors.Is(err, ErrNoInputFile) {
		t.Fatalf("error = %v, want %v", err, ErrNoInputFile)
	}

	state := app.ShellState()
	if len(state.Log) != 1 || state.Log[0] != "Please select a file first." {
		t.Fatalf("log = %v", state.Log)
	}
	if state.Busy {
		t.Fatal("shell should not be busy")
	}
	time.Sleep(20 * time.Millisecond)
	if pipeline.calls.Load() != 0 {
		t.Fatalf("pipeline calls = %d, want 0", pipeline.calls.Load())
	}
}

// TestStartSeparationWithoutFolderLogsMessage checks the output folder precondition.
func TestStartSeparationWithoutFolderLogsMessage(t *testing.T) {
	pipeline := &fakePipeline{}
	app, _ := newTestApp(t, pipeline)
	app.SetInputFile("/music/song.mp3")

	if _, err := app.StartSeparation(); !errors.Is(err, ErrNoOutputDir) {
		t.Fatalf("error = %v, want %v", err, ErrNoOutputDir)
	}

	want := []string{"Selected file: /music/song.mp3", "Please select an output folder."}
	if got := app.StatusLog(); strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Fatalf("log = %v, want %v", got, want)
	}
	if pipeline.calls.Load() != 0 {
		t.Fatalf("pipeline calls = %d, want 0", pipeline.calls.Load())
	}
}

// TestStartSeparationBusyUntilSingleResultLine checks busy flag and the one outcome line.
func TestStartSeparationBusyUntilSingleResultLine(t *testing.T) {
	release := make(chan struct{})
	pipeline := &fakePipeline{run: func(ctx context.Context, req separate.Request) (separate.Result, error) {
		<-release
		for _, stage := range []string{
			separate.StageValidating,
			separate.StageSeparating,
			separate.StageDenoising,
			separate.StageResampling,
			separate.StageWriting,
		} {
			req.OnStage(stage)
		}
		req.OnLog(separate.CommandLog{Command: "spleeter", ExitCode: 0})
		return separate.Result{VocalsPath: "/out/song/vocals.wav"}, nil
	}}
	app, _ := newTestApp(t, pipeline)
	app.SetInputFile("/music/song.mp3")
	app.SetOutputDirectory("/out")

	job, err := app.StartSeparation()
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if job.ID == "" || job.InputPath != "/music/song.mp3" || job.OutputDir != "/out" {
		t.Fatalf("job = %+v", job)
	}

	state := app.ShellState()
	if !state.Busy {
		t.Fatal("shell should be busy while the worker runs")
	}
	before := len(state.Log)

	close(release)
	state = waitForIdle(t, app)

	if len(state.Log) != before+1 {
		t.Fatalf("log grew by %d lines, want 1: %v", len(state.Log)-before, state.Log)
	}
	if last := state.Log[len(state.Log)-1]; last != "Audio separation complete. Output saved to folder: /out/song/vocals.wav" {
		t.Fatalf("last line = %q", last)
	}
	if state.Job.Status != domain.JobStatusDone {
		t.Fatalf("status = %s, want done", state.Job.Status)
	}

	events := app.JobEvents(0)
	assertEventTypeExists(t, events, jobs.EventTypeStatus)
	assertEventTypeExists(t, events, jobs.EventTypeLog)
	assertEventTypeExists(t, events, jobs.EventTypeResult)
	assertStatusEvent(t, events, domain.JobStatusWriting)
}

// TestCompletionAllowsImmediateNextJob starts a second job from inside the
// completion handler and checks the shell reports it as busy.
func TestCompletionAllowsImmediateNextJob(t *testing.T) {
	release := make(chan struct{})
	var runs atomic.Int32
	pipeline := &fakePipeline{run: func(ctx context.Context, req separate.Request) (separate.Result, error) {
		if runs.Add(1) == 2 {
			<-release
		}
		return separate.Result{VocalsPath: "/out/song/vocals.wav"}, nil
	}}

	settings := config.DefaultSettings()
	settings.OutputDir = t.TempDir()
	store := &fakeStore{settings: settings}
	logger := &finishHookLogger{Logger: hclog.NewNullLogger()}
	app := newApp(store, settings, logger, func(domain.Settings, hclog.Logger) pipelineRunner {
		return pipeline
	})
	app.inspect = nil

	started := make(chan error, 1)
	logger.onFinish = func() {
		_, err := app.StartSeparation()
		started <- err
	}

	app.SetInputFile("/music/song.mp3")
	app.SetOutputDirectory("/out")
	if _, err := app.StartSeparation(); err != nil {
		t.Fatalf("start first job: %v", err)
	}

	select {
	case err := <-started:
		if err != nil {
			t.Fatalf("start from completion handler: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("first job never finished")
	}

	state := app.ShellState()
	if !state.Busy {
		t.Fatal("shell should be busy while the second job runs")
	}
	if !app.Jobs.IsRunning() {
		t.Fatalf("job status = %s, want running", state.Job.Status)
	}
	if _, err := app.StartSeparation(); !errors.Is(err, jobs.ErrJobAlreadyRunning) {
		t.Fatalf("third start error = %v, want %v", err, jobs.ErrJobAlreadyRunning)
	}

	close(release)
	state = waitForIdle(t, app)

	done := 0
	for _, line := range state.Log {
		if line == "Audio separation complete. Output saved to folder: /out/song/vocals.wav" {
			done++
		}
	}
	if done != 2 {
		t.Fatalf("outcome lines = %d, want 2: %v", done, state.Log)
	}
	if pipeline.calls.Load() != 2 {
		t.Fatalf("pipeline calls = %d, want 2", pipeline.calls.Load())
	}
}

// TestAudioDialogFilterListsSupportedTypesOnly checks the picker offers no catch-all entry.
func TestAudioDialogFilterListsSupportedTypesOnly(t *testing.T) {
	if len(audioDialogFilter) != 1 {
		t.Fatalf("filters = %+v, want one entry", audioDialogFilter)
	}
	if got := audioDialogFilter[0].Pattern; got != "*.mp3;*.wav" {
		t.Fatalf("pattern = %q, want %q", got, "*.mp3;*.wav")
	}
}

// TestStartSeparationRejectsOverlappingJob checks the single-job guard.
func TestStartSeparationRejectsOverlappingJob(t *testing.T) {
	release := make(chan struct{})
	pipeline := &fakePipeline{run: func(ctx context.Context, req separate.Request) (separate.Result, error) {
		<-release
		return separate.Result{VocalsPath: "/out/song/vocals.wav"}, nil
	}}
	app, _ := newTestApp(t, pipeline)
	app.SetInputFile("/music/song.mp3")
	app.SetOutputDirectory("/out")

	if _, err := app.StartSeparation(); err != nil {
		t.Fatalf("start first job: %v", err)
	}
	if _, err := app.StartSeparation(); !errors.Is(err, jobs.ErrJobAlreadyRunning) {
		t.Fatalf("second start error = %v, want %v", err, jobs.ErrJobAlreadyRunning)
	}

	log := app.StatusLog()
	if log[len(log)-1] != "A job is already running." {
		t.Fatalf("last line = %q", log[len(log)-1])
	}

	close(release)
	waitForIdle(t, app)
	if pipeline.calls.Load() != 1 {
		t.Fatalf("pipeline calls = %d, want 1", pipeline.calls.Load())
	}

	if _, err := app.StartSeparation(); err != nil {
		t.Fatalf("start after completion: %v", err)
	}
	waitForIdle(t, app)
}

// TestStartSeparationReportsFailure checks the error line and failure events.
func TestStartSeparationReportsFailure(t *testing.T) {
	pipeline := &fakePipeline{run: func(ctx context.Context, req separate.Request) (separate.Result, error) {
		return separate.Result{}, &separate.PipelineError{
			Kind:    separate.ErrSeparationFailed,
			Stage:   separate.StageSeparating,
			Message: "separation failed",
			CommandLog: separate.CommandLog{
				Command:  "spleeter",
				Args:     []string{"separate"},
				ExitCode: 1,
				Stderr:   "model download failed",
			},
			Err: errors.New("exit status 1"),
		}
	}}
	app, _ := newTestApp(t, pipeline)
	app.SetInputFile("/music/song.mp3")
	app.SetOutputDirectory("/out")

	if _, err := app.StartSeparation(); err != nil {
		t.Fatalf("start: %v", err)
	}
	state := waitForIdle(t, app)

	last := state.Log[len(state.Log)-1]
	if !strings.HasPrefix(last, "An error occurred: ") || !strings.Contains(last, "separation failed") {
		t.Fatalf("last line = %q", last)
	}
	if state.Job.Status != domain.JobStatusFailed {
		t.Fatalf("status = %s, want failed", state.Job.Status)
	}

	events := app.JobEvents(0)
	assertEventTypeExists(t, events, jobs.EventTypeError)
	assertEventTypeExists(t, events, jobs.EventTypeLog)
	for _, event := range events {
		if event.Type == jobs.EventTypeError && event.Kind != "separation failed" {
			t.Fatalf("error event kind = %q, want %q", event.Kind, "separation failed")
		}
	}
}

// TestStartSeparationRecoversWorkerPanic checks panics become failure results.
func TestStartSeparationRecoversWorkerPanic(t *testing.T) {
	pipeline := &fakePipeline{run: func(ctx context.Context, req separate.Request) (separate.Result, error) {
		panic("boom")
	}}
	app, _ := newTestApp(t, pipeline)
	app.SetInputFile("/music/song.mp3")
	app.SetOutputDirectory("/out")

	if _, err := app.StartSeparation(); err != nil {
		t.Fatalf("start: %v", err)
	}
	state := waitForIdle(t, app)

	if last := state.Log[len(state.Log)-1]; last != "An error occurred: internal error: boom" {
		t.Fatalf("last line = %q", last)
	}
}

// TestShutdownCancelsRunningJob checks the app context reaches the worker.
func TestShutdownCancelsRunningJob(t *testing.T) {
	started := make(chan struct{})
	pipeline := &fakePipeline{run: func(ctx context.Context, req separate.Request) (separate.Result, error) {
		close(started)
		<-ctx.Done()
		return separate.Result{}, ctx.Err()
	}}
	app, _ := newTestApp(t, pipeline)
	app.SetInputFile("/music/song.mp3")
	app.SetOutputDirectory("/out")

	if _, err := app.StartSeparation(); err != nil {
		t.Fatalf("start: %v", err)
	}
	<-started
	app.Shutdown(context.Background())

	state := waitForIdle(t, app)
	if last := state.Log[len(state.Log)-1]; !strings.HasPrefix(last, "An error occurred: ") {
		t.Fatalf("last line = %q", last)
	}
}

// TestStartSeparationRejectsInvalidSettings checks settings are validated before work starts.
func TestStartSeparationRejectsInvalidSettings(t *testing.T) {
	pipeline := &fakePipeline{}
	app, store := newTestApp(t, pipeline)
	store.settings.Model = "spleeter:9stems"
	app.SetInputFile("/music/song.mp3")
	app.SetOutputDirectory("/out")

	if _, err := app.StartSeparation(); err == nil {
		t.Fatal("expected settings error")
	}
	if app.ShellState().Busy {
		t.Fatal("shell should not be busy")
	}
	if pipeline.calls.Load() != 0 {
		t.Fatalf("pipeline calls = %d, want 0", pipeline.calls.Load())
	}
}

// TestSetInputFileReportsTags checks the detected-audio line.
func TestSetInputFileReportsTags(t *testing.T) {
	app, _ := newTestApp(t, &fakePipeline{})
	app.inspect = func(path string) (domain.InputInfo, error) {
		return domain.InputInfo{Path: path, FileType: "MP3", Title: "Song", Artist: "Band", HasTags: true}, nil
	}

	app.SetInputFile(" /music/song.mp3 ")
	app.SetInputFile("")
	app.SetOutputDirectory("/out")

	want := []string{
		"Selected file: /music/song.mp3",
		"Detected MP3 audio: Band - Song",
		"Selected output folder: /out",
	}
	if got := app.StatusLog(); strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Fatalf("log = %v, want %v", got, want)
	}
	if state := app.ShellState(); state.InputPath != "/music/song.mp3" || state.OutputDir != "/out" {
		t.Fatalf("state = %+v", state)
	}
}

// TestSaveSettingsValidates checks invalid settings are not persisted.
func TestSaveSettingsValidates(t *testing.T) {
	app, store := newTestApp(t, &fakePipeline{})

	settings := config.DefaultSettings()
	settings.TargetSampleRate = -1
	if _, err := app.SaveSettings(settings); err == nil {
		t.Fatal("expected validation error")
	}
	if store.saves != 0 {
		t.Fatalf("saves = %d, want 0", store.saves)
	}

	settings.TargetSampleRate = 22050
	settings.LogLevel = "DEBUG"
	saved, err := app.SaveSettings(settings)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.LogLevel != "debug" || store.saved.TargetSampleRate != 22050 {
		t.Fatalf("saved = %+v", saved)
	}
}

// waitForIdle polls until the shell clears its busy flag and the job's
// terminal event is published, or times out.
func waitForIdle(t *testing.T, app *App) domain.ShellState {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		state := app.ShellState()
		if !state.Busy && (state.Job.ID == "" || hasTerminalEvent(app.JobEvents(0), state.Job.ID)) {
			return state
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("shell still busy")
	return domain.ShellState{}
}

func hasTerminalEvent(events []jobs.Event, jobID string) bool {
	for _, event := range events {
		if event.JobID != jobID {
			continue
		}
		if event.Type == jobs.EventTypeResult || event.Type == jobs.EventTypeError {
			return true
		}
	}
	return false
}

// finishHookLogger runs onFinish the first time the shell logs a finished job.
type finishHookLogger struct {
	hclog.Logger
	once     sync.Once
	onFinish func()
}

func (l *finishHookLogger) Info(msg string, args ...interface{}) {
	if msg == "job finished" {
		l.once.Do(l.onFinish)
	}
	l.Logger.Info(msg, args...)
}

// assertEventTypeExists verifies at least one event of given type exists.
func assertEventTypeExists(t *testing.T, events []jobs.Event, want jobs.EventType) {
	t.Helper()
	for _, event := range events {
		if event.Type == want {
			return
		}
	}
	t.Fatalf("event type %s not found", want)
}

// assertStatusEvent verifies a status event for the given job status exists.
func assertStatusEvent(t *testing.T, events []jobs.Event, want domain.JobStatus) {
	t.Helper()
	for _, event := range events {
		if event.Type == jobs.EventTypeStatus && event.Status == want {
			return
		}
	}
	t.Fatalf("status event %s not found", want)
}
