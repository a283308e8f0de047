package separate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/go-hclog"

	"vocal-splitter/internal/dsp"
	"vocal-splitter/internal/wavio"
)

// Stage names reported through Request.OnStage, in execution order.
const (
	StageValidating = "validating"
	StageSeparating = "separating"
	StageDenoising  = "denoising"
	StageResampling = "resampling"
	StageWriting    = "writing"
)

// VocalsStem is the stem the pipeline post-processes.
const VocalsStem = "vocals"

// Request contains the job paths and execution callbacks for one run.
type Request struct {
	InputPath string
	OutputDir string
	OnStage   func(stage string)
	OnLog     func(log CommandLog)
}

// Result describes the processed vocal stem and its sibling stems.
type Result struct {
	VocalsPath       string
	StemDir          string
	Stems            map[string]string
	SourceSampleRate int
	SampleRate       int
	Logs             []CommandLog
}

// Pipeline separates an audio file into stems and cleans up the vocal stem.
type Pipeline struct {
	separator  Separator
	denoiser   dsp.Denoiser
	resampler  dsp.Resampler
	targetRate int
	logger     hclog.Logger
	stat       func(name string) (os.FileInfo, error)
	mkdirAll   func(path string, perm os.FileMode) error
	readDir    func(name string) ([]os.DirEntry, error)
	load       func(path string) (wavio.Waveform, error)
	save       func(path string, w wavio.Waveform) error
}

// NewPipeline constructs the production pipeline around an explicit model handle.
func NewPipeline(separator Separator, targetRate int, logger hclog.Logger) *Pipeline {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Pipeline{
		separator:  separator,
		denoiser:   dsp.NewSpectralGate(),
		resampler:  dsp.NewSincResampler(),
		targetRate: targetRate,
		logger:     logger.Named("pipeline"),
		stat:       os.Stat,
		mkdirAll:   os.MkdirAll,
		readDir:    os.ReadDir,
		load:       wavio.Load,
		save:       wavio.Save,
	}
}

// Run validates paths, separates stems, then denoises, resamples and
// overwrites the vocal stem in place. Stages run strictly in order and the
// first failure aborts the run; files already written are left on disk.
func (p *Pipeline) Run(ctx context.Context, req Request) (Result, error) {
	emitStage(req.OnStage, StageValidating)
	inputPath, outputDir, err := p.validate(req)
	if err != nil {
		p.logger.Warn("rejected job request", "input", req.InputPath, "output_dir", req.OutputDir, "error", err)
		return Result{}, err
	}
	if p.targetRate <= 0 {
		return Result{}, newPipelineError(ErrInvalidInput, StageValidating,
			fmt.Sprintf("invalid target sample rate: %d", p.targetRate), nil)
	}

	logger := p.logger.With("input", inputPath, "output_dir", outputDir)

	emitStage(req.OnStage, StageSeparating)
	logger.Info("running separation model")
	sepLog, err := p.separator.Separate(ctx, inputPath, outputDir)
	emitLog(req.OnLog, sepLog)
	if err != nil {
		logger.Error("separation failed", "error", err, "exit_code", sepLog.ExitCode)
		pe := newPipelineError(ErrSeparationFailed, StageSeparating, "separation model failed", err)
		pe.CommandLog = sepLog
		return Result{}, pe
	}

	stemDir := StemDir(inputPath, outputDir)
	vocalsPath := VocalsPath(inputPath, outputDir)
	info, err := p.stat(vocalsPath)
	if err == nil && info.IsDir() {
		err = fmt.Errorf("%s is a directory", vocalsPath)
	}
	if err != nil {
		logger.Error("vocals stem missing after separation", "vocals", vocalsPath)
		pe := newPipelineError(ErrMissingOutput, StageSeparating,
			fmt.Sprintf("separation completed but vocals file is missing: %s", vocalsPath), err)
		pe.CommandLog = sepLog
		return Result{}, pe
	}
	logger = logger.With("vocals", vocalsPath)

	emitStage(req.OnStage, StageDenoising)
	wave, err := p.load(vocalsPath)
	if err != nil {
		return Result{}, newPipelineError(ErrDenoiseFailed, StageDenoising,
			fmt.Sprintf("failed to read vocals file: %s", vocalsPath), err)
	}
	logger.Debug("loaded vocals", "rate", wave.SampleRate, "samples", len(wave.Samples), "seconds", wave.Duration())

	denoised, err := p.denoiser.Denoise(wave.Samples, wave.SampleRate)
	if err != nil {
		return Result{}, newPipelineError(ErrDenoiseFailed, StageDenoising, "noise reduction failed", err)
	}

	emitStage(req.OnStage, StageResampling)
	resampled, err := p.resampler.Resample(denoised, wave.SampleRate, p.targetRate)
	if err != nil {
		return Result{}, newPipelineError(ErrWriteFailed, StageResampling,
			fmt.Sprintf("failed to resample %d Hz to %d Hz", wave.SampleRate, p.targetRate), err)
	}

	emitStage(req.OnStage, StageWriting)
	if err := p.save(vocalsPath, wavio.Waveform{Samples: resampled, SampleRate: p.targetRate}); err != nil {
		return Result{}, newPipelineError(ErrWriteFailed, StageWriting,
			fmt.Sprintf("failed to overwrite vocals file: %s", vocalsPath), err)
	}
	logger.Info("vocals processed", "source_rate", wave.SampleRate, "rate", p.targetRate)

	stems, err := p.collectStems(stemDir)
	if err != nil {
		logger.Warn("could not list stem directory", "error", err)
		stems = map[string]string{VocalsStem: vocalsPath}
	}

	return Result{
		VocalsPath:       vocalsPath,
		StemDir:          stemDir,
		Stems:            stems,
		SourceSampleRate: wave.SampleRate,
		SampleRate:       p.targetRate,
		Logs:             []CommandLog{sepLog},
	}, nil
}

// validate checks the job paths before any model call and returns them absolute.
func (p *Pipeline) validate(req Request) (string, string, error) {
	if strings.TrimSpace(req.InputPath) == "" {
		return "", "", newPipelineError(ErrInvalidInput, StageValidating, "input audio path is required", nil)
	}
	inputPath, err := filepath.Abs(req.InputPath)
	if err != nil {
		return "", "", newPipelineError(ErrInvalidInput, StageValidating,
			fmt.Sprintf("cannot resolve input path: %s", req.InputPath), err)
	}

	info, err := p.stat(inputPath)
	if err != nil {
		return "", "", newPipelineError(ErrInvalidInput, StageValidating,
			fmt.Sprintf("the file %s does not exist", req.InputPath), err)
	}
	if !info.Mode().IsRegular() {
		return "", "", newPipelineError(ErrInvalidInput, StageValidating,
			fmt.Sprintf("input path is not a file: %s", req.InputPath), nil)
	}

	if strings.TrimSpace(req.OutputDir) == "" {
		return "", "", newPipelineError(ErrInvalidInput, StageValidating, "output directory is required", nil)
	}
	outputDir, err := filepath.Abs(req.OutputDir)
	if err != nil {
		return "", "", newPipelineError(ErrInvalidInput, StageValidating,
			fmt.Sprintf("cannot resolve output directory: %s", req.OutputDir), err)
	}
	if err := p.mkdirAll(outputDir, 0o755); err != nil {
		return "", "", newPipelineError(ErrInvalidInput, StageValidating,
			fmt.Sprintf("cannot create output directory: %s", req.OutputDir), err)
	}

	return inputPath, outputDir, nil
}

// collectStems maps stem names to file paths inside the stem directory.
func (p *Pipeline) collectStems(stemDir string) (map[string]string, error) {
	entries, err := p.readDir(stemDir)
	if err != nil {
		return nil, err
	}

	stems := make(map[string]string, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		name := entry.Name()
		stems[strings.TrimSuffix(name, filepath.Ext(name))] = filepath.Join(stemDir, name)
	}
	return stems, nil
}

// StemDir returns <outputDir>/<input basename without extension>.
func StemDir(inputPath, outputDir string) string {
	return filepath.Join(outputDir, stemSetName(inputPath))
}

// VocalsPath returns where the separation model writes the vocal stem.
func VocalsPath(inputPath, outputDir string) string {
	return filepath.Join(StemDir(inputPath, outputDir), VocalsStem+"."+StemCodec)
}

// SortedStemNames returns the stem names of a result in a stable order.
func SortedStemNames(stems map[string]string) []string {
	names := make([]string, 0, len(stems))
	for name := range stems {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// stemSetName strips the extension from the input file name the way the
// separation model does; dotfiles keep their full name.
func stemSetName(inputPath string) string {
	base := filepath.Base(inputPath)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if name == "" {
		return base
	}
	return name
}

// emitStage forwards stage updates when callback is configured.
func emitStage(cb func(stage string), stage string) {
	if cb != nil {
		cb(stage)
	}
}

// emitLog forwards command logs when callback is configured.
func emitLog(cb func(log CommandLog), log CommandLog) {
	if cb != nil {
		cb(log)
	}
}

// NewPipelineForTests constructs a pipeline with injectable processing steps.
func NewPipelineForTests(
	separator Separator,
	denoiser dsp.Denoiser,
	resampler dsp.Resampler,
	targetRate int,
) *Pipeline {
	p := NewPipeline(separator, targetRate, hclog.NewNullLogger())
	if denoiser != nil {
		p.denoiser = denoiser
	}
	if resampler != nil {
		p.resampler = resampler
	}
	return p
}
