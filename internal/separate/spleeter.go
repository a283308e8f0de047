package separate

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"

	"github.com/cockroachdb/errors"
)

// CommandLog captures one external command invocation result.
type CommandLog struct {
	Command  string   `json:"command"`
	Args     []string `json:"args"`
	ExitCode int      `json:"exitCode"`
	Stdout   string   `json:"stdout"`
	Stderr   string   `json:"stderr"`
}

// commandResult is an internal process execution response.
type commandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, env []string, name string, args ...string) (commandResult, error)
}

// execRunner executes commands via os/exec.
type execRunner struct{}

// Run executes one command with extra environment entries and captures
// stdout/stderr and exit code.
func (r *execRunner) Run(ctx context.Context, env []string, name string, args ...string) (commandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := commandResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: 0,
	}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}

	return result, nil
}

// Separator is a handle on a pretrained source-separation model. Separate
// writes <outputDir>/<input basename>/<stem>.wav for every stem.
type Separator interface {
	Separate(ctx context.Context, inputPath, outputDir string) (CommandLog, error)
}

// StemCodec is the audio codec Spleeter is asked to write stems with.
const StemCodec = "wav"

// stemFilenameFormat pins Spleeter's output layout to <basename>/<stem>.<codec>.
const stemFilenameFormat = "{filename}/{instrument}.{codec}"

// SpleeterSeparator runs the spleeter CLI with one pretrained preset.
type SpleeterSeparator struct {
	binPath  string
	model    string
	modelDir string
	runner   commandRunner
}

// NewSpleeterSeparator constructs a model handle that shells out to binPath.
// Pretrained weights are cached under modelDir when it is set.
func NewSpleeterSeparator(binPath, model, modelDir string) *SpleeterSeparator {
	return &SpleeterSeparator{
		binPath:  binPath,
		model:    model,
		modelDir: modelDir,
		runner:   &execRunner{},
	}
}

// Separate runs one spleeter separation and returns its command log.
func (s *SpleeterSeparator) Separate(ctx context.Context, inputPath, outputDir string) (CommandLog, error) {
	args := buildSpleeterArgs(s.model, inputPath, outputDir)

	var env []string
	if strings.TrimSpace(s.modelDir) != "" {
		env = append(env, "MODEL_PATH="+s.modelDir)
	}

	res, err := s.runner.Run(ctx, env, s.binPath, args...)
	log := CommandLog{
		Command:  s.binPath,
		Args:     args,
		ExitCode: res.ExitCode,
		Stdout:   res.Stdout,
		Stderr:   res.Stderr,
	}
	if err != nil {
		return log, errors.Wrapf(err, "run %s", s.binPath)
	}
	return log, nil
}

// buildSpleeterArgs builds spleeter CLI args for wav stems under outputDir.
func buildSpleeterArgs(model, inputPath, outputDir string) []string {
	return []string{
		"separate",
		"-p", model,
		"-o", outputDir,
		"-c", StemCodec,
		"-f", stemFilenameFormat,
		inputPath,
	}
}

// NewSpleeterSeparatorForTests constructs a separator with an injected runner.
func NewSpleeterSeparatorForTests(binPath, model, modelDir string, runner commandRunner) *SpleeterSeparator {
	return &SpleeterSeparator{
		binPath:  binPath,
		model:    model,
		modelDir: modelDir,
		runner:   runner,
	}
}
