package separate

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Failure kinds reported by Pipeline.Run. Test with errors.Is.
var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrSeparationFailed = errors.New("separation failed")
	ErrMissingOutput    = errors.New("missing output")
	ErrDenoiseFailed    = errors.New("denoise failed")
	ErrWriteFailed      = errors.New("write failed")
)

var errorKinds = []error{
	ErrInvalidInput,
	ErrSeparationFailed,
	ErrMissingOutput,
	ErrDenoiseFailed,
	ErrWriteFailed,
}

// PipelineError is a stage-aware error with optional command context.
type PipelineError struct {
	Kind       error      `json:"-"`
	Stage      string     `json:"stage"`
	Message    string     `json:"message"`
	CommandLog CommandLog `json:"commandLog"`
	Err        error      `json:"-"`
}

// newPipelineError marks cause with kind so errors.Is matches on either.
func newPipelineError(kind error, stage, message string, cause error) *PipelineError {
	if cause == nil {
		cause = errors.New(message)
	}
	return &PipelineError{
		Kind:    kind,
		Stage:   stage,
		Message: message,
		Err:     errors.Mark(cause, kind),
	}
}

// Error formats pipeline failures for logs and UI.
func (e *PipelineError) Error() string {
	if e == nil {
		return ""
	}
	if e.CommandLog.Command == "" {
		return fmt.Sprintf("%s: %s", e.Stage, e.Message)
	}

	return fmt.Sprintf(
		"%s: %s (cmd=%s exit=%d)",
		e.Stage,
		e.Message,
		e.CommandLog.Command,
		e.CommandLog.ExitCode,
	)
}

// Unwrap exposes the marked cause for errors.Is / errors.As.
func (e *PipelineError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// KindOf returns the failure kind of err, or nil if it is not a pipeline failure.
func KindOf(err error) error {
	for _, kind := range errorKinds {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
