package domain

// JobStatus tracks each pipeline stage for a single separation job.
type JobStatus string

const (
	JobStatusIdle       JobStatus = "idle"
	JobStatusSeparating JobStatus = "separating"
	JobStatusDenoising  JobStatus = "denoising"
	JobStatusResampling JobStatus = "resampling"
	JobStatusWriting    JobStatus = "writing"
	JobStatusDone       JobStatus = "done"
	JobStatusFailed     JobStatus = "failed"
)

// Settings contains user-selectable runtime configuration.
type Settings struct {
	SeparatorPath    string `json:"separatorPath"`
	Model            string `json:"model"`
	ModelDir         string `json:"modelDir"`
	TargetSampleRate int    `json:"targetSampleRate"`
	OutputDir        string `json:"outputDir"`
	LogLevel         string `json:"logLevel"`
}

// Job stores the current job identity, inputs and lifecycle status.
type Job struct {
	ID        string    `json:"id"`
	Status    JobStatus `json:"status"`
	InputPath string    `json:"inputPath,omitempty"`
	OutputDir string    `json:"outputDir,omitempty"`
}

// JobRequest is the pair of paths handed to one background worker.
type JobRequest struct {
	InputPath string `json:"inputPath"`
	OutputDir string `json:"outputDir"`
}

// JobResult is the single terminal outcome a worker reports back to the shell.
type JobResult struct {
	JobID      string `json:"jobId"`
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	OutputPath string `json:"outputPath,omitempty"`
	ErrorKind  string `json:"errorKind,omitempty"`
}

// ShellState is a snapshot of the interactive window for the frontend.
type ShellState struct {
	InputPath string   `json:"inputPath"`
	OutputDir string   `json:"outputDir"`
	Busy      bool     `json:"busy"`
	Log       []string `json:"log"`
	Job       Job      `json:"job"`
}
