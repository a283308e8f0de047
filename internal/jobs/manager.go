package jobs

import (
	"sync"

	"github.com/cockroachdb/errors"

	"vocal-splitter/internal/domain"
)

// ErrJobAlreadyRunning is returned when starting a second active job.
var ErrJobAlreadyRunning = errors.New("job already running")

// Manager tracks the single allowed active job and its transitions.
type Manager struct {
	mu      sync.RWMutex
	current domain.Job
}

// NewManager creates a manager in idle state.
func NewManager() *Manager {
	return &Manager{
		current: domain.Job{
			Status: domain.JobStatusIdle,
		},
	}
}

// Start creates a new job for request and moves it to separating state.
func (m *Manager) Start(jobID string, request domain.JobRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if isRunning(m.current.Status) {
		return ErrJobAlreadyRunning
	}

	m.current = domain.Job{
		ID:        jobID,
		Status:    domain.JobStatusSeparating,
		InputPath: request.InputPath,
		OutputDir: request.OutputDir,
	}
	return nil
}

// Transition validates and applies state transitions for current job.
func (m *Manager) Transition(status domain.JobStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.ID == "" && status != domain.JobStatusIdle {
		return errors.New("cannot transition without an active job")
	}
	if status == m.current.Status {
		return nil
	}
	if !isValidTransition(m.current.Status, status) {
		return errors.Newf("invalid transition: %s -> %s", m.current.Status, status)
	}

	m.current.Status = status
	return nil
}

// Finish moves the running job straight to a terminal status.
// Stages the pipeline never reported are skipped.
func (m *Manager) Finish(status domain.JobStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if status != domain.JobStatusDone && status != domain.JobStatusFailed {
		return errors.Newf("not a terminal status: %s", status)
	}
	if !isRunning(m.current.Status) {
		return errors.Newf("cannot finish job in %s state", m.current.Status)
	}

	m.current.Status = status
	return nil
}

// Current returns a snapshot of the current job.
func (m *Manager) Current() domain.Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// IsRunning reports whether the current state is an active stage.
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return isRunning(m.current.Status)
}

// isRunning checks if a status represents active pipeline execution.
func isRunning(status domain.JobStatus) bool {
	switch status {
	case domain.JobStatusSeparating, domain.JobStatusDenoising, domain.JobStatusResampling, domain.JobStatusWriting:
		return true
	default:
		return false
	}
}

// isValidTransition enforces the allowed job state machine edges.
func isValidTransition(from, to domain.JobStatus) bool {
	switch from {
	case domain.JobStatusIdle:
		return to == domain.JobStatusSeparating
	case domain.JobStatusSeparating:
		return to == domain.JobStatusDenoising || to == domain.JobStatusFailed
	case domain.JobStatusDenoising:
		return to == domain.JobStatusResampling || to == domain.JobStatusFailed
	case domain.JobStatusResampling:
		return to == domain.JobStatusWriting || to == domain.JobStatusFailed
	case domain.JobStatusWriting:
		return to == domain.JobStatusDone || to == domain.JobStatusFailed
	case domain.JobStatusDone, domain.JobStatusFailed:
		return to == domain.JobStatusSeparating || to == domain.JobStatusIdle
	default:
		return false
	}
}
