package jobs

import "sync"

// StatusLog is the append-only text log shown in the window.
// Lines are never edited or removed once appended.
type StatusLog struct {
	mu    sync.RWMutex
	lines []string
}

// NewStatusLog creates an empty log.
func NewStatusLog() *StatusLog {
	return &StatusLog{}
}

// Append adds one line to the end of the log.
func (l *StatusLog) Append(line string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, line)
}

// Lines returns a copy of every line in append order.
func (l *StatusLog) Lines() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]string(nil), l.lines...)
}
