package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/hashicorp/go-hclog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  hclog.Level
	}{
		{"debug", hclog.Debug},
		{"info", hclog.Info},
		{"warn", hclog.Warn},
		{"error", hclog.Error},
		{"unknown", hclog.Info},
		{"", hclog.Info},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestNewWritesNamedEntries(t *testing.T) {
	var buf bytes.Buffer
	logger := New("vocal-splitter", "info", &buf)

	logger.Debug("hidden")
	logger.Info("separation started", "input", "song.mp3")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug entry written at info level: %q", out)
	}
	for _, want := range []string{"vocal-splitter", "separation started", "input=song.mp3"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output %q missing %q", out, want)
		}
	}
}
