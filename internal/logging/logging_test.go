package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(LevelWarn)
	l.SetOutput(&buf)

	l.Debug("should not appear")
	l.Info("should not appear either")
	l.Warn("warn line")
	l.Error("error line")

	out := buf.String()
	if strings.Contains(out, "should not appear") {
		t.Errorf("debug/info lines leaked through a Warn-level logger: %q", out)
	}
	if !strings.Contains(out, "[WARN]") || !strings.Contains(out, "warn line") {
		t.Errorf("warn line missing from output: %q", out)
	}
	if !strings.Contains(out, "[ERROR]") || !strings.Contains(out, "error line") {
		t.Errorf("error line missing from output: %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		"info":    LevelInfo,
		"warn":    LevelWarn,
		"warning": LevelWarn,
		"error":   LevelError,
		"":        LevelInfo,
		"bogus":   LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q): got %v, want %v", in, got, want)
		}
	}
}
