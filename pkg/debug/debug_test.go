package debug

import (
	"bytes"
	"log"
	"strings"
	"testing"
	"time"
)

// captureLogger redirects the package logger for one test.
func captureLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev, prevEnabled := logger, Enabled()
	logger = log.New(&buf, "", 0)
	t.Cleanup(func() {
		logger = prev
		SetEnabled(prevEnabled)
	})
	return &buf
}

func TestSetEnabled(t *testing.T) {
	buf := captureLogger(t)

	SetEnabled(false)
	if Enabled() {
		t.Fatal("expected logging to be disabled")
	}
	Log("hidden %d", 1)
	LogTiming("hidden", time.Millisecond)
	LogEnterExit("hidden")()
	if buf.Len() != 0 {
		t.Errorf("disabled logger wrote %q", buf.String())
	}

	SetEnabled(true)
	if !Enabled() {
		t.Fatal("expected logging to be enabled")
	}
	Log("shown %d", 2)
	if !strings.Contains(buf.String(), "shown 2") {
		t.Errorf("missing message in %q", buf.String())
	}
}

func TestLogTiming(t *testing.T) {
	buf := captureLogger(t)
	SetEnabled(true)

	LogTiming("store write", 3*time.Millisecond)
	if got := buf.String(); !strings.Contains(got, "store write took 3ms") {
		t.Errorf("unexpected output %q", got)
	}
}

func TestLogEnterExit(t *testing.T) {
	buf := captureLogger(t)
	SetEnabled(true)

	done := LogEnterExit("preview.render")
	if !strings.Contains(buf.String(), "-> preview.render") {
		t.Errorf("missing entry line in %q", buf.String())
	}
	done()
	if !strings.Contains(buf.String(), "<- preview.render (") {
		t.Errorf("missing exit line in %q", buf.String())
	}
}

func TestLogIf(t *testing.T) {
	buf := captureLogger(t)
	SetEnabled(true)

	LogIf(false, "skipped")
	LogIf(true, "kept")
	if got := buf.String(); strings.Contains(got, "skipped") || !strings.Contains(got, "kept") {
		t.Errorf("unexpected output %q", got)
	}
}
