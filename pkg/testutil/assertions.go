package testutil

import (
	"strings"
	"testing"
	"time"
)

// WaitFor polls cond until it holds or timeout passes.
func WaitFor(t testing.TB, timeout time.Duration, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// AssertContains verifies that markup contains every part.
func AssertContains(t testing.TB, markup string, parts ...string) {
	t.Helper()
	for _, p := range parts {
		if !strings.Contains(markup, p) {
			t.Errorf("expected %q in:\n%s", p, markup)
		}
	}
}

// AssertNotContains verifies that markup contains none of parts.
func AssertNotContains(t testing.TB, markup string, parts ...string) {
	t.Helper()
	for _, p := range parts {
		if strings.Contains(markup, p) {
			t.Errorf("unexpected %q in:\n%s", p, markup)
		}
	}
}
