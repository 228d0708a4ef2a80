// Package debug provides conditional debug logging for markon.
//
// Debug logging is enabled by setting the MARKON_DEBUG environment variable:
//
//	MARKON_DEBUG=1 go test ./pkg/persist/...
//
// When enabled, debug messages are written to stderr with timestamps.
// When disabled (default), all debug functions are no-ops.
//
// Usage:
//
//	debug.Log("persist: scheduling save for %d characters", len(text))
//	defer debug.LogEnterExit("preview.render")()
package debug

import (
	"log"
	"os"
	"sync/atomic"
	"time"
)

var (
	// enabled is true when MARKON_DEBUG env var is set
	enabled atomic.Bool
	// logger writes to stderr with [MARKON] prefix
	logger = log.New(os.Stderr, "[MARKON] ", log.Ltime|log.Lmicroseconds)
)

func init() {
	if os.Getenv("MARKON_DEBUG") != "" {
		enabled.Store(true)
	}
}

// Enabled returns whether debug logging is enabled.
func Enabled() bool {
	return enabled.Load()
}

// SetEnabled allows programmatic control of debug logging.
func SetEnabled(e bool) {
	enabled.Store(e)
}

// Log writes a debug message if debug logging is enabled.
// Uses printf-style formatting.
func Log(format string, args ...any) {
	if !enabled.Load() {
		return
	}
	logger.Printf(format, args...)
}

// LogTiming writes a timing message if debug logging is enabled.
func LogTiming(name string, d time.Duration) {
	if !enabled.Load() {
		return
	}
	logger.Printf("%s took %v", name, d)
}

// LogIf writes a debug message only if the condition is true.
func LogIf(cond bool, format string, args ...any) {
	if !cond || !enabled.Load() {
		return
	}
	logger.Printf(format, args...)
}

// LogEnterExit logs function entry and exit with timing.
//
//	func render() {
//	    defer debug.LogEnterExit("render")()
//	}
func LogEnterExit(name string) func() {
	if !enabled.Load() {
		return func() {}
	}
	logger.Printf("-> %s", name)
	start := time.Now()
	return func() {
		logger.Printf("<- %s (%v)", name, time.Since(start))
	}
}
