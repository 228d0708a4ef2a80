package preview

import (
	"errors"
	"fmt"
	"runtime/debug"
	"time"
)

// ErrClosed is returned by WaitIdle after Close.
var ErrClosed = errors.New("preview: closed")

// RenderError wraps a failed render with the phase it failed in.
type RenderError struct {
	Phase string    // "enhance" or "reconcile"
	Cause error     // The underlying error
	Time  time.Time // When the error occurred
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Phase, e.Cause)
}

func (e *RenderError) Unwrap() error {
	return e.Cause
}

// safeCompute executes fn and recovers from any panics.
// Returns a RenderError if fn fails or panics, nil otherwise.
func safeCompute(phase string, fn func() error) *RenderError {
	var result *RenderError
	func() {
		defer func() {
			if r := recover(); r != nil {
				result = &RenderError{
					Phase: phase,
					Cause: fmt.Errorf("panic: %v\n%s", r, debug.Stack()),
					Time:  time.Now(),
				}
			}
		}()
		if err := fn(); err != nil {
			result = &RenderError{
				Phase: phase,
				Cause: err,
				Time:  time.Now(),
			}
		}
	}()
	return result
}
