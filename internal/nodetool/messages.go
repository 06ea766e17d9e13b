package nodetool

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// InvalidHostMessage is reported when a target host fails validation
func InvalidHostMessage(host string) string {
	return fmt.Sprintf("Invalid IP format: %s", host)
}

// TimeoutMessage is reported when a command outlives its timeout
func TimeoutMessage(timeout time.Duration) string {
	return fmt.Sprintf("Command timed out after %s seconds", strconv.FormatFloat(timeout.Seconds(), 'f', -1, 64))
}

// CancelledMessage is reported when the caller abandons a command
func CancelledMessage(elapsed time.Duration) string {
	return fmt.Sprintf("Command cancelled after %.2f seconds", elapsed.Seconds())
}

// StopMessage explains why a command started at startedAt was killed. A
// caller's deadline reads as a timeout at that deadline, an explicit cancel
// as a cancellation, and anything else as the configured timeout.
func StopMessage(parent context.Context, timeout time.Duration, startedAt time.Time) string {
	switch err := parent.Err(); {
	case errors.Is(err, context.DeadlineExceeded):
		if deadline, ok := parent.Deadline(); ok && deadline.Sub(startedAt) < timeout {
			timeout = deadline.Sub(startedAt).Round(time.Millisecond)
		}
		return TimeoutMessage(timeout)
	case err != nil:
		return CancelledMessage(time.Since(startedAt))
	default:
		return TimeoutMessage(timeout)
	}
}

// Sanitize replaces invalid UTF-8 in captured output
func Sanitize(s string) string {
	return strings.ToValidUTF8(s, "\uFFFD")
}

// Settle derives Success from the exit code and fills an empty stderr on
// failure so the caller always has a reason
func (r *Result) Settle(waitErr error) {
	r.Success = waitErr == nil && r.ExitCode == 0
	if r.Success || strings.TrimSpace(r.Stderr) != "" {
		return
	}
	if r.ExitCode >= 0 {
		r.Stderr = fmt.Sprintf("Command exited with code %d", r.ExitCode)
	} else {
		r.Stderr = fmt.Sprintf("Command failed: %v", waitErr)
	}
}
