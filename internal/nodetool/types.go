package nodetool

import (
	"context"
	"time"
)

// DefaultTimeout bounds a nodetool run when settings do not provide one
const DefaultTimeout = 300 * time.Second

// Settings supplies the locations the runner needs. Paths are expected to
// be validated by the provider already.
type Settings interface {
	// RuntimeHome is the Java home exported to nodetool as JAVA_HOME
	RuntimeHome() string
	// BinaryDirectory is the Cassandra bin directory holding nodetool
	BinaryDirectory() string
	// ExecutionTimeout bounds each run
	ExecutionTimeout() time.Duration
}

// Executor runs one nodetool subcommand, optionally against a target host.
// Every failure is reported through the returned Result.
type Executor interface {
	Execute(ctx context.Context, command, targetHost string) Result
}

// Result is the outcome of one execution. Success is true only when the
// process exited 0 without timeout, cancellation or spawn error; otherwise
// Stderr holds a human-readable cause.
type Result struct {
	Success        bool      `json:"success"`
	Command        string    `json:"command"`
	Stdout         string    `json:"stdout"`
	Stderr         string    `json:"stderr"`
	ExitCode       int       `json:"exit_code"`
	ElapsedSeconds float64   `json:"elapsed_seconds"`
	StartedAt      time.Time `json:"started_at"`
	TargetHost     string    `json:"target_host,omitempty"`
}

// Failed builds an unsuccessful result that never reached a process
func Failed(command, targetHost, cause string, startedAt time.Time) Result {
	return Result{
		Success:    false,
		Command:    command,
		Stderr:     cause,
		ExitCode:   -1,
		StartedAt:  startedAt,
		TargetHost: targetHost,
	}
}
