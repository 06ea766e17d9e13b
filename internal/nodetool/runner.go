package nodetool

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ngenohkevin/cassandra-mcp/internal/ipaddr"
	"github.com/ngenohkevin/cassandra-mcp/internal/process"
)

// BinaryName is the executable looked up inside the configured bin directory
const BinaryName = "nodetool"

// pipeGrace bounds how long Wait keeps reading pipes after the process exits
const pipeGrace = 5 * time.Second

// Runner spawns one nodetool process per call
type Runner struct {
	settings Settings
	logger   zerolog.Logger
	killTree func(pid int32) (*process.KillReport, error)
}

// NewRunner creates a runner backed by the given settings provider
func NewRunner(settings Settings) *Runner {
	return &Runner{
		settings: settings,
		logger:   log.With().Str("component", "nodetool").Logger(),
		killTree: process.KillTree,
	}
}

// BuildCommand returns the argument vector for a nodetool invocation:
// binary, optional "-h host", the subcommand, then any extra args.
func (r *Runner) BuildCommand(command string, args []string, targetHost string) []string {
	binary := filepath.Join(r.settings.BinaryDirectory(), BinaryName)

	parts := []string{binary}
	if targetHost != "" {
		parts = append(parts, "-h", targetHost)
	}
	parts = append(parts, command)
	parts = append(parts, args...)
	return parts
}

// Execute runs command with the configured timeout. ctx cancellation kills
// the process the same way a timeout does.
func (r *Runner) Execute(ctx context.Context, command, targetHost string) Result {
	startedAt := time.Now()

	if targetHost != "" && !ipaddr.IsValidAddress(targetHost) {
		msg := InvalidHostMessage(targetHost)
		r.logger.Error().Str("command", command).Str("target_host", targetHost).Msg(msg)
		res := Failed(command, targetHost, msg, startedAt)
		res.ElapsedSeconds = time.Since(startedAt).Seconds()
		return res
	}

	argv := r.BuildCommand(command, nil, targetHost)
	timeout := r.settings.ExecutionTimeout()
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	event := r.logger.Info().Str("command", command).Strs("argv", argv)
	if targetHost != "" {
		event = event.Str("target_host", targetHost)
	}
	event.Msg("executing nodetool command")

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Env = r.environment()
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = pipeGrace

	if err := cmd.Start(); err != nil {
		res := Failed(command, targetHost, spawnMessage(err), startedAt)
		res.ElapsedSeconds = time.Since(startedAt).Seconds()
		r.logger.Error().Err(err).Str("command", command).Msg("failed to start nodetool")
		return res
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	var waitErr error
	select {
	case waitErr = <-done:
	case <-runCtx.Done():
		r.terminate(cmd)
		<-done

		msg := StopMessage(ctx, timeout, startedAt)
		res := Failed(command, targetHost, msg, startedAt)
		res.ElapsedSeconds = time.Since(startedAt).Seconds()
		r.logger.Error().Str("command", command).Float64("elapsed", res.ElapsedSeconds).Msg(msg)
		return res
	}

	res := Result{
		Command:        command,
		Stdout:         Sanitize(stdout.String()),
		Stderr:         Sanitize(stderr.String()),
		ExitCode:       exitCode(cmd, waitErr),
		ElapsedSeconds: time.Since(startedAt).Seconds(),
		StartedAt:      startedAt,
		TargetHost:     targetHost,
	}
	res.Settle(waitErr)

	r.logResult(res)
	return res
}

// terminate kills the whole tree; nodetool is a shell wrapper around java
func (r *Runner) terminate(cmd *exec.Cmd) {
	pid := int32(cmd.Process.Pid)
	report, err := r.killTree(pid)
	if err != nil {
		r.logger.Warn().Err(err).Int32("pid", pid).Msg("process tree kill incomplete, killing root")
		if killErr := cmd.Process.Kill(); killErr != nil && !errors.Is(killErr, os.ErrProcessDone) {
			r.logger.Error().Err(killErr).Int32("pid", pid).Msg("error killing timed-out process")
		}
		return
	}
	r.logger.Debug().Int32("pid", pid).Int("killed", len(report.Killed)).Msg(report.Message)
}

// environment inherits the current environment with JAVA_HOME set and its
// bin directory prepended to PATH
func (r *Runner) environment() []string {
	javaHome := r.settings.RuntimeHome()
	javaBin := filepath.Join(javaHome, "bin")

	path := javaBin
	if current := os.Getenv("PATH"); current != "" {
		path = javaBin + string(os.PathListSeparator) + current
	}

	env := make([]string, 0, len(os.Environ())+2)
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, "JAVA_HOME=") || strings.HasPrefix(kv, "PATH=") {
			continue
		}
		env = append(env, kv)
	}
	return append(env, "JAVA_HOME="+javaHome, "PATH="+path)
}

func (r *Runner) logResult(res Result) {
	if res.Success {
		r.logger.Info().
			Str("command", res.Command).
			Str("target_host", res.TargetHost).
			Str("execution_time", fmt.Sprintf("%.2fs", res.ElapsedSeconds)).
			Time("timestamp", res.StartedAt).
			Msg("command completed")
		return
	}
	r.logger.Error().
		Str("command", res.Command).
		Str("target_host", res.TargetHost).
		Int("exit_code", res.ExitCode).
		Str("execution_time", fmt.Sprintf("%.2fs", res.ElapsedSeconds)).
		Str("error", res.Stderr).
		Msg("command failed")
}

func spawnMessage(err error) string {
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, exec.ErrNotFound) {
		return fmt.Sprintf("nodetool executable not found: %v", err)
	}
	if errors.Is(err, fs.ErrPermission) {
		return fmt.Sprintf("nodetool is not executable: %v", err)
	}
	return fmt.Sprintf("Unexpected error executing command: %v", err)
}

func exitCode(cmd *exec.Cmd, err error) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
