package docker

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ngenohkevin/cassandra-mcp/internal/ipaddr"
	"github.com/ngenohkevin/cassandra-mcp/internal/nodetool"
)

// exitKilled is what coreutils timeout -s KILL leaves behind
const exitKilled = 137

// killGrace lets the in-container timeout fire before the client gives up
const killGrace = 2 * time.Second

// ExecAPI is the part of the Docker client used to run nodetool
type ExecAPI interface {
	Ping(ctx context.Context) (types.Ping, error)
	ContainerExecCreate(ctx context.Context, container string, config types.ExecConfig) (types.IDResponse, error)
	ContainerExecAttach(ctx context.Context, execID string, config types.ExecStartCheck) (types.HijackedResponse, error)
	ContainerExecInspect(ctx context.Context, execID string) (types.ContainerExecInspect, error)
	Close() error
}

// NewClient connects to the Docker daemon described by the environment
func NewClient() (*client.Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return cli, nil
}

// Executor runs nodetool inside a Cassandra container with docker exec
type Executor struct {
	api       ExecAPI
	container string
	nodetool  string
	settings  nodetool.Settings
	logger    zerolog.Logger
}

// NewExecutor creates an executor for container. nodetoolPath is resolved
// inside the container.
func NewExecutor(api ExecAPI, container, nodetoolPath string, settings nodetool.Settings) *Executor {
	if nodetoolPath == "" {
		nodetoolPath = nodetool.BinaryName
	}
	return &Executor{
		api:       api,
		container: container,
		nodetool:  nodetoolPath,
		settings:  settings,
		logger:    log.With().Str("component", "docker").Str("container", container).Logger(),
	}
}

// IsAvailable checks if Docker is available
func (e *Executor) IsAvailable(ctx context.Context) bool {
	_, err := e.api.Ping(ctx)
	return err == nil
}

// Close closes the Docker client
func (e *Executor) Close() error {
	return e.api.Close()
}

// Argv returns the in-container command line. The process is wrapped in
// timeout so the daemon kills it even if the client goes away.
func (e *Executor) Argv(command, targetHost string, timeout time.Duration) []string {
	secs := int(timeout.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	argv := []string{"timeout", "-s", "KILL", strconv.Itoa(secs), e.nodetool}
	if targetHost != "" {
		argv = append(argv, "-h", targetHost)
	}
	return append(argv, command)
}

// Execute runs command in the container and reports it like a local run
func (e *Executor) Execute(ctx context.Context, command, targetHost string) nodetool.Result {
	startedAt := time.Now()
	fail := func(msg string) nodetool.Result {
		res := nodetool.Failed(command, targetHost, msg, startedAt)
		res.ElapsedSeconds = time.Since(startedAt).Seconds()
		e.logger.Error().Str("command", command).Str("target_host", targetHost).Msg(msg)
		return res
	}

	if targetHost != "" && !ipaddr.IsValidAddress(targetHost) {
		return fail(nodetool.InvalidHostMessage(targetHost))
	}

	timeout := e.settings.ExecutionTimeout()
	if timeout <= 0 {
		timeout = nodetool.DefaultTimeout
	}
	argv := e.Argv(command, targetHost, timeout)
	e.logger.Info().Str("command", command).Strs("argv", argv).Msg("executing nodetool command in container")

	runCtx, cancel := context.WithTimeout(ctx, timeout+killGrace)
	defer cancel()

	created, err := e.api.ContainerExecCreate(runCtx, e.container, types.ExecConfig{
		AttachStdout: true,
		AttachStderr: true,
		Cmd:          argv,
	})
	if err != nil {
		return fail(fmt.Sprintf("Unexpected error executing command: failed to create exec in %s: %v", e.container, err))
	}

	resp, err := e.api.ContainerExecAttach(runCtx, created.ID, types.ExecStartCheck{})
	if err != nil {
		return fail(fmt.Sprintf("Unexpected error executing command: failed to attach to exec: %v", err))
	}
	defer resp.Close()

	var stdout, stderr bytes.Buffer
	done := make(chan error, 1)
	go func() {
		_, err := stdcopy.StdCopy(&stdout, &stderr, resp.Reader)
		done <- err
	}()

	var copyErr error
	select {
	case copyErr = <-done:
	case <-runCtx.Done():
		resp.Close()
		<-done
		return fail(nodetool.StopMessage(ctx, timeout, startedAt))
	}

	exit := -1
	inspect, err := e.api.ContainerExecInspect(runCtx, created.ID)
	if err != nil {
		e.logger.Warn().Err(err).Str("exec_id", created.ID).Msg("failed to inspect exec")
		if copyErr == nil {
			copyErr = err
		}
	} else {
		exit = inspect.ExitCode
	}

	elapsed := time.Since(startedAt)
	if exit == exitKilled && elapsed >= timeout {
		return fail(nodetool.TimeoutMessage(timeout))
	}

	res := nodetool.Result{
		Command:        command,
		Stdout:         nodetool.Sanitize(stdout.String()),
		Stderr:         nodetool.Sanitize(stderr.String()),
		ExitCode:       exit,
		ElapsedSeconds: elapsed.Seconds(),
		StartedAt:      startedAt,
		TargetHost:     targetHost,
	}
	res.Settle(copyErr)

	event := e.logger.Info()
	if !res.Success {
		event = e.logger.Error().Str("error", res.Stderr)
	}
	event.Str("command", command).Int("exit_code", res.ExitCode).Float64("elapsed", res.ElapsedSeconds).Msg("container command finished")
	return res
}
