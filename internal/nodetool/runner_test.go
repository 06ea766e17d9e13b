package nodetool

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ngenohkevin/cassandra-mcp/internal/process"
)

type stubSettings struct {
	javaHome string
	binDir   string
	timeout  time.Duration
}

func (s stubSettings) RuntimeHome() string             { return s.javaHome }
func (s stubSettings) BinaryDirectory() string         { return s.binDir }
func (s stubSettings) ExecutionTimeout() time.Duration { return s.timeout }

// writeNodetool installs a shell script named nodetool in a temp bin dir
func writeNodetool(t *testing.T, body string, timeout time.Duration) (*Runner, string) {
	t.Helper()

	dir := t.TempDir()
	script := "#!/bin/sh\n" + body + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, BinaryName), []byte(script), 0755))

	return NewRunner(stubSettings{javaHome: "/opt/jdk", binDir: dir, timeout: timeout}), dir
}

func TestBuildCommand(t *testing.T) {
	r := NewRunner(stubSettings{binDir: "/usr/local/cassandra/bin"})

	assert.Equal(t,
		[]string{"/usr/local/cassandra/bin/nodetool", "status"},
		r.BuildCommand("status", nil, ""))
	assert.Equal(t,
		[]string{"/usr/local/cassandra/bin/nodetool", "-h", "10.0.0.5", "ring"},
		r.BuildCommand("ring", nil, "10.0.0.5"))
	assert.Equal(t,
		[]string{"/usr/local/cassandra/bin/nodetool", "repair", "ks", "tbl"},
		r.BuildCommand("repair", []string{"ks", "tbl"}, ""))
}

func TestExecute_Success(t *testing.T) {
	r, _ := writeNodetool(t, `echo "args: $@"`, 10*time.Second)

	res := r.Execute(context.Background(), "status", "")

	assert.True(t, res.Success)
	assert.Equal(t, "status", res.Command)
	assert.Equal(t, "args: status\n", res.Stdout)
	assert.Empty(t, res.Stderr)
	assert.Equal(t, 0, res.ExitCode)
	assert.GreaterOrEqual(t, res.ElapsedSeconds, 0.0)
	assert.False(t, res.StartedAt.IsZero())
}

func TestExecute_TargetHostThreaded(t *testing.T) {
	r, _ := writeNodetool(t, `echo "$@"`, 10*time.Second)

	res := r.Execute(context.Background(), "info", "192.168.1.10")

	require.True(t, res.Success)
	assert.Equal(t, "-h 192.168.1.10 info\n", res.Stdout)
	assert.Equal(t, "192.168.1.10", res.TargetHost)
}

func TestExecute_InvalidTargetHost(t *testing.T) {
	r, dir := writeNodetool(t, `touch "$(dirname "$0")/spawned"`, 10*time.Second)

	res := r.Execute(context.Background(), "status", "999.1.1.1")

	assert.False(t, res.Success)
	assert.Equal(t, "Invalid IP format: 999.1.1.1", res.Stderr)
	assert.Equal(t, "999.1.1.1", res.TargetHost)
	assert.NoFileExists(t, filepath.Join(dir, "spawned"))
}

func TestExecute_Environment(t *testing.T) {
	r, _ := writeNodetool(t, `echo "$JAVA_HOME"; echo "$PATH"`, 10*time.Second)

	res := r.Execute(context.Background(), "version", "")

	require.True(t, res.Success)
	lines := strings.Split(strings.TrimSpace(res.Stdout), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "/opt/jdk", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "/opt/jdk/bin"+string(os.PathListSeparator)))
}

func TestExecute_NonZeroExit(t *testing.T) {
	r, _ := writeNodetool(t, `echo "nodetool: Failed to connect" >&2; exit 2`, 10*time.Second)

	res := r.Execute(context.Background(), "status", "")

	assert.False(t, res.Success)
	assert.Equal(t, 2, res.ExitCode)
	assert.Contains(t, res.Stderr, "Failed to connect")
}

func TestExecute_NonZeroExitWithoutStderr(t *testing.T) {
	r, _ := writeNodetool(t, `exit 3`, 10*time.Second)

	res := r.Execute(context.Background(), "status", "")

	assert.False(t, res.Success)
	assert.Equal(t, "Command exited with code 3", res.Stderr)
}

func TestExecute_InvalidUTF8Replaced(t *testing.T) {
	r, _ := writeNodetool(t, `printf 'ok\377\376done'`, 10*time.Second)

	res := r.Execute(context.Background(), "info", "")

	require.True(t, res.Success)
	assert.True(t, strings.HasPrefix(res.Stdout, "ok"))
	assert.True(t, strings.HasSuffix(res.Stdout, "done"))
	assert.Contains(t, res.Stdout, "�")
}

func TestExecute_MissingBinary(t *testing.T) {
	r := NewRunner(stubSettings{binDir: t.TempDir(), timeout: time.Second})

	res := r.Execute(context.Background(), "status", "")

	assert.False(t, res.Success)
	assert.Contains(t, res.Stderr, "nodetool executable not found")
	assert.Equal(t, -1, res.ExitCode)
}

func TestExecute_Timeout(t *testing.T) {
	r, dir := writeNodetool(t, `echo $$ > "$(dirname "$0")/pid"; exec sleep 30`, 300*time.Millisecond)

	start := time.Now()
	res := r.Execute(context.Background(), "repair", "")
	elapsed := time.Since(start)

	assert.False(t, res.Success)
	assert.Equal(t, "Command timed out after 0.3 seconds", res.Stderr)
	assert.Less(t, elapsed, 5*time.Second)

	data, err := os.ReadFile(filepath.Join(dir, "pid"))
	require.NoError(t, err)
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	require.NoError(t, err)
	assert.False(t, process.Alive(int32(pid)))
}

func TestExecute_TimeoutKillsChildren(t *testing.T) {
	r, dir := writeNodetool(t, `sleep 30 & echo $! > "$(dirname "$0")/child"; wait`, 300*time.Millisecond)

	res := r.Execute(context.Background(), "compact", "")
	require.False(t, res.Success)
	assert.Contains(t, res.Stderr, "timed out")

	data, err := os.ReadFile(filepath.Join(dir, "child"))
	require.NoError(t, err)
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return !process.Alive(int32(pid))
	}, 2*time.Second, 50*time.Millisecond)
}

func TestExecute_Cancelled(t *testing.T) {
	r, _ := writeNodetool(t, `exec sleep 30`, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(200*time.Millisecond, cancel)

	res := r.Execute(ctx, "status", "")

	assert.False(t, res.Success)
	assert.Contains(t, res.Stderr, "Command cancelled after")
	assert.Less(t, res.ElapsedSeconds, 5.0)
}

func TestExecute_CallerDeadlineIsTimeout(t *testing.T) {
	r, _ := writeNodetool(t, `exec sleep 30`, time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	res := r.Execute(ctx, "status", "")

	assert.False(t, res.Success)
	assert.Contains(t, res.Stderr, "Command timed out after 0.")
}

func TestExecute_DefaultTimeoutWhenUnset(t *testing.T) {
	r, _ := writeNodetool(t, `echo ok`, 0)

	res := r.Execute(context.Background(), "status", "")
	assert.True(t, res.Success)
}

func TestResultEnvelope(t *testing.T) {
	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	ok := Result{Success: true, Command: "status", Stdout: "UN ...", ElapsedSeconds: 1.5, StartedAt: started, TargetHost: "10.0.0.5"}
	env := ok.Envelope()
	assert.Equal(t, "success", env.Status)
	require.NotNil(t, env.Data)
	assert.Equal(t, "UN ...", *env.Data)
	assert.Nil(t, env.Error)
	require.NotNil(t, env.TargetHost)
	assert.Equal(t, "10.0.0.5", *env.TargetHost)
	assert.Equal(t, "2024-05-01T12:00:00Z", env.Timestamp)
	assert.Equal(t, 1.5, env.ExecutionTime)

	failed := Failed("ring", "", "boom", started).Envelope()
	assert.Equal(t, "error", failed.Status)
	assert.Nil(t, failed.Data)
	require.NotNil(t, failed.Error)
	assert.Equal(t, "boom", *failed.Error)
	assert.Nil(t, failed.TargetHost)
}
