package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options selects where and how logs are written
type Options struct {
	Level  string
	Format string // console or json
	File   string // optional JSON log file, appended to
	App    string
}

// Setup builds the process logger and installs it as the zerolog global.
// Logs always go to stderr so stdout stays free for the stdio transport.
// The returned closer releases the log file, if any.
func Setup(opts Options) (zerolog.Logger, io.Closer, error) {
	return setup(opts, os.Stderr)
}

func setup(opts Options, stderr io.Writer) (zerolog.Logger, io.Closer, error) {
	var console io.Writer = stderr
	if !strings.EqualFold(opts.Format, "json") {
		console = zerolog.ConsoleWriter{
			Out:        stderr,
			TimeFormat: time.RFC3339,
			NoColor:    true,
		}
	}

	writers := []io.Writer{console}
	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("failed to open log file %s: %w", opts.File, err)
		}
		writers = append(writers, f)
		closer = f
	}

	level, _ := ParseLevel(opts.Level)
	app := opts.App
	if app == "" {
		app = "cassandra-mcp"
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().Timestamp().Str("app", app).
		Logger()
	log.Logger = logger
	zerolog.SetGlobalLevel(level)
	return logger, closer, nil
}

// ParseLevel maps a level name to a zerolog level. Unknown names yield
// info and false.
func ParseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "critical", "fatal":
		return zerolog.FatalLevel, true
	case "disabled", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

// Component returns the global logger tagged with a component name
func Component(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
