package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ngenohkevin/cassandra-mcp/internal/catalog"
	"github.com/ngenohkevin/cassandra-mcp/internal/metrics"
	"github.com/ngenohkevin/cassandra-mcp/internal/nodetool"
)

// TargetHostArg is the argument naming the node nodetool should talk to
const TargetHostArg = "target_host"

// Dispatcher validates requests against the catalog and hands valid ones to
// an executor
type Dispatcher struct {
	catalog  *catalog.Catalog
	executor nodetool.Executor
	logger   zerolog.Logger
}

// New creates a dispatcher. The catalog is shared read-only.
func New(cat *catalog.Catalog, executor nodetool.Executor) *Dispatcher {
	return &Dispatcher{
		catalog:  cat,
		executor: executor,
		logger:   log.With().Str("component", "dispatch").Logger(),
	}
}

// Catalog returns the catalog the dispatcher validates against
func (d *Dispatcher) Catalog() *catalog.Catalog {
	return d.catalog
}

// Validate reports whether name and args would be dispatched
func (d *Dispatcher) Validate(name string, args map[string]any) bool {
	return d.ValidateArgs(name, args) == nil
}

// ValidateArgs checks, in order: the command exists, it is safe, every
// required argument is present and non-empty, and target_host (if any) is a
// string. The host's IP syntax is left to the executor.
func (d *Dispatcher) ValidateArgs(name string, args map[string]any) error {
	cmd, ok := d.catalog.Lookup(name)
	if !ok {
		return &ValidationError{Kind: KindUnknownCommand, Command: name}
	}

	if !cmd.Safe {
		return &ValidationError{Kind: KindUnsafeCommand, Command: name}
	}

	if cmd.RequiresArgs {
		for _, arg := range cmd.RequiredArgs {
			if !present(args[arg]) {
				return &ValidationError{Kind: KindMissingArgument, Command: name, Argument: arg}
			}
		}
	}

	if v, ok := args[TargetHostArg]; ok && v != nil {
		if _, isString := v.(string); !isString {
			return &ValidationError{Kind: KindInvalidArgumentType, Command: name, Argument: TargetHostArg}
		}
	}

	return nil
}

// Dispatch validates and executes a command. Invalid requests short-circuit
// with an unsuccessful result and never reach the executor.
//
// Only target_host is passed on. Other declared arguments are validated and
// logged but not appended to the nodetool command line.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, args map[string]any) nodetool.Result {
	targetHost, _ := args[TargetHostArg].(string)

	if err := d.ValidateArgs(name, args); err != nil {
		d.logger.Error().Err(err).Str("command", name).Msg("command validation failed")
		if verr, ok := err.(*ValidationError); ok {
			metrics.RecordRejection(string(verr.Kind))
		}
		return nodetool.Failed(name, targetHost,
			fmt.Sprintf("Command validation failed for '%s': %v", name, err), time.Now())
	}

	event := d.logger.Info().Str("command", name).Interface("args", args)
	if targetHost != "" {
		event = event.Str("target_host", targetHost)
	}
	event.Msg("executing command")

	res := d.executor.Execute(ctx, name, targetHost)
	metrics.RecordExecution(name, res.Success, time.Duration(res.ElapsedSeconds*float64(time.Second)))
	return res
}

// present treats nil and empty strings as missing
func present(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case string:
		return val != ""
	default:
		return true
	}
}
