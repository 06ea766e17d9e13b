package health

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ngenohkevin/cassandra-mcp/internal/cache"
	"github.com/ngenohkevin/cassandra-mcp/internal/nodetool"
	"github.com/ngenohkevin/cassandra-mcp/internal/parser"
	"github.com/ngenohkevin/cassandra-mcp/internal/system"
	"github.com/ngenohkevin/cassandra-mcp/internal/systemd"
)

// ProbeTimeout bounds the status call used to decide reachability
const ProbeTimeout = 10 * time.Second

// UnitReader returns systemd state for a unit
type UnitReader interface {
	UnitStatus(ctx context.Context, name string) (*systemd.UnitStatus, error)
}

// HostReader returns host information
type HostReader func(ctx context.Context, diskPath string) (*system.HostInfo, error)

// Option configures a Checker
type Option func(*Checker)

// WithUnit includes the state of a systemd unit in every report
func WithUnit(reader UnitReader, name string) Option {
	return func(c *Checker) {
		c.units = reader
		c.unit = name
	}
}

// WithHost includes host information in every report
func WithHost(reader HostReader, diskPath string) Option {
	return func(c *Checker) {
		c.host = reader
		c.diskPath = diskPath
	}
}

// WithProbeTimeout overrides ProbeTimeout
func WithProbeTimeout(d time.Duration) Option {
	return func(c *Checker) {
		c.probe = d
	}
}

// Checker derives cluster health from `nodetool status`. Reports are cached
// for the check interval.
type Checker struct {
	executor nodetool.Executor
	cache    *cache.Cache[Report]
	probe    time.Duration

	units UnitReader
	unit  string

	host     HostReader
	diskPath string

	logger zerolog.Logger
}

// NewChecker creates a checker that caches reports for interval
func NewChecker(executor nodetool.Executor, interval time.Duration, opts ...Option) *Checker {
	c := &Checker{
		executor: executor,
		cache:    cache.New[Report](interval),
		probe:    ProbeTimeout,
		logger:   log.With().Str("component", "health").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check returns the cached report, running a new check when it has expired.
// The check outlives a caller that goes away; only the probe timeout bounds it.
func (c *Checker) Check(ctx context.Context) Report {
	report, _ := c.cache.GetOrSet(cache.KeyHealth, func() (Report, error) {
		return c.run(context.WithoutCancel(ctx)), nil
	})
	return report
}

// Refresh runs a check now and replaces the cached report
func (c *Checker) Refresh(ctx context.Context) Report {
	report := c.run(context.WithoutCancel(ctx))
	c.cache.Set(cache.KeyHealth, report)
	return report
}

// Invalidate drops the cached report
func (c *Checker) Invalidate() {
	c.cache.Delete(cache.KeyHealth)
}

// Close stops the cache janitor
func (c *Checker) Close() {
	c.cache.Close()
}

func (c *Checker) run(ctx context.Context) Report {
	report := Report{Timestamp: time.Now().UTC()}

	probeCtx, cancel := context.WithTimeout(ctx, c.probe)
	result := c.executor.Execute(probeCtx, "status", "")
	cancel()

	if !result.Success {
		report.Status = StatusUnhealthy
		report.Error = "Cassandra cluster is not reachable"
		if result.Stderr != "" {
			report.Error += ": " + result.Stderr
		}
		c.logger.Warn().Str("stderr", result.Stderr).Msg("cassandra cluster is not reachable")
	} else {
		status := parser.ParseStatus(result.Stdout)
		report.Cassandra = Cassandra{
			Reachable: true,
			NodeCount: status.TotalNodes,
			UpNodes:   status.Up(),
			DownNodes: status.Down(),
		}
		report.Nodes = status.Nodes
		report.Status = Evaluate(report.Cassandra.UpNodes, report.Cassandra.DownNodes)
		c.logger.Info().
			Str("status", string(report.Status)).
			Int("up", report.Cassandra.UpNodes).
			Int("total", report.Cassandra.NodeCount).
			Msg("health check completed")
	}

	if c.units != nil && c.unit != "" {
		unit, err := c.units.UnitStatus(ctx, c.unit)
		if err != nil {
			c.logger.Debug().Err(err).Str("unit", c.unit).Msg("unit status unavailable")
		} else {
			report.Service = unit
		}
	}

	if c.host != nil {
		host, err := c.host(ctx, c.diskPath)
		if err != nil {
			c.logger.Debug().Err(err).Msg("host info unavailable")
		} else {
			report.Host = host
		}
	}

	return report
}

// Evaluate turns node counts into a verdict: no down nodes is healthy, some
// nodes up is degraded, none up is unhealthy
func Evaluate(up, down int) Status {
	switch {
	case down == 0:
		return StatusHealthy
	case up > 0:
		return StatusDegraded
	default:
		return StatusUnhealthy
	}
}
