package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	executions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cassandra_mcp",
			Subsystem: "nodetool",
			Name:      "executions_total",
			Help:      "Total nodetool executions by command and outcome.",
		},
		[]string{"command", "success"},
	)
	executionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cassandra_mcp",
			Subsystem: "nodetool",
			Name:      "execution_duration_seconds",
			Help:      "Wall-clock duration of nodetool executions.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"command", "success"},
	)
	rejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cassandra_mcp",
			Subsystem: "dispatch",
			Name:      "rejections_total",
			Help:      "Requests rejected before reaching nodetool.",
		},
		[]string{"reason"},
	)
	authAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cassandra_mcp",
			Subsystem: "auth",
			Name:      "attempts_total",
			Help:      "Authentication attempts by transport and outcome.",
		},
		[]string{"transport", "success"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cassandra_mcp",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
)

// Register adds the collectors to the default registry once
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(executions, executionDuration, rejections, authAttempts, httpRequests)
	})
}

// RecordExecution counts a finished nodetool run
func RecordExecution(command string, success bool, elapsed time.Duration) {
	Register()
	label := strconv.FormatBool(success)
	executions.WithLabelValues(command, label).Inc()
	executionDuration.WithLabelValues(command, label).Observe(elapsed.Seconds())
}

// RecordRejection counts a request refused by validation
func RecordRejection(reason string) {
	Register()
	rejections.WithLabelValues(reason).Inc()
}

// RecordAuth counts an authentication attempt
func RecordAuth(transport string, success bool) {
	Register()
	authAttempts.WithLabelValues(transport, strconv.FormatBool(success)).Inc()
}

// RecordHTTPRequest counts a served HTTP request
func RecordHTTPRequest(method, path string, status int) {
	Register()
	httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
}
