package health

import (
	"net/http"
	"time"

	"github.com/ngenohkevin/cassandra-mcp/internal/parser"
	"github.com/ngenohkevin/cassandra-mcp/internal/system"
	"github.com/ngenohkevin/cassandra-mcp/internal/systemd"
)

// Status is the overall verdict of a health check
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Cassandra summarizes cluster reachability and node counts
type Cassandra struct {
	Reachable bool `json:"reachable"`
	NodeCount int  `json:"node_count"`
	UpNodes   int  `json:"up_nodes"`
	DownNodes int  `json:"down_nodes"`
}

// Report is the result of one health check
type Report struct {
	Status    Status              `json:"status"`
	Timestamp time.Time           `json:"timestamp"`
	Cassandra Cassandra           `json:"cassandra"`
	Nodes     []parser.Node       `json:"nodes,omitempty"`
	Error     string              `json:"error,omitempty"`
	Service   *systemd.UnitStatus `json:"service,omitempty"`
	Host      *system.HostInfo    `json:"host,omitempty"`
}

// HTTPStatus maps the verdict to a response code for /health
func (r Report) HTTPStatus() int {
	if r.Status == StatusUnhealthy {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}
