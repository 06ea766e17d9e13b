package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ngenohkevin/cassandra-mcp/internal/auth"
	"github.com/ngenohkevin/cassandra-mcp/internal/catalog"
	"github.com/ngenohkevin/cassandra-mcp/internal/dispatch"
	"github.com/ngenohkevin/cassandra-mcp/internal/health"
	"github.com/ngenohkevin/cassandra-mcp/internal/nodetool"
	"github.com/ngenohkevin/cassandra-mcp/internal/parser"
)

const maxTokenTTL = 24 * time.Hour

// Dispatcher is the command entry point shared with the MCP server
type Dispatcher interface {
	ValidateArgs(name string, args map[string]any) error
	Dispatch(ctx context.Context, name string, args map[string]any) nodetool.Result
	Catalog() *catalog.Catalog
}

// HealthChecker produces health reports
type HealthChecker interface {
	Check(ctx context.Context) health.Report
}

// Handlers holds all HTTP handlers
type Handlers struct {
	dispatcher Dispatcher
	health     HealthChecker
	auth       *auth.Service
	version    string
}

// NewHandlers creates a new handlers instance
func NewHandlers(dispatcher Dispatcher, checker HealthChecker, a *auth.Service, version string) *Handlers {
	return &Handlers{
		dispatcher: dispatcher,
		health:     checker,
		auth:       a,
		version:    version,
	}
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	if h.health == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": h.version})
		return
	}
	report := h.health.Check(c.Request.Context())
	c.JSON(report.HTTPStatus(), report)
}

// ListCommands handles GET /api/commands
func (h *Handlers) ListCommands(c *gin.Context) {
	commands := h.dispatcher.Catalog().List()
	c.JSON(http.StatusOK, gin.H{
		"commands": commands,
		"total":    len(commands),
	})
}

// GetCommand handles GET /api/commands/:name
func (h *Handlers) GetCommand(c *gin.Context) {
	cmd, ok := h.dispatcher.Catalog().Lookup(c.Param("name"))
	if !ok {
		abortWithError(c, http.StatusNotFound, nodetool.CodeInvalidTool, "Unknown command: "+c.Param("name"))
		return
	}
	c.JSON(http.StatusOK, cmd)
}

// RunCommand handles POST /api/commands/:name with an optional JSON object
// of arguments
func (h *Handlers) RunCommand(c *gin.Context) {
	name := c.Param("name")

	args := map[string]any{}
	if err := c.ShouldBindJSON(&args); err != nil && !errors.Is(err, io.EOF) {
		abortWithError(c, http.StatusBadRequest, nodetool.CodeInvalidArguments, "Request body must be a JSON object")
		return
	}

	status := http.StatusOK
	if err := h.dispatcher.ValidateArgs(name, args); err != nil {
		status = validationStatus(err)
	}

	result := h.dispatcher.Dispatch(c.Request.Context(), name, args)
	env := result.Envelope()
	env.RequestID = c.GetString(requestIDKey)
	if result.Success && parser.Supported(name) {
		env.ParsedData = parser.Parse(name, result.Stdout)
	}
	if status == http.StatusOK && !result.Success {
		status = http.StatusBadGateway
	}

	c.JSON(status, env)
}

// IssueToken handles POST /api/token
func (h *Handlers) IssueToken(c *gin.Context) {
	var req struct {
		Role       string `json:"role"`
		TTLSeconds int    `json:"ttl_seconds"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		abortWithError(c, http.StatusBadRequest, nodetool.CodeInvalidArguments, "Invalid request body")
		return
	}

	ttl := time.Hour
	if req.TTLSeconds > 0 {
		ttl = time.Duration(req.TTLSeconds) * time.Second
	}
	if ttl > maxTokenTTL {
		ttl = maxTokenTTL
	}
	if req.Role == "" {
		req.Role = "client"
	}

	token, err := h.auth.GenerateToken(req.Role, ttl)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, nodetool.CodeExecutionError, "Failed to generate token: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"token_type": "Bearer",
		"expires_at": time.Now().Add(ttl).UTC().Format(time.RFC3339),
	})
}

func validationStatus(err error) int {
	var verr *dispatch.ValidationError
	if !errors.As(err, &verr) {
		return http.StatusBadRequest
	}
	switch verr.Kind {
	case dispatch.KindUnknownCommand:
		return http.StatusNotFound
	case dispatch.KindUnsafeCommand:
		return http.StatusForbidden
	default:
		return http.StatusBadRequest
	}
}
