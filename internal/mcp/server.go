package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ngenohkevin/cassandra-mcp/internal/catalog"
	"github.com/ngenohkevin/cassandra-mcp/internal/health"
	"github.com/ngenohkevin/cassandra-mcp/internal/nodetool"
	"github.com/ngenohkevin/cassandra-mcp/internal/parser"
)

const transportName = "stdio"

// Dispatcher is the command entry point the server drives
type Dispatcher interface {
	Dispatch(ctx context.Context, name string, args map[string]any) nodetool.Result
	Catalog() *catalog.Catalog
}

// Authenticator decides whether a call may proceed
type Authenticator interface {
	StatusCode(credential string) int
	LogAttempt(credential string, success bool, clientIP, transport string)
}

// HealthChecker produces health reports for the health tool
type HealthChecker interface {
	Check(ctx context.Context) health.Report
}

// Server implements the MCP server over a line-oriented stream
type Server struct {
	transport  *Transport
	dispatcher Dispatcher
	auth       Authenticator
	health     HealthChecker
	name       string
	version    string
	logger     zerolog.Logger

	calls sync.WaitGroup
}

// NewServer creates a new MCP server. checker may be nil, in which case the
// health tool is not offered.
func NewServer(name, version string, dispatcher Dispatcher, auth Authenticator, checker HealthChecker, r io.Reader, w io.Writer) *Server {
	logger := log.With().Str("component", "mcp").Logger()
	return &Server{
		transport:  NewTransport(r, w, logger),
		dispatcher: dispatcher,
		auth:       auth,
		health:     checker,
		name:       name,
		version:    version,
		logger:     logger,
	}
}

// Run processes messages until the input ends or ctx is cancelled. Tool
// calls run concurrently; Run waits for them before returning.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info().Str("name", s.name).Str("version", s.version).Msg("MCP server running on stdio transport")
	defer s.calls.Wait()

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		msg, err := s.transport.ReadMessage()
		if errors.Is(err, io.EOF) {
			s.logger.Info().Msg("input closed, stopping")
			return nil
		}
		if errors.Is(err, ErrParse) {
			s.logger.Warn().Err(err).Msg("dropping malformed message")
			_ = s.transport.WriteError(nil, codeParseError, "Parse error", nil)
			continue
		}
		if err != nil {
			return fmt.Errorf("error reading message: %w", err)
		}

		if err := s.handleMessage(ctx, msg); err != nil {
			s.logger.Error().Err(err).Str("method", msg.Method).Msg("error handling message")
			_ = s.transport.WriteError(msg.ID, codeInternalError, err.Error(), nil)
		}
	}
}

func (s *Server) handleMessage(ctx context.Context, msg *JSONRPCMessage) error {
	if msg.JSONRPC != "2.0" {
		if msg.ID == nil {
			return nil
		}
		return s.transport.WriteError(msg.ID, codeInvalidRequest, "Invalid Request", nil)
	}

	switch msg.Method {
	case "initialize":
		return s.handleInitialize(msg)
	case "notifications/initialized", "notifications/cancelled":
		return nil
	case "ping":
		return s.transport.WriteResponse(msg.ID, struct{}{})
	case "tools/list":
		return s.transport.WriteResponse(msg.ID, struct {
			Tools []Tool `json:"tools"`
		}{Tools: Tools(s.dispatcher.Catalog(), s.health != nil)})
	case "tools/call":
		var params ToolsCallParams
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			return s.transport.WriteError(msg.ID, codeInvalidParams, fmt.Sprintf("invalid tools/call params: %v", err), nil)
		}
		s.calls.Add(1)
		go func() {
			defer s.calls.Done()
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error().Interface("panic", r).Str("tool", params.Name).Msg("tool call panicked")
					_ = s.transport.WriteError(msg.ID, codeInternalError, "internal error", nil)
				}
			}()
			result := s.CallTool(ctx, params)
			if err := s.transport.WriteResponse(msg.ID, result); err != nil {
				s.logger.Error().Err(err).Str("tool", params.Name).Msg("failed to write tool result")
			}
		}()
		return nil
	default:
		if msg.ID != nil {
			return s.transport.WriteError(msg.ID, codeMethodNotFound, fmt.Sprintf("Method not found: %s", msg.Method), nil)
		}
		// Notifications without ID don't get responses
		return nil
	}
}

func (s *Server) handleInitialize(msg *JSONRPCMessage) error {
	var params InitializeParams
	if len(msg.Params) > 0 {
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			return s.transport.WriteError(msg.ID, codeInvalidParams, fmt.Sprintf("invalid initialize params: %v", err), nil)
		}
	}

	s.logger.Info().Str("client", params.ClientInfo.Name).Str("client_version", params.ClientInfo.Version).Msg("client connected")

	return s.transport.WriteResponse(msg.ID, InitializeResult{
		ProtocolVersion: ProtocolVersion,
		Capabilities: Capabilities{
			Tools: map[string]any{"listChanged": false},
		},
		ServerInfo: ServerInfo{Name: s.name, Version: s.version},
	})
}

// CallTool authenticates and runs one tool call
func (s *Server) CallTool(ctx context.Context, params ToolsCallParams) ToolsCallResult {
	args := params.Arguments
	key, _ := args[argAPIKey].(string)
	clientIP, _ := args[argClientIP].(string)
	if clientIP == "" {
		clientIP = "unknown"
	}

	status := s.auth.StatusCode(key)
	s.auth.LogAttempt(key, status == http.StatusOK, clientIP, transportName)

	switch status {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return s.refuse(nodetool.CodeUnauthorized, "API key is required")
	default:
		return s.refuse(nodetool.CodeForbidden, "Invalid API key")
	}

	command, ok := CommandName(params.Name)
	if !ok {
		return s.refuse(nodetool.CodeInvalidTool, fmt.Sprintf("Unknown tool: %s", params.Name))
	}

	if params.Name == HealthTool && s.health != nil {
		report := s.health.Check(ctx)
		return s.respond(report, report.Status == health.StatusUnhealthy)
	}

	s.logger.Info().Str("tool", params.Name).Str("client_ip", clientIP).Msg("handling tool call")

	result := s.dispatcher.Dispatch(ctx, command, commandArgs(args))
	env := result.Envelope()
	env.RequestID = uuid.NewString()
	if result.Success && parser.Supported(command) {
		env.ParsedData = parser.Parse(command, result.Stdout)
	}
	return s.respond(env, !result.Success)
}

func (s *Server) refuse(code, message string) ToolsCallResult {
	resp := nodetool.NewErrorResponse(code, message, nil)
	resp.RequestID = uuid.NewString()
	return s.respond(resp, true)
}

func (s *Server) respond(v any, isError bool) ToolsCallResult {
	text, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		resp := nodetool.NewErrorResponse(nodetool.CodeExecutionError, fmt.Sprintf("Error executing command: %v", err), nil)
		text, _ = json.MarshalIndent(resp, "", "  ")
		isError = true
	}
	return ToolsCallResult{
		Content: []Content{{Type: "text", Text: string(text)}},
		IsError: isError,
	}
}
