package mcp

import (
	"fmt"
	"strings"

	"github.com/ngenohkevin/cassandra-mcp/internal/catalog"
)

// ToolPrefix namespaces every tool this server exposes
const ToolPrefix = "cassandra_"

// HealthTool reports cluster health instead of running a catalog command
const HealthTool = ToolPrefix + "health"

// Arguments consumed by the server and never passed to the dispatcher
const (
	argAPIKey   = "api_key"
	argClientIP = "client_ip"
)

// ToolName returns the tool name for a catalog command
func ToolName(command string) string {
	return ToolPrefix + command
}

// CommandName strips the tool prefix. ok is false for names outside the
// namespace.
func CommandName(tool string) (string, bool) {
	if !strings.HasPrefix(tool, ToolPrefix) {
		return "", false
	}
	return strings.TrimPrefix(tool, ToolPrefix), true
}

// CommandTool builds the tool definition for a catalog command
func CommandTool(cmd catalog.Command) Tool {
	props := baseProperties()
	required := []string{}

	if cmd.RequiresArgs {
		for _, arg := range cmd.RequiredArgs {
			props[arg] = Property{Type: "string", Description: fmt.Sprintf("Required argument: %s", arg)}
			required = append(required, arg)
		}
	}
	for _, arg := range cmd.OptionalArgs {
		props[arg] = Property{Type: "string", Description: fmt.Sprintf("Optional argument: %s", arg)}
	}

	desc := cmd.Description
	if desc == "" {
		desc = fmt.Sprintf("Execute nodetool %s command", cmd.Name)
	}

	return Tool{
		Name:        ToolName(cmd.Name),
		Description: desc,
		InputSchema: InputSchema{Type: "object", Properties: props, Required: required},
	}
}

// Tools lists one tool per catalog command, in catalog order, optionally
// followed by the health tool
func Tools(cat *catalog.Catalog, withHealth bool) []Tool {
	tools := make([]Tool, 0, cat.Len()+1)
	for _, cmd := range cat.List() {
		tools = append(tools, CommandTool(cmd))
	}
	if withHealth {
		props := map[string]Property{
			argAPIKey: {Type: "string", Description: "API key for authentication"},
		}
		tools = append(tools, Tool{
			Name:        HealthTool,
			Description: "Report cluster health derived from nodetool status",
			InputSchema: InputSchema{Type: "object", Properties: props, Required: []string{}},
		})
	}
	return tools
}

func baseProperties() map[string]Property {
	return map[string]Property{
		"target_host": {Type: "string", Description: "Optional target Cassandra node IP address"},
		argAPIKey:     {Type: "string", Description: "API key for authentication"},
	}
}

// commandArgs copies args without the server-only keys
func commandArgs(args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		if k == argAPIKey || k == argClientIP {
			continue
		}
		out[k] = v
	}
	return out
}
