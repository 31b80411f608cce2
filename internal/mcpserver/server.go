// Package mcpserver exposes the commission admin API as MCP tools, so an
// assistant can inspect settings, explain changes and dry-run computations.
package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer creates a configured MCP server with all tools registered.
func NewMCPServer(cfg Config, version string) *server.MCPServer {
	s := server.NewMCPServer("storefront-commissions", version)
	h := NewHandlers(NewClient(cfg))

	s.AddTool(ToolGetActiveSettings, h.HandleGetActiveSettings)
	s.AddTool(ToolComputeCommission, h.HandleComputeCommission)
	s.AddTool(ToolListVersions, h.HandleListVersions)
	s.AddTool(ToolDiffVersions, h.HandleDiffVersions)
	s.AddTool(ToolListAudit, h.HandleListAudit)
	s.AddTool(ToolValidateSettings, h.HandleValidateSettings)
	s.AddTool(ToolListPlans, h.HandleListPlans)

	return s
}
