// Package mcp implements the Model Context Protocol server for Kantoku.
//
// The MCP server exposes the script store, tag substitution and the line
// diff viewer as MCP tools, and the current script of each (owner, type)
// as a resource, so assistants that generate titles or descriptions can
// fetch and revise their own instruction scripts.
package mcp

import (
	"encoding/json"
	"fmt"
	"log/slog"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/ashita-ai/kantoku/internal/service/scripts"
)

// Server wraps the MCP server with Kantoku's service layer.
type Server struct {
	mcpServer *mcpserver.MCPServer
	svc       *scripts.Service
	logger    *slog.Logger
}

// New creates and configures a new MCP server with all resources, tools
// and prompts.
func New(svc *scripts.Service, logger *slog.Logger, version string) *Server {
	s := &Server{
		svc:    svc,
		logger: logger,
	}

	s.mcpServer = mcpserver.NewMCPServer(
		"kantoku",
		version,
		mcpserver.WithResourceCapabilities(true, true),
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithPromptCapabilities(true),
		mcpserver.WithInstructions(`Kantoku stores versioned instruction scripts for a YouTube channel dashboard.
Fetch the current script with kantoku_render, propose a revision with kantoku_preview,
and publish it with kantoku_publish once the diff looks right.`),
	)

	s.registerResources()
	s.registerTools()
	s.registerPrompts()

	return s
}

// MCPServer returns the underlying mcp-go server for transport setup.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

func jsonResult(v any) (*mcplib.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal result: %w", err)
	}
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(data)},
		},
	}, nil
}

func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
