// Package mcp exposes chimera over the Model Context Protocol: a stdio
// tool server offering artifact inspection, behavioral probing and full
// dissection runs.
package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server wraps the mcp-go server for the chimera tool surface.
type Server struct {
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP server.
func NewServer(name, version string) *Server {
	return &Server{
		mcpServer: server.NewMCPServer(name, version),
	}
}

// RegisterTool registers a tool with the server. Tool options describe
// the parameter schema.
func (s *Server) RegisterTool(name string, handler func(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error), opts ...mcp.ToolOption) {
	tool := mcp.NewTool(name, opts...)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := request.Params.Arguments.(map[string]interface{})
		return handler(ctx, args)
	})
}

// ServeStdio starts the server on Stdio.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
