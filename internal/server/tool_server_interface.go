// Package server provides the MCP server implementation for the biji-mcp service.
package server

// ToolServer defines the interface for the MCP server that handles
// Get笔记 knowledge base tool calls from MCP clients.
type ToolServer interface {
	// Initialize initializes the server and registers the tools.
	Initialize() error

	// Start starts the MCP server on the stdio transport.
	Start() error

	// Stop gracefully shuts down the MCP server.
	Stop() error
}
