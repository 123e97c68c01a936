package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/dshills/tripdesk-mcp/internal/engine"
)

const (
	// ServerName is the MCP server name
	ServerName = "tripdesk-mcp"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp    *server.MCPServer
	engine *engine.Engine
	logger *zap.Logger
}

// NewServer creates a new MCP server over an engine. The server owns the
// engine from here on and closes it when Serve returns.
func NewServer(e *engine.Engine) *Server {
	logger := e.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		mcp:    server.NewMCPServer(ServerName, ServerVersion),
		engine: e,
		logger: logger.Named("mcp"),
	}
	s.registerTools()
	return s
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	defer func() { _ = s.engine.Close() }()
	return server.ServeStdio(s.mcp)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	// Resolution
	s.mcp.AddTool(resolveTripTool(), s.handleResolveTrip)
	s.mcp.AddTool(generateSlugTool(), s.handleGenerateSlug)

	// Client assignments (dual write)
	s.mcp.AddTool(assignClientTool(), s.handleAssignClient)
	s.mcp.AddTool(unassignClientTool(), s.handleUnassignClient)
	s.mcp.AddTool(reconcileTripTool(), s.handleReconcileTrip)

	// Fact cache
	s.mcp.AddTool(markDirtyTool(), s.handleMarkDirty)
	s.mcp.AddTool(recomputeFactsTool(), s.handleRecomputeFacts)

	// Trips
	s.mcp.AddTool(createTripTool(), s.handleCreateTrip)
	s.mcp.AddTool(updateTripTool(), s.handleUpdateTrip)
	s.mcp.AddTool(getTripTool(), s.handleGetTrip)

	// Maintenance
	s.mcp.AddTool(rebuildIndexTool(), s.handleRebuildIndex)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}
