package mcp

import (
	"context"
	"io"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/draylor/repolens/internal/engine"
	"github.com/draylor/repolens/pkg/types"
)

const (
	// ServerName is the MCP server name.
	ServerName = "repolens"
	// ServerVersion is the current server version.
	ServerVersion = "1.0.0"
)

// Service is the engine surface the tool handlers consume.
type Service interface {
	RunIndex(ctx context.Context, forceFull bool) (*types.RunReport, error)
	Retrieve(ctx context.Context, query string, maxResults int) ([]types.Snippet, error)
	Status(ctx context.Context) (*engine.Status, error)
}

// Server wraps the MCP server with the engine.
type Server struct {
	mcp    *server.MCPServer
	engine Service
}

// NewServer creates an MCP server on top of an assembled engine.
func NewServer(eng Service) *Server {
	s := &Server{
		mcp:    server.NewMCPServer(ServerName, ServerVersion),
		engine: eng,
	}
	s.registerTools()
	return s
}

// Serve starts the MCP server on stdio and blocks until ctx is cancelled or
// the input stream closes.
func (s *Server) Serve(ctx context.Context) error {
	return s.serve(ctx, os.Stdin, os.Stdout)
}

func (s *Server) serve(ctx context.Context, in io.Reader, out io.Writer) error {
	return server.NewStdioServer(s.mcp).Listen(ctx, in, out)
}

func (s *Server) registerTools() {
	s.mcp.AddTool(indexRepositoryTool(), s.handleIndexRepository)
	s.mcp.AddTool(retrieveContextTool(), s.handleRetrieveContext)
	s.mcp.AddTool(indexStatusTool(), s.handleIndexStatus)
}
