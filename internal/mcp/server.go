package mcp

import (
	"context"
	"errors"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/doccontext-mcp/internal/corpus"
	"github.com/dshills/doccontext-mcp/internal/retrieval"
	"github.com/dshills/doccontext-mcp/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "doccontext-mcp"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp     *server.MCPServer
	service *retrieval.Service
	storage storage.Storage
	loader  *corpus.Loader // Optional; reported by get-status
}

// NewServer creates a new MCP server over an assembled retrieval stack
func NewServer(svc *retrieval.Service, store storage.Storage, loader *corpus.Loader) (*Server, error) {
	if svc == nil {
		return nil, errors.New("mcp: retrieval service is required")
	}
	if store == nil {
		return nil, errors.New("mcp: storage is required")
	}

	s := &Server{
		mcp:     server.NewMCPServer(ServerName, ServerVersion, server.WithToolCapabilities(false)),
		service: svc,
		storage: store,
		loader:  loader,
	}
	s.registerTools()
	return s, nil
}

// Serve starts the MCP server on stdio and blocks until the client
// disconnects or ctx is canceled.
func (s *Server) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcp)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

func (s *Server) registerTools() {
	s.mcp.AddTool(resolveLibraryIDTool(), s.handleResolveLibraryID)
	s.mcp.AddTool(getLibraryDocsTool(), s.handleGetLibraryDocs)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}
