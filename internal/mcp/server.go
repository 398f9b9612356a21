package mcp

import (
	"context"
	"io"
	"log"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/docindex/internal/indexer"
	"github.com/dshills/docindex/internal/storage"
	"github.com/dshills/docindex/pkg/types"
)

const (
	// ServerName is the MCP server name
	ServerName = "docindex"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Runner performs an indexing run
type Runner interface {
	Run(ctx context.Context, opts indexer.Options) (*types.RunReport, error)
}

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	runner   Runner
	storage  storage.Storage
	defaults indexer.Options
	logger   *slog.Logger
}

// NewServer creates a new MCP server. defaults supplies the include and
// exclude patterns, price and concurrency for tool-triggered runs.
func NewServer(runner Runner, store storage.Storage, defaults indexer.Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		mcp:      server.NewMCPServer(ServerName, ServerVersion, server.WithToolCapabilities(false)),
		runner:   runner,
		storage:  store,
		defaults: defaults,
		logger:   logger,
	}
	s.registerTools()
	return s
}

// Serve speaks MCP over in/out until ctx is cancelled or in is closed
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(log.New(io.Discard, "", 0))
	s.logger.Info("mcp: serving on stdio", slog.String("server", ServerName))
	return stdio.Listen(ctx, in, out)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(indexDocsTool(), s.handleIndexDocs)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}
