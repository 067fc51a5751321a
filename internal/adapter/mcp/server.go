package mcp

import (
	"log/slog"

	"github.com/guillermoBallester/querytap/internal/core/port"
	"github.com/guillermoBallester/querytap/internal/core/service"
	"github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel/trace"
)

// NewServer creates an MCPServer with tools and logging hooks.
func NewServer(version string, query *service.QueryService, stats StatsProvider, logger *slog.Logger, tracer trace.Tracer, inst port.Instrumentation) *server.MCPServer {
	s := server.NewMCPServer(
		serverName,
		version,
		server.WithToolCapabilities(true),
		server.WithHooks(ToolCallHooks(logger, tracer, inst, stats)),
	)

	RegisterTools(s, query, stats, logger)

	return s
}
