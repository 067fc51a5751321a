package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/guillermoBallester/querytap/internal/core/domain"
	"github.com/guillermoBallester/querytap/internal/core/service"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server metadata
const serverName = "querytap"

// queryName labels statements issued by the query tool in the debug output.
const queryName = "Tool Query"

// Tool descriptions
const (
	descQuery = "Execute a read-only SQL query against the database and return results as a JSON object " +
		"with the rows, the database time spent on the call (db_runtime_ms) and the scope it was accounted to. " +
		"A server-side row limit and query timeout are enforced. " +
		"Set explain to get the execution plan instead of the rows."

	descQueryParam = "SQL query to execute (SELECT statements only)"

	descExplainQuery = "Show the PostgreSQL execution plan for a SQL query. " +
		"Returns the query planner's strategy including scan types, join methods, and cost estimates. " +
		"Supports ANALYZE to include actual execution statistics (the query WILL be executed)."

	descExplainQuerySQL = "The SELECT query to explain (without the EXPLAIN keyword)"

	descTelemetryStats = "Report the query telemetry pipeline's per-sink counters: records queued, delivered, " +
		"dropped because a queue was full or shutdown ran out of time, and failed writes."
)

// StatsProvider exposes per-sink delivery counters. *service.Dispatcher
// implements it.
type StatsProvider interface {
	Stats() []service.SinkStats
}

func RegisterTools(s *server.MCPServer, query *service.QueryService, stats StatsProvider, logger *slog.Logger) {
	s.AddTool(
		mcp.NewTool("query",
			mcp.WithDescription(descQuery),
			mcp.WithString("sql",
				mcp.Required(),
				mcp.Description(descQueryParam),
			),
			mcp.WithBoolean("explain",
				mcp.Description("Return the execution plan instead of the rows. Defaults to false."),
			),
			mcp.WithBoolean("analyze",
				mcp.Description("With explain, include actual execution statistics (executes the query)."),
			),
		),
		queryHandler(query, logger),
	)

	s.AddTool(
		mcp.NewTool("explain_query",
			mcp.WithDescription(descExplainQuery),
			mcp.WithString("sql",
				mcp.Required(),
				mcp.Description(descExplainQuerySQL),
			),
			mcp.WithBoolean("analyze",
				mcp.Description("Include actual execution statistics (executes the query). Defaults to false."),
			),
		),
		explainQueryHandler(query, logger),
	)

	if stats != nil {
		s.AddTool(
			mcp.NewTool("telemetry_stats",
				mcp.WithDescription(descTelemetryStats),
			),
			telemetryStatsHandler(stats),
		)
	}
}

func explainPrefix(analyze bool) string {
	if analyze {
		return "EXPLAIN ANALYZE "
	}
	return "EXPLAIN "
}

func explainQueryHandler(query *service.QueryService, logger *slog.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sql, ok := request.GetArguments()["sql"].(string)
		if !ok || sql == "" {
			return mcp.NewToolResultError("sql is required"), nil
		}

		analyze, _ := request.GetArguments()["analyze"].(bool)

		ctx = service.WithToolName(ctx, "explain_query")
		ctx = domain.WithQueryName(ctx, domain.NameExplain)
		result, err := query.Execute(ctx, explainPrefix(analyze)+sql)
		if err != nil {
			return mcp.NewToolResultError(sanitizeError(logger, err, "explain")), nil
		}

		return jsonResult(result)
	}
}

func queryHandler(query *service.QueryService, logger *slog.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sql, ok := request.GetArguments()["sql"].(string)
		if !ok || sql == "" {
			return mcp.NewToolResultError("sql is required"), nil
		}

		ctx = service.WithToolName(ctx, "query")
		ctx = domain.WithQueryName(ctx, queryName)
		if explain, _ := request.GetArguments()["explain"].(bool); explain {
			analyze, _ := request.GetArguments()["analyze"].(bool)
			sql = explainPrefix(analyze) + sql
			ctx = domain.WithQueryName(ctx, domain.NameExplain)
		}

		result, err := query.Execute(ctx, sql)
		if err != nil {
			return mcp.NewToolResultError(sanitizeError(logger, err, "query")), nil
		}

		return jsonResult(result)
	}
}

func telemetryStatsHandler(stats StatsProvider) server.ToolHandlerFunc {
	return func(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(map[string]any{"sinks": stats.Stats()})
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// pgQueryCanceled is SQLSTATE 57014, raised when statement_timeout fires.
const pgQueryCanceled = "57014"

// sanitizeError turns an execution error into a message safe to show to the
// client. Validation errors pass through; timeouts get a fixed message;
// anything else is logged and replaced by a generic one.
func sanitizeError(logger *slog.Logger, err error, op string) string {
	switch {
	case errors.Is(err, domain.ErrEmptyQuery),
		errors.Is(err, domain.ErrNotAllowed),
		errors.Is(err, domain.ErrMultiStatement),
		errors.Is(err, domain.ErrParseFailed):
		return err.Error()
	}

	var pgErr *pgconn.PgError
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &pgErr) && pgErr.Code == pgQueryCanceled) {
		return fmt.Sprintf("%s timed out", op)
	}

	logger.Error("tool execution failed",
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
	return fmt.Sprintf("%s failed: internal error (check server logs)", op)
}
