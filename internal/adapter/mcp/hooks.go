package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/guillermoBallester/querytap/internal/core/port"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// callState holds per-request timing and span data.
type callState struct {
	start time.Time
	span  trace.Span
}

// toolCalls tracks in-flight tool calls by request id.
type toolCalls struct {
	calls sync.Map // id -> *callState
}

func (c *toolCalls) begin(ctx context.Context, id any, tool string, tracer trace.Tracer) {
	state := &callState{start: time.Now()}
	if tracer != nil {
		_, state.span = tracer.Start(ctx, "mcp.tool.call",
			trace.WithAttributes(attribute.String("mcp.tool", tool)),
		)
	}
	c.calls.Store(id, state)
}

// finish forgets the call and returns how long it ran and its span, if any.
func (c *toolCalls) finish(id any) (time.Duration, trace.Span) {
	v, ok := c.calls.LoadAndDelete(id)
	if !ok {
		return 0, nil
	}
	state := v.(*callState)
	return time.Since(state.start), state.span
}

// dropWatch remembers the dispatcher's dropped total so each tool call can
// report records lost while it ran.
type dropWatch struct {
	stats StatsProvider
	seen  atomic.Uint64
}

func (w *dropWatch) delta() uint64 {
	if w.stats == nil {
		return 0
	}
	var total uint64
	for _, s := range w.stats.Stats() {
		total += s.Dropped
	}
	prev := w.seen.Swap(total)
	if total <= prev {
		return 0
	}
	return total - prev
}

// ToolCallHooks creates MCP hooks that log tool calls, record OTel spans and
// metrics when configured, and warn when telemetry sinks dropped records
// during a call. tracer, inst and stats may be nil.
func ToolCallHooks(logger *slog.Logger, tracer trace.Tracer, inst port.Instrumentation, stats StatsProvider) *server.Hooks {
	hooks := &server.Hooks{}
	calls := &toolCalls{}
	watch := &dropWatch{stats: stats}

	hooks.AddBeforeCallTool(func(ctx context.Context, id any, req *mcp.CallToolRequest) {
		calls.begin(ctx, id, req.Params.Name, tracer)
	})

	hooks.AddAfterCallTool(func(ctx context.Context, id any, req *mcp.CallToolRequest, result any) {
		duration, span := calls.finish(id)

		level := slog.LevelInfo
		isErr := false
		if r, ok := result.(*mcp.CallToolResult); ok && r.IsError {
			level = slog.LevelError
			isErr = true
		}

		logger.LogAttrs(ctx, level, "tool call",
			slog.String("rpc.method", "tools/call"),
			slog.String("mcp.tool", req.Params.Name),
			slog.Duration("duration", duration),
			slog.Bool("error", isErr),
		)

		if dropped := watch.delta(); dropped > 0 {
			logger.LogAttrs(ctx, slog.LevelWarn, "query telemetry records dropped",
				slog.String("mcp.tool", req.Params.Name),
				slog.Uint64("dropped", dropped),
			)
		}

		if inst != nil {
			inst.RecordToolDuration(ctx, float64(duration.Milliseconds()))
		}

		if span != nil {
			if isErr {
				span.SetStatus(codes.Error, "tool returned error")
				span.RecordError(fmt.Errorf("tool %s returned error", req.Params.Name))
			}
			span.End()
		}
	})

	hooks.AddOnError(func(ctx context.Context, id any, method mcp.MCPMethod, message any, err error) {
		duration, span := calls.finish(id)

		if req, ok := message.(*mcp.CallToolRequest); ok && req.Params.Name != "" {
			logger.LogAttrs(ctx, slog.LevelError, "tool call",
				slog.String("rpc.method", "tools/call"),
				slog.String("mcp.tool", req.Params.Name),
				slog.Duration("duration", duration),
				slog.Bool("error", true),
				slog.String("error.message", err.Error()),
			)
		}

		if span != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.End()
		}
	})

	return hooks
}
