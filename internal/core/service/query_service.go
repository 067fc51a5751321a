package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/guillermoBallester/querytap/internal/core/domain"
	"github.com/guillermoBallester/querytap/internal/core/port"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type toolNameKey struct{}

// WithToolName returns a context carrying the MCP tool name for logging.
func WithToolName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, toolNameKey{}, name)
}

func toolNameFromCtx(ctx context.Context) string {
	if v, ok := ctx.Value(toolNameKey{}).(string); ok {
		return v
	}
	return ""
}

// RuntimeTracker hands back the query time accounted to a finished scope.
// *Collector implements it.
type RuntimeTracker interface {
	ForgetScope(scopeKey string) float64
}

// QueryResult is what one Execute call produced.
type QueryResult struct {
	Rows []map[string]any `json:"rows"`
	// DBRuntimeMillis is the query time the collector accounted to this
	// call's scope, including internal statements.
	DBRuntimeMillis float64 `json:"db_runtime_ms"`
	Scope           string  `json:"scope"`
}

// QueryService runs validated SQL inside its own runtime scope so the
// caller gets back exactly the database time its statements cost.
type QueryService struct {
	validator port.QueryValidator
	executor  port.QueryExecutor
	runtime   RuntimeTracker
	logger    *slog.Logger
	tracer    trace.Tracer
	inst      port.Instrumentation
}

func NewQueryService(validator port.QueryValidator, executor port.QueryExecutor, runtime RuntimeTracker, logger *slog.Logger, tracer trace.Tracer, inst port.Instrumentation) *QueryService {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("noop")
	}
	if inst == nil {
		inst = port.NoopInstrumentation{}
	}
	return &QueryService{
		validator: validator,
		executor:  executor,
		runtime:   runtime,
		logger:    logger,
		tracer:    tracer,
		inst:      inst,
	}
}

// Execute validates the SQL statement and, if allowed, runs it under a fresh
// scope. The scope is forgotten before Execute returns.
func (s *QueryService) Execute(ctx context.Context, sql string) (*QueryResult, error) {
	category := domain.Classify(sql).String()
	ctx, span := s.tracer.Start(ctx, "QueryService.Execute",
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation.name", "query"),
			attribute.String("db.statement", sql),
			attribute.String("db.query.category", category),
		),
	)
	defer span.End()

	if err := s.validator.Validate(sql); err != nil {
		s.logger.WarnContext(ctx, "query validation rejected",
			slog.String("db.operation.name", "query"),
			slog.String("db.statement", sql),
			slog.String("error.type", "validation_error"),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.inst.IncrementQueryErrors(ctx)
		return nil, fmt.Errorf("validation: %w", err)
	}

	scope := uuid.NewString()
	ctx = domain.WithScope(ctx, scope)

	start := time.Now()
	rows, err := s.executor.Execute(ctx, sql)
	elapsed := time.Since(start)

	var dbRuntime float64
	if s.runtime != nil {
		dbRuntime = s.runtime.ForgetScope(scope)
	}
	s.inst.RecordQueryDuration(ctx, category, dbRuntime)
	span.SetAttributes(attribute.Float64("db.runtime_ms", dbRuntime))

	attrs := []slog.Attr{
		slog.String("mcp.tool", toolNameFromCtx(ctx)),
		slog.String("scope", scope),
		slog.String("db.query.category", category),
		slog.Float64("db.runtime_ms", dbRuntime),
		slog.Duration("duration", elapsed),
		slog.Int("db.response.rows", len(rows)),
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.inst.IncrementQueryErrors(ctx)
		s.logger.LogAttrs(ctx, slog.LevelWarn, "query failed", append(attrs, slog.String("error", err.Error()))...)
		return nil, err
	}

	s.inst.IncrementQueryCount(ctx)
	span.SetAttributes(attribute.Int("db.response.rows", len(rows)))
	s.logger.LogAttrs(ctx, slog.LevelInfo, "query executed", attrs...)

	return &QueryResult{Rows: rows, DBRuntimeMillis: dbRuntime, Scope: scope}, nil
}
