package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/guillermoBallester/querytap"

// Instruments holds pre-created OTel metric instruments. It implements
// port.Instrumentation.
type Instruments struct {
	QueryCount    metric.Int64Counter
	QueryDuration metric.Float64Histogram
	QueryErrors   metric.Int64Counter
	SinkDropped   metric.Int64Counter
	SinkErrors    metric.Int64Counter
	ToolDuration  metric.Float64Histogram
}

func NewInstrumentsFromMeter(meter metric.Meter) *Instruments {
	// OTel SDK returns noop instruments on error; safe to discard.
	queryCount, _ := meter.Int64Counter("querytap.query.count",
		metric.WithDescription("Total number of tool queries executed"),
	)
	queryDuration, _ := meter.Float64Histogram("querytap.query.db_runtime",
		metric.WithDescription("Database time accounted to one tool query, in milliseconds"),
		metric.WithUnit("ms"),
	)
	queryErrors, _ := meter.Int64Counter("querytap.query.errors",
		metric.WithDescription("Total number of failed tool queries"),
	)
	sinkDropped, _ := meter.Int64Counter("querytap.sink.dropped",
		metric.WithDescription("Records dropped because a sink queue was full"),
	)
	sinkErrors, _ := meter.Int64Counter("querytap.sink.errors",
		metric.WithDescription("Records a sink failed to write"),
	)
	toolDuration, _ := meter.Float64Histogram("querytap.tool.duration",
		metric.WithDescription("MCP tool call duration in milliseconds"),
		metric.WithUnit("ms"),
	)

	return &Instruments{
		QueryCount:    queryCount,
		QueryDuration: queryDuration,
		QueryErrors:   queryErrors,
		SinkDropped:   sinkDropped,
		SinkErrors:    sinkErrors,
		ToolDuration:  toolDuration,
	}
}

func (i *Instruments) RecordQueryDuration(ctx context.Context, category string, ms float64) {
	i.QueryDuration.Record(ctx, ms, metric.WithAttributes(attribute.String("db.query.category", category)))
}

func (i *Instruments) IncrementQueryCount(ctx context.Context) {
	i.QueryCount.Add(ctx, 1)
}

func (i *Instruments) IncrementQueryErrors(ctx context.Context) {
	i.QueryErrors.Add(ctx, 1)
}

func (i *Instruments) IncrementSinkDropped(ctx context.Context, sink string) {
	i.SinkDropped.Add(ctx, 1, metric.WithAttributes(attribute.String("sink", sink)))
}

func (i *Instruments) IncrementSinkErrors(ctx context.Context, sink string) {
	i.SinkErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("sink", sink)))
}

func (i *Instruments) RecordToolDuration(ctx context.Context, ms float64) {
	i.ToolDuration.Record(ctx, ms)
}
