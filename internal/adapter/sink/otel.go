package sink

import (
	"context"
	"fmt"

	"github.com/guillermoBallester/querytap/internal/core/port"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTel records statement counts and durations as OTel metrics.
type OTel struct {
	count    metric.Int64Counter
	duration metric.Float64Histogram
}

func NewOTel(meter metric.Meter) (*OTel, error) {
	count, err := meter.Int64Counter("querytap.sql.statements",
		metric.WithDescription("Count of observed SQL statements"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating statement counter: %w", err)
	}
	duration, err := meter.Float64Histogram("querytap.sql.duration",
		metric.WithDescription("Observed SQL statement duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}
	return &OTel{count: count, duration: duration}, nil
}

func (o *OTel) Name() string { return "otel" }

func (o *OTel) Write(ctx context.Context, rec port.Record) error {
	attrs := metric.WithAttributes(
		attribute.String("db.query.category", rec.Category.String()),
		attribute.Bool("db.cached", rec.Event.Cached),
	)
	o.count.Add(ctx, 1, attrs)
	o.duration.Record(ctx, rec.Event.DurationMillis, attrs)
	return nil
}
