package port

import "context"

// Instrumentation records application-level metrics.
type Instrumentation interface {
	RecordQueryDuration(ctx context.Context, category string, ms float64)
	IncrementQueryCount(ctx context.Context)
	IncrementQueryErrors(ctx context.Context)
	IncrementSinkDropped(ctx context.Context, sink string)
	IncrementSinkErrors(ctx context.Context, sink string)
	RecordToolDuration(ctx context.Context, ms float64)
}

// NoopInstrumentation discards all metrics.
type NoopInstrumentation struct{}

func (NoopInstrumentation) RecordQueryDuration(context.Context, string, float64) {}
func (NoopInstrumentation) IncrementQueryCount(context.Context)                  {}
func (NoopInstrumentation) IncrementQueryErrors(context.Context)                 {}
func (NoopInstrumentation) IncrementSinkDropped(context.Context, string)         {}
func (NoopInstrumentation) IncrementSinkErrors(context.Context, string)          {}
func (NoopInstrumentation) RecordToolDuration(context.Context, float64)          {}
