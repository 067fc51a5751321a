package port

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/guillermoBallester/querytap/internal/core/domain"
)

// Record is what a sink receives for one query event.
type Record struct {
	Line        string
	Category    domain.Category
	Event       domain.EventRecord
	Binds       []domain.RedactedBind
	Level       slog.Level
	ScopeKey    string
	Fingerprint string // empty when fingerprinting is disabled or the SQL did not parse
}

// Sink is a destination for query telemetry (console, log store, metrics
// backend). Write is called from a single delivery goroutine per sink and
// may block; the dispatcher isolates producers from it.
type Sink interface {
	Name() string
	Write(ctx context.Context, rec Record) error
}

// Closer is implemented by sinks holding resources released on shutdown.
type Closer interface {
	Close() error
}

// SinkWriteError reports a failed delivery to one sink.
type SinkWriteError struct {
	Sink string
	Err  error
}

func (e *SinkWriteError) Error() string {
	return fmt.Sprintf("sink %s: write failed: %v", e.Sink, e.Err)
}

func (e *SinkWriteError) Unwrap() error { return e.Err }

// Diagnostics receives failures the pipeline swallows so that
// instrumentation never fails the operation it observes.
type Diagnostics interface {
	Report(ctx context.Context, err error)
}

// LogDiagnostics reports failures as WARN log lines.
type LogDiagnostics struct {
	Logger *slog.Logger
}

func (d LogDiagnostics) Report(ctx context.Context, err error) {
	if d.Logger == nil || err == nil {
		return
	}
	d.Logger.WarnContext(ctx, "query telemetry failure", slog.String("error", err.Error()))
}

// NoopDiagnostics discards all reports.
type NoopDiagnostics struct{}

func (NoopDiagnostics) Report(context.Context, error) {}
