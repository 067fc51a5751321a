package sink

import (
	"context"
	"log/slog"

	"github.com/guillermoBallester/querytap/internal/core/domain"
	"github.com/guillermoBallester/querytap/internal/core/port"
)

// Slog forwards records to a structured logger. The message is the event
// label; the statement and binds travel as attributes so JSON handlers keep
// them queryable.
type Slog struct {
	logger *slog.Logger
}

func NewSlog(logger *slog.Logger) *Slog {
	return &Slog{logger: logger}
}

func (s *Slog) Name() string { return "slog" }

func (s *Slog) Write(ctx context.Context, rec port.Record) error {
	attrs := []slog.Attr{
		slog.String("db.statement", rec.Event.SQL),
		slog.String("db.query.category", rec.Category.String()),
		slog.Float64("db.duration_ms", rec.Event.DurationMillis),
		slog.Bool("db.cached", rec.Event.Cached),
	}
	if rec.ScopeKey != domain.GlobalScope {
		attrs = append(attrs, slog.String("scope", rec.ScopeKey))
	}
	if len(rec.Binds) > 0 {
		attrs = append(attrs, slog.Any("db.binds", rec.Binds))
	}
	if rec.Fingerprint != "" {
		attrs = append(attrs, slog.String("db.fingerprint", rec.Fingerprint))
	}
	s.logger.LogAttrs(ctx, rec.Level, domain.Label(rec.Event, ""), attrs...)
	return nil
}
