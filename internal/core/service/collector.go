package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/guillermoBallester/querytap/internal/core/domain"
	"github.com/guillermoBallester/querytap/internal/core/port"
)

// Emitter accepts rendered records for delivery. *Dispatcher implements it.
type Emitter interface {
	Emit(ctx context.Context, rec port.Record)
}

// CollectorOptions configures a Collector. Zero values select defaults.
type CollectorOptions struct {
	// IgnoreNames are event names that are accounted but never rendered.
	// Nil means domain.DefaultIgnoreNames.
	IgnoreNames []string
	Redactor    *domain.Redactor
	Formatter   *domain.Formatter
	Diagnostics port.Diagnostics
	// Fingerprint attaches the pg_query fingerprint of each statement.
	Fingerprint bool
}

// Collector is the entry point for query events. It accounts every event's
// duration to its scope, then renders and dispatches events when debug
// output is enabled and the event name is not ignored.
type Collector struct {
	acc         *domain.RuntimeAccumulator
	redactor    *domain.Redactor
	formatter   *domain.Formatter
	emitter     Emitter
	level       port.LevelProvider
	diag        port.Diagnostics
	ignore      map[string]struct{}
	fingerprint bool
}

func NewCollector(emitter Emitter, level port.LevelProvider, opts CollectorOptions) *Collector {
	if level == nil {
		level = port.StaticLevel(false)
	}
	if opts.Redactor == nil {
		opts.Redactor = domain.NewRedactor(nil, nil)
	}
	if opts.Formatter == nil {
		opts.Formatter = domain.NewFormatter(false)
	}
	if opts.Diagnostics == nil {
		opts.Diagnostics = port.NoopDiagnostics{}
	}
	names := opts.IgnoreNames
	if names == nil {
		names = domain.DefaultIgnoreNames
	}
	ignore := make(map[string]struct{}, len(names))
	for _, n := range names {
		ignore[n] = struct{}{}
	}
	return &Collector{
		acc:         domain.NewRuntimeAccumulator(),
		redactor:    opts.Redactor,
		formatter:   opts.Formatter,
		emitter:     emitter,
		level:       level,
		diag:        opts.Diagnostics,
		ignore:      ignore,
		fingerprint: opts.Fingerprint,
	}
}

// Record ingests one query event. It never fails and never panics into the
// caller: accounting always happens first and stands regardless of what
// the caller's operation does afterwards.
func (c *Collector) Record(ctx context.Context, event domain.EventRecord, scopeKey string) {
	c.acc.Add(scopeKey, event.DurationMillis)

	defer func() {
		if r := recover(); r != nil {
			c.diag.Report(ctx, fmt.Errorf("rendering query event %q: panic: %v", event.Name, r))
		}
	}()

	if !c.level.IsDebugEnabled(ctx) {
		return
	}
	if _, ignored := c.ignore[event.Name]; ignored {
		return
	}

	category := domain.Classify(event.SQL)

	binds, err := c.redactor.RenderAll(event.Binds)
	if err != nil {
		c.diag.Report(ctx, fmt.Errorf("rendering binds for %q: %w", domain.Label(event, ""), err))
	}

	rec := port.Record{
		Line:     c.formatter.Render(event, category, binds, ""),
		Category: category,
		Event:    event,
		Binds:    binds,
		Level:    slog.LevelDebug,
		ScopeKey: scopeKey,
	}
	if c.fingerprint {
		rec.Fingerprint = domain.Fingerprint(event.SQL)
	}

	if c.emitter != nil {
		c.emitter.Emit(ctx, rec)
	}
}

// NotifyQueryExecuted is the data-access layer's entry point; it is Record.
func (c *Collector) NotifyQueryExecuted(ctx context.Context, event domain.EventRecord, scopeKey string) {
	c.Record(ctx, event, scopeKey)
}

// ResetRuntime returns the query time accumulated for scopeKey since the
// last reset and starts the scope over at zero.
func (c *Collector) ResetRuntime(scopeKey string) float64 {
	return c.acc.ResetAndRead(scopeKey)
}

// Runtime returns the query time accumulated for scopeKey without resetting it.
func (c *Collector) Runtime(scopeKey string) float64 {
	return c.acc.Read(scopeKey)
}

// ForgetScope drops scopeKey once its unit of work is over and returns its
// final total.
func (c *Collector) ForgetScope(scopeKey string) float64 {
	return c.acc.Forget(scopeKey)
}

// Scopes returns the number of live scopes.
func (c *Collector) Scopes() int {
	return c.acc.Scopes()
}
