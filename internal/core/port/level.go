package port

import (
	"context"
	"log/slog"
)

// LevelProvider tells the collector whether debug output is wanted. The
// collector only reads it; configuring it is the logger owner's job.
type LevelProvider interface {
	IsDebugEnabled(ctx context.Context) bool
}

// SlogLevel answers from a slog.Logger's handler.
type SlogLevel struct {
	Logger *slog.Logger
}

func (l SlogLevel) IsDebugEnabled(ctx context.Context) bool {
	return l.Logger != nil && l.Logger.Enabled(ctx, slog.LevelDebug)
}

// StaticLevel is a fixed answer, mostly for tests and embedding.
type StaticLevel bool

func (l StaticLevel) IsDebugEnabled(context.Context) bool { return bool(l) }
