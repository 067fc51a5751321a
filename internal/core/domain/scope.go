package domain

import "context"

type scopeKey struct{}

type queryNameKey struct{}

// WithScope returns a context carrying the scope key that producers which
// only see a context should account query time to.
func WithScope(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, scopeKey{}, key)
}

// ScopeFromContext returns the scope key set by WithScope, or GlobalScope.
func ScopeFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(scopeKey{}).(string); ok {
		return v
	}
	return GlobalScope
}

// WithQueryName labels the queries issued under ctx, e.g. "User Load" or
// NameSchema for internal statements.
func WithQueryName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, queryNameKey{}, name)
}

func QueryNameFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(queryNameKey{}).(string); ok {
		return v
	}
	return ""
}
