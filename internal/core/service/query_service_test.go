package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/guillermoBallester/querytap/internal/core/domain"
	"github.com/guillermoBallester/querytap/internal/core/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mock QueryExecutor ---

// mockExecutor reports its statements to a collector the way the pgx tracer
// does: under the scope found in ctx.
type mockExecutor struct {
	collector     *Collector
	durations     []float64
	executeCalled bool
	lastSQL       string
	lastScope     string
	result        []map[string]any
	err           error
}

func (m *mockExecutor) Execute(ctx context.Context, sql string) ([]map[string]any, error) {
	m.executeCalled = true
	m.lastSQL = sql
	m.lastScope = domain.ScopeFromContext(ctx)
	if m.collector != nil {
		for _, d := range m.durations {
			m.collector.Record(ctx, domain.EventRecord{SQL: sql, DurationMillis: d}, m.lastScope)
		}
	}
	return m.result, m.err
}

// --- mock Instrumentation ---

type recordingInstrumentation struct {
	port.NoopInstrumentation
	category string
	ms       float64
	count    int
	errors   int
}

func (r *recordingInstrumentation) RecordQueryDuration(_ context.Context, category string, ms float64) {
	r.category = category
	r.ms = ms
}

func (r *recordingInstrumentation) IncrementQueryCount(context.Context)  { r.count++ }
func (r *recordingInstrumentation) IncrementQueryErrors(context.Context) { r.errors++ }

func newTestQueryService(exec *mockExecutor, inst port.Instrumentation) (*QueryService, *Collector) {
	c := NewCollector(nil, port.StaticLevel(false), CollectorOptions{})
	exec.collector = c
	return NewQueryService(domain.NewPgQueryValidator(), exec, c, testLogger(), nil, inst), c
}

// --- tests ---

func TestQueryService_ValidSelect(t *testing.T) {
	exec := &mockExecutor{
		result:    []map[string]any{{"id": 1, "name": "alice"}},
		durations: []float64{0.25, 1.5},
	}
	svc, c := newTestQueryService(exec, nil)

	res, err := svc.Execute(context.Background(), "SELECT id, name FROM users")
	require.NoError(t, err)
	assert.True(t, exec.executeCalled)
	assert.Equal(t, "SELECT id, name FROM users", exec.lastSQL)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "alice", res.Rows[0]["name"])
	assert.Equal(t, 1.75, res.DBRuntimeMillis)
	assert.Equal(t, exec.lastScope, res.Scope)
	assert.NotEqual(t, domain.GlobalScope, res.Scope)
	assert.Zero(t, c.Scopes(), "scope must be forgotten once the call returns")
}

func TestQueryService_ScopesAreIsolated(t *testing.T) {
	exec := &mockExecutor{durations: []float64{2}}
	svc, _ := newTestQueryService(exec, nil)

	first, err := svc.Execute(context.Background(), "SELECT 1")
	require.NoError(t, err)
	second, err := svc.Execute(context.Background(), "SELECT 2")
	require.NoError(t, err)

	assert.NotEqual(t, first.Scope, second.Scope)
	assert.Equal(t, 2.0, first.DBRuntimeMillis)
	assert.Equal(t, 2.0, second.DBRuntimeMillis)
}

func TestQueryService_Rejects(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want error
	}{
		{"insert", "INSERT INTO users (name) VALUES ('bob')", domain.ErrNotAllowed},
		{"drop", "DROP TABLE users", domain.ErrNotAllowed},
		{"delete", "DELETE FROM users WHERE id = 1", domain.ErrNotAllowed},
		{"update", "UPDATE users SET name = 'x'", domain.ErrNotAllowed},
		{"explain analyze of a write", "EXPLAIN ANALYZE DELETE FROM users", domain.ErrNotAllowed},
		{"empty", "", domain.ErrEmptyQuery},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &mockExecutor{}
			inst := &recordingInstrumentation{}
			svc, _ := newTestQueryService(exec, inst)

			_, err := svc.Execute(context.Background(), tt.sql)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.False(t, exec.executeCalled, "executor should not be called for rejected queries")
			assert.Equal(t, 1, inst.errors)
		})
	}
}

func TestQueryService_AllowsExplain(t *testing.T) {
	exec := &mockExecutor{
		result: []map[string]any{{"QUERY PLAN": "Seq Scan"}},
	}
	svc, _ := newTestQueryService(exec, nil)

	res, err := svc.Execute(context.Background(), "EXPLAIN SELECT 1")
	require.NoError(t, err)
	assert.True(t, exec.executeCalled)
	require.Len(t, res.Rows, 1)
}

func TestQueryService_ExecutorError(t *testing.T) {
	exec := &mockExecutor{err: fmt.Errorf("connection refused"), durations: []float64{3}}
	inst := &recordingInstrumentation{}
	svc, c := newTestQueryService(exec, inst)

	_, err := svc.Execute(context.Background(), "SELECT 1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, 1, inst.errors)
	assert.Equal(t, 3.0, inst.ms, "time spent before the failure is still reported")
	assert.Zero(t, c.Scopes())
}

func TestQueryService_RecordsInstrumentation(t *testing.T) {
	exec := &mockExecutor{durations: []float64{4}}
	inst := &recordingInstrumentation{}
	svc, _ := newTestQueryService(exec, inst)

	_, err := svc.Execute(context.Background(), "SELECT * FROM accounts FOR UPDATE")
	require.NoError(t, err)
	assert.Equal(t, "LOCK_OR_SELECT_FOR_UPDATE", inst.category)
	assert.Equal(t, 4.0, inst.ms)
	assert.Equal(t, 1, inst.count)
	assert.Zero(t, inst.errors)
}
