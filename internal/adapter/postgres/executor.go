package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/guillermoBallester/querytap/internal/core/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Executor runs one caller statement per transaction, bounded in rows and
// time. Every statement it sends goes through the pool's tracer, and the
// bookkeeping around the caller's statement is named so the debug output
// can tell it apart:
//
//	TRANSACTION  begin, commit, rollback
//	SCHEMA       SET LOCAL statement_timeout
type Executor struct {
	pool         *pgxpool.Pool
	readOnly     bool
	maxRows      int
	queryTimeout time.Duration
}

func NewExecutor(pool *pgxpool.Pool, readOnly bool, maxRows int, queryTimeout time.Duration) *Executor {
	return &Executor{
		pool:         pool,
		readOnly:     readOnly,
		maxRows:      maxRows,
		queryTimeout: queryTimeout,
	}
}

func (e *Executor) Execute(ctx context.Context, sql string) ([]map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, e.queryTimeout)
	defer cancel()

	txCtx := domain.WithQueryName(ctx, domain.NameTransaction)
	tx, err := e.pool.BeginTx(txCtx, pgx.TxOptions{AccessMode: e.accessMode()})
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	// No-op once committed.
	defer func() { _ = tx.Rollback(txCtx) }()

	// The server cancels the statement itself when the timeout fires, even
	// if the client context is gone by then.
	setCtx := domain.WithQueryName(ctx, domain.NameSchema)
	if _, err := tx.Exec(setCtx, fmt.Sprintf("SET LOCAL statement_timeout = '%d'", e.queryTimeout.Milliseconds())); err != nil {
		return nil, fmt.Errorf("setting statement timeout: %w", err)
	}

	rows, err := tx.Query(ctx, e.limit(sql))
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}
	results, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, fmt.Errorf("reading rows: %w", err)
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return results, nil
}

// limit caps the row count of sql. EXPLAIN output cannot be used as a
// subquery and is returned unchanged.
func (e *Executor) limit(sql string) string {
	if isExplain(sql) {
		return sql
	}
	return fmt.Sprintf("SELECT * FROM (%s) AS _q LIMIT %d", sql, e.maxRows)
}

func isExplain(sql string) bool {
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(sql)), "EXPLAIN")
}

func (e *Executor) accessMode() pgx.TxAccessMode {
	if e.readOnly {
		return pgx.ReadOnly
	}
	return pgx.ReadWrite
}
