package domain

import (
	"errors"
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

var (
	ErrEmptyQuery     = errors.New("empty query")
	ErrNotAllowed     = errors.New("only SELECT queries are allowed")
	ErrMultiStatement = errors.New("multiple statements are not allowed")
	ErrParseFailed    = errors.New("failed to parse SQL")
)

// PgQueryValidator checks statements with PostgreSQL's own parser. It lets
// through a single SELECT, or an EXPLAIN of one; everything else is refused.
type PgQueryValidator struct{}

func NewPgQueryValidator() *PgQueryValidator {
	return &PgQueryValidator{}
}

func (v *PgQueryValidator) Validate(sql string) error {
	stmt, err := parseSingle(sql)
	if err != nil {
		return err
	}
	// EXPLAIN ANALYZE runs its statement, so the explained one must pass too.
	if explain, ok := stmt.Node.(*pg_query.Node_ExplainStmt); ok {
		stmt = explain.ExplainStmt.GetQuery()
	}
	if _, ok := stmt.GetNode().(*pg_query.Node_SelectStmt); !ok {
		return ErrNotAllowed
	}
	return nil
}

// parseSingle parses sql and returns its only statement.
func parseSingle(sql string) (*pg_query.Node, error) {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return nil, ErrEmptyQuery
	}

	tree, err := pg_query.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParseFailed, err)
	}
	switch {
	case len(tree.Stmts) == 0 || tree.Stmts[0].Stmt == nil:
		return nil, ErrEmptyQuery
	case len(tree.Stmts) > 1:
		return nil, ErrMultiStatement
	}
	return tree.Stmts[0].Stmt, nil
}

// Fingerprint returns the pg_query fingerprint of sql: statements that
// differ only in literal values or whitespace share a fingerprint. It
// returns "" for text PostgreSQL cannot parse.
func Fingerprint(sql string) string {
	if strings.TrimSpace(sql) == "" {
		return ""
	}
	fp, err := pg_query.Fingerprint(sql)
	if err != nil {
		return ""
	}
	return fp
}
