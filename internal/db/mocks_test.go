package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// execCall records one Exec invocation against the mock connection.
type execCall struct {
	sql  string
	args []any
}

// mockDBTX implements DBTX with scripted results for repository tests.
type mockDBTX struct {
	execCalls []execCall
	execTag   pgconn.CommandTag
	execErr   error

	queryRowSQL  string
	queryRowArgs []any
	row          pgx.Row
}

func newMockDBTX() *mockDBTX {
	return &mockDBTX{execTag: pgconn.NewCommandTag("UPDATE 1")}
}

func (m *mockDBTX) Exec(_ context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	m.execCalls = append(m.execCalls, execCall{sql: sql, args: arguments})
	if m.execErr != nil {
		return pgconn.CommandTag{}, m.execErr
	}
	return m.execTag, nil
}

func (m *mockDBTX) Query(context.Context, string, ...any) (pgx.Rows, error) {
	panic("Query is not used by these repositories")
}

func (m *mockDBTX) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	m.queryRowSQL = sql
	m.queryRowArgs = args
	if m.row != nil {
		return m.row
	}
	return &mockRow{err: pgx.ErrNoRows}
}

// mockRow implements pgx.Row, assigning scripted values positionally.
type mockRow struct {
	values []any
	err    error
}

func (r *mockRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return fmt.Errorf("mockRow: %d destinations for %d values", len(dest), len(r.values))
	}
	for i, v := range r.values {
		if err := assign(dest[i], v); err != nil {
			return err
		}
	}
	return nil
}

// assign copies a scripted value into a scan destination.
func assign(dest, v any) error {
	switch d := dest.(type) {
	case *string:
		*d = v.(string)
	case *int:
		*d = v.(int)
	case *int64:
		*d = v.(int64)
	case *bool:
		*d = v.(bool)
	case *time.Time:
		*d = v.(time.Time)
	default:
		return fmt.Errorf("mockRow: unsupported destination type %T", dest)
	}
	return nil
}
