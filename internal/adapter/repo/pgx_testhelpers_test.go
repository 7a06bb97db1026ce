package repo

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type stubRow struct {
	scan func(dest ...any) error
}

func (r stubRow) Scan(dest ...any) error {
	if r.scan == nil {
		return pgx.ErrNoRows
	}
	return r.scan(dest...)
}

// valuesRow scans fixed values into the destinations.
func valuesRow(values ...any) stubRow {
	return stubRow{scan: func(dest ...any) error { return assign(dest, values) }}
}

func assign(dest []any, values []any) error {
	if len(dest) != len(values) {
		return fmt.Errorf("scan: %d destinations for %d values", len(dest), len(values))
	}
	for i, v := range values {
		target := reflect.ValueOf(dest[i]).Elem()
		if v == nil {
			target.Set(reflect.Zero(target.Type()))
			continue
		}
		target.Set(reflect.ValueOf(v))
	}
	return nil
}

type rowsBase struct{}

func (rowsBase) CommandTag() pgconn.CommandTag { return pgconn.CommandTag{} }

func (rowsBase) Conn() *pgx.Conn { return nil }

func (rowsBase) FieldDescriptions() []pgconn.FieldDescription { return nil }

func (rowsBase) Values() ([]any, error) {
	return nil, fmt.Errorf("values not supported in test rows")
}

func (rowsBase) RawValues() [][]byte { return nil }

type stubRows struct {
	rowsBase
	data [][]any
	pos  int
	err  error
}

func (r *stubRows) Close() {}

func (r *stubRows) Err() error { return r.err }

func (r *stubRows) Next() bool {
	if r.pos >= len(r.data) {
		return false
	}
	r.pos++
	return true
}

func (r *stubRows) Scan(dest ...any) error {
	return assign(dest, r.data[r.pos-1])
}

type call struct {
	query string
	args  []any
}

// stubExecutor answers by exact query text and records every call.
type stubExecutor struct {
	mu    sync.Mutex
	calls []call
	exec  map[string]func(args []any) (pgconn.CommandTag, error)
	row   map[string]func(args []any) pgx.Row
	rows  map[string]func(args []any) (pgx.Rows, error)
}

func newStubExecutor() *stubExecutor {
	return &stubExecutor{
		exec: make(map[string]func([]any) (pgconn.CommandTag, error)),
		row:  make(map[string]func([]any) pgx.Row),
		rows: make(map[string]func([]any) (pgx.Rows, error)),
	}
}

func (s *stubExecutor) record(query string, args []any) {
	s.mu.Lock()
	s.calls = append(s.calls, call{query: query, args: args})
	s.mu.Unlock()
}

func (s *stubExecutor) Exec(_ context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.record(query, args)
	if fn, ok := s.exec[query]; ok {
		return fn(args)
	}
	return pgconn.CommandTag{}, fmt.Errorf("unsupported exec: %s", query)
}

func (s *stubExecutor) QueryRow(_ context.Context, query string, args ...any) pgx.Row {
	s.record(query, args)
	if fn, ok := s.row[query]; ok {
		return fn(args)
	}
	return stubRow{scan: func(...any) error { return fmt.Errorf("unsupported query: %s", query) }}
}

func (s *stubExecutor) Query(_ context.Context, query string, args ...any) (pgx.Rows, error) {
	s.record(query, args)
	if fn, ok := s.rows[query]; ok {
		return fn(args)
	}
	return nil, fmt.Errorf("unsupported query: %s", query)
}

func (s *stubExecutor) lastCall() call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[len(s.calls)-1]
}
