// Package sqltest provides in-memory pgx rows and a recording executor for
// tests of code written against infra.SQLExecutor.
package sqltest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"highbid/internal/infra"
)

// Row returns a pgx.Row whose Scan copies values into the destinations in order.
func Row(values ...any) pgx.Row {
	return row{values: values}
}

// ErrRow returns a pgx.Row whose Scan fails with err.
func ErrRow(err error) pgx.Row {
	return row{err: err}
}

// NoRows is a row that scans pgx.ErrNoRows.
func NoRows() pgx.Row {
	return row{err: pgx.ErrNoRows}
}

type row struct {
	values []any
	err    error
}

func (r row) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return Assign(dest, r.values)
}

// Rows is a pgx.Rows over fixed values.
type Rows struct {
	data   [][]any
	idx    int
	err    error
	closed bool
}

func NewRows(data ...[]any) *Rows {
	return &Rows{data: data, idx: -1}
}

func (r *Rows) Close()                                       { r.closed = true }
func (r *Rows) Err() error                                   { return r.err }
func (r *Rows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *Rows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *Rows) RawValues() [][]byte                          { return nil }
func (r *Rows) Conn() *pgx.Conn                              { return nil }

func (r *Rows) Next() bool {
	if r.closed {
		return false
	}
	r.idx++
	return r.idx < len(r.data)
}

func (r *Rows) Scan(dest ...any) error {
	if r.idx < 0 || r.idx >= len(r.data) {
		return errors.New("sqltest: scan outside of rows")
	}
	return Assign(dest, r.data[r.idx])
}

func (r *Rows) Values() ([]any, error) {
	if r.idx < 0 || r.idx >= len(r.data) {
		return nil, errors.New("sqltest: values outside of rows")
	}
	return r.data[r.idx], nil
}

// Closed reports whether the caller released the rows.
func (r *Rows) Closed() bool { return r.closed }

// Assign copies values into scan destinations the way a driver would for the
// types used in this module: direct assignment, pointer wrapping for nullable
// columns, sql.Scanner, then plain conversion.
func Assign(dest []any, values []any) error {
	if len(dest) != len(values) {
		return fmt.Errorf("sqltest: scan %d destinations from %d values", len(dest), len(values))
	}
	for i, d := range dest {
		if err := assignOne(d, values[i]); err != nil {
			return fmt.Errorf("sqltest: column %d: %w", i, err)
		}
	}
	return nil
}

func assignOne(dest any, value any) error {
	dv := reflect.ValueOf(dest)
	if dv.Kind() != reflect.Pointer || dv.IsNil() {
		return fmt.Errorf("destination %T is not a pointer", dest)
	}
	target := dv.Elem()
	if value == nil {
		if scanner, ok := dest.(sql.Scanner); ok {
			return scanner.Scan(nil)
		}
		target.Set(reflect.Zero(target.Type()))
		return nil
	}

	sv := reflect.ValueOf(value)
	switch {
	case sv.Type().AssignableTo(target.Type()):
		target.Set(sv)
		return nil
	case target.Kind() == reflect.Pointer && sv.Type().AssignableTo(target.Type().Elem()):
		p := reflect.New(target.Type().Elem())
		p.Elem().Set(sv)
		target.Set(p)
		return nil
	}
	if scanner, ok := dest.(sql.Scanner); ok {
		return scanner.Scan(value)
	}
	if sv.Kind() == target.Kind() && sv.Type().ConvertibleTo(target.Type()) {
		target.Set(sv.Convert(target.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, target.Type())
}

// Call is one recorded statement.
type Call struct {
	Query string
	Args  []any
}

// Executor records statements and delegates to the configured handlers.
// Unset handlers return pgx.ErrNoRows for QueryRow and empty results otherwise.
type Executor struct {
	mu    sync.Mutex
	calls []Call

	OnExec     func(query string, args []any) (pgconn.CommandTag, error)
	OnQueryRow func(query string, args []any) pgx.Row
	OnQuery    func(query string, args []any) (pgx.Rows, error)
}

func (e *Executor) record(query string, args []any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, Call{Query: query, Args: args})
}

func (e *Executor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	e.record(query, args)
	if e.OnExec == nil {
		return pgconn.NewCommandTag("UPDATE 1"), nil
	}
	return e.OnExec(query, args)
}

func (e *Executor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	e.record(query, args)
	if e.OnQueryRow == nil {
		return NoRows()
	}
	return e.OnQueryRow(query, args)
}

func (e *Executor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	e.record(query, args)
	if e.OnQuery == nil {
		return NewRows(), nil
	}
	return e.OnQuery(query, args)
}

// Calls returns a copy of the recorded statements.
func (e *Executor) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Call, len(e.calls))
	copy(out, e.calls)
	return out
}

// Count returns how many times query was issued.
func (e *Executor) Count(query string) int {
	n := 0
	for _, c := range e.Calls() {
		if c.Query == query {
			n++
		}
	}
	return n
}

// Tag builds a command tag reporting n affected rows.
func Tag(n int) pgconn.CommandTag {
	return pgconn.NewCommandTag(fmt.Sprintf("UPDATE %d", n))
}

var _ infra.SQLExecutor = (*Executor)(nil)
