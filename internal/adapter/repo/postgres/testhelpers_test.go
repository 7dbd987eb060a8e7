package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// poolStub satisfies PgxPool for unit tests without a database. Behavior is
// driven by the exec/query/queryRow hooks; unset hooks fail loudly.
type poolStub struct {
	exec     func(sql string, args []any) (pgconn.CommandTag, error)
	query    func(sql string, args []any) (pgx.Rows, error)
	queryRow func(sql string, args []any) pgx.Row

	execSQL  []string
	execArgs [][]any
}

func (p *poolStub) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	p.execSQL = append(p.execSQL, sql)
	p.execArgs = append(p.execArgs, args)
	if p.exec == nil {
		return pgconn.CommandTag{}, errors.New("unexpected Exec")
	}
	return p.exec(sql, args)
}

func (p *poolStub) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	if p.query == nil {
		return nil, errors.New("unexpected Query")
	}
	return p.query(sql, args)
}

func (p *poolStub) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	if p.queryRow == nil {
		return rowStub{err: errors.New("unexpected QueryRow")}
	}
	return p.queryRow(sql, args)
}

func (p *poolStub) BeginTx(_ context.Context, _ pgx.TxOptions) (pgx.Tx, error) {
	return nil, errors.New("unexpected BeginTx")
}

// rowStub satisfies pgx.Row with either a fixed error or a scan function.
type rowStub struct {
	err  error
	scan func(dest ...any) error
}

func (r rowStub) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if r.scan != nil {
		return r.scan(dest...)
	}
	return nil
}

// fakeRows satisfies pgx.Rows over a fixed grid of row values.
type fakeRows struct {
	rows [][]any
	idx  int
	err  error
}

func (f *fakeRows) Next() bool {
	if f.idx >= len(f.rows) {
		return false
	}
	f.idx++
	return true
}

func (f *fakeRows) Scan(dest ...any) error {
	row := f.rows[f.idx-1]
	for i, d := range dest {
		if err := assignValue(d, row[i]); err != nil {
			return err
		}
	}
	return nil
}

func assignValue(dest, src any) error {
	switch d := dest.(type) {
	case *string:
		*d = src.(string)
	case *[]byte:
		if src == nil {
			*d = nil
		} else {
			*d = src.([]byte)
		}
	case *int:
		*d = src.(int)
	case **int:
		if src == nil {
			*d = nil
		} else {
			v := src.(int)
			*d = &v
		}
	case *int64:
		*d = src.(int64)
	case *float64:
		*d = src.(float64)
	default:
		return errors.New("fakeRows: unsupported dest type")
	}
	return nil
}

func (f *fakeRows) Close()                                       {}
func (f *fakeRows) Err() error                                   { return f.err }
func (f *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (f *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (f *fakeRows) Values() ([]any, error)                       { return nil, nil }
func (f *fakeRows) RawValues() [][]byte                          { return nil }
func (f *fakeRows) Conn() *pgx.Conn                              { return nil }
