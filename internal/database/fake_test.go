package database

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// fakeBackend is an in-process Backend. Query and Exec block on gate when
// it is non-nil, which lets tests hold slots open.
type fakeBackend struct {
	mu      sync.Mutex
	queries []string
	args    [][]any

	cols []string
	data [][]any

	affected int64
	execErr  error
	queryErr error
	scanErr  error

	gate    chan struct{}
	entered chan struct{}

	active    atomic.Int64
	maxActive atomic.Int64
	closed    atomic.Bool
	openRows  atomic.Int64
}

func (f *fakeBackend) record(query string, args []any) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.args = append(f.args, args)
	f.mu.Unlock()
}

func (f *fakeBackend) enter() {
	n := f.active.Add(1)
	for {
		m := f.maxActive.Load()
		if n <= m || f.maxActive.CompareAndSwap(m, n) {
			break
		}
	}
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.gate != nil {
		<-f.gate
	}
}

func (f *fakeBackend) Ping(context.Context) error { return nil }

func (f *fakeBackend) Query(_ context.Context, query string, args ...any) (Rows, error) {
	f.record(query, args)
	f.enter()
	if f.queryErr != nil {
		f.active.Add(-1)
		return nil, f.queryErr
	}
	f.openRows.Add(1)
	return &fakeRows{b: f, cols: f.cols, data: f.data, i: -1, scanErr: f.scanErr}, nil
}

func (f *fakeBackend) Exec(_ context.Context, query string, args ...any) (int64, error) {
	f.record(query, args)
	f.enter()
	defer f.active.Add(-1)
	if f.execErr != nil {
		return 0, f.execErr
	}
	return f.affected, nil
}

func (f *fakeBackend) Close() { f.closed.Store(true) }

func (f *fakeBackend) Columns(_ context.Context, table string) ([]ColumnInfo, error) {
	if table != "users" {
		return nil, nil
	}
	return []ColumnInfo{{Name: "id", DataType: "bigint", IsPrimary: true}, {Name: "username", DataType: "varchar"}}, nil
}

func (f *fakeBackend) lastQuery() (string, []any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queries) == 0 {
		return "", nil
	}
	return f.queries[len(f.queries)-1], f.args[len(f.args)-1]
}

type fakeRows struct {
	b       *fakeBackend
	cols    []string
	data    [][]any
	i       int
	scanErr error
	closed  bool
}

func (r *fakeRows) Next() bool {
	r.i++
	return r.i < len(r.data)
}

func (r *fakeRows) Scan(dest ...any) error {
	if r.scanErr != nil {
		return r.scanErr
	}
	if len(dest) != len(r.cols) {
		return errors.New("column count mismatch")
	}
	for i, d := range dest {
		*(d.(*any)) = r.data[r.i][i]
	}
	return nil
}

func (r *fakeRows) Columns() ([]string, error) { return r.cols, nil }

func (r *fakeRows) Close() {
	if r.closed {
		return
	}
	r.closed = true
	if r.b != nil {
		r.b.openRows.Add(-1)
		r.b.active.Add(-1)
	}
}

func (r *fakeRows) Err() error { return nil }
