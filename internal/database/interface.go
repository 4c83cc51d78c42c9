package database

import "context"

// Backend is the contract every driver package implements.
// The Pool is the only caller: it gates access, rewrites placeholders
// and logs, so backends stay thin wrappers around the native client.
type Backend interface {
	// Ping verifies the database is reachable.
	Ping(ctx context.Context) error

	// Query executes a statement that returns rows.
	// The returned Rows hold a connection until closed.
	Query(ctx context.Context, sql string, args ...any) (Rows, error)

	// Exec executes a mutating statement and returns the affected row count.
	Exec(ctx context.Context, sql string, args ...any) (int64, error)

	// Close releases all resources held by the native pool.
	Close()
}

// Introspector is implemented by backends that can describe a live table.
type Introspector interface {
	// Columns returns the columns of table in ordinal order.
	// An unknown table yields an empty slice.
	Columns(ctx context.Context, table string) ([]ColumnInfo, error)
}

// Rows is an abstraction over a database result set.
// Callers must always call Close() when done, even on error.
type Rows interface {
	// Next advances to the next row.
	// Returns false when no more rows exist or on error.
	Next() bool

	// Scan copies the current row's columns into the provided destinations.
	Scan(dest ...any) error

	// Columns returns the column names of the result set.
	Columns() ([]string, error)

	// Close releases resources held by the result set.
	Close()

	// Err returns any error encountered during iteration.
	Err() error
}

// ColumnInfo describes a single column of a live table.
type ColumnInfo struct {
	Name      string
	DataType  string
	Nullable  bool
	IsPrimary bool
}
