// Package sqlite is the SQLite backend, built on database/sql and
// mattn/go-sqlite3. It shares the MySQL dialect, so canonical statements
// run unchanged.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/koustreak/minorm/internal/database"
	"github.com/koustreak/minorm/internal/errs"
	_ "github.com/mattn/go-sqlite3"
)

const (
	defaultBusyTimeout     = 5 * time.Second
	defaultConnMaxLifetime = 0 // in-memory databases die with their last connection
)

// Driver is a SQLite implementation of database.Backend.
type Driver struct {
	db *sql.DB
}

// New opens the database named by cfg.DSN, or by cfg.Database as a file
// path, and keeps cfg.MinConns() connections open.
func New(ctx context.Context, cfg *database.Config) (*Driver, error) {
	db, err := sql.Open("sqlite3", buildDSN(cfg))
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "invalid sqlite config", err)
	}

	db.SetMaxOpenConns(cfg.MaxSize)
	db.SetMaxIdleConns(cfg.MaxSize)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)

	connCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	if err := warmUp(connCtx, db, cfg.MinConns()); err != nil {
		_ = db.Close()
		return nil, mapError(err, "could not open sqlite database")
	}

	return &Driver{db: db}, nil
}

// warmUp opens n connections and returns them to the idle pool. For a
// shared in-memory database the idle connections also keep it alive.
func warmUp(ctx context.Context, db *sql.DB, n int) error {
	if n < 1 {
		return db.PingContext(ctx)
	}

	conns := make([]*sql.Conn, 0, n)
	defer func() {
		for _, c := range conns {
			_ = c.Close()
		}
	}()

	for i := 0; i < n; i++ {
		c, err := db.Conn(ctx)
		if err != nil {
			return err
		}
		conns = append(conns, c)
		if err := c.PingContext(ctx); err != nil {
			return err
		}
	}
	return nil
}

// buildDSN returns cfg.DSN as is, or a file URI for cfg.Database.
// ":memory:" becomes a shared-cache URI so every pooled connection sees
// the same database.
func buildDSN(cfg *database.Config) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}

	name := cfg.Database
	if name == ":memory:" {
		return "file::memory:?cache=shared"
	}
	sep := "?"
	if strings.Contains(name, "?") {
		sep = "&"
	}
	return fmt.Sprintf("file:%s%s_busy_timeout=%d", name, sep, defaultBusyTimeout.Milliseconds())
}

func (d *Driver) Ping(ctx context.Context) error {
	return mapError(d.db.PingContext(ctx), "ping failed")
}

func (d *Driver) Close() {
	_ = d.db.Close()
}

func (d *Driver) Query(ctx context.Context, query string, args ...any) (database.Rows, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "query failed")
	}
	return &sqliteRows{rows: rows}, nil
}

func (d *Driver) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := d.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, mapError(err, "exec failed")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, mapError(err, "reading affected rows failed")
	}
	return n, nil
}

// Columns describes table through pragma_table_info.
// An unknown table yields no columns.
func (d *Driver) Columns(ctx context.Context, table string) ([]database.ColumnInfo, error) {
	const q = `SELECT name, type, "notnull", pk FROM pragma_table_info(?) ORDER BY cid`

	rows, err := d.db.QueryContext(ctx, q, table)
	if err != nil {
		return nil, mapError(err, "failed to fetch columns")
	}
	defer rows.Close()

	var cols []database.ColumnInfo
	for rows.Next() {
		var (
			c       database.ColumnInfo
			notNull int
			pk      int
		)
		if err := rows.Scan(&c.Name, &c.DataType, &notNull, &pk); err != nil {
			return nil, mapError(err, "failed to scan column info")
		}
		c.DataType = strings.ToLower(c.DataType)
		c.Nullable = notNull == 0
		c.IsPrimary = pk > 0
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "error iterating columns")
	}
	return cols, nil
}

// DB returns the underlying *sql.DB, used by tests and examples to
// create schema.
func (d *Driver) DB() *sql.DB {
	return d.db
}

type sqliteRows struct {
	rows *sql.Rows
}

func (r *sqliteRows) Next() bool                 { return r.rows.Next() }
func (r *sqliteRows) Scan(dest ...any) error     { return mapError(r.rows.Scan(dest...), "scan failed") }
func (r *sqliteRows) Columns() ([]string, error) { return r.rows.Columns() }
func (r *sqliteRows) Close()                     { _ = r.rows.Close() }
func (r *sqliteRows) Err() error                 { return mapError(r.rows.Err(), "row iteration failed") }
