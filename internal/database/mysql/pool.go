package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strconv"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/koustreak/minorm/internal/database"
)

const (
	defaultConnMaxLifetime = 30 * time.Minute
	defaultPort            = 3306
)

// buildPool configures and returns a *sql.DB with pool settings
func buildPool(cfg *database.Config) (*sql.DB, error) {
	dsn := cfg.DSN
	if dsn == "" {
		dsn = buildDSN(cfg)
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open mysql: %w", err)
	}

	// Every pool slot may hold a connection, so idle ones are kept up to
	// MaxSize and reused rather than redialled.
	db.SetMaxOpenConns(cfg.MaxSize)
	db.SetMaxIdleConns(cfg.MaxSize)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)

	return db, nil
}

// buildDSN constructs the MySQL DSN string
func buildDSN(cfg *database.Config) string {
	port := cfg.Port
	if port == 0 {
		port = defaultPort
	}

	c := gomysql.NewConfig()
	c.User = cfg.User
	c.Passwd = cfg.Password
	c.Net = "tcp"
	c.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(port))
	c.DBName = cfg.Database
	c.Timeout = cfg.ConnectTimeout
	c.ParseTime = true

	autocommit := "0"
	if cfg.AutocommitEnabled() {
		autocommit = "1"
	}
	// unknown params are sent as SET statements on every new connection
	c.Params = map[string]string{
		"charset":    cfg.Charset,
		"autocommit": autocommit,
	}

	return c.FormatDSN()
}

// warmUp opens n connections and returns them to the idle pool, so the
// pool starts with its minimum size and bad credentials surface early.
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
