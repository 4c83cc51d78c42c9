package postgres

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/koustreak/minorm/internal/database"
)

const (
	defaultPort            = 5432
	defaultConnMaxLifetime = 30 * time.Minute
)

// buildPoolConfig turns the shared config into a pgxpool config.
func buildPoolConfig(cfg *database.Config) (*pgxpool.Config, error) {
	dsn := cfg.DSN
	if dsn == "" {
		dsn = buildDSN(cfg)
	}

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid postgres config: %w", err)
	}

	poolCfg.MaxConns = int32(cfg.MaxSize)
	poolCfg.MinConns = int32(cfg.MinConns())
	poolCfg.MaxConnLifetime = defaultConnMaxLifetime
	poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	if cfg.Charset != "" {
		poolCfg.ConnConfig.RuntimeParams["client_encoding"] = clientEncoding(cfg.Charset)
	}

	return poolCfg, nil
}

// buildDSN constructs the postgres connection URL
func buildDSN(cfg *database.Config) string {
	port := cfg.Port
	if port == 0 {
		port = defaultPort
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     cfg.Host + ":" + strconv.Itoa(port),
		Path:     "/" + cfg.Database,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// clientEncoding maps MySQL style charset names onto Postgres encodings.
func clientEncoding(charset string) string {
	switch strings.ToLower(charset) {
	case "utf8", "utf8mb4", "utf-8":
		return "UTF8"
	case "latin1":
		return "LATIN1"
	default:
		return strings.ToUpper(charset)
	}
}
