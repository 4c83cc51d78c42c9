// Package connect builds a database.Pool for the driver named in a
// database.Config. It is the only package that imports every backend.
package connect

import (
	"context"

	"github.com/koustreak/minorm/internal/database"
	"github.com/koustreak/minorm/internal/database/mysql"
	"github.com/koustreak/minorm/internal/database/postgres"
	"github.com/koustreak/minorm/internal/database/sqlite"
	"github.com/koustreak/minorm/internal/errs"
	"github.com/koustreak/minorm/internal/logger"
)

// CreatePool fills in defaults, validates cfg, opens the backend and wraps
// it in a Pool bounded at cfg.MaxSize. An unreachable database or rejected
// credentials fail with a connection_failed error.
func CreatePool(ctx context.Context, cfg *database.Config, opts ...database.Option) (*database.Pool, error) {
	if cfg == nil {
		cfg = database.DefaultConfig()
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := logger.FromContext(ctx)
	log.With().
		Str("driver", string(cfg.Driver)).
		Str("host", cfg.Host).
		Str("database", cfg.Database).
		Int("max_size", cfg.MaxSize).
		Int("min_size", cfg.MinConns()).
		Logger().
		Info("create database connection pool")

	backend, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}

	opts = append([]database.Option{database.WithLogger(log)}, opts...)
	return database.NewPool(backend, database.DialectFor(cfg.Driver), cfg.MaxSize, opts...), nil
}

func openBackend(ctx context.Context, cfg *database.Config) (database.Backend, error) {
	switch cfg.Driver {
	case database.DriverMySQL:
		return mysql.New(ctx, cfg)
	case database.DriverPostgres:
		return postgres.New(ctx, cfg)
	case database.DriverSQLite:
		return sqlite.New(ctx, cfg)
	default:
		return nil, errs.Newf(errs.ErrKindInvalidInput, "unsupported driver %q", cfg.Driver)
	}
}
