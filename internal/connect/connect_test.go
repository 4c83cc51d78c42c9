package connect

import (
	"context"
	"testing"
	"time"

	"github.com/koustreak/minorm/internal/database"
	"github.com/koustreak/minorm/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePool_SQLite(t *testing.T) {
	ctx := context.Background()
	pool, err := CreatePool(ctx, &database.Config{
		Driver:  database.DriverSQLite,
		DSN:     "file:TestCreatePool_SQLite?mode=memory&cache=shared",
		MaxSize: 3,
	})
	require.NoError(t, err)

	assert.Equal(t, database.DialectSQLite, pool.Dialect())
	assert.Equal(t, int64(3), pool.Stats().Capacity)
	require.NoError(t, pool.Ping(ctx))

	_, err = pool.Execute(ctx, "create table `t` (`id` integer primary key)", nil)
	require.NoError(t, err)

	require.NoError(t, pool.Close(ctx))
	assert.True(t, errs.IsPoolClosed(pool.Close(ctx)))

	_, err = pool.Select(ctx, "select 1", nil, 0)
	assert.True(t, errs.IsPoolClosed(err))
}

func TestCreatePool_MissingCredentials(t *testing.T) {
	_, err := CreatePool(context.Background(), &database.Config{
		Driver:   database.DriverMySQL,
		Database: "app",
	})
	require.Error(t, err)
	assert.True(t, errs.IsInvalidInput(err))
}

func TestCreatePool_MissingDatabase(t *testing.T) {
	_, err := CreatePool(context.Background(), &database.Config{
		Driver:   database.DriverPostgres,
		User:     "u",
		Password: "p",
	})
	require.Error(t, err)
	assert.True(t, errs.IsInvalidInput(err))
}

func TestCreatePool_UnknownDriver(t *testing.T) {
	_, err := CreatePool(context.Background(), &database.Config{
		Driver:   "oracle",
		User:     "u",
		Password: "p",
		Database: "d",
	})
	require.Error(t, err)
	assert.True(t, errs.IsInvalidInput(err))
}

func TestCreatePool_UnreachableMySQL(t *testing.T) {
	cfg := database.DefaultConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 1
	cfg.User, cfg.Password, cfg.Database = "root", "root", "test"
	cfg.ConnectTimeout = 500 * time.Millisecond

	_, err := CreatePool(context.Background(), cfg)
	require.Error(t, err)
	assert.True(t, errs.IsConnectionFailed(err))
}
