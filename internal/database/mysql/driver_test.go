package mysql

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/koustreak/minorm/internal/database"
	"github.com/koustreak/minorm/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDSN(t *testing.T) {
	cfg := database.DefaultConfig()
	cfg.Host = "127.0.0.1"
	cfg.User = "root"
	cfg.Password = "root"
	cfg.Database = "test"
	cfg.ConnectTimeout = 5 * time.Second

	dsn := buildDSN(cfg)

	parsed, err := gomysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "root", parsed.User)
	assert.Equal(t, "root", parsed.Passwd)
	assert.Equal(t, "tcp", parsed.Net)
	assert.Equal(t, "127.0.0.1:3306", parsed.Addr)
	assert.Equal(t, "test", parsed.DBName)
	assert.Equal(t, 5*time.Second, parsed.Timeout)
	assert.True(t, parsed.ParseTime)
	assert.Equal(t, "1", parsed.Params["autocommit"])
	assert.Contains(t, dsn, "charset=utf8")
}

func TestBuildDSN_AutocommitOff(t *testing.T) {
	off := false
	cfg := database.DefaultConfig()
	cfg.User, cfg.Password, cfg.Database = "u", "p", "d"
	cfg.Autocommit = &off
	cfg.Port = 0

	parsed, err := gomysql.ParseDSN(buildDSN(cfg))
	require.NoError(t, err)
	assert.Equal(t, "0", parsed.Params["autocommit"])
	assert.Equal(t, "localhost:3306", parsed.Addr)
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind errs.ErrKind
	}{
		{"access denied", &gomysql.MySQLError{Number: 1045, Message: "Access denied"}, errs.ErrKindConnectionFailed},
		{"unknown database", &gomysql.MySQLError{Number: 1049, Message: "Unknown database"}, errs.ErrKindConnectionFailed},
		{"duplicate entry", &gomysql.MySQLError{Number: 1062, Message: "Duplicate entry"}, errs.ErrKindConflict},
		{"fk violation", &gomysql.MySQLError{Number: 1452, Message: "Cannot add"}, errs.ErrKindConflict},
		{"deadlock", &gomysql.MySQLError{Number: 1213, Message: "Deadlock"}, errs.ErrKindBusy},
		{"lock wait", &gomysql.MySQLError{Number: 1205, Message: "Lock wait timeout"}, errs.ErrKindBusy},
		{"too many connections", &gomysql.MySQLError{Number: 1040, Message: "Too many"}, errs.ErrKindBusy},
		{"table access denied", &gomysql.MySQLError{Number: 1142, Message: "denied"}, errs.ErrKindPermissionDenied},
		{"syntax", &gomysql.MySQLError{Number: 1064, Message: "syntax"}, errs.ErrKindQueryFailed},
		{"unknown table", &gomysql.MySQLError{Number: 1146, Message: "doesn't exist"}, errs.ErrKindQueryFailed},
		{"bad conn", driver.ErrBadConn, errs.ErrKindConnectionFailed},
		{"invalid conn", gomysql.ErrInvalidConn, errs.ErrKindConnectionFailed},
		{"deadline", context.DeadlineExceeded, errs.ErrKindTimeout},
		{"other", errors.New("sql: converting argument"), errs.ErrKindQueryFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mapError(tt.err, "exec failed")
			require.Error(t, err)
			assert.Equal(t, tt.kind, errs.KindOf(err))
			assert.True(t, errors.Is(err, tt.err))
		})
	}

	assert.NoError(t, mapError(nil, "ignored"))
}

func TestNew_Unreachable(t *testing.T) {
	cfg := database.DefaultConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 1 // nothing listens here
	cfg.User, cfg.Password, cfg.Database = "root", "root", "test"
	cfg.ConnectTimeout = 500 * time.Millisecond

	_, err := New(context.Background(), cfg)
	require.Error(t, err)
	assert.True(t, errs.IsConnectionFailed(err))
}
