package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/koustreak/minorm/internal/database"
	"github.com/koustreak/minorm/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "minorm.yaml", `
database:
  driver: postgres
  host: db.internal
  user: app
  password: secret
  database: shop
  max_size: 4
  connect_timeout: 3s
log:
  level: debug
  format: console
server:
  addr: ":9000"
`)

	cfg, err := Load(Options{File: path})
	require.NoError(t, err)

	assert.Equal(t, database.DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "app", cfg.Database.User)
	assert.Equal(t, 4, cfg.Database.MaxSize)
	assert.Equal(t, 1, cfg.Database.MinConns())
	assert.Equal(t, "utf8", cfg.Database.Charset)
	assert.Equal(t, 3*time.Second, cfg.Database.ConnectTimeout)
	assert.True(t, cfg.Database.AutocommitEnabled())
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, 15*time.Second, cfg.Server.ShutdownTimeout)
}

func TestLoad_TOML(t *testing.T) {
	path := writeFile(t, "minorm.toml", `
[database]
user = "root"
password = "root"
database = "test"
autocommit = false

[server]
read_timeout = "2s"
`)

	cfg, err := Load(Options{File: path})
	require.NoError(t, err)

	assert.Equal(t, database.DriverMySQL, cfg.Database.Driver)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 3306, cfg.Database.Port)
	assert.Equal(t, 10, cfg.Database.MaxSize)
	assert.False(t, cfg.Database.AutocommitEnabled())
	assert.Equal(t, 2*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "minorm.yaml", `
database:
  user: app
  password: secret
  database: shop
  max_size: 4
`)
	t.Setenv("MINORM_DATABASE__MAX_SIZE", "20")
	t.Setenv("MINORM_DATABASE__HOST", "10.0.0.5")
	t.Setenv("MINORM_LOG__LEVEL", "warn")

	cfg, err := Load(Options{File: path})
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Database.MaxSize)
	assert.Equal(t, "10.0.0.5", cfg.Database.Host)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_DotEnv(t *testing.T) {
	envFile := writeFile(t, ".env", "MINORM_DATABASE__DRIVER=sqlite\nMINORM_DATABASE__DATABASE=:memory:\n")
	t.Cleanup(func() {
		os.Unsetenv("MINORM_DATABASE__DRIVER")
		os.Unsetenv("MINORM_DATABASE__DATABASE")
	})

	cfg, err := Load(Options{EnvFile: envFile})
	require.NoError(t, err)
	assert.Equal(t, database.DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, ":memory:", cfg.Database.Database)
	assert.Equal(t, 0, cfg.Database.Port)
}

func TestLoad_MissingEnvFileIsIgnored(t *testing.T) {
	t.Setenv("MINORM_DATABASE__DRIVER", "sqlite")
	t.Setenv("MINORM_DATABASE__DATABASE", "app.db")

	_, err := Load(Options{EnvFile: filepath.Join(t.TempDir(), "nope.env")})
	assert.NoError(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing credentials", "database:\n  database: shop\n"},
		{"missing password", "database:\n  driver: postgres\n  user: u\n  database: shop\n"},
		{"missing database", "database:\n  user: u\n  password: p\n"},
		{"unknown driver", "database:\n  driver: oracle\n  user: u\n  password: p\n  database: d\n"},
		{"min above max", "database:\n  user: u\n  password: p\n  database: d\n  max_size: 2\n  min_size: 3\n"},
		{"bad log level", "database:\n  user: u\n  password: p\n  database: d\nlog:\n  level: loud\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(Options{File: writeFile(t, "c.yaml", tt.body)})
			require.Error(t, err)
			assert.True(t, errs.IsInvalidInput(err))
		})
	}
}

func TestLoad_ExplicitZeroMinSize(t *testing.T) {
	cfg, err := Load(Options{File: writeFile(t, "c.yaml", "database:\n  user: u\n  password: p\n  database: d\n  min_size: 0\n")})
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Database.MinConns())
}

func TestLoad_CredentialsFromDSN(t *testing.T) {
	cfg, err := Load(Options{File: writeFile(t, "c.yaml", "database:\n  driver: postgres\n  dsn: postgres://u:p@db/shop\n")})
	require.NoError(t, err)
	assert.Empty(t, cfg.Database.User)
	assert.Equal(t, "postgres://u:p@db/shop", cfg.Database.DSN)
}

func TestLoad_FileErrors(t *testing.T) {
	_, err := Load(Options{File: filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)

	_, err = Load(Options{File: writeFile(t, "c.json", "{}")})
	assert.True(t, errs.IsInvalidInput(err))

	_, err = Load(Options{File: writeFile(t, "c.yaml", "database: [")})
	assert.Error(t, err)
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "database.max_size", envKey("MINORM_DATABASE__MAX_SIZE"))
	assert.Equal(t, "server.addr", envKey("MINORM_SERVER__ADDR"))
}
