package database

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/koustreak/minorm/internal/errs"
)

// Driver identifies the database engine.
type Driver string

const (
	DriverMySQL    Driver = "mysql"
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
)

// Config holds all settings needed to connect to and pool a database.
type Config struct {
	// Driver is the database engine. Defaults to DriverMySQL.
	Driver Driver `koanf:"driver" yaml:"driver" toml:"driver" validate:"oneof=mysql postgres sqlite"`

	Host     string `koanf:"host" yaml:"host" toml:"host"`
	Port     int    `koanf:"port" yaml:"port" toml:"port" validate:"gte=0,lte=65535"`
	User     string `koanf:"user" yaml:"user" toml:"user"`
	Password string `koanf:"password" yaml:"password" toml:"password"`
	Database string `koanf:"database" yaml:"database" toml:"database" validate:"required_without=DSN"`
	Charset  string `koanf:"charset" yaml:"charset" toml:"charset"`

	// Autocommit is nil when unset, which means true.
	Autocommit *bool `koanf:"autocommit" yaml:"autocommit" toml:"autocommit"`

	// DSN, when set, is handed to the driver as is and overrides the
	// individual connection fields.
	DSN string `koanf:"dsn" yaml:"dsn" toml:"dsn"`

	// Pool tuning
	MaxSize int `koanf:"max_size" yaml:"max_size" toml:"max_size" validate:"gte=1"`
	// MinSize is nil when unset, which means 1. An explicit 0 opens no
	// connections up front.
	MinSize *int `koanf:"min_size" yaml:"min_size" toml:"min_size" validate:"omitempty,gte=0,ltefield=MaxSize"`

	// ConnectTimeout bounds establishing the pool and its first connections.
	ConnectTimeout time.Duration `koanf:"connect_timeout" yaml:"connect_timeout" toml:"connect_timeout"`
}

const (
	defaultHost           = "localhost"
	defaultMySQLPort      = 3306
	defaultPostgresPort   = 5432
	defaultCharset        = "utf8"
	defaultMaxSize        = 10
	defaultMinSize        = 1
	defaultConnectTimeout = 10 * time.Second
)

// DefaultConfig returns a MySQL config with every optional key at its default.
func DefaultConfig() *Config {
	return &Config{
		Driver:         DriverMySQL,
		Host:           defaultHost,
		Port:           defaultMySQLPort,
		Charset:        defaultCharset,
		MaxSize:        defaultMaxSize,
		MinSize:        intPtr(defaultMinSize),
		ConnectTimeout: defaultConnectTimeout,
	}
}

// WithDefaults returns a copy of c with zero-valued optional keys filled in.
func (c *Config) WithDefaults() *Config {
	out := *c
	if out.Driver == "" {
		out.Driver = DriverMySQL
	}
	if out.Host == "" {
		out.Host = defaultHost
	}
	if out.Port == 0 {
		switch out.Driver {
		case DriverPostgres:
			out.Port = defaultPostgresPort
		case DriverMySQL:
			out.Port = defaultMySQLPort
		}
	}
	if out.Charset == "" {
		out.Charset = defaultCharset
	}
	if out.MaxSize == 0 {
		out.MaxSize = defaultMaxSize
	}
	if out.MinSize == nil {
		out.MinSize = intPtr(min(defaultMinSize, out.MaxSize))
	}
	if out.ConnectTimeout == 0 {
		out.ConnectTimeout = defaultConnectTimeout
	}
	return &out
}

// MinConns returns the effective minimum number of open connections.
func (c *Config) MinConns() int {
	if c.MinSize == nil {
		return min(defaultMinSize, max(c.MaxSize, 1))
	}
	return *c.MinSize
}

func intPtr(n int) *int { return &n }

// AutocommitEnabled reports the effective autocommit setting.
func (c *Config) AutocommitEnabled() bool {
	return c.Autocommit == nil || *c.Autocommit
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(credentialsLevel, Config{})
	return v
}

// credentialsLevel requires user and password for server engines unless
// a DSN carries them.
func credentialsLevel(sl validator.StructLevel) {
	c := sl.Current().Interface().(Config)
	if c.Driver == DriverSQLite || c.DSN != "" {
		return
	}
	if c.User == "" {
		sl.ReportError(c.User, "User", "User", "required", "")
	}
	if c.Password == "" {
		sl.ReportError(c.Password, "Password", "Password", "required", "")
	}
}

// Validate checks the required keys and pool bounds.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errs.Wrap(errs.ErrKindInvalidInput, "invalid database config", err)
	}
	return nil
}
