// Package config loads the minorm application config.
//
// Sources are applied in order, later ones winning:
//   - built-in defaults
//   - an optional YAML (.yaml, .yml) or TOML (.toml) file
//   - an optional .env file, which never overrides variables already set
//   - MINORM_ environment variables, with "__" separating nesting levels,
//     e.g. MINORM_DATABASE__MAX_SIZE=20 -> database.max_size
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/koustreak/minorm/internal/database"
	"github.com/koustreak/minorm/internal/errs"
	"github.com/koustreak/minorm/internal/logger"
	"github.com/pkg/errors"
	"go.yaml.in/yaml/v3"
)

const (
	envPrefix    = "MINORM_"
	envNesting   = "__"
	keyDelimiter = "."
)

// Config is the root application config.
type Config struct {
	Database database.Config `koanf:"database" yaml:"database" toml:"database"`
	Log      logger.Config   `koanf:"log" yaml:"log" toml:"log"`
	Server   ServerConfig    `koanf:"server" yaml:"server" toml:"server"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr            string        `koanf:"addr" yaml:"addr" toml:"addr" validate:"required"`
	ReadTimeout     time.Duration `koanf:"read_timeout" yaml:"read_timeout" toml:"read_timeout" validate:"gte=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" yaml:"write_timeout" toml:"write_timeout" validate:"gte=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" yaml:"shutdown_timeout" toml:"shutdown_timeout" validate:"gte=0"`
}

// Default returns the config used when no source sets a key.
func Default() *Config {
	return &Config{
		Log: *logger.DefaultConfig(),
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
	}
}

// Options selects the optional sources. Empty paths are skipped.
type Options struct {
	File    string
	EnvFile string
}

var validate = validator.New()

// Load builds, validates and returns the config.
func Load(opts Options) (*Config, error) {
	k := koanf.New(keyDelimiter)

	if opts.File != "" {
		m, err := readFile(opts.File)
		if err != nil {
			return nil, err
		}
		if err := k.Load(mapProvider(m), nil); err != nil {
			return nil, errors.Wrapf(err, "loading %s", opts.File)
		}
	}

	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil && !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "loading %s", opts.EnvFile)
		}
	}

	if err := k.Load(env.Provider(envPrefix, keyDelimiter, envKey), nil); err != nil {
		return nil, errors.Wrap(err, "loading environment")
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, errors.Wrap(err, "decoding config")
	}
	cfg.Database = *cfg.Database.WithDefaults()

	if err := cfg.Database.Validate(); err != nil {
		return nil, err
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "invalid config", err)
	}
	return cfg, nil
}

// envKey maps MINORM_DATABASE__MAX_SIZE to database.max_size.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	return strings.ReplaceAll(s, envNesting, keyDelimiter)
}

// readFile decodes a YAML or TOML file into a nested map.
func readFile(path string) (map[string]any, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading config file")
	}

	m := make(map[string]any)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &m)
	case ".toml":
		err = toml.Unmarshal(b, &m)
	default:
		return nil, errs.Newf(errs.ErrKindInvalidInput, "unsupported config file type %q", ext)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}
	return m, nil
}

// mapProvider feeds an already decoded map to koanf.
type mapProvider map[string]any

func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, errors.New("map provider does not support ReadBytes")
}

func (m mapProvider) Read() (map[string]any, error) {
	return m, nil
}
