// Package config loads the engine configuration from contenttype.yaml and
// CONTENTTYPE_* environment variables.
package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/conduit-lang/contenttype/internal/storage"
)

// Database backends
const (
	DatabasePostgres = "postgres"
	DatabaseSQLite   = "sqlite"
	DatabaseRedis    = "redis"
)

// Config represents the engine configuration
type Config struct {
	Database  string `mapstructure:"database"`
	DBHost    string `mapstructure:"db_host"`
	DBPort    int    `mapstructure:"db_port"`
	DBName    string `mapstructure:"db_name"`
	DBUser    string `mapstructure:"db_user"`
	DBPass    string `mapstructure:"db_pass"`
	SQLDriver string `mapstructure:"sql_driver"`
	Prefix    string `mapstructure:"prefix"`

	Cache  CacheConfig  `mapstructure:"cache"`
	Redis  RedisConfig  `mapstructure:"redis"`
	Log    LogConfig    `mapstructure:"log"`
	Server ServerConfig `mapstructure:"server"`
	Auth   AuthConfig   `mapstructure:"auth"`
	Hooks  HooksConfig  `mapstructure:"hooks"`
}

// CacheConfig selects the read cache
type CacheConfig struct {
	Backend  string `mapstructure:"backend"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// RedisConfig is the connection of the document store
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// AuthConfig holds the HS256 secret used to verify bearer tokens. An empty
// secret disables authentication.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

// HooksConfig controls where side-effect hooks run
type HooksConfig struct {
	Async   bool `mapstructure:"async"`
	Workers int  `mapstructure:"workers"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database", DatabaseSQLite)
	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", 5432)
	v.SetDefault("db_name", "contenttype.db")
	v.SetDefault("db_user", "")
	v.SetDefault("db_pass", "")
	v.SetDefault("sql_driver", "pgx")
	v.SetDefault("prefix", "ct_")

	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.addr", "localhost:6379")
	v.SetDefault("cache.password", "")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.prefix", "contenttype:cache:")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "contenttype:")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 3000)

	v.SetDefault("auth.jwt_secret", "")

	v.SetDefault("hooks.async", false)
	v.SetDefault("hooks.workers", 4)
}

// Load reads path, or contenttype.yaml from the working directory when path
// is empty. A missing default file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("contenttype")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("CONTENTTYPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks backend names and the collection prefix
func (c *Config) Validate() error {
	switch c.Database {
	case DatabasePostgres:
		switch c.SQLDriver {
		case "pgx", "pq":
		default:
			return fmt.Errorf("sql_driver must be pgx or pq, got: %s", c.SQLDriver)
		}
	case DatabaseSQLite:
		if c.DBName == "" {
			return fmt.Errorf("db_name is required for sqlite")
		}
	case DatabaseRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required for the redis database")
		}
	default:
		return fmt.Errorf("database must be postgres, sqlite or redis, got: %s", c.Database)
	}

	switch c.Cache.Backend {
	case "memory":
	case "redis":
		if c.Cache.Addr == "" {
			return fmt.Errorf("cache.addr is required for the redis cache")
		}
	default:
		return fmt.Errorf("cache.backend must be memory or redis, got: %s", c.Cache.Backend)
	}

	if c.Prefix != "" {
		if err := storage.ValidateIdentifier(c.Prefix); err != nil {
			return fmt.Errorf("invalid prefix: %w", err)
		}
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got: %d", c.Server.Port)
	}
	if c.Hooks.Async && c.Hooks.Workers <= 0 {
		return fmt.Errorf("hooks.workers must be positive when hooks.async is set, got: %d", c.Hooks.Workers)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log.level: %w", err)
	}
	return nil
}

// DSN returns the connection string of the relational database
func (c *Config) DSN() string {
	if c.Database == DatabaseSQLite {
		return c.DBName
	}

	u := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(c.DBHost, strconv.Itoa(c.DBPort)),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=disable",
	}
	if c.DBUser != "" {
		u.User = url.UserPassword(c.DBUser, c.DBPass)
		if c.DBPass == "" {
			u.User = url.User(c.DBUser)
		}
	}
	return u.String()
}

// Addr returns the listen address of the HTTP server
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// NewLogger builds the process logger from the log section
func (c *Config) NewLogger() (*zap.Logger, error) {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}

	zc := zap.NewProductionConfig()
	if c.Log.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func parseLevel(s string) (zapcore.Level, error) {
	var level zapcore.Level
	err := level.UnmarshalText([]byte(s))
	return level, err
}
