// Package config loads application settings from defaults, an optional
// config file and well-known environment variables using viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store drivers understood by the server.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config is the full application configuration.
type Config struct {
	Port        string        `mapstructure:"port"`
	LogMode     string        `mapstructure:"log_mode"`
	StoreDriver string        `mapstructure:"store_driver"`
	LockTimeout time.Duration `mapstructure:"lock_timeout"`
	JWTSecret   string        `mapstructure:"jwt_secret"`
	DB          DBConfig      `mapstructure:"db"`
	Redis       RedisConfig   `mapstructure:"redis"`
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// RedisConfig enables enrollment event publishing when Addr is set.
type RedisConfig struct {
	Addr    string `mapstructure:"addr"`
	Channel string `mapstructure:"channel"`
}

// DSN builds a libpq-compatible connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

var envBindings = map[string]string{
	"port":          "PORT",
	"log_mode":      "LOG_MODE",
	"store_driver":  "STORE_DRIVER",
	"lock_timeout":  "LOCK_TIMEOUT",
	"jwt_secret":    "JWT_SECRET",
	"db.host":       "DB_HOST",
	"db.port":       "DB_PORT",
	"db.user":       "DB_USER",
	"db.password":   "DB_PASSWORD",
	"db.name":       "DB_NAME",
	"db.sslmode":    "DB_SSLMODE",
	"db.max_conns":  "DB_MAX_CONNS",
	"db.min_conns":  "DB_MIN_CONNS",
	"redis.addr":    "REDIS_ADDR",
	"redis.channel": "REDIS_CHANNEL",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("log_mode", "dev")
	v.SetDefault("store_driver", DriverPostgres)
	v.SetDefault("lock_timeout", 5*time.Second)
	v.SetDefault("jwt_secret", "")
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", "5432")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "postgres")
	v.SetDefault("db.name", "workshops")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_conns", 20)
	v.SetDefault("db.min_conns", 2)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.channel", "enrollments")
}

// Load reads configuration. path may be empty, in which case only defaults
// and environment variables are used.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	c.StoreDriver = strings.ToLower(strings.TrimSpace(c.StoreDriver))
	switch c.StoreDriver {
	case DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("unknown store driver %q", c.StoreDriver)
	}
	if c.LockTimeout <= 0 {
		return errors.New("lock_timeout must be positive")
	}
	if c.Port == "" {
		return errors.New("port is required")
	}
	return nil
}
