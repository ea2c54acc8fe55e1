package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const insecureJWTSecret = "supersecretkey"

type Config struct {
	Addr                 string           `yaml:"addr"`
	JWTSecret            string           `yaml:"jwt_secret"`
	APITimeout           time.Duration    `yaml:"timeout"`
	DatabasePath         string           `yaml:"database_path"`
	TokenDuration        time.Duration    `yaml:"token_duration"`
	RefreshTokenDuration time.Duration    `yaml:"refresh_token_duration"`
	MigrateOnStart       bool             `yaml:"migrate_on_start"`
	LogLevel             string           `yaml:"log_level"`
	Workers              int              `yaml:"workers"`
	Overdue              OverdueConfig    `yaml:"overdue"`
	Pagination           PaginationConfig `yaml:"pagination"`
	Bootstrap            BootstrapConfig  `yaml:"bootstrap"`
}

type OverdueConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

type PaginationConfig struct {
	DefaultPageSize int `yaml:"default_page_size"`
	MaxPageSize     int `yaml:"max_page_size"`
}

// BootstrapConfig describes the admin created at start when no admin exists.
// An empty username disables it.
type BootstrapConfig struct {
	Username string `yaml:"username"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

func LoadConfig(path string) (*Config, error) {
	cfg := &Config{
		Addr:                 getEnv("FIELDOPS_ADDR", ":8080"),
		JWTSecret:            getEnv("FIELDOPS_JWT_SECRET", insecureJWTSecret),
		APITimeout:           getEnvDuration("FIELDOPS_TIMEOUT", 15*time.Second),
		DatabasePath:         getEnv("FIELDOPS_DATABASE_PATH", "fieldops.db"),
		TokenDuration:        getEnvDuration("FIELDOPS_TOKEN_DURATION", 1*time.Hour),
		RefreshTokenDuration: getEnvDuration("FIELDOPS_REFRESH_TOKEN_DURATION", 24*time.Hour),
		MigrateOnStart:       getEnvBool("FIELDOPS_MIGRATE_ON_START", false),
		LogLevel:             getEnv("FIELDOPS_LOG_LEVEL", "info"),
		Workers:              getEnvInt("FIELDOPS_WORKERS", 2),
		Overdue: OverdueConfig{
			Enabled:  getEnvBool("FIELDOPS_OVERDUE_ENABLED", true),
			Interval: getEnvDuration("FIELDOPS_OVERDUE_INTERVAL", 15*time.Minute),
		},
		Pagination: PaginationConfig{DefaultPageSize: 10, MaxPageSize: 100},
		Bootstrap: BootstrapConfig{
			Username: getEnv("FIELDOPS_BOOTSTRAP_USERNAME", ""),
			Email:    getEnv("FIELDOPS_BOOTSTRAP_EMAIL", ""),
			Password: getEnv("FIELDOPS_BOOTSTRAP_PASSWORD", ""),
		},
	}
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		if err := dec.Decode(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Validate fills zero values with defaults and rejects settings the server
// cannot run with. The default JWT secret is only accepted when
// FIELDOPS_ENV=development.
func (c *Config) Validate() error {
	var errs []error

	if c.JWTSecret == "" {
		errs = append(errs, errors.New("jwt_secret must be set"))
	}
	if c.JWTSecret == insecureJWTSecret && os.Getenv("FIELDOPS_ENV") != "development" {
		errs = append(errs, errors.New("jwt_secret uses the insecure default; set FIELDOPS_JWT_SECRET or FIELDOPS_ENV=development"))
	}
	if c.DatabasePath == "" {
		errs = append(errs, errors.New("database_path must be set"))
	}
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.APITimeout <= 0 {
		c.APITimeout = 15 * time.Second
	}
	if c.TokenDuration <= 0 {
		c.TokenDuration = time.Hour
	}
	if c.RefreshTokenDuration <= 0 {
		c.RefreshTokenDuration = 24 * time.Hour
	}
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.Overdue.Interval <= 0 {
		c.Overdue.Interval = 15 * time.Minute
	}
	if c.Pagination.MaxPageSize <= 0 {
		c.Pagination.MaxPageSize = 100
	}
	if c.Pagination.DefaultPageSize <= 0 {
		c.Pagination.DefaultPageSize = 10
	}
	if c.Pagination.DefaultPageSize > c.Pagination.MaxPageSize {
		errs = append(errs, fmt.Errorf("pagination.default_page_size %d exceeds max_page_size %d", c.Pagination.DefaultPageSize, c.Pagination.MaxPageSize))
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if c.Bootstrap.Username != "" && c.Bootstrap.Password == "" {
		errs = append(errs, errors.New("bootstrap.password must be set when bootstrap.username is"))
	}

	return errors.Join(errs...)
}

// SlogLevel parses LogLevel. An empty level is info.
func (c *Config) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return slog.LevelInfo, fmt.Errorf("log_level %q: %w", c.LogLevel, err)
	}
	return lvl, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return def
}

func getEnvInt(key string, def int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return def
}
