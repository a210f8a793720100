// Package config loads server settings: defaults, then environment
// variables, then command-line flags.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Драйверы хранилища
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds runtime settings of the API server.
type Config struct {
	Address         string
	StorageDriver   string
	DatabaseDSN     string
	AccessSecret    string
	RefreshSecret   string
	CookieDomain    string
	LogLevel        string
	LogFormat       string
	CORSOrigin      string
	AccessTTL       time.Duration
	RefreshTTL      time.Duration
	CleanupInterval time.Duration
	ShutdownTimeout time.Duration
	RateLimitAuth   int
	CookieSecure    bool
	TrustProxy      bool
}

// LoadDefaults заполняет значения для локальной разработки.
// Секреты JWT по умолчанию пустые и должны быть заданы явно
func (c *Config) LoadDefaults() {
	c.Address = ":3000"
	c.StorageDriver = DriverSQLite
	c.DatabaseDSN = "web-beat.db"
	c.AccessTTL = 15 * time.Minute
	c.RefreshTTL = 7 * 24 * time.Hour
	c.CleanupInterval = time.Hour
	c.ShutdownTimeout = 10 * time.Second
	c.LogLevel = "info"
	c.LogFormat = "json"
	c.RateLimitAuth = 10
	c.CORSOrigin = "http://localhost:5173"
}

// Load builds a Config from defaults, the environment and args (without the program name).
func Load(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := cfg.parseEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.parseFlags(args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// parseEnv переопределяет значения переменными окружения
func (c *Config) parseEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	str("ADDRESS", &c.Address)
	str("STORAGE_DRIVER", &c.StorageDriver)
	str("DATABASE_DSN", &c.DatabaseDSN)
	str("JWT_ACCESS_SECRET", &c.AccessSecret)
	str("JWT_REFRESH_SECRET", &c.RefreshSecret)
	str("COOKIE_DOMAIN", &c.CookieDomain)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)
	str("CORS_ORIGIN", &c.CORSOrigin)

	durations := []struct {
		dst *time.Duration
		key string
	}{
		{&c.AccessTTL, "JWT_ACCESS_TTL"},
		{&c.RefreshTTL, "JWT_REFRESH_TTL"},
		{&c.CleanupInterval, "TOKEN_CLEANUP_INTERVAL"},
		{&c.ShutdownTimeout, "SHUTDOWN_TIMEOUT"},
	}
	for _, d := range durations {
		v, ok := lookup(d.key)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		parsed, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s: %w", d.key, err)
		}
		*d.dst = parsed
	}

	if v, ok := lookup("RATE_LIMIT_AUTH"); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid RATE_LIMIT_AUTH: %w", err)
		}
		c.RateLimitAuth = n
	}

	bools := []struct {
		dst *bool
		key string
	}{
		{&c.CookieSecure, "COOKIE_SECURE"},
		{&c.TrustProxy, "TRUST_PROXY"},
	}
	for _, b := range bools {
		v, ok := lookup(b.key)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		parsed, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s: %w", b.key, err)
		}
		*b.dst = parsed
	}

	return nil
}

// parseFlags переопределяет значения флагами командной строки
//
//	-a string    адрес HTTP сервера
//	-driver      sqlite | postgres
//	-d string    DSN базы данных (путь к файлу для sqlite)
//	-log-level   debug | info | warn | error
//	-log-format  json | text
func (c *Config) parseFlags(args []string) error {
	fs := flag.NewFlagSet("web-beat-api", flag.ContinueOnError)

	fs.StringVar(&c.Address, "a", c.Address, "address and port to run server")
	fs.StringVar(&c.StorageDriver, "driver", c.StorageDriver, "storage driver: sqlite or postgres")
	fs.StringVar(&c.DatabaseDSN, "d", c.DatabaseDSN, "database DSN or sqlite file path")
	fs.DurationVar(&c.AccessTTL, "access-ttl", c.AccessTTL, "access token lifetime")
	fs.DurationVar(&c.RefreshTTL, "refresh-ttl", c.RefreshTTL, "refresh token lifetime")
	fs.DurationVar(&c.CleanupInterval, "cleanup-interval", c.CleanupInterval, "expired refresh token cleanup interval")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level")
	fs.StringVar(&c.LogFormat, "log-format", c.LogFormat, "log format: json or text")
	fs.StringVar(&c.CORSOrigin, "cors-origin", c.CORSOrigin, "allowed front-end origin")
	fs.IntVar(&c.RateLimitAuth, "rate-limit-auth", c.RateLimitAuth, "login/register requests per minute per IP")
	fs.BoolVar(&c.CookieSecure, "cookie-secure", c.CookieSecure, "set Secure attribute on session cookies")
	fs.BoolVar(&c.TrustProxy, "trust-proxy", c.TrustProxy, "take client IP from X-Forwarded-For/X-Real-IP for rate limiting")

	return fs.Parse(args)
}

// Validate проверяет согласованность настроек
func (c *Config) Validate() error {
	var errs []error

	if c.AccessSecret == "" {
		errs = append(errs, errors.New("JWT_ACCESS_SECRET is required"))
	}
	if c.RefreshSecret == "" {
		errs = append(errs, errors.New("JWT_REFRESH_SECRET is required"))
	}
	if c.AccessSecret != "" && c.AccessSecret == c.RefreshSecret {
		errs = append(errs, errors.New("access and refresh secrets must differ"))
	}
	if c.AccessTTL <= 0 {
		errs = append(errs, errors.New("access token TTL must be positive"))
	}
	if c.RefreshTTL <= 0 {
		errs = append(errs, errors.New("refresh token TTL must be positive"))
	}
	if c.RefreshTTL < c.AccessTTL {
		errs = append(errs, errors.New("refresh token TTL must not be shorter than access token TTL"))
	}
	if c.StorageDriver != DriverSQLite && c.StorageDriver != DriverPostgres {
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.StorageDriver))
	}
	if c.DatabaseDSN == "" {
		errs = append(errs, errors.New("DATABASE_DSN is required"))
	}
	if c.CleanupInterval <= 0 {
		errs = append(errs, errors.New("token cleanup interval must be positive"))
	}
	if c.RateLimitAuth < 0 {
		errs = append(errs, errors.New("RATE_LIMIT_AUTH must not be negative"))
	}

	return errors.Join(errs...)
}
