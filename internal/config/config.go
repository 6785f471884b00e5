// Package config содержит логику чтения конфигурации сервиса учёта обетов.
package config

import (
	"errors"
	"flag"
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
)

const (
	defaultRunAddress = "localhost:8080"
	defaultSessionTTL = 24 * time.Hour
	defaultTimeZone   = "UTC"
)

// Config содержит параметры конфигурации сервиса.
type Config struct {
	RunAddress      string        `env:"RUN_ADDRESS"`
	DatabaseURI     string        `env:"DATABASE_URI"`
	SessionHashKey  string        `env:"SESSION_HASH_KEY"`
	SessionBlockKey string        `env:"SESSION_BLOCK_KEY"`
	SessionTTL      time.Duration `env:"SESSION_TTL"`
	SecureCookies   bool          `env:"SECURE_COOKIES"`
	// AdminMemberID назначается администратором при старте. uuid.Nil отключает назначение.
	AdminMemberID uuid.UUID `env:"ADMIN_MEMBER_ID"`
	// TimeZone определяет календарный «сегодня» при проверке дат платежей.
	TimeZone string `env:"TIMEZONE"`

	location *time.Location
}

// Location возвращает часовой пояс, загруженный из TimeZone.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	flag.StringVar(&cfg.RunAddress, "a", defaultRunAddress, "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.SessionHashKey, "k", "", "session cookie signing key")
	flag.StringVar(&cfg.SessionBlockKey, "b", "", "session cookie encryption key (16, 24 or 32 bytes)")
	flag.DurationVar(&cfg.SessionTTL, "ttl", defaultSessionTTL, "session lifetime")
	flag.BoolVar(&cfg.SecureCookies, "secure", false, "mark session cookies as Secure")
	flag.TextVar(&cfg.AdminMemberID, "admin", uuid.Nil, "member id to designate as administrator at startup")
	flag.StringVar(&cfg.TimeZone, "tz", defaultTimeZone, "IANA time zone used to validate payment dates")

	flag.Parse()

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = defaultRunAddress
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = defaultSessionTTL
	}
	if cfg.DatabaseURI == "" {
		return nil, errors.New("database URI is required")
	}
	if cfg.TimeZone == "" {
		cfg.TimeZone = defaultTimeZone
	}
	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", cfg.TimeZone, err)
	}
	cfg.location = loc

	return cfg, nil
}
