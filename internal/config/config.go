// Package config loads server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds every runtime setting of the server.
type Config struct {
	Env      string `mapstructure:"ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	DataDir  string `mapstructure:"DATA_DIR"`

	ShopTimezone string `mapstructure:"SHOP_TIMEZONE"`

	JWTSecret string        `mapstructure:"JWT_SECRET"`
	JWTTTL    time.Duration `mapstructure:"JWT_TTL"`

	IdPBaseURL string        `mapstructure:"IDP_BASE_URL"`
	IdPAPIKey  string        `mapstructure:"IDP_API_KEY"`
	IdPTimeout time.Duration `mapstructure:"IDP_TIMEOUT"`

	RemindersEnabled      bool   `mapstructure:"REMINDERS_ENABLED"`
	ReminderDayAheadCron  string `mapstructure:"REMINDER_DAY_AHEAD_CRON"`
	ReminderHourAheadCron string `mapstructure:"REMINDER_HOUR_AHEAD_CRON"`

	BookingRateRPS   float64 `mapstructure:"BOOKING_RATE_RPS"`
	BookingRateBurst int     `mapstructure:"BOOKING_RATE_BURST"`
}

var keys = []string{
	"ENV", "LOG_LEVEL", "HTTP_ADDR", "DATA_DIR", "SHOP_TIMEZONE",
	"JWT_SECRET", "JWT_TTL",
	"IDP_BASE_URL", "IDP_API_KEY", "IDP_TIMEOUT",
	"REMINDERS_ENABLED", "REMINDER_DAY_AHEAD_CRON", "REMINDER_HOUR_AHEAD_CRON",
	"BOOKING_RATE_RPS", "BOOKING_RATE_BURST",
}

// Load reads a .env file when one exists, then the process environment.
// Variables already set in the environment win over the file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("ENV", "production")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("HTTP_ADDR", ":8099")
	v.SetDefault("DATA_DIR", "./data")
	v.SetDefault("SHOP_TIMEZONE", "UTC")
	v.SetDefault("JWT_TTL", "24h")
	v.SetDefault("IDP_TIMEOUT", "10s")
	v.SetDefault("REMINDERS_ENABLED", true)
	v.SetDefault("REMINDER_DAY_AHEAD_CRON", "0 0 * * * *")
	v.SetDefault("REMINDER_HOUR_AHEAD_CRON", "0 */15 * * * *")
	v.SetDefault("BOOKING_RATE_RPS", 5)
	v.SetDefault("BOOKING_RATE_BURST", 10)

	// Unmarshal only sees keys viper knows about.
	for _, k := range keys {
		v.BindEnv(k)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration is usable by the server.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive, got %s", c.JWTTTL)
	}
	if _, err := time.LoadLocation(c.ShopTimezone); err != nil {
		return fmt.Errorf("SHOP_TIMEZONE %q: %w", c.ShopTimezone, err)
	}
	if c.BookingRateRPS <= 0 || c.BookingRateBurst <= 0 {
		return fmt.Errorf("BOOKING_RATE_RPS and BOOKING_RATE_BURST must be positive")
	}
	return nil
}

// IsDev reports whether the server runs in development mode.
func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Location returns the shop time zone. Call Validate first.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.ShopTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DatabasePath returns the SQLite file inside the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "servio.db")
}
