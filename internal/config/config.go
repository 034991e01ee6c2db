package config

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/cors"
)

// MailConfig holds the SMTP settings used to send login keys.
type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

// Configured reports whether enough is set to send mail over SMTP.
func (m MailConfig) Configured() bool {
	return m.Host != "" && m.From != ""
}

// Config holds the application configuration read from the environment.
type Config struct {
	Port             string
	Env              string
	DatabaseDriver   string
	DatabaseDSN      string
	LoginWindow      time.Duration
	TokenWindow      time.Duration
	DeliveryCooldown time.Duration
	MaxPendingGrants int
	Mail             MailConfig
	CORSOrigins      []string
	LoginRateLimit   float64
	LoginRateBurst   int
}

// IsProduction reports whether ENV is "production".
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

// Load reads the configuration from the environment. Variables that are
// unset fall back to development defaults.
func Load() (Config, error) {
	var errs []error

	cfg := Config{
		Port:             getEnv("PORT", "8080"),
		Env:              getEnv("ENV", "development"),
		DatabaseDriver:   getEnv("DATABASE_DRIVER", "sqlite"),
		DatabaseDSN:      getEnv("DATABASE_DSN", "file:bottle.db?_pragma=busy_timeout(5000)"),
		LoginWindow:      getDuration("LOGIN_WINDOW", 5*time.Minute, &errs),
		TokenWindow:      getDuration("TOKEN_WINDOW", 10*24*time.Hour, &errs),
		DeliveryCooldown: getDuration("DELIVERY_COOLDOWN", 8*time.Hour, &errs),
		MaxPendingGrants: getInt("MAX_PENDING_GRANTS", 3, &errs),
		Mail: MailConfig{
			Host:     getEnv("MAIL_HOST", ""),
			Port:     getInt("MAIL_PORT", 587, &errs),
			Username: getEnv("MAIL_USERNAME", ""),
			Password: getEnv("MAIL_PASSWORD", ""),
			From:     getEnv("MAIL_FROM", ""),
			FromName: getEnv("MAIL_FROM_NAME", "Msg in a Bottle"),
		},
		CORSOrigins:    splitList(getEnv("CORS_ORIGINS", "http://localhost:4200")),
		LoginRateLimit: getFloat("LOGIN_RATE_LIMIT", 1, &errs),
		LoginRateBurst: getInt("LOGIN_RATE_BURST", 5, &errs),
	}

	if cfg.DatabaseDriver != "mysql" && cfg.DatabaseDriver != "sqlite" {
		errs = append(errs, fmt.Errorf("DATABASE_DRIVER must be mysql or sqlite, got %q", cfg.DatabaseDriver))
	}
	if cfg.MaxPendingGrants < 1 {
		errs = append(errs, errors.New("MAX_PENDING_GRANTS must be at least 1"))
	}

	if cfg.IsProduction() {
		if !cfg.Mail.Configured() {
			errs = append(errs, errors.New("MAIL_HOST and MAIL_FROM must be set in production environment"))
		}
		if cfg.DatabaseDriver != "mysql" {
			errs = append(errs, errors.New("DATABASE_DRIVER must be mysql in production environment"))
		}
	}

	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	return cfg, nil
}

// CORSOptions returns the cross-origin policy for the API.
func (c Config) CORSOptions() cors.Options {
	return cors.Options{
		AllowedOrigins: c.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration, errs *[]error) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		*errs = append(*errs, fmt.Errorf("%s: invalid duration %q", key, v))
		return fallback
	}
	return d
}

func getInt(key string, fallback int, errs *[]error) int {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: invalid integer %q", key, v))
		return fallback
	}
	return n
}

func getFloat(key string, fallback float64, errs *[]error) float64 {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		*errs = append(*errs, fmt.Errorf("%s: invalid rate %q", key, v))
		return fallback
	}
	return f
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
