package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr      string
	AdminAddr string
	DBPath    string

	LogLevel  string
	LogFormat string

	// Timezone is the IANA zone calendar dates are interpreted in. Empty
	// means the process local zone.
	Timezone string

	PostmarkToken string
	EmailFrom     string
	BaseURL       string

	SessionTTL      time.Duration
	ShutdownTimeout time.Duration
	CleanupInterval time.Duration

	// RateLimit is the number of mutating RPCs a caller may make per minute.
	RateLimit int

	// AllowedOrigins are host patterns accepted for websocket upgrades.
	AllowedOrigins []string
}

// Load reads configuration from defaults, an optional .env file, and the
// environment, in increasing precedence.
func Load() Config {
	cfg := Config{
		Addr:      ":8080",
		AdminAddr: "127.0.0.1:9090",
		DBPath:    "outofoffice.db",

		LogLevel:  "info",
		LogFormat: "text",

		EmailFrom: "noreply@example.com",
		BaseURL:   "http://localhost:8080",

		SessionTTL:      720 * time.Hour,
		ShutdownTimeout: 10 * time.Second,
		CleanupInterval: time.Hour,

		RateLimit: 30,
	}

	_ = godotenv.Load(".env")

	if v, ok := os.LookupEnv("OOO_ADDR"); ok && v != "" {
		cfg.Addr = v
	}
	if v, ok := os.LookupEnv("OOO_ADMIN_ADDR"); ok {
		cfg.AdminAddr = v
	}
	if v, ok := os.LookupEnv("OOO_DB_PATH"); ok && v != "" {
		cfg.DBPath = v
	}
	if v, ok := os.LookupEnv("OOO_LOG_LEVEL"); ok && v != "" {
		cfg.LogLevel = v
	}
	if v, ok := os.LookupEnv("OOO_LOG_FORMAT"); ok && v != "" {
		cfg.LogFormat = v
	}
	if v, ok := os.LookupEnv("OOO_TIMEZONE"); ok {
		cfg.Timezone = strings.TrimSpace(v)
	}
	if v, ok := os.LookupEnv("OOO_POSTMARK_TOKEN"); ok {
		cfg.PostmarkToken = v
	}
	if v, ok := os.LookupEnv("OOO_EMAIL_FROM"); ok && v != "" {
		cfg.EmailFrom = v
	}
	if v, ok := os.LookupEnv("OOO_BASE_URL"); ok && v != "" {
		cfg.BaseURL = strings.TrimRight(v, "/")
	}
	if v, ok := os.LookupEnv("OOO_SESSION_TTL"); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.SessionTTL = d
		}
	}
	if v, ok := os.LookupEnv("OOO_SHUTDOWN_TIMEOUT"); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.ShutdownTimeout = d
		}
	}
	if v, ok := os.LookupEnv("OOO_CLEANUP_INTERVAL"); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.CleanupInterval = d
		}
	}
	if v, ok := os.LookupEnv("OOO_RATE_LIMIT"); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RateLimit = n
		}
	}
	if v, ok := os.LookupEnv("OOO_ALLOWED_ORIGINS"); ok && v != "" {
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
			}
		}
	}

	return cfg
}

// Location resolves Timezone.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
