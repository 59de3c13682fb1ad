package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultDatabaseDSN = "host=localhost user=postgres password=postgres dbname=cmobile port=5432 sslmode=disable"
	defaultCORSOrigins = "http://localhost:5173"

	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

type Config struct {
	HTTPPort      string
	DatabaseDSN   string
	StorageDriver string
	JWTSecret     string
	CORSOrigins   string
	LogLevel      string

	// Session & lockout
	SessionTTL       time.Duration
	SessionWarning   time.Duration
	LockoutThreshold int
	LockoutWindow    time.Duration

	// Scheduled jobs (cron syntax)
	SweepSchedule    string
	ReminderSchedule string

	// Optional notification fan-out. Empty URL disables it.
	NATSURL           string
	NATSSubjectPrefix string
}

// Load reads an optional env file (".env" when envFile is empty) and then the
// process environment. Missing env files are not an error.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
		}
	} else {
		_ = godotenv.Load()
	}

	cfg := &Config{
		HTTPPort:          getEnv("HTTP_PORT", "8080"),
		DatabaseDSN:       getEnv("DATABASE_DSN", defaultDatabaseDSN),
		StorageDriver:     getEnv("STORAGE_DRIVER", StorageDriverPostgres),
		JWTSecret:         getEnv("JWT_SECRET", ""),
		CORSOrigins:       getEnv("CORS_ALLOWED_ORIGINS", defaultCORSOrigins),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		SweepSchedule:     getEnv("SWEEP_SCHEDULE", "*/5 * * * *"),
		ReminderSchedule:  getEnv("REMINDER_SCHEDULE", "0 8 * * *"),
		NATSURL:           getEnv("NATS_URL", ""),
		NATSSubjectPrefix: getEnv("NATS_SUBJECT_PREFIX", "cmobile.notifications"),
	}

	var err error
	if cfg.SessionTTL, err = getDuration("SESSION_TTL", 8*time.Hour); err != nil {
		return nil, err
	}
	if cfg.SessionWarning, err = getDuration("SESSION_WARNING", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.LockoutWindow, err = getDuration("LOCKOUT_WINDOW", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.LockoutThreshold, err = getInt("LOCKOUT_THRESHOLD", 5); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.HTTPPort == "" {
		return errors.New("HTTP_PORT must be provided")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET must be provided")
	}
	if len(c.JWTSecret) < 32 {
		return errors.New("JWT_SECRET must be at least 32 characters")
	}
	if c.SessionTTL <= 0 {
		return errors.New("SESSION_TTL must be positive")
	}
	if c.SessionWarning < 0 || c.SessionWarning >= c.SessionTTL {
		return errors.New("SESSION_WARNING must be between 0 and SESSION_TTL")
	}
	if c.LockoutThreshold < 1 {
		return errors.New("LOCKOUT_THRESHOLD must be at least 1")
	}
	if c.LockoutWindow <= 0 {
		return errors.New("LOCKOUT_WINDOW must be positive")
	}
	switch c.StorageDriver {
	case StorageDriverPostgres, StorageDriverMemory:
	default:
		return fmt.Errorf("STORAGE_DRIVER %q is not supported", c.StorageDriver)
	}
	return nil
}

// UsesDefaultDSN reports whether the built-in development DSN is in effect.
func (c *Config) UsesDefaultDSN() bool {
	return c.DatabaseDSN == defaultDatabaseDSN
}

// UsesDefaultCORS reports whether the development CORS origin is in effect.
func (c *Config) UsesDefaultCORS() bool {
	return c.CORSOrigins == defaultCORSOrigins
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s is not a duration: %w", key, err)
	}
	return d, nil
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s is not an integer: %w", key, err)
	}
	return n, nil
}
