// Package config loads application configuration from environment
// variables, optionally seeded from a .env file.
package config

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
	Env            string // application environment (e.g. "development", "production")
	Port           string // HTTP port to listen on
	DBUser         string // database username
	DBPass         string // database password (optional)
	DBHost         string // database host address
	DBPort         string // database port number
	DBName         string // database name
	JWTSecret      string // secret used to sign JWTs
	AccessTTLMin   int    // access token time-to-live in minutes
	RefreshTTLDays int    // refresh token time-to-live in days
	BcryptCost     int    // bcrypt cost for password hashing

	StoreTimeout  time.Duration // bound on every booking store call
	NotifyTimeout time.Duration // bound on one notification publish or delivery
	SlotLockTTL   time.Duration // lifetime of the Redis slot lease

	RabbitURL   string // AMQP URL; empty disables notifications
	NotifyQueue string // queue carrying booking notifications

	SendGridKey       string // SendGrid API key; empty logs emails instead
	SendGridFromEmail string
	SendGridFromName  string

	AutoCompleteCron string // cron spec for completing past sessions; empty (default) disables
}

// Load reads a .env file when present and then builds a Config from the
// environment.  Missing required variables are fatal.
func Load() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("config: .env not loaded: %v", err)
	}
	return Config{
		Env:            envStr("APP_ENV", "development"),
		Port:           envStr("APP_PORT", "8080"),
		DBUser:         must("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"), // empty allowed
		DBHost:         must("DB_HOST"),
		DBPort:         envStr("DB_PORT", "3306"),
		DBName:         must("DB_NAME"),
		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   envInt("ACCESS_TOKEN_TTL_MIN", 15),
		RefreshTTLDays: envInt("REFRESH_TOKEN_TTL_DAYS", 7),
		BcryptCost:     envInt("BCRYPT_COST", 12),

		StoreTimeout:  envDur("STORE_TIMEOUT", 5*time.Second),
		NotifyTimeout: envDur("NOTIFY_TIMEOUT", 10*time.Second),
		SlotLockTTL:   envDur("SLOT_LOCK_TTL", 5*time.Second),

		RabbitURL:   os.Getenv("RABBITMQ_URL"),
		NotifyQueue: envStr("NOTIFY_QUEUE", "booking.notifications"),

		SendGridKey:       os.Getenv("SENDGRID_API_KEY"),
		SendGridFromEmail: envStr("SENDGRID_FROM_EMAIL", "no-reply@tutorconnect.local"),
		SendGridFromName:  envStr("SENDGRID_FROM_NAME", "TutorConnect"),

		AutoCompleteCron: os.Getenv("AUTO_COMPLETE_CRON"),
	}
}

// IsProduction reports whether the app runs with production settings.
func (c Config) IsProduction() bool { return c.Env == "production" }

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	if n, err := strconv.Atoi(os.Getenv(k)); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	if dur, err := time.ParseDuration(os.Getenv(k)); err == nil {
		return dur
	}
	return d
}
