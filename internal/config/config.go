// Package config loads application configuration from environment
// variables.  A .env file in the working directory is honoured when
// present so local development does not need exported variables.
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values.  Each field
// corresponds to an environment variable.  Base URLs for the two
// external services are optional: when one is empty the in-process
// stub backs that collaborator instead.
type Config struct {
	Env             string        // application environment (e.g. "dev", "prod")
	Port            string        // HTTP port to listen on
	DBUser          string        // database username
	DBPass          string        // database password (optional)
	DBHost          string        // database host address
	DBPort          string        // database port number
	DBName          string        // database name
	JWTSecret       string        // secret used to verify bearer tokens
	IdentityBaseURL string        // identity service base URL (empty -> stub)
	LeaveBaseURL    string        // application service base URL (empty -> stub)
	ServiceToken    string        // bearer token passed to the external services (optional)
	ExternalTimeout time.Duration // per-call timeout for external service requests
	AMQPURL         string        // RabbitMQ URL (empty -> library default resolution)
	LogLevel        string        // zap level: debug, info, warn, error
	LogFormat       string        // zap encoding: json or console
}

// Load reads configuration values from the environment and returns a
// Config.  Required variables are enforced by must() and missing
// values cause the program to exit with a fatal log message.
func Load() Config {
	_ = godotenv.Load() // best-effort; real env vars win

	return Config{
		Env:             must("APP_ENV"),
		Port:            must("APP_PORT"),
		DBUser:          must("DB_USER"),
		DBPass:          os.Getenv("DB_PASS"),
		DBHost:          must("DB_HOST"),
		DBPort:          must("DB_PORT"),
		DBName:          must("DB_NAME"),
		JWTSecret:       must("JWT_SECRET"),
		IdentityBaseURL: os.Getenv("IDENTITY_SERVICE_URL"),
		LeaveBaseURL:    os.Getenv("APPLICATION_SERVICE_URL"),
		ServiceToken:    os.Getenv("SERVICE_TOKEN"),
		ExternalTimeout: duration("EXTERNAL_CALL_TIMEOUT", 5*time.Second),
		AMQPURL:         os.Getenv("RABBITMQ_URL"),
		LogLevel:        getenv("LOG_LEVEL", "info"),
		LogFormat:       getenv("LOG_FORMAT", "json"),
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and
// exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

func duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Fatalf("invalid duration for %s: %q", key, v)
	}
	return d
}

// Helper functions reused by cache.go.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoi(s string) int {
	i, _ := strconv.Atoi(s)
	return i
}

func parseDur(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return time.Second
	}
	return d
}
