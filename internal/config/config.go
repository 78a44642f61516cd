package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DBUser         string
	DBPass         string
	DBHost         string
	DBPort         string
	DBName         string
	SSLMode        string
	RedisHost      string
	RedisPort      string
	NatsHost       string
	NatsPort       string
	ApiPort        string
	BusProvider    string
	GRPCHost       string
	GRPCPort       string
	GRPCListenPort string
	ApiEnabled     string
	WorkerProvider string
	CommandRetries int
	LogLevel       string
}

// New loads and validates configuration from environment variables.
// HTTP server is optional: if CASHBOOK_API_ENABLED != "true", ApiAddr() returns an error
// and the HTTP server simply won't start. The same applies to the NATS projection worker.
func New() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DBUser:         os.Getenv("CASHBOOK_POSTGRES_USER"),
		DBPass:         os.Getenv("CASHBOOK_POSTGRES_PASSWORD"),
		DBHost:         os.Getenv("CASHBOOK_POSTGRES_HOST"),
		DBPort:         getEnv("CASHBOOK_POSTGRES_PORT", "5432"),
		DBName:         os.Getenv("CASHBOOK_POSTGRES_DB"),
		SSLMode:        os.Getenv("CASHBOOK_POSTGRES_SSLMODE"),
		RedisHost:      os.Getenv("CASHBOOK_REDIS_HOST"),
		RedisPort:      os.Getenv("CASHBOOK_REDIS_PORT"),
		NatsHost:       os.Getenv("CASHBOOK_NATS_HOST"),
		NatsPort:       os.Getenv("CASHBOOK_NATS_PORT"),
		GRPCHost:       os.Getenv("CASHBOOK_GRPC_HOST"),
		GRPCPort:       os.Getenv("CASHBOOK_GRPC_PORT"),
		GRPCListenPort: getEnv("CASHBOOK_GRPC_LISTEN_PORT", "50051"),
		BusProvider:    os.Getenv("CASHBOOK_BUS_PROVIDER"),
		ApiPort:        os.Getenv("CASHBOOK_API_PORT"),
		ApiEnabled:     os.Getenv("CASHBOOK_API_ENABLED"),
		WorkerProvider: os.Getenv("CASHBOOK_WORKER_PROVIDER"),
		CommandRetries: getEnvInt("CASHBOOK_COMMAND_RETRIES", 3),
		LogLevel:       getEnv("CASHBOOK_LOG_LEVEL", "info"),
	}

	// Required: database
	if cfg.DBUser == "" || cfg.DBHost == "" || cfg.DBName == "" || cfg.SSLMode == "" {
		return nil, fmt.Errorf("missing required env for database: CASHBOOK_POSTGRES_USER/HOST/DB/SSLMODE")
	}

	// Required: redis
	if cfg.RedisHost == "" || cfg.RedisPort == "" {
		return nil, fmt.Errorf("missing required env for redis: CASHBOOK_REDIS_HOST/PORT")
	}

	// Required: bus provider
	if cfg.BusProvider == "" {
		return nil, fmt.Errorf("missing required env: CASHBOOK_BUS_PROVIDER (nats|grpc)")
	}
	if cfg.BusProvider != "nats" && cfg.BusProvider != "grpc" {
		return nil, fmt.Errorf("invalid bus provider %q, must be 'nats' or 'grpc'", cfg.BusProvider)
	}

	// Worker provider defaults to the bus provider.
	if cfg.WorkerProvider == "" {
		cfg.WorkerProvider = cfg.BusProvider
	}
	if cfg.WorkerProvider != "nats" && cfg.WorkerProvider != "grpc" {
		return nil, fmt.Errorf("invalid worker provider %q, must be 'nats' or 'grpc'", cfg.WorkerProvider)
	}
	// Events published on NATS are only projected by the NATS worker.
	if cfg.BusProvider == "nats" && cfg.WorkerProvider != "nats" {
		return nil, fmt.Errorf("worker provider %q cannot consume the nats bus, use 'nats'", cfg.WorkerProvider)
	}
	if cfg.BusProvider == "grpc" && (cfg.GRPCHost == "" || cfg.GRPCPort == "") {
		return nil, fmt.Errorf("missing required env for grpc bus: CASHBOOK_GRPC_HOST/PORT")
	}
	if cfg.BusProvider == "nats" && (cfg.NatsHost == "" || cfg.NatsPort == "") {
		return nil, fmt.Errorf("missing required env for nats bus: CASHBOOK_NATS_HOST/PORT")
	}

	if cfg.CommandRetries < 0 {
		return nil, fmt.Errorf("CASHBOOK_COMMAND_RETRIES must not be negative, got %d", cfg.CommandRetries)
	}
	if _, err := cfg.SlogLevel(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPass, c.DBHost, c.DBPort, c.DBName, c.SSLMode)
}

func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

func (c *Config) NatsAddr() string {
	return fmt.Sprintf("nats://%s:%s", c.NatsHost, c.NatsPort)
}

// GRPCAddr is the remote EventService used by the grpc bus.
func (c *Config) GRPCAddr() string {
	return fmt.Sprintf("%s:%s", c.GRPCHost, c.GRPCPort)
}

func (c *Config) GRPCListenAddr() string {
	return ":" + c.GRPCListenPort
}

// ApiAddr returns the HTTP listen address if the API is enabled.
// Returns an error if CASHBOOK_API_ENABLED is not "true"; callers should skip starting the HTTP server.
func (c *Config) ApiAddr() (string, error) {
	if c.ApiEnabled == "true" {
		if c.ApiPort == "" {
			return "", fmt.Errorf("CASHBOOK_API_PORT is required when CASHBOOK_API_ENABLED=true")
		}
		return ":" + c.ApiPort, nil
	}
	return "", fmt.Errorf("HTTP API is disabled (CASHBOOK_API_ENABLED != true)")
}

// BusAddr returns the connection address for the configured bus provider.
func (c *Config) BusAddr() string {
	if c.BusProvider == "nats" {
		return c.NatsAddr()
	}
	return c.GRPCAddr()
}

func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("invalid CASHBOOK_LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	return level, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var intVal int
	if _, err := fmt.Sscanf(val, "%d", &intVal); err != nil {
		return defaultVal
	}
	return intVal
}
