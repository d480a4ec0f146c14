package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"colorgame/database"
	"colorgame/domain/entities"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabaseURL  string
	DatabaseName string

	// Game configuration
	Durations           []entities.Duration // Buckets run by this process
	WinFee              decimal.Decimal     // Fraction withheld from winnings, in [0, 1)
	ManipulationEnabled bool                // Global default of the manipulation policy

	// Settlement configuration
	LockTimeout       time.Duration // Row lock wait bound per transaction
	SettlementRetries int           // Extra attempts for a conflicted resolve

	// Reconciliation configuration
	ReconcileSchedule string        // robfig/cron spec
	ReconcileGrace    time.Duration // How late a round may be before the sweep ends it

	// Event sink configuration
	EventBackend string // "nats", "redis" or "none"
	NATSServers  string // NATS server addresses (comma-separated)
	RedisAddr    string

	// Admin API configuration
	AdminAPIPort int

	// Metrics configuration
	OTelEnabled          bool
	OTelExporterType     string // "console" or "otlp"
	OTelOTLPEndpoint     string
	OTelServiceName      string
	OTelExportIntervalMs int

	// Logging configuration
	LogLevel  string
	LogFormat string // "text" or "json"

	// Environment
	Environment string // "development", "production" or "test"
}

var (
	instance *Config
	once     sync.Once
	mu       sync.Mutex // Protects instance for test setup
)

// Get returns the global configuration instance
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()

	if instance != nil {
		return instance
	}

	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			if os.Getenv("ENVIRONMENT") == "test" {
				instance = NewTestConfig()
			} else {
				panic(fmt.Sprintf("failed to load config: %v", err))
			}
		}
	})
	return instance
}

// GetDatabaseURL constructs the full database URL by combining base URL and database name
func (c *Config) GetDatabaseURL() string {
	return database.ConstructDatabaseURL(c.DatabaseURL, c.DatabaseName)
}

// load loads configuration from environment variables. A .env file in the
// working directory fills variables that are not already set.
func load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	config := &Config{
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		DatabaseName: os.Getenv("DATABASE_NAME"),

		Durations:           entities.AllDurations,
		WinFee:              decimal.Zero,
		ManipulationEnabled: os.Getenv("MANIPULATION_ENABLED") == "true",

		LockTimeout:       5 * time.Second,
		SettlementRetries: 2,

		ReconcileSchedule: getEnvWithDefault("RECONCILE_SCHEDULE", "@every 10s"),
		ReconcileGrace:    5 * time.Second,

		EventBackend: getEnvWithDefault("EVENT_BACKEND", "nats"),
		NATSServers:  getEnvWithDefault("NATS_SERVERS", "nats://nats:4222"),
		RedisAddr:    getEnvWithDefault("REDIS_ADDR", "redis:6379"),

		AdminAPIPort: 8089,

		OTelEnabled:          os.Getenv("OTEL_ENABLED") == "true",
		OTelExporterType:     getEnvWithDefault("OTEL_EXPORTER_TYPE", "console"),
		OTelOTLPEndpoint:     getEnvWithDefault("OTEL_OTLP_ENDPOINT", "localhost:4317"),
		OTelServiceName:      getEnvWithDefault("OTEL_SERVICE_NAME", "colorgame"),
		OTelExportIntervalMs: 30000,

		LogLevel:  getEnvWithDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvWithDefault("LOG_FORMAT", "text"),

		Environment: os.Getenv("ENVIRONMENT"),
	}

	if raw := os.Getenv("GAME_DURATIONS"); raw != "" {
		durations, err := parseDurations(raw)
		if err != nil {
			return nil, err
		}
		config.Durations = durations
	}

	if raw := os.Getenv("WIN_FEE"); raw != "" {
		fee, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid WIN_FEE: %w", err)
		}
		if fee.IsNegative() || fee.GreaterThanOrEqual(decimal.NewFromInt(1)) {
			return nil, fmt.Errorf("WIN_FEE must be in [0, 1), got %s", fee)
		}
		config.WinFee = fee
	}

	if err := parseDurationEnv("LOCK_TIMEOUT", &config.LockTimeout); err != nil {
		return nil, err
	}
	if err := parseDurationEnv("RECONCILE_GRACE", &config.ReconcileGrace); err != nil {
		return nil, err
	}

	if retries := os.Getenv("SETTLEMENT_RETRIES"); retries != "" {
		if parsed, err := strconv.Atoi(retries); err == nil && parsed >= 0 {
			config.SettlementRetries = parsed
		}
	}
	if port := os.Getenv("ADMIN_API_PORT"); port != "" {
		if parsed, err := strconv.Atoi(port); err == nil {
			config.AdminAPIPort = parsed
		}
	}
	if interval := os.Getenv("OTEL_EXPORT_INTERVAL_MS"); interval != "" {
		if parsed, err := strconv.Atoi(interval); err == nil && parsed > 0 {
			config.OTelExportIntervalMs = parsed
		}
	}

	switch config.EventBackend {
	case "nats", "redis", "none":
	default:
		return nil, fmt.Errorf("EVENT_BACKEND must be nats, redis or none, got %q", config.EventBackend)
	}

	if config.Environment == "" {
		config.Environment = "development"
	}

	if config.Environment != "test" {
		if config.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
		if config.DatabaseName != "" && strings.TrimSpace(config.DatabaseName) == "" {
			return nil, fmt.Errorf("DATABASE_NAME cannot be empty when provided")
		}
	}

	return config, nil
}

// parseDurations parses a comma-separated bucket list such as "30s,1m"
func parseDurations(raw string) ([]entities.Duration, error) {
	seen := make(map[entities.Duration]bool)
	var durations []entities.Duration
	for _, part := range strings.Split(raw, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		d, err := entities.ParseDuration(part)
		if err != nil {
			return nil, fmt.Errorf("invalid GAME_DURATIONS: %w", err)
		}
		if !seen[d] {
			seen[d] = true
			durations = append(durations, d)
		}
	}
	if len(durations) == 0 {
		return nil, fmt.Errorf("GAME_DURATIONS must name at least one bucket")
	}
	return durations, nil
}

func parseDurationEnv(key string, target *time.Duration) error {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*target = d
	return nil
}

// getEnvWithDefault returns the environment variable value or a default if not set
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Test helpers - only use in tests

// SetTestConfig overrides the global config instance for testing
func SetTestConfig(testConfig *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = testConfig
}

// ResetConfig resets the global config instance and sync.Once for testing
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig creates a minimal config suitable for unit tests
func NewTestConfig() *Config {
	return &Config{
		Environment:       "test",
		Durations:         entities.AllDurations,
		WinFee:            decimal.Zero,
		LockTimeout:       5 * time.Second,
		SettlementRetries: 2,
		ReconcileSchedule: "@every 10s",
		ReconcileGrace:    5 * time.Second,
		EventBackend:      "none",
		LogLevel:          "info",
		LogFormat:         "text",
	}
}
