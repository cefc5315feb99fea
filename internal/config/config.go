package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"khata/internal/log"
)

// Storage backends
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

type Config struct {
	// HTTP Server
	Port string

	// Storage
	DataBackend  string
	DataDir      string
	SQLiteDBPath string
	// SeedFile preloads the memory backend from a backup document.
	SeedFile string

	// AMQP events, disabled when AMQPURL is empty
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// URL import
	ImportTimeout  time.Duration
	ImportMaxBytes int64

	// Dashboard
	DashboardCacheTTL time.Duration
	RecentLimit       int
	DebtorsLimit      int

	LogLevel string
}

func Load() *Config {
	return &Config{
		Port: getEnv("PORT", "8081"),

		DataBackend:  getEnv("DATA_BACKEND", BackendFile),
		DataDir:      getEnv("DATA_DIR", "./data"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/khata.db"),
		SeedFile:     getEnv("SEED_FILE", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "khata"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "ledger_events"),

		ImportTimeout:  getEnvDuration("IMPORT_TIMEOUT", 15*time.Second),
		ImportMaxBytes: int64(getEnvInt("IMPORT_MAX_BYTES", 10<<20)),

		DashboardCacheTTL: getEnvDuration("DASHBOARD_CACHE_TTL", 30*time.Second),
		RecentLimit:       getEnvInt("RECENT_LIMIT", 10),
		DebtorsLimit:      getEnvInt("DEBTORS_LIMIT", 5),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	validBackends := []string{BackendMemory, BackendFile, BackendSQLite}
	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case BackendFile:
		if c.DataDir == "" {
			errors = append(errors, "data directory cannot be empty when using file backend")
		} else if err := ensureDir(c.DataDir); err != nil {
			errors = append(errors, fmt.Sprintf("cannot create data directory '%s': %v", c.DataDir, err))
		}
	case BackendSQLite:
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if err := ensureDir(dir); err != nil {
				errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
			}
		}
	case BackendMemory:
		if c.SeedFile != "" {
			if _, err := os.Stat(c.SeedFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("seed file does not exist: %s", c.SeedFile))
			}
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.ImportTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid import timeout %v: must be at least 1 second", c.ImportTimeout))
	} else if c.ImportTimeout > 5*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid import timeout %v: must be at most 5 minutes", c.ImportTimeout))
	}
	if c.ImportMaxBytes < 1024 {
		errors = append(errors, fmt.Sprintf("invalid import size limit %d: must be at least 1024 bytes", c.ImportMaxBytes))
	}

	if c.DashboardCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid dashboard cache TTL %v: must not be negative", c.DashboardCacheTTL))
	}
	if c.RecentLimit < 1 || c.RecentLimit > 100 {
		errors = append(errors, fmt.Sprintf("invalid recent limit %d: must be between 1 and 100", c.RecentLimit))
	}
	if c.DebtorsLimit < 1 || c.DebtorsLimit > 100 {
		errors = append(errors, fmt.Sprintf("invalid debtors limit %d: must be between 1 and 100", c.DebtorsLimit))
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func ensureDir(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0755)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
