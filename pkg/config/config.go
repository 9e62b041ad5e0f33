// pkg/config/config.go
package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	// Database connection
	Postgres *PostgresConfig

	// Pipeline settings
	BatchSize        int           // fact rows per load transaction
	WorkerPoolSize   int           // 0 means one worker per CPU, always clamped to file count
	RetryDelay       time.Duration // pause before the single retry of a failed batch
	OperationTimeout time.Duration // bound on each database call and file read

	// Artifact locations
	OutputDir      string // cleaned CSVs, reject files and reports land here
	CleaningConfig string // path to the cleaning rules document; empty uses built-in defaults

	// Time dimension population range and fiscal calendar
	TimeRangeStart  string // inclusive, YYYY-MM-DD
	TimeRangeEnd    string // inclusive, YYYY-MM-DD
	FiscalYearStart int    // first month of the fiscal year, 1..12

	// Logging
	LogLevel  string
	LogFormat string

	postgresErr error // why database configuration was unavailable
}

// LoadConfig loads configuration from the environment, reading a local
// .env file first when one exists
func LoadConfig() (*Config, error) {
	// Missing .env is fine; real environments set variables directly
	_ = godotenv.Load()

	cfg := &Config{
		// Default values
		BatchSize:        getEnvAsInt("BATCH_SIZE", 500),
		WorkerPoolSize:   getEnvAsInt("WORKER_POOL_SIZE", 0),
		RetryDelay:       time.Duration(getEnvAsInt("RETRY_DELAY_MS", 1000)) * time.Millisecond,
		OperationTimeout: time.Duration(getEnvAsInt("OPERATION_TIMEOUT_SECONDS", 120)) * time.Second,
		OutputDir:        getEnv("OUTPUT_DIR", "out"),
		CleaningConfig:   getEnv("CLEANING_CONFIG", ""),
		TimeRangeStart:   getEnv("TIME_RANGE_START", "2015-01-01"),
		TimeRangeEnd:     getEnv("TIME_RANGE_END", "2025-12-31"),
		FiscalYearStart:  getEnvAsInt("FISCAL_YEAR_START_MONTH", 4),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "json"),
	}

	// Cleaning without a warehouse needs no database. Commands that do
	// load call RequireDatabase, which surfaces this error.
	pgConfig, err := LoadPostgresConfig()
	if err != nil {
		cfg.postgresErr = err
	} else {
		cfg.Postgres = pgConfig
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// RequireDatabase returns the PostgreSQL configuration or the reason it
// could not be loaded
func (c *Config) RequireDatabase() (*PostgresConfig, error) {
	if c.Postgres == nil {
		if c.postgresErr != nil {
			return nil, errors.New("failed to load PostgreSQL configuration: " + c.postgresErr.Error())
		}
		return nil, errors.New("postgreSQL configuration is required")
	}
	return c.Postgres, nil
}

// Validate ensures all required configuration is present and valid
func (c *Config) Validate() error {
	if c.BatchSize <= 0 {
		return errors.New("batch size must be positive")
	}

	if c.WorkerPoolSize < 0 {
		return errors.New("worker pool size cannot be negative")
	}

	if c.OperationTimeout <= 0 {
		return errors.New("operation timeout must be positive")
	}

	if c.FiscalYearStart < 1 || c.FiscalYearStart > 12 {
		return errors.New("fiscal year start month must be between 1 and 12")
	}

	start, err := time.Parse("2006-01-02", c.TimeRangeStart)
	if err != nil {
		return errors.New("time range start must be YYYY-MM-DD: " + err.Error())
	}
	end, err := time.Parse("2006-01-02", c.TimeRangeEnd)
	if err != nil {
		return errors.New("time range end must be YYYY-MM-DD: " + err.Error())
	}
	if end.Before(start) {
		return errors.New("time range end precedes time range start")
	}

	if c.LogFormat != "json" && c.LogFormat != "console" {
		return errors.New("log format must be json or console")
	}

	return nil
}

// Helper functions for environment variables
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
