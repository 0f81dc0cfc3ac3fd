// Package config provides configuration management functionality.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Calendar source kinds
const (
	SourceFile   = "file"
	SourceS3     = "s3"
	SourceSQLite = "sqlite"
	SourceRules  = "rules"
)

// Config holds application configuration
type Config struct {
	DataDir   string // Base directory for calendar files and databases (always absolute)
	LogLevel  string
	LogPretty bool
	Port      int
	DevMode   bool
	Calendar  CalendarConfig
}

// CalendarConfig selects where the non-trading-day dataset comes from
type CalendarConfig struct {
	Source string // file, s3, sqlite or rules

	File string

	S3Bucket    string
	S3Key       string
	S3Endpoint  string // Custom endpoint for R2/MinIO; empty uses AWS
	S3Region    string
	S3AccessKey string
	S3SecretKey string

	SQLitePath string
	ImportFile string // CSV imported into sqlite at startup

	RulesFromYear int
	RulesToYear   int

	ReloadSchedule string // cron schedule with seconds field; empty disables scheduled reloads
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("TRADECAL_DATA_DIR", "./data")

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	year := time.Now().Year()
	cfg := &Config{
		DataDir:   absDataDir,
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogPretty: getEnvAsBool("LOG_PRETTY", true),
		Port:      getEnvAsInt("PORT", 8080),
		DevMode:   getEnvAsBool("DEV_MODE", false),
		Calendar: CalendarConfig{
			Source:         getEnv("CALENDAR_SOURCE", SourceFile),
			File:           getEnv("CALENDAR_FILE", filepath.Join(absDataDir, "non_trading_days.csv")),
			S3Bucket:       getEnv("CALENDAR_S3_BUCKET", ""),
			S3Key:          getEnv("CALENDAR_S3_KEY", "non_trading_days.csv"),
			S3Endpoint:     getEnv("CALENDAR_S3_ENDPOINT", ""),
			S3Region:       getEnv("CALENDAR_S3_REGION", "auto"),
			S3AccessKey:    getEnv("CALENDAR_S3_ACCESS_KEY", ""),
			S3SecretKey:    getEnv("CALENDAR_S3_SECRET_KEY", ""),
			SQLitePath:     getEnv("CALENDAR_SQLITE_PATH", filepath.Join(absDataDir, "calendar.db")),
			ImportFile:     getEnv("CALENDAR_IMPORT_FILE", ""),
			RulesFromYear:  getEnvAsInt("CALENDAR_RULES_FROM_YEAR", year),
			RulesToYear:    getEnvAsInt("CALENDAR_RULES_TO_YEAR", year+1),
			ReloadSchedule: getEnv("CALENDAR_RELOAD_SCHEDULE", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the selected source has what it needs
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Port)
	}

	cal := c.Calendar
	switch cal.Source {
	case SourceFile:
		if cal.File == "" {
			return errors.New("CALENDAR_FILE is required for the file source")
		}
	case SourceS3:
		if cal.S3Bucket == "" || cal.S3Key == "" {
			return errors.New("CALENDAR_S3_BUCKET and CALENDAR_S3_KEY are required for the s3 source")
		}
		if cal.S3AccessKey == "" || cal.S3SecretKey == "" {
			return errors.New("CALENDAR_S3_ACCESS_KEY and CALENDAR_S3_SECRET_KEY are required for the s3 source")
		}
	case SourceSQLite:
		if cal.SQLitePath == "" {
			return errors.New("CALENDAR_SQLITE_PATH is required for the sqlite source")
		}
	case SourceRules:
		if cal.RulesToYear < cal.RulesFromYear {
			return fmt.Errorf("CALENDAR_RULES_TO_YEAR %d is before CALENDAR_RULES_FROM_YEAR %d",
				cal.RulesToYear, cal.RulesFromYear)
		}
	default:
		return fmt.Errorf("unknown CALENDAR_SOURCE %q", cal.Source)
	}

	if cal.ReloadSchedule != "" {
		parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
		if _, err := parser.Parse(cal.ReloadSchedule); err != nil {
			return fmt.Errorf("invalid CALENDAR_RELOAD_SCHEDULE %q: %w", cal.ReloadSchedule, err)
		}
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
