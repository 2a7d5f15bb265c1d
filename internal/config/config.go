// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir         string // Base directory for the database and backups (always absolute)
	DatabasePath    string // SQLite database file path
	MappingFile     string // Optional YAML file with manual identifier->ticker mappings
	Port            int
	LogLevel        string
	DevMode         bool
	RefreshSchedule string // Cron expression for background market-data refresh ("" disables)

	// Price reconciliation
	LookbackDays int // Default lookback window when no start date is given

	// Backup upload (optional, S3-compatible storage)
	BackupBucket    string
	BackupEndpoint  string // Custom endpoint for S3-compatible providers (R2, MinIO)
	BackupRegion    string
	BackupAccessKey string
	BackupSecretKey string
	BackupKeep      int // Number of local backup archives to keep
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("FOLIO_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	// Always resolve to absolute path
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	// Ensure directory exists
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:         absDataDir,
		DatabasePath:    getEnv("FOLIO_DATABASE_PATH", filepath.Join(absDataDir, "portfolio.db")),
		MappingFile:     getEnv("FOLIO_MAPPING_FILE", ""),
		Port:            getEnvAsInt("FOLIO_PORT", 8000),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		DevMode:         getEnvAsBool("DEV_MODE", false),
		RefreshSchedule: getEnv("FOLIO_REFRESH_SCHEDULE", ""),
		LookbackDays:    getEnvAsInt("FOLIO_LOOKBACK_DAYS", 365),
		BackupBucket:    getEnv("FOLIO_BACKUP_BUCKET", ""),
		BackupEndpoint:  getEnv("FOLIO_BACKUP_ENDPOINT", ""),
		BackupRegion:    getEnv("FOLIO_BACKUP_REGION", "auto"),
		BackupAccessKey: getEnv("FOLIO_BACKUP_ACCESS_KEY", ""),
		BackupSecretKey: getEnv("FOLIO_BACKUP_SECRET_KEY", ""),
		BackupKeep:      getEnvAsInt("FOLIO_BACKUP_KEEP", 5),
	}

	return cfg, nil
}

// BackupEnabled reports whether S3 backup upload is configured
func (c *Config) BackupEnabled() bool {
	return c.BackupBucket != "" && c.BackupAccessKey != "" && c.BackupSecretKey != ""
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}
