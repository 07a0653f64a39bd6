package common

import (
	"os"
	"strconv"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Table    TableConfig
	Scoring  ScoringConfig
}

// DatabaseConfig holds the job store location.
type DatabaseConfig struct {
	Path string
}

// TableConfig holds table reconstruction tuning.
type TableConfig struct {
	// TemplatePath points at a column-template JSON document for a known
	// export format. Empty means the built-in template.
	TemplatePath string
	// RowTolerance is the Y band (in points) within which fragments are
	// treated as the same table row. Roughly one line height.
	RowTolerance float64
}

// ScoringConfig holds the confidence penalty factors and bucket bounds.
// The defaults mirror the tuned values in constants; they are exposed here
// so a deployment can adjust them without a rebuild.
type ScoringConfig struct {
	ErrorFactor    float64
	ShortRegFactor float64
	ZeroAWsFactor  float64
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path: getEnv("JOBS_DB_PATH", "jobs.db"),
		},
		Table: TableConfig{
			TemplatePath: getEnv("COLUMN_TEMPLATE_PATH", ""),
			RowTolerance: getEnvAsFloat("ROW_TOLERANCE", 6.0),
		},
		Scoring: ScoringConfig{
			ErrorFactor:    getEnvAsFloat("CONFIDENCE_ERROR_FACTOR", 0.7),
			ShortRegFactor: getEnvAsFloat("CONFIDENCE_SHORT_REG_FACTOR", 0.6),
			ZeroAWsFactor:  getEnvAsFloat("CONFIDENCE_ZERO_AWS_FACTOR", 0.5),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return NewAppError("CONFIG_ERROR", "JOBS_DB_PATH is required", ErrInvalidInput)
	}
	if c.Table.RowTolerance <= 0 {
		return NewAppError("CONFIG_ERROR", "ROW_TOLERANCE must be positive", ErrInvalidInput)
	}
	if c.Scoring.ErrorFactor <= 0 || c.Scoring.ErrorFactor > 1 ||
		c.Scoring.ShortRegFactor <= 0 || c.Scoring.ShortRegFactor > 1 ||
		c.Scoring.ZeroAWsFactor <= 0 || c.Scoring.ZeroAWsFactor > 1 {
		return NewAppError("CONFIG_ERROR", "confidence factors must be in (0,1]", ErrInvalidInput)
	}
	return nil
}
