package common

import (
	"errors"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JOBS_DB_PATH", "")
	t.Setenv("ROW_TOLERANCE", "")
	cfg := LoadConfig()
	if cfg.Database.Path != "jobs.db" {
		t.Errorf("db path = %q", cfg.Database.Path)
	}
	if cfg.Table.RowTolerance != 6.0 {
		t.Errorf("row tolerance = %v", cfg.Table.RowTolerance)
	}
	if cfg.Scoring.ErrorFactor != 0.7 || cfg.Scoring.ShortRegFactor != 0.6 || cfg.Scoring.ZeroAWsFactor != 0.5 {
		t.Errorf("scoring defaults = %+v", cfg.Scoring)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("JOBS_DB_PATH", "/var/lib/jobs/jobs.db")
	t.Setenv("ROW_TOLERANCE", "8.5")
	t.Setenv("CONFIDENCE_ERROR_FACTOR", "0.8")
	cfg := LoadConfig()
	if cfg.Database.Path != "/var/lib/jobs/jobs.db" {
		t.Errorf("db path = %q", cfg.Database.Path)
	}
	if cfg.Table.RowTolerance != 8.5 {
		t.Errorf("row tolerance = %v", cfg.Table.RowTolerance)
	}
	if cfg.Scoring.ErrorFactor != 0.8 {
		t.Errorf("error factor = %v", cfg.Scoring.ErrorFactor)
	}
}

func TestLoadConfigIgnoresMalformedFloats(t *testing.T) {
	t.Setenv("ROW_TOLERANCE", "tall")
	cfg := LoadConfig()
	if cfg.Table.RowTolerance != 6.0 {
		t.Errorf("row tolerance = %v, want default", cfg.Table.RowTolerance)
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty db path", func(c *Config) { c.Database.Path = "" }},
		{"zero tolerance", func(c *Config) { c.Table.RowTolerance = 0 }},
		{"factor above one", func(c *Config) { c.Scoring.ErrorFactor = 1.5 }},
		{"zero factor", func(c *Config) { c.Scoring.ZeroAWsFactor = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := LoadConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidInput) {
				t.Errorf("err = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestAppErrorUnwraps(t *testing.T) {
	err := NewAppError("DUPLICATE_WIP", "two rows share 12345", ErrDuplicateWIP)
	if !errors.Is(err, ErrDuplicateWIP) {
		t.Error("AppError must unwrap to its cause")
	}
	if got := err.Error(); got == "" {
		t.Error("empty error string")
	}
	if WrapError(nil, "context") != nil {
		t.Error("WrapError(nil) must stay nil")
	}
}
