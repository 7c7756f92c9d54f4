// Package config implements the configuration loading lifecycle for the
// step-notification pipeline.
//
// The loading sequence is:
//  1. Enforce UTC timezone to prevent drift bugs in deadline math.
//  2. Load .env file via godotenv (non-fatal if absent).
//  3. Use envconfig to process struct tags and populate the Config struct.
//  4. Populate BuildInfo from linker-injected variables.
//  5. Validate the struct using go-playground/validator.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"stepnotify/internal/types"
)

// Load populates and validates the pipeline configuration from the
// environment. It returns a descriptive error when a required variable is
// missing or malformed; callers treat any error as fatal at startup.
func Load() (*types.Config, error) {
	time.Local = time.UTC

	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	var cfg types.Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to process environment: %w", err)
	}

	cfg.Build = NewBuildInfo()

	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return &cfg, nil
}
