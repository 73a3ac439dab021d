package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Default values for Config. Defaults are explicit so session behavior is
// reproducible across runs.
const (
	DefaultMaxFilesPerSession  = 10
	DefaultMaxLinesPerSession  = 600
	DefaultMaxTestsPerSession  = 25
	DefaultMaxTokenFraction    = 0.90
	DefaultContextWindowTokens = 200_000
	DefaultVerifyCommand       = "go test ./..."
)

// DefaultBudget returns budget thresholds with default values.
func DefaultBudget() Budget {
	return Budget{
		MaxFilesPerSession:  DefaultMaxFilesPerSession,
		MaxLinesPerSession:  DefaultMaxLinesPerSession,
		MaxTestsPerSession:  DefaultMaxTestsPerSession,
		MaxTokenFraction:    DefaultMaxTokenFraction,
		ContextWindowTokens: DefaultContextWindowTokens,
	}
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Budget: DefaultBudget(),
		Commands: Commands{
			Verify: DefaultVerifyCommand,
		},
	}
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// IsValidationError checks if an error is a ValidationError.
func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

// LoadConfig reads and parses .stride/config.yaml from the given base path.
// If the file doesn't exist, returns default config. Applies defaults for
// any missing fields.
func LoadConfig(basePath string) (*Config, error) {
	configPath := filepath.Join(basePath, ".stride", "config.yaml")

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := DefaultConfig()
			return &cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := ValidateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ValidateConfig checks that all config values are valid.
func ValidateConfig(cfg *Config) error {
	if cfg.Budget.MaxFilesPerSession <= 0 {
		return ValidationError{Field: "budget.max_files_per_session", Message: "must be positive"}
	}
	if cfg.Budget.MaxLinesPerSession <= 0 {
		return ValidationError{Field: "budget.max_lines_per_session", Message: "must be positive"}
	}
	if cfg.Budget.MaxTestsPerSession <= 0 {
		return ValidationError{Field: "budget.max_tests_per_session", Message: "must be positive"}
	}
	if cfg.Budget.MaxTokenFraction <= 0 || cfg.Budget.MaxTokenFraction > 1 {
		return ValidationError{Field: "budget.max_token_fraction", Message: "must be in (0, 1]"}
	}
	if cfg.Budget.ContextWindowTokens <= 0 {
		return ValidationError{Field: "budget.context_window_tokens", Message: "must be positive"}
	}
	return nil
}

// WriteDefaultConfig writes a default config.yaml under .stride/ at the
// given base path. Used by `stride init`; refuses to overwrite.
func WriteDefaultConfig(basePath string) error {
	dir := filepath.Join(basePath, ".stride")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create .stride directory: %w", err)
	}

	configPath := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config already exists: %s", configPath)
	}

	cfg := DefaultConfig()
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
