package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAPIKey validates an API key format
func (v *Validator) ValidateAPIKey(key string, provider string) error {
	if key == "" {
		return fmt.Errorf("%s API key cannot be empty", provider)
	}

	switch provider {
	case "anthropic":
		if !strings.HasPrefix(key, "sk-ant-") {
			return fmt.Errorf("invalid Anthropic API key format (should start with sk-ant-)")
		}
	case "openai":
		if !strings.HasPrefix(key, "sk-") {
			return fmt.Errorf("invalid OpenAI API key format (should start with sk-)")
		}
	}

	return nil
}

// ValidateMaxTokens validates max tokens value
func (v *Validator) ValidateMaxTokens(tokens int) error {
	if tokens <= 0 {
		return fmt.Errorf("max tokens must be positive, got %d", tokens)
	}
	if tokens > 200000 {
		return fmt.Errorf("max tokens too large (max 200000), got %d", tokens)
	}
	return nil
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateBudget validates an execution budget value
func (v *Validator) ValidateBudget(budget int64) error {
	if budget <= 0 {
		return fmt.Errorf("budget must be positive, got %d", budget)
	}
	return nil
}

// ValidateCronExpression validates a standard five-field cron expression
func (v *Validator) ValidateCronExpression(expr string) error {
	if strings.TrimSpace(expr) == "" {
		return fmt.Errorf("cron expression cannot be empty")
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(expr); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	return nil
}

// ValidateConfig performs comprehensive validation, collecting every problem
// rather than stopping at the first.
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errors []error

	if cfg.Oracle.Provider != "" {
		if err := v.ValidateAPIKey(cfg.Oracle.APIKey, cfg.Oracle.Provider); err != nil {
			errors = append(errors, fmt.Errorf("oracle: %w", err))
		}
	}
	if cfg.Oracle.MaxTokens != 0 {
		if err := v.ValidateMaxTokens(cfg.Oracle.MaxTokens); err != nil {
			errors = append(errors, fmt.Errorf("oracle: %w", err))
		}
	}

	if err := v.ValidateBudget(cfg.Engine.DefaultBudget); err != nil {
		errors = append(errors, fmt.Errorf("engine: %w", err))
	}
	if cfg.Engine.MemoryPages <= 0 {
		errors = append(errors, fmt.Errorf("engine: memory_pages must be positive, got %d", cfg.Engine.MemoryPages))
	}

	if strings.TrimSpace(cfg.Catalog.Path) == "" {
		errors = append(errors, fmt.Errorf("catalog: path is required"))
	}
	if cfg.Catalog.SweepSchedule != "" {
		if err := v.ValidateCronExpression(cfg.Catalog.SweepSchedule); err != nil {
			errors = append(errors, fmt.Errorf("catalog: %w", err))
		}
	}

	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errors = append(errors, err)
	}

	return errors
}
