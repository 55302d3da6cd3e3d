package config

import (
	"encoding/json"
	"fmt"
)

// Config represents the main IronClaw configuration
type Config struct {
	// Capability catalog
	Catalog CatalogConfig `json:"catalog" mapstructure:"catalog"`

	// Planning oracle
	Oracle OracleConfig `json:"oracle" mapstructure:"oracle"`

	// Sandboxed execution engine
	Engine EngineConfig `json:"engine" mapstructure:"engine"`

	// HTTP gateway
	Server ServerConfig `json:"server" mapstructure:"server"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// CatalogConfig holds capability catalog configuration
type CatalogConfig struct {
	Path          string `json:"path" mapstructure:"path"`
	Watch         bool   `json:"watch" mapstructure:"watch"`
	SweepSchedule string `json:"sweep_schedule" mapstructure:"sweep_schedule"` // cron expression, empty disables
}

// OracleConfig holds planning oracle configuration
type OracleConfig struct {
	Provider  string `json:"provider" mapstructure:"provider"` // openai, anthropic
	Model     string `json:"model" mapstructure:"model"`
	APIKey    string `json:"api_key" mapstructure:"api_key"`
	BaseURL   string `json:"base_url" mapstructure:"base_url"`
	MaxTokens int    `json:"max_tokens" mapstructure:"max_tokens"`
}

// EngineConfig holds execution engine configuration
type EngineConfig struct {
	DefaultBudget int64 `json:"default_budget" mapstructure:"default_budget"` // compute units per invocation
	MemoryPages   int   `json:"memory_pages" mapstructure:"memory_pages"`     // 64KiB pages per sandbox
}

// ServerConfig holds gateway server configuration
type ServerConfig struct {
	Host         string `json:"host" mapstructure:"host"`
	Port         int    `json:"port" mapstructure:"port"`
	MaxBodyBytes int64  `json:"max_body_bytes" mapstructure:"max_body_bytes"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress  bool   `json:"compress" mapstructure:"compress"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Catalog: CatalogConfig{
			Path:          "tools/tools.json",
			Watch:         false,
			SweepSchedule: "",
		},
		Oracle: OracleConfig{
			Provider:  "openai",
			Model:     "gpt-4o",
			MaxTokens: 1024,
		},
		Engine: EngineConfig{
			DefaultBudget: 10_000_000,
			MemoryPages:   256,
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         3000,
			MaxBodyBytes: 1 << 20,
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSize:   100,
			MaxAge:    7,
			Compress:  true,
			Redaction: true,
		},
		DataDir: "",
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Catalog.Path == "" {
		return fmt.Errorf("catalog path is required")
	}

	if c.Oracle.Provider == "" {
		return fmt.Errorf("oracle provider is required")
	}
	validProviders := []string{"openai", "anthropic"}
	valid := false
	for _, vp := range validProviders {
		if c.Oracle.Provider == vp {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid oracle provider %s (must be: openai, anthropic)", c.Oracle.Provider)
	}
	if c.Oracle.Model == "" {
		return fmt.Errorf("oracle model is required")
	}
	if c.Oracle.APIKey == "" {
		return fmt.Errorf("oracle api_key is required")
	}

	if c.Engine.DefaultBudget <= 0 {
		return fmt.Errorf("engine default_budget must be positive, got %d", c.Engine.DefaultBudget)
	}
	if c.Engine.MemoryPages <= 0 {
		return fmt.Errorf("engine memory_pages must be positive, got %d", c.Engine.MemoryPages)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Catalog.SweepSchedule != "" {
		v := NewValidator()
		if err := v.ValidateCronExpression(c.Catalog.SweepSchedule); err != nil {
			return fmt.Errorf("invalid sweep_schedule: %w", err)
		}
	}

	return nil
}
