package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "tools/tools.json", cfg.Catalog.Path)
	assert.False(t, cfg.Catalog.Watch)
	assert.Equal(t, "openai", cfg.Oracle.Provider)
	assert.Equal(t, "gpt-4o", cfg.Oracle.Model)
	assert.Equal(t, int64(10_000_000), cfg.Engine.DefaultBudget)
	assert.Equal(t, 256, cfg.Engine.MemoryPages)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Redaction)
}

func TestConfigString(t *testing.T) {
	cfg := DefaultConfig()
	s := cfg.String()

	assert.True(t, strings.Contains(s, `"catalog"`))
	assert.True(t, strings.Contains(s, `"oracle"`))
	assert.True(t, strings.Contains(s, `"engine"`))
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.Oracle.APIKey = "sk-test"
		return cfg
	}

	t.Run("valid config", func(t *testing.T) {
		require.NoError(t, valid().Validate())
	})

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing catalog path",
			mutate:  func(c *Config) { c.Catalog.Path = "" },
			wantErr: "catalog path",
		},
		{
			name:    "missing oracle provider",
			mutate:  func(c *Config) { c.Oracle.Provider = "" },
			wantErr: "oracle provider",
		},
		{
			name:    "unknown oracle provider",
			mutate:  func(c *Config) { c.Oracle.Provider = "gemini" },
			wantErr: "invalid oracle provider",
		},
		{
			name:    "missing oracle model",
			mutate:  func(c *Config) { c.Oracle.Model = "" },
			wantErr: "oracle model",
		},
		{
			name:    "missing api key",
			mutate:  func(c *Config) { c.Oracle.APIKey = "" },
			wantErr: "api_key",
		},
		{
			name:    "non-positive budget",
			mutate:  func(c *Config) { c.Engine.DefaultBudget = 0 },
			wantErr: "default_budget",
		},
		{
			name:    "non-positive memory pages",
			mutate:  func(c *Config) { c.Engine.MemoryPages = -1 },
			wantErr: "memory_pages",
		},
		{
			name:    "bad port",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "port",
		},
		{
			name:    "bad sweep schedule",
			mutate:  func(c *Config) { c.Catalog.SweepSchedule = "not a cron" },
			wantErr: "sweep_schedule",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
