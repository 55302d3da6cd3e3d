package cli

import (
	"fmt"

	"github.com/harun/ironclaw/internal/config"
	"github.com/spf13/cobra"
)

var (
	configureProvider string
	configureModel    string
	configureAPIKey   string
	configureCatalog  string
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Write the daemon configuration file",
	Long: `Write the IronClaw configuration file.
Starts from the existing configuration (or defaults), applies the given
flags, validates the result, and saves it.`,
	RunE: runConfigure,
}

func init() {
	configureCmd.Flags().StringVar(&configureProvider, "provider", "", "planning oracle provider (openai, anthropic)")
	configureCmd.Flags().StringVar(&configureModel, "model", "", "planning oracle model")
	configureCmd.Flags().StringVar(&configureAPIKey, "api-key", "", "planning oracle API key")
	configureCmd.Flags().StringVar(&configureCatalog, "catalog", "", "path to the capability catalog")
	rootCmd.AddCommand(configureCmd)
}

func runConfigure(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if configureProvider != "" {
		cfg.Oracle.Provider = configureProvider
	}
	if configureModel != "" {
		cfg.Oracle.Model = configureModel
	}
	if configureAPIKey != "" {
		cfg.Oracle.APIKey = configureAPIKey
	}
	if configureCatalog != "" {
		cfg.Catalog.Path = configureCatalog
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Save configuration
	loader := config.NewLoader(cfgFile)
	if err := loader.Save(cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	configPath := loader.GetConfigPath()
	fmt.Printf("Configuration saved to: %s\n", configPath)
	fmt.Println("You can now start IronClaw with: ironclaw start")

	return nil
}
