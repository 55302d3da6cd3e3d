package cli

import (
	"fmt"

	"github.com/harun/ironclaw/internal/config"
	"github.com/harun/ironclaw/pkg/catalog"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and capability catalog",
	Long: `Validate the configuration file and perform a dry-run load of the
capability catalog without starting the daemon.`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	fmt.Println("Configuration OK")

	loader := catalog.NewLoader(zerolog.Nop())
	cat, err := loader.Load(cfg.Catalog.Path)
	if err != nil {
		return fmt.Errorf("catalog validation failed: %w", err)
	}
	fmt.Printf("Catalog OK: %d capabilities\n", cat.Len())

	for _, record := range cat.MissingArtifacts() {
		fmt.Printf("Warning: artifact missing for %s: %s\n", record.Name, record.BinaryPath)
	}

	return nil
}
