package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"mercator-hq/conduit/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Load and validate a configuration file without starting the service.

Every data source definition is checked for the fields its type requires.
All problems are reported at once, not just the first.

Examples:
  # Validate the default config
  conduit validate

  # Validate a specific file
  conduit validate --config /etc/conduit/config.yaml`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validateConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFileWithEnv(cfgFile)
	if err != nil {
		var verr config.ValidationError
		if errors.As(err, &verr) {
			fmt.Printf("✗ %s is invalid:\n", cfgFile)
			for _, fieldErr := range verr.Errors {
				fmt.Printf("  - %s: %s\n", fieldErr.Field, fieldErr.Message)
			}
			return fmt.Errorf("%d validation error(s)", len(verr.Errors))
		}
		return fmt.Errorf("failed to load config: %w", err)
	}

	enabled := 0
	for _, ds := range cfg.DataSources {
		if ds.IsEnabled() {
			enabled++
		}
	}

	fmt.Printf("✓ %s is valid\n", cfgFile)
	fmt.Printf("  data sources: %d (%d enabled)\n", len(cfg.DataSources), enabled)
	return nil
}
