// Package cli provides the management commands for the analyzer.
package cli

import (
	"os"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"ipsentry/internal/blocklist"
	"ipsentry/internal/config"
	"ipsentry/internal/database"
)

var registry *blocklist.Registry

var rootCmd = &cobra.Command{
	Use:           "ipsentryctl",
	Short:         "Manage IP blocks and run analysis tasks",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}

		if err := godotenv.Load(); err != nil {
			log.Debug("No .env file found")
		}
		log.SetLevel(log.WarnLevel)

		config.ReadSettings()
		if _, err := database.SetupDB(); err != nil {
			return err
		}

		registry = blocklist.NewRegistry()
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}
