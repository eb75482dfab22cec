// Command opxpress runs the storefront API and its maintenance tasks.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/R3E-Network/opxpress/internal/config"
)

var (
	envFile string
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "opxpress",
	Short: "OpXpress storefront API",
	Long: `opxpress serves the storefront REST API (auth, catalog, cart, orders)
and provides schema migration and catalog seeding commands.

Configuration is read from the environment, optionally primed from a .env file.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newSeedCmd())
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFromFile(envFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
