package main

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/R3E-Network/opxpress/internal/app/runtime"
	"github.com/R3E-Network/opxpress/internal/config"
	"github.com/R3E-Network/opxpress/internal/platform/migrations"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back the database schema",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDatabase(cmd, migrations.Up)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back every applied migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDatabase(cmd, migrations.Down)
		},
	})
	return cmd
}

func withDatabase(cmd *cobra.Command, fn func(*sql.DB) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Database.Driver != config.DriverPostgres {
		return fmt.Errorf("migrations need STORE_DRIVER=%s", config.DriverPostgres)
	}
	db, err := runtime.OpenDatabase(cmd.Context(), cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := fn(db.DB); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "migrate %s: ok\n", cmd.Name())
	return nil
}
