package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/R3E-Network/opxpress/internal/app/runtime"
	"github.com/R3E-Network/opxpress/internal/config"
	"github.com/R3E-Network/opxpress/internal/logging"
	"github.com/R3E-Network/opxpress/internal/platform/migrations"
)

func newServeCmd() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API until SIGINT or SIGTERM",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log := logging.New("opxpress", cfg.Logging.Level, cfg.Logging.Format)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			application, err := runtime.NewApplication(ctx, cfg, log)
			if err != nil {
				return err
			}
			if migrate && cfg.Database.Driver == config.DriverPostgres {
				db, err := runtime.OpenDatabase(ctx, cfg.Database)
				if err != nil {
					return err
				}
				err = migrations.Up(db.DB)
				db.Close()
				if err != nil {
					return err
				}
				log.Info("migrations applied")
			}

			runErr := application.Run(ctx)
			log.Info("shutting down")
			if err := application.Shutdown(context.Background()); err != nil {
				log.WithError(err).Error("shutdown failed")
			}
			if runErr != nil {
				return fmt.Errorf("serve: %w", runErr)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply pending migrations before serving")
	return cmd
}
