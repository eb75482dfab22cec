package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/R3E-Network/opxpress/internal/app/runtime"
	"github.com/R3E-Network/opxpress/internal/app/services/catalog"
	"github.com/R3E-Network/opxpress/internal/config"
	"github.com/R3E-Network/opxpress/internal/logging"
)

func newSeedCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upsert products from a YAML catalog",
		Long: `Upsert products from a YAML catalog into the postgres store.

The catalog cache is invalidated after the upsert. With REDIS_URL set that
cache is shared and running servers see the new catalog immediately. Servers
using the in-process cache keep serving cached catalog reads until their
entries expire, at most CATALOG_CACHE_TTL after the seed.`,
		Example: `  opxpress seed --file configs/catalog.yaml`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			products, err := catalog.LoadFile(file)
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Database.Driver != config.DriverPostgres {
				return fmt.Errorf("seeding needs STORE_DRIVER=%s", config.DriverPostgres)
			}
			log := logging.New("opxpress-seed", cfg.Logging.Level, cfg.Logging.Format)

			application, err := runtime.NewApplication(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer application.Shutdown(cmd.Context())

			n, err := application.App().Catalog.Seed(cmd.Context(), products)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d products\n", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "configs/catalog.yaml", "catalog YAML file")
	return cmd
}
