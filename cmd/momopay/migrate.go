package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/angelmondragon/momopay/pkg/config"
	"github.com/angelmondragon/momopay/pkg/db"
	"github.com/angelmondragon/momopay/pkg/migrate"
)

func migrateCmd(opts *globalOptions) *cobra.Command {
	var version string
	cmd := &cobra.Command{
		Use:       "migrate [up|down|status|version|validate]",
		Short:     "Manage the pending-transactions schema of the SQL stores",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "status", "version", "validate"},
		RunE: func(cmd *cobra.Command, args []string) error {
			command := "up"
			if len(args) == 1 {
				command = args[0]
			}

			if command == "validate" {
				if err := migrate.ValidateFS(migrate.FS(), migrate.DefaultDir); err != nil {
					return fmt.Errorf("migration validation failed: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migration validation passed")
				return nil
			}

			cfg, logg, err := loadConfig(*opts)
			if err != nil {
				return err
			}
			driver := cfg.Store.NormalizedDriver()
			if driver != config.StoreDriverSQLite && driver != config.StoreDriverPostgres {
				return fmt.Errorf("store driver %q has no schema to migrate", driver)
			}

			ctx := logg.WithFields(cmd.Context(), map[string]any{"env": cfg.App.Env, "cmd": command, "driver": driver})
			client, err := db.New(ctx, cfg.Store, cfg.DB, logg)
			if err != nil {
				return fmt.Errorf("bootstrap database: %w", err)
			}
			defer client.Close()

			sqlDB, err := client.DB().DB()
			if err != nil {
				return fmt.Errorf("extracting sql.DB: %w", err)
			}
			logg.Info(ctx, "migrate ready")

			if command == "version" {
				if version == "" {
					return fmt.Errorf("missing --to for the version command")
				}
				return migrate.MigrateToVersion(ctx, sqlDB, client.Dialect(), version)
			}
			return migrate.Run(ctx, sqlDB, client.Dialect(), command)
		},
	}
	cmd.Flags().StringVar(&version, "to", "", "target version (YYYYMMDDHHMMSS) for the version command")
	return cmd
}
