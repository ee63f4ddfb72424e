package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	gastronomy "github.com/nmezhenskyi/gastronomy-api"
	"github.com/nmezhenskyi/gastronomy-api/internal/storage"
)

func newMigrateCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := gastronomy.LoadConfig(*configPath)
			if err != nil {
				return err
			}
			// Migrate explicitly below so the command fails loudly.
			cfg.Database.Migrate = false
			return withCore(cmd.Context(), cfg, func(_ context.Context, c core) error {
				if err := storage.Migrate(c.DB, models()...); err != nil {
					return err
				}
				c.Logger.Info("database migrated", zap.String("dialect", cfg.Database.Dialect))
				return nil
			})
		},
	}
}
