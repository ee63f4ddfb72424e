package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	gastronomy "github.com/nmezhenskyi/gastronomy-api"
	"github.com/nmezhenskyi/gastronomy-api/internal/jobs"
)

func newCleanupCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Remove expired refresh tokens once and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := gastronomy.LoadConfig(*configPath)
			if err != nil {
				return err
			}
			return withCore(cmd.Context(), cfg, func(ctx context.Context, c core) error {
				job, err := jobs.NewCleanupJob(c.Engine, jobs.CleanupConfig{Logger: c.Logger.Named("cleanup")})
				if err != nil {
					return err
				}
				removed := job.RunOnce(ctx)
				c.Logger.Info("cleanup finished", zap.Int64("removed", removed))
				return nil
			})
		},
	}
}
