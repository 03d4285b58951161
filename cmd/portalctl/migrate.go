package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"civicportal/internal/platform/database"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDatabase(cmd, func(ctx context.Context, pool *database.Pool) error {
				if err := database.MigrateUp(ctx, pool.DB()); err != nil {
					return err
				}
				return printVersion(ctx, cmd, pool)
			})
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if steps < 1 {
				return fmt.Errorf("--steps must be at least 1")
			}
			return withDatabase(cmd, func(ctx context.Context, pool *database.Pool) error {
				if err := database.MigrateDown(ctx, pool.DB(), steps); err != nil {
					return err
				}
				return printVersion(ctx, cmd, pool)
			})
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	cmd.AddCommand(up, down)
	return cmd
}

func withDatabase(cmd *cobra.Command, fn func(ctx context.Context, pool *database.Pool) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
	defer cancel()

	pool, err := database.New(ctx, cfg.Database)
	if err != nil {
		return err
	}
	if pool == nil {
		return fmt.Errorf("no database configured: set DATABASE_URL or database.url")
	}
	defer pool.Close() //nolint:errcheck // CLI exits right after
	return fn(ctx, pool)
}

func printVersion(ctx context.Context, cmd *cobra.Command, pool *database.Pool) error {
	version, err := database.MigrationVersion(ctx, pool.DB())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version: %d\n", version)
	return nil
}
