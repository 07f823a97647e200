package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/roll-call/internal/database/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Long:  `Apply pending embedded migrations and print the versions that were applied.`,
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)

	migrateCmd.Flags().Bool("status", false, "Only list applied migrations")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := requireDatabase()
	if err != nil {
		return err
	}

	pool, err := postgres.NewPool(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	defer pool.Close()

	ctx := context.Background()
	if mustGetBool(cmd, "status") {
		versions, err := pool.MigrationsApplied(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("%d migrations applied\n", len(versions))
		for _, v := range versions {
			fmt.Printf("  %s\n", v)
		}
		return nil
	}

	applied, err := pool.Migrate(ctx)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	if len(applied) == 0 {
		fmt.Println("Database is up to date")
		return nil
	}
	fmt.Printf("Applied %d migrations:\n", len(applied))
	for _, v := range applied {
		fmt.Printf("  %s\n", v)
	}
	return nil
}
