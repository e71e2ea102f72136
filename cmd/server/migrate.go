package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	rolespg "github.com/jrsteele09/go-studio-gateway/roles/postgres"
	"github.com/spf13/cobra"
)

type migrateFlags struct {
	DatabaseURL     string
	MigrationsTable string
}

func newMigrateCommand() *cobra.Command {
	flags := migrateFlags{}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run role store schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	migrateCmd.PersistentFlags().StringVar(&flags.DatabaseURL, "database-url", "", "Database connection URL. Defaults to DATABASE_URL.")
	migrateCmd.PersistentFlags().StringVar(&flags.MigrationsTable, "migrations-table", "", "Migrations version table. Defaults to MIGRATIONS_TABLE.")

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "up [steps]",
		Short: "Run schema migrations up",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, hasSteps, err := parseMigrationStepsArg(args)
			if err != nil {
				return err
			}
			runner, err := newMigrationRunner(flags)
			if err != nil {
				return err
			}
			defer closeRunner(cmd, runner)

			if hasSteps {
				err = runner.Steps(steps)
			} else {
				err = runner.Up()
			}
			if rolespg.IsNoChange(err) {
				cmd.Println("No schema changes to apply.")
				return nil
			}
			var shortLimit migrate.ErrShortLimit
			if hasSteps && errors.As(err, &shortLimit) {
				cmd.Printf("Applied %d migration step(s) (reached migration boundary)\n", steps-int(shortLimit.Short))
				return nil
			}
			if err != nil {
				return fmt.Errorf("apply migrations: %w", err)
			}

			version, dirty, _ := runner.Version()
			cmd.Printf("Schema at version %d (dirty=%t)\n", version, dirty)
			return nil
		},
	})

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "down <steps>",
		Short: "Roll back schema migrations by step count",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, _, err := parseMigrationStepsArg(args)
			if err != nil {
				return err
			}
			runner, err := newMigrationRunner(flags)
			if err != nil {
				return err
			}
			defer closeRunner(cmd, runner)

			err = runner.Steps(-steps)
			if rolespg.IsNoChange(err) {
				cmd.Println("No schema changes to roll back.")
				return nil
			}
			var shortLimit migrate.ErrShortLimit
			if errors.As(err, &shortLimit) {
				cmd.Printf("Rolled back %d migration step(s) (reached migration boundary)\n", steps-int(shortLimit.Short))
				return nil
			}
			if err != nil {
				return fmt.Errorf("roll back migrations: %w", err)
			}
			cmd.Printf("Rolled back %d migration step(s)\n", steps)
			return nil
		},
	})

	return migrateCmd
}

func newMigrationRunner(flags migrateFlags) (*migrate.Migrate, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	databaseURL := strings.TrimSpace(flags.DatabaseURL)
	if databaseURL == "" {
		databaseURL = cfg.GetDatabaseURL()
	}
	table := strings.TrimSpace(flags.MigrationsTable)
	if table == "" {
		table = cfg.GetMigrationsTable()
	}
	if databaseURL == "" {
		return nil, errors.New("missing database URL: set --database-url or DATABASE_URL")
	}
	return rolespg.NewMigrator(databaseURL, table)
}

func closeRunner(cmd *cobra.Command, runner *migrate.Migrate) {
	if err := rolespg.CloseMigrator(runner); err != nil {
		cmd.PrintErrf("warning: failed to close migration runner cleanly: %v\n", err)
	}
}

func parseMigrationStepsArg(args []string) (int, bool, error) {
	if len(args) == 0 {
		return 0, false, nil
	}
	steps, err := strconv.Atoi(strings.TrimSpace(args[0]))
	if err != nil || steps <= 0 {
		return 0, false, fmt.Errorf("invalid migration steps %q: expected a positive integer", args[0])
	}
	return steps, true, nil
}
