package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/authgate/authgate/internal/config"
	"github.com/authgate/authgate/internal/repository"
)

// migrationRunner is the part of repository.Migrator the CLI drives.
type migrationRunner interface {
	Up() error
	Down() error
	Version() (version uint, dirty bool, err error)
	Close() error
}

// newMigrator is swapped in tests.
var newMigrator = func(databaseURL string) (migrationRunner, error) {
	return repository.NewMigrator(databaseURL)
}

var errNoDatabase = errors.New("DATABASE_URL or DB_HOST/DB_USER/DB_NAME must be set")

// NewMigrateCmd creates the migrate command group.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(func(m migrationRunner) error {
				if err := m.Up(); err != nil {
					return err
				}
				cmd.Println("Migrations applied")
				return nil
			})
		},
	})

	var confirm bool
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations (drops the users table)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !confirm {
				return errors.New("refusing to drop all tables without --yes")
			}
			return withMigrator(func(m migrationRunner) error {
				if err := m.Down(); err != nil {
					return err
				}
				cmd.Println("Migrations rolled back")
				return nil
			})
		},
	}
	down.Flags().BoolVar(&confirm, "yes", false, "confirm dropping all tables")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(func(m migrationRunner) error {
				v, dirty, err := m.Version()
				if err != nil {
					return err
				}
				cmd.Printf("version: %d (dirty: %t)\n", v, dirty)
				return nil
			})
		},
	})

	return cmd
}

// withMigrator opens a migrator from the environment, runs fn and closes it.
func withMigrator(fn func(migrationRunner) error) (err error) {
	cfg, err := config.Parse()
	if err != nil {
		return err
	}
	dsn := cfg.DatabaseDSN()
	if dsn == "" {
		return errNoDatabase
	}

	m, err := newMigrator(dsn)
	if err != nil {
		return fmt.Errorf("open migrator: %s", sanitizeError(err, dsn))
	}
	defer func() {
		err = errors.Join(err, m.Close())
	}()

	return fn(m)
}
