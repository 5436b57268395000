package cmd

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" //nolint:blankimports // postgres driver
	_ "github.com/golang-migrate/migrate/v4/source/file"       //nolint:blankimports // file source driver
	"github.com/spf13/cobra"

	"github.com/krekz/maulocum-sub000/internal/bootstrap"
)

// migrationsPath is the relative path to the migrations directory.
const migrationsPath = "file://migrations"

func newMigrateCommand() *cobra.Command {
	var steps int

	cmd := &cobra.Command{
		Use:       "migrate <up|down>",
		Short:     "Apply or roll back database migrations",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := bootstrap.LoadConfig(cfgFile)
			if err != nil {
				return err
			}

			m, err := migrate.New(migrationsPath, bootstrap.DatabaseConfig(cfg).URL())
			if err != nil {
				return fmt.Errorf("create migrate instance: %w", err)
			}
			defer func() { _, _ = m.Close() }()

			if err := runMigration(m, args[0], steps); err != nil {
				return fmt.Errorf("migration %s failed: %w", args[0], err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Migration %s completed successfully\n", args[0])
			return nil
		},
	}

	cmd.Flags().IntVar(&steps, "steps", 0, "number of migrations to roll back with down (0 means all)")
	return cmd
}

// runMigration executes the migration in the specified direction.
func runMigration(m *migrate.Migrate, direction string, steps int) error {
	var err error

	switch {
	case direction == "up":
		err = m.Up()
	case steps > 0:
		err = m.Steps(-steps)
	default:
		err = m.Down()
	}

	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}
