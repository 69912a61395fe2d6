package cmd

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/campscout/internal/bootstrap"
	"github.com/jonesrussell/campscout/internal/config"
)

const migrationsPath = "file://migrations"

// migrateCommand applies or rolls back schema migrations.
func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate <up|down>",
		Short:     "Apply or roll back database migrations",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"up", "down"},
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := bootstrap.NewDeps(cfgFile, debug)
			if err != nil {
				return err
			}

			m, err := migrate.New(migrationsPath, migrateURL(deps.Config.Database))
			if err != nil {
				return fmt.Errorf("create migrate instance: %w", err)
			}
			defer func() { _, _ = m.Close() }()

			switch args[0] {
			case "up":
				err = m.Up()
			case "down":
				err = m.Steps(-1)
			default:
				return fmt.Errorf("invalid direction: %q", args[0])
			}
			if err != nil && !errors.Is(err, migrate.ErrNoChange) {
				return fmt.Errorf("migration %s: %w", args[0], err)
			}

			fmt.Printf("Migration %s completed\n", args[0])
			return nil
		},
	}
}

func migrateURL(db config.DatabaseConfig) string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		db.User, db.Password, db.Host, db.Port, db.DBName, db.SSLMode,
	)
}
