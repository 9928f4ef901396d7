package main

import (
	"database/sql"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tradefloor/tradefloor/internal/config"
	"github.com/tradefloor/tradefloor/internal/migrate"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Database migration commands",
	Long:  "Apply and inspect the embedded schema migrations",
}

// openForMigration loads config and connects without the pool sizing the
// server uses; migrations run on a single connection.
func openForMigration() (*sql.DB, []*migrate.Migration, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Database.URL == "" {
		return nil, nil, fmt.Errorf("database.url not configured (set TRADEFLOOR_DATABASE_URL)")
	}

	conn, err := sql.Open("pgx", cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrations, err := migrate.Load()
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	return conn, migrations, nil
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Run all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, migrations, err := openForMigration()
		if err != nil {
			return err
		}
		defer conn.Close()

		runner := migrate.NewRunner(conn)
		if err := runner.Initialize(); err != nil {
			return err
		}

		before, err := runner.Status(migrations)
		if err != nil {
			return err
		}
		if len(before.Pending) == 0 {
			fmt.Println("No pending migrations")
			return nil
		}

		if err := runner.MigrateUp(migrations); err != nil {
			return err
		}

		green := color.New(color.FgGreen)
		for _, m := range before.Pending {
			green.Printf("✓ Applied %04d_%s\n", m.Version, m.Name)
		}
		fmt.Printf("\nApplied %d migration(s)\n", len(before.Pending))
		return nil
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, migrations, err := openForMigration()
		if err != nil {
			return err
		}
		defer conn.Close()

		runner := migrate.NewRunner(conn)
		if err := runner.Initialize(); err != nil {
			return err
		}

		before, err := runner.Status(migrations)
		if err != nil {
			return err
		}
		if before.LastApplied == nil {
			fmt.Println("No applied migrations to roll back")
			return nil
		}

		if err := runner.MigrateDown(migrations); err != nil {
			return err
		}

		color.New(color.FgYellow).Printf("↩ Rolled back %04d_%s\n",
			before.LastApplied.Version, before.LastApplied.Name)
		return nil
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show migration status",
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, migrations, err := openForMigration()
		if err != nil {
			return err
		}
		defer conn.Close()

		runner := migrate.NewRunner(conn)
		if err := runner.Initialize(); err != nil {
			return err
		}

		status, err := runner.Status(migrations)
		if err != nil {
			return err
		}

		applied := make(map[int64]bool, len(status.Applied))
		for _, m := range status.Applied {
			applied[m.Version] = true
		}

		green := color.New(color.FgGreen)
		gray := color.New(color.FgHiBlack)
		for _, m := range migrations {
			if applied[m.Version] {
				green.Printf("✓ %04d_%s [applied]\n", m.Version, m.Name)
			} else {
				gray.Printf("○ %04d_%s [pending]\n", m.Version, m.Name)
			}
		}
		fmt.Println(status.Summary())
		return nil
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
}
