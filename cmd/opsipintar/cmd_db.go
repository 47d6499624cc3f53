package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/opsipintar/catalog/config"
	"github.com/opsipintar/catalog/pkg/database"
	"github.com/opsipintar/catalog/pkg/migration"
)

// bootDB loads config and opens the database connection.
func bootDB(cmd *cobra.Command) error {
	if err := config.Load(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return database.Connect(cmd.Context())
}

// opsipintar migrate
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run all pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := bootDB(cmd); err != nil {
			return err
		}
		n, err := migration.New(database.DB, os.Stdout).Run(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("%d migration(s) ran.\n", n)
		return nil
	},
}

// opsipintar migrate:rollback
var migrateRollbackCmd = &cobra.Command{
	Use:   "migrate:rollback",
	Short: "Roll back the last batch of migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := bootDB(cmd); err != nil {
			return err
		}
		n, err := migration.New(database.DB, os.Stdout).Rollback(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("%d migration(s) rolled back.\n", n)
		return nil
	},
}

// opsipintar migrate:status
var migrateStatusCmd = &cobra.Command{
	Use:   "migrate:status",
	Short: "Show the status of each migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := bootDB(cmd); err != nil {
			return err
		}
		rows, err := migration.New(database.DB, nil).Status(cmd.Context())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "RAN\tBATCH\tMIGRATION")
		for _, row := range rows {
			ran, batch := "no", "-"
			if row.Ran {
				ran, batch = "yes", fmt.Sprint(row.Batch)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", ran, batch, row.Name)
		}
		return w.Flush()
	},
}
