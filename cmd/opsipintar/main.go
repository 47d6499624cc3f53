// Command opsipintar runs the catalog API and its maintenance tasks.
//
//	opsipintar serve                         # start the HTTP server
//	opsipintar migrate                       # run pending migrations
//	opsipintar migrate:rollback
//	opsipintar migrate:status
//	opsipintar route:list
//	opsipintar autofill <url>                # call the scraper once
//	opsipintar storage:orphans --delete      # remove unreferenced blobs
//	opsipintar admin:hash <password>         # bcrypt hash for ADMIN_PASSWORD_HASH
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	// Register migrations before migrate runs.
	_ "github.com/opsipintar/catalog/database/migrations"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "opsipintar",
	Short:         "Opsi Pintar product catalog",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Server
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(routeListCmd)

	// Database
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(migrateRollbackCmd)
	rootCmd.AddCommand(migrateStatusCmd)

	// Catalog
	rootCmd.AddCommand(autofillCmd)
	rootCmd.AddCommand(orphansCmd)
	rootCmd.AddCommand(adminHashCmd)
}
