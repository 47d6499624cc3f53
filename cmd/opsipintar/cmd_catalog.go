package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/opsipintar/catalog/app/providers"
	"github.com/opsipintar/catalog/app/services"
	"github.com/opsipintar/catalog/config"
	"github.com/opsipintar/catalog/internal/server"
	"github.com/opsipintar/catalog/pkg/auth"
	"github.com/opsipintar/catalog/pkg/container"
)

// opsipintar autofill <url>
var autofillCmd = &cobra.Command{
	Use:   "autofill <url>",
	Short: "Scrape one product URL and print the normalized result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Load(); err != nil {
			return fmt.Errorf("config: %w", err)
		}
		scraped, err := services.NewScraper(config.ScraperWebhookURL()).Scrape(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			*services.ScrapedProduct
			MappedCategory string `json:"mappedCategory"`
		}{scraped, string(services.MapCategory(derefString(scraped.Category)))})
	},
}

var (
	orphansOlderThan time.Duration
	orphansDelete    bool
)

// opsipintar storage:orphans
var orphansCmd = &cobra.Command{
	Use:   "storage:orphans",
	Short: "List (or delete) product images no product references",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := server.Boot(ctx); err != nil {
			return err
		}
		providers.Register()
		sweeper := container.Make[*services.OrphanSweeper](providers.Orphans)

		orphans, err := sweeper.Find(ctx, orphansOlderThan)
		if err != nil {
			return err
		}
		for _, o := range orphans {
			fmt.Printf("%s\t%d\t%s\n", o.LastModified.Format(time.RFC3339), o.Size, o.Key)
		}
		if !orphansDelete {
			fmt.Printf("%d orphaned image(s). Re-run with --delete to remove them.\n", len(orphans))
			return nil
		}

		n, err := sweeper.Delete(ctx, orphans)
		fmt.Printf("%d orphaned image(s) deleted.\n", n)
		return err
	},
}

// opsipintar admin:hash <password>
var adminHashCmd = &cobra.Command{
	Use:   "admin:hash <password>",
	Short: "Print the bcrypt hash to use as ADMIN_PASSWORD_HASH",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := auth.HashPassword(args[0])
		if err != nil {
			return err
		}
		fmt.Println(hash)
		return nil
	},
}

func init() {
	orphansCmd.Flags().DurationVar(&orphansOlderThan, "older-than", 24*time.Hour, "only report blobs last modified before now minus this")
	orphansCmd.Flags().BoolVar(&orphansDelete, "delete", false, "delete the reported blobs")
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
