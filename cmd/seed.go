package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/selldesk/concierge/internal/app"
	"github.com/selldesk/concierge/internal/catalog"
	"github.com/selldesk/concierge/internal/config"
	"github.com/selldesk/concierge/internal/log"
)

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load catalog items into the database",
	Long: `Load catalog items from a JSON file, embed their summaries, and upsert
them into the catalog. Existing items with the same id are updated, so
re-seeding is safe.

The file holds a JSON array of items:

  [{"id": "sofa-1", "name": "Aria Fabric Sofa", "description": "...",
    "brand": "Hemma", "priceFull": 899, "priceSale": 649,
    "categories": ["Sofa", "Living Room"], "reviews": [...], "notes": "..."}]`,
	RunE: func(*cobra.Command, []string) error {
		return runSeed()
	},
}

func init() {
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "catalog.json", "path to the catalog JSON file")
	rootCmd.AddCommand(seedCmd)
}

func runSeed() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	items, err := catalog.LoadItems(seedFile)
	if err != nil {
		return err
	}

	logger := log.New(log.Config{})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	return catalog.Seed(ctx, a.Catalog, items, logger)
}
