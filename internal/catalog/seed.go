package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/selldesk/concierge/internal/log"
)

// seedConcurrency bounds parallel embed+upsert work during seeding.
// Embedding calls dominate seeding time; a small fan-out keeps throughput up
// without tripping provider rate limits.
const seedConcurrency = 4

// LoadItems reads catalog items from a JSON file.
// The file holds a top-level array of items.
func LoadItems(path string) ([]Item, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from the operator's CLI flag
	if err != nil {
		return nil, fmt.Errorf("reading catalog file %q: %w", path, err)
	}

	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parsing catalog file %q: %w", path, err)
	}

	for i, item := range items {
		if item.ID == "" {
			return nil, fmt.Errorf("catalog file %q: item %d has no id", path, i)
		}
	}
	return items, nil
}

// Seed embeds and upserts all items into the store.
// Items are processed with bounded concurrency; the first failure cancels
// the remaining work and is returned.
func Seed(ctx context.Context, store *Store, items []Item, logger log.Logger) error {
	if logger == nil {
		logger = log.NewNop()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(seedConcurrency)

	for _, item := range items {
		item := item
		g.Go(func() error {
			if err := store.Upsert(gctx, item); err != nil {
				return fmt.Errorf("seeding item %q: %w", item.ID, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("catalog seeded", "count", len(items))
	return nil
}
