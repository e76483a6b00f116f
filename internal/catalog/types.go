// Package catalog provides the vector-indexed product catalog.
//
// Catalog items are written by the offline seeding process and read by the
// retrieval tool and the storefront listing endpoint. Each item carries a
// derived summary text whose embedding is indexed with pgvector; search is
// cosine nearest-neighbor over that column.
package catalog

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// VectorDimension is the embedding dimension of the catalog's vector column.
// gemini-embedding-001 supports truncation to 768 dimensions, which matches
// the pgvector schema.
const VectorDimension = 768

// Placeholder values for items with incomplete source data.
const (
	UnknownProductName = "Unknown Product"
	NoDescription      = "No description available"
)

// Sentinel errors for catalog operations. Check with errors.Is().
var (
	// ErrEmbedding indicates the embedding provider was unreachable or
	// returned malformed output.
	ErrEmbedding = errors.New("embedding failed")

	// ErrItemNotFound indicates the requested catalog item does not exist.
	ErrItemNotFound = errors.New("catalog item not found")
)

// Review is a single customer review attached to a catalog item.
type Review struct {
	Date    time.Time `json:"date"`
	Rating  int       `json:"rating"` // 1-5
	Comment string    `json:"comment"`
}

// Item represents a catalog product.
// Immutable at query time; only the seeding process writes items.
type Item struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Brand       string   `json:"brand"`
	PriceFull   float64  `json:"priceFull"`
	PriceSale   float64  `json:"priceSale"`
	Categories  []string `json:"categories"`
	Reviews     []Review `json:"reviews"`
	Notes       string   `json:"notes"`
}

// DisplayName returns the item name with the placeholder fallback applied.
func (it *Item) DisplayName() string {
	if strings.TrimSpace(it.Name) == "" {
		return UnknownProductName
	}
	return it.Name
}

// DisplayDescription returns the description with the placeholder fallback applied.
func (it *Item) DisplayDescription() string {
	if strings.TrimSpace(it.Description) == "" {
		return NoDescription
	}
	return it.Description
}

// SummaryText derives the text that is embedded and indexed for this item.
// It concatenates the descriptive fields in a stable order, so re-deriving
// it for an unchanged item always yields the same embedding input.
func (it *Item) SummaryText() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s", it.DisplayName(), it.DisplayDescription())
	if it.Brand != "" {
		fmt.Fprintf(&sb, " Brand: %s.", it.Brand)
	}
	if len(it.Categories) > 0 {
		fmt.Fprintf(&sb, " Categories: %s.", strings.Join(it.Categories, ", "))
	}
	fmt.Fprintf(&sb, " Price: %.2f", it.PriceSale)
	if it.PriceFull > it.PriceSale {
		fmt.Fprintf(&sb, " (full price %.2f)", it.PriceFull)
	}
	sb.WriteString(".")
	if len(it.Reviews) > 0 {
		fmt.Fprintf(&sb, " Rated %.1f/5 over %d reviews.", it.averageRating(), len(it.Reviews))
	}
	if it.Notes != "" {
		fmt.Fprintf(&sb, " Notes: %s", it.Notes)
	}
	return sb.String()
}

func (it *Item) averageRating() float64 {
	if len(it.Reviews) == 0 {
		return 0
	}
	var sum int
	for _, r := range it.Reviews {
		sum += r.Rating
	}
	return float64(sum) / float64(len(it.Reviews))
}

// SearchResult pairs an item with its cosine similarity to the query.
type SearchResult struct {
	Item       Item    `json:"item"`
	Similarity float64 `json:"similarity"`
}
