// Package tools defines the Genkit tools offered to the shopping assistant.
//
// Currently one tool is registered: search_products, a read-only semantic
// search over the product catalog. Tools never mutate state, so repeating a
// call with the same input against an unchanged catalog returns identical
// results.
package tools

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/selldesk/concierge/internal/catalog"
	"github.com/selldesk/concierge/internal/log"
)

// SearchProductsName is the Genkit tool name for catalog search.
const SearchProductsName = "search_products"

// TopK bounds for catalog search.
const (
	DefaultSearchTopK = 3
	MaxSearchTopK     = 10
)

// SearchProductsInput defines input for the search_products tool.
type SearchProductsInput struct {
	Query string `json:"query" jsonschema_description:"Free-text description of what the shopper is looking for"`
	TopK  int    `json:"topK,omitempty" jsonschema_description:"Maximum number of products to return (1-10, default 3)"`
}

// Product is one catalog match returned to the model.
type Product struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Brand       string  `json:"brand,omitempty"`
	Price       float64 `json:"price"`
	FullPrice   float64 `json:"fullPrice,omitempty"`
	Similarity  float64 `json:"similarity"`
}

// SearchProductsOutput is the structured result of a catalog search.
// An empty catalog or a query with no matches yields Count 0, not an error.
type SearchProductsOutput struct {
	Query    string    `json:"query"`
	Count    int       `json:"count"`
	Products []Product `json:"products"`
}

// CatalogSearcher is the catalog capability the tool needs.
// *catalog.Store satisfies it.
type CatalogSearcher interface {
	Search(ctx context.Context, query string, topK int) ([]catalog.SearchResult, error)
}

// Catalog holds dependencies for the search_products handler.
type Catalog struct {
	store  CatalogSearcher
	logger log.Logger
}

// NewCatalog creates a Catalog toolset over the given store.
// logger may be nil, in which case a nop logger is used.
func NewCatalog(store CatalogSearcher, logger log.Logger) (*Catalog, error) {
	if store == nil {
		return nil, fmt.Errorf("catalog store is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Catalog{store: store, logger: logger}, nil
}

// Register registers the catalog tools with Genkit and returns their refs.
func Register(g *genkit.Genkit, c *Catalog) ([]ai.ToolRef, error) {
	if g == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if c == nil {
		return nil, fmt.Errorf("Catalog is required")
	}

	searchTool := genkit.DefineTool(g, SearchProductsName,
		"Search the product catalog using semantic similarity. "+
			"Finds products whose name, description, category, or reviews match the query. "+
			"Returns: product names, descriptions, prices, and similarity scores, best match first. "+
			"An empty result means no matching products exist. "+
			"Default topK: 3. Maximum topK: 10.",
		c.SearchProducts)

	return []ai.ToolRef{searchTool}, nil
}

// clampTopK validates topK and returns a value within [1, MaxSearchTopK].
// If topK <= 0, returns DefaultSearchTopK.
func clampTopK(topK int) int {
	if topK <= 0 {
		return DefaultSearchTopK
	}
	if topK > MaxSearchTopK {
		return MaxSearchTopK
	}
	return topK
}

// SearchProducts handles the search_products tool call.
func (c *Catalog) SearchProducts(ctx *ai.ToolContext, input SearchProductsInput) (SearchProductsOutput, error) {
	topK := clampTopK(input.TopK)
	c.logger.Info("search_products called", "query", input.Query, "topK", topK)

	if input.Query == "" {
		return SearchProductsOutput{}, fmt.Errorf("query is required")
	}

	results, err := c.store.Search(ctx, input.Query, topK)
	if err != nil {
		c.logger.Warn("search_products failed", "query", input.Query, "error", err)
		return SearchProductsOutput{}, fmt.Errorf("searching catalog: %w", err)
	}

	products := make([]Product, 0, len(results))
	for _, r := range results {
		products = append(products, Product{
			ID:          r.Item.ID,
			Name:        r.Item.DisplayName(),
			Description: r.Item.DisplayDescription(),
			Brand:       r.Item.Brand,
			Price:       r.Item.PriceSale,
			FullPrice:   r.Item.PriceFull,
			Similarity:  r.Similarity,
		})
	}

	c.logger.Info("search_products succeeded", "query", input.Query, "result_count", len(products))
	return SearchProductsOutput{
		Query:    input.Query,
		Count:    len(products),
		Products: products,
	}, nil
}
