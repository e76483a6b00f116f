package api

import (
	"context"
	"net/http"

	"github.com/selldesk/concierge/internal/catalog"
	"github.com/selldesk/concierge/internal/log"
)

// CatalogLister is the catalog capability the products endpoint needs.
// *catalog.Store satisfies it.
type CatalogLister interface {
	List(ctx context.Context) ([]catalog.Item, error)
}

// ProductsHandler serves the read-only catalog listing for the storefront.
type ProductsHandler struct {
	catalog CatalogLister
	logger  log.Logger
}

// NewProductsHandler creates a new products handler.
func NewProductsHandler(c CatalogLister, logger log.Logger) *ProductsHandler {
	return &ProductsHandler{catalog: c, logger: logger}
}

// RegisterRoutes registers product routes on the given mux.
func (h *ProductsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /products", h.listProducts)
}

// StorefrontProduct is one product entry in the categorized listing.
type StorefrontProduct struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	Price         float64 `json:"price"`
	OriginalPrice float64 `json:"originalPrice"`
	Emoji         string  `json:"emoji"`
	Category      string  `json:"category"`
}

// navigationCategories are the storefront's top-level sections, in display
// order. Every product lands in exactly one; Deals stays empty until a deals
// feed exists.
var navigationCategories = []string{
	"Home", "Electronics", "Clothing", "Home & Kitchen", "Beauty", "Sports", "Deals",
}

// categoryEmoji maps a catalog category to its storefront emoji.
var categoryEmoji = map[string]string{
	"Sofa":          "🛋️",
	"Living Room":   "🛋️",
	"Dining Table":  "🍽️",
	"Dining Room":   "🍽️",
	"Bed Frame":     "🛏️",
	"Bedroom":       "🛏️",
	"TV Stand":      "📺",
	"Electronics":   "📺",
	"Coffee Table":  "☕",
	"Kitchen":       "🔪",
	"Kitchen Tools": "🔪",
	"Appliances":    "☕",
	"Dining":        "🍽️",
	"Office":        "💼",
	"Gaming":        "🎮",
	"Audio":         "🔊",
	"Smart Home":    "🏠",
	"Clothing":      "👕",
	"Outerwear":     "🧥",
	"Footwear":      "👟",
	"Formal":        "👔",
	"Women's":       "👗",
	"Beauty":        "✨",
	"Skincare":      "✨",
	"Makeup":        "💄",
	"Hair Care":     "💨",
	"Fragrance":     "🌸",
	"Sports":        "🏃",
	"Fitness":       "🧘",
	"Athletic":      "🏃",
	"Strength":      "🏋️",
	"Team Sports":   "🏀",
	"General":       "📦",
}

// navigationCategory maps a catalog category to its storefront section.
var navigationCategory = map[string]string{
	"Sofa":          "Home",
	"Living Room":   "Home",
	"Dining Table":  "Home",
	"Dining Room":   "Home",
	"Bed Frame":     "Home",
	"Bedroom":       "Home",
	"TV Stand":      "Home",
	"Coffee Table":  "Home",
	"Electronics":   "Electronics",
	"Gaming":        "Electronics",
	"Audio":         "Electronics",
	"Smart Home":    "Electronics",
	"Office":        "Electronics",
	"Clothing":      "Clothing",
	"Outerwear":     "Clothing",
	"Footwear":      "Clothing",
	"Formal":        "Clothing",
	"Women's":       "Clothing",
	"Kitchen":       "Home & Kitchen",
	"Kitchen Tools": "Home & Kitchen",
	"Appliances":    "Home & Kitchen",
	"Dining":        "Home & Kitchen",
	"Beauty":        "Beauty",
	"Skincare":      "Beauty",
	"Makeup":        "Beauty",
	"Hair Care":     "Beauty",
	"Fragrance":     "Beauty",
	"Sports":        "Sports",
	"Fitness":       "Sports",
	"Athletic":      "Sports",
	"Strength":      "Sports",
	"Team Sports":   "Sports",
	"General":       "Home",
}

func emojiForCategory(category string) string {
	if e, ok := categoryEmoji[category]; ok {
		return e
	}
	return "📦"
}

func mapToNavigationCategory(category string) string {
	if nav, ok := navigationCategory[category]; ok {
		return nav
	}
	return "Home"
}

// listProducts handles GET /products: the whole catalog grouped into
// storefront navigation categories.
func (h *ProductsHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	items, err := h.catalog.List(r.Context())
	if err != nil {
		h.logger.Error("listing products failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load products")
		return
	}

	categorized := make(map[string][]StorefrontProduct, len(navigationCategories))
	for _, c := range navigationCategories {
		categorized[c] = []StorefrontProduct{}
	}

	for _, item := range items {
		primary := "General"
		if len(item.Categories) > 0 {
			primary = item.Categories[0]
		}

		nav := mapToNavigationCategory(primary)
		categorized[nav] = append(categorized[nav],
			StorefrontProduct{
				ID:            item.ID,
				Name:          item.DisplayName(),
				Description:   item.DisplayDescription(),
				Price:         item.PriceSale,
				OriginalPrice: item.PriceFull,
				Emoji:         emojiForCategory(primary),
				Category:      primary,
			})
	}

	writeJSON(w, http.StatusOK, categorized)
}
