package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/selldesk/concierge/internal/catalog"
	"github.com/selldesk/concierge/internal/log"
)

type stubLister struct {
	items []catalog.Item
	err   error
}

func (s *stubLister) List(context.Context) ([]catalog.Item, error) {
	return s.items, s.err
}

func newProductsServer(lister CatalogLister) *httptest.Server {
	h := NewProductsHandler(lister, log.NewNop())
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return httptest.NewServer(mux)
}

func getProducts(t *testing.T, srv *httptest.Server) map[string][]StorefrontProduct {
	t.Helper()
	resp, err := http.Get(srv.URL + "/products")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string][]StorefrontProduct
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestListProducts_Categorizes(t *testing.T) {
	t.Parallel()

	srv := newProductsServer(&stubLister{items: []catalog.Item{
		{ID: "sofa-1", Name: "Aria Fabric Sofa", Description: "Three-seat sofa", PriceFull: 899, PriceSale: 649, Categories: []string{"Sofa", "Living Room"}},
		{ID: "tv-1", Name: "Crisp 55 TV", Description: "4K television", PriceFull: 599, PriceSale: 599, Categories: []string{"Electronics"}},
		{ID: "pan-1", Name: "Skillet", Description: "Cast iron pan", PriceFull: 45, PriceSale: 40, Categories: []string{"Kitchen"}},
	}})
	defer srv.Close()

	body := getProducts(t, srv)

	// Every navigation category is present, even when empty.
	for _, c := range navigationCategories {
		assert.Contains(t, body, c)
	}

	require.Len(t, body["Home"], 1)
	sofa := body["Home"][0]
	assert.Equal(t, "Aria Fabric Sofa", sofa.Name)
	assert.Equal(t, 649.0, sofa.Price)
	assert.Equal(t, 899.0, sofa.OriginalPrice)
	assert.Equal(t, "🛋️", sofa.Emoji)
	assert.Equal(t, "Sofa", sofa.Category)

	require.Len(t, body["Electronics"], 1)
	assert.Equal(t, "Crisp 55 TV", body["Electronics"][0].Name)

	require.Len(t, body["Home & Kitchen"], 1)
	assert.Equal(t, "🔪", body["Home & Kitchen"][0].Emoji)

	assert.Empty(t, body["Deals"])
}

func TestListProducts_Fallbacks(t *testing.T) {
	t.Parallel()

	srv := newProductsServer(&stubLister{items: []catalog.Item{
		{ID: "mystery-1"},
	}})
	defer srv.Close()

	body := getProducts(t, srv)

	// No categories maps to General, which lands in Home with the box emoji.
	require.Len(t, body["Home"], 1)
	p := body["Home"][0]
	assert.Equal(t, catalog.UnknownProductName, p.Name)
	assert.Equal(t, catalog.NoDescription, p.Description)
	assert.Equal(t, "📦", p.Emoji)
	assert.Equal(t, "General", p.Category)
}

func TestListProducts_StoreError(t *testing.T) {
	t.Parallel()

	srv := newProductsServer(&stubLister{err: errors.New("db down")})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/products")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}
