package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/selldesk/concierge/internal/catalog"
)

// stubSearcher returns canned results and records queries.
type stubSearcher struct {
	results []catalog.SearchResult
	err     error
	queries []string
	topKs   []int
}

func (s *stubSearcher) Search(_ context.Context, query string, topK int) ([]catalog.SearchResult, error) {
	s.queries = append(s.queries, query)
	s.topKs = append(s.topKs, topK)
	if s.err != nil {
		return nil, s.err
	}
	return s.results, nil
}

func newToolContext(t *testing.T) *ai.ToolContext {
	t.Helper()
	return &ai.ToolContext{Context: context.Background()}
}

func TestClampTopK(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   int
		want int
	}{
		{"zero uses default", 0, DefaultSearchTopK},
		{"negative uses default", -5, DefaultSearchTopK},
		{"in range passes through", 5, 5},
		{"above max clamps", 50, MaxSearchTopK},
		{"max passes through", MaxSearchTopK, MaxSearchTopK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, clampTopK(tt.in))
		})
	}
}

func TestSearchProducts_ReturnsRankedProducts(t *testing.T) {
	t.Parallel()

	stub := &stubSearcher{
		results: []catalog.SearchResult{
			{Item: catalog.Item{ID: "sofa-1", Name: "Aria Fabric Sofa", Description: "Three-seat sofa", Brand: "Hemma", PriceFull: 899, PriceSale: 649}, Similarity: 0.91},
			{Item: catalog.Item{ID: "sofa-2", Name: "Nord Leather Sofa", Description: "Two-seat sofa", PriceFull: 1199, PriceSale: 1199}, Similarity: 0.84},
		},
	}
	c, err := NewCatalog(stub, nil)
	require.NoError(t, err)

	out, err := c.SearchProducts(newToolContext(t), SearchProductsInput{Query: "sofas", TopK: 3})
	require.NoError(t, err)

	assert.Equal(t, "sofas", out.Query)
	assert.Equal(t, 2, out.Count)
	require.Len(t, out.Products, 2)
	assert.Equal(t, "Aria Fabric Sofa", out.Products[0].Name)
	assert.Equal(t, 649.0, out.Products[0].Price)
	assert.Equal(t, 899.0, out.Products[0].FullPrice)
	assert.Equal(t, 0.91, out.Products[0].Similarity)
	assert.Equal(t, "Nord Leather Sofa", out.Products[1].Name)

	require.Equal(t, []int{3}, stub.topKs)
}

func TestSearchProducts_AppliesNameFallbacks(t *testing.T) {
	t.Parallel()

	stub := &stubSearcher{
		results: []catalog.SearchResult{
			{Item: catalog.Item{ID: "mystery-1"}, Similarity: 0.5},
		},
	}
	c, err := NewCatalog(stub, nil)
	require.NoError(t, err)

	out, err := c.SearchProducts(newToolContext(t), SearchProductsInput{Query: "anything"})
	require.NoError(t, err)
	require.Len(t, out.Products, 1)
	assert.Equal(t, catalog.UnknownProductName, out.Products[0].Name)
	assert.Equal(t, catalog.NoDescription, out.Products[0].Description)
}

func TestSearchProducts_EmptyResultIsNotAnError(t *testing.T) {
	t.Parallel()

	stub := &stubSearcher{}
	c, err := NewCatalog(stub, nil)
	require.NoError(t, err)

	out, err := c.SearchProducts(newToolContext(t), SearchProductsInput{Query: "submarines"})
	require.NoError(t, err)
	assert.Equal(t, 0, out.Count)
	assert.Empty(t, out.Products)
}

func TestSearchProducts_DefaultsTopK(t *testing.T) {
	t.Parallel()

	stub := &stubSearcher{}
	c, err := NewCatalog(stub, nil)
	require.NoError(t, err)

	_, err = c.SearchProducts(newToolContext(t), SearchProductsInput{Query: "lamps"})
	require.NoError(t, err)
	require.Equal(t, []int{DefaultSearchTopK}, stub.topKs)
}

func TestSearchProducts_RequiresQuery(t *testing.T) {
	t.Parallel()

	c, err := NewCatalog(&stubSearcher{}, nil)
	require.NoError(t, err)

	_, err = c.SearchProducts(newToolContext(t), SearchProductsInput{})
	assert.Error(t, err)
}

func TestSearchProducts_PropagatesStoreError(t *testing.T) {
	t.Parallel()

	stub := &stubSearcher{err: errors.New("connection refused")}
	c, err := NewCatalog(stub, nil)
	require.NoError(t, err)

	_, err = c.SearchProducts(newToolContext(t), SearchProductsInput{Query: "lamps"})
	assert.Error(t, err)
}

func TestRegister(t *testing.T) {
	t.Parallel()

	g := genkit.Init(context.Background())
	c, err := NewCatalog(&stubSearcher{}, nil)
	require.NoError(t, err)

	refs, err := Register(g, c)
	require.NoError(t, err)
	require.Len(t, refs, 1)

	assert.NotNil(t, genkit.LookupTool(g, SearchProductsName))
}

func TestRegister_RequiresDependencies(t *testing.T) {
	t.Parallel()

	_, err := Register(nil, nil)
	assert.Error(t, err)

	_, err = NewCatalog(nil, nil)
	assert.Error(t, err)
}
