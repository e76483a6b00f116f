//go:build integration

package catalog

import (
	"context"
	"testing"

	"github.com/firebase/genkit/go/genkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/selldesk/concierge/internal/testutil"
)

func newIntegrationStore(t *testing.T) (*Store, *testutil.MockEmbedder, func()) {
	t.Helper()

	db, cleanup := testutil.SetupTestDB(t)

	g := genkit.Init(context.Background())
	mock := testutil.NewMockEmbedder(VectorDimension)
	embedder := mock.RegisterEmbedder(g)

	return NewStore(db.Pool, embedder, testutil.DiscardLogger()), mock, cleanup
}

func TestStore_UpsertAndSearch(t *testing.T) {
	store, mock, cleanup := newIntegrationStore(t)
	defer cleanup()
	ctx := context.Background()

	sofa := Item{ID: "sofa-1", Name: "Aria Fabric Sofa", Description: "Three-seat sofa", PriceFull: 899, PriceSale: 649}
	lamp := Item{ID: "lamp-1", Name: "Lumen Desk Lamp", Description: "Adjustable desk lamp", PriceFull: 30, PriceSale: 30}

	// Make the query vector identical to the sofa's summary vector so the
	// sofa ranks first with similarity ~1.
	sofaVec := make([]float32, VectorDimension)
	sofaVec[0] = 1
	lampVec := make([]float32, VectorDimension)
	lampVec[1] = 1
	mock.SetVector(sofa.SummaryText(), sofaVec)
	mock.SetVector(lamp.SummaryText(), lampVec)
	mock.SetVector("comfy sofa", sofaVec)

	require.NoError(t, store.Upsert(ctx, sofa))
	require.NoError(t, store.Upsert(ctx, lamp))

	results, err := store.Search(ctx, "comfy sofa", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "sofa-1", results[0].Item.ID)
	assert.InDelta(t, 1.0, results[0].Similarity, 0.01)
	assert.Equal(t, "lamp-1", results[1].Item.ID)
	assert.Greater(t, results[0].Similarity, results[1].Similarity)
}

func TestStore_SearchEmptyCatalog(t *testing.T) {
	store, _, cleanup := newIntegrationStore(t)
	defer cleanup()

	results, err := store.Search(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestStore_SearchDeterministicOrdering(t *testing.T) {
	store, mock, cleanup := newIntegrationStore(t)
	defer cleanup()
	ctx := context.Background()

	// Identical embeddings for both items force a similarity tie; insertion
	// order must break it the same way every time.
	vec := make([]float32, VectorDimension)
	vec[0] = 1
	first := Item{ID: "twin-a", Name: "Twin A", Description: "identical"}
	second := Item{ID: "twin-b", Name: "Twin B", Description: "identical too"}
	mock.SetVector(first.SummaryText(), vec)
	mock.SetVector(second.SummaryText(), vec)
	mock.SetVector("twin", vec)

	require.NoError(t, store.Upsert(ctx, first))
	require.NoError(t, store.Upsert(ctx, second))

	for i := 0; i < 3; i++ {
		results, err := store.Search(ctx, "twin", 2)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "twin-a", results[0].Item.ID, "run %d", i)
		assert.Equal(t, "twin-b", results[1].Item.ID, "run %d", i)
	}
}

func TestStore_UpsertIsIdempotent(t *testing.T) {
	store, _, cleanup := newIntegrationStore(t)
	defer cleanup()
	ctx := context.Background()

	item := Item{ID: "sofa-1", Name: "Aria Fabric Sofa", Description: "Three-seat sofa"}
	require.NoError(t, store.Upsert(ctx, item))

	item.PriceSale = 599
	require.NoError(t, store.Upsert(ctx, item))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	items, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 599.0, items[0].PriceSale)
}

func TestStore_ListInInsertionOrder(t *testing.T) {
	store, _, cleanup := newIntegrationStore(t)
	defer cleanup()
	ctx := context.Background()

	for _, id := range []string{"c-item", "a-item", "b-item"} {
		require.NoError(t, store.Upsert(ctx, Item{ID: id, Name: id}))
	}

	items, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "c-item", items[0].ID)
	assert.Equal(t, "a-item", items[1].ID)
	assert.Equal(t, "b-item", items[2].ID)
}
