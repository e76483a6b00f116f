package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/selldesk/concierge/internal/log"
)

// searchTimeout bounds vector search queries to prevent blocking a turn.
const searchTimeout = 10 * time.Second

// Store manages catalog items with vector search capabilities.
// It handles embedding generation and cosine similarity search using
// PostgreSQL + pgvector.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool     *pgxpool.Pool
	embedder ai.Embedder
	logger   log.Logger
}

// NewStore creates a new Store instance.
// logger may be nil, in which case a nop logger is used.
func NewStore(pool *pgxpool.Pool, embedder ai.Embedder, logger log.Logger) *Store {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{
		pool:     pool,
		embedder: embedder,
		logger:   logger,
	}
}

// embedText runs the embedder over a single text and validates the output.
// All embedder failures wrap ErrEmbedding.
func (s *Store) embedText(ctx context.Context, text string) (pgvector.Vector, error) {
	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{
			{Content: []*ai.Part{ai.NewTextPart(text)}},
		},
	})
	if err != nil {
		return pgvector.Vector{}, fmt.Errorf("%w: %v", ErrEmbedding, err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return pgvector.Vector{}, fmt.Errorf("%w: provider returned empty embedding", ErrEmbedding)
	}
	return pgvector.NewVector(resp.Embeddings[0].Embedding), nil
}

// Upsert inserts or updates a catalog item. The item's summary text is
// embedded and stored alongside the structured fields.
func (s *Store) Upsert(ctx context.Context, item Item) error {
	embedding, err := s.embedText(ctx, item.SummaryText())
	if err != nil {
		return fmt.Errorf("embedding item %q: %w", item.ID, err)
	}

	categoriesJSON, err := json.Marshal(item.Categories)
	if err != nil {
		return fmt.Errorf("marshaling categories for %q: %w", item.ID, err)
	}
	reviewsJSON, err := json.Marshal(item.Reviews)
	if err != nil {
		return fmt.Errorf("marshaling reviews for %q: %w", item.ID, err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO catalog_items
		   (id, name, description, brand, price_full, price_sale, categories, reviews, notes, summary_text, embedding)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (id) DO UPDATE SET
		   name = EXCLUDED.name,
		   description = EXCLUDED.description,
		   brand = EXCLUDED.brand,
		   price_full = EXCLUDED.price_full,
		   price_sale = EXCLUDED.price_sale,
		   categories = EXCLUDED.categories,
		   reviews = EXCLUDED.reviews,
		   notes = EXCLUDED.notes,
		   summary_text = EXCLUDED.summary_text,
		   embedding = EXCLUDED.embedding`,
		item.ID, item.Name, item.Description, item.Brand,
		item.PriceFull, item.PriceSale, categoriesJSON, reviewsJSON,
		item.Notes, item.SummaryText(), embedding)
	if err != nil {
		return fmt.Errorf("upserting catalog item %q: %w", item.ID, err)
	}

	s.logger.Debug("upserted catalog item", "id", item.ID, "name", item.DisplayName())
	return nil
}

// Search embeds the query and returns up to topK items ordered by descending
// cosine similarity. Ties break by catalog insertion order, so repeated
// searches against an unchanged catalog return the same ranked list.
//
// Zero matches is not an error: an empty catalog yields an empty slice.
func (s *Store) Search(ctx context.Context, query string, topK int) ([]SearchResult, error) {
	if topK < 1 {
		return nil, fmt.Errorf("topK must be >= 1, got %d", topK)
	}

	queryCtx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	queryEmbedding, err := s.embedText(queryCtx, query)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("embedding query timeout: %w", err)
		}
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	// <=> is cosine distance; similarity = 1 - distance.
	rows, err := s.pool.Query(queryCtx,
		`SELECT id, name, description, brand, price_full, price_sale,
		        categories, reviews, notes,
		        1 - (embedding <=> $1) AS similarity
		   FROM catalog_items
		  ORDER BY embedding <=> $1 ASC, seq ASC
		  LIMIT $2`,
		queryEmbedding, topK)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("search query timeout: %w", err)
		}
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer rows.Close()

	results, err := s.scanResults(rows)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("catalog search", "query", query, "topK", topK, "result_count", len(results))
	return results, nil
}

// List returns all catalog items in insertion order.
// Used by the storefront listing endpoint.
func (s *Store) List(ctx context.Context) ([]Item, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, description, brand, price_full, price_sale,
		        categories, reviews, notes
		   FROM catalog_items
		  ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing catalog items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		item, err := scanItem(rows.Scan)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading catalog rows: %w", err)
	}
	return items, nil
}

// Count returns the total number of catalog items.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM catalog_items`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting catalog items: %w", err)
	}
	return count, nil
}

type scanFunc func(dest ...any) error

// scanItem reads one item row's structured columns.
func scanItem(scan scanFunc) (Item, error) {
	var item Item
	var categoriesJSON, reviewsJSON []byte
	if err := scan(
		&item.ID, &item.Name, &item.Description, &item.Brand,
		&item.PriceFull, &item.PriceSale,
		&categoriesJSON, &reviewsJSON, &item.Notes,
	); err != nil {
		return Item{}, fmt.Errorf("scanning catalog row: %w", err)
	}
	if len(categoriesJSON) > 0 {
		if err := json.Unmarshal(categoriesJSON, &item.Categories); err != nil {
			return Item{}, fmt.Errorf("unmarshaling categories for %q: %w", item.ID, err)
		}
	}
	if len(reviewsJSON) > 0 {
		if err := json.Unmarshal(reviewsJSON, &item.Reviews); err != nil {
			return Item{}, fmt.Errorf("unmarshaling reviews for %q: %w", item.ID, err)
		}
	}
	return item, nil
}

// scanResults reads search rows including the similarity column.
func (s *Store) scanResults(rows pgx.Rows) ([]SearchResult, error) {
	var results []SearchResult
	for rows.Next() {
		var item Item
		var categoriesJSON, reviewsJSON []byte
		var similarity float64
		if err := rows.Scan(
			&item.ID, &item.Name, &item.Description, &item.Brand,
			&item.PriceFull, &item.PriceSale,
			&categoriesJSON, &reviewsJSON, &item.Notes,
			&similarity,
		); err != nil {
			return nil, fmt.Errorf("scanning search row: %w", err)
		}
		if len(categoriesJSON) > 0 {
			if err := json.Unmarshal(categoriesJSON, &item.Categories); err != nil {
				return nil, fmt.Errorf("unmarshaling categories for %q: %w", item.ID, err)
			}
		}
		if len(reviewsJSON) > 0 {
			if err := json.Unmarshal(reviewsJSON, &item.Reviews); err != nil {
				return nil, fmt.Errorf("unmarshaling reviews for %q: %w", item.ID, err)
			}
		}
		results = append(results, SearchResult{Item: item, Similarity: similarity})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading search rows: %w", err)
	}
	return results, nil
}
