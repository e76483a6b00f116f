package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/selldesk/concierge/internal/log"
)

// PostgresStore manages thread persistence with a PostgreSQL backend.
//
// PostgresStore is safe for concurrent use by multiple goroutines. Writes to
// the same thread serialize on a row lock (SELECT ... FOR UPDATE), which
// keeps sequence numbers gap-free under concurrency.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger log.Logger
	limit  int32
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a PostgresStore on the given pool.
// logger may be nil, in which case a nop logger is used.
func NewPostgresStore(pool *pgxpool.Pool, logger log.Logger) *PostgresStore {
	if logger == nil {
		logger = log.NewNop()
	}
	return &PostgresStore{
		pool:   pool,
		logger: logger,
		limit:  DefaultHistoryLimit,
	}
}

// History returns the thread's messages in sequence order. Threads longer
// than the limit drop their oldest messages, keeping the recent context the
// model needs. An unknown thread returns an empty slice so the caller starts
// fresh.
func (s *PostgresStore) History(ctx context.Context, threadID uuid.UUID) ([]*ai.Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT role, content FROM (
		   SELECT role, content, sequence_number
		     FROM thread_messages
		    WHERE thread_id = $1
		    ORDER BY sequence_number DESC
		    LIMIT $2
		 ) recent
		 ORDER BY sequence_number ASC`,
		threadID, s.limit)
	if err != nil {
		return nil, fmt.Errorf("querying history for thread %s: %w", threadID, err)
	}
	defer rows.Close()

	var messages []*ai.Message
	for rows.Next() {
		var role string
		var contentJSON []byte
		if err := rows.Scan(&role, &contentJSON); err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}

		var content []*ai.Part
		if err := json.Unmarshal(contentJSON, &content); err != nil {
			// Skip malformed rows rather than poisoning the whole thread.
			s.logger.Warn("failed to unmarshal message content",
				"thread_id", threadID, "error", err)
			continue
		}

		messages = append(messages, &ai.Message{
			Role:    ai.Role(role),
			Content: content,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading history rows: %w", err)
	}

	s.logger.Debug("loaded history", "thread_id", threadID, "count", len(messages))
	return messages, nil
}

// AppendTurn appends the messages of one completed turn atomically.
//
// The thread row is created on first write. The row lock taken before
// reading the max sequence number prevents concurrent writers from
// interleaving sequence numbers.
func (s *PostgresStore) AppendTurn(ctx context.Context, threadID uuid.UUID, messages []*Message) error {
	if len(messages) == 0 {
		return ErrEmptyTurn
	}
	for i, msg := range messages {
		for j, part := range msg.Content {
			if part == nil {
				return fmt.Errorf("message %d has nil content at index %d", i, j)
			}
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	// Rollback is a no-op after Commit; log for debugging only.
	defer func() {
		if err := tx.Rollback(ctx); err != nil {
			s.logger.Debug("transaction rollback (may be already committed)", "error", err)
		}
	}()

	// Create the thread on first write, then lock its row so concurrent
	// AppendTurn calls for the same thread serialize.
	if _, err := tx.Exec(ctx,
		`INSERT INTO threads (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`,
		threadID); err != nil {
		return fmt.Errorf("ensuring thread %s: %w", threadID, err)
	}

	var lockedID uuid.UUID
	if err := tx.QueryRow(ctx,
		`SELECT id FROM threads WHERE id = $1 FOR UPDATE`,
		threadID).Scan(&lockedID); err != nil {
		return fmt.Errorf("locking thread %s: %w", threadID, err)
	}

	var maxSeq int32
	if err := tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(sequence_number), 0) FROM thread_messages WHERE thread_id = $1`,
		threadID).Scan(&maxSeq); err != nil {
		return fmt.Errorf("reading max sequence number: %w", err)
	}

	for i, msg := range messages {
		contentJSON, err := json.Marshal(msg.Content)
		if err != nil {
			return fmt.Errorf("marshaling message content at index %d: %w", i, err)
		}

		seqNum := maxSeq + int32(i) + 1 // #nosec G115 -- i is a loop index bounded by slice length

		if _, err := tx.Exec(ctx,
			`INSERT INTO thread_messages (thread_id, role, content, sequence_number)
			 VALUES ($1, $2, $3, $4)`,
			threadID, msg.Role, contentJSON, seqNum); err != nil {
			return fmt.Errorf("inserting message %d: %w", i, err)
		}
	}

	newCount := maxSeq + int32(len(messages)) // #nosec G115 -- len bounded by practical turn sizes
	if _, err := tx.Exec(ctx,
		`UPDATE threads SET updated_at = now(), message_count = $1 WHERE id = $2`,
		newCount, threadID); err != nil {
		return fmt.Errorf("updating thread metadata: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	s.logger.Debug("appended turn", "thread_id", threadID, "count", len(messages))
	return nil
}

// GetThread retrieves thread metadata by ID.
// Returns ErrThreadNotFound if the thread does not exist.
func (s *PostgresStore) GetThread(ctx context.Context, threadID uuid.UUID) (*Thread, error) {
	var t Thread
	err := s.pool.QueryRow(ctx,
		`SELECT id, created_at, updated_at, message_count FROM threads WHERE id = $1`,
		threadID).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt, &t.MessageCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("thread %s: %w", threadID, ErrThreadNotFound)
		}
		return nil, fmt.Errorf("getting thread %s: %w", threadID, err)
	}
	return &t, nil
}
