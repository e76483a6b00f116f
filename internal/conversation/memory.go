package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store implementation for tests and local
// development. History and AppendTurn share the semantics of PostgresStore:
// unknown threads read as empty, and a turn is appended as one unit.
//
// Safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	threads map[uuid.UUID][]*Message
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		threads: make(map[uuid.UUID][]*Message),
	}
}

// History returns the thread's messages in insertion order.
func (s *MemoryStore) History(_ context.Context, threadID uuid.UUID) ([]*ai.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ToModelMessages(s.threads[threadID]), nil
}

// AppendTurn appends the messages of one turn.
func (s *MemoryStore) AppendTurn(_ context.Context, threadID uuid.UUID, messages []*Message) error {
	if len(messages) == 0 {
		return ErrEmptyTurn
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	base := len(s.threads[threadID])
	now := time.Now()
	for i, msg := range messages {
		stored := *msg
		stored.ID = uuid.New()
		stored.ThreadID = threadID
		stored.SequenceNumber = base + i + 1
		stored.CreatedAt = now
		s.threads[threadID] = append(s.threads[threadID], &stored)
	}
	return nil
}

// MessageCount returns the number of stored messages for a thread.
func (s *MemoryStore) MessageCount(threadID uuid.UUID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.threads[threadID])
}
