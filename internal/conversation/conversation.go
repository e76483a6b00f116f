// Package conversation provides durable per-thread conversation history.
//
// Responsibilities: save and load the message history of assistant threads.
// A thread is identified by UUID and holds an ordered sequence of messages;
// each message stores its Genkit ai.Part content serialized as JSONB.
//
// Two implementations of Store exist: a PostgreSQL-backed store for
// production (postgres.go) and an in-memory store for tests and local
// development (memory.go).
package conversation

import (
	"context"
	"errors"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"
)

// DefaultHistoryLimit is the default number of messages to load per thread.
const DefaultHistoryLimit int32 = 1000

// Role constants define valid message roles for type safety.
// They mirror Genkit's ai.Role values that appear in a turn.
const (
	RoleUser  = "user"
	RoleModel = "model"
	RoleTool  = "tool"
)

// Sentinel errors for conversation operations.
// Check with errors.Is().
var (
	// ErrThreadNotFound indicates the requested thread does not exist.
	ErrThreadNotFound = errors.New("thread not found")

	// ErrEmptyTurn indicates AppendTurn was called with no messages.
	ErrEmptyTurn = errors.New("turn contains no messages")
)

// Thread represents a conversation thread (application-level type).
type Thread struct {
	ID           uuid.UUID
	CreatedAt    time.Time
	UpdatedAt    time.Time
	MessageCount int
}

// Message represents a single conversation message (application-level type).
// Content stores Genkit's ai.Part slice, serialized as JSONB in the database.
type Message struct {
	ID             uuid.UUID
	ThreadID       uuid.UUID
	Role           string     // "user" | "model" | "tool"
	Content        []*ai.Part // Genkit Part slice (stored as JSONB)
	SequenceNumber int
	CreatedAt      time.Time
}

// Store persists conversation history per thread.
//
// History returns the thread's messages in insertion order. An unknown
// thread is not an error: it returns an empty slice, so callers treat the
// thread as fresh.
//
// AppendTurn atomically appends the messages of one completed turn. The
// thread row is created on first write. Either every message of the turn is
// persisted or none are.
type Store interface {
	History(ctx context.Context, threadID uuid.UUID) ([]*ai.Message, error)
	AppendTurn(ctx context.Context, threadID uuid.UUID, messages []*Message) error
}

// NewUserMessage builds a user-role Message from plain text.
func NewUserMessage(text string) *Message {
	return &Message{
		Role:    RoleUser,
		Content: []*ai.Part{ai.NewTextPart(text)},
	}
}

// FromModelMessage converts a Genkit message into a storable Message.
func FromModelMessage(msg *ai.Message) *Message {
	return &Message{
		Role:    string(msg.Role),
		Content: msg.Content,
	}
}

// ToModelMessages converts stored messages into Genkit messages, preserving order.
func ToModelMessages(messages []*Message) []*ai.Message {
	out := make([]*ai.Message, len(messages))
	for i, msg := range messages {
		out[i] = &ai.Message{
			Role:    ai.Role(msg.Role),
			Content: msg.Content,
		}
	}
	return out
}
