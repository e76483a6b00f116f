package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/selldesk/concierge/internal/conversation"
	"github.com/selldesk/concierge/internal/log"
	"github.com/selldesk/concierge/internal/testutil"
)

// searchQuery mirrors the retrieval tool's input shape.
type searchQuery struct {
	Query string `json:"query"`
	TopK  int    `json:"topK"`
}

// searchHit is a minimal product result for tool output.
type searchHit struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// harness wires an Agent against the mock model, a scripted catalog tool,
// and the in-memory conversation store.
type harness struct {
	g         *genkit.Genkit
	llm       *testutil.MockLLM
	store     *conversation.MemoryStore
	agent     *Agent
	toolRuns  *atomic.Int32
	toolHits  []searchHit
	lastQuery *searchQuery
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()

	h := &harness{
		g:        genkit.Init(context.Background()),
		llm:      testutil.NewMockLLM("fallback answer"),
		store:    conversation.NewMemoryStore(),
		toolRuns: &atomic.Int32{},
	}
	h.llm.RegisterModel(h.g)

	tool := genkit.DefineTool(h.g, "search_products", "Search the product catalog",
		func(_ *ai.ToolContext, in searchQuery) ([]searchHit, error) {
			h.toolRuns.Add(1)
			h.lastQuery = &in
			return h.toolHits, nil
		})

	client := NewClient(h.g, "mock/test-model", DefaultRetryPolicy(), 0, log.NewNop())
	h.agent = New(h.g, client, h.store, []ai.ToolRef{tool}, log.NewNop(), opts...)
	return h
}

func toolRequestPart(msg *ai.Message) *ai.ToolRequest {
	for _, part := range msg.Content {
		if part.Kind == ai.PartToolRequest {
			return part.ToolRequest
		}
	}
	return nil
}

func toolResponsePart(msg *ai.Message) *ai.ToolResponse {
	for _, part := range msg.Content {
		if part.Kind == ai.PartToolResponse {
			return part.ToolResponse
		}
	}
	return nil
}

func TestConverse_DirectAnswer(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.llm.EnqueueText("Hello! How can I help you shop today?")

	threadID := uuid.New()
	result, err := h.agent.Converse(context.Background(), threadID, "hi")
	require.NoError(t, err)
	assert.Equal(t, threadID, result.ThreadID)
	assert.Equal(t, "Hello! How can I help you shop today?", result.Answer)
	assert.False(t, result.PersistenceDegraded)

	history, err := h.store.History(context.Background(), threadID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, ai.RoleUser, history[0].Role)
	assert.Equal(t, ai.RoleModel, history[1].Role)
	assert.Equal(t, int32(0), h.toolRuns.Load())
}

func TestConverse_ToolRoundTripPersistsFourMessages(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.toolHits = []searchHit{
		{Name: "Aria Fabric Sofa", Price: 649},
		{Name: "Nord Leather Sofa", Price: 1199},
	}
	h.llm.EnqueueToolCalls(&ai.ToolRequest{
		Name: "search_products",
		Ref:  "call-1",
		Input: map[string]any{
			"query": "sofas",
			"topK":  3,
		},
	})
	h.llm.EnqueueText("We carry the Aria Fabric Sofa ($649) and the Nord Leather Sofa ($1199).")

	threadID := uuid.New()
	result, err := h.agent.Converse(context.Background(), threadID, "show me sofas")
	require.NoError(t, err)
	assert.Contains(t, result.Answer, "Aria Fabric Sofa")
	assert.Contains(t, result.Answer, "Nord Leather Sofa")

	require.NotNil(t, h.lastQuery)
	assert.Equal(t, "sofas", h.lastQuery.Query)
	assert.Equal(t, 3, h.lastQuery.TopK)

	history, err := h.store.History(context.Background(), threadID)
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, ai.RoleUser, history[0].Role)
	assert.Equal(t, ai.RoleModel, history[1].Role)
	assert.Equal(t, ai.RoleTool, history[2].Role)
	assert.Equal(t, ai.RoleModel, history[3].Role)

	// The tool result correlates with the assistant request that caused it.
	req := toolRequestPart(history[1])
	require.NotNil(t, req)
	resp := toolResponsePart(history[2])
	require.NotNil(t, resp)
	assert.Equal(t, req.Ref, resp.Ref)
	assert.Equal(t, "search_products", resp.Name)
}

func TestConverse_EmptyCatalogStillAnswers(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.toolHits = nil
	h.llm.EnqueueToolCalls(&ai.ToolRequest{
		Name:  "search_products",
		Ref:   "call-1",
		Input: map[string]any{"query": "submarines", "topK": 3},
	})
	h.llm.EnqueueText("I could not find any matching items in our catalog.")

	result, err := h.agent.Converse(context.Background(), uuid.New(), "got any submarines?")
	require.NoError(t, err)
	assert.Equal(t, "I could not find any matching items in our catalog.", result.Answer)
	assert.Equal(t, int32(1), h.toolRuns.Load())
}

func TestConverse_ToolLoopExceeded(t *testing.T) {
	t.Parallel()

	h := newHarness(t, WithMaxToolRounds(2))
	for i := 0; i < 3; i++ {
		h.llm.EnqueueToolCalls(&ai.ToolRequest{
			Name:  "search_products",
			Ref:   fmt.Sprintf("call-%d", i+1),
			Input: map[string]any{"query": "sofas", "topK": 3},
		})
	}

	threadID := uuid.New()
	_, err := h.agent.Converse(context.Background(), threadID, "show me sofas")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrToolLoopExceeded)

	// Two tool rounds executed, the third request aborted the turn.
	assert.Equal(t, int32(2), h.toolRuns.Load())
	assert.Equal(t, 3, h.llm.CallCount())

	// An aborted turn persists nothing.
	assert.Equal(t, 0, h.store.MessageCount(threadID))
}

func TestConverse_UnknownToolFailsTurn(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.llm.EnqueueToolCalls(&ai.ToolRequest{
		Name:  "order_forklift",
		Ref:   "call-1",
		Input: map[string]any{},
	})

	threadID := uuid.New()
	_, err := h.agent.Converse(context.Background(), threadID, "order me a forklift")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrToolNotFound)
	assert.Equal(t, 0, h.store.MessageCount(threadID))
}

func TestConverse_EmptyInput(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	_, err := h.agent.Converse(context.Background(), uuid.New(), "   ")
	assert.ErrorIs(t, err, ErrEmptyInput)
	assert.Equal(t, 0, h.llm.CallCount())
}

func TestConverse_ModelErrorPersistsNothing(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.llm.EnqueueError(errors.New("HTTP 500 Internal Server Error"))

	threadID := uuid.New()
	_, err := h.agent.Converse(context.Background(), threadID, "hi")
	require.Error(t, err)
	assert.Equal(t, 0, h.store.MessageCount(threadID))
}

func TestConverse_HistoryVisibleToModel(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	threadID := uuid.New()

	err := h.store.AppendTurn(context.Background(), threadID, []*conversation.Message{
		conversation.NewUserMessage("do you sell lamps?"),
		{Role: conversation.RoleModel, Content: []*ai.Part{ai.NewTextPart("Yes, we have several desk lamps.")}},
	})
	require.NoError(t, err)

	h.llm.EnqueueText("The Lumen desk lamp is $30.")
	_, err = h.agent.Converse(context.Background(), threadID, "which is cheapest?")
	require.NoError(t, err)

	reqs := h.llm.Requests()
	require.Len(t, reqs, 1)
	require.Len(t, reqs[0].Messages, 4) // system + two stored + new user message
	assert.Equal(t, ai.RoleSystem, reqs[0].Messages[0].Role)
	assert.Equal(t, "do you sell lamps?", reqs[0].Messages[1].Text())
	assert.Equal(t, "which is cheapest?", reqs[0].Messages[3].Text())

	assert.Equal(t, 4, h.store.MessageCount(threadID))
}

// failingStore reads fine but refuses every write.
type failingStore struct {
	inner *conversation.MemoryStore
}

func (s *failingStore) History(ctx context.Context, threadID uuid.UUID) ([]*ai.Message, error) {
	return s.inner.History(ctx, threadID)
}

func (s *failingStore) AppendTurn(context.Context, uuid.UUID, []*conversation.Message) error {
	return errors.New("disk on fire")
}

func TestConverse_PersistFailureStillReturnsAnswer(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.agent.store = &failingStore{inner: h.store}
	h.llm.EnqueueText("Here is your answer.")

	result, err := h.agent.Converse(context.Background(), uuid.New(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "Here is your answer.", result.Answer)
	assert.True(t, result.PersistenceDegraded)
}

func TestConverse_SerializesTurnsPerThread(t *testing.T) {
	defer goleak.VerifyNone(t,
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
		goleak.IgnoreTopFunction("net/http.(*http2clientConnReadLoop).run"),
		// genkit.Init calls signal.NotifyContext and discards the stop
		// function, so its signal-watcher goroutine can never exit.
		goleak.IgnoreTopFunction("os/signal.NotifyContext.func1"),
	)

	h := newHarness(t)
	threadID := uuid.New()

	const turns = 8
	var wg sync.WaitGroup
	errs := make([]error, turns)
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.agent.Converse(context.Background(), threadID, fmt.Sprintf("message %d", i))
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "turn %d", i)
	}

	// Each turn appended a user/model pair with no interleaving.
	history, err := h.store.History(context.Background(), threadID)
	require.NoError(t, err)
	require.Len(t, history, 2*turns)
	for i, msg := range history {
		if i%2 == 0 {
			assert.Equal(t, ai.RoleUser, msg.Role, "message %d", i)
		} else {
			assert.Equal(t, ai.RoleModel, msg.Role, "message %d", i)
		}
	}
}
