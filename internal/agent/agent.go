// Package agent implements the conversational turn loop.
//
// A turn starts with a new user message on a thread. The agent loads the
// thread's history, then alternates between asking the model and executing
// the tools it requests until the model yields a final text answer. The
// whole turn (user message, intermediate tool traffic, final answer) is
// persisted atomically at the end.
//
// The loop is an explicit state machine:
//
//	LOADING -> AWAITING_MODEL <-> EXECUTING_TOOLS -> PERSISTING -> DONE
//	                         \-> FAILED
//
// Tool rounds are bounded; a model that keeps requesting tools past the
// limit aborts the turn with ErrToolLoopExceeded and nothing is persisted.
package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/google/uuid"

	"github.com/selldesk/concierge/internal/conversation"
	"github.com/selldesk/concierge/internal/log"
)

// DefaultMaxToolRounds bounds model/tool alternations within a single turn.
const DefaultMaxToolRounds = 5

// systemPrompt frames every conversation. History is persisted without it,
// so updating the prompt applies to old threads too.
const systemPrompt = `You are a helpful shopping assistant for an online store.
Answer questions about products using the search_products tool to look up the
catalog. Ground your answers in tool results: mention product names and prices
from the catalog, and say clearly when no matching items were found. Keep
answers concise and friendly.`

// state is the agent loop's current phase within a turn.
type state int

const (
	stateLoading state = iota
	stateAwaitingModel
	stateExecutingTools
	statePersisting
	stateDone
	stateFailed
)

// Result is the outcome of one completed turn.
type Result struct {
	ThreadID uuid.UUID
	Answer   string

	// PersistenceDegraded is set when the answer was produced but the turn
	// could not be saved. The caller still gets the answer; the thread's
	// durable history is missing this turn.
	PersistenceDegraded bool
}

// Agent orchestrates turns: model calls, tool execution, and persistence.
//
// Agent is safe for concurrent use; turns on the same thread are serialized.
type Agent struct {
	g             *genkit.Genkit
	client        *Client
	store         conversation.Store
	tools         []ai.ToolRef
	maxToolRounds int
	logger        log.Logger
	locks         *threadLocks
}

// Option configures an Agent.
type Option func(*Agent)

// WithMaxToolRounds overrides the tool round limit per turn.
func WithMaxToolRounds(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxToolRounds = n
		}
	}
}

// New creates an Agent. tools are offered to the model on every generation.
// logger may be nil, in which case a nop logger is used.
func New(g *genkit.Genkit, client *Client, store conversation.Store, tools []ai.ToolRef, logger log.Logger, opts ...Option) *Agent {
	if logger == nil {
		logger = log.NewNop()
	}
	a := &Agent{
		g:             g,
		client:        client,
		store:         store,
		tools:         tools,
		maxToolRounds: DefaultMaxToolRounds,
		logger:        logger,
		locks:         newThreadLocks(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Converse runs one turn on the given thread and returns the final answer.
//
// An unknown threadID is not an error: the thread starts fresh and is created
// on persist. If the turn fails before an answer exists, nothing is persisted
// and the error is returned. If persistence fails after a successful answer,
// the answer is returned with Result.PersistenceDegraded set.
func (a *Agent) Converse(ctx context.Context, threadID uuid.UUID, userText string) (*Result, error) {
	if strings.TrimSpace(userText) == "" {
		return nil, ErrEmptyInput
	}

	release := a.locks.acquire(threadID)
	defer release()

	var (
		working []*ai.Message           // full model-visible history
		turn    []*conversation.Message // this turn's messages, persisted at the end
		answer  string
		rounds  int
		failure error
		result  *Result
	)

	appendToTurn := func(msg *conversation.Message) {
		turn = append(turn, msg)
		working = append(working, &ai.Message{
			Role:    ai.Role(msg.Role),
			Content: msg.Content,
		})
	}

	st := stateLoading
	for st != stateDone && st != stateFailed {
		switch st {
		case stateLoading:
			history, err := a.store.History(ctx, threadID)
			if err != nil {
				failure = fmt.Errorf("loading thread %s: %w", threadID, err)
				st = stateFailed
				continue
			}
			working = append(working, history...)
			appendToTurn(conversation.NewUserMessage(userText))
			st = stateAwaitingModel

		case stateAwaitingModel:
			resp, err := a.client.Generate(ctx,
				ai.WithSystem(systemPrompt),
				ai.WithMessages(working...),
				ai.WithTools(a.tools...),
				ai.WithReturnToolRequests(true),
			)
			if err != nil {
				failure = err
				st = stateFailed
				continue
			}
			if resp.Message == nil {
				failure = fmt.Errorf("model returned no message")
				st = stateFailed
				continue
			}

			appendToTurn(conversation.FromModelMessage(resp.Message))

			requests := resp.ToolRequests()
			if len(requests) == 0 {
				answer = resp.Text()
				st = statePersisting
				continue
			}
			if rounds >= a.maxToolRounds {
				failure = fmt.Errorf("%w (%d rounds)", ErrToolLoopExceeded, a.maxToolRounds)
				st = stateFailed
				continue
			}
			st = stateExecutingTools

		case stateExecutingTools:
			requests := lastToolRequests(turn)
			if err := a.executeTools(ctx, requests, appendToTurn); err != nil {
				failure = err
				st = stateFailed
				continue
			}
			rounds++
			st = stateAwaitingModel

		case statePersisting:
			if err := a.store.AppendTurn(ctx, threadID, turn); err != nil {
				a.logger.Warn("turn persistence failed, returning answer anyway",
					"thread_id", threadID, "error", err)
				result = &Result{ThreadID: threadID, Answer: answer, PersistenceDegraded: true}
				st = stateDone
				continue
			}
			result = &Result{ThreadID: threadID, Answer: answer}
			st = stateDone
		}
	}

	if st == stateFailed {
		a.logger.Error("turn failed", "thread_id", threadID, "error", failure)
		return nil, failure
	}

	a.logger.Info("turn completed",
		"thread_id", threadID,
		"tool_rounds", rounds,
		"persistence_degraded", result.PersistenceDegraded)
	return result, nil
}

// executeTools runs the requested tools sequentially in request order,
// appending one correlated tool-role message per result.
func (a *Agent) executeTools(ctx context.Context, requests []*ai.ToolRequest, appendToTurn func(*conversation.Message)) error {
	for _, req := range requests {
		tool := genkit.LookupTool(a.g, req.Name)
		if tool == nil {
			return fmt.Errorf("%w: %q", ErrToolNotFound, req.Name)
		}

		a.logger.Debug("executing tool", "tool", req.Name, "ref", req.Ref)
		output, err := tool.RunRaw(ctx, req.Input)
		if err != nil {
			return fmt.Errorf("tool %q failed: %w", req.Name, err)
		}

		appendToTurn(&conversation.Message{
			Role: conversation.RoleTool,
			Content: []*ai.Part{
				ai.NewToolResponsePart(&ai.ToolResponse{
					Name:   req.Name,
					Ref:    req.Ref,
					Output: output,
				}),
			},
		})
	}
	return nil
}

// lastToolRequests extracts the tool requests from the most recent
// model-role message of the turn.
func lastToolRequests(turn []*conversation.Message) []*ai.ToolRequest {
	for i := len(turn) - 1; i >= 0; i-- {
		if turn[i].Role != conversation.RoleModel {
			continue
		}
		var requests []*ai.ToolRequest
		for _, part := range turn[i].Content {
			if part.Kind == ai.PartToolRequest {
				requests = append(requests, part.ToolRequest)
			}
		}
		return requests
	}
	return nil
}
