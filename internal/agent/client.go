package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"

	"github.com/selldesk/concierge/internal/log"
)

// Client wraps Genkit model generation with client-side rate limiting and
// retry on provider rate-limit errors.
//
// Client is safe for concurrent use by multiple goroutines.
type Client struct {
	g         *genkit.Genkit
	modelName string
	policy    RetryPolicy
	limiter   *rate.Limiter
	logger    log.Logger

	// sleep is swappable so tests can observe backoff without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient creates a Client for the given provider-qualified model name.
//
// requestsPerMinute throttles outbound model calls client-side; zero disables
// throttling. logger may be nil, in which case a nop logger is used.
func NewClient(g *genkit.Genkit, modelName string, policy RetryPolicy, requestsPerMinute int, logger log.Logger) *Client {
	if logger == nil {
		logger = log.NewNop()
	}

	var limiter *rate.Limiter
	if requestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), 1)
	}

	return &Client{
		g:         g,
		modelName: modelName,
		policy:    policy,
		limiter:   limiter,
		logger:    logger,
		sleep:     sleepContext,
	}
}

// Generate calls the model, retrying on rate-limit errors per the retry
// policy. The configured model name is applied before the caller's options,
// so callers can still override it.
func (c *Client) Generate(ctx context.Context, opts ...ai.GenerateOption) (*ai.ModelResponse, error) {
	allOpts := make([]ai.GenerateOption, 0, len(opts)+1)
	allOpts = append(allOpts, ai.WithModelName(c.modelName))
	allOpts = append(allOpts, opts...)

	resp, err := retry(ctx, c.policy, isRateLimited, c.sleep,
		func(attempt int, delay time.Duration, cause error) {
			c.logger.Warn("model call rate limited, retrying",
				"attempt", attempt,
				"max_attempts", c.policy.MaxAttempts,
				"delay", delay,
				"error", cause)
		},
		func() (*ai.ModelResponse, error) {
			if c.limiter != nil {
				if err := c.limiter.Wait(ctx); err != nil {
					return nil, fmt.Errorf("waiting for rate limiter: %w", err)
				}
			}
			return genkit.Generate(ctx, c.g, allOpts...)
		})
	if err != nil {
		return nil, fmt.Errorf("model call failed: %w", err)
	}
	return resp, nil
}

// ModelName returns the provider-qualified model name the client targets.
func (c *Client) ModelName() string {
	return c.modelName
}
