package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// RetryPolicy controls how rate-limited calls are retried.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// BaseDelay is the wait before the first retry. It doubles for every
	// following retry.
	BaseDelay time.Duration
}

// DefaultRetryPolicy retries three times, waiting 2s, 4s and 8s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  2 * time.Second,
	}
}

// Delay returns the wait before the given retry (1-based).
func (p RetryPolicy) Delay(retry int) time.Duration {
	if retry < 1 {
		return 0
	}
	return p.BaseDelay << (retry - 1)
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RetryingClient wraps a Provider with bounded exponential backoff for
// rate-limited calls. Any other error is returned without retrying.
// It is safe for concurrent use when the wrapped provider is.
type RetryingClient struct {
	provider Provider
	policy   RetryPolicy
	sleep    Sleeper
	logger   *slog.Logger
}

// ClientOption configures a RetryingClient.
type ClientOption func(*RetryingClient)

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(p RetryPolicy) ClientOption {
	return func(c *RetryingClient) {
		if p.MaxRetries >= 0 {
			c.policy.MaxRetries = p.MaxRetries
		}
		if p.BaseDelay > 0 {
			c.policy.BaseDelay = p.BaseDelay
		}
	}
}

// WithSleeper replaces the backoff wait, mainly for tests.
func WithSleeper(s Sleeper) ClientOption {
	return func(c *RetryingClient) {
		c.sleep = s
	}
}

// WithLogger sets the logger used for retry attempts.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *RetryingClient) {
		c.logger = l
	}
}

// NewRetryingClient creates a client around a provider.
func NewRetryingClient(p Provider, opts ...ClientOption) *RetryingClient {
	c := &RetryingClient{
		provider: p,
		policy:   DefaultRetryPolicy(),
		sleep:    sleepContext,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Provider returns the wrapped provider.
func (c *RetryingClient) Provider() Provider {
	return c.provider
}

// Complete runs a free-text completion and returns the trimmed text.
func (c *RetryingClient) Complete(ctx context.Context, req *Request) (string, error) {
	resp, err := c.execute(ctx, req)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}

// CompleteJSON runs a structured completion and decodes the JSON object into v.
// A response that is not valid JSON is returned as an error.
func (c *RetryingClient) CompleteJSON(ctx context.Context, req *Request, v any) error {
	structured := *req
	structured.JSON = true

	resp, err := c.execute(ctx, &structured)
	if err != nil {
		return err
	}
	if err := DecodeJSON(resp.Content, v); err != nil {
		return fmt.Errorf("invalid structured response from %s: %w", c.provider.Name(), err)
	}
	return nil
}

func (c *RetryingClient) execute(ctx context.Context, req *Request) (*Response, error) {
	maxRetries := c.policy.MaxRetries
	name := c.provider.Name()

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			backoff := c.policy.Delay(attempt)
			c.logger.Info("Retrying completion after backoff",
				"provider", name,
				"attempt", attempt+1,
				"max_attempts", maxRetries+1,
				"backoff", backoff,
			)
			if err := c.sleep(ctx, backoff); err != nil {
				return nil, err
			}
		}

		resp, err := c.provider.Execute(ctx, req)
		if err == nil {
			if attempt > 0 {
				c.logger.Info("Completion succeeded after retry",
					"provider", name,
					"attempt", attempt+1,
				)
			}
			return resp, nil
		}

		if !IsRateLimit(err) {
			c.logger.Debug("Completion error is not retriable, failing immediately",
				"provider", name,
				"error", err,
			)
			return nil, err
		}

		if attempt >= maxRetries {
			c.logger.Error("Completion failed after all retries",
				"provider", name,
				"attempts", attempt+1,
				"error", err,
			)
			return nil, fmt.Errorf("failed after %d attempts: %w", attempt+1, err)
		}

		c.logger.Warn("Completion rate limited, will retry",
			"provider", name,
			"attempt", attempt+1,
			"max_attempts", maxRetries+1,
			"error", err,
		)
	}
}

// DecodeJSON decodes a JSON object from model output. A surrounding Markdown
// code fence is tolerated; anything else must be valid JSON.
func DecodeJSON(content string, v any) error {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimPrefix(s, "json")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	if s == "" {
		return fmt.Errorf("empty response")
	}
	return json.Unmarshal([]byte(s), v)
}
