package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/alienxp03/handshake/internal/core"
)

var mockLines = []string{
	"Hi! I saw we both spend a lot of time on developer tooling. What are you building at the moment?",
	"Mostly internal platforms. Lately I've been untangling our deploy pipeline. How about you?",
	"Similar pain here. We moved to incremental builds last quarter and it cut CI time in half.",
	"That's impressive. I'd love to hear how you handled cache invalidation.",
	"Happy to share notes. We kept it boring: content hashes and a shared bucket.",
	"Boring is good. Would you be open to a short call next week to compare setups?",
}

// MockProvider returns deterministic scripted output. It needs no credentials
// and is used for local runs and demos.
// Replies cycle through a fixed script and sign off with the end marker when
// the prompt asks the agent to wrap up.
type MockProvider struct {
	name    string
	latency time.Duration
	calls   atomic.Int64
}

// NewMockProvider creates a mock provider. latency simulates network time.
func NewMockProvider(latency time.Duration) *MockProvider {
	return &MockProvider{
		name:    "mock",
		latency: latency,
	}
}

// Name returns the provider identifier.
func (p *MockProvider) Name() string { return p.name }

// Available always returns true for the mock provider.
func (p *MockProvider) Available() bool { return true }

// Execute returns a scripted response.
func (p *MockProvider) Execute(ctx context.Context, req *Request) (*Response, error) {
	if p.latency > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(p.latency):
		}
	}

	var content string
	switch {
	case req.Prompt == HealthCheckPrompt:
		content = "2"
	case req.JSON:
		b, err := json.Marshal(core.AnalysisResult{
			Score: 72,
			Takeaways: []string{
				"Both work on build and deploy tooling",
				"Clear interest in a follow-up call",
			},
		})
		if err != nil {
			return nil, err
		}
		content = string(b)
	case req.MaxTokens > 0 && req.MaxTokens <= 64:
		content = `"Practical builder, worth a follow-up call."`
	default:
		n := p.calls.Add(1) - 1
		content = mockLines[n%int64(len(mockLines))]
		if strings.Contains(req.Prompt, core.EndMarker) {
			content = fmt.Sprintf("%s. Great talking, let's keep in touch. %s", strings.TrimSuffix(content, "?"), core.EndMarker)
		}
	}

	return &Response{
		Content:  content,
		Model:    "mock-v1",
		Provider: p.name,
		Metadata: &Metadata{Duration: p.latency},
	}, nil
}
