package llm

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// HealthCheckPrompt is the prompt sent to providers for health checks.
const HealthCheckPrompt = "1+1? One digit answer only"

// HealthStatus is the result of probing a provider.
type HealthStatus struct {
	Available    bool          `json:"available"`
	ResponseTime time.Duration `json:"response_time"`
	Error        string        `json:"error,omitempty"`
	CheckedAt    time.Time     `json:"checked_at"`
}

// CheckHealth sends a tiny prompt to p without retrying and validates the answer.
func CheckHealth(ctx context.Context, p Provider) HealthStatus {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	status := HealthStatus{CheckedAt: start}
	if !p.Available() {
		status.Error = "provider not available"
		return status
	}

	resp, err := p.Execute(ctx, &Request{Prompt: HealthCheckPrompt, MaxTokens: 8})
	status.ResponseTime = time.Since(start)
	switch {
	case err != nil:
		status.Error = err.Error()
	case resp == nil:
		status.Error = "empty response"
	default:
		if err := validateHealthResponse(resp.Content); err != nil {
			status.Error = err.Error()
		} else {
			status.Available = true
		}
	}
	return status
}

func validateHealthResponse(content string) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "2" {
		return nil
	}
	if trimmed == "" {
		return fmt.Errorf("unexpected response: empty")
	}
	if len(trimmed) > 120 {
		trimmed = trimmed[:120] + "..."
	}
	return fmt.Errorf("unexpected response: %q", trimmed)
}
