package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

// DefaultGeminiModel is used when neither the request nor the config names a model.
const DefaultGeminiModel = "gemini-2.5-flash"

// contentGenerator is the subset of genai.Models used by GeminiProvider.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiProvider talks to the Gemini API through the Google Gen AI SDK.
type GeminiProvider struct {
	name         string
	defaultModel string
	models       []string
	timeout      time.Duration
	generator    contentGenerator
}

// NewGeminiProvider creates a Gemini provider from configuration.
// An API key is required.
func NewGeminiProvider(ctx context.Context, cfg Config) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	return newGeminiProvider(cfg, client.Models), nil
}

func newGeminiProvider(cfg Config, gen contentGenerator) *GeminiProvider {
	name := cfg.Name
	if name == "" {
		name = "gemini"
	}
	model := cfg.DefaultModel
	if model == "" {
		model = DefaultGeminiModel
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	return &GeminiProvider{
		name:         name,
		defaultModel: model,
		models:       cfg.Models,
		timeout:      timeout,
		generator:    gen,
	}
}

// Name returns the provider identifier.
func (p *GeminiProvider) Name() string { return p.name }

// Available reports whether a client was configured.
func (p *GeminiProvider) Available() bool { return p.generator != nil }

// Models returns the configured model list.
func (p *GeminiProvider) Models() []string { return p.models }

// Execute performs a single GenerateContent call.
func (p *GeminiProvider) Execute(ctx context.Context, req *Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	start := time.Now()
	slog.Debug("Calling Gemini",
		"provider", p.name,
		"model", model,
		"history", len(req.History),
		"json", req.JSON,
	)

	resp, err := p.generator.GenerateContent(ctx, model, geminiContents(req), geminiConfig(req))
	if err != nil {
		return nil, p.classify(err)
	}

	text, finish := geminiText(resp)
	if text == "" {
		return nil, &CLIError{Provider: p.name, Message: fmt.Sprintf("empty response (finish reason %q)", finish)}
	}

	out := &Response{
		Content:  text,
		Model:    model,
		Provider: p.name,
		Metadata: &Metadata{
			Duration:   time.Since(start),
			StopReason: finish,
		},
	}
	if u := resp.UsageMetadata; u != nil {
		out.Metadata.InputTokens = int(u.PromptTokenCount)
		out.Metadata.OutputTokens = int(u.CandidatesTokenCount)
		out.Metadata.TotalTokens = int(u.TotalTokenCount)
	}
	return out, nil
}

func (p *GeminiProvider) classify(err error) error {
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
	case errors.As(err, &apiErrPtr) && apiErrPtr != nil:
		apiErr = *apiErrPtr
	default:
		if looksRateLimited(err.Error()) {
			return &RateLimitError{Provider: p.name, Message: "request throttled", Err: err}
		}
		return &CLIError{Provider: p.name, Message: "generate content failed", Err: err}
	}

	if apiErr.Code == http.StatusTooManyRequests || strings.EqualFold(apiErr.Status, "RESOURCE_EXHAUSTED") {
		return &RateLimitError{Provider: p.name, Message: apiErr.Message, Err: err}
	}
	return &CLIError{Provider: p.name, Message: fmt.Sprintf("api error %d", apiErr.Code), Err: err}
}

func geminiContents(req *Request) []*genai.Content {
	contents := make([]*genai.Content, 0, len(req.History)+1)
	for _, m := range req.History {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: m.Content}},
		})
	}
	contents = append(contents, &genai.Content{
		Role:  "user",
		Parts: []*genai.Part{{Text: req.Prompt}},
	})
	return contents
}

func geminiConfig(req *Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
		}
	}
	cfg.Temperature = genai.Ptr(float32(req.Temperature))
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
		if req.Schema != nil {
			cfg.ResponseSchema = geminiSchema(req.Schema)
		}
	}
	return cfg
}

func geminiSchema(s *Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Description: s.Description,
		Required:    s.Required,
		Items:       geminiSchema(s.Items),
	}
	switch s.Type {
	case TypeObject:
		out.Type = genai.TypeObject
	case TypeArray:
		out.Type = genai.TypeArray
	case TypeNumber:
		out.Type = genai.TypeNumber
	case TypeInteger:
		out.Type = genai.TypeInteger
	default:
		out.Type = genai.TypeString
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for k, v := range s.Properties {
			out.Properties[k] = geminiSchema(v)
		}
	}
	return out
}

func geminiText(resp *genai.GenerateContentResponse) (string, string) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", ""
	}
	c := resp.Candidates[0]
	finish := string(c.FinishReason)
	if c.Content == nil {
		return "", finish
	}

	var sb strings.Builder
	for _, part := range c.Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		sb.WriteString(part.Text)
	}
	return strings.TrimSpace(sb.String()), finish
}
