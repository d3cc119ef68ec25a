package llm

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type fakeGenerator struct {
	resp     *genai.GenerateContentResponse
	err      error
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

func (g *fakeGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	g.model = model
	g.contents = contents
	g.config = config
	return g.resp, g.err
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content:      &genai.Content{Role: "model", Parts: []*genai.Part{{Text: text}}},
			FinishReason: genai.FinishReasonStop,
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     10,
			CandidatesTokenCount: 5,
			TotalTokenCount:      15,
		},
	}
}

func TestGeminiProviderExecute(t *testing.T) {
	gen := &fakeGenerator{resp: textResponse(" Nice to meet you. ")}
	p := newGeminiProvider(Config{}, gen)

	resp, err := p.Execute(context.Background(), &Request{
		System: "You are Ada.",
		History: []Message{
			{Role: RoleUser, Content: "Hello"},
			{Role: RoleAssistant, Content: "Hi"},
			{Role: RoleUser, Content: "  "},
		},
		Prompt:      "Respond.",
		Temperature: 0.8,
		MaxTokens:   200,
	})
	require.NoError(t, err)

	assert.Equal(t, "Nice to meet you.", resp.Content)
	assert.Equal(t, "gemini", resp.Provider)
	assert.Equal(t, DefaultGeminiModel, gen.model)
	require.NotNil(t, resp.Metadata)
	assert.Equal(t, 15, resp.Metadata.TotalTokens)

	require.Len(t, gen.contents, 3)
	assert.Equal(t, "user", gen.contents[0].Role)
	assert.Equal(t, "model", gen.contents[1].Role)
	assert.Equal(t, "Respond.", gen.contents[2].Parts[0].Text)

	require.NotNil(t, gen.config.SystemInstruction)
	assert.Equal(t, "You are Ada.", gen.config.SystemInstruction.Parts[0].Text)
	require.NotNil(t, gen.config.Temperature)
	assert.InDelta(t, 0.8, float64(*gen.config.Temperature), 0.001)
	assert.Equal(t, int32(200), gen.config.MaxOutputTokens)
	assert.Empty(t, gen.config.ResponseMIMEType)
}

func TestGeminiProviderStructured(t *testing.T) {
	gen := &fakeGenerator{resp: textResponse(`{"score": 70}`)}
	p := newGeminiProvider(Config{DefaultModel: "gemini-x"}, gen)

	_, err := p.Execute(context.Background(), &Request{
		Prompt: "score",
		JSON:   true,
		Schema: &Schema{
			Type:     TypeObject,
			Required: []string{"score"},
			Properties: map[string]*Schema{
				"score":     {Type: TypeInteger},
				"takeaways": {Type: TypeArray, Items: &Schema{Type: TypeString}},
			},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "gemini-x", gen.model)
	require.NotNil(t, gen.config.Temperature, "zero temperature is sent explicitly")
	assert.Zero(t, *gen.config.Temperature)
	assert.Equal(t, "application/json", gen.config.ResponseMIMEType)
	require.NotNil(t, gen.config.ResponseSchema)
	assert.Equal(t, genai.TypeObject, gen.config.ResponseSchema.Type)
	assert.Equal(t, genai.TypeArray, gen.config.ResponseSchema.Properties["takeaways"].Type)
	assert.Equal(t, genai.TypeString, gen.config.ResponseSchema.Properties["takeaways"].Items.Type)
}

func TestGeminiProviderErrors(t *testing.T) {
	t.Run("RateLimited", func(t *testing.T) {
		gen := &fakeGenerator{err: genai.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED", Message: "quota"}}
		_, err := newGeminiProvider(Config{}, gen).Execute(context.Background(), &Request{Prompt: "x"})
		require.Error(t, err)
		assert.True(t, IsRateLimit(err))
	})

	t.Run("OtherAPIError", func(t *testing.T) {
		gen := &fakeGenerator{err: genai.APIError{Code: 400, Status: "INVALID_ARGUMENT", Message: "bad"}}
		_, err := newGeminiProvider(Config{}, gen).Execute(context.Background(), &Request{Prompt: "x"})
		require.Error(t, err)
		assert.False(t, IsRateLimit(err))
		var cliErr *CLIError
		assert.True(t, errors.As(err, &cliErr))
	})

	t.Run("EmptyCandidates", func(t *testing.T) {
		gen := &fakeGenerator{resp: &genai.GenerateContentResponse{}}
		_, err := newGeminiProvider(Config{}, gen).Execute(context.Background(), &Request{Prompt: "x"})
		require.Error(t, err)
	})
}

func TestCLIProvider(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	t.Run("EchoesFlattenedPrompt", func(t *testing.T) {
		p := NewCLIProvider(Config{
			Name:    "echo",
			Command: "sh",
			Args:    []string{"-c", `printf '%s' "$0"`},
		})
		require.True(t, p.Available())

		resp, err := p.Execute(context.Background(), &Request{System: "sys", Prompt: "say hi"})
		require.NoError(t, err)
		assert.Equal(t, "sys\n\nsay hi", resp.Content)
		assert.Equal(t, "echo", resp.Provider)
	})

	t.Run("RateLimitFromStderr", func(t *testing.T) {
		p := NewCLIProvider(Config{
			Name:    "limited",
			Command: "sh",
			Args:    []string{"-c", `echo "Error: 429 Too Many Requests" >&2; exit 1`},
		})
		_, err := p.Execute(context.Background(), &Request{Prompt: "x"})
		require.Error(t, err)
		assert.True(t, IsRateLimit(err))
	})

	t.Run("GenericFailure", func(t *testing.T) {
		p := NewCLIProvider(Config{
			Name:    "broken",
			Command: "sh",
			Args:    []string{"-c", `echo "invalid flag" >&2; exit 2`},
		})
		_, err := p.Execute(context.Background(), &Request{Prompt: "x"})
		require.Error(t, err)
		assert.False(t, IsRateLimit(err))
		var cliErr *CLIError
		require.True(t, errors.As(err, &cliErr))
		assert.Equal(t, "invalid flag", cliErr.Message)
	})

	t.Run("MissingExecutable", func(t *testing.T) {
		p := NewCLIProvider(Config{Name: "ghost", Command: "definitely-not-installed-xyz"})
		assert.False(t, p.Available())
		_, err := p.Execute(context.Background(), &Request{Prompt: "x"})
		require.Error(t, err)
	})
}

func TestFlattenPrompt(t *testing.T) {
	got := FlattenPrompt(&Request{
		System: "You are Ada.",
		History: []Message{
			{Role: RoleUser, Content: "Hello"},
			{Role: RoleAssistant, Content: "Hi back"},
		},
		Prompt: "Respond.",
		JSON:   true,
	})

	assert.Contains(t, got, "You are Ada.\n\n")
	assert.Contains(t, got, "Them: Hello\nYou: Hi back\n")
	assert.Contains(t, got, "Respond.")
	assert.Contains(t, got, "single JSON object")
}

func TestLimitedWriter(t *testing.T) {
	var buf bytes.Buffer
	w := newLimitedWriter(&buf, 5)

	n, err := w.Write([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = w.Write([]byte("defgh"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.True(t, w.limited)
	assert.Equal(t, "abcde", buf.String())
}

func TestMockProvider(t *testing.T) {
	p := NewMockProvider(0)
	ctx := context.Background()

	resp, err := p.Execute(ctx, &Request{Prompt: HealthCheckPrompt})
	require.NoError(t, err)
	assert.Equal(t, "2", resp.Content)

	resp, err = p.Execute(ctx, &Request{Prompt: "start"})
	require.NoError(t, err)
	assert.Equal(t, mockLines[0], resp.Content)

	resp, err = p.Execute(ctx, &Request{Prompt: "respond"})
	require.NoError(t, err)
	assert.Equal(t, mockLines[1], resp.Content)
	assert.NotContains(t, resp.Content, "[END_CONVERSATION]")

	resp, err = p.Execute(ctx, &Request{Prompt: "Wrap up and end with [END_CONVERSATION]"})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(resp.Content, "[END_CONVERSATION]"))

	var out struct {
		Score int `json:"score"`
	}
	resp, err = p.Execute(ctx, &Request{Prompt: "score", JSON: true})
	require.NoError(t, err)
	require.NoError(t, DecodeJSON(resp.Content, &out))
	assert.Equal(t, 72, out.Score)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register(NewMockProvider(0))
	r.Register(NewCLIProvider(Config{Name: "cli", Command: "true"}))

	assert.Equal(t, []string{"cli", "mock"}, r.Names())

	p, err := r.Get("mock")
	require.NoError(t, err)
	assert.Equal(t, "mock", p.Name())

	_, err = r.Get("nope")
	assert.Error(t, err)
}

func TestCheckHealth(t *testing.T) {
	status := CheckHealth(context.Background(), NewMockProvider(0))
	assert.True(t, status.Available)
	assert.Empty(t, status.Error)

	status = CheckHealth(context.Background(), NewCLIProvider(Config{Name: "ghost", Command: "definitely-not-installed-xyz"}))
	assert.False(t, status.Available)
	assert.NotEmpty(t, status.Error)
}
