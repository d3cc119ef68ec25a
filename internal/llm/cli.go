package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// MaxOutputSize is the maximum size of CLI output (10MB).
const MaxOutputSize = 10 * 1024 * 1024

// CLIProvider runs an installed model CLI once per request. The system prompt,
// history and instruction are flattened into a single prompt argument.
type CLIProvider struct {
	name         string
	displayName  string
	command      string
	args         []string
	modelFlag    string
	defaultModel string
	models       []string
	timeout      time.Duration
}

// NewCLIProvider creates a CLI provider from configuration.
func NewCLIProvider(cfg Config) *CLIProvider {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	displayName := cfg.DisplayName
	if displayName == "" {
		displayName = cfg.Name
	}

	modelFlag := cfg.ModelFlag
	if modelFlag == "" {
		modelFlag = "--model"
	}

	return &CLIProvider{
		name:         cfg.Name,
		displayName:  displayName,
		command:      cfg.Command,
		args:         cfg.Args,
		modelFlag:    modelFlag,
		defaultModel: cfg.DefaultModel,
		models:       cfg.Models,
		timeout:      timeout,
	}
}

// Name returns the provider identifier.
func (p *CLIProvider) Name() string { return p.name }

// DisplayName returns the human-friendly name.
func (p *CLIProvider) DisplayName() string { return p.displayName }

// Models returns available models.
func (p *CLIProvider) Models() []string { return p.models }

// Available checks if the CLI tool is installed and accessible.
func (p *CLIProvider) Available() bool {
	_, err := exec.LookPath(p.command)
	return err == nil
}

// Execute runs the CLI command once.
func (p *CLIProvider) Execute(ctx context.Context, req *Request) (*Response, error) {
	if _, err := exec.LookPath(p.command); err != nil {
		return nil, &CLIError{
			Provider: p.name,
			Message:  fmt.Sprintf("executable '%s' not found in PATH", p.command),
			Err:      err,
		}
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	args := append([]string{}, p.args...)
	if model != "" {
		args = append(args, p.modelFlag, model)
	}
	args = append(args, FlattenPrompt(req))

	slog.Debug("Executing CLI command",
		"provider", p.name,
		"command", p.command,
		"model", model,
	)

	start := time.Now()
	cmd := exec.CommandContext(ctx, p.command, args...)

	var stdout, stderr bytes.Buffer
	stdoutLimited := newLimitedWriter(&stdout, MaxOutputSize)
	stderrLimited := newLimitedWriter(&stderr, MaxOutputSize)
	cmd.Stdout = stdoutLimited
	cmd.Stderr = stderrLimited

	if err := cmd.Run(); err != nil {
		slog.Error("CLI command failed",
			"provider", p.name,
			"error", err,
			"stderr", stderr.String(),
		)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &CLIError{
				Provider: p.name,
				Message:  "command timed out",
				Err:      ctx.Err(),
			}
		}
		errMsg := strings.TrimSpace(stderr.String())
		if errMsg == "" {
			errMsg = "command failed"
		} else if stderrLimited.limited {
			errMsg += "\n... (output truncated)"
		}
		if looksRateLimited(errMsg) {
			return nil, &RateLimitError{Provider: p.name, Message: errMsg, Err: err}
		}
		return nil, &CLIError{
			Provider: p.name,
			Message:  errMsg,
			Err:      err,
		}
	}

	result := strings.TrimSpace(stdout.String())
	if result == "" {
		return nil, &CLIError{Provider: p.name, Message: "empty output"}
	}
	slog.Debug("CLI command successful",
		"provider", p.name,
		"output_len", len(result),
	)

	return &Response{
		Content:  result,
		Model:    model,
		Provider: p.name,
		Metadata: &Metadata{Duration: time.Since(start)},
	}, nil
}

// FlattenPrompt renders a request as one plain-text prompt for backends that
// have no notion of roles.
func FlattenPrompt(req *Request) string {
	var sb strings.Builder
	if req.System != "" {
		sb.WriteString(req.System)
		sb.WriteString("\n\n")
	}
	if len(req.History) > 0 {
		sb.WriteString("Conversation so far:\n")
		for _, m := range req.History {
			who := "Them"
			if m.Role == RoleAssistant {
				who = "You"
			}
			fmt.Fprintf(&sb, "%s: %s\n", who, m.Content)
		}
		sb.WriteString("\n")
	}
	sb.WriteString(req.Prompt)
	if req.JSON {
		sb.WriteString("\n\nRespond with a single JSON object only. No prose, no code fences.")
	}
	return sb.String()
}

// limitedWriter wraps an io.Writer and limits total bytes written.
type limitedWriter struct {
	w       io.Writer
	n       int64
	limit   int64
	limited bool
}

func newLimitedWriter(w io.Writer, limit int64) *limitedWriter {
	return &limitedWriter{w: w, limit: limit}
}

func (l *limitedWriter) Write(p []byte) (n int, err error) {
	if l.n >= l.limit {
		l.limited = true
		return len(p), nil
	}

	remaining := l.limit - l.n
	written := len(p)
	if int64(len(p)) > remaining {
		p = p[:remaining]
		l.limited = true
	}

	n, err = l.w.Write(p)
	l.n += int64(n)
	if err != nil {
		return n, err
	}
	return written, nil
}
