// Package prompt turns personas and transcript fragments into model prompts.
//
// Every builder is a pure function: identical inputs produce identical
// prompts, and output length is bounded regardless of persona size.
package prompt

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/alienxp03/handshake/internal/core"
	"github.com/alienxp03/handshake/internal/llm"
)

// Length bounds applied to everything rendered into a prompt.
const (
	HistoryTurns    = 4
	MaxFieldChars   = 300
	MaxListItems    = 8
	MaxListChars    = 600
	MaxMessageChars = 1200
	MaxVoiceChars   = 1000
	MaxSystemChars  = 6000
	MaxUserChars    = 3000
)

// Prompt is a rendered request body for the completion client.
type Prompt struct {
	System  string
	User    string
	History []llm.Message
}

// Request converts the prompt into a completion request.
func (p Prompt) Request(temperature float64, maxTokens int) *llm.Request {
	return &llm.Request{
		System:      p.System,
		History:     p.History,
		Prompt:      p.User,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
}

// ReplyInput describes the agent that is due to speak.
type ReplyInput struct {
	Agent       core.AgentConfig
	Speaker     core.Speaker
	Counterpart string
	LastMessage *string
	Recent      []core.TranscriptEntry

	// Closing asks the agent to wrap up because this is the last allowed turn.
	Closing bool
}

var (
	systemTmpl = template.Must(template.New("system").Parse(systemTemplate))
	replyTmpl  = template.Must(template.New("reply").Parse(replyTemplate))
)

const systemTemplate = `You are {{.Name}}. You are chatting one-on-one with {{.Counterpart}} to find out whether a professional connection between you is worth pursuing.
{{- if .Tagline}}
Headline: {{.Tagline}}
{{- end}}
{{- if .Location}}
Based in: {{.Location}}
{{- end}}
{{- if .SkillsPossessed}}
Skills you have: {{.SkillsPossessed}}
{{- end}}
{{- if .SkillsDesired}}
Skills you want to learn: {{.SkillsDesired}}
{{- end}}
{{- if .NetworkingGoals}}
What you want from networking: {{.NetworkingGoals}}
{{- end}}
{{- if .Interests}}
Interests: {{.Interests}}
{{- end}}
{{- if .VoiceSample}}

Write exactly the way you write in this sample. Match its tone, length and vocabulary:
"""
{{.VoiceSample}}
"""
{{- end}}

Rules:
- Reply with 1 to 3 short sentences of plain conversational text. No lists, no markdown.
- Stay in character. Never say you are an AI, a model or an agent.
- Steer toward concrete overlap between your goals and theirs.
- When the conversation has clearly run its course, end your reply with {{.Marker}}.
{{- if .Experience}}

Experience:
{{- range .Experience}}
- {{.}}
{{- end}}
{{- end}}
{{- if .Projects}}

Projects:
{{- range .Projects}}
- {{.}}
{{- end}}
{{- end}}`

const replyTemplate = `{{- if .LastMessage -}}
{{.Counterpart}} just said:
"{{.LastMessage}}"

Respond to them in your own voice.
{{- else -}}
Start the conversation with {{.Counterpart}}. Introduce yourself briefly and open with something specific you would like to learn about them.
{{- end}}
{{- if .Closing}}

This is your last message. Wrap up warmly, suggest a next step if it makes sense, and end with {{.Marker}}.
{{- end}}`

type systemData struct {
	Name            string
	Counterpart     string
	Tagline         string
	Location        string
	SkillsPossessed string
	SkillsDesired   string
	NetworkingGoals string
	Interests       string
	Experience      []string
	Projects        []string
	VoiceSample     string
	Marker          string
}

type replyData struct {
	Counterpart string
	LastMessage string
	Closing     bool
	Marker      string
}

// Build renders the system prompt, bounded history and per-turn instruction
// for the agent that is due to speak.
func Build(in ReplyInput) Prompt {
	counterpart := clean(in.Counterpart, MaxFieldChars)
	if counterpart == "" {
		counterpart = "another professional"
	}

	return Prompt{
		System:  System(in.Agent.Persona, counterpart),
		User:    userPrompt(in, counterpart),
		History: history(in),
	}
}

// System renders the persona system prompt. Identity, voice sample and rules
// come first so the length bound only ever trims experience and projects.
func System(p core.Persona, counterpart string) string {
	data := systemData{
		Name:            clean(p.Name(), MaxFieldChars),
		Counterpart:     counterpart,
		Tagline:         clean(p.Tagline, MaxFieldChars),
		Location:        clean(p.Location, MaxFieldChars),
		SkillsPossessed: joinList(p.SkillsPossessed),
		SkillsDesired:   joinList(p.SkillsDesired),
		NetworkingGoals: joinList(p.NetworkingGoals),
		Interests:       joinList(p.Interests),
		Experience:      experienceLines(p.ExperienceLog),
		Projects:        projectLines(p.ProjectList),
		VoiceSample:     clean(p.VoiceSample, MaxVoiceChars),
		Marker:          core.EndMarker,
	}
	if data.Name == "" {
		data.Name = "a professional"
	}
	return clip(render(systemTmpl, data), MaxSystemChars)
}

func userPrompt(in ReplyInput, counterpart string) string {
	data := replyData{
		Counterpart: counterpart,
		Closing:     in.Closing,
		Marker:      core.EndMarker,
	}
	if in.LastMessage != nil {
		data.LastMessage = clean(*in.LastMessage, MaxMessageChars)
	}
	return clip(render(replyTmpl, data), MaxUserChars)
}

// history maps the most recent entries to role-tagged messages. The entry that
// carries LastMessage is left out because the instruction already quotes it.
func history(in ReplyInput) []llm.Message {
	recent := in.Recent
	if in.LastMessage != nil && len(recent) > 0 && recent[len(recent)-1].Text == *in.LastMessage {
		recent = recent[:len(recent)-1]
	}
	if len(recent) > HistoryTurns {
		recent = recent[len(recent)-HistoryTurns:]
	}

	var msgs []llm.Message
	for _, e := range recent {
		text := clean(e.Text, MaxMessageChars)
		if text == "" {
			continue
		}
		role := llm.RoleUser
		if e.Speaker == in.Speaker {
			role = llm.RoleAssistant
		}
		msgs = append(msgs, llm.Message{Role: role, Content: text})
	}
	return msgs
}

func render(t *template.Template, data any) string {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		panic(fmt.Sprintf("prompt: render %s: %v", t.Name(), err))
	}
	return strings.TrimSpace(buf.String())
}

func experienceLines(log []core.Experience) []string {
	var out []string
	for _, e := range log {
		title := clean(e.Title, MaxFieldChars)
		org := clean(e.Organization, MaxFieldChars)
		period := clean(e.Period, MaxFieldChars)
		summary := clean(e.Summary, MaxFieldChars)

		var line string
		switch {
		case title != "" && org != "":
			line = title + " at " + org
		case title != "":
			line = title
		default:
			line = org
		}
		if period != "" {
			line = strings.TrimSpace(line + " (" + period + ")")
		}
		if summary != "" {
			if line == "" {
				line = summary
			} else {
				line += ": " + summary
			}
		}
		if line != "" {
			out = append(out, line)
		}
		if len(out) == MaxListItems {
			break
		}
	}
	return out
}

func projectLines(list []core.Project) []string {
	var out []string
	for _, p := range list {
		name := clean(p.Name, MaxFieldChars)
		desc := clean(p.Description, MaxFieldChars)
		url := clean(p.URL, MaxFieldChars)

		line := name
		if desc != "" {
			if line == "" {
				line = desc
			} else {
				line += ": " + desc
			}
		}
		if url != "" && line != "" {
			line += " (" + url + ")"
		}
		if line != "" {
			out = append(out, line)
		}
		if len(out) == MaxListItems {
			break
		}
	}
	return out
}

func joinList(items []string) string {
	var kept []string
	for _, s := range items {
		if s = clean(s, MaxFieldChars); s != "" {
			kept = append(kept, s)
		}
		if len(kept) == MaxListItems {
			break
		}
	}
	return clip(strings.Join(kept, ", "), MaxListChars)
}

// clean trims s, drops placeholder values and bounds its length.
func clean(s string, max int) string {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "null", "undefined", "<nil>", "nil", "none", "n/a":
		return ""
	}
	return clip(s, max)
}

func clip(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
