package prompt

import (
	"fmt"
	"strings"

	"github.com/alienxp03/handshake/internal/core"
	"github.com/alienxp03/handshake/internal/llm"
)

const (
	// ThoughtTurns is how many recent entries a thought is based on.
	ThoughtTurns = 3

	// MaxTranscriptChars bounds the transcript rendered for analysis.
	MaxTranscriptChars = 16000
)

// Thought renders the private evaluation prompt agent A uses to judge B.
func Thought(home, other core.AgentConfig, recent []core.TranscriptEntry) Prompt {
	if len(recent) > ThoughtTurns {
		recent = recent[len(recent)-ThoughtTurns:]
	}

	name := clean(home.Persona.Name(), MaxFieldChars)
	if name == "" {
		name = "a professional"
	}
	otherName := clean(other.Persona.Name(), MaxFieldChars)
	if otherName == "" {
		otherName = "them"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "You are %s. Here are the last few messages of your chat with %s:\n\n", name, otherName)
	sb.WriteString(renderLines(recent, home, other, MaxUserChars/2))
	fmt.Fprintf(&sb, "\n\nIn 6 to 10 words, write your honest private impression of %s as a potential connection. ", otherName)
	sb.WriteString("Output only the impression, no quotes.")

	return Prompt{
		System: "You write short private notes to yourself. Be candid and specific.",
		User:   clip(sb.String(), MaxUserChars),
	}
}

// AnalysisSchema is the structured result requested from the analyzer.
var AnalysisSchema = &llm.Schema{
	Type:     llm.TypeObject,
	Required: []string{"score", "takeaways"},
	Properties: map[string]*llm.Schema{
		"score": {
			Type:        llm.TypeInteger,
			Description: "Compatibility score from 0 to 100",
		},
		"takeaways": {
			Type:        llm.TypeArray,
			Description: "Short reasons this connection may be worth pursuing",
			Items:       &llm.Schema{Type: llm.TypeString},
		},
	},
}

const analysisRubric = `Score the professional compatibility of the two people below from 0 to 100.

Scoring guide:
- 80-100: strong mutual fit. Clear complementary skills or goals and a natural next step.
- 60-79: decent overlap worth a follow-up.
- 40-59: mild relevance.
- 0-39: poor fit.

Be generous. Most friendly professional exchanges land at 60 or above.
Return 2 to 4 takeaways, each one short sentence on why the connection may be worth pursuing.
Respond with JSON: {"score": <integer>, "takeaways": [<string>, ...]}`

// Analysis renders the scoring prompt for a finished transcript.
func Analysis(a, b core.AgentConfig, transcript []core.TranscriptEntry) Prompt {
	var sb strings.Builder
	sb.WriteString(analysisRubric)
	sb.WriteString("\n\nParticipant A: ")
	sb.WriteString(summary(a.Persona))
	sb.WriteString("\nParticipant B: ")
	sb.WriteString(summary(b.Persona))
	sb.WriteString("\n\nTranscript:\n")
	sb.WriteString(renderLines(transcript, a, b, MaxTranscriptChars))

	return Prompt{
		System: "You are an experienced connector who evaluates whether two professionals should meet.",
		User:   sb.String(),
	}
}

// summary is a one-line persona description for analysis context.
func summary(p core.Persona) string {
	parts := []string{clean(p.Name(), MaxFieldChars)}
	if t := clean(p.Tagline, MaxFieldChars); t != "" {
		parts = append(parts, t)
	}
	if s := joinList(p.SkillsPossessed); s != "" {
		parts = append(parts, "skills: "+s)
	}
	if g := joinList(p.NetworkingGoals); g != "" {
		parts = append(parts, "goals: "+g)
	}
	return strings.Join(parts, "; ")
}

// renderLines formats entries as "Name: text" lines, keeping the most recent
// ones when the total exceeds max.
func renderLines(entries []core.TranscriptEntry, a, b core.AgentConfig, max int) string {
	lines := make([]string, 0, len(entries))
	total := 0
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		speaker := a
		if e.Speaker == core.SpeakerB {
			speaker = b
		}
		name := clean(speaker.Persona.Name(), MaxFieldChars)
		if name == "" {
			name = "Agent " + string(e.Speaker)
		}
		line := name + ": " + clean(e.Text, MaxMessageChars)
		if total+len(line) > max && len(lines) > 0 {
			break
		}
		total += len(line) + 1
		lines = append(lines, line)
	}
	for i, j := 0, len(lines)-1; i < j; i, j = i+1, j-1 {
		lines[i], lines[j] = lines[j], lines[i]
	}
	return strings.Join(lines, "\n")
}
