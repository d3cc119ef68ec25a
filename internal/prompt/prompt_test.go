package prompt

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alienxp03/handshake/internal/core"
	"github.com/alienxp03/handshake/internal/llm"
)

func ada() core.AgentConfig {
	return core.AgentConfig{
		ID:   "agent-a",
		Name: "Ada's agent",
		Persona: core.Persona{
			ID:              "ada",
			DisplayName:     "Ada Park",
			Tagline:         "Platform engineer",
			SkillsPossessed: []string{"Go", "Kubernetes"},
			NetworkingGoals: []string{"find a design partner"},
			VoiceSample:     "honestly? ship it, then fix it.",
			ExperienceLog: []core.Experience{
				{Title: "Staff Engineer", Organization: "Acme", Period: "2020-2024"},
			},
			ProjectList: []core.Project{{Name: "buildkite-lite", Description: "tiny CI"}},
		},
	}
}

func bo() core.AgentConfig {
	return core.AgentConfig{ID: "agent-b", Name: "Bo's agent", Persona: core.Persona{ID: "bo", DisplayName: "Bo"}}
}

func TestBuildOpening(t *testing.T) {
	p := Build(ReplyInput{Agent: ada(), Speaker: core.SpeakerA, Counterpart: "Bo"})

	assert.Contains(t, p.System, "You are Ada Park.")
	assert.Contains(t, p.System, "Skills you have: Go, Kubernetes")
	assert.Contains(t, p.System, "What you want from networking: find a design partner")
	assert.Contains(t, p.System, "Staff Engineer at Acme (2020-2024)")
	assert.Contains(t, p.System, "buildkite-lite: tiny CI")
	assert.Contains(t, p.System, `"""`+"\nhonestly? ship it, then fix it.\n"+`"""`)
	assert.Contains(t, p.System, core.EndMarker)
	assert.Contains(t, p.User, "Start the conversation with Bo.")
	assert.NotContains(t, p.User, core.EndMarker)
	assert.Empty(t, p.History)
}

func TestBuildRespond(t *testing.T) {
	msg := "What are you working on?"
	recent := []core.TranscriptEntry{
		{Speaker: core.SpeakerA, Text: "one"},
		{Speaker: core.SpeakerB, Text: "two"},
		{Speaker: core.SpeakerA, Text: "three"},
		{Speaker: core.SpeakerB, Text: "four"},
		{Speaker: core.SpeakerA, Text: "five"},
		{Speaker: core.SpeakerB, Text: msg},
	}

	p := Build(ReplyInput{
		Agent:       ada(),
		Speaker:     core.SpeakerA,
		Counterpart: "Bo",
		LastMessage: &msg,
		Recent:      recent,
		Closing:     true,
	})

	assert.Contains(t, p.User, `Bo just said:`)
	assert.Contains(t, p.User, `"What are you working on?"`)
	assert.Contains(t, p.User, core.EndMarker)

	require.Len(t, p.History, HistoryTurns)
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "two"}, p.History[0])
	assert.Equal(t, llm.Message{Role: llm.RoleAssistant, Content: "five"}, p.History[3])
}

func TestBuildDeterministic(t *testing.T) {
	msg := "hey"
	in := ReplyInput{Agent: ada(), Speaker: core.SpeakerB, Counterpart: "Ada", LastMessage: &msg}
	assert.Equal(t, Build(in), Build(in))
}

func TestBuildOmitsEmptyFields(t *testing.T) {
	agent := core.AgentConfig{Persona: core.Persona{
		ID:              "ghost",
		Tagline:         "null",
		Location:        "  ",
		SkillsPossessed: []string{"", "undefined"},
		ExperienceLog:   []core.Experience{{}},
		ProjectList:     []core.Project{{URL: "https://example.com"}},
	}}

	p := Build(ReplyInput{Agent: agent, Speaker: core.SpeakerB})

	for _, bad := range []string{"null", "undefined", "<nil>", "Headline", "Based in", "Skills you have", "Experience:", "Projects:", `"""`} {
		assert.NotContains(t, p.System, bad)
	}
	assert.Contains(t, p.System, "You are ghost.")
	assert.Contains(t, p.User, "another professional")
}

func TestBuildBoundsLength(t *testing.T) {
	huge := strings.Repeat("x", 50_000)
	agent := ada()
	agent.Persona.VoiceSample = huge
	agent.Persona.Tagline = huge
	for i := 0; i < 50; i++ {
		agent.Persona.SkillsPossessed = append(agent.Persona.SkillsPossessed, huge)
	}

	p := Build(ReplyInput{Agent: agent, Speaker: core.SpeakerA, LastMessage: &huge, Recent: []core.TranscriptEntry{{Text: huge}}})

	assert.LessOrEqual(t, len([]rune(p.System)), MaxSystemChars)
	assert.LessOrEqual(t, len([]rune(p.User)), MaxUserChars)
	for _, m := range p.History {
		assert.LessOrEqual(t, len([]rune(m.Content)), MaxMessageChars)
	}
}

func TestBuildKeepsRulesWithLongProfile(t *testing.T) {
	long := strings.Repeat("y", 1000)
	agent := ada()
	agent.Persona.VoiceSample = strings.Repeat("v", 2000)
	agent.Persona.ExperienceLog = nil
	agent.Persona.ProjectList = nil
	for i := 0; i < 8; i++ {
		agent.Persona.ExperienceLog = append(agent.Persona.ExperienceLog, core.Experience{
			Title: long, Organization: long, Period: long, Summary: long,
		})
		agent.Persona.ProjectList = append(agent.Persona.ProjectList, core.Project{Name: long, Description: long, URL: long})
	}
	for i := 0; i < 8; i++ {
		agent.Persona.Interests = append(agent.Persona.Interests, long)
		agent.Persona.SkillsDesired = append(agent.Persona.SkillsDesired, long)
	}

	p := Build(ReplyInput{Agent: agent, Speaker: core.SpeakerA, Counterpart: "Bo"})

	assert.LessOrEqual(t, len([]rune(p.System)), MaxSystemChars)
	assert.Contains(t, p.System, strings.Repeat("v", MaxVoiceChars-3)+"...")
	assert.Contains(t, p.System, "Rules:")
	assert.Contains(t, p.System, "end your reply with "+core.EndMarker)
	assert.Contains(t, p.System, "Experience:")
	assert.True(t, strings.HasSuffix(p.System, "..."))
}

func TestThought(t *testing.T) {
	recent := []core.TranscriptEntry{
		{Speaker: core.SpeakerA, Text: "first"},
		{Speaker: core.SpeakerB, Text: "second"},
		{Speaker: core.SpeakerA, Text: "third"},
		{Speaker: core.SpeakerB, Text: "fourth"},
	}

	p := Thought(ada(), bo(), recent)

	assert.NotContains(t, p.User, "first")
	assert.Contains(t, p.User, "Bo: second")
	assert.Contains(t, p.User, "Ada Park: third")
	assert.Contains(t, p.User, "6 to 10 words")
}

func TestAnalysis(t *testing.T) {
	transcript := []core.TranscriptEntry{
		{Speaker: core.SpeakerA, Text: "hello", Timestamp: time.Now()},
		{Speaker: core.SpeakerB, Text: "hi"},
	}

	p := Analysis(ada(), bo(), transcript)

	assert.Contains(t, p.User, "80-100: strong mutual fit")
	assert.Contains(t, p.User, "Participant A: Ada Park; Platform engineer; skills: Go, Kubernetes")
	assert.Contains(t, p.User, "Ada Park: hello\nBo: hi")
}

func TestRenderLinesKeepsMostRecent(t *testing.T) {
	var entries []core.TranscriptEntry
	for i := 0; i < 10; i++ {
		entries = append(entries, core.TranscriptEntry{Speaker: core.SpeakerA, Text: strings.Repeat("y", 100)})
	}
	entries = append(entries, core.TranscriptEntry{Speaker: core.SpeakerB, Text: "last"})

	out := renderLines(entries, ada(), bo(), 250)
	assert.True(t, strings.HasSuffix(out, "Bo: last"))
	assert.LessOrEqual(t, len(out), 260)
}
