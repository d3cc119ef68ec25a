package export

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alienxp03/handshake/internal/core"
)

func sampleSimulation() *core.Simulation {
	created := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	completed := created.Add(45 * time.Second)
	score := 78

	return &core.Simulation{
		ID:             "0b6c3f4e-1c2d-4e5f-8a9b-0c1d2e3f4a5b",
		ParticipantAID: "maya",
		ParticipantBID: "jonas",
		AgentA: core.AgentConfig{ID: "agent-a", Name: "Maya Chen's agent", Persona: core.Persona{
			ID: "maya", DisplayName: "Maya Chen", Tagline: "Founding engineer", NetworkingGoals: []string{"find a co-founder"},
		}},
		AgentB: core.AgentConfig{ID: "agent-b", Name: "Jonas Weber's agent", Persona: core.Persona{
			ID: "jonas", DisplayName: "Jonas Weber", Location: "Munich",
		}},
		Transcript: []core.TranscriptEntry{
			{Speaker: core.SpeakerA, SpeakerID: "agent-a", Text: "Hi Jonas, what are you investing in lately?", Timestamp: created},
			{Speaker: core.SpeakerB, SpeakerID: "agent-b", Text: "Devtools mostly — who pays is the big question.", Timestamp: created.Add(time.Second)},
		},
		Thoughts:          []core.ThoughtEntry{{Text: "Sharp on pricing, worth a call.", TurnNumber: 3}},
		Score:             &score,
		Takeaways:         []string{"Shared interest in devtools", "Jonas can help with fundraising"},
		Status:            core.StatusCompleted,
		TerminationReason: core.ReasonAgentEnded,
		MaxTurns:          10,
		CreatedAt:         created,
		UpdatedAt:         completed,
		CompletedAt:       &completed,
	}
}

func TestGetExporter(t *testing.T) {
	tests := []struct {
		format  Format
		ext     string
		wantErr bool
	}{
		{FormatMarkdown, "md", false},
		{"md", "md", false},
		{"JSON", "json", false},
		{FormatPDF, "pdf", false},
		{"docx", "", true},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			exp, err := GetExporter(tt.format)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.ext, exp.FileExtension())
			assert.NotEmpty(t, exp.ContentType())
		})
	}
}

func TestGenerateFilename(t *testing.T) {
	sim := sampleSimulation()
	assert.Equal(t, "simulation_20250314_maya-jonas.md", GenerateFilename(sim, "md"))

	sim.ParticipantAID = "a b/c"
	assert.Equal(t, "simulation_20250314_a_b-c-jonas.pdf", GenerateFilename(sim, "pdf"))
}

func TestMarkdownExporter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&MarkdownExporter{}).Export(sampleSimulation(), &buf))
	out := buf.String()

	assert.Contains(t, out, "# Maya Chen and Jonas Weber")
	assert.Contains(t, out, "- **Ended because:** agent ended conversation")
	assert.Contains(t, out, "- **Duration:** 45 seconds")
	assert.Contains(t, out, "#### 1. Maya Chen")
	assert.Contains(t, out, "#### 2. Jonas Weber")
	assert.Contains(t, out, "- Turn 3: Sharp on pricing, worth a call.")
	assert.Contains(t, out, "**Compatibility score:** 78 / 100")
	assert.Contains(t, out, "- Jonas can help with fundraising")
}

func TestMarkdownExporterEmpty(t *testing.T) {
	sim := sampleSimulation()
	sim.Transcript = nil
	sim.Thoughts = nil
	sim.Score = nil
	sim.CompletedAt = nil

	var buf bytes.Buffer
	require.NoError(t, (&MarkdownExporter{}).Export(sim, &buf))
	out := buf.String()

	assert.Contains(t, out, "*No replies recorded.*")
	assert.Contains(t, out, "not scored")
	assert.NotContains(t, out, "Private Thoughts")
}

func TestJSONExporter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&JSONExporter{}).Export(sampleSimulation(), &buf))

	var decoded core.Simulation
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "maya", decoded.ParticipantAID)
	assert.Len(t, decoded.Transcript, 2)
	require.NotNil(t, decoded.Score)
	assert.Equal(t, 78, *decoded.Score)
}

func TestPDFExporter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&PDFExporter{}).Export(sampleSimulation(), &buf))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestSanitizeText(t *testing.T) {
	assert.Equal(t, `"quoted" - it's...`, sanitizeText("“quoted” — it’s…"))
}
