package simulation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alienxp03/handshake/internal/core"
)

func TestEvaluate(t *testing.T) {
	entries := func(n int) []core.TranscriptEntry {
		return make([]core.TranscriptEntry, n)
	}

	tests := []struct {
		name  string
		state core.SimulationState
		want  Decision
	}{
		{
			name:  "Continue",
			state: core.SimulationState{CurrentTurn: 1, NextSpeaker: core.SpeakerA, MaxTurns: 3, Transcript: entries(1)},
			want:  Decision{},
		},
		{
			name:  "MidExchangeAtLimit",
			state: core.SimulationState{CurrentTurn: 3, NextSpeaker: core.SpeakerA, MaxTurns: 3, Transcript: entries(5)},
			want:  Decision{},
		},
		{
			name:  "MaxTurns",
			state: core.SimulationState{CurrentTurn: 3, NextSpeaker: core.SpeakerB, MaxTurns: 3, Transcript: entries(6)},
			want:  Decision{Stop: true, Reason: core.ReasonMaxTurns},
		},
		{
			name:  "TranscriptBound",
			state: core.SimulationState{CurrentTurn: 1, NextSpeaker: core.SpeakerA, MaxTurns: 2, Transcript: entries(4)},
			want:  Decision{Stop: true, Reason: core.ReasonMaxTurns},
		},
		{
			name:  "EndMarker",
			state: core.SimulationState{CurrentTurn: 1, NextSpeaker: core.SpeakerA, MaxTurns: 3, EndRequested: true},
			want:  Decision{Stop: true, Reason: core.ReasonAgentEnded},
		},
		{
			name:  "EndMarkerBeatsMaxTurns",
			state: core.SimulationState{CurrentTurn: 3, NextSpeaker: core.SpeakerB, MaxTurns: 3, EndRequested: true},
			want:  Decision{Stop: true, Reason: core.ReasonAgentEnded},
		},
		{
			name:  "ErrorBeatsEverything",
			state: core.SimulationState{CurrentTurn: 3, NextSpeaker: core.SpeakerB, MaxTurns: 3, EndRequested: true, Error: core.Ptr("boom")},
			want:  Decision{Stop: true, Reason: "error: boom"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(&tt.state))
		})
	}
}

func TestShouldThink(t *testing.T) {
	var turns []int
	for turn := 1; turn <= 15; turn++ {
		if shouldThink(turn) {
			turns = append(turns, turn)
		}
	}
	assert.Equal(t, []int{3, 6, 9, 12, 15}, turns)
}

func TestStripEndMarker(t *testing.T) {
	tests := []struct {
		in    string
		want  string
		ended bool
	}{
		{"See you soon!", "See you soon!", false},
		{"See you soon! [END_CONVERSATION]", "See you soon!", true},
		{"[end_conversation] bye", "bye", true},
		{"  [End_Conversation]  ", "", true},
		{"a [END_CONVERSATION] b [END_CONVERSATION]", "a  b", true},
	}
	for _, tt := range tests {
		got, ended := stripEndMarker(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.ended, ended, tt.in)
	}
}

func TestStripSpeakerLabel(t *testing.T) {
	assert.Equal(t, "hello", stripSpeakerLabel("Maya: hello", "Maya"))
	assert.Equal(t, "hello", stripSpeakerLabel("maya:hello", "Maya"))
	assert.Equal(t, "Maya said hello", stripSpeakerLabel("Maya said hello", "Maya"))
	assert.Equal(t, "x", stripSpeakerLabel("x", ""))
}

func TestFallbackLine(t *testing.T) {
	p := core.Persona{ID: "maya", DisplayName: "Maya", Tagline: "Founding engineer at Relay"}
	assert.Equal(t, "Hi, I'm Maya, founding engineer at Relay. I'd love to hear what you're working on.", fallbackLine(p, true))
	assert.Equal(t, "Hi, I'm sam. I'd love to hear what you're working on.", fallbackLine(core.Persona{ID: "sam"}, true))
	assert.Contains(t, fallbackLine(p, false), "Could you tell me")
	assert.Equal(t, "ML engineer", lowerFirst("ML engineer"))
}

func TestCleanThought(t *testing.T) {
	assert.Equal(t, "Sharp, pragmatic, worth a call.", cleanThought(`  "Sharp, pragmatic, worth a call."  `))
	assert.Equal(t, "Nested quotes", cleanThought(`"'Nested quotes'"`))
	assert.Equal(t, "Done", cleanThought("Done [END_CONVERSATION]"))
	assert.Empty(t, cleanThought(`""`))
	assert.Len(t, []rune(cleanThought(strings.Repeat("é", 400))), thoughtMaxChars)
}

func TestClampScore(t *testing.T) {
	assert.Equal(t, 0, clampScore(-10))
	assert.Equal(t, 100, clampScore(101))
	assert.Equal(t, 67, clampScore(66.5))
	assert.Equal(t, 42, clampScore(42))
}
