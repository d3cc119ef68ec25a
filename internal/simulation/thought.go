package simulation

import (
	"context"
	"strings"

	"github.com/alienxp03/handshake/internal/core"
	"github.com/alienxp03/handshake/internal/prompt"
)

const (
	thoughtTemperature = 0.9
	thoughtMaxTokens   = 40
	thoughtMaxChars    = 160
)

// shouldThink reports whether the given exchange records a thought.
func shouldThink(turn int) bool {
	return turn >= 2 && turn%3 == 0
}

// maybeThought records agent A's private impression of B once per qualifying
// exchange, after B has replied. The full thought list is written straight to
// the store. Failures are logged and leave the state unchanged.
func (e *Engine) maybeThought(ctx context.Context, state *core.SimulationState) core.Update {
	if state.Error != nil || state.NextSpeaker != core.SpeakerB || !shouldThink(state.CurrentTurn) {
		return core.Update{}
	}

	logger := e.logger.With("simulation_id", state.SimulationID, "turn", state.CurrentTurn)

	p := prompt.Thought(state.AgentA, state.AgentB, state.Tail(prompt.ThoughtTurns))
	req := p.Request(thoughtTemperature, thoughtMaxTokens)
	req.Model = e.model

	raw, err := e.client.Complete(ctx, req)
	if err != nil {
		logger.Warn("Thought generation failed", "error", err)
		return core.Update{}
	}

	text := cleanThought(raw)
	if text == "" {
		logger.Warn("Thought generation returned empty text")
		return core.Update{}
	}

	entry := core.ThoughtEntry{
		Text:       text,
		TurnNumber: state.CurrentTurn,
		Timestamp:  e.now(),
	}

	thoughts := make([]core.ThoughtEntry, 0, len(state.Thoughts)+1)
	thoughts = append(thoughts, state.Thoughts...)
	thoughts = append(thoughts, entry)
	if err := e.store.UpdateThoughts(ctx, state.SimulationID, thoughts); err != nil {
		logger.Warn("Failed to write thoughts", "error", err)
	}

	logger.Debug("Thought recorded", "thought", text)
	return core.Update{Thoughts: []core.ThoughtEntry{entry}}
}

// cleanThought trims whitespace, surrounding quotes and stray markers.
func cleanThought(s string) string {
	s, _ = stripEndMarker(s)
	s = strings.TrimSpace(s)
	for {
		trimmed := strings.TrimSpace(strings.Trim(s, "\"'`“”‘’"))
		if trimmed == s {
			break
		}
		s = trimmed
	}
	if r := []rune(s); len(r) > thoughtMaxChars {
		s = string(r[:thoughtMaxChars])
	}
	return s
}
