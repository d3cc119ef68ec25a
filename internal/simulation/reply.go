package simulation

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/alienxp03/handshake/internal/core"
	"github.com/alienxp03/handshake/internal/prompt"
)

const (
	replyTemperature = 0.8
	replyMaxTokens   = 220
)

var endMarkerPattern = regexp.MustCompile(`(?i)` + regexp.QuoteMeta(core.EndMarker))

// reply is the output of the reply generator.
type reply struct {
	Text     string
	Ended    bool
	Fallback bool
}

// generateReply produces the next message for the agent due to speak. A failed
// completion yields a fallback line instead of an error; the error is returned
// only when ctx is done and the run must stop.
func (e *Engine) generateReply(ctx context.Context, in prompt.ReplyInput) (reply, error) {
	if err := ctx.Err(); err != nil {
		return reply{}, err
	}

	p := prompt.Build(in)
	req := p.Request(replyTemperature, replyMaxTokens)
	req.Model = e.model

	raw, err := e.client.Complete(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return reply{}, ctxErr
		}
		e.logger.Warn("Reply generation failed, using fallback",
			"agent", in.Agent.Name,
			"speaker", in.Speaker,
			"error", err,
		)
		return reply{Text: fallbackLine(in.Agent.Persona, in.LastMessage == nil), Fallback: true}, nil
	}

	text, ended := stripEndMarker(raw)
	text = stripSpeakerLabel(text, in.Agent.Persona.Name())
	if text == "" {
		if ended {
			text = "Thanks for the chat, let's stay in touch."
		} else {
			return reply{Text: fallbackLine(in.Agent.Persona, in.LastMessage == nil), Fallback: true}, nil
		}
	}

	return reply{Text: text, Ended: ended}, nil
}

// replyNode appends the next transcript entry. It does not flip the speaker;
// that happens in the check node.
func (e *Engine) replyNode(ctx context.Context, state *core.SimulationState, failures *int) (core.Update, *core.TranscriptEntry) {
	sp := state.NextSpeaker
	agent := state.Agent(sp)
	other := state.Agent(sp.Other())

	closing := sp == core.SpeakerB && state.CurrentTurn >= state.MaxTurns
	r, err := e.generateReply(ctx, prompt.ReplyInput{
		Agent:       agent,
		Speaker:     sp,
		Counterpart: other.Persona.Name(),
		LastMessage: state.LastMessage,
		Recent:      state.Tail(prompt.HistoryTurns),
		Closing:     closing,
	})
	if err != nil {
		return core.Update{Error: core.Ptr(err.Error())}, nil
	}

	entry := core.TranscriptEntry{
		Speaker:   sp,
		SpeakerID: agent.ID,
		Text:      r.Text,
		Timestamp: e.now(),
	}
	update := core.Update{
		Transcript:   []core.TranscriptEntry{entry},
		LastMessage:  core.Ptr(r.Text),
		EndRequested: core.Ptr(r.Ended),
	}

	if r.Fallback {
		*failures++
		if *failures >= e.maxConsecutiveFailures {
			update.Error = core.Ptr(ErrModelUnavailable.Error())
		}
	} else {
		*failures = 0
	}

	return update, &entry
}

// stripEndMarker removes every end marker (any case) and reports whether one was present.
func stripEndMarker(text string) (string, bool) {
	if !endMarkerPattern.MatchString(text) {
		return strings.TrimSpace(text), false
	}
	return strings.TrimSpace(endMarkerPattern.ReplaceAllString(text, "")), true
}

// stripSpeakerLabel drops a leading "Name:" the model sometimes adds.
func stripSpeakerLabel(text, name string) string {
	if name == "" {
		return text
	}
	prefix := name + ":"
	if len(text) >= len(prefix) && strings.EqualFold(text[:len(prefix)], prefix) {
		return strings.TrimSpace(text[len(prefix):])
	}
	return text
}

// fallbackLine is used when the model could not produce a reply.
func fallbackLine(p core.Persona, opening bool) string {
	name := p.Name()
	if opening {
		if p.Tagline != "" {
			return fmt.Sprintf("Hi, I'm %s, %s. I'd love to hear what you're working on.", name, lowerFirst(p.Tagline))
		}
		return fmt.Sprintf("Hi, I'm %s. I'd love to hear what you're working on.", name)
	}
	return "Sorry, I lost my train of thought there. Could you tell me a bit more about what you're working on?"
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	if len(r) > 1 && r[1] >= 'A' && r[1] <= 'Z' {
		return s
	}
	return strings.ToLower(string(r[:1])) + string(r[1:])
}
