package simulation

import (
	"github.com/alienxp03/handshake/internal/core"
)

// Decision is the outcome of the termination check.
type Decision struct {
	Stop   bool
	Reason string
}

// Evaluate decides whether a run stops after the most recent reply. Errors win
// over the end marker, which wins over the turn limit. The turn limit applies
// once the current exchange is complete.
func Evaluate(s *core.SimulationState) Decision {
	switch {
	case s.Error != nil:
		return Decision{Stop: true, Reason: core.ReasonErrorPrefix + *s.Error}
	case s.EndRequested:
		return Decision{Stop: true, Reason: core.ReasonAgentEnded}
	case s.NextSpeaker == core.SpeakerB && s.CurrentTurn >= s.MaxTurns:
		return Decision{Stop: true, Reason: core.ReasonMaxTurns}
	case len(s.Transcript) >= 2*s.MaxTurns:
		return Decision{Stop: true, Reason: core.ReasonMaxTurns}
	default:
		return Decision{}
	}
}
