package core

import (
	"fmt"

	"github.com/google/uuid"
)

// NewID returns a fresh random identifier for a simulation or agent.
func NewID() string {
	return uuid.New().String()
}

// AgentName builds the display name for one side of a simulation.
func AgentName(sp Speaker, p Persona) string {
	name := p.Name()
	if name == "" {
		return fmt.Sprintf("Agent %s", sp)
	}
	return fmt.Sprintf("%s's agent", name)
}

// NewAgentConfig creates the agent for one side of a simulation.
func NewAgentConfig(sp Speaker, p Persona) AgentConfig {
	return AgentConfig{
		ID:      NewID(),
		Name:    AgentName(sp, p),
		Persona: p,
	}
}
