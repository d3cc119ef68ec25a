// Package core contains the core domain types for handshake.
package core

import (
	"time"
)

// SimulationStatus represents the persisted status of a simulation run.
type SimulationStatus string

const (
	StatusRunning   SimulationStatus = "running"
	StatusCompleted SimulationStatus = "completed"
	StatusFailed    SimulationStatus = "failed"
)

// Speaker identifies which side of the conversation produced an entry.
type Speaker string

const (
	SpeakerA Speaker = "A"
	SpeakerB Speaker = "B"
)

// Other returns the opposite speaker.
func (s Speaker) Other() Speaker {
	if s == SpeakerA {
		return SpeakerB
	}
	return SpeakerA
}

// Termination reasons recorded on a finished simulation.
const (
	ReasonMaxTurns    = "max turns reached"
	ReasonAgentEnded  = "agent ended conversation"
	ReasonErrorPrefix = "error: "
)

// Experience is one entry of a persona's work history.
type Experience struct {
	Title        string `json:"title,omitempty" yaml:"title,omitempty"`
	Organization string `json:"organization,omitempty" yaml:"organization,omitempty"`
	Period       string `json:"period,omitempty" yaml:"period,omitempty"`
	Summary      string `json:"summary,omitempty" yaml:"summary,omitempty"`
}

// Project is something a persona has built or shipped.
type Project struct {
	Name        string `json:"name,omitempty" yaml:"name,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	URL         string `json:"url,omitempty" yaml:"url,omitempty"`
}

// Persona is the structured profile that steers one agent's dialogue.
// Every field except ID may be empty.
type Persona struct {
	ID              string       `json:"id" yaml:"id"`
	DisplayName     string       `json:"display_name,omitempty" yaml:"display_name,omitempty"`
	Tagline         string       `json:"tagline,omitempty" yaml:"tagline,omitempty"`
	Location        string       `json:"location,omitempty" yaml:"location,omitempty"`
	SkillsPossessed []string     `json:"skills_possessed,omitempty" yaml:"skills_possessed,omitempty"`
	SkillsDesired   []string     `json:"skills_desired,omitempty" yaml:"skills_desired,omitempty"`
	NetworkingGoals []string     `json:"networking_goals,omitempty" yaml:"networking_goals,omitempty"`
	VoiceSample     string       `json:"voice_sample,omitempty" yaml:"voice_sample,omitempty"`
	ExperienceLog   []Experience `json:"experience_log,omitempty" yaml:"experience_log,omitempty"`
	ProjectList     []Project    `json:"project_list,omitempty" yaml:"project_list,omitempty"`
	Interests       []string     `json:"interests,omitempty" yaml:"interests,omitempty"`
}

// Name returns the display name, falling back to the ID.
func (p *Persona) Name() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.ID
}

// AgentConfig is one participant's agent in a simulation.
type AgentConfig struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Persona Persona `json:"persona"`
}

// TranscriptEntry is a single reply in the conversation.
type TranscriptEntry struct {
	Speaker   Speaker   `json:"speaker"`
	SpeakerID string    `json:"speaker_id"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// ThoughtEntry is a private evaluation agent A forms about agent B.
type ThoughtEntry struct {
	Text       string    `json:"text"`
	TurnNumber int       `json:"turn_number"`
	Timestamp  time.Time `json:"timestamp"`
}

// AnalysisResult is the final compatibility assessment of a transcript.
type AnalysisResult struct {
	Score     int      `json:"score"`
	Takeaways []string `json:"takeaways"`
}

// Simulation is the persisted record of one run.
type Simulation struct {
	ID                string            `json:"id"`
	ParticipantAID    string            `json:"participant_a_id"`
	ParticipantBID    string            `json:"participant_b_id"`
	AgentA            AgentConfig       `json:"agent_a"`
	AgentB            AgentConfig       `json:"agent_b"`
	Transcript        []TranscriptEntry `json:"transcript"`
	Thoughts          []ThoughtEntry    `json:"thoughts"`
	Score             *int              `json:"score"`
	Takeaways         []string          `json:"takeaways"`
	Status            SimulationStatus  `json:"status"`
	TerminationReason string            `json:"termination_reason,omitempty"`
	Error             string            `json:"error,omitempty"`
	MaxTurns          int               `json:"max_turns"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
	CompletedAt       *time.Time        `json:"completed_at,omitempty"`
}

// IsFinished returns true once the run has reached a terminal status.
func (s *Simulation) IsFinished() bool {
	return s.Status == StatusCompleted || s.Status == StatusFailed
}

// SimulationSummary is a lightweight representation for listing runs.
type SimulationSummary struct {
	ID             string           `json:"id"`
	ParticipantAID string           `json:"participant_a_id"`
	ParticipantBID string           `json:"participant_b_id"`
	AgentA         string           `json:"agent_a"`
	AgentB         string           `json:"agent_b"`
	Status         SimulationStatus `json:"status"`
	Score          *int             `json:"score"`
	EntryCount     int              `json:"entry_count"`
	CreatedAt      time.Time        `json:"created_at"`
}

// NewSimulationConfig holds the inputs for starting a simulation.
type NewSimulationConfig struct {
	ParticipantAID string `json:"participant_a_id"`
	ParticipantBID string `json:"participant_b_id"`
	MaxTurns       int    `json:"max_turns"`
}

// FinalResult is everything the final write persists in one update.
type FinalResult struct {
	Transcript        []TranscriptEntry
	Score             int
	Takeaways         []string
	Status            SimulationStatus
	TerminationReason string
	Error             string
}

// EndMarker is the sentinel an agent emits to signal it wants to stop.
const EndMarker = "[END_CONVERSATION]"
