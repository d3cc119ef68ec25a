package core

const (
	// DefaultMaxTurns is the number of exchanges a run allows when unset.
	DefaultMaxTurns = 10

	// MaxAllowedTurns is the upper bound for a configured MaxTurns.
	MaxAllowedTurns = 15
)

// ClampMaxTurns applies the default and the upper bound to a requested turn limit.
func ClampMaxTurns(n int) int {
	if n <= 0 {
		return DefaultMaxTurns
	}
	if n > MaxAllowedTurns {
		return MaxAllowedTurns
	}
	return n
}

// SimulationState is the orchestrator's working state for one run.
//
// CurrentTurn is the 1-based index of the exchange in progress. An exchange is
// A's reply followed by B's reply, so the transcript never holds more than
// 2*MaxTurns entries.
type SimulationState struct {
	SimulationID      string
	AgentA            AgentConfig
	AgentB            AgentConfig
	Transcript        []TranscriptEntry
	Thoughts          []ThoughtEntry
	CurrentTurn       int
	NextSpeaker       Speaker
	LastMessage       *string
	IsActive          bool
	TerminationReason *string
	Analysis          *AnalysisResult
	Error             *string
	MaxTurns          int

	// EndRequested is set when the most recent reply carried the end marker.
	EndRequested bool
}

// NewSimulationState creates the initial state: A speaks first in exchange 1.
func NewSimulationState(id string, a, b AgentConfig, maxTurns int) *SimulationState {
	return &SimulationState{
		SimulationID: id,
		AgentA:       a,
		AgentB:       b,
		Transcript:   []TranscriptEntry{},
		Thoughts:     []ThoughtEntry{},
		CurrentTurn:  1,
		NextSpeaker:  SpeakerA,
		IsActive:     true,
		MaxTurns:     ClampMaxTurns(maxTurns),
	}
}

// Agent returns the config of the given speaker.
func (s *SimulationState) Agent(sp Speaker) AgentConfig {
	if sp == SpeakerB {
		return s.AgentB
	}
	return s.AgentA
}

// Tail returns up to n most recent transcript entries.
func (s *SimulationState) Tail(n int) []TranscriptEntry {
	if n <= 0 || len(s.Transcript) == 0 {
		return nil
	}
	if len(s.Transcript) <= n {
		return s.Transcript
	}
	return s.Transcript[len(s.Transcript)-n:]
}

// Update is a partial change produced by one node. Transcript and Thoughts
// are appended; every other non-nil field replaces the current value.
type Update struct {
	Transcript        []TranscriptEntry
	Thoughts          []ThoughtEntry
	CurrentTurn       *int
	NextSpeaker       *Speaker
	LastMessage       *string
	IsActive          *bool
	TerminationReason *string
	Analysis          *AnalysisResult
	Error             *string
	EndRequested      *bool
}

// Apply merges an update into the state.
func (s *SimulationState) Apply(u Update) {
	if len(u.Transcript) > 0 {
		s.Transcript = append(s.Transcript, u.Transcript...)
	}
	if len(u.Thoughts) > 0 {
		s.Thoughts = append(s.Thoughts, u.Thoughts...)
	}
	if u.CurrentTurn != nil {
		s.CurrentTurn = *u.CurrentTurn
	}
	if u.NextSpeaker != nil {
		s.NextSpeaker = *u.NextSpeaker
	}
	if u.LastMessage != nil {
		s.LastMessage = u.LastMessage
	}
	if u.IsActive != nil {
		s.IsActive = *u.IsActive
	}
	if u.TerminationReason != nil {
		s.TerminationReason = u.TerminationReason
	}
	if u.Analysis != nil {
		s.Analysis = u.Analysis
	}
	if u.Error != nil {
		s.Error = u.Error
	}
	if u.EndRequested != nil {
		s.EndRequested = *u.EndRequested
	}
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
