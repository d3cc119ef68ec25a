// Package simulation runs agent-to-agent conversations.
//
// A run is an explicit state machine:
//
//	reply -> sync -> thought -> check -> (reply | analyze) -> persist -> done
//
// Nodes execute strictly in sequence; the check node is the only branch.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alienxp03/handshake/internal/core"
	"github.com/alienxp03/handshake/internal/llm"
	"github.com/alienxp03/handshake/internal/persona"
)

// Store is the persistence the engine writes to.
type Store interface {
	CreateSimulation(ctx context.Context, sim *core.Simulation) error
	UpdateTranscript(ctx context.Context, id string, transcript []core.TranscriptEntry) error
	UpdateThoughts(ctx context.Context, id string, thoughts []core.ThoughtEntry) error
	Finalize(ctx context.Context, id string, result core.FinalResult) error
	MarkFailed(ctx context.Context, id string, message string) error
}

// Completer is the language model client. *llm.RetryingClient implements it.
type Completer interface {
	Complete(ctx context.Context, req *llm.Request) (string, error)
	CompleteJSON(ctx context.Context, req *llm.Request, v any) error
}

// TurnCallback is called after each reply is added to the transcript.
type TurnCallback func(entry core.TranscriptEntry, state *core.SimulationState)

const (
	// DefaultMaxConsecutiveFailures is how many fallback replies in a row end a run.
	DefaultMaxConsecutiveFailures = 4

	defaultPersistTimeout  = 30 * time.Second
	defaultAnalysisTimeout = 90 * time.Second
)

// ErrModelUnavailable is recorded when too many replies in a row fell back.
var ErrModelUnavailable = errors.New("language model unavailable")

// Engine orchestrates simulation runs. It holds no per-run state and is safe
// for concurrent use.
type Engine struct {
	store    Store
	personas persona.Provider
	client   Completer
	logger   *slog.Logger
	now      func() time.Time

	model                  string
	defaultMaxTurns        int
	maxConsecutiveFailures int
	runTimeout             time.Duration
	analysisTimeout        time.Duration
	persistTimeout         time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithClock replaces time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithModel selects the model passed to every completion request.
func WithModel(model string) Option {
	return func(e *Engine) { e.model = model }
}

// WithDefaultMaxTurns sets the turn limit used when a request leaves it unset.
func WithDefaultMaxTurns(n int) Option {
	return func(e *Engine) { e.defaultMaxTurns = core.ClampMaxTurns(n) }
}

// WithMaxConsecutiveFailures sets how many fallback replies in a row stop a run.
func WithMaxConsecutiveFailures(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxConsecutiveFailures = n
		}
	}
}

// WithRunTimeout bounds the wall-clock time of a run. Zero means no limit.
func WithRunTimeout(d time.Duration) Option {
	return func(e *Engine) { e.runTimeout = d }
}

// WithAnalysisTimeout bounds the scoring call made after the conversation ends.
func WithAnalysisTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.analysisTimeout = d
		}
	}
}

// New creates a simulation engine.
func New(store Store, personas persona.Provider, client Completer, opts ...Option) *Engine {
	e := &Engine{
		store:                  store,
		personas:               personas,
		client:                 client,
		logger:                 slog.Default(),
		now:                    time.Now,
		defaultMaxTurns:        core.DefaultMaxTurns,
		maxConsecutiveFailures: DefaultMaxConsecutiveFailures,
		analysisTimeout:        defaultAnalysisTimeout,
		persistTimeout:         defaultPersistTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreateSimulation resolves both personas and stores a new running simulation.
func (e *Engine) CreateSimulation(ctx context.Context, cfg core.NewSimulationConfig) (*core.Simulation, error) {
	e.logger.Debug("Creating simulation", "participant_a", cfg.ParticipantAID, "participant_b", cfg.ParticipantBID)

	if cfg.ParticipantAID == "" || cfg.ParticipantBID == "" {
		return nil, fmt.Errorf("both participant ids are required")
	}
	if cfg.ParticipantAID == cfg.ParticipantBID {
		return nil, fmt.Errorf("participants must be different")
	}

	pa, err := e.personas.GetPersona(ctx, cfg.ParticipantAID)
	if err != nil {
		return nil, fmt.Errorf("participant A: %w", err)
	}
	pb, err := e.personas.GetPersona(ctx, cfg.ParticipantBID)
	if err != nil {
		return nil, fmt.Errorf("participant B: %w", err)
	}

	maxTurns := cfg.MaxTurns
	if maxTurns <= 0 {
		maxTurns = e.defaultMaxTurns
	}

	now := e.now()
	sim := &core.Simulation{
		ID:             core.NewID(),
		ParticipantAID: cfg.ParticipantAID,
		ParticipantBID: cfg.ParticipantBID,
		AgentA:         core.NewAgentConfig(core.SpeakerA, *pa),
		AgentB:         core.NewAgentConfig(core.SpeakerB, *pb),
		Transcript:     []core.TranscriptEntry{},
		Thoughts:       []core.ThoughtEntry{},
		Status:         core.StatusRunning,
		MaxTurns:       core.ClampMaxTurns(maxTurns),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := e.store.CreateSimulation(ctx, sim); err != nil {
		return nil, fmt.Errorf("failed to create simulation: %w", err)
	}

	e.logger.Info("Simulation created", "simulation_id", sim.ID, "max_turns", sim.MaxTurns)
	return sim, nil
}

type node int

const (
	nodeReply node = iota
	nodeSync
	nodeThought
	nodeCheck
	nodeAnalyze
	nodePersist
	nodeDone
)

func (n node) String() string {
	switch n {
	case nodeReply:
		return "reply"
	case nodeSync:
		return "sync"
	case nodeThought:
		return "thought"
	case nodeCheck:
		return "check"
	case nodeAnalyze:
		return "analyze"
	case nodePersist:
		return "persist"
	case nodeDone:
		return "done"
	default:
		return fmt.Sprintf("node(%d)", int(n))
	}
}

// Run drives a created simulation to completion. The returned state is final.
// The only error returned is a failure to persist the final result; every
// other failure is absorbed into the state and the stored record.
func (e *Engine) Run(ctx context.Context, sim *core.Simulation, callback TurnCallback) (*core.SimulationState, error) {
	if e.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.runTimeout)
		defer cancel()
	}

	logger := e.logger.With("simulation_id", sim.ID)
	state := core.NewSimulationState(sim.ID, sim.AgentA, sim.AgentB, sim.MaxTurns)
	failures := 0
	start := e.now()

	logger.Info("Simulation started", "max_turns", state.MaxTurns)

	var runErr error
	for n := nodeReply; n != nodeDone; {
		logger.Debug("Entering node", "node", n, "turn", state.CurrentTurn, "speaker", state.NextSpeaker)

		switch n {
		case nodeReply:
			update, entry := e.replyNode(ctx, state, &failures)
			state.Apply(update)
			if entry != nil && callback != nil {
				callback(*entry, state)
			}
			n = nodeSync

		case nodeSync:
			e.syncTranscript(ctx, state)
			n = nodeThought

		case nodeThought:
			state.Apply(e.maybeThought(ctx, state))
			n = nodeCheck

		case nodeCheck:
			if err := ctx.Err(); err != nil && state.Error == nil {
				state.Apply(core.Update{Error: core.Ptr(err.Error())})
			}
			decision := Evaluate(state)
			if decision.Stop {
				logger.Info("Conversation stopped", "reason", decision.Reason, "entries", len(state.Transcript))
				state.Apply(core.Update{
					IsActive:          core.Ptr(false),
					TerminationReason: core.Ptr(decision.Reason),
				})
				n = nodeAnalyze
			} else {
				state.Apply(advance(state))
				n = nodeReply
			}

		case nodeAnalyze:
			analysis := e.analyze(ctx, state)
			state.Apply(core.Update{Analysis: &analysis})
			n = nodePersist

		case nodePersist:
			runErr = e.persistFinal(ctx, state)
			n = nodeDone
		}
	}

	if runErr != nil {
		logger.Error("Simulation failed", "error", runErr, "duration", e.now().Sub(start))
		return state, runErr
	}

	logger.Info("Simulation completed",
		"reason", *state.TerminationReason,
		"score", state.Analysis.Score,
		"entries", len(state.Transcript),
		"thoughts", len(state.Thoughts),
		"duration", e.now().Sub(start),
	)
	return state, nil
}

// RunNew creates a simulation and runs it synchronously.
func (e *Engine) RunNew(ctx context.Context, cfg core.NewSimulationConfig, callback TurnCallback) (*core.Simulation, *core.SimulationState, error) {
	sim, err := e.CreateSimulation(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	state, err := e.Run(ctx, sim, callback)
	return sim, state, err
}

// advance moves to the next speaker. The turn counter increases once B has
// replied, completing the exchange.
func advance(s *core.SimulationState) core.Update {
	if s.NextSpeaker == core.SpeakerB {
		return core.Update{
			CurrentTurn: core.Ptr(s.CurrentTurn + 1),
			NextSpeaker: core.Ptr(core.SpeakerA),
		}
	}
	return core.Update{NextSpeaker: core.Ptr(core.SpeakerB)}
}
