// Package storage persists simulation runs and personas.
package storage

import (
	"context"
	"errors"

	"github.com/alienxp03/handshake/internal/core"
)

// ErrNotFound is returned when a simulation or persona does not exist.
var ErrNotFound = errors.New("not found")

// Storage defines the interface for simulation persistence. Implementations
// must be safe for concurrent use by many runs.
type Storage interface {
	// Initialize sets up the storage (creates tables, etc.)
	Initialize() error

	// Close closes the storage connection.
	Close() error

	// Simulation operations
	CreateSimulation(ctx context.Context, sim *core.Simulation) error
	GetSimulation(ctx context.Context, id string) (*core.Simulation, error)
	ListSimulations(ctx context.Context, limit, offset int) ([]*core.SimulationSummary, error)
	DeleteSimulation(ctx context.Context, id string) error

	// UpdateTranscript replaces the stored transcript with the given one.
	// Writing the same transcript twice leaves the row unchanged.
	UpdateTranscript(ctx context.Context, id string, transcript []core.TranscriptEntry) error

	// UpdateThoughts replaces the stored thought list.
	UpdateThoughts(ctx context.Context, id string, thoughts []core.ThoughtEntry) error

	// Finalize writes transcript, score, takeaways and terminal status in one update.
	Finalize(ctx context.Context, id string, result core.FinalResult) error

	// MarkFailed sets status failed and records the error message.
	MarkFailed(ctx context.Context, id string, message string) error

	// MarkInterrupted fails every run still marked running and returns how many
	// rows were changed.
	MarkInterrupted(ctx context.Context) (int, error)

	// Persona operations
	UpsertPersona(ctx context.Context, p *core.Persona) error
	GetPersona(ctx context.Context, id string) (*core.Persona, error)
	ListPersonas(ctx context.Context) ([]*core.Persona, error)
	DeletePersona(ctx context.Context, id string) error
}
