package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/alienxp03/handshake/internal/core"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &SQLiteStorage{
		db:   db,
		path: dbPath,
	}, nil
}

// Path returns the database file path.
func (s *SQLiteStorage) Path() string {
	return s.path
}

// Initialize creates the database schema.
func (s *SQLiteStorage) Initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS simulations (
		id TEXT PRIMARY KEY,
		participant_a_id TEXT NOT NULL,
		participant_b_id TEXT NOT NULL,
		agent_a_json TEXT NOT NULL,
		agent_b_json TEXT NOT NULL,
		transcript_json TEXT NOT NULL DEFAULT '[]',
		thoughts_json TEXT NOT NULL DEFAULT '[]',
		score INTEGER,
		takeaways_json TEXT,
		status TEXT NOT NULL DEFAULT 'running',
		termination_reason TEXT,
		error TEXT,
		max_turns INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		completed_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS personas (
		id TEXT PRIMARY KEY,
		persona_json TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_simulations_status ON simulations(status);
	CREATE INDEX IF NOT EXISTS idx_simulations_created_at ON simulations(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_simulations_participant_a ON simulations(participant_a_id);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// CreateSimulation inserts a new run record.
func (s *SQLiteStorage) CreateSimulation(ctx context.Context, sim *core.Simulation) error {
	agentAJSON, err := json.Marshal(sim.AgentA)
	if err != nil {
		return fmt.Errorf("failed to marshal agent A: %w", err)
	}
	agentBJSON, err := json.Marshal(sim.AgentB)
	if err != nil {
		return fmt.Errorf("failed to marshal agent B: %w", err)
	}
	transcriptJSON, err := marshalList(sim.Transcript)
	if err != nil {
		return fmt.Errorf("failed to marshal transcript: %w", err)
	}
	thoughtsJSON, err := marshalList(sim.Thoughts)
	if err != nil {
		return fmt.Errorf("failed to marshal thoughts: %w", err)
	}

	query := `
	INSERT INTO simulations (id, participant_a_id, participant_b_id, agent_a_json, agent_b_json,
		transcript_json, thoughts_json, status, max_turns, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		sim.ID,
		sim.ParticipantAID,
		sim.ParticipantBID,
		string(agentAJSON),
		string(agentBJSON),
		transcriptJSON,
		thoughtsJSON,
		sim.Status,
		sim.MaxTurns,
		sim.CreatedAt,
		sim.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert simulation: %w", err)
	}

	return nil
}

// GetSimulation retrieves a run record by ID.
func (s *SQLiteStorage) GetSimulation(ctx context.Context, id string) (*core.Simulation, error) {
	query := `
	SELECT id, participant_a_id, participant_b_id, agent_a_json, agent_b_json, transcript_json,
		thoughts_json, score, takeaways_json, status, termination_reason, error, max_turns,
		created_at, updated_at, completed_at
	FROM simulations
	WHERE id = ?
	`

	var sim core.Simulation
	var agentAJSON, agentBJSON, transcriptJSON, thoughtsJSON string
	var score sql.NullInt64
	var takeawaysJSON, reason, errMsg sql.NullString
	var completedAt sql.NullTime

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&sim.ID,
		&sim.ParticipantAID,
		&sim.ParticipantBID,
		&agentAJSON,
		&agentBJSON,
		&transcriptJSON,
		&thoughtsJSON,
		&score,
		&takeawaysJSON,
		&sim.Status,
		&reason,
		&errMsg,
		&sim.MaxTurns,
		&sim.CreatedAt,
		&sim.UpdatedAt,
		&completedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("simulation %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get simulation: %w", err)
	}

	if err := json.Unmarshal([]byte(agentAJSON), &sim.AgentA); err != nil {
		return nil, fmt.Errorf("failed to unmarshal agent A: %w", err)
	}
	if err := json.Unmarshal([]byte(agentBJSON), &sim.AgentB); err != nil {
		return nil, fmt.Errorf("failed to unmarshal agent B: %w", err)
	}
	if err := json.Unmarshal([]byte(transcriptJSON), &sim.Transcript); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transcript: %w", err)
	}
	if err := json.Unmarshal([]byte(thoughtsJSON), &sim.Thoughts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal thoughts: %w", err)
	}
	if takeawaysJSON.Valid {
		if err := json.Unmarshal([]byte(takeawaysJSON.String), &sim.Takeaways); err != nil {
			return nil, fmt.Errorf("failed to unmarshal takeaways: %w", err)
		}
	}

	if score.Valid {
		v := int(score.Int64)
		sim.Score = &v
	}
	sim.TerminationReason = reason.String
	sim.Error = errMsg.String
	if completedAt.Valid {
		sim.CompletedAt = &completedAt.Time
	}

	return &sim, nil
}

// ListSimulations returns run summaries, newest first.
func (s *SQLiteStorage) ListSimulations(ctx context.Context, limit, offset int) ([]*core.SimulationSummary, error) {
	query := `
	SELECT id, participant_a_id, participant_b_id, agent_a_json, agent_b_json, status, score,
		json_array_length(transcript_json), created_at
	FROM simulations
	ORDER BY created_at DESC
	LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list simulations: %w", err)
	}
	defer rows.Close()

	var summaries []*core.SimulationSummary
	for rows.Next() {
		var summary core.SimulationSummary
		var agentAJSON, agentBJSON string
		var score sql.NullInt64

		err := rows.Scan(
			&summary.ID,
			&summary.ParticipantAID,
			&summary.ParticipantBID,
			&agentAJSON,
			&agentBJSON,
			&summary.Status,
			&score,
			&summary.EntryCount,
			&summary.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan simulation summary: %w", err)
		}

		var agentA, agentB core.AgentConfig
		if err := json.Unmarshal([]byte(agentAJSON), &agentA); err != nil {
			return nil, fmt.Errorf("failed to unmarshal agent A: %w", err)
		}
		if err := json.Unmarshal([]byte(agentBJSON), &agentB); err != nil {
			return nil, fmt.Errorf("failed to unmarshal agent B: %w", err)
		}
		summary.AgentA = agentA.Name
		summary.AgentB = agentB.Name
		if score.Valid {
			v := int(score.Int64)
			summary.Score = &v
		}

		summaries = append(summaries, &summary)
	}

	return summaries, rows.Err()
}

// DeleteSimulation removes a run record.
func (s *SQLiteStorage) DeleteSimulation(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM simulations WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete simulation: %w", err)
	}
	return expectRow(res, "simulation", id)
}

// UpdateTranscript overwrites the stored transcript.
func (s *SQLiteStorage) UpdateTranscript(ctx context.Context, id string, transcript []core.TranscriptEntry) error {
	data, err := marshalList(transcript)
	if err != nil {
		return fmt.Errorf("failed to marshal transcript: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		"UPDATE simulations SET transcript_json = ?, updated_at = ? WHERE id = ?",
		data, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update transcript: %w", err)
	}
	return expectRow(res, "simulation", id)
}

// UpdateThoughts overwrites the stored thought list.
func (s *SQLiteStorage) UpdateThoughts(ctx context.Context, id string, thoughts []core.ThoughtEntry) error {
	data, err := marshalList(thoughts)
	if err != nil {
		return fmt.Errorf("failed to marshal thoughts: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		"UPDATE simulations SET thoughts_json = ?, updated_at = ? WHERE id = ?",
		data, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update thoughts: %w", err)
	}
	return expectRow(res, "simulation", id)
}

// Finalize writes the final result of a run in a single statement.
func (s *SQLiteStorage) Finalize(ctx context.Context, id string, result core.FinalResult) error {
	transcriptJSON, err := marshalList(result.Transcript)
	if err != nil {
		return fmt.Errorf("failed to marshal transcript: %w", err)
	}
	takeawaysJSON, err := marshalList(result.Takeaways)
	if err != nil {
		return fmt.Errorf("failed to marshal takeaways: %w", err)
	}

	query := `
	UPDATE simulations
	SET transcript_json = ?, score = ?, takeaways_json = ?, status = ?, termination_reason = ?,
		error = ?, updated_at = ?, completed_at = ?
	WHERE id = ?
	`

	now := time.Now()
	res, err := s.db.ExecContext(ctx, query,
		transcriptJSON,
		result.Score,
		takeawaysJSON,
		result.Status,
		result.TerminationReason,
		nullString(result.Error),
		now,
		now,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to finalize simulation: %w", err)
	}
	return expectRow(res, "simulation", id)
}

// MarkFailed records a failed run.
func (s *SQLiteStorage) MarkFailed(ctx context.Context, id string, message string) error {
	query := `
	UPDATE simulations
	SET status = ?, error = ?, termination_reason = COALESCE(termination_reason, ?),
		updated_at = ?, completed_at = COALESCE(completed_at, ?)
	WHERE id = ?
	`

	now := time.Now()
	res, err := s.db.ExecContext(ctx, query,
		core.StatusFailed,
		message,
		core.ReasonErrorPrefix+message,
		now,
		now,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark simulation failed: %w", err)
	}
	return expectRow(res, "simulation", id)
}

// MarkInterrupted fails runs left running by a previous process.
func (s *SQLiteStorage) MarkInterrupted(ctx context.Context) (int, error) {
	query := `
	UPDATE simulations
	SET status = ?, error = ?, termination_reason = ?, updated_at = ?, completed_at = ?
	WHERE status = ?
	`

	now := time.Now()
	res, err := s.db.ExecContext(ctx, query,
		core.StatusFailed,
		"interrupted",
		core.ReasonErrorPrefix+"interrupted",
		now,
		now,
		core.StatusRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark interrupted simulations: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// UpsertPersona inserts or replaces a persona.
func (s *SQLiteStorage) UpsertPersona(ctx context.Context, p *core.Persona) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal persona: %w", err)
	}

	query := `
	INSERT INTO personas (id, persona_json, created_at, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET persona_json = excluded.persona_json, updated_at = excluded.updated_at
	`

	now := time.Now()
	if _, err := s.db.ExecContext(ctx, query, p.ID, string(data), now, now); err != nil {
		return fmt.Errorf("failed to upsert persona: %w", err)
	}
	return nil
}

// GetPersona retrieves a persona by ID.
func (s *SQLiteStorage) GetPersona(ctx context.Context, id string) (*core.Persona, error) {
	var data string
	err := s.db.QueryRowContext(ctx, "SELECT persona_json FROM personas WHERE id = ?", id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("persona %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get persona: %w", err)
	}

	var p core.Persona
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal persona: %w", err)
	}
	return &p, nil
}

// ListPersonas returns all stored personas ordered by ID.
func (s *SQLiteStorage) ListPersonas(ctx context.Context) ([]*core.Persona, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT persona_json FROM personas ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to list personas: %w", err)
	}
	defer rows.Close()

	var personas []*core.Persona
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan persona: %w", err)
		}
		var p core.Persona
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal persona: %w", err)
		}
		personas = append(personas, &p)
	}

	return personas, rows.Err()
}

// DeletePersona removes a persona.
func (s *SQLiteStorage) DeletePersona(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM personas WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete persona: %w", err)
	}
	return expectRow(res, "persona", id)
}

// marshalList encodes a slice as JSON, writing nil as an empty array.
func marshalList[T any](items []T) (string, error) {
	if items == nil {
		items = []T{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func expectRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return nil
}

// DefaultDBPath returns the default database path.
func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "handshake.db"
	}
	return filepath.Join(home, ".handshake", "handshake.db")
}
