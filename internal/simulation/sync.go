package simulation

import (
	"context"
	"fmt"

	"github.com/alienxp03/handshake/internal/core"
)

// syncTranscript overwrites the stored transcript with the in-memory one so
// observers can follow the run. Failures are logged; the final write makes the
// record consistent.
func (e *Engine) syncTranscript(ctx context.Context, state *core.SimulationState) {
	snapshot := make([]core.TranscriptEntry, len(state.Transcript))
	copy(snapshot, state.Transcript)

	if err := e.store.UpdateTranscript(ctx, state.SimulationID, snapshot); err != nil {
		e.logger.Warn("Transcript sync failed",
			"simulation_id", state.SimulationID,
			"entries", len(snapshot),
			"error", err,
		)
	}
}

// persistFinal writes the terminal record in one update. It runs on a context
// detached from the run so a cancelled or timed-out run still records its
// result. On failure the run error is set and the row is marked failed.
func (e *Engine) persistFinal(ctx context.Context, state *core.SimulationState) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.persistTimeout)
	defer cancel()

	result := core.FinalResult{
		Transcript: state.Transcript,
		Status:     core.StatusCompleted,
	}
	if state.Analysis != nil {
		result.Score = state.Analysis.Score
		result.Takeaways = state.Analysis.Takeaways
	}
	if state.TerminationReason != nil {
		result.TerminationReason = *state.TerminationReason
	}
	if state.Error != nil {
		result.Error = *state.Error
	}

	if err := e.store.Finalize(ctx, state.SimulationID, result); err != nil {
		msg := fmt.Sprintf("failed to persist final result: %v", err)
		state.Apply(core.Update{Error: &msg})

		if markErr := e.store.MarkFailed(ctx, state.SimulationID, msg); markErr != nil {
			e.logger.Error("Failed to mark simulation failed",
				"simulation_id", state.SimulationID,
				"error", markErr,
			)
		}
		return fmt.Errorf("failed to persist final result: %w", err)
	}

	return nil
}
