package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/alienxp03/handshake/internal/core"
)

// Watch event types.
const (
	EventTurn     = "turn"
	EventThought  = "thought"
	EventComplete = "complete"
	EventError    = "error"
)

// StreamEvent is one message sent to a watcher.
type StreamEvent struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type emitFunc func(eventType string, data any) error

// watch replays sim and then polls the store, emitting every new transcript
// entry and thought until the run finishes or ctx ends.
func (h *Handler) watch(ctx context.Context, sim *core.Simulation, emit emitFunc) error {
	ctx, cancel := context.WithTimeout(ctx, h.streamTimeout)
	defer cancel()

	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()

	sentTurns, sentThoughts := 0, 0
	for {
		for ; sentTurns < len(sim.Transcript); sentTurns++ {
			if err := emit(EventTurn, sim.Transcript[sentTurns]); err != nil {
				return err
			}
		}
		for ; sentThoughts < len(sim.Thoughts); sentThoughts++ {
			if err := emit(EventThought, sim.Thoughts[sentThoughts]); err != nil {
				return err
			}
		}
		if sim.IsFinished() {
			return emit(EventComplete, sim)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		updated, err := h.store.GetSimulation(ctx, sim.ID)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Error("Stream error refreshing simulation", "simulation_id", sim.ID, "error", err)
			continue
		}
		sim = updated
	}
}

// handleSimulationStream streams simulation progress using Server-Sent Events.
func (h *Handler) handleSimulationStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		slog.Error("Streaming unsupported: ResponseWriter does not implement http.Flusher")
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	sim, ok := h.loadSimulation(w, r)
	if !ok {
		return
	}
	slog.Debug("New simulation stream connection", "simulation_id", sim.ID, "remote_addr", r.RemoteAddr)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	emit := func(eventType string, data any) error {
		return writeSSE(w, flusher, eventType, data)
	}

	if err := h.watch(r.Context(), sim, emit); err != nil && r.Context().Err() == nil {
		slog.Debug("Simulation stream ended", "simulation_id", sim.ID, "error", err)
		if err := emit(EventError, map[string]string{"message": err.Error()}); err != nil {
			slog.Debug("Failed to send stream error", "error", err)
		}
	}
}

func writeSSE(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal SSE data: %w", err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, payload); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

// handleSimulationSocket streams the same events as handleSimulationStream
// over a WebSocket. Messages from the client are ignored.
func (h *Handler) handleSimulationSocket(w http.ResponseWriter, r *http.Request) {
	sim, ok := h.loadSimulation(w, r)
	if !ok {
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "simulation_id", sim.ID, "error", err)
		return
	}
	defer func() {
		if closeErr := ws.CloseNow(); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr)
		}
	}()

	ctx := ws.CloseRead(r.Context())
	emit := func(eventType string, data any) error {
		payload, err := json.Marshal(StreamEvent{Type: eventType, Data: data})
		if err != nil {
			return err
		}
		writeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		return ws.Write(writeCtx, websocket.MessageText, payload)
	}

	if err := h.watch(ctx, sim, emit); err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.Debug("Simulation socket ended", "simulation_id", sim.ID, "error", err)
		if err := emit(EventError, map[string]string{"message": err.Error()}); err != nil {
			slog.Debug("Failed to send socket error", "error", err)
		}
		return
	}

	if err := ws.Close(websocket.StatusNormalClosure, "simulation finished"); err != nil {
		slog.Debug("Failed to close websocket", "simulation_id", sim.ID, "error", err)
	}
}
