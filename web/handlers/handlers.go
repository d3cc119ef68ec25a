// Package handlers provides the HTTP API for starting and observing simulations.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/alienxp03/handshake/internal/core"
	"github.com/alienxp03/handshake/internal/export"
	"github.com/alienxp03/handshake/internal/llm"
	"github.com/alienxp03/handshake/internal/persona"
	"github.com/alienxp03/handshake/internal/simulation"
	"github.com/alienxp03/handshake/internal/storage"
)

// SimulationCreator creates a stored simulation ready to run.
type SimulationCreator interface {
	CreateSimulation(ctx context.Context, cfg core.NewSimulationConfig) (*core.Simulation, error)
}

// Submitter queues a created simulation for background execution.
type Submitter interface {
	Submit(sim *core.Simulation) error
}

// PersonaSource resolves and lists personas.
type PersonaSource interface {
	persona.Provider
	persona.Lister
}

// Options tunes the handler.
type Options struct {
	// PollInterval is how often live watchers re-read a running simulation.
	PollInterval time.Duration

	// StreamTimeout caps how long a single watch connection stays open.
	StreamTimeout time.Duration

	// HealthCachePath is where provider health results are cached.
	HealthCachePath string
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	store       storage.Storage
	creator     SimulationCreator
	runner      Submitter
	personas    PersonaSource
	registry    *llm.Registry
	healthCache *providerHealthCache

	pollInterval  time.Duration
	streamTimeout time.Duration
}

// New creates a new Handler.
func New(store storage.Storage, creator SimulationCreator, runner Submitter, personas PersonaSource, registry *llm.Registry, opts Options) *Handler {
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.StreamTimeout <= 0 {
		opts.StreamTimeout = 30 * time.Minute
	}

	return &Handler{
		store:         store,
		creator:       creator,
		runner:        runner,
		personas:      personas,
		registry:      registry,
		healthCache:   newProviderHealthCache(opts.HealthCachePath, providerHealthCacheTTL),
		pollInterval:  opts.PollInterval,
		streamTimeout: opts.StreamTimeout,
	}
}

// Router builds the chi router with the standard middleware stack.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))

	h.RegisterRoutes(r)
	return r
}

// RegisterRoutes registers all API routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Route("/simulations", func(r chi.Router) {
			r.Get("/", h.handleListSimulations)
			r.Post("/", h.handleCreateSimulation)
			r.Get("/{id}", h.handleGetSimulation)
			r.Delete("/{id}", h.handleDeleteSimulation)
			r.Get("/{id}/stream", h.handleSimulationStream)
			r.Get("/{id}/ws", h.handleSimulationSocket)
			r.Get("/{id}/export/{format}", h.handleExportSimulation)
		})

		r.Get("/personas", h.handleListPersonas)
		r.Get("/personas/{id}", h.handleGetPersona)
		r.Put("/personas/{id}", h.handlePutPersona)

		r.Get("/providers", h.handleListProviders)
		r.Get("/providers/{name}/health", h.handleProviderHealth)
	})
}

// Simulations

func (h *Handler) handleCreateSimulation(w http.ResponseWriter, r *http.Request) {
	var req core.NewSimulationConfig
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	req.ParticipantAID = strings.TrimSpace(req.ParticipantAID)
	req.ParticipantBID = strings.TrimSpace(req.ParticipantBID)
	if req.ParticipantAID == "" || req.ParticipantBID == "" {
		h.jsonError(w, "participant_a_id and participant_b_id are required", http.StatusBadRequest)
		return
	}
	if req.ParticipantAID == req.ParticipantBID {
		h.jsonError(w, "participants must be different", http.StatusBadRequest)
		return
	}
	if req.MaxTurns < 0 || req.MaxTurns > core.MaxAllowedTurns {
		h.jsonError(w, fmt.Sprintf("max_turns must be between 1 and %d", core.MaxAllowedTurns), http.StatusBadRequest)
		return
	}

	sim, err := h.creator.CreateSimulation(r.Context(), req)
	if errors.Is(err, persona.ErrNotFound) {
		h.jsonError(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("Failed to create simulation", "error", err)
		h.jsonError(w, "failed to create simulation", http.StatusInternalServerError)
		return
	}

	if err := h.runner.Submit(sim); err != nil {
		slog.Warn("Simulation rejected by runner", "simulation_id", sim.ID, "error", err)
		if markErr := h.store.MarkFailed(r.Context(), sim.ID, err.Error()); markErr != nil {
			slog.Error("Failed to mark rejected simulation", "simulation_id", sim.ID, "error", markErr)
		}
		if errors.Is(err, simulation.ErrQueueFull) || errors.Is(err, simulation.ErrRunnerClosed) {
			h.jsonError(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		h.jsonError(w, "failed to start simulation", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Location", "/api/simulations/"+sim.ID)
	h.jsonStatus(w, http.StatusAccepted, map[string]any{
		"id":        sim.ID,
		"status":    sim.Status,
		"max_turns": sim.MaxTurns,
	})
}

func (h *Handler) handleListSimulations(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	sims, err := h.store.ListSimulations(r.Context(), limit, offset)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if sims == nil {
		sims = []*core.SimulationSummary{}
	}

	h.json(w, sims)
}

func (h *Handler) handleGetSimulation(w http.ResponseWriter, r *http.Request) {
	sim, ok := h.loadSimulation(w, r)
	if !ok {
		return
	}
	h.json(w, sim)
}

func (h *Handler) handleDeleteSimulation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	err := h.store.DeleteSimulation(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		h.jsonError(w, "simulation not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleExportSimulation(w http.ResponseWriter, r *http.Request) {
	format := chi.URLParam(r, "format")

	exporter, err := export.GetExporter(export.Format(format))
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	sim, ok := h.loadSimulation(w, r)
	if !ok {
		return
	}

	filename := export.GenerateFilename(sim, exporter.FileExtension())
	w.Header().Set("Content-Type", exporter.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))

	if err := exporter.Export(sim, w); err != nil {
		slog.Error("Export failed", "simulation_id", sim.ID, "format", format, "error", err)
		http.Error(w, "Export failed", http.StatusInternalServerError)
	}
}

// loadSimulation fetches the simulation named in the path and writes the error
// response itself when it cannot.
func (h *Handler) loadSimulation(w http.ResponseWriter, r *http.Request) (*core.Simulation, bool) {
	id := chi.URLParam(r, "id")

	sim, err := h.store.GetSimulation(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		h.jsonError(w, "simulation not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return nil, false
	}
	return sim, true
}

// Personas

func (h *Handler) handleListPersonas(w http.ResponseWriter, r *http.Request) {
	personas, err := h.personas.ListPersonas(r.Context())
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if personas == nil {
		personas = []*core.Persona{}
	}
	h.json(w, personas)
}

func (h *Handler) handleGetPersona(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	p, err := h.personas.GetPersona(r.Context(), id)
	if errors.Is(err, persona.ErrNotFound) {
		h.jsonError(w, "persona not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.json(w, p)
}

func (h *Handler) handlePutPersona(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var p core.Persona
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if p.ID != "" && p.ID != id {
		h.jsonError(w, "persona id does not match path", http.StatusBadRequest)
		return
	}
	p.ID = id

	if err := persona.Validate(&p); err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.store.UpsertPersona(r.Context(), &p); err != nil {
		slog.Error("Failed to save persona", "persona_id", id, "error", err)
		h.jsonError(w, "failed to save persona", http.StatusInternalServerError)
		return
	}

	h.json(w, p)
}

// Providers

func (h *Handler) handleListProviders(w http.ResponseWriter, r *http.Request) {
	providers := h.registry.List()
	result := make([]map[string]any, 0, len(providers))

	for _, p := range providers {
		entry := map[string]any{
			"name":      p.Name(),
			"available": p.Available(),
		}
		if status, ok := h.healthCache.GetFresh(p.Name()); ok {
			entry["health"] = status
		}
		result = append(result, entry)
	}

	h.json(w, result)
}

func (h *Handler) handleProviderHealth(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	p, err := h.registry.Get(name)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusNotFound)
		return
	}

	status, cached := h.healthCache.GetFresh(name)
	if !cached {
		status = llm.CheckHealth(r.Context(), p)
		h.healthCache.Set(name, status)
	}

	h.json(w, map[string]any{
		"name":          name,
		"available":     status.Available,
		"response_time": status.ResponseTime.Seconds(),
		"error":         status.Error,
		"checked_at":    status.CheckedAt,
		"cached":        cached,
	})
}

// Helper methods

func (h *Handler) json(w http.ResponseWriter, data any) {
	h.jsonStatus(w, http.StatusOK, data)
}

func (h *Handler) jsonStatus(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Debug("Failed to write JSON response", "error", err)
	}
}

func (h *Handler) jsonError(w http.ResponseWriter, message string, code int) {
	h.jsonStatus(w, code, map[string]string{"error": message})
}
