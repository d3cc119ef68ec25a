package simulation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alienxp03/handshake/internal/core"
)

type errorSink struct {
	mu   sync.Mutex
	errs map[string]error
}

func (s *errorSink) handle(id string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.errs == nil {
		s.errs = make(map[string]error)
	}
	s.errs[id] = err
}

func (s *errorSink) get(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errs[id]
}

func createSims(t *testing.T, e *Engine, n int) []*core.Simulation {
	t.Helper()
	pairs := [][2]string{{"maya", "jonas"}, {"jonas", "priya"}, {"priya", "maya"}}
	var sims []*core.Simulation
	for i := 0; i < n; i++ {
		pair := pairs[i%len(pairs)]
		sim, err := e.CreateSimulation(context.Background(), core.NewSimulationConfig{
			ParticipantAID: pair[0],
			ParticipantBID: pair[1],
			MaxTurns:       2,
		})
		require.NoError(t, err)
		sims = append(sims, sim)
	}
	return sims
}

func TestRunnerRunsSubmittedSimulations(t *testing.T) {
	store := newFakeStore()
	e := newTestEngine(store, &fakeCompleter{})
	sink := &errorSink{}

	r := NewRunner(e, WithWorkers(2), WithQueueSize(8), WithErrorHandler(sink.handle), WithRunnerLogger(discardLogger()))
	r.Start(context.Background())

	sims := createSims(t, e, 5)
	for _, sim := range sims {
		require.NoError(t, r.Submit(sim))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, r.Shutdown(ctx))

	for _, sim := range sims {
		result, ok := store.result(sim.ID)
		require.True(t, ok, sim.ID)
		assert.Equal(t, core.StatusCompleted, result.Status)
		assert.Len(t, result.Transcript, 4)
		assert.NoError(t, sink.get(sim.ID))
	}
	assert.Equal(t, 0, r.Active())
}

func TestRunnerSubmitErrors(t *testing.T) {
	e := newTestEngine(newFakeStore(), &fakeCompleter{})
	sims := createSims(t, e, 2)

	r := NewRunner(e, WithQueueSize(1), WithRunnerLogger(discardLogger()))
	require.NoError(t, r.Submit(sims[0]))
	assert.ErrorIs(t, r.Submit(sims[1]), ErrQueueFull)

	require.NoError(t, r.Shutdown(context.Background()))
	assert.ErrorIs(t, r.Submit(sims[1]), ErrRunnerClosed)
	assert.NoError(t, r.Shutdown(context.Background()))
}

func TestRunnerShutdownCancelsRuns(t *testing.T) {
	store := newFakeStore()
	e := newTestEngine(store, &fakeCompleter{block: true})
	sink := &errorSink{}

	r := NewRunner(e, WithWorkers(1), WithErrorHandler(sink.handle), WithRunnerLogger(discardLogger()))
	r.Start(context.Background())

	sim := createSims(t, e, 1)[0]
	require.NoError(t, r.Submit(sim))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, r.Shutdown(ctx), context.DeadlineExceeded)

	result, ok := store.result(sim.ID)
	require.True(t, ok, "cancelled run still records its result")
	assert.Equal(t, core.ReasonErrorPrefix+context.Canceled.Error(), result.TerminationReason)
	assert.Error(t, sink.get(sim.ID))
}

func TestRunnerRecoversPanics(t *testing.T) {
	store := newFakeStore()
	e := newTestEngine(store, &fakeCompleter{panicOn: true})
	sink := &errorSink{}

	r := NewRunner(e, WithWorkers(1), WithErrorHandler(sink.handle), WithRunnerLogger(discardLogger()))
	r.Start(context.Background())

	sims := createSims(t, e, 2)
	for _, sim := range sims {
		require.NoError(t, r.Submit(sim))
	}
	require.NoError(t, r.Shutdown(context.Background()))

	for _, sim := range sims {
		err := sink.get(sim.ID)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "panic: completer exploded")
		assert.Contains(t, store.failed[sim.ID], "completer exploded")
	}
}
