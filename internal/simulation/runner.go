package simulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/alienxp03/handshake/internal/core"
)

var (
	// ErrQueueFull is returned by Submit when no queue slot is free.
	ErrQueueFull = errors.New("simulation queue is full")

	// ErrRunnerClosed is returned by Submit after Shutdown.
	ErrRunnerClosed = errors.New("simulation runner is closed")
)

// ErrorHandler receives the error of every run that did not finish cleanly.
type ErrorHandler func(simulationID string, err error)

// Runner executes simulations in the background on a fixed pool of workers.
// Callers get control back as soon as a run is queued; progress is observable
// only through the store.
type Runner struct {
	engine  *Engine
	workers int
	jobs    chan *core.Simulation
	logger  *slog.Logger
	onError ErrorHandler

	mu     sync.RWMutex
	closed bool
	group  *errgroup.Group
	cancel context.CancelFunc
	active atomic.Int64
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithWorkers sets the number of concurrent runs.
func WithWorkers(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithQueueSize sets how many runs may wait for a worker.
func WithQueueSize(n int) RunnerOption {
	return func(r *Runner) {
		if n >= 0 {
			r.jobs = make(chan *core.Simulation, n)
		}
	}
}

// WithErrorHandler registers a sink for run errors in addition to logging.
func WithErrorHandler(h ErrorHandler) RunnerOption {
	return func(r *Runner) { r.onError = h }
}

// WithRunnerLogger sets the runner logger.
func WithRunnerLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// NewRunner creates a runner. Call Start before Submit.
func NewRunner(engine *Engine, opts ...RunnerOption) *Runner {
	r := &Runner{
		engine:  engine,
		workers: 4,
		jobs:    make(chan *core.Simulation, 64),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start launches the workers. Cancelling ctx cancels in-flight runs, which
// then record their partial result.
func (r *Runner) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	g, ctx := errgroup.WithContext(ctx)
	r.group = g

	for i := 0; i < r.workers; i++ {
		worker := i
		g.Go(func() error {
			r.logger.Debug("Simulation worker started", "worker", worker)
			for sim := range r.jobs {
				r.execute(ctx, sim)
			}
			return nil
		})
	}

	r.logger.Info("Simulation runner started", "workers", r.workers, "queue_size", cap(r.jobs))
}

// Submit queues a created simulation and returns immediately.
func (r *Runner) Submit(sim *core.Simulation) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return ErrRunnerClosed
	}

	select {
	case r.jobs <- sim:
		r.logger.Debug("Simulation queued", "simulation_id", sim.ID, "queued", len(r.jobs))
		return nil
	default:
		return ErrQueueFull
	}
}

// Active returns the number of runs currently executing.
func (r *Runner) Active() int {
	return int(r.active.Load())
}

// Shutdown stops accepting runs and waits for queued and in-flight runs to
// finish. When ctx expires first, the remaining runs are cancelled and
// Shutdown still waits for them to record their result.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.jobs)
	r.mu.Unlock()

	if r.group == nil {
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- r.group.Wait() }()

	select {
	case err := <-done:
		r.cancel()
		return err
	case <-ctx.Done():
		r.logger.Warn("Shutdown deadline reached, cancelling running simulations", "active", r.Active())
		r.cancel()
		<-done
		return ctx.Err()
	}
}

func (r *Runner) execute(ctx context.Context, sim *core.Simulation) {
	r.active.Add(1)
	defer r.active.Add(-1)

	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("panic: %v", rec)
			r.logger.Error("Simulation panicked",
				"simulation_id", sim.ID,
				"panic", rec,
				"stack", string(debug.Stack()),
			)
			if markErr := r.engine.store.MarkFailed(context.WithoutCancel(ctx), sim.ID, err.Error()); markErr != nil {
				r.logger.Error("Failed to mark simulation failed", "simulation_id", sim.ID, "error", markErr)
			}
			r.report(sim.ID, err)
		}
	}()

	state, err := r.engine.Run(ctx, sim, nil)
	if err != nil {
		r.report(sim.ID, err)
		return
	}
	if state.Error != nil {
		r.report(sim.ID, fmt.Errorf("run ended with error: %s", *state.Error))
	}
}

func (r *Runner) report(id string, err error) {
	r.logger.Error("Simulation run error", "simulation_id", id, "error", err)
	if r.onError != nil {
		r.onError(id, err)
	}
}
