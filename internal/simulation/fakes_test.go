package simulation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/alienxp03/handshake/internal/core"
	"github.com/alienxp03/handshake/internal/llm"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeStore records every write the engine makes.
type fakeStore struct {
	mu sync.Mutex

	created   map[string]*core.Simulation
	syncs     map[string][]int
	thoughts  map[string][]core.ThoughtEntry
	finalized map[string]core.FinalResult
	failed    map[string]string

	failFinalize bool
	failSync     bool
	failThoughts bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		created:   make(map[string]*core.Simulation),
		syncs:     make(map[string][]int),
		thoughts:  make(map[string][]core.ThoughtEntry),
		finalized: make(map[string]core.FinalResult),
		failed:    make(map[string]string),
	}
}

func (s *fakeStore) CreateSimulation(_ context.Context, sim *core.Simulation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created[sim.ID] = sim
	return nil
}

func (s *fakeStore) UpdateTranscript(_ context.Context, id string, transcript []core.TranscriptEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSync {
		return errors.New("disk full")
	}
	s.syncs[id] = append(s.syncs[id], len(transcript))
	return nil
}

func (s *fakeStore) UpdateThoughts(_ context.Context, id string, thoughts []core.ThoughtEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failThoughts {
		return errors.New("disk full")
	}
	s.thoughts[id] = append([]core.ThoughtEntry(nil), thoughts...)
	return nil
}

func (s *fakeStore) Finalize(_ context.Context, id string, result core.FinalResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFinalize {
		return errors.New("database is locked")
	}
	s.finalized[id] = result
	return nil
}

func (s *fakeStore) MarkFailed(_ context.Context, id string, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed[id] = message
	return nil
}

func (s *fakeStore) result(id string) (core.FinalResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.finalized[id]
	return r, ok
}

// fakeCompleter scripts replies, thoughts and analysis separately. Thought
// requests are recognised by their token budget.
type fakeCompleter struct {
	mu sync.Mutex

	replies     []string
	replyErr    error
	replyDelay  time.Duration
	thought     string
	thoughtErr  error
	analysis    string
	analysisErr error
	block       bool
	panicOn     bool

	requests      []*llm.Request
	replyCalls    int
	thoughtCalls  int
	analysisCalls int
}

func (f *fakeCompleter) Complete(ctx context.Context, req *llm.Request) (string, error) {
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if f.panicOn {
		panic("completer exploded")
	}
	if f.replyDelay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(f.replyDelay):
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)

	if req.MaxTokens == thoughtMaxTokens {
		f.thoughtCalls++
		if f.thoughtErr != nil {
			return "", f.thoughtErr
		}
		if f.thought != "" {
			return f.thought, nil
		}
		return `"Practical and direct, clear overlap on tooling."`, nil
	}

	i := f.replyCalls
	f.replyCalls++
	if f.replyErr != nil {
		return "", f.replyErr
	}
	if i < len(f.replies) {
		return f.replies[i], nil
	}
	return fmt.Sprintf("reply number %d", i+1), nil
}

func (f *fakeCompleter) CompleteJSON(ctx context.Context, _ *llm.Request, v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.analysisCalls++
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.analysisErr != nil {
		return f.analysisErr
	}
	raw := f.analysis
	if raw == "" {
		raw = `{"score": 81, "takeaways": ["Shared interest in developer tooling", "Agreed to a follow-up call"]}`
	}
	return llm.DecodeJSON(raw, v)
}

func (f *fakeCompleter) replyRequests() []*llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*llm.Request
	for _, r := range f.requests {
		if r.MaxTokens != thoughtMaxTokens {
			out = append(out, r)
		}
	}
	return out
}

// funcProvider is an llm.Provider driven by a function, used to exercise the
// real retrying client.
type funcProvider struct {
	mu    sync.Mutex
	calls int
	fn    func(call int, req *llm.Request) (*llm.Response, error)
}

func (p *funcProvider) Name() string    { return "fake" }
func (p *funcProvider) Available() bool { return true }

func (p *funcProvider) Execute(_ context.Context, req *llm.Request) (*llm.Response, error) {
	p.mu.Lock()
	p.calls++
	call := p.calls
	p.mu.Unlock()
	return p.fn(call, req)
}

type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}
