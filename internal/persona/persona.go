// Package persona supplies participant personas to the simulation engine.
package persona

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/alienxp03/handshake/internal/core"
	"github.com/alienxp03/handshake/internal/storage"
)

// ErrNotFound is returned when no provider knows a participant id.
var ErrNotFound = errors.New("persona not found")

// Provider returns the persona for a participant id. Optional fields may be empty.
type Provider interface {
	GetPersona(ctx context.Context, id string) (*core.Persona, error)
}

// Lister is implemented by providers that can enumerate their personas.
type Lister interface {
	ListPersonas(ctx context.Context) ([]*core.Persona, error)
}

// Validate checks the fields a persona must carry to be stored.
func Validate(p *core.Persona) error {
	if p == nil {
		return fmt.Errorf("persona is nil")
	}
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("persona id is required")
	}
	if strings.ContainsAny(p.ID, "/ \t\n") {
		return fmt.Errorf("persona id %q must not contain slashes or whitespace", p.ID)
	}
	return nil
}

// PersonaStore is the storage subset used by StoreProvider.
type PersonaStore interface {
	GetPersona(ctx context.Context, id string) (*core.Persona, error)
	ListPersonas(ctx context.Context) ([]*core.Persona, error)
}

// StoreProvider serves personas saved in the database.
type StoreProvider struct {
	store PersonaStore
}

// NewStoreProvider creates a provider backed by store.
func NewStoreProvider(store PersonaStore) *StoreProvider {
	return &StoreProvider{store: store}
}

// GetPersona returns the stored persona for id.
func (p *StoreProvider) GetPersona(ctx context.Context, id string) (*core.Persona, error) {
	persona, err := p.store.GetPersona(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load persona %s: %w", id, err)
	}
	return persona, nil
}

// ListPersonas returns every stored persona.
func (p *StoreProvider) ListPersonas(ctx context.Context) ([]*core.Persona, error) {
	return p.store.ListPersonas(ctx)
}

// Chain asks each provider in order and returns the first persona found.
type Chain []Provider

// GetPersona implements Provider.
func (c Chain) GetPersona(ctx context.Context, id string) (*core.Persona, error) {
	for _, p := range c {
		persona, err := p.GetPersona(ctx, id)
		if err == nil {
			return persona, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// ListPersonas merges the personas of every listing provider. Earlier
// providers win on duplicate ids.
func (c Chain) ListPersonas(ctx context.Context) ([]*core.Persona, error) {
	seen := make(map[string]bool)
	var out []*core.Persona
	for _, p := range c {
		l, ok := p.(Lister)
		if !ok {
			continue
		}
		list, err := l.ListPersonas(ctx)
		if err != nil {
			return nil, err
		}
		for _, persona := range list {
			if seen[persona.ID] {
				continue
			}
			seen[persona.ID] = true
			out = append(out, persona)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
