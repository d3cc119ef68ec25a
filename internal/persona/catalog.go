package persona

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/alienxp03/handshake/internal/core"
)

// Catalog serves personas loaded from YAML files.
type Catalog struct {
	personas map[string]core.Persona
}

// LoadDir reads every .yaml/.yml file in dir. A file holds either one persona
// or a list of personas. A missing directory yields an empty catalog.
func LoadDir(dir string) (*Catalog, error) {
	c := &Catalog{personas: make(map[string]core.Persona)}

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read persona directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		personas, err := LoadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		for _, p := range personas {
			if _, dup := c.personas[p.ID]; dup {
				return nil, fmt.Errorf("duplicate persona id %q in %s", p.ID, entry.Name())
			}
			c.personas[p.ID] = p
		}
	}

	return c, nil
}

// LoadFile parses one persona file.
func LoadFile(path string) ([]core.Persona, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read persona file: %w", err)
	}
	personas, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return personas, nil
}

// Parse decodes YAML holding either one persona or a list of personas.
func Parse(data []byte) ([]core.Persona, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse persona yaml: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}

	var personas []core.Persona
	root := doc.Content[0]
	if root.Kind == yaml.SequenceNode {
		if err := root.Decode(&personas); err != nil {
			return nil, fmt.Errorf("failed to decode personas: %w", err)
		}
	} else {
		var p core.Persona
		if err := root.Decode(&p); err != nil {
			return nil, fmt.Errorf("failed to decode persona: %w", err)
		}
		personas = append(personas, p)
	}

	for i := range personas {
		if err := Validate(&personas[i]); err != nil {
			return nil, err
		}
	}
	return personas, nil
}

// Len returns the number of personas in the catalog.
func (c *Catalog) Len() int {
	return len(c.personas)
}

// GetPersona implements Provider.
func (c *Catalog) GetPersona(_ context.Context, id string) (*core.Persona, error) {
	p, ok := c.personas[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return &p, nil
}

// ListPersonas implements Lister.
func (c *Catalog) ListPersonas(_ context.Context) ([]*core.Persona, error) {
	ids := make([]string, 0, len(c.personas))
	for id := range c.personas {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]*core.Persona, len(ids))
	for i, id := range ids {
		p := c.personas[id]
		out[i] = &p
	}
	return out, nil
}
