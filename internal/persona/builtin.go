package persona

import (
	"context"
	"fmt"

	"github.com/alienxp03/handshake/internal/core"
)

// DefaultPersonas returns the built-in demo personas.
func DefaultPersonas() []core.Persona {
	return []core.Persona{
		{
			ID:              "maya",
			DisplayName:     "Maya Chen",
			Tagline:         "Founding engineer building developer tools",
			Location:        "Berlin",
			SkillsPossessed: []string{"Go", "distributed systems", "CI/CD"},
			SkillsDesired:   []string{"product marketing", "fundraising"},
			NetworkingGoals: []string{"meet a technical co-founder for a devtools startup", "find early design partners"},
			VoiceSample:     "ok so here's the thing: most build systems are fine until they aren't. I like boring tools that stay boring.",
			ExperienceLog: []core.Experience{
				{Title: "Senior Engineer", Organization: "Relay", Period: "2019-2023", Summary: "Owned the build farm"},
			},
			ProjectList: []core.Project{
				{Name: "cachette", Description: "content-addressed build cache"},
			},
			Interests: []string{"bouldering", "compilers"},
		},
		{
			ID:              "jonas",
			DisplayName:     "Jonas Weber",
			Tagline:         "Product lead turned angel investor",
			Location:        "Munich",
			SkillsPossessed: []string{"go-to-market", "pricing", "fundraising"},
			SkillsDesired:   []string{"infrastructure engineering"},
			NetworkingGoals: []string{"find technical founders in developer tooling"},
			VoiceSample:     "Love that. Quick question though, who pays for it and why now?",
			ExperienceLog: []core.Experience{
				{Title: "VP Product", Organization: "Stackline", Period: "2016-2022"},
			},
			Interests: []string{"cycling", "open source business models"},
		},
		{
			ID:              "priya",
			DisplayName:     "Priya Nair",
			Tagline:         "ML engineer focused on evaluation",
			Location:        "Remote",
			SkillsPossessed: []string{"Python", "model evaluation", "data pipelines"},
			SkillsDesired:   []string{"Go", "systems design"},
			NetworkingGoals: []string{"find a mentor in backend engineering"},
			VoiceSample:     "I tend to ask a lot of questions, sorry in advance! What does your eval loop look like?",
			Interests:       []string{"board games"},
		},
	}
}

// Builtin serves the built-in demo personas.
type Builtin struct{}

// GetPersona implements Provider.
func (Builtin) GetPersona(_ context.Context, id string) (*core.Persona, error) {
	for _, p := range DefaultPersonas() {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// ListPersonas implements Lister.
func (Builtin) ListPersonas(_ context.Context) ([]*core.Persona, error) {
	defaults := DefaultPersonas()
	out := make([]*core.Persona, len(defaults))
	for i := range defaults {
		out[i] = &defaults[i]
	}
	return out, nil
}
