package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/alienxp03/handshake/internal/core"
)

// MarkdownExporter exports simulations to Markdown format.
type MarkdownExporter struct{}

// Export writes the simulation as Markdown.
func (e *MarkdownExporter) Export(sim *core.Simulation, w io.Writer) error {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# %s and %s\n\n", sim.AgentA.Persona.Name(), sim.AgentB.Persona.Name())

	sb.WriteString("## Simulation Information\n\n")
	fmt.Fprintf(&sb, "- **ID:** `%s`\n", sim.ID)
	fmt.Fprintf(&sb, "- **Status:** %s\n", sim.Status)
	fmt.Fprintf(&sb, "- **Max turns:** %d\n", sim.MaxTurns)
	if sim.TerminationReason != "" {
		fmt.Fprintf(&sb, "- **Ended because:** %s\n", sim.TerminationReason)
	}
	if sim.Error != "" {
		fmt.Fprintf(&sb, "- **Error:** %s\n", sim.Error)
	}
	fmt.Fprintf(&sb, "- **Created:** %s\n", sim.CreatedAt.Format("January 2, 2006 at 3:04 PM"))
	if sim.CompletedAt != nil {
		fmt.Fprintf(&sb, "- **Completed:** %s\n", sim.CompletedAt.Format("January 2, 2006 at 3:04 PM"))
		fmt.Fprintf(&sb, "- **Duration:** %s\n", formatDuration(sim.CreatedAt, *sim.CompletedAt))
	}
	sb.WriteString("\n")

	sb.WriteString("## Participants\n\n")
	writeParticipant(&sb, "Agent A", sim.AgentA)
	writeParticipant(&sb, "Agent B", sim.AgentB)

	sb.WriteString("## Conversation\n\n")
	if len(sim.Transcript) == 0 {
		sb.WriteString("*No replies recorded.*\n\n")
	}
	for i, entry := range sim.Transcript {
		fmt.Fprintf(&sb, "#### %d. %s\n\n", i+1, speakerName(sim, entry.Speaker))
		if !entry.Timestamp.IsZero() {
			fmt.Fprintf(&sb, "*%s*\n\n", entry.Timestamp.Format("3:04:05 PM"))
		}
		sb.WriteString(entry.Text)
		sb.WriteString("\n\n")
	}

	if len(sim.Thoughts) > 0 {
		fmt.Fprintf(&sb, "## %s's Private Thoughts\n\n", sim.AgentA.Persona.Name())
		for _, th := range sim.Thoughts {
			fmt.Fprintf(&sb, "- Turn %d: %s\n", th.TurnNumber, th.Text)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Analysis\n\n")
	fmt.Fprintf(&sb, "**Compatibility score:** %s\n\n", scoreText(sim))
	for _, t := range sim.Takeaways {
		fmt.Fprintf(&sb, "- %s\n", t)
	}
	if len(sim.Takeaways) > 0 {
		sb.WriteString("\n")
	}

	sb.WriteString("---\n\n")
	sb.WriteString("*Exported from handshake*\n")

	_, err := io.WriteString(w, sb.String())
	return err
}

func writeParticipant(sb *strings.Builder, title string, agent core.AgentConfig) {
	p := agent.Persona
	fmt.Fprintf(sb, "### %s\n", title)
	fmt.Fprintf(sb, "- **Name:** %s\n", p.Name())
	if p.Tagline != "" {
		fmt.Fprintf(sb, "- **Tagline:** %s\n", p.Tagline)
	}
	if p.Location != "" {
		fmt.Fprintf(sb, "- **Location:** %s\n", p.Location)
	}
	if len(p.NetworkingGoals) > 0 {
		fmt.Fprintf(sb, "- **Goals:** %s\n", strings.Join(p.NetworkingGoals, "; "))
	}
	sb.WriteString("\n")
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return "md"
}

// ContentType returns the MIME type for Markdown.
func (e *MarkdownExporter) ContentType() string {
	return "text/markdown; charset=utf-8"
}
