// Package export renders finished simulations to shareable formats.
package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/alienxp03/handshake/internal/core"
)

// Format represents an export format.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatPDF      Format = "pdf"
	FormatJSON     Format = "json"
)

// Exporter defines the interface for exporting simulations.
type Exporter interface {
	Export(sim *core.Simulation, w io.Writer) error
	FileExtension() string
	ContentType() string
}

// GetExporter returns an exporter for the given format. "md" is accepted as
// an alias for markdown.
func GetExporter(format Format) (Exporter, error) {
	switch Format(strings.ToLower(string(format))) {
	case FormatMarkdown, "md":
		return &MarkdownExporter{}, nil
	case FormatPDF:
		return &PDFExporter{}, nil
	case FormatJSON:
		return &JSONExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported export format: %s", format)
	}
}

// GenerateFilename creates a filename for the export.
func GenerateFilename(sim *core.Simulation, ext string) string {
	pair := fmt.Sprintf("%s-%s", sim.ParticipantAID, sim.ParticipantBID)
	if len(pair) > 50 {
		pair = pair[:50]
	}

	replacer := strings.NewReplacer(
		" ", "_",
		"/", "-",
		"\\", "-",
		":", "-",
		"*", "",
		"?", "",
		"\"", "",
		"<", "",
		">", "",
		"|", "",
	)
	pair = replacer.Replace(pair)

	timestamp := sim.CreatedAt.Format("20060102")
	return fmt.Sprintf("simulation_%s_%s.%s", timestamp, pair, ext)
}

// speakerName returns the persona name behind a transcript speaker.
func speakerName(sim *core.Simulation, sp core.Speaker) string {
	if sp == core.SpeakerB {
		return sim.AgentB.Persona.Name()
	}
	return sim.AgentA.Persona.Name()
}

func scoreText(sim *core.Simulation) string {
	if sim.Score == nil {
		return "not scored"
	}
	return fmt.Sprintf("%d / 100", *sim.Score)
}

func formatDuration(start, end time.Time) string {
	d := end.Sub(start)
	if d < time.Minute {
		return fmt.Sprintf("%d seconds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%d minutes", int(d.Minutes()))
	}
	return fmt.Sprintf("%.1f hours", d.Hours())
}
