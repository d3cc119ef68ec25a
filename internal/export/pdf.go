package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/alienxp03/handshake/internal/core"
)

var (
	colorA = [3]int{200, 230, 255}
	colorB = [3]int{200, 255, 200}
)

// PDFExporter exports simulations to PDF format.
type PDFExporter struct{}

// Export writes the simulation as PDF.
func (e *PDFExporter) Export(sim *core.Simulation, w io.Writer) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	text := func(s string) string { return tr(sanitizeText(s)) }

	pdf.AddPage()

	pdf.SetFont("Arial", "B", 18)
	title := fmt.Sprintf("%s and %s", sim.AgentA.Persona.Name(), sim.AgentB.Persona.Name())
	pdf.MultiCell(0, 10, text(title), "", "C", false)
	pdf.Ln(5)

	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, "Simulation Information")
	pdf.Ln(8)

	id := sim.ID
	if len(id) > 8 {
		id = id[:8] + "..."
	}
	addMetadataRow(pdf, "ID:", id)
	addMetadataRow(pdf, "Status:", string(sim.Status))
	if sim.TerminationReason != "" {
		addMetadataRow(pdf, "Ended:", text(sim.TerminationReason))
	}
	addMetadataRow(pdf, "Created:", sim.CreatedAt.Format("January 2, 2006 at 3:04 PM"))
	if sim.CompletedAt != nil {
		addMetadataRow(pdf, "Duration:", formatDuration(sim.CreatedAt, *sim.CompletedAt))
	}
	addMetadataRow(pdf, "Score:", scoreText(sim))
	pdf.Ln(5)

	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, "Participants")
	pdf.Ln(8)
	addParticipantBox(pdf, text, "Agent A", sim.AgentA, colorA)
	pdf.Ln(3)
	addParticipantBox(pdf, text, "Agent B", sim.AgentB, colorB)
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, "Conversation")
	pdf.Ln(8)

	if len(sim.Transcript) == 0 {
		pdf.SetFont("Arial", "I", 10)
		pdf.Cell(0, 6, "No replies recorded.")
		pdf.Ln(6)
	}
	for i, entry := range sim.Transcript {
		if pdf.GetY() > 250 {
			pdf.AddPage()
		}

		c := colorA
		if entry.Speaker == core.SpeakerB {
			c = colorB
		}
		pdf.SetFillColor(c[0], c[1], c[2])
		pdf.SetFont("Arial", "B", 10)
		header := fmt.Sprintf("%d. %s", i+1, speakerName(sim, entry.Speaker))
		pdf.CellFormat(0, 7, text(header), "", 1, "", true, 0, "")

		pdf.SetFont("Arial", "", 9)
		pdf.SetFillColor(255, 255, 255)
		pdf.MultiCell(0, 5, text(entry.Text), "", "", false)
		pdf.Ln(4)
	}

	if len(sim.Thoughts) > 0 {
		if pdf.GetY() > 240 {
			pdf.AddPage()
		}
		pdf.SetFont("Arial", "B", 12)
		pdf.Cell(0, 8, text(fmt.Sprintf("%s's Private Thoughts", sim.AgentA.Persona.Name())))
		pdf.Ln(8)
		pdf.SetFont("Arial", "I", 9)
		for _, th := range sim.Thoughts {
			pdf.MultiCell(0, 5, text(fmt.Sprintf("Turn %d: %s", th.TurnNumber, th.Text)), "", "", false)
		}
		pdf.Ln(4)
	}

	if pdf.GetY() > 230 {
		pdf.AddPage()
	}
	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, "Analysis")
	pdf.Ln(8)

	pdf.SetFillColor(255, 245, 200)
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(0, 7, "Compatibility score: "+scoreText(sim), "", 1, "", true, 0, "")
	pdf.SetFillColor(255, 255, 255)
	pdf.SetFont("Arial", "", 10)
	for _, t := range sim.Takeaways {
		pdf.MultiCell(0, 5, text("* "+t), "", "", false)
	}

	pdf.SetY(-15)
	pdf.SetFont("Arial", "I", 8)
	pdf.CellFormat(0, 10, "Exported from handshake", "", 0, "C", false, 0, "")

	return pdf.Output(w)
}

// FileExtension returns the file extension for PDF.
func (e *PDFExporter) FileExtension() string {
	return "pdf"
}

// ContentType returns the MIME type for PDF.
func (e *PDFExporter) ContentType() string {
	return "application/pdf"
}

func addMetadataRow(pdf *gofpdf.Fpdf, label, value string) {
	pdf.SetFont("Arial", "B", 10)
	pdf.Cell(30, 5, label)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 5, value)
	pdf.Ln(5)
}

func addParticipantBox(pdf *gofpdf.Fpdf, text func(string) string, title string, agent core.AgentConfig, c [3]int) {
	p := agent.Persona

	pdf.SetFillColor(c[0], c[1], c[2])
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(0, 6, title, "", 1, "", true, 0, "")

	pdf.SetFont("Arial", "", 9)
	pdf.SetFillColor(255, 255, 255)
	rows := [][2]string{
		{"Name:", p.Name()},
		{"Tagline:", p.Tagline},
		{"Location:", p.Location},
		{"Goals:", strings.Join(p.NetworkingGoals, "; ")},
	}
	for _, row := range rows {
		if row[1] == "" {
			continue
		}
		pdf.Cell(25, 5, row[0])
		pdf.MultiCell(0, 5, text(row[1]), "", "", false)
	}
}

// sanitizeText maps typographic characters the core fonts cannot render.
func sanitizeText(s string) string {
	replacer := strings.NewReplacer(
		"\u2018", "'",
		"\u2019", "'",
		"\u201C", "\"",
		"\u201D", "\"",
		"\u2013", "-",
		"\u2014", "-",
		"\u2026", "...",
		"\u2022", "*",
		"\u00A0", " ",
	)
	return replacer.Replace(s)
}
