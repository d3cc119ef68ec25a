package export

import (
	"encoding/json"
	"io"

	"github.com/alienxp03/handshake/internal/core"
)

// JSONExporter exports simulations to JSON format.
type JSONExporter struct{}

// Export writes the full simulation record as indented JSON.
func (e *JSONExporter) Export(sim *core.Simulation, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(sim)
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return "json"
}

// ContentType returns the MIME type for JSON.
func (e *JSONExporter) ContentType() string {
	return "application/json"
}
