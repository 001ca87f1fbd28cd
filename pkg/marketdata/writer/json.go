package writer

import (
	"encoding/json"
	"io"

	"github.com/rxtech-lab/market-downloader/internal/types"
)

// JSONWriter writes the full bar sequence as a single top-level array of
// objects carrying the same field names as the CSV columns. Day-splitting
// is not supported for JSON output; the orchestrator rejects that
// combination before a JSONWriter is ever constructed.
type JSONWriter struct {
	path string
}

// NewJSONWriter creates a writer producing a single JSON file at path.
func NewJSONWriter(path string) *JSONWriter {
	return &JSONWriter{path: path}
}

// Write serializes the bars and returns the written path.
func (w *JSONWriter) Write(bars []types.Bar) ([]string, error) {
	if bars == nil {
		// An empty fetch still yields a valid empty array, not null.
		bars = []types.Bar{}
	}

	err := atomicWrite(w.path, func(out io.Writer) error {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")

		return encoder.Encode(bars)
	})
	if err != nil {
		return nil, err
	}

	return []string{w.path}, nil
}
