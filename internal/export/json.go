package export

import (
	"encoding/json"
	"io"

	"github.com/iksnae/hdt-console/internal"
)

// JSONExporter writes the history as one indented document
type JSONExporter struct{}

type jsonDocument struct {
	SessionID    int                    `json:"session_id"`
	ExportedAt   string                 `json:"exported_at,omitempty"`
	MessageCount int                    `json:"message_count"`
	Messages     []internal.ChatMessage `json:"messages"`
}

func (e *JSONExporter) Export(history *internal.ChatHistory, w io.Writer) error {
	doc := jsonDocument{
		SessionID:    history.SessionID,
		ExportedAt:   history.ExportedAt,
		MessageCount: len(history.Messages),
		Messages:     history.Messages,
	}
	if doc.Messages == nil {
		doc.Messages = []internal.ChatMessage{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// Extension returns the file extension for this format
func (e *JSONExporter) Extension() string {
	return "json"
}
