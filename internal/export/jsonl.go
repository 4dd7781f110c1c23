package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/iksnae/hdt-console/internal"
)

// JSONLExporter writes one chat turn per line
type JSONLExporter struct{}

type jsonlLine struct {
	SessionID int    `json:"session_id"`
	Role      string `json:"role"`
	Text      string `json:"message_text"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Export writes every message as a single JSON object
func (e *JSONLExporter) Export(history *internal.ChatHistory, w io.Writer) error {
	enc := json.NewEncoder(w)
	for i, msg := range history.Messages {
		line := jsonlLine{
			SessionID: history.SessionID,
			Role:      msg.Role,
			Text:      msg.MessageText,
			Timestamp: msg.Timestamp,
		}
		if err := enc.Encode(line); err != nil {
			return fmt.Errorf("failed to encode message %d: %w", i, err)
		}
	}
	return nil
}

// Extension returns the file extension for this format
func (e *JSONLExporter) Extension() string {
	return "jsonl"
}
