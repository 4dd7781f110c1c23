package export

import (
	"fmt"
	"io"

	"github.com/iksnae/hdt-console/internal"
)

// Exporter writes a chat history in one output format
type Exporter interface {
	Export(history *internal.ChatHistory, w io.Writer) error
	Extension() string
}

// Formats lists the accepted --format values
var Formats = []string{"jsonl", "md", "yaml", "json"}

// NewExporter creates a new exporter based on format
func NewExporter(format string) (Exporter, error) {
	switch format {
	case "jsonl":
		return &JSONLExporter{}, nil
	case "md", "markdown":
		return &MarkdownExporter{}, nil
	case "yaml", "yml":
		return &YAMLExporter{}, nil
	case "json":
		return &JSONExporter{}, nil
	default:
		return nil, &internal.ValidationError{
			Field:   "format",
			Message: fmt.Sprintf("unsupported format %q (supported: jsonl, md, yaml, json)", format),
		}
	}
}
