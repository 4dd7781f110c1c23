package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/iksnae/hdt-console/internal"
)

// MarkdownExporter renders a transcript as Markdown
type MarkdownExporter struct{}

// Export writes a header followed by one section per message
func (e *MarkdownExporter) Export(history *internal.ChatHistory, w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# Session %d\n\n", history.SessionID)
	if history.ExportedAt != "" {
		fmt.Fprintf(&b, "**Exported:** %s  \n", history.ExportedAt)
	}
	fmt.Fprintf(&b, "**Messages:** %d\n\n", len(history.Messages))
	b.WriteString("---\n\n")

	for i, msg := range history.Messages {
		stamp := ""
		if msg.Timestamp != "" {
			stamp = fmt.Sprintf(" (%s)", msg.Timestamp)
		}
		fmt.Fprintf(&b, "**%s:**%s\n\n%s\n\n", speaker(msg.Role), stamp, escapeMarkdown(msg.MessageText))
		if i < len(history.Messages)-1 {
			b.WriteString("---\n\n")
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func speaker(role string) string {
	switch role {
	case "user":
		return "You"
	case "assistant":
		return "Twin"
	case "":
		return "unknown"
	}
	return role
}

// escapeMarkdown escapes emphasis markers outside fenced code
func escapeMarkdown(text string) string {
	lines := strings.Split(text, "\n")
	inCode := false
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inCode = !inCode
			continue
		}
		if inCode {
			continue
		}
		line = strings.ReplaceAll(line, "**", `\*\*`)
		lines[i] = strings.ReplaceAll(line, "__", `\_\_`)
	}
	return strings.Join(lines, "\n")
}

// Extension returns the file extension for this format
func (e *MarkdownExporter) Extension() string {
	return "md"
}
