package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/iksnae/hdt-console/internal"
	"github.com/iksnae/hdt-console/testutil"
)

func TestMarkdownExporter_Export(t *testing.T) {
	tests := []struct {
		name    string
		history *internal.ChatHistory
		want    []string
		notWant []string
	}{
		{
			name:    "sample transcript",
			history: testutil.SampleHistory(),
			want: []string{
				"# Session 7",
				"**Exported:** 2025-01-15T10:30:00",
				"**Messages:** 2",
				"**You:** (2025-01-15T10:00:00)",
				"**Twin:** (2025-01-15T10:00:05)",
				"```python\ndef f():\n    return 1\n```",
			},
		},
		{
			name: "emphasis escaped outside code",
			history: &internal.ChatHistory{SessionID: 2, Messages: []internal.ChatMessage{
				{Role: "assistant", MessageText: "this is **bold**\n```\nx = a**b\n```"},
			}},
			want:    []string{`\*\*bold\*\*`, "x = a**b"},
			notWant: []string{"**Exported:**"},
		},
		{
			name: "system and unknown roles",
			history: &internal.ChatHistory{SessionID: 4, Messages: []internal.ChatMessage{
				{Role: "system", MessageText: "note"},
				{MessageText: "orphan"},
			}},
			want: []string{"**system:**", "**unknown:**"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := (&MarkdownExporter{}).Export(tt.history, &buf); err != nil {
				t.Fatalf("Export() error = %v", err)
			}
			out := buf.String()
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("output missing %q:\n%s", w, out)
				}
			}
			for _, w := range tt.notWant {
				if strings.Contains(out, w) {
					t.Errorf("output contains %q:\n%s", w, out)
				}
			}
		})
	}
}

func TestMarkdownExporter_SeparatorsBetweenMessages(t *testing.T) {
	var buf bytes.Buffer
	if err := (&MarkdownExporter{}).Export(testutil.SampleHistory(), &buf); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	// one after the header, one between the two messages
	if got := strings.Count(buf.String(), "---\n"); got != 2 {
		t.Errorf("separator count = %d, want 2", got)
	}
}
