package export

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/iksnae/hdt-console/internal"
	"github.com/iksnae/hdt-console/testutil"
)

func TestJSONExporter_Export(t *testing.T) {
	var buf bytes.Buffer
	if err := (&JSONExporter{}).Export(testutil.SampleHistory(), &buf); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if !strings.Contains(buf.String(), "\n  \"session_id\": 7") {
		t.Errorf("output not indented:\n%s", buf.String())
	}

	var got internal.ChatHistory
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if len(got.Messages) != 2 || got.Messages[1].Role != "assistant" {
		t.Errorf("decoded = %+v", got)
	}
	if !strings.Contains(buf.String(), "\"message_count\": 2") {
		t.Errorf("output missing message_count:\n%s", buf.String())
	}
}

func TestJSONExporter_EmptyHistory(t *testing.T) {
	var buf bytes.Buffer
	if err := (&JSONExporter{}).Export(&internal.ChatHistory{SessionID: 3}, &buf); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if !strings.Contains(buf.String(), "\"messages\": []") {
		t.Errorf("empty history should export an empty list:\n%s", buf.String())
	}
}
