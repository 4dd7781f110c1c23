package export

import (
	"io"

	"github.com/iksnae/hdt-console/internal"
	"gopkg.in/yaml.v3"
)

// YAMLExporter exports the whole history as one YAML document
type YAMLExporter struct{}

// Export encodes history with two-space indentation
func (e *YAMLExporter) Export(history *internal.ChatHistory, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(history); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

// Extension returns the file extension for this format
func (e *YAMLExporter) Extension() string {
	return "yaml"
}
