package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/iksnae/hdt-console/internal"
)

// GLTFFixture returns a minimal glTF document with one mesh whose bounds
// span height units on y, plus one animation clip per duration
func GLTFFixture(meshName string, height float64, clipDurations ...float64) []byte {
	accessors := []map[string]any{
		{
			"componentType": 5126,
			"count":         3,
			"type":          "VEC3",
			"min":           []float64{-0.5, 0, -0.25},
			"max":           []float64{0.5, height, 0.25},
		},
	}
	doc := map[string]any{
		"asset":  map[string]any{"version": "2.0"},
		"scene":  0,
		"scenes": []map[string]any{{"nodes": []int{0}}},
		"nodes":  []map[string]any{{"name": meshName, "mesh": 0}},
		"meshes": []map[string]any{{
			"name":       meshName,
			"primitives": []map[string]any{{"attributes": map[string]int{"POSITION": 0}}},
		}},
	}

	var animations []map[string]any
	for i, d := range clipDurations {
		input := len(accessors)
		accessors = append(accessors,
			map[string]any{"componentType": 5126, "count": 2, "type": "SCALAR", "min": []float64{0}, "max": []float64{d}},
			map[string]any{"componentType": 5126, "count": 2, "type": "VEC4"},
		)
		animations = append(animations, map[string]any{
			"name":     "clip" + string(rune('A'+i)),
			"channels": []map[string]any{{"sampler": 0, "target": map[string]any{"node": 0, "path": "rotation"}}},
			"samplers": []map[string]any{{"input": input, "output": input + 1}},
		})
	}
	doc["accessors"] = accessors
	if len(animations) > 0 {
		doc["animations"] = animations
	}

	data, err := json.Marshal(doc)
	if err != nil {
		panic(err)
	}
	return data
}

// WriteAsset writes data to rel under dir, creating parents
func WriteAsset(t *testing.T, dir, rel string, data []byte) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create asset directory: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("Failed to write asset %s: %v", rel, err)
	}
}

// CreateAssetTree creates an asset directory with avatars for roles and the
// named environment pieces
func CreateAssetTree(t *testing.T, roles []internal.Role, environment ...string) string {
	t.Helper()
	dir := CreateTempDir(t)
	for _, role := range roles {
		WriteAsset(t, dir, "models/avatars/"+string(role)+".glb", GLTFFixture(string(role), 3.6, 2.5))
	}
	for _, name := range environment {
		WriteAsset(t, dir, "models/environment/"+name+".glb", GLTFFixture(name, 1))
	}
	return dir
}

// SampleMetrics returns a valid metrics sample with the given stress
func SampleMetrics(stress float64) internal.MetricsSample {
	return internal.MetricsSample{
		HeartRate:     72,
		StressLevel:   stress,
		CognitiveLoad: 55,
		FatigueScore:  20,
		PostureScore:  80,
	}
}

// SampleHistory returns a short chat transcript
func SampleHistory() *internal.ChatHistory {
	return &internal.ChatHistory{
		SessionID:  7,
		ExportedAt: "2025-01-15T10:30:00",
		Messages: []internal.ChatMessage{
			{InteractionID: 1, Timestamp: "2025-01-15T10:00:00", Role: "user", MessageText: "Write a python function"},
			{InteractionID: 2, Timestamp: "2025-01-15T10:00:05", Role: "assistant", MessageText: "Sure:\n```python\ndef f():\n    return 1\n```"},
		},
	}
}
