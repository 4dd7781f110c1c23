package controller

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/iksnae/hdt-console/internal"
)

// metricRange is the uniform range one field is drawn from
type metricRange struct {
	Key      string
	Name     string
	Min, Max float64
}

var metricRanges = []metricRange{
	{"heart_rate", "Heart Rate", 60, 90},
	{"stress_level", "Stress", 20, 60},
	{"cognitive_load", "Cognitive Load", 30, 80},
	{"fatigue_score", "Fatigue", 10, 40},
	{"posture_score", "Posture", 70, 90},
}

// Generator produces synthetic metrics samples
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator creates a generator; equal seeds give equal sequences
func NewGenerator(seed uint64) *Generator {
	return &Generator{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (g *Generator) draw(r metricRange) float64 {
	return r.Min + g.rng.Float64()*(r.Max-r.Min)
}

// Next draws every field independently from its range
func (g *Generator) Next() internal.MetricsSample {
	g.mu.Lock()
	defer g.mu.Unlock()
	return internal.MetricsSample{
		HeartRate:     g.draw(metricRanges[0]),
		StressLevel:   g.draw(metricRanges[1]),
		CognitiveLoad: g.draw(metricRanges[2]),
		FatigueScore:  g.draw(metricRanges[3]),
		PostureScore:  g.draw(metricRanges[4]),
	}
}

// Bars converts a sample into rendered bars. Each bar is classed with the
// stress thresholds.
func Bars(s internal.MetricsSample) []MetricBar {
	values := []float64{s.HeartRate, s.StressLevel, s.CognitiveLoad, s.FatigueScore, s.PostureScore}
	bars := make([]MetricBar, len(values))
	for i, v := range values {
		bars[i] = MetricBar{
			Key:     metricRanges[i].Key,
			Name:    metricRanges[i].Name,
			Value:   v,
			Percent: math.Max(0, math.Min(100, v)),
			Label:   fmt.Sprintf("%d", int(math.Round(v))),
			Class:   internal.ClassifyStress(v).Class(),
		}
	}
	return bars
}

// FormatDuration renders d as HH:MM:SS
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, total/60%60, total%60)
}
