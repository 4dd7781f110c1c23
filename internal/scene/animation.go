package scene

import (
	"math"
	"time"
)

// Mixer plays one looping clip at a time
type Mixer struct {
	clip    *Clip
	elapsed time.Duration
}

// Play starts clip from the beginning, looping
func (m *Mixer) Play(clip Clip) {
	m.clip = &clip
	m.elapsed = 0
}

// Stop clears the current clip
func (m *Mixer) Stop() {
	m.clip = nil
	m.elapsed = 0
}

// Update advances the clip by dt
func (m *Mixer) Update(dt time.Duration) {
	if m.clip == nil {
		return
	}
	m.elapsed += dt
}

// Playing returns the current clip name, or "" when idle
func (m *Mixer) Playing() string {
	if m.clip == nil {
		return ""
	}
	return m.clip.Name
}

// Time returns the position within the looping clip
func (m *Mixer) Time() time.Duration {
	if m.clip == nil || m.clip.Duration <= 0 {
		return 0
	}
	return m.elapsed % m.clip.Duration
}

// idleMotion is the bob and sway of the procedural avatar at time t
func idleMotion(t time.Duration) (bob, sway float64) {
	s := t.Seconds()
	return math.Sin(s*2) * 0.05, math.Sin(s) * 0.1
}
