// Package tui is the terminal dashboard: a bubbletea program presenting
// the controller's state and the renderer's frames.
package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/iksnae/hdt-console/internal/controller"
	"github.com/iksnae/hdt-console/internal/scene"
)

type (
	stateMsg    controller.State
	durationMsg string
	metricsMsg  []controller.MetricBar
	entryMsg    controller.Entry
	workingMsg  bool
	errorMsg    string
	frameMsg    scene.Frame
	surfaceMsg  scene.Size
	liveMsg     string
)

// Bridge forwards controller and renderer callbacks into the running
// program. It implements controller.View and scene.Surface. Calls made
// before Attach or after Release are dropped.
type Bridge struct {
	mu       sync.RWMutex
	send     func(tea.Msg)
	released bool
}

// NewBridge creates an unattached bridge
func NewBridge() *Bridge {
	return &Bridge{}
}

// Attach starts forwarding to send, usually (*tea.Program).Send
func (b *Bridge) Attach(send func(tea.Msg)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.send = send
}

// Detach stops forwarding
func (b *Bridge) Detach() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.send = nil
}

func (b *Bridge) post(msg tea.Msg) {
	b.mu.RLock()
	send := b.send
	b.mu.RUnlock()
	if send != nil {
		send(msg)
	}
}

// SetState forwards a controller state change
func (b *Bridge) SetState(s controller.State) { b.post(stateMsg(s)) }

// SetDuration updates the session clock text
func (b *Bridge) SetDuration(text string) { b.post(durationMsg(text)) }

// ShowMetrics replaces the metric bars
func (b *Bridge) ShowMetrics(bars []controller.MetricBar) { b.post(metricsMsg(bars)) }

// AppendEntry adds a chat or system line to the transcript
func (b *Bridge) AppendEntry(e controller.Entry) { b.post(entryMsg(e)) }

// SetWorking toggles the busy indicator shown while a chat reply is pending
func (b *Bridge) SetWorking(on bool) { b.post(workingMsg(on)) }

// ShowError displays a user-facing error message
func (b *Bridge) ShowError(message string) { b.post(errorMsg(message)) }

// Live reports the event channel status or a live update line
func (b *Bridge) Live(text string) { b.post(liveMsg(text)) }

// Resize reports the size the renderer now draws at
func (b *Bridge) Resize(size scene.Size) { b.post(surfaceMsg(size)) }

// Present hands a rendered frame to the program. Frames are dropped once
// the renderer has released the surface.
func (b *Bridge) Present(f scene.Frame) {
	b.mu.RLock()
	released := b.released
	b.mu.RUnlock()
	if !released {
		b.post(frameMsg(f))
	}
}

// Release marks the surface as no longer drawn to; later frames are dropped
func (b *Bridge) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.released = true
}
