package tui

import (
	"context"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/iksnae/hdt-console/internal"
	"github.com/iksnae/hdt-console/internal/controller"
	"github.com/iksnae/hdt-console/internal/scene"
)

type fakeActions struct {
	mu    sync.Mutex
	calls []string
}

func (a *fakeActions) record(s string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, s)
	return nil
}

func (a *fakeActions) SelectRole(ctx context.Context, role internal.Role) error {
	return a.record("role:" + string(role))
}
func (a *fakeActions) StartSession(ctx context.Context) error { return a.record("start") }
func (a *fakeActions) EndSession(ctx context.Context) error   { return a.record("end") }
func (a *fakeActions) SendChat(ctx context.Context, text string) error {
	return a.record("chat:" + text)
}

func newTestModel(state controller.State) (Model, *fakeActions) {
	actions := &fakeActions{}
	state.Controls = controlsFor(state.Phase)
	m := NewModel(context.Background(), Config{Actions: actions, User: "ada", State: state})
	return m, actions
}

// controlsFor mirrors the controller's control table for test states
func controlsFor(p controller.Phase) controller.Controls {
	switch p {
	case controller.PhaseProfileSelected, controller.PhaseEnded:
		return controller.Controls{RoleSelection: true, Start: true}
	case controller.PhaseSessionActive:
		return controller.Controls{End: true, Chat: true}
	}
	return controller.Controls{RoleSelection: true}
}

func press(m Model, k string) (Model, tea.Cmd) {
	var msg tea.KeyMsg
	switch k {
	case "tab":
		msg = tea.KeyMsg{Type: tea.KeyTab}
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	case "ctrl+c":
		msg = tea.KeyMsg{Type: tea.KeyCtrlC}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
	}
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func runCmd(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	next, _ := m.Update(cmd())
	return next.(Model)
}

func TestRoleKeys(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"1", "role:software_engineer"},
		{"2", "role:office_worker"},
		{"3", "role:factory_worker"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			m, actions := newTestModel(controller.State{})
			m, cmd := press(m, tt.key)
			if !m.busy {
				t.Error("model should be busy while the action runs")
			}
			m = runCmd(t, m, cmd)
			if m.busy {
				t.Error("model still busy after the action finished")
			}
			if len(actions.calls) != 1 || actions.calls[0] != tt.want {
				t.Errorf("calls = %v, want %s", actions.calls, tt.want)
			}
		})
	}
}

func TestChatReplyKeepsLifecycleBusy(t *testing.T) {
	m, actions := newTestModel(controller.State{Phase: controller.PhaseProfileSelected})

	m, _ = press(m, "1")
	if !m.busy {
		t.Fatal("role key should mark the model busy")
	}
	// a chat action finishing while the role change runs must not unlock
	// the lifecycle keys
	next, _ := m.Update(actionDoneMsg{})
	m = next.(Model)
	if !m.busy {
		t.Fatal("chat completion cleared the busy flag")
	}
	if _, cmd := press(m, "s"); cmd != nil {
		t.Error("start accepted while the role change is still running")
	}

	next, _ = m.Update(actionDoneMsg{lifecycle: true})
	m = next.(Model)
	if m.busy {
		t.Error("lifecycle completion should clear the busy flag")
	}
	if _, cmd := press(m, "s"); cmd == nil {
		t.Error("start should be available again")
	}
	if len(actions.calls) != 0 {
		t.Errorf("calls = %v, want none run", actions.calls)
	}
}

func TestKeysFollowControls(t *testing.T) {
	m, actions := newTestModel(controller.State{})

	if _, cmd := press(m, "s"); cmd != nil {
		t.Error("start should be unavailable without a profile")
	}
	if _, cmd := press(m, "e"); cmd != nil {
		t.Error("end should be unavailable without a session")
	}

	m, _ = newTestModel(controller.State{Phase: controller.PhaseProfileSelected})
	m, cmd := press(m, "s")
	runCmd(t, m, cmd)

	m, _ = newTestModel(controller.State{Phase: controller.PhaseSessionActive})
	if _, cmd := press(m, "1"); cmd != nil {
		t.Error("role keys should be disabled during a session")
	}
	if len(actions.calls) != 0 {
		t.Errorf("calls = %v", actions.calls)
	}
}

func TestChatInput(t *testing.T) {
	m, actions := newTestModel(controller.State{Phase: controller.PhaseSessionActive})

	m, _ = press(m, "tab")
	if !m.focusChat {
		t.Fatal("tab should focus the chat input")
	}
	m, _ = press(m, "hi")
	// keys typed into the input do not trigger actions
	m, _ = press(m, "1")
	m, cmd := press(m, "enter")
	runCmd(t, m, cmd)

	if len(actions.calls) != 1 || actions.calls[0] != "chat:hi1" {
		t.Errorf("calls = %v, want chat:hi1", actions.calls)
	}
	if m.input.Value() != "" {
		t.Error("input should be cleared after sending")
	}

	if _, cmd := press(m, "enter"); cmd != nil {
		t.Error("empty input should not send")
	}

	m, _ = press(m, "esc")
	if m.focusChat {
		t.Error("esc should leave the chat input")
	}
}

func TestStateDropsChatFocus(t *testing.T) {
	m, _ := newTestModel(controller.State{Phase: controller.PhaseSessionActive})
	m, _ = press(m, "tab")

	next, _ := m.Update(stateMsg(controller.State{Phase: controller.PhaseEnded, Controls: controlsFor(controller.PhaseEnded)}))
	m = next.(Model)
	if m.focusChat {
		t.Error("chat focus should drop when chat is no longer offered")
	}
}

func TestErrorBanner(t *testing.T) {
	m, _ := newTestModel(controller.State{})

	next, cmd := m.Update(errorMsg("Invalid credentials"))
	m = next.(Model)
	if cmd == nil {
		t.Fatal("error should schedule its own removal")
	}
	if !strings.Contains(m.View(), "Invalid credentials") {
		t.Error("banner not shown")
	}

	// a stale timer does not hide a newer error
	next, _ = m.Update(errorMsg("Second"))
	m = next.(Model)
	next, _ = m.Update(clearErrorMsg{id: 1})
	m = next.(Model)
	if m.errText != "Second" {
		t.Errorf("errText = %q, want Second", m.errText)
	}
	next, _ = m.Update(clearErrorMsg{id: 2})
	m = next.(Model)
	if m.errText != "" {
		t.Error("banner should be hidden by its own timer")
	}
}

func TestViewRendersState(t *testing.T) {
	m, _ := newTestModel(controller.State{Phase: controller.PhaseSessionActive, Role: internal.RoleOfficeWorker})

	updates := []tea.Msg{
		durationMsg("00:01:05"),
		metricsMsg(controller.Bars(internal.MetricsSample{HeartRate: 70, StressLevel: 75, CognitiveLoad: 40, FatigueScore: 20, PostureScore: 80})),
		entryMsg(controller.Entry{Role: controller.EntryUser, Segments: []controller.Segment{{Text: "hello"}}}),
		entryMsg(controller.Entry{Role: controller.EntryAssistant, Segments: []controller.Segment{{Code: true, Language: "go", Text: "x := 1"}}}),
		workingMsg(true),
		frameMsg(scene.Frame{
			Role: internal.RoleOfficeWorker, Avatar: scene.AvatarFallback, AvatarMeshes: 7,
			HasSample: true, Band: internal.BandAlert, Emissive: scene.ColorAlert, EmissiveIntensity: 0.625,
			Phase: scene.PhaseReady, Environment: []string{"floor", "desk"},
		}),
		liveMsg("connected"),
	}
	for _, u := range updates {
		next, _ := m.Update(u)
		m = next.(Model)
	}

	view := m.View()
	for _, want := range []string{"ada", "Office Worker", "00:01:05", "Stress", "75", "hello", "x := 1", "alert", "0.625", "floor, desk", "live: connected", "working on it"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestWindowSizeFeedsResize(t *testing.T) {
	sizes := make(chan scene.Size, 1)
	m := NewModel(context.Background(), Config{Actions: &fakeActions{}, Resize: sizes})

	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m = next.(Model)
	select {
	case s := <-sizes:
		if s != (scene.Size{Width: 120, Height: 40}) {
			t.Errorf("size = %v", s)
		}
	default:
		t.Fatal("window size not forwarded")
	}
	if m.transcript.Width != 116 {
		t.Errorf("transcript width = %d", m.transcript.Width)
	}

	// a full channel never blocks the update loop
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	m.Update(tea.WindowSizeMsg{Width: 90, Height: 30})
}

func TestQuit(t *testing.T) {
	m, _ := newTestModel(controller.State{})
	_, cmd := press(m, "ctrl+c")
	if cmd == nil {
		t.Fatal("ctrl+c should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("ctrl+c should return tea.Quit")
	}
}

func TestBridge(t *testing.T) {
	b := NewBridge()
	b.ShowError("dropped before attach")

	var got []tea.Msg
	b.Attach(func(msg tea.Msg) { got = append(got, msg) })
	b.SetDuration("00:00:01")
	b.Present(scene.Frame{Seq: 1})
	b.Release()
	b.Present(scene.Frame{Seq: 2})
	b.Detach()
	b.SetWorking(true)

	if len(got) != 2 {
		t.Fatalf("messages = %v, want 2", got)
	}
	if got[0] != durationMsg("00:00:01") {
		t.Errorf("first = %v", got[0])
	}
	if f, ok := got[1].(frameMsg); !ok || f.Seq != 1 {
		t.Errorf("second = %v", got[1])
	}
}
