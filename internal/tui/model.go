package tui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/iksnae/hdt-console/internal"
	"github.com/iksnae/hdt-console/internal/controller"
	"github.com/iksnae/hdt-console/internal/scene"
)

// ErrorBannerTimeout is how long an error stays on screen
const ErrorBannerTimeout = 5 * time.Second

// Actions are the user operations the dashboard triggers
type Actions interface {
	SelectRole(ctx context.Context, role internal.Role) error
	StartSession(ctx context.Context) error
	EndSession(ctx context.Context) error
	SendChat(ctx context.Context, text string) error
}

// actionDoneMsg ends an action command; errors were already shown via
// ShowError. Only lifecycle actions (role, start, end) hold the busy flag.
type actionDoneMsg struct {
	lifecycle bool
	err       error
}

type clearErrorMsg struct {
	id int
}

// Model is the dashboard's bubbletea model
type Model struct {
	ctx     context.Context
	actions Actions
	user    string
	resize  chan<- scene.Size

	state    controller.State
	duration string
	bars     []controller.MetricBar
	entries  []controller.Entry
	working  bool
	errText  string
	errID    int
	frame    scene.Frame
	live     string
	busy     bool

	input      textinput.Model
	transcript viewport.Model
	spinner    spinner.Model
	help       help.Model
	markdown   *glamour.TermRenderer
	focusChat  bool

	width  int
	height int
}

// Config configures a dashboard model
type Config struct {
	Actions Actions
	User    string
	State   controller.State
	// Resize receives window sizes for the renderer's resize listener
	Resize chan<- scene.Size
}

// NewModel creates the dashboard model
func NewModel(ctx context.Context, cfg Config) Model {
	ti := textinput.New()
	ti.Placeholder = "Ask your digital twin..."
	ti.CharLimit = 2000
	ti.Prompt = "> "

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = titleStyle

	vp := viewport.New(80, 10)

	return Model{
		ctx:        ctx,
		actions:    cfg.Actions,
		user:       cfg.User,
		resize:     cfg.Resize,
		state:      cfg.State,
		duration:   controller.FormatDuration(0),
		input:      ti,
		transcript: vp,
		spinner:    sp,
		help:       help.New(),
		markdown:   newMarkdown(76),
		live:       "offline",
	}
}

func newMarkdown(width int) *glamour.TermRenderer {
	r, err := glamour.NewTermRenderer(glamour.WithStandardStyle("dark"), glamour.WithWordWrap(width))
	if err != nil {
		internal.LogDebug("glamour unavailable: %v", err)
		return nil
	}
	return r
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, textinput.Blink)
}

func (m Model) run(lifecycle bool, fn func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return actionDoneMsg{lifecycle: lifecycle, err: fn(ctx)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		if m.resize != nil {
			select {
			case m.resize <- scene.Size{Width: msg.Width, Height: msg.Height}:
			default:
			}
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case stateMsg:
		m.state = controller.State(msg)
		if !m.state.Controls.Chat && m.focusChat {
			m.focusChat = false
			m.input.Blur()
		}
	case durationMsg:
		m.duration = string(msg)
	case metricsMsg:
		m.bars = []controller.MetricBar(msg)
	case entryMsg:
		m.entries = append(m.entries, controller.Entry(msg))
		m.refreshTranscript()
	case workingMsg:
		m.working = bool(msg)
	case errorMsg:
		m.errID++
		m.errText = string(msg)
		id := m.errID
		cmds = append(cmds, tea.Tick(ErrorBannerTimeout, func(time.Time) tea.Msg { return clearErrorMsg{id: id} }))
	case clearErrorMsg:
		if msg.id == m.errID {
			m.errText = ""
		}
	case frameMsg:
		m.frame = scene.Frame(msg)
	case surfaceMsg:
		// the frame carries the size; nothing else to do
	case liveMsg:
		m.live = string(msg)
	case actionDoneMsg:
		if msg.lifecycle {
			m.busy = false
		}
		if msg.err != nil {
			internal.LogDebug("Dashboard action failed: %v", msg.err)
		}
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, keys.Quit) {
		return m, tea.Quit
	}

	if m.focusChat {
		switch {
		case key.Matches(msg, keys.Blur), key.Matches(msg, keys.Focus):
			m.focusChat = false
			m.input.Blur()
			return m, nil
		case key.Matches(msg, keys.Send):
			text := m.input.Value()
			m.input.Reset()
			if strings.TrimSpace(text) == "" {
				return m, nil
			}
			return m, m.run(false, func(ctx context.Context) error { return m.actions.SendChat(ctx, text) })
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	controls := m.state.Controls
	switch {
	case key.Matches(msg, keys.Engineer), key.Matches(msg, keys.Office), key.Matches(msg, keys.Factory):
		if !controls.RoleSelection || m.busy {
			return m, nil
		}
		role := internal.Roles[int(msg.String()[0]-'1')]
		m.busy = true
		return m, m.run(true, func(ctx context.Context) error { return m.actions.SelectRole(ctx, role) })
	case key.Matches(msg, keys.Start):
		if !controls.Start || m.busy {
			return m, nil
		}
		m.busy = true
		return m, m.run(true, m.actions.StartSession)
	case key.Matches(msg, keys.End):
		if !controls.End || m.busy {
			return m, nil
		}
		m.busy = true
		return m, m.run(true, m.actions.EndSession)
	case key.Matches(msg, keys.Focus):
		if !controls.Chat {
			return m, nil
		}
		m.focusChat = true
		cmd := m.input.Focus()
		return m, cmd
	}
	var cmd tea.Cmd
	m.transcript, cmd = m.transcript.Update(msg)
	return m, cmd
}

// layout sizes the transcript and input to the window
func (m *Model) layout() {
	w := m.width - 4
	if w < 20 {
		w = 20
	}
	h := m.height - 16
	if h < 4 {
		h = 4
	}
	m.transcript.Width = w
	m.transcript.Height = h
	m.input.Width = w - 4
	m.markdown = newMarkdown(w - 4)
	m.refreshTranscript()
}

func (m *Model) refreshTranscript() {
	m.transcript.SetContent(m.renderTranscript())
	m.transcript.GotoBottom()
}
