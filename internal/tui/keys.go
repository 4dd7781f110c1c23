package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Engineer key.Binding
	Office   key.Binding
	Factory  key.Binding
	Start    key.Binding
	End      key.Binding
	Focus    key.Binding
	Send     key.Binding
	Blur     key.Binding
	Quit     key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Engineer, k.Office, k.Factory, k.Start, k.End, k.Focus, k.Send, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding { return [][]key.Binding{k.ShortHelp()} }

var keys = keyMap{
	Engineer: key.NewBinding(key.WithKeys("1"), key.WithHelp("1", "engineer")),
	Office:   key.NewBinding(key.WithKeys("2"), key.WithHelp("2", "office")),
	Factory:  key.NewBinding(key.WithKeys("3"), key.WithHelp("3", "factory")),
	Start:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "start")),
	End:      key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "end")),
	Focus:    key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "chat")),
	Send:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("⏎", "send")),
	Blur:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "leave chat")),
	Quit:     key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
}
