package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the popup's keybindings.
type keyMap struct {
	Up       key.Binding
	Down     key.Binding
	Complete key.Binding
	Snooze   key.Binding
	Timer    key.Binding
	Open     key.Binding
	Refresh  key.Binding
	Overdue  key.Binding
	Quit     key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Complete: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "complete"),
		),
		Snooze: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "snooze"),
		),
		Timer: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "timer"),
		),
		Open: key.NewBinding(
			key.WithKeys("enter", "o"),
			key.WithHelp("enter", "open"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Overdue: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "overdue"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "esc", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}
