package ui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the keybindings for the triage screens.
type KeyMap struct {
	Keep    key.Binding
	Delete  key.Binding
	Undo    key.Binding
	Restart key.Binding
	Share   key.Binding
	Open    key.Binding
	Enter   key.Binding
	Help    key.Binding
	Quit    key.Binding
}

// DefaultKeyMap returns the default keybindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Keep: key.NewBinding(
			key.WithKeys("right", "l", "k"),
			key.WithHelp("→/l/k", "keep"),
		),
		Delete: key.NewBinding(
			key.WithKeys("left", "h", "d"),
			key.WithHelp("←/h/d", "delete"),
		),
		Undo: key.NewBinding(
			key.WithKeys("u"),
			key.WithHelp("u", "undo"),
		),
		Restart: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "restart"),
		),
		Share: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "copy story"),
		),
		Open: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "pick folder"),
		),
		Enter: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "make video"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Keep, k.Delete, k.Undo, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Keep, k.Delete, k.Undo, k.Restart},
		{k.Share, k.Enter, k.Open},
		{k.Help, k.Quit},
	}
}

// summaryKeys is the help shown once every photo has been decided.
type summaryKeys struct {
	KeyMap
}

func (k summaryKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Enter, k.Share, k.Undo, k.Restart, k.Quit}
}

func (k summaryKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}
