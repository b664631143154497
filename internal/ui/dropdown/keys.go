package dropdown

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the dropdown keybindings.
type KeyMap struct {
	Toggle      key.Binding
	Up          key.Binding
	Down        key.Binding
	Select      key.Binding
	MarkAllRead key.Binding
	Delete      key.Binding
	Refresh     key.Binding
	Close       key.Binding
	Logout      key.Binding
	Quit        key.Binding
}

// DefaultKeyMap returns the default set of keybindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Toggle: key.NewBinding(
			key.WithKeys("n", " "),
			key.WithHelp("n", "toggle notifications"),
		),
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "down"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "open"),
		),
		MarkAllRead: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "mark all read"),
		),
		Delete: key.NewBinding(
			key.WithKeys("d", "x"),
			key.WithHelp("d", "delete"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Close: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "close"),
		),
		Logout: key.NewBinding(
			key.WithKeys("L"),
			key.WithHelp("L", "log out"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp returns the most essential keybindings for the compact help view.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Select, k.MarkAllRead, k.Delete, k.Quit}
}

// FullHelp returns all keybindings grouped by category.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Select, k.Close},
		{k.Toggle, k.MarkAllRead, k.Delete, k.Refresh},
		{k.Logout, k.Quit},
	}
}
