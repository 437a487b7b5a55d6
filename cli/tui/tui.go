package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines key bindings shared by all views.
type keyMap struct {
	Quit key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c", "esc"),
		key.WithHelp("q", "quit"),
	),
}
