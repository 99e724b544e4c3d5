package viewer

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines key bindings for the viewer.
type KeyMap struct {
	Previous key.Binding
	Next     key.Binding
	Toggle   key.Binding
	Up       key.Binding
	Down     key.Binding
	Quit     key.Binding
}

// DefaultKeyMap returns the default key bindings
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Previous: key.NewBinding(
			key.WithKeys("left", "h", "b"),
			key.WithHelp("←/h", "back"),
		),
		Next: key.NewBinding(
			key.WithKeys("right", "l", "f"),
			key.WithHelp("→/l", "forward"),
		),
		Toggle: key.NewBinding(
			key.WithKeys("a", "tab"),
			key.WithHelp("a", "always draw new"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k", "pgup"),
			key.WithHelp("↑/k", "scroll up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j", "pgdown"),
			key.WithHelp("↓/j", "scroll down"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// setAuto enables or disables history navigation for the draw mode.
func (k *KeyMap) setAuto(auto bool) {
	k.Previous.SetEnabled(!auto)
	k.Next.SetEnabled(!auto)
}

func (k KeyMap) helpBindings() []key.Binding {
	return []key.Binding{k.Previous, k.Next, k.Toggle, k.Up, k.Down, k.Quit}
}
