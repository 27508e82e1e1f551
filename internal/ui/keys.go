package ui

import (
	"github.com/charmbracelet/bubbles/key"

	"github.com/snigdhaos/blackbox/internal/domain"
)

type keyMap struct {
	Left      key.Binding
	Right     key.Binding
	Up        key.Binding
	Down      key.Binding
	Toggle    key.Binding
	Focus     key.Binding
	Press     key.Binding
	PageUp    key.Binding
	PageDown  key.Binding
	Follow    key.Binding
	Interrupt key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Left:      key.NewBinding(key.WithKeys("left", "h", "shift+tab"), key.WithHelp("←/→", "move")),
		Right:     key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("←/→", "move")),
		Up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/↓", "navigate")),
		Down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↑/↓", "navigate")),
		Toggle:    key.NewBinding(key.WithKeys(" ", "space"), key.WithHelp("space", "toggle")),
		Focus:     key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "list/buttons")),
		Press:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "press")),
		PageUp:    key.NewBinding(key.WithKeys("pgup"), key.WithHelp("pgup/pgdn", "scroll log")),
		PageDown:  key.NewBinding(key.WithKeys("pgdown"), key.WithHelp("pgup/pgdn", "scroll log")),
		Follow:    key.NewBinding(key.WithKeys("end"), key.WithHelp("end", "follow log")),
		Interrupt: key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
	}
}

// hints is the footer help for the current page. It satisfies help.KeyMap.
type hints struct {
	keys keyMap
	page domain.PageKind
}

func (h hints) ShortHelp() []key.Binding {
	switch h.page {
	case domain.PageSelect:
		return []key.Binding{h.keys.Up, h.keys.Left, h.keys.Toggle, h.keys.Focus, h.keys.Press, h.keys.PageUp, h.keys.Interrupt}
	case domain.PageText:
		return []key.Binding{h.keys.Left, h.keys.Press, h.keys.PageUp, h.keys.Interrupt}
	default:
		return []key.Binding{h.keys.PageUp, h.keys.Follow, h.keys.Interrupt}
	}
}

func (h hints) FullHelp() [][]key.Binding {
	return [][]key.Binding{h.ShortHelp()}
}
