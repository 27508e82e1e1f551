package ui

import (
	"context"
	"errors"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/term"

	"github.com/snigdhaos/blackbox/internal/domain"
)

// Result is what the wizard left behind once the event stream closed.
type Result struct {
	Final domain.WizardState
	// Exec is set when the engine asked for the process to be replaced.
	Exec *domain.ExecRequestPayload
}

// Run drives the terminal UI until events closes. The UI never exits on its
// own: quitting is an interrupt action that the engine turns into a
// transition or a final close.
func Run(ctx context.Context, events <-chan domain.Event, actions chan<- domain.Action, meta Meta, record func(domain.Event)) (Result, error) {
	m := NewModel(events, actions, meta, record)

	// Seed a size in case WindowSizeMsg never arrives (wrapped PTYs).
	if w, h, err := term.GetSize(os.Stdout.Fd()); err == nil && w > 0 && h > 0 {
		m.width = w
		m.height = h
	} else {
		m.width = 80
		m.height = 24
	}
	m.reflow()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil && !errors.Is(err, tea.ErrInterrupted) {
		return m.Result(), err
	}
	return m.Result(), nil
}
