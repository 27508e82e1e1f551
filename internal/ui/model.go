package ui

import (
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/snigdhaos/blackbox/internal/domain"
)

const maxLogEntries = 500

type Meta struct {
	Version string
	Tagline string
}

type EventMsg struct {
	Event domain.Event
	OK    bool
}

type pulseMsg struct{}

type focusArea int

const (
	focusButtons focusArea = iota
	focusList
)

type probeState struct {
	attempt  int
	url      string
	deadline time.Duration
	started  time.Time
}

type Model struct {
	events  <-chan domain.Event
	actions chan<- domain.Action
	record  func(domain.Event)

	meta Meta

	width  int
	height int
	layout layoutState

	view     domain.View
	haveView bool
	button   int

	// Selection survives re-entering the select page.
	focus   focusArea
	tab     int
	cursors map[int]int
	checked map[string]bool
	seeded  map[string]bool

	probe *probeState

	logs       []domain.LogEntry
	logVP      viewport.Model
	followLogs bool

	spin     spinner.Model
	progress progress.Model
	keys     keyMap
	help     help.Model

	engineDone bool
	final      domain.WizardState
	exec       *domain.ExecRequestPayload
}

// NewModel builds the wizard view. record, when set, sees every event before
// the model applies it.
func NewModel(events <-chan domain.Event, actions chan<- domain.Action, meta Meta, record func(domain.Event)) *Model {
	sp := spinner.New()
	sp.Spinner = spinner.Line
	sp.Style = activeStyle

	return &Model{
		events:     events,
		actions:    actions,
		record:     record,
		meta:       meta,
		cursors:    map[int]int{},
		checked:    map[string]bool{},
		seeded:     map[string]bool{},
		followLogs: true,
		spin:       sp,
		progress:   progress.New(progress.WithSolidFill(accentHex), progress.WithoutPercentage()),
		keys:       newKeyMap(),
		help:       help.New(),
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(waitForEvent(m.events), m.spin.Tick, pulseTick())
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.reflow()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case pulseMsg:
		if m.engineDone {
			return m, nil
		}
		return m, pulseTick()

	case EventMsg:
		if !msg.OK {
			m.engineDone = true
			return m, tea.Quit
		}
		if m.record != nil {
			m.record(msg.Event)
		}
		m.applyEvent(msg.Event)
		return m, waitForEvent(m.events)

	case tea.KeyMsg:
		return m, m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	k := m.keys
	switch {
	case key.Matches(msg, k.Interrupt):
		m.sendAction(domain.Action{Type: domain.ActionInterrupt})
		return nil
	case key.Matches(msg, k.PageUp):
		m.followLogs = false
		m.logVP.LineUp(max(1, m.logVP.Height/2))
		return nil
	case key.Matches(msg, k.PageDown):
		m.logVP.LineDown(max(1, m.logVP.Height/2))
		m.followLogs = m.logVP.AtBottom()
		return nil
	case key.Matches(msg, k.Follow):
		m.followLogs = true
		m.logVP.GotoBottom()
		return nil
	}

	if !m.haveView {
		return nil
	}
	if m.view.Page == domain.PageSelect {
		m.handleSelectKey(msg)
		return nil
	}
	if m.view.Page != domain.PageText {
		return nil
	}

	switch {
	case key.Matches(msg, k.Left):
		m.moveButton(-1)
	case key.Matches(msg, k.Right), key.Matches(msg, k.Focus):
		m.moveButton(1)
	case key.Matches(msg, k.Press):
		if b, ok := m.focusedButton(); ok {
			m.sendAction(domain.Action{Type: domain.ActionTextButton, Button: b})
		}
	}
	return nil
}

func (m *Model) handleSelectKey(msg tea.KeyMsg) {
	k := m.keys
	if key.Matches(msg, k.Focus) {
		if m.focus == focusList {
			m.focus = focusButtons
		} else {
			m.focus = focusList
		}
		return
	}

	if m.focus == focusButtons {
		switch {
		case key.Matches(msg, k.Left):
			m.moveButton(-1)
		case key.Matches(msg, k.Right):
			m.moveButton(1)
		case key.Matches(msg, k.Up):
			m.focus = focusList
		case key.Matches(msg, k.Press):
			if b, ok := m.focusedButton(); ok {
				m.sendAction(domain.Action{Type: domain.ActionSelectButton, Button: b, Selected: m.selectedIDs()})
			}
		}
		return
	}

	switch {
	case key.Matches(msg, k.Left):
		m.switchTab(-1)
		return
	case key.Matches(msg, k.Right):
		m.switchTab(1)
		return
	}

	tab, ok := m.currentTab()
	if !ok {
		if key.Matches(msg, k.Down) || key.Matches(msg, k.Press) {
			m.focus = focusButtons
		}
		return
	}
	cur := min(m.cursors[m.tab], len(tab.Bundles)-1)
	switch {
	case key.Matches(msg, k.Up):
		if cur > 0 {
			m.cursors[m.tab] = cur - 1
		}
	case key.Matches(msg, k.Down):
		if cur < len(tab.Bundles)-1 {
			m.cursors[m.tab] = cur + 1
		} else {
			m.focus = focusButtons
		}
	case key.Matches(msg, k.Toggle), key.Matches(msg, k.Press):
		if cur < len(tab.Bundles) {
			id := tab.Bundles[cur].ID
			m.checked[id] = !m.checked[id]
		}
	}
}

func (m *Model) applyEvent(ev domain.Event) {
	switch ev.Type {
	case domain.EventState:
		p, ok := ev.Payload.(domain.StatePayload)
		if !ok {
			return
		}
		m.setView(p.View)
		m.final = ev.State
		m.probe = nil
	case domain.EventProbe:
		if p, ok := ev.Payload.(domain.ProbePayload); ok {
			started := ev.TS
			if started.IsZero() {
				started = time.Now()
			}
			m.probe = &probeState{attempt: p.Attempt, url: p.URL, deadline: p.Deadline, started: started}
		}
	case domain.EventLog:
		if ev.Severity != domain.SeverityTrace {
			m.addLog(ev, domain.LogInfo)
		}
	case domain.EventWarning:
		m.addLog(ev, domain.LogWarning)
	case domain.EventError:
		m.addLog(ev, domain.LogError)
	case domain.EventExecRequest:
		if p, ok := ev.Payload.(domain.ExecRequestPayload); ok {
			m.exec = &p
		}
	}
}

func (m *Model) setView(v domain.View) {
	m.view = v
	m.haveView = true
	m.button = 0

	if v.Page != domain.PageSelect {
		return
	}
	for _, tab := range v.Tabs {
		for _, b := range tab.Bundles {
			if m.seeded[b.ID] {
				continue
			}
			m.seeded[b.ID] = true
			if b.DefaultOn {
				m.checked[b.ID] = true
			}
		}
	}
	if m.tab >= len(v.Tabs) {
		m.tab = 0
	}
	m.focus = focusList
	if _, ok := m.currentTab(); !ok {
		m.focus = focusButtons
	}
}

func (m *Model) currentTab() (domain.CatalogTab, bool) {
	if m.tab < 0 || m.tab >= len(m.view.Tabs) {
		return domain.CatalogTab{}, false
	}
	tab := m.view.Tabs[m.tab]
	return tab, len(tab.Bundles) > 0
}

func (m *Model) switchTab(delta int) {
	n := len(m.view.Tabs)
	if n == 0 {
		return
	}
	m.tab = (m.tab + delta + n) % n
}

func (m *Model) moveButton(delta int) {
	n := len(m.view.Buttons)
	if n == 0 {
		return
	}
	m.button = (m.button + delta + n) % n
}

func (m *Model) focusedButton() (domain.Button, bool) {
	if m.button < 0 || m.button >= len(m.view.Buttons) {
		return "", false
	}
	return m.view.Buttons[m.button], true
}

// selectedIDs lists checked bundles of the current view in tab order.
func (m *Model) selectedIDs() []string {
	var out []string
	for _, tab := range m.view.Tabs {
		for _, b := range tab.Bundles {
			if m.checked[b.ID] {
				out = append(out, b.ID)
			}
		}
	}
	return out
}

func (m *Model) addLog(ev domain.Event, level domain.LogLevel) {
	p, ok := ev.Payload.(domain.LogPayload)
	if !ok {
		return
	}
	m.logs = append(m.logs, domain.LogEntry{
		TS:      ev.TS,
		Level:   level,
		Source:  ev.Source,
		State:   ev.State,
		Message: p.Message,
		Fields:  p.Fields,
	})
	if len(m.logs) > maxLogEntries {
		m.logs = m.logs[len(m.logs)-maxLogEntries:]
	}
	m.reflow()
}

func (m *Model) sendAction(a domain.Action) {
	if m.actions == nil {
		return
	}
	select {
	case m.actions <- a:
	default:
	}
}

func (m *Model) Result() Result {
	return Result{Final: m.final, Exec: m.exec}
}

func waitForEvent(events <-chan domain.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		return EventMsg{Event: ev, OK: ok}
	}
}

func pulseTick() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(time.Time) tea.Msg { return pulseMsg{} })
}
