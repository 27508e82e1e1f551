package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"github.com/snigdhaos/blackbox/internal/domain"
	"github.com/snigdhaos/blackbox/internal/logging"
)

var (
	titleColor = color.New(color.FgCyan, color.Bold)
	okColor    = color.New(color.FgGreen)
	warnColor  = color.New(color.FgYellow)
	errColor   = color.New(color.FgRed)
	mutedColor = color.New(color.Faint)
)

// cliSession renders wizard views as plain lines and turns typed lines into
// actions. Selections persist across visits to the select page.
type cliSession struct {
	out    io.Writer
	errOut io.Writer

	view     domain.View
	haveView bool
	checked  map[string]bool
	seeded   map[string]bool

	exec *domain.ExecRequestPayload
}

func newCLISession(out io.Writer, errOut io.Writer) *cliSession {
	return &cliSession{
		out:     out,
		errOut:  errOut,
		checked: map[string]bool{},
		seeded:  map[string]bool{},
	}
}

func runCLI(ctx context.Context, events <-chan domain.Event, actions chan<- domain.Action, logger *logging.EventLogger) (*domain.ExecRequestPayload, error) {
	s := newCLISession(os.Stdout, os.Stderr)

	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)
	defer signal.Stop(interrupts)

	lines := readLines(os.Stdin)
	eof := false
	for {
		select {
		case <-ctx.Done():
			return s.exec, fmt.Errorf("cancelled: %w", ctx.Err())
		case <-interrupts:
			sendAction(actions, domain.Action{Type: domain.ActionInterrupt})
		case line, ok := <-lines:
			if !ok {
				// Without input every page is left as if by Ctrl+C.
				lines = nil
				eof = true
				sendAction(actions, domain.Action{Type: domain.ActionInterrupt})
				continue
			}
			if a, ok := s.handleLine(line); ok {
				sendAction(actions, a)
			}
		case ev, ok := <-events:
			if !ok {
				return s.exec, nil
			}
			if logger != nil {
				logger.Record(ev)
			}
			s.handleEvent(ev)
			if eof && ev.Type == domain.EventState {
				sendAction(actions, domain.Action{Type: domain.ActionInterrupt})
			}
		}
	}
}

func readLines(r io.Reader) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			ch <- sc.Text()
		}
	}()
	return ch
}

func (s *cliSession) handleEvent(ev domain.Event) {
	switch ev.Type {
	case domain.EventState:
		p, ok := ev.Payload.(domain.StatePayload)
		if !ok {
			return
		}
		s.setView(p.View)
		s.printView()
	case domain.EventProbe:
		if p, ok := ev.Payload.(domain.ProbePayload); ok {
			mutedColor.Fprintf(s.out, "  probe #%d %s\n", p.Attempt, p.URL)
		}
	case domain.EventLog:
		if p, ok := ev.Payload.(domain.LogPayload); ok && ev.Severity != domain.SeverityTrace {
			printLine(s.out, okColor, "-", p.Message)
		}
	case domain.EventWarning:
		if p, ok := ev.Payload.(domain.LogPayload); ok {
			printLine(s.errOut, warnColor, "!", p.Message)
		}
	case domain.EventError:
		if p, ok := ev.Payload.(domain.LogPayload); ok {
			printLine(s.errOut, errColor, "✗", p.Message)
		}
	case domain.EventExecRequest:
		if p, ok := ev.Payload.(domain.ExecRequestPayload); ok {
			s.exec = &p
		}
	}
}

func (s *cliSession) setView(v domain.View) {
	s.view = v
	s.haveView = true
	for _, b := range s.bundles() {
		if s.seeded[b.ID] {
			continue
		}
		s.seeded[b.ID] = true
		if b.DefaultOn {
			s.checked[b.ID] = true
		}
	}
}

func (s *cliSession) printView() {
	v := s.view
	fmt.Fprintln(s.out)
	titleColor.Fprintf(s.out, "==> %s\n", v.Title)
	if msg := strings.TrimSpace(v.Message); msg != "" {
		fmt.Fprintln(s.out, msg)
	}
	if v.Page == domain.PageSelect {
		s.printBundles()
	}
	if len(v.Buttons) == 0 {
		return
	}
	labels := make([]string, 0, len(v.Buttons))
	for _, b := range v.Buttons {
		labels = append(labels, b.Label())
	}
	hint := "[" + strings.Join(labels, "/") + "]"
	if v.Page == domain.PageSelect {
		hint = "numbers toggle, " + hint
	}
	mutedColor.Fprintf(s.out, "%s > ", hint)
}

func (s *cliSession) printBundles() {
	n := 0
	for _, tab := range s.view.Tabs {
		if len(tab.Bundles) == 0 {
			continue
		}
		fmt.Fprintf(s.out, "  %s\n", tab.Label)
		for _, b := range tab.Bundles {
			n++
			mark := "[ ]"
			if s.checked[b.ID] {
				mark = okColor.Sprint("[x]")
			}
			label := b.Label
			if strings.TrimSpace(label) == "" {
				label = strings.Join(b.Packages, " ")
			}
			fmt.Fprintf(s.out, "  %3d %s %s\n", n, mark, label)
		}
	}
}

// handleLine maps one typed line to an action. Numbers on the select page
// toggle bundles and reprint the list; a button name or its first letter
// presses it; an empty line presses the first button.
func (s *cliSession) handleLine(line string) (domain.Action, bool) {
	if !s.haveView || len(s.view.Buttons) == 0 {
		return domain.Action{}, false
	}
	fields := strings.Fields(strings.ToLower(line))

	if s.view.Page == domain.PageSelect && len(fields) > 0 {
		if toggled, ok := s.toggle(fields); ok {
			if toggled {
				s.printView()
			}
			return domain.Action{}, false
		}
	}

	b, ok := s.matchButton(fields)
	if !ok {
		warnColor.Fprintf(s.errOut, "unknown choice %q\n", strings.TrimSpace(line))
		return domain.Action{}, false
	}
	if s.view.Page == domain.PageSelect {
		return domain.Action{Type: domain.ActionSelectButton, Button: b, Selected: s.selectedIDs()}, true
	}
	return domain.Action{Type: domain.ActionTextButton, Button: b}, true
}

func (s *cliSession) matchButton(fields []string) (domain.Button, bool) {
	if len(fields) == 0 {
		return s.view.Buttons[0], true
	}
	if len(fields) > 1 {
		return "", false
	}
	word := fields[0]
	for _, b := range s.view.Buttons {
		label := strings.ToLower(b.Label())
		if word == label || word == string(b) || word == label[:1] {
			return b, true
		}
	}
	return "", false
}

// toggle flips every numbered bundle in fields. ok is false when any field is
// not a number, so the line is treated as a button instead.
func (s *cliSession) toggle(fields []string) (toggled bool, ok bool) {
	bundles := s.bundles()
	idx := make([]int, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return false, false
		}
		idx = append(idx, n)
	}
	for _, n := range idx {
		if n < 1 || n > len(bundles) {
			warnColor.Fprintf(s.errOut, "no entry %d\n", n)
			continue
		}
		id := bundles[n-1].ID
		s.checked[id] = !s.checked[id]
		toggled = true
	}
	return toggled, true
}

func (s *cliSession) bundles() []domain.BundleDescriptor {
	var out []domain.BundleDescriptor
	for _, tab := range s.view.Tabs {
		out = append(out, tab.Bundles...)
	}
	return out
}

func (s *cliSession) selectedIDs() []string {
	var out []string
	for _, b := range s.bundles() {
		if s.checked[b.ID] {
			out = append(out, b.ID)
		}
	}
	return out
}

func sendAction(actions chan<- domain.Action, a domain.Action) {
	if actions == nil {
		return
	}
	select {
	case actions <- a:
	default:
	}
}

func printLine(out io.Writer, c *color.Color, prefix string, message string) {
	message = strings.TrimSpace(message)
	if message == "" {
		return
	}
	fmt.Fprintf(out, "%s %s\n", c.Sprint(prefix), message)
}
