package logging

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/google/uuid"

	"github.com/snigdhaos/blackbox/internal/domain"
)

const FileName = "blackbox-log.md"

type Config struct {
	// Always writes the log even when the run went fine.
	Always bool
	// Dir defaults to $XDG_STATE_HOME/snigdhaos-blackbox.
	Dir     string
	Version string
	Mode    string
	Token   string
	DryRun  bool
}

type Result struct {
	Path    string
	Written bool
}

// EventLogger records wizard events and renders them as a markdown run log.
// It is not safe for concurrent use; the UI loop owns it.
type EventLogger struct {
	cfg     Config
	runID   string
	started time.Time
	ended   time.Time

	visits   []visit
	general  []domain.LogEntry
	hadError bool
	failed   map[domain.WizardState]bool
	relaunch string
}

type visit struct {
	state   domain.WizardState
	entries []domain.LogEntry
}

func NewEventLogger(cfg Config) *EventLogger {
	return &EventLogger{
		cfg:     cfg,
		runID:   uuid.NewString(),
		started: time.Now(),
		failed:  map[domain.WizardState]bool{},
	}
}

func (l *EventLogger) RunID() string { return l.runID }

func (l *EventLogger) Record(ev domain.Event) {
	if ev.TS.IsZero() {
		ev.TS = time.Now()
	}
	l.ended = ev.TS

	switch ev.Type {
	case domain.EventState:
		l.visits = append(l.visits, visit{state: ev.State})
		if ev.State == domain.StateUpdateRetry || ev.State == domain.StateApplyRetry {
			l.hadError = true
			l.failed[ev.State] = true
		}
		msg := "Entered " + string(ev.State)
		if p, ok := ev.Payload.(domain.StatePayload); ok && p.From != "" {
			msg += " from " + string(p.From)
		}
		l.append(domain.LogEntry{TS: ev.TS, Level: domain.LogInfo, Source: ev.Source, State: ev.State, Message: msg})
	case domain.EventProbe:
		if p, ok := ev.Payload.(domain.ProbePayload); ok {
			l.append(domain.LogEntry{
				TS:      ev.TS,
				Level:   domain.LogTrace,
				Source:  ev.Source,
				State:   ev.State,
				Message: "Connectivity probe " + p.URL,
				Fields:  map[string]string{"attempt": strconv.Itoa(p.Attempt), "deadline": p.Deadline.String()},
			})
		}
	case domain.EventLog:
		level := domain.LogInfo
		if ev.Severity == domain.SeverityTrace {
			level = domain.LogTrace
		}
		l.add(ev, level)
	case domain.EventWarning:
		l.add(ev, domain.LogWarning)
	case domain.EventError:
		l.hadError = true
		l.add(ev, domain.LogError)
	case domain.EventExecRequest:
		if p, ok := ev.Payload.(domain.ExecRequestPayload); ok {
			args := []string{p.Path}
			if len(p.Command) > 1 {
				args = append(args, p.Command[1:]...)
			}
			l.relaunch = strings.Join(args, " ")
			l.append(domain.LogEntry{TS: ev.TS, Level: domain.LogInfo, Source: ev.Source, State: ev.State, Message: "Relaunching " + l.relaunch})
		}
	}
}

func (l *EventLogger) MarkFailure() {
	l.hadError = true
}

func (l *EventLogger) Failed() bool { return l.hadError }

// Finalize writes the log when Always is set or the run failed.
func (l *EventLogger) Finalize() (Result, error) {
	if !l.cfg.Always && !l.hadError {
		return Result{}, nil
	}

	path := filepath.Join(resolveLogDir(l.cfg.Dir), FileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return Result{}, err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if l.ended.IsZero() {
		l.ended = time.Now()
	}
	l.writeMarkdown(w)
	if err := w.Flush(); err != nil {
		return Result{}, err
	}
	return Result{Path: path, Written: true}, nil
}

func (l *EventLogger) append(entry domain.LogEntry) {
	if len(l.visits) == 0 {
		l.general = append(l.general, entry)
		return
	}
	v := &l.visits[len(l.visits)-1]
	v.entries = append(v.entries, entry)
}

func (l *EventLogger) add(ev domain.Event, level domain.LogLevel) {
	payload, ok := ev.Payload.(domain.LogPayload)
	if !ok {
		return
	}
	l.append(domain.LogEntry{
		TS:      ev.TS,
		Level:   level,
		Source:  ev.Source,
		State:   ev.State,
		Message: payload.Message,
		Fields:  payload.Fields,
	})
}

type logItem struct {
	ts      time.Time
	level   domain.LogLevel
	source  string
	message string
	fields  string
	count   int
}

func (l *EventLogger) writeMarkdown(w *bufio.Writer) {
	result := "Completed"
	if l.hadError {
		result = "Failed"
	}

	fmt.Fprintln(w, "# Snigdha OS Blackbox log")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "## Summary")
	fmt.Fprintf(w, "- Run: %s\n", l.runID)
	fmt.Fprintf(w, "- Started: %s\n", l.started.Format(time.RFC3339))
	fmt.Fprintf(w, "- Ended: %s\n", l.ended.Format(time.RFC3339))
	fmt.Fprintf(w, "- Result: %s\n", result)
	if l.hadError {
		if reason := l.failureReason(); reason != "" {
			fmt.Fprintf(w, "- Failure reason: %s\n", reason)
		}
	}
	if failed := l.failedStates(); len(failed) > 0 {
		fmt.Fprintf(w, "- Retry prompts: %s\n", strings.Join(failed, ", "))
	}
	if len(l.visits) > 0 {
		fmt.Fprintf(w, "- Final state: %s\n", l.visits[len(l.visits)-1].state)
	}
	if l.relaunch != "" {
		fmt.Fprintf(w, "- Relaunched: %s\n", l.relaunch)
	}
	if v := strings.TrimSpace(l.cfg.Version); v != "" {
		fmt.Fprintf(w, "- Version: %s\n", v)
	}
	if opts := l.formatOptions(); opts != "" {
		fmt.Fprintf(w, "- Options: %s\n", opts)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "## States")
	if len(l.visits) == 0 {
		fmt.Fprintln(w, "_No states entered._")
	}
	for i, v := range l.visits {
		fmt.Fprintf(w, "### %d. %s\n", i+1, v.state)
		writeEntries(w, v.entries)
		fmt.Fprintln(w)
	}
	if len(l.general) > 0 {
		fmt.Fprintln(w, "## General")
		writeEntries(w, l.general)
	}
}

func writeEntries(w *bufio.Writer, entries []domain.LogEntry) {
	items := compressEntries(entries)
	if len(items) == 0 {
		fmt.Fprintln(w, "_No logs recorded._")
		return
	}

	var highlights, issues []logItem
	hasTrace := false
	for _, item := range items {
		switch item.level {
		case domain.LogError, domain.LogWarning:
			issues = append(issues, item)
			highlights = append(highlights, item)
		case domain.LogTrace:
			hasTrace = true
		default:
			highlights = append(highlights, item)
		}
	}

	if len(issues) > 0 {
		fmt.Fprintln(w, "#### Issues")
		fmt.Fprintln(w, "```text")
		for _, item := range issues {
			fmt.Fprintln(w, formatItemLine(item, true))
		}
		fmt.Fprintln(w, "```")
		fmt.Fprintln(w)
	}

	if len(highlights) > 0 {
		fmt.Fprintln(w, "#### Highlights")
		for _, item := range highlights {
			fmt.Fprintf(w, "- %s\n", formatItemLine(item, false))
		}
		fmt.Fprintln(w)
	}

	if hasTrace {
		fmt.Fprintln(w, "<details>")
		fmt.Fprintf(w, "<summary>Full output (%d lines)</summary>\n\n", len(items))
		fmt.Fprintln(w, "```text")
		for _, item := range items {
			fmt.Fprintln(w, formatItemLine(item, true))
		}
		fmt.Fprintln(w, "```")
		fmt.Fprintln(w, "</details>")
	}
}

// compressEntries folds consecutive identical lines, ignoring fields that only
// count attempts.
func compressEntries(entries []domain.LogEntry) []logItem {
	items := make([]logItem, 0, len(entries))
	for _, entry := range entries {
		item := logItem{
			ts:      entry.TS,
			level:   entry.Level,
			source:  strings.TrimSpace(entry.Source),
			message: sanitizeMessage(entry.Message),
			fields:  formatFields(entry.Fields),
			count:   1,
		}
		if len(items) > 0 {
			last := &items[len(items)-1]
			if last.level == item.level && last.source == item.source && last.message == item.message && stripAttempt(last.fields) == stripAttempt(item.fields) {
				last.count++
				last.fields = item.fields
				continue
			}
		}
		items = append(items, item)
	}
	return items
}

func stripAttempt(fields string) string {
	parts := strings.Fields(fields)
	out := parts[:0]
	for _, p := range parts {
		if !strings.HasPrefix(p, "attempt=") {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}

func formatItemLine(item logItem, includeFields bool) string {
	ts := item.ts
	if ts.IsZero() {
		ts = time.Now()
	}
	level := strings.ToUpper(string(item.level))
	if level == "" {
		level = "INFO"
	}
	line := fmt.Sprintf("%s [%s]", ts.Format("2006-01-02 15:04:05"), level)
	if item.source != "" {
		line += " (" + item.source + ")"
	}
	if item.message != "" {
		line += " " + item.message
	}
	if item.count > 1 {
		line += fmt.Sprintf(" (x%d)", item.count)
	}
	if includeFields && item.fields != "" {
		line += " [" + item.fields + "]"
	}
	return line
}

func (l *EventLogger) failedStates() []string {
	var out []string
	for _, s := range domain.AllStates {
		if l.failed[s] {
			out = append(out, string(s))
		}
	}
	return out
}

func (l *EventLogger) failureReason() string {
	var all []domain.LogEntry
	all = append(all, l.general...)
	for _, v := range l.visits {
		all = append(all, v.entries...)
	}
	for _, level := range []domain.LogLevel{domain.LogError, domain.LogWarning} {
		for _, e := range all {
			if e.Level != level {
				continue
			}
			if errText := strings.TrimSpace(e.Fields["error"]); errText != "" {
				return sanitizeMessage(errText)
			}
			if msg := sanitizeMessage(e.Message); msg != "" {
				return msg
			}
		}
	}
	return ""
}

func (l *EventLogger) formatOptions() string {
	var opts []string
	if m := strings.TrimSpace(l.cfg.Mode); m != "" {
		opts = append(opts, "mode="+m)
	}
	if t := strings.TrimSpace(l.cfg.Token); t != "" {
		opts = append(opts, "token="+t)
	}
	if l.cfg.DryRun {
		opts = append(opts, "dry-run=true")
	}
	return strings.Join(opts, ", ")
}

func formatFields(fields map[string]string) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+formatValue(sanitizeMessage(fields[k])))
	}
	return strings.Join(out, " ")
}

func formatValue(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "\"\""
	}
	if strings.ContainsAny(v, " \t") {
		return strconv.Quote(v)
	}
	return v
}

// resolveLogDir prefers dir, then the XDG state dir, then the temp dir.
func resolveLogDir(dir string) string {
	candidates := []string{strings.TrimSpace(dir)}
	if state := os.Getenv("XDG_STATE_HOME"); state != "" {
		candidates = append(candidates, filepath.Join(state, "snigdhaos-blackbox"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".local", "state", "snigdhaos-blackbox"))
	}
	for _, c := range candidates {
		if c == "" {
			continue
		}
		c = filepath.Clean(c)
		if err := os.MkdirAll(c, 0o755); err == nil {
			return c
		}
	}
	return os.TempDir()
}

// sanitizeMessage flattens a line and removes terminal escapes. Command
// output relayed through the wizard may carry colour codes.
func sanitizeMessage(message string) string {
	if strings.TrimSpace(message) == "" {
		return ""
	}
	message = ansi.Strip(message)
	return strings.TrimSpace(stripControlChars(message))
}

func stripControlChars(message string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' || r == '\r' {
			return ' '
		}
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, message)
}
