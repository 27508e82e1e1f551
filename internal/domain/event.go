package domain

import "time"

type EventType string

const (
	EventState       EventType = "state"
	EventProbe       EventType = "probe"
	EventLog         EventType = "log"
	EventWarning     EventType = "warning"
	EventError       EventType = "error"
	EventExecRequest EventType = "exec_request"
)

type Severity string

const (
	SeverityTrace Severity = "trace"
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

type Event struct {
	Type     EventType
	State    WizardState
	TS       time.Time
	Source   string
	Severity Severity
	Payload  any
}

type StatePayload struct {
	From WizardState
	View View
}

type ProbePayload struct {
	Attempt  int
	URL      string
	Deadline time.Duration
}

type LogPayload struct {
	Message string
	Fields  map[string]string
}

// ExecRequestPayload asks the entry point to replace the process image once the
// UI has released the terminal.
type ExecRequestPayload struct {
	Path    string
	Command []string
}
