package domain

import "time"

type WizardState string

const (
	StateWelcome     WizardState = "WELCOME"
	StateInternet    WizardState = "INTERNET"
	StateUpdate      WizardState = "UPDATE"
	StateUpdateRetry WizardState = "UPDATE_RETRY"
	StateQuit        WizardState = "QUIT"
	StateSelect      WizardState = "SELECT"
	StateApply       WizardState = "APPLY"
	StateApplyRetry  WizardState = "APPLY_RETRY"
	StateSuccess     WizardState = "SUCCESS"
)

// AllStates lists every wizard state in declaration order.
var AllStates = []WizardState{
	StateWelcome,
	StateInternet,
	StateUpdate,
	StateUpdateRetry,
	StateQuit,
	StateSelect,
	StateApply,
	StateApplyRetry,
	StateSuccess,
}

func (s WizardState) Valid() bool {
	for _, st := range AllStates {
		if st == s {
			return true
		}
	}
	return false
}

const (
	TokenPostUpdate  = "POST_UPDATE"
	TokenUpdateRetry = "UPDATE_RETRY"
)

// ResumeState maps a resume token passed on the command line to the entry state.
func ResumeState(token string) WizardState {
	switch token {
	case TokenPostUpdate:
		return StateSelect
	case TokenUpdateRetry:
		return StateUpdateRetry
	default:
		return StateWelcome
	}
}

type Button string

const (
	ButtonOk     Button = "ok"
	ButtonCancel Button = "cancel"
	ButtonYes    Button = "yes"
	ButtonNo     Button = "no"
	ButtonReset  Button = "reset"
)

func (b Button) Label() string {
	switch b {
	case ButtonOk:
		return "Ok"
	case ButtonCancel:
		return "Cancel"
	case ButtonYes:
		return "Yes"
	case ButtonNo:
		return "No"
	case ButtonReset:
		return "Reset"
	default:
		return string(b)
	}
}

type PageKind string

const (
	PageText    PageKind = "text"
	PageWaiting PageKind = "waiting"
	PageSelect  PageKind = "select"
)

// View is what the view surface renders for the current state.
type View struct {
	State   WizardState
	Page    PageKind
	Title   string
	Message string
	Buttons []Button

	// Select page only.
	Tabs []CatalogTab
}

func (v View) HasButton(b Button) bool {
	for _, x := range v.Buttons {
		if x == b {
			return true
		}
	}
	return false
}

type LogLevel string

const (
	LogTrace   LogLevel = "trace"
	LogInfo    LogLevel = "info"
	LogWarning LogLevel = "warning"
	LogError   LogLevel = "error"
)

type LogEntry struct {
	TS      time.Time
	Level   LogLevel
	Source  string
	State   WizardState
	Message string
	Fields  map[string]string
}
