package domain

type ActionType string

const (
	// ActionTextButton is a press on the text-prompt button bar.
	ActionTextButton ActionType = "text_button"
	// ActionSelectButton is a press on the selection-page button bar.
	ActionSelectButton ActionType = "select_button"
	// ActionInterrupt is Ctrl+C: leaves any page for QUIT, and ends the wizard
	// from QUIT itself.
	ActionInterrupt ActionType = "interrupt"
)

type Action struct {
	Type   ActionType
	Button Button

	// Checked selector IDs at the time of the press (select bar only).
	Selected []string
}
