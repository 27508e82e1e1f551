package wizard

import "github.com/snigdhaos/blackbox/internal/domain"

const (
	waitInternet = "Waiting For Internet Connection..."
	waitUpdate   = "Please Wait! Till We Finish The Update..."
	waitApply    = "We are applying the changes..."
)

type page struct {
	kind    domain.PageKind
	title   string
	message string
	buttons []domain.Button
}

var pages = map[domain.WizardState]page{
	domain.StateWelcome: {
		kind:  domain.PageText,
		title: "Welcome to Snigdha OS",
		message: "This assistant finishes setting up your system. It checks your internet " +
			"connection, brings every package up to date and then lets you pick extra " +
			"software and tweaks to install.",
		buttons: []domain.Button{domain.ButtonOk, domain.ButtonCancel},
	},
	domain.StateInternet: {
		kind:    domain.PageWaiting,
		title:   "Internet",
		message: waitInternet,
	},
	domain.StateUpdate: {
		kind:    domain.PageWaiting,
		title:   "System Update",
		message: waitUpdate,
	},
	domain.StateUpdateRetry: {
		kind:    domain.PageText,
		title:   "Update Failed",
		message: "The system update did not finish. Do you want to try again?",
		buttons: []domain.Button{domain.ButtonYes, domain.ButtonNo},
	},
	domain.StateQuit: {
		kind:  domain.PageText,
		title: "Quit",
		message: "Setup is not complete. Press Ok to leave now, or Reset to start over. " +
			"You can run Snigdha OS Blackbox again at any time.",
		buttons: []domain.Button{domain.ButtonOk, domain.ButtonReset},
	},
	domain.StateSelect: {
		kind:    domain.PageSelect,
		title:   "Select Software",
		message: "Pick what to install. Checked entries are applied when you press Ok.",
		buttons: []domain.Button{domain.ButtonOk, domain.ButtonCancel},
	},
	domain.StateApply: {
		kind:    domain.PageWaiting,
		title:   "Applying",
		message: waitApply,
	},
	domain.StateApplyRetry: {
		kind:    domain.PageText,
		title:   "Apply Failed",
		message: "Applying your selection did not finish. Try again, go back to the selection with Reset, or quit.",
		buttons: []domain.Button{domain.ButtonYes, domain.ButtonNo, domain.ButtonReset},
	},
	domain.StateSuccess: {
		kind:    domain.PageText,
		title:   "All Done",
		message: "Your system is ready. Enjoy Snigdha OS!",
		buttons: []domain.Button{domain.ButtonOk},
	},
}

func viewFor(state domain.WizardState, tabs []domain.CatalogTab) domain.View {
	p := pages[state]
	v := domain.View{
		State:   state,
		Page:    p.kind,
		Title:   p.title,
		Message: p.message,
		Buttons: append([]domain.Button(nil), p.buttons...),
	}
	if p.kind == domain.PageSelect {
		v.Tabs = append([]domain.CatalogTab(nil), tabs...)
	}
	return v
}
