package wizard

import (
	"context"
	"errors"
	"strconv"

	"golang.org/x/time/rate"

	"github.com/snigdhaos/blackbox/internal/domain"
)

const source = "wizard"

// actor owns all wizard state. Only the Run goroutine touches it; operation
// goroutines report back through completions.
type actor struct {
	ctx     context.Context
	opt     Options
	emit    func(domain.Event) bool
	limiter *rate.Limiter

	state domain.WizardState
	view  domain.View
	// epoch changes on every transition so completions from an earlier visit
	// of the same state are recognised as stale.
	epoch uint64
	res   *resources

	tabs     []domain.CatalogTab
	selected []string
	attempts int

	seq         uint64
	pending     *operation
	deferred    *deferredStart
	completions chan completion

	done bool
}

func newActor(ctx context.Context, opt Options, emit func(domain.Event) bool) *actor {
	a := &actor{
		ctx:     ctx,
		opt:     opt,
		emit:    emit,
		limiter: newLimiter(opt.ProbeInterval),
		res:     &resources{},
		// One slot suffices: a new operation starts only after the previous
		// one has reported.
		completions: make(chan completion, 1),
	}
	a.tabs = []domain.CatalogTab{a.loadBase()}
	return a
}

// transition enters next. Re-entering the current state does nothing.
func (a *actor) transition(next domain.WizardState) {
	if a.done || next == a.state {
		return
	}
	from := a.state
	a.release()

	a.state = next
	a.epoch++
	a.res = &resources{}

	if next == domain.StateSelect {
		a.populate()
	}
	a.view = viewFor(next, a.tabs)
	_ = a.emit(domain.Event{
		Type:     domain.EventState,
		State:    next,
		Source:   source,
		Severity: domain.SeverityInfo,
		Payload:  domain.StatePayload{From: from, View: a.view},
	})
	a.enter(next)
}

// resume enters the state a resume token names.
func (a *actor) resume(token string) {
	a.transition(domain.ResumeState(token))
}

func (a *actor) terminate() {
	a.log(domain.SeverityInfo, "Wizard finished.", nil)
	a.done = true
}

func (a *actor) stop() {
	a.done = true
	a.release()
}

// release frees everything the current state acquired.
func (a *actor) release() {
	a.deferred = nil
	if a.res == nil {
		return
	}
	if err := a.res.release(); err != nil {
		a.warn("Unable to release the previous page.", map[string]string{"error": err.Error()})
	}
	a.res = nil
}

func (a *actor) handleAction(act domain.Action) {
	switch act.Type {
	case domain.ActionInterrupt:
		if a.state == domain.StateQuit {
			a.terminate()
			return
		}
		a.transition(domain.StateQuit)

	case domain.ActionSelectButton:
		if a.view.Page != domain.PageSelect {
			a.ignored(act)
			return
		}
		if act.Button == domain.ButtonOk {
			a.selected = append([]string(nil), act.Selected...)
			a.transition(domain.StateApply)
			return
		}
		a.transition(domain.StateQuit)

	case domain.ActionTextButton:
		if a.view.Page != domain.PageText || !a.view.HasButton(act.Button) {
			a.ignored(act)
			return
		}
		a.onTextButton(act.Button)

	default:
		a.ignored(act)
	}
}

func (a *actor) onTextButton(b domain.Button) {
	switch a.state {
	case domain.StateWelcome:
		if b == domain.ButtonOk {
			a.transition(domain.StateInternet)
		}
	case domain.StateUpdateRetry:
		if b == domain.ButtonYes {
			a.transition(domain.StateInternet)
		}
	case domain.StateApplyRetry:
		switch b {
		case domain.ButtonYes:
			a.transition(domain.StateApply)
		case domain.ButtonReset:
			a.transition(domain.StateSelect)
		}
	case domain.StateSuccess:
		if b == domain.ButtonOk {
			a.terminate()
		}
	case domain.StateQuit:
		if b == domain.ButtonOk || b == domain.ButtonNo {
			a.terminate()
		} else {
			a.transition(domain.StateWelcome)
		}
	}
	// No and Cancel leave every other page for QUIT.
	if b == domain.ButtonNo || b == domain.ButtonCancel {
		a.transition(domain.StateQuit)
	}
}

func (a *actor) ignored(act domain.Action) {
	a.log(domain.SeverityTrace, "Ignored input for this page.", map[string]string{
		"action": string(act.Type),
		"button": string(act.Button),
	})
}

func (a *actor) log(sev domain.Severity, msg string, fields map[string]string) {
	_ = a.emit(domain.Event{
		Type:     domain.EventLog,
		State:    a.state,
		Source:   source,
		Severity: sev,
		Payload:  domain.LogPayload{Message: msg, Fields: fields},
	})
}

func (a *actor) warn(msg string, fields map[string]string) {
	_ = a.emit(domain.Event{
		Type:     domain.EventWarning,
		State:    a.state,
		Source:   source,
		Severity: domain.SeverityWarn,
		Payload:  domain.LogPayload{Message: msg, Fields: fields},
	})
}

// fail reports an unexpected error and routes the user to QUIT.
func (a *actor) fail(msg string, err error) {
	_ = a.emit(domain.Event{
		Type:     domain.EventError,
		State:    a.state,
		Source:   source,
		Severity: domain.SeverityError,
		Payload:  domain.LogPayload{Message: msg, Fields: map[string]string{"error": err.Error()}},
	})
	a.transition(domain.StateQuit)
}

// resources is everything acquired by one state's entry action.
type resources struct {
	releases []func() error
}

func (r *resources) add(fn func() error) {
	r.releases = append(r.releases, fn)
}

// release runs in reverse order of acquisition.
func (r *resources) release() error {
	var errs []error
	for i := len(r.releases) - 1; i >= 0; i-- {
		if err := r.releases[i](); err != nil {
			errs = append(errs, err)
		}
	}
	r.releases = nil
	return errors.Join(errs...)
}

func itoa(n int) string { return strconv.Itoa(n) }
