package wizard

import (
	"context"
	"fmt"
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/snigdhaos/blackbox/internal/domain"
	"github.com/snigdhaos/blackbox/internal/engine/plan"
	"github.com/snigdhaos/blackbox/internal/engine/runner"
)

type opKind string

const (
	opProbe   opKind = "probe"
	opUpgrade opKind = "upgrade"
	opApply   opKind = "apply"
)

type operation struct {
	id    uint64
	kind  opKind
	state domain.WizardState
	epoch uint64
}

type completion struct {
	id       uint64
	probeErr error
	run      runner.Result
	// succeeded is set when the command removed its sentinel.
	succeeded bool
	cleanup   error
}

type deferredStart struct {
	epoch uint64
	start func()
}

// enter runs the entry action of the state just entered.
func (a *actor) enter(state domain.WizardState) {
	if a.pending != nil && startsOperation(state) {
		a.log(domain.SeverityTrace, "Waiting for an interrupted "+string(a.pending.kind)+" to finish.", nil)
		a.deferred = &deferredStart{epoch: a.epoch, start: func() { a.enter(state) }}
		return
	}
	switch state {
	case domain.StateInternet:
		a.attempts = 0
		a.startProbe()
	case domain.StateUpdate:
		a.startUpgrade()
	case domain.StateApply:
		a.startApply()
	}
}

func startsOperation(state domain.WizardState) bool {
	switch state {
	case domain.StateInternet, domain.StateUpdate, domain.StateApply:
		return true
	}
	return false
}

// start launches fn as the single outstanding operation. Leaving the state
// cancels ctx.
func (a *actor) start(kind opKind, fn func(ctx context.Context) completion) {
	a.seq++
	op := &operation{id: a.seq, kind: kind, state: a.state, epoch: a.epoch}
	ctx, cancel := context.WithCancel(a.ctx)
	a.res.add(func() error { cancel(); return nil })
	a.pending = op

	go func() {
		c := fn(ctx)
		c.id = op.id
		a.completions <- c
	}()
}

// startCommand runs line in a terminal. The command is not cancelled when the
// state is left, and files live until it exits, whether or not the wizard is
// still waiting for it.
func (a *actor) startCommand(kind opKind, files *runner.Scope, sentinel string, line string) {
	r := a.opt.Runner
	a.start(kind, func(ctx context.Context) completion {
		res := r.Run(context.WithoutCancel(ctx), line)
		c := completion{run: res, succeeded: runner.Succeeded(res, sentinel)}
		c.cleanup = files.Release()
		return c
	})
}

func (a *actor) handleCompletion(c completion) {
	op := a.pending
	if op == nil || op.id != c.id {
		return
	}
	a.pending = nil
	if c.cleanup != nil {
		a.warn("Unable to remove temporary files.", map[string]string{"error": c.cleanup.Error()})
	}

	if op.epoch != a.epoch {
		a.log(domain.SeverityTrace, "Dropped late "+string(op.kind)+" result.", map[string]string{"started_in": string(op.state)})
		if d := a.deferred; d != nil {
			a.deferred = nil
			if d.epoch == a.epoch {
				d.start()
			}
		}
		return
	}

	switch op.kind {
	case opProbe:
		a.probeDone(c.probeErr)
	case opUpgrade:
		a.upgradeDone(c.run, c.succeeded)
	case opApply:
		a.applyDone(c.run, c.succeeded)
	}
}

func (a *actor) startProbe() {
	a.attempts++
	url, deadline := a.opt.ProbeURL, a.opt.ProbeDeadline
	_ = a.emit(domain.Event{
		Type:     domain.EventProbe,
		State:    a.state,
		Source:   source,
		Severity: domain.SeverityTrace,
		Payload:  domain.ProbePayload{Attempt: a.attempts, URL: url, Deadline: deadline},
	})

	prober, limiter := a.opt.Prober, a.limiter
	a.start(opProbe, func(ctx context.Context) completion {
		if err := limiter.Wait(ctx); err != nil {
			return completion{probeErr: err}
		}
		return completion{probeErr: prober.Probe(ctx, url, deadline)}
	})
}

// probeDone retries until the host answers. Failures never reach the user.
func (a *actor) probeDone(err error) {
	if err == nil {
		a.log(domain.SeverityInfo, "Internet connection available.", map[string]string{"attempts": itoa(a.attempts)})
		a.transition(domain.StateUpdate)
		return
	}
	a.log(domain.SeverityTrace, "Connectivity probe failed.", map[string]string{
		"attempt": itoa(a.attempts),
		"error":   err.Error(),
	})
	a.startProbe()
}

func (a *actor) startUpgrade() {
	if a.opt.SelfUpdate {
		a.log(domain.SeverityInfo, "Self update requested; skipping the system upgrade.", nil)
		a.transition(domain.StateSelect)
		return
	}

	files := runner.NewScope(a.opt.TempDir)
	sentinel, err := files.TempFile("")
	if err != nil {
		_ = files.Release()
		a.fail("Unable to prepare the system upgrade.", err)
		return
	}
	line := upgradeCommandLine(a.opt.UpgradeCommand, sentinel)
	a.log(domain.SeverityInfo, "Starting system upgrade.", map[string]string{"command": line})
	a.startCommand(opUpgrade, files, sentinel, line)
}

// upgradeCommandLine deletes sentinel only when the upgrade succeeded and keeps
// the terminal open until the user has read the output.
func upgradeCommandLine(upgrade, sentinel string) string {
	return fmt.Sprintf("%s 2>&1 && rm %s; read -p 'Press Enter↵ to Exit'", strings.TrimSpace(upgrade), shellquote.Join(sentinel))
}

func (a *actor) upgradeDone(res runner.Result, succeeded bool) {
	token := domain.TokenUpdateRetry
	if succeeded {
		token = domain.TokenPostUpdate
	}
	a.reportRun("System upgrade", res, token == domain.TokenPostUpdate)

	if g := a.opt.Guard; g != nil && g.Replaced() {
		a.relaunch(g, token)
		return
	}
	a.resume(token)
}

// relaunch hands the new binary over to the entry point and stops the wizard.
func (a *actor) relaunch(g Guard, token string) {
	a.release()
	a.log(domain.SeverityInfo, "The wizard was updated; restarting it.", map[string]string{"token": token})
	_ = a.emit(domain.Event{
		Type:     domain.EventExecRequest,
		State:    a.state,
		Source:   source,
		Severity: domain.SeverityInfo,
		Payload:  domain.ExecRequestPayload{Path: g.Path(), Command: g.Argv(token)},
	})
	a.done = true
}

func (a *actor) startApply() {
	bundles, unknown := a.resolve(a.selected)
	if len(unknown) > 0 {
		a.warn("Ignoring unknown selections.", map[string]string{"ids": strings.Join(unknown, ", ")})
	}

	p := plan.Build(bundles)
	if p.Empty() {
		a.log(domain.SeverityInfo, "Nothing selected to install.", nil)
		a.transition(domain.StateSuccess)
		return
	}

	scope := runner.NewScope(a.opt.TempDir)
	files, err := p.Materialize(scope)
	if err != nil {
		_ = scope.Release()
		a.fail("Unable to prepare the selected changes.", err)
		return
	}
	line := shellquote.Join(append([]string{a.opt.ApplyScript}, files.Args()...)...)
	a.log(domain.SeverityInfo, "Applying selection.", map[string]string{
		"packages": strings.Join(p.Packages, " "),
		"command":  line,
	})
	a.startCommand(opApply, scope, files.Packages, line)
}

func (a *actor) applyDone(res runner.Result, ok bool) {
	a.reportRun("Apply", res, ok)
	if ok {
		a.transition(domain.StateSelect)
		return
	}
	a.transition(domain.StateApplyRetry)
}

func (a *actor) reportRun(what string, res runner.Result, ok bool) {
	fields := map[string]string{"exit_code": itoa(res.ExitCode)}
	if res.Err != nil {
		fields["error"] = res.Err.Error()
		a.warn(what+" could not start the terminal helper.", fields)
		return
	}
	if ok {
		a.log(domain.SeverityInfo, what+" finished.", fields)
		return
	}
	a.warn(what+" did not finish.", fields)
}

// resolve maps selector IDs to bundles in catalog order.
func (a *actor) resolve(ids []string) ([]domain.BundleDescriptor, []string) {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = false
	}
	var out []domain.BundleDescriptor
	for _, tab := range a.tabs {
		for _, b := range tab.Bundles {
			if _, ok := want[b.ID]; ok {
				want[b.ID] = true
				out = append(out, b)
			}
		}
	}
	var unknown []string
	for _, id := range ids {
		if !want[id] {
			unknown = append(unknown, id)
		}
	}
	return out, unknown
}

func (a *actor) loadBase() domain.CatalogTab {
	if a.opt.Base == nil {
		return domain.CatalogTab{Label: "BLACKBOX"}
	}
	tab, err := a.opt.Base()
	if err != nil {
		a.warn("Base selection unavailable.", map[string]string{"error": err.Error()})
		return domain.CatalogTab{Label: "BLACKBOX"}
	}
	return tab
}

// populate appends the catalog tab while only the base tab is present.
func (a *actor) populate() {
	if len(a.tabs) >= 2 || a.opt.Catalog == nil {
		return
	}
	tab, err := a.opt.Catalog()
	if err != nil {
		a.warn("Catalog unavailable; its tab is skipped.", map[string]string{"error": err.Error()})
		return
	}
	a.tabs = append(a.tabs, tab)
}
