package wizard

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kballard/go-shellquote"
	"github.com/stretchr/testify/require"

	"github.com/snigdhaos/blackbox/internal/config"
	"github.com/snigdhaos/blackbox/internal/domain"
	"github.com/snigdhaos/blackbox/internal/engine/mock"
	"github.com/snigdhaos/blackbox/internal/engine/runner"
	"github.com/snigdhaos/blackbox/internal/services/connectivity"
)

const waitTimeout = 5 * time.Second

type fakeGuard struct {
	replaced atomic.Bool
}

func (g *fakeGuard) Replaced() bool { return g.replaced.Load() }
func (g *fakeGuard) Path() string { return "/usr/bin/snigdhaos-blackbox" }
func (g *fakeGuard) Argv(token string) []string { return []string{"snigdhaos-blackbox", token} }

type harness struct {
	t       *testing.T
	events  chan domain.Event
	actions chan domain.Action
	seen    []domain.Event
}

func start(t *testing.T, opt Options) *harness {
	t.Helper()
	if opt.TempDir == "" {
		opt.TempDir = t.TempDir()
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	h := &harness{
		t:       t,
		events:  make(chan domain.Event, 64),
		actions: make(chan domain.Action, 4),
	}
	New(opt).Run(ctx, h.events, h.actions)
	return h
}

func (h *harness) next() (domain.Event, bool) {
	h.t.Helper()
	select {
	case ev, ok := <-h.events:
		if ok {
			h.seen = append(h.seen, ev)
		}
		return ev, ok
	case <-time.After(waitTimeout):
		h.t.Fatalf("timed out waiting for an event")
		return domain.Event{}, false
	}
}

// expect reads up to the next state change and requires it to be want.
func (h *harness) expect(want domain.WizardState) domain.View {
	h.t.Helper()
	for {
		ev, ok := h.next()
		if !ok {
			h.t.Fatalf("event stream closed; want state %s", want)
		}
		if ev.Type != domain.EventState {
			continue
		}
		require.Equal(h.t, want, ev.State)
		require.True(h.t, ev.State.Valid())
		return ev.Payload.(domain.StatePayload).View
	}
}

func (h *harness) expectClosed() []domain.Event {
	h.t.Helper()
	var rest []domain.Event
	for {
		ev, ok := h.next()
		if !ok {
			return rest
		}
		require.NotEqual(h.t, domain.EventState, ev.Type, "unexpected state %s", ev.State)
		rest = append(rest, ev)
	}
}

func (h *harness) press(b domain.Button) {
	h.actions <- domain.Action{Type: domain.ActionTextButton, Button: b}
}

func (h *harness) submit(b domain.Button, ids ...string) {
	h.actions <- domain.Action{Type: domain.ActionSelectButton, Button: b, Selected: ids}
}

func (h *harness) interrupt() {
	h.actions <- domain.Action{Type: domain.ActionInterrupt}
}

func (h *harness) count(typ domain.EventType) int {
	n := 0
	for _, ev := range h.seen {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

func dockerTab() (domain.CatalogTab, error) {
	return domain.CatalogTab{Label: "BLACKBOX", Bundles: []domain.BundleDescriptor{
		{ID: "BLACKBOX/docker", Label: "Docker", Packages: []string{"docker", "docker-compose"}, Setup: []string{"usermod -aG docker $USER"}},
		{ID: "BLACKBOX/flatpak", Label: "Flatpak", Packages: []string{"flatpak"}},
	}}, nil
}

func TestHappyPath(t *testing.T) {
	t.Parallel()

	r := &mock.Runner{}
	h := start(t, Options{Prober: &mock.Prober{}, Runner: r, Guard: &fakeGuard{}})

	view := h.expect(domain.StateWelcome)
	require.Equal(t, []domain.Button{domain.ButtonOk, domain.ButtonCancel}, view.Buttons)
	h.press(domain.ButtonOk)

	view = h.expect(domain.StateInternet)
	require.Equal(t, domain.PageWaiting, view.Page)
	require.Equal(t, "Waiting For Internet Connection...", view.Message)
	require.Empty(t, view.Buttons)

	view = h.expect(domain.StateUpdate)
	require.Equal(t, "Please Wait! Till We Finish The Update...", view.Message)

	view = h.expect(domain.StateSelect)
	require.Equal(t, domain.PageSelect, view.Page)
	h.submit(domain.ButtonOk)

	view = h.expect(domain.StateApply)
	require.Equal(t, "We are applying the changes...", view.Message)
	h.expect(domain.StateSuccess)
	h.press(domain.ButtonOk)
	h.expectClosed()

	require.Len(t, r.Calls(), 1, "only the upgrade runs; an empty plan spawns nothing")
	require.Contains(t, r.Calls()[0], "sudo pacman -Syyu 2>&1 && rm ")
	require.Contains(t, r.Calls()[0], "; read -p 'Press Enter↵ to Exit'")
	require.Zero(t, h.count(domain.EventExecRequest))
}

func TestSelfReplacingUpgradeRequestsRelaunch(t *testing.T) {
	t.Parallel()

	g := &fakeGuard{}
	r := &mock.Runner{Outcomes: []mock.Outcome{{Replace: func() { g.replaced.Store(true) }}}}
	dir := t.TempDir()
	h := start(t, Options{Prober: &mock.Prober{}, Runner: r, Guard: g, TempDir: dir})

	h.expect(domain.StateWelcome)
	h.press(domain.ButtonOk)
	h.expect(domain.StateInternet)
	h.expect(domain.StateUpdate)

	rest := h.expectClosed()
	var exec *domain.ExecRequestPayload
	for _, ev := range rest {
		if ev.Type == domain.EventExecRequest {
			p := ev.Payload.(domain.ExecRequestPayload)
			exec = &p
		}
	}
	require.NotNil(t, exec)
	require.Equal(t, "/usr/bin/snigdhaos-blackbox", exec.Path)
	require.Equal(t, []string{"snigdhaos-blackbox", domain.TokenPostUpdate}, exec.Command)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries, "temp files are released before relaunch")

	// The relaunched process resumes at SELECT.
	h2 := start(t, Options{Token: exec.Command[1], Prober: &mock.Prober{}, Runner: &mock.Runner{}})
	h2.expect(domain.StateSelect)
}

func TestFailedUpgradeThatReplacedBinaryRelaunchesIntoRetry(t *testing.T) {
	t.Parallel()

	g := &fakeGuard{}
	r := &mock.Runner{Outcomes: []mock.Outcome{{ExitCode: 1, Replace: func() { g.replaced.Store(true) }}}}
	h := start(t, Options{Token: "anything", Prober: &mock.Prober{}, Runner: r, Guard: g})

	h.expect(domain.StateWelcome)
	h.press(domain.ButtonOk)
	h.expect(domain.StateInternet)
	h.expect(domain.StateUpdate)
	for _, ev := range h.expectClosed() {
		if ev.Type == domain.EventExecRequest {
			require.Equal(t, []string{"snigdhaos-blackbox", domain.TokenUpdateRetry}, ev.Payload.(domain.ExecRequestPayload).Command)
			return
		}
	}
	t.Fatalf("no exec request")
}

func TestUpgradeFailureThenRetry(t *testing.T) {
	t.Parallel()

	r := &mock.Runner{Outcomes: []mock.Outcome{{ExitCode: 1}, {KeepSentinel: true}}}
	p := &mock.Prober{}
	h := start(t, Options{Prober: p, Runner: r, Guard: &fakeGuard{}})

	h.expect(domain.StateWelcome)
	h.press(domain.ButtonOk)
	h.expect(domain.StateInternet)
	h.expect(domain.StateUpdate)

	view := h.expect(domain.StateUpdateRetry)
	require.Equal(t, []domain.Button{domain.ButtonYes, domain.ButtonNo}, view.Buttons)
	h.press(domain.ButtonYes)
	h.expect(domain.StateInternet)
	h.expect(domain.StateUpdate)

	// Exit 0 with a surviving sentinel is still a failure.
	h.expect(domain.StateUpdateRetry)
	h.press(domain.ButtonNo)
	h.expect(domain.StateQuit)

	require.Equal(t, 2, p.Calls())
	require.Len(t, r.Calls(), 2)
}

func TestApplyWithDockerSelected(t *testing.T) {
	t.Parallel()

	var packages, setup string
	read := func(path string) string {
		b, err := os.ReadFile(path)
		require.NoError(t, err)
		return string(b)
	}
	r := &mock.Runner{Outcomes: []mock.Outcome{{
		Inspect: func(args []string) {
			require.Len(t, args, 4)
			require.Equal(t, "/usr/lib/snigdhaos-blackbox/apply.sh", args[0])
			packages = read(args[2])
			setup = read(args[3])
		},
	}}}

	var catalogLoads atomic.Int32
	catalog := func() (domain.CatalogTab, error) {
		catalogLoads.Add(1)
		return domain.CatalogTab{Label: "WEBAPP", Bundles: []domain.BundleDescriptor{
			{ID: "WEBAPP/0", Packages: []string{"docker"}, Label: "Docker again"},
		}}, nil
	}
	dir := t.TempDir()
	h := start(t, Options{
		Token:   domain.TokenPostUpdate,
		Prober:  &mock.Prober{},
		Runner:  r,
		Base:    dockerTab,
		Catalog: catalog,
		TempDir: dir,
	})

	view := h.expect(domain.StateSelect)
	require.Len(t, view.Tabs, 2)
	require.Equal(t, "WEBAPP", view.Tabs[1].Label)
	h.submit(domain.ButtonOk, "BLACKBOX/docker", "WEBAPP/0")

	h.expect(domain.StateApply)
	view = h.expect(domain.StateSelect)
	require.Len(t, view.Tabs, 2, "re-entering SELECT must not add tabs")
	require.EqualValues(t, 1, catalogLoads.Load())

	require.Equal(t, "docker docker-compose", packages)
	require.Equal(t, "usermod -aG docker $USER\nsystemctl enable --now docker.socket", setup)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries, "apply files are released once the command exits")
}

func TestApplyFailureRetryAndReset(t *testing.T) {
	t.Parallel()

	r := &mock.Runner{Outcomes: []mock.Outcome{{ExitCode: 2}, {KeepSentinel: true}}}
	h := start(t, Options{Token: domain.TokenPostUpdate, Prober: &mock.Prober{}, Runner: r, Base: dockerTab})

	h.expect(domain.StateSelect)
	h.submit(domain.ButtonOk, "BLACKBOX/flatpak")
	h.expect(domain.StateApply)

	view := h.expect(domain.StateApplyRetry)
	require.Equal(t, []domain.Button{domain.ButtonYes, domain.ButtonNo, domain.ButtonReset}, view.Buttons)
	h.press(domain.ButtonYes)

	// Retry reuses the last submitted selection.
	h.expect(domain.StateApply)
	h.expect(domain.StateApplyRetry)
	h.press(domain.ButtonReset)
	h.expect(domain.StateSelect)

	calls := r.Calls()
	require.Len(t, calls, 2)
	require.NotEqual(t, calls[0], calls[1], "each attempt gets fresh temp files")
}

func TestCancelAtSelection(t *testing.T) {
	t.Parallel()

	h := start(t, Options{Token: domain.TokenPostUpdate, Prober: &mock.Prober{}, Runner: &mock.Runner{}})

	h.expect(domain.StateSelect)
	h.submit(domain.ButtonCancel)
	view := h.expect(domain.StateQuit)
	require.Equal(t, []domain.Button{domain.ButtonOk, domain.ButtonReset}, view.Buttons)
	h.press(domain.ButtonReset)
	h.expect(domain.StateWelcome)
}

func TestOfflineStart(t *testing.T) {
	t.Parallel()

	p := &mock.Prober{Steps: []mock.ProbeStep{
		{Err: mock.ErrOffline},
		{Err: connectivity.ErrTimeout},
		{Err: mock.ErrOffline},
	}}
	h := start(t, Options{Prober: p, Runner: &mock.Runner{}, ProbeInterval: time.Millisecond, SelfUpdate: true})

	h.expect(domain.StateWelcome)
	h.press(domain.ButtonOk)
	h.expect(domain.StateInternet)
	h.expect(domain.StateUpdate)

	require.Equal(t, 4, p.Calls())
	require.Equal(t, 4, h.count(domain.EventProbe))
	require.Zero(t, h.count(domain.EventWarning))
	require.Zero(t, h.count(domain.EventError))

	// SelfUpdate skips the upgrade.
	h.expect(domain.StateSelect)
}

func TestProbeRetriesArePaced(t *testing.T) {
	t.Parallel()

	p := &mock.Prober{Steps: []mock.ProbeStep{{Err: mock.ErrOffline}, {Err: mock.ErrOffline}}}
	h := start(t, Options{Token: domain.TokenUpdateRetry, Prober: p, Runner: &mock.Runner{}, ProbeInterval: 50 * time.Millisecond, SelfUpdate: true})

	h.expect(domain.StateUpdateRetry)
	begin := time.Now()
	h.press(domain.ButtonYes)
	h.expect(domain.StateInternet)
	h.expect(domain.StateUpdate)
	require.GreaterOrEqual(t, time.Since(begin), 100*time.Millisecond)
}

func TestProbeRetriesAreImmediateByDefault(t *testing.T) {
	t.Parallel()

	p := &mock.Prober{Steps: []mock.ProbeStep{{Err: mock.ErrOffline}, {Err: mock.ErrOffline}, {Err: mock.ErrOffline}}}
	interval := config.Default().ProbeRetryInterval.Duration
	h := start(t, Options{Token: domain.TokenUpdateRetry, Prober: p, Runner: &mock.Runner{}, ProbeInterval: interval, SelfUpdate: true})

	h.expect(domain.StateUpdateRetry)
	begin := time.Now()
	h.press(domain.ButtonYes)
	h.expect(domain.StateInternet)
	h.expect(domain.StateUpdate)
	require.Less(t, time.Since(begin), 500*time.Millisecond)
	require.Equal(t, 4, p.Calls())
}

func TestIgnoresButtonsNotOnThePage(t *testing.T) {
	t.Parallel()

	h := start(t, Options{Prober: &mock.Prober{}, Runner: &mock.Runner{}, SelfUpdate: true})

	h.expect(domain.StateWelcome)
	h.press(domain.ButtonYes)
	h.press(domain.ButtonReset)
	h.submit(domain.ButtonOk)
	h.press(domain.ButtonCancel)
	h.expect(domain.StateQuit)
	h.press(domain.ButtonOk)
	h.expectClosed()
}

func TestInterruptInQuitTerminates(t *testing.T) {
	t.Parallel()

	h := start(t, Options{Token: domain.TokenUpdateRetry, Prober: &mock.Prober{}, Runner: &mock.Runner{}})
	h.expect(domain.StateUpdateRetry)
	h.press(domain.ButtonNo)
	h.expect(domain.StateQuit)
	h.interrupt()
	h.expectClosed()
}

func TestInterruptDuringProbeDropsLateResult(t *testing.T) {
	t.Parallel()

	g := &mock.Gauge{}
	p := &mock.Prober{Gauge: g, Steps: []mock.ProbeStep{{Delay: time.Hour}}}
	h := start(t, Options{Prober: p, Runner: &mock.Runner{}, SelfUpdate: true})

	h.expect(domain.StateWelcome)
	h.press(domain.ButtonOk)
	h.expect(domain.StateInternet)
	h.interrupt()
	h.expect(domain.StateQuit)
	h.press(domain.ButtonReset)
	h.expect(domain.StateWelcome)
	h.press(domain.ButtonOk)
	h.expect(domain.StateInternet)
	h.expect(domain.StateUpdate)
	h.expect(domain.StateSelect)

	require.Equal(t, 2, p.Calls())
	require.Equal(t, 1, g.Max())
}

func TestInterruptedUpgradeNeverOverlapsNextOne(t *testing.T) {
	t.Parallel()

	g := &mock.Gauge{}
	r := &mock.Runner{Gauge: g, Outcomes: []mock.Outcome{{Delay: 200 * time.Millisecond}}}
	h := start(t, Options{Prober: &mock.Prober{}, Runner: r, Guard: &fakeGuard{}})

	h.expect(domain.StateWelcome)
	h.press(domain.ButtonOk)
	h.expect(domain.StateInternet)
	h.expect(domain.StateUpdate)
	h.interrupt()
	h.expect(domain.StateQuit)
	h.press(domain.ButtonReset)
	h.expect(domain.StateWelcome)
	h.press(domain.ButtonOk)
	h.expect(domain.StateInternet)
	h.expect(domain.StateUpdate)
	h.expect(domain.StateSelect)

	require.Len(t, r.Calls(), 2)
	require.Equal(t, 1, g.Max())
}

// lingeringRunner stands in for a terminal the user keeps open after leaving
// the wizard page. It ignores ctx and checks its file arguments when it ends.
type lingeringRunner struct {
	cancelled atomic.Bool
	missing   atomic.Int32
	finished  chan struct{}
}

func (r *lingeringRunner) Run(ctx context.Context, line string) runner.Result {
	defer close(r.finished)
	time.Sleep(300 * time.Millisecond)
	r.cancelled.Store(ctx.Err() != nil)

	args, err := shellquote.Split(line)
	if err != nil {
		return runner.Result{ExitCode: -1, Err: err}
	}
	for _, path := range args[1:] {
		if _, err := os.Stat(path); err != nil {
			r.missing.Add(1)
		}
	}
	return runner.Result{ExitCode: 1}
}

func TestInterruptedApplyLeavesCommandRunning(t *testing.T) {
	t.Parallel()

	r := &lingeringRunner{finished: make(chan struct{})}
	dir := t.TempDir()
	h := start(t, Options{Token: domain.TokenPostUpdate, Prober: &mock.Prober{}, Runner: r, Base: dockerTab, TempDir: dir})

	h.expect(domain.StateSelect)
	h.submit(domain.ButtonOk, "BLACKBOX/docker")
	h.expect(domain.StateApply)
	h.interrupt()
	h.expect(domain.StateQuit)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 3, "prepare, packages and setup stay while the command runs")

	select {
	case <-r.finished:
	case <-time.After(waitTimeout):
		t.Fatalf("command never finished")
	}
	require.False(t, r.cancelled.Load(), "leaving APPLY must not cancel the command")
	require.Zero(t, r.missing.Load())

	require.Eventually(t, func() bool {
		entries, err := os.ReadDir(dir)
		return err == nil && len(entries) == 0
	}, waitTimeout, 10*time.Millisecond, "files are removed once the command exits")

	// The late failure does not move the wizard out of QUIT.
	h.press(domain.ButtonOk)
	h.expectClosed()
}

func TestEmptyPlanSpawnsNothing(t *testing.T) {
	t.Parallel()

	r := &mock.Runner{}
	base := func() (domain.CatalogTab, error) {
		return domain.CatalogTab{Label: "BLACKBOX", Bundles: []domain.BundleDescriptor{
			{ID: "BLACKBOX/hooks", Packages: []string{""}, Setup: []string{"echo only a hook"}},
		}}, nil
	}
	h := start(t, Options{Token: domain.TokenPostUpdate, Prober: &mock.Prober{}, Runner: r, Base: base})

	h.expect(domain.StateSelect)
	h.submit(domain.ButtonOk, "BLACKBOX/hooks", "BLACKBOX/missing")
	h.expect(domain.StateApply)
	h.expect(domain.StateSuccess)
	require.Empty(t, r.Calls())
	require.Equal(t, 1, h.count(domain.EventWarning), "unknown selection is reported")
}

func TestUnreadableCatalogDegradesSilently(t *testing.T) {
	t.Parallel()

	var loads atomic.Int32
	catalog := func() (domain.CatalogTab, error) {
		loads.Add(1)
		return domain.CatalogTab{}, errors.New("catalog unreadable")
	}
	h := start(t, Options{Token: domain.TokenPostUpdate, Prober: &mock.Prober{}, Runner: &mock.Runner{}, Base: dockerTab, Catalog: catalog})

	view := h.expect(domain.StateSelect)
	require.Len(t, view.Tabs, 1)
	require.Zero(t, h.count(domain.EventError))

	h.submit(domain.ButtonCancel)
	h.expect(domain.StateQuit)
	h.press(domain.ButtonReset)
	h.expect(domain.StateWelcome)
	require.EqualValues(t, 1, loads.Load())
}

func TestHelperLaunchFailureRoutesToRetry(t *testing.T) {
	t.Parallel()

	r := &mock.Runner{Outcomes: []mock.Outcome{{Err: errors.New("no such file")}}}
	h := start(t, Options{Prober: &mock.Prober{}, Runner: r})

	h.expect(domain.StateWelcome)
	h.press(domain.ButtonOk)
	h.expect(domain.StateInternet)
	h.expect(domain.StateUpdate)
	h.expect(domain.StateUpdateRetry)
	require.Equal(t, 1, h.count(domain.EventWarning))
}

func TestTransitionToCurrentStateIsNoop(t *testing.T) {
	t.Parallel()

	var events []domain.Event
	emit := func(ev domain.Event) bool { events = append(events, ev); return true }
	a := newActor(context.Background(), Options{TempDir: t.TempDir()}, emit)
	defer a.stop()

	a.transition(domain.StateWelcome)
	a.transition(domain.StateWelcome)
	require.Len(t, events, 1)
	epoch := a.epoch

	a.transition(domain.StateQuit)
	a.transition(domain.StateQuit)
	require.Len(t, events, 2)
	require.Equal(t, epoch+1, a.epoch)
	require.Equal(t, domain.StateWelcome, events[1].Payload.(domain.StatePayload).From)
}

func TestUpgradeCommandLine(t *testing.T) {
	t.Parallel()

	got := upgradeCommandLine(" sudo pacman -Syyu ", "/tmp/snigdhaos-blackbox-1")
	require.Equal(t, "sudo pacman -Syyu 2>&1 && rm /tmp/snigdhaos-blackbox-1; read -p 'Press Enter↵ to Exit'", got)

	got = upgradeCommandLine("sudo pacman -Syyu", "/tmp/with space/f")
	require.Contains(t, got, `rm '/tmp/with space/f';`)
}
