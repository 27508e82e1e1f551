// Package mock provides scripted stand-ins for the connectivity prober and the
// terminal runner. They back --dry-run and the wizard tests; nothing they do
// needs privileges or network access.
package mock

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kballard/go-shellquote"

	"github.com/snigdhaos/blackbox/internal/engine/runner"
)

// ErrOffline is what a scripted probe failure reports.
var ErrOffline = errors.New("mock: network unreachable")

// tempPrefix matches the names runner.Scope gives its files.
const tempPrefix = "snigdhaos-blackbox-"

// Gauge records how many scripted operations run at once. A nil Gauge is
// valid and records nothing.
type Gauge struct {
	mu  sync.Mutex
	cur int
	max int
}

func (g *Gauge) enter() {
	if g == nil {
		return
	}
	g.mu.Lock()
	g.cur++
	if g.cur > g.max {
		g.max = g.cur
	}
	g.mu.Unlock()
}

func (g *Gauge) leave() {
	if g == nil {
		return
	}
	g.mu.Lock()
	g.cur--
	g.mu.Unlock()
}

// Max is the highest concurrency observed.
func (g *Gauge) Max() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.max
}

type ProbeStep struct {
	Err   error
	Delay time.Duration
}

// Prober replays Steps in order, then reports reachable for every later call.
type Prober struct {
	Steps []ProbeStep
	Gauge *Gauge

	mu    sync.Mutex
	calls int
}

func (p *Prober) Probe(ctx context.Context, _ string, _ time.Duration) error {
	p.Gauge.enter()
	defer p.Gauge.leave()

	p.mu.Lock()
	i := p.calls
	p.calls++
	p.mu.Unlock()

	var step ProbeStep
	if i < len(p.Steps) {
		step = p.Steps[i]
	}
	if !sleep(ctx, step.Delay) {
		return ctx.Err()
	}
	return step.Err
}

func (p *Prober) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// Outcome scripts one terminal run. The zero Outcome is a clean success.
type Outcome struct {
	ExitCode int
	// Err simulates a helper that could not be started.
	Err error
	// KeepSentinel simulates a terminal closed before the command ran.
	KeepSentinel bool
	Delay        time.Duration

	// Inspect sees the split command line while its files still exist.
	Inspect func(args []string)
	// Replace runs before the outcome is reported, e.g. to touch the binary.
	Replace func()
}

// Runner replays Outcomes in order, then succeeds for every later call. On
// success it deletes every scoped temp file named on the command line, which
// is what both the upgrade command and apply.sh do with their sentinel.
type Runner struct {
	Outcomes []Outcome
	Gauge    *Gauge

	mu    sync.Mutex
	calls []string
}

func (r *Runner) Run(ctx context.Context, commandLine string) runner.Result {
	r.Gauge.enter()
	defer r.Gauge.leave()

	r.mu.Lock()
	i := len(r.calls)
	r.calls = append(r.calls, commandLine)
	r.mu.Unlock()

	var out Outcome
	if i < len(r.Outcomes) {
		out = r.Outcomes[i]
	}

	args, err := shellquote.Split(commandLine)
	if err != nil {
		return runner.Result{ExitCode: -1, Err: err}
	}
	if out.Inspect != nil {
		out.Inspect(args)
	}
	if !sleep(ctx, out.Delay) {
		return runner.Result{ExitCode: -1, Err: ctx.Err()}
	}
	if out.Err != nil {
		return runner.Result{ExitCode: -1, Err: out.Err}
	}
	if out.Replace != nil {
		out.Replace()
	}
	if out.ExitCode == 0 && !out.KeepSentinel {
		removeScoped(args)
	}
	return runner.Result{ExitCode: out.ExitCode}
}

func (r *Runner) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func removeScoped(args []string) {
	for _, a := range args {
		a = strings.TrimRight(a, ";&|")
		if !strings.HasPrefix(filepath.Base(a), tempPrefix) {
			continue
		}
		_ = os.Remove(a)
	}
}

// NewDryRun builds a slowed-down prober and runner for interactive dry runs.
//
//	SNIGDHAOS_BLACKBOX_MOCK_SPEED    divides every delay (default 1)
//	SNIGDHAOS_BLACKBOX_MOCK_OFFLINE  number of failed probes before success
//	SNIGDHAOS_BLACKBOX_MOCK_FAIL_RUN 1-based terminal run that exits 1
func NewDryRun() (*Prober, *Runner) {
	speed := envInt("SNIGDHAOS_BLACKBOX_MOCK_SPEED", 1)
	if speed < 1 {
		speed = 1
	}
	delay := func(d time.Duration) time.Duration { return d / time.Duration(speed) }

	p := &Prober{}
	for i := 0; i < envInt("SNIGDHAOS_BLACKBOX_MOCK_OFFLINE", 0); i++ {
		p.Steps = append(p.Steps, ProbeStep{Err: ErrOffline, Delay: delay(700 * time.Millisecond)})
	}
	p.Steps = append(p.Steps, ProbeStep{Delay: delay(700 * time.Millisecond)})

	r := &Runner{}
	failRun := envInt("SNIGDHAOS_BLACKBOX_MOCK_FAIL_RUN", 0)
	for i := 1; i <= 8; i++ {
		out := Outcome{Delay: delay(2 * time.Second)}
		if i == failRun {
			out.ExitCode = 1
		}
		r.Outcomes = append(r.Outcomes, out)
	}
	return p, r
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func envInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
