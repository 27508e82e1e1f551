package wizard

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/snigdhaos/blackbox/internal/config"
	"github.com/snigdhaos/blackbox/internal/domain"
	"github.com/snigdhaos/blackbox/internal/engine/runner"
)

type Prober interface {
	Probe(ctx context.Context, url string, deadline time.Duration) error
}

// Guard decides whether an upgrade replaced the running binary.
type Guard interface {
	Replaced() bool
	Path() string
	Argv(token string) []string
}

// CatalogSource loads one selection tab.
type CatalogSource func() (domain.CatalogTab, error)

type Options struct {
	// Token is the resume token from the command line.
	Token string
	// SelfUpdate skips the system upgrade.
	SelfUpdate bool

	Prober        Prober
	ProbeURL      string
	ProbeDeadline time.Duration
	// ProbeInterval is the minimum spacing between probe attempts; zero
	// disables pacing.
	ProbeInterval time.Duration

	Runner         runner.Runner
	UpgradeCommand string
	ApplyScript    string
	// TempDir holds sentinels and scripts; empty means os.TempDir.
	TempDir string

	// Guard is optional; without one the binary is never considered replaced.
	Guard Guard

	// Base is the static tab, always first. Catalog is appended on the first
	// SELECT entry that can read it.
	Base    CatalogSource
	Catalog CatalogSource
}

type Engine struct {
	opt Options
}

func New(opt Options) *Engine {
	if opt.ProbeURL == "" {
		opt.ProbeURL = config.DefaultProbeURL
	}
	if opt.ProbeDeadline <= 0 {
		opt.ProbeDeadline = config.DefaultProbeTimeout
	}
	if opt.UpgradeCommand == "" {
		opt.UpgradeCommand = config.DefaultUpgradeCommand
	}
	if opt.ApplyScript == "" {
		opt.ApplyScript = config.DefaultApplyScript
	}
	return &Engine{opt: opt}
}

// Run starts the wizard on its own goroutine. Every event is sent on ch, which
// is closed when the wizard terminates, relaunches, or ctx is cancelled.
func (e *Engine) Run(ctx context.Context, ch chan<- domain.Event, actions <-chan domain.Action) {
	go func() {
		defer close(ch)

		emit := func(ev domain.Event) bool {
			if ev.TS.IsZero() {
				ev.TS = time.Now()
			}
			select {
			case <-ctx.Done():
				return false
			case ch <- ev:
				return true
			}
		}

		a := newActor(ctx, e.opt, emit)
		defer a.stop()

		a.resume(e.opt.Token)
		for !a.done {
			select {
			case <-ctx.Done():
				return
			case act, ok := <-actions:
				if !ok {
					actions = nil
					continue
				}
				a.handleAction(act)
			case c := <-a.completions:
				a.handleCompletion(c)
			}
		}
	}()
}

func newLimiter(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}
