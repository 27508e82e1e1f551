package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"github.com/snigdhaos/blackbox/internal/catalog"
	"github.com/snigdhaos/blackbox/internal/config"
	"github.com/snigdhaos/blackbox/internal/domain"
	"github.com/snigdhaos/blackbox/internal/engine/mock"
	"github.com/snigdhaos/blackbox/internal/engine/relaunch"
	"github.com/snigdhaos/blackbox/internal/engine/runner"
	"github.com/snigdhaos/blackbox/internal/engine/wizard"
	"github.com/snigdhaos/blackbox/internal/logging"
	"github.com/snigdhaos/blackbox/internal/platform"
	"github.com/snigdhaos/blackbox/internal/services/connectivity"
	"github.com/snigdhaos/blackbox/internal/ui"
)

var (
	Version   = "dev"
	GitCommit = "none"
	BuildDate = "unknown"
)

// SelfUpdateEnv, when present, skips the system upgrade.
const SelfUpdateEnv = "SNIGDHAOS_BLACKBOX_SELFUPDATE"

type options struct {
	cli     bool
	log     bool
	config  string
	dryRun  bool
	token   string
	version string
}

// exitError carries a process exit code out of RunE. Anything else cobra
// returns is a usage error.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer cancel()

	os.Exit(run(ctx, os.Args[1:]))
}

func run(ctx context.Context, args []string) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	fmt.Fprintln(os.Stderr, err)
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return 2
}

func newRootCmd() *cobra.Command {
	opt := options{}
	cmd := &cobra.Command{
		Use:     "snigdhaos-blackbox [RESUME_TOKEN]",
		Short:   "Snigdha OS first-run assistant",
		Version: fmt.Sprintf("%s (%s, %s)", Version, GitCommit, BuildDate),
		Long: `Snigdha OS Blackbox finishes a fresh installation: it waits for a network
connection, upgrades the system, then installs the software you pick.

RESUME_TOKEN is used when the assistant restarts itself after upgrading its own
package (POST_UPDATE or UPDATE_RETRY).`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opt.token = strings.TrimSpace(args[0])
			}
			opt.version = Version
			return runWizard(cmd.Context(), opt)
		},
	}
	cmd.Flags().BoolVar(&opt.cli, "cli", false, "Run in line-oriented mode (no TUI)")
	cmd.Flags().BoolVar(&opt.log, "log", false, "Always write the run log")
	cmd.Flags().StringVar(&opt.config, "config", "", "Config file (default "+config.DefaultPath+")")
	cmd.Flags().BoolVar(&opt.dryRun, "dry-run", false, "Simulate the network and terminal commands")
	return cmd
}

func runWizard(ctx context.Context, opt options) error {
	cfg, err := config.Load(opt.config)
	if err != nil {
		return &exitError{code: 1, err: err}
	}
	if !opt.cli && !term.IsTerminal(os.Stdout.Fd()) {
		return &exitError{code: 1, err: errors.New("stdout is not a terminal; use --cli")}
	}

	engine, err := buildEngine(cfg, opt)
	if err != nil {
		return &exitError{code: 1, err: err}
	}

	mode := "tui"
	if opt.cli {
		mode = "cli"
	}
	logger := logging.NewEventLogger(logging.Config{
		Always:  opt.log,
		Dir:     cfg.LogDir,
		Version: opt.version,
		Mode:    mode,
		Token:   opt.token,
		DryRun:  opt.dryRun,
	})

	events := make(chan domain.Event, 256)
	actions := make(chan domain.Action, 16)
	engineCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	engine.Run(engineCtx, events, actions)

	var (
		exec   *domain.ExecRequestPayload
		runErr error
	)
	if opt.cli {
		exec, runErr = runCLI(ctx, events, actions, logger)
	} else {
		res, err := ui.Run(ctx, events, actions, ui.Meta{Version: opt.version}, logger.Record)
		exec, runErr = res.Exec, err
	}
	cancel()

	if runErr != nil {
		logger.MarkFailure()
	}
	logRes, logErr := logger.Finalize()
	if logErr != nil {
		fmt.Fprintln(os.Stderr, logErr)
	}
	if logRes.Written {
		fmt.Fprintf(os.Stderr, "Run log saved to %s\n", logRes.Path)
	}
	if runErr != nil {
		return &exitError{code: 1, err: runErr}
	}

	if exec != nil {
		if err := relaunch.Exec(exec.Path, relaunchArgv(exec.Command, opt)); err != nil {
			return &exitError{code: 1, err: fmt.Errorf("relaunch %s: %w", exec.Path, err)}
		}
	}
	return nil
}

// relaunchArgv carries the mode flags of this run over to the relaunched
// process. Flags follow the resume token.
func relaunchArgv(argv []string, opt options) []string {
	out := slices.Clone(argv)
	if opt.cli {
		out = append(out, "--cli")
	}
	if opt.log {
		out = append(out, "--log")
	}
	if opt.dryRun {
		out = append(out, "--dry-run")
	}
	if opt.config != "" {
		out = append(out, "--config", opt.config)
	}
	return out
}

func buildEngine(cfg *config.Config, opt options) (*wizard.Engine, error) {
	guard, err := relaunch.Capture("")
	if err != nil {
		return nil, err
	}
	info := platform.NewProbe(cfg.ChassisPath).Detect()
	_, selfUpdate := os.LookupEnv(SelfUpdateEnv)

	wopt := wizard.Options{
		Token:          opt.token,
		SelfUpdate:     selfUpdate,
		ProbeURL:       cfg.ProbeURL,
		ProbeDeadline:  cfg.ProbeTimeout.Duration,
		ProbeInterval:  cfg.ProbeRetryInterval.Duration,
		UpgradeCommand: cfg.UpgradeCommand,
		ApplyScript:    cfg.ApplyScript,
		Guard:          guard,
		Base: func() (domain.CatalogTab, error) {
			return catalog.LoadBaseFile(cfg.BaseCatalogPath, info)
		},
		Catalog: func() (domain.CatalogTab, error) {
			return catalog.LoadFile(cfg.CatalogPath, cfg.CatalogLabel)
		},
	}
	if opt.dryRun {
		p, r := mock.NewDryRun()
		wopt.Prober, wopt.Runner = p, r
	} else {
		wopt.Prober = connectivity.New()
		wopt.Runner = runner.Terminal{Helper: cfg.TerminalHelper}
	}
	return wizard.New(wopt), nil
}
