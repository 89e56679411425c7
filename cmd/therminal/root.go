package main

import (
	"context"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rafabd1/therminal/internal/config"
	"github.com/rafabd1/therminal/internal/console"
	"github.com/rafabd1/therminal/internal/logging"
	"github.com/rafabd1/therminal/internal/metrics"
	"github.com/rafabd1/therminal/internal/terminal"
	"github.com/rafabd1/therminal/internal/tui"
	"github.com/rafabd1/therminal/pkg/utils"
)

var (
	configPath  string
	shellName   string
	uiMode      string
	logLevel    string
	logFile     string
	metricsAddr string
	noLogin     bool
)

var rootCmd = &cobra.Command{
	Use:   "therminal [-- shell-args...]",
	Short: "Run a shell on a pseudo-terminal",
	Long: `Starts a shell on a freshly allocated pseudo-terminal and bridges it to
this terminal.

In tui mode the shell output is shown as plain text in a scrolling view and
ctrl+] quits. In raw mode this terminal is switched to raw mode and bytes
pass through unchanged until the shell exits.

Configuration is read from ./therminal.yaml or ~/.therminal/config.yaml and
can be overridden with THERMINAL_* environment variables and the flags
below.`,
	SilenceUsage: true,
	RunE:         runSession,
}

func init() {
	f := rootCmd.Flags()
	f.StringVarP(&configPath, "config", "c", "", "Configuration file (default: search ./therminal.yaml, ~/.therminal/config.yaml)")
	f.StringVarP(&shellName, "shell", "s", "", "Shell to run (default: zsh, then $SHELL, then /bin/sh)")
	f.StringVar(&uiMode, "ui", "", "Front end: tui or raw")
	f.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	f.StringVar(&logFile, "log-file", "", "Log destination: a path or stderr")
	f.StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	f.BoolVar(&noLogin, "no-login", false, "Do not start the shell as a login shell")
}

// applyFlags overlays explicitly set flags on cfg.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	if f.Changed("shell") {
		cfg.Terminal.Shell = shellName
	}
	if f.Changed("ui") {
		cfg.UI.Mode = uiMode
	}
	if f.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if f.Changed("log-file") {
		cfg.Log.File = logFile
	}
	if f.Changed("metrics-addr") {
		cfg.Metrics.Address = metricsAddr
	}
	if f.Changed("no-login") {
		cfg.Terminal.Login = !noLogin
	}
	return cfg.Validate()
}

// controllerOptions builds the session options for cfg.
func controllerOptions(cfg *config.Config, shell terminal.Shell) terminal.Options {
	opts := terminal.DefaultOptions()
	opts.Shell = shell
	opts.Env = cfg.ChildEnv()
	opts.ControlTTY = os.Stdin
	// bubbletea manages the terminal mode itself in tui mode.
	opts.RawControl = cfg.UI.Mode == config.UIModeRaw
	opts.InputCapacity = cfg.Terminal.InputCapacity
	opts.OutputCapacity = cfg.Terminal.OutputCapacity
	opts.PollTimeout = cfg.Terminal.PollTimeout
	opts.ShutdownSignal = utils.MapSignal(cfg.Terminal.ShutdownSignal)
	return opts
}

// loggerConfig starts from the production or development preset and
// applies the configured level and file.
func loggerConfig(cfg *config.Config) logging.Config {
	lc := logging.DefaultConfig()
	if cfg.Log.Development {
		lc = logging.DevelopmentConfig()
	}
	lc.Level = cfg.Log.Level
	lc.OutputPaths = []string{cfg.Log.File}
	return lc
}

func runSession(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := applyFlags(cmd, cfg); err != nil {
		return err
	}

	logger, err := logging.New(loggerConfig(cfg))
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Logger
	log.Info("configuration loaded", zap.String("source", cfg.Source), zap.String("ui", cfg.UI.Mode))

	shell, err := terminal.ResolveShell(cfg.Terminal.Shell, cfg.Terminal.Login, args...)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	collector := metrics.New()
	opts := controllerOptions(cfg, shell)
	opts.Observer = collector.Observer()
	opts.Logger = log

	ctrl := terminal.NewPtyController(opts)
	collector.WatchBuffers(ctrl.Input(), ctrl.Output())

	if cfg.Metrics.Address != "" {
		go func() {
			if err := collector.Serve(ctx, cfg.Metrics.Address, log); err != nil {
				log.Error("metrics endpoint failed", zap.Error(err))
			}
		}()
	}

	if err := ctrl.Start(ctx); err != nil {
		return errors.Wrap(err, "start session")
	}

	runErr := runHost(ctx, cfg, shell, ctrl, log)
	closeErr := ctrl.Close()

	select {
	case <-ctrl.Exited():
		st := ctrl.ProcessState()
		log.Info("shell finished", zap.String("status", string(st.Status)), zap.Int("exit_code", st.ExitCode))
	case <-time.After(time.Second):
		log.Warn("shell still running after close")
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return closeErr
}

func runHost(ctx context.Context, cfg *config.Config, shell terminal.Shell, ctrl *terminal.PtyController, log *zap.Logger) error {
	switch cfg.UI.Mode {
	case config.UIModeRaw:
		return console.New(ctrl, console.Options{
			FrameInterval: cfg.UI.FrameInterval,
			Logger:        log,
		}).Run(ctx)
	default:
		return tui.Run(ctrl, tui.Options{
			Title:         shell.Argv0() + " on " + ctrl.Session().SlavePath(),
			FrameInterval: cfg.UI.FrameInterval,
			Logger:        log,
		})
	}
}
