package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/halfmoth/stickersync/cli/config"
	"github.com/halfmoth/stickersync/engine"
	"github.com/halfmoth/stickersync/log"
	"github.com/halfmoth/stickersync/types"
)

// Exit codes for the sync command.
const (
	exitAllConsistent = 0
	exitPacksFailed   = 1
	exitRunFatal      = 2
	exitInvalidConfig = 3
)

// SyncCommand returns the sync command.
func SyncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Reconcile the local library against the hub catalog",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Refetch every file of every published pack",
			},
			&cli.StringSliceFlag{
				Name:  "pack",
				Usage: "Restrict the run to this slug (repeatable)",
			},
			&cli.StringFlag{
				Name:  "report",
				Usage: "Write a JSON run report to PATH (use - for stderr)",
			},
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "Suppress result output",
			},
		},
		Action: syncAction,
	}
}

func syncAction(c *cli.Context) error {
	only := c.StringSlice("pack")
	for _, slug := range only {
		if err := types.ValidateSlug(slug); err != nil {
			return cli.Exit(fmt.Sprintf("invalid --pack value: %v", err), exitInvalidConfig)
		}
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), exitInvalidConfig)
	}
	logger := log.New(cfg.Log.Level)

	eng, cleanup, err := buildEngine(c.Context, cfg, logger)
	if err != nil {
		return cli.Exit(err.Error(), exitRunFatal)
	}
	defer cleanup()

	// Set up context with signal handling
	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		cancel()
	}()

	outcome, err := eng.Sync(ctx, engine.Request{
		Trigger: types.TriggerManual,
		Forced:  c.Bool("force"),
		Only:    only,
	})
	if err != nil {
		// Manifest failures, store access failures, and an already
		// running sync are all run-fatal: no partial plan was applied.
		return cli.Exit(fmt.Sprintf("sync failed: %v", err), exitRunFatal)
	}

	if path := c.String("report"); path != "" {
		report := engine.BuildSyncReport(outcome, eng.LastMetrics(), cfg.DataDir)
		if err := engine.WriteSyncReport(report, path); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: cannot write report: %v\n", err)
		}
	}

	if !c.Bool("quiet") {
		printSyncOutcome(os.Stdout, outcome)
	}

	return cli.Exit("", outcomeToExitCode(outcome))
}

// buildEngine wires a sync engine from the config. The returned cleanup
// closes the source and notifiers and must be called after the run.
func buildEngine(ctx context.Context, cfg *config.Config, logger *log.Logger) (*engine.Engine, func(), error) {
	st, jn, err := openLibrary(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	src, err := buildSource(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	notifiers, err := buildNotifiers(cfg)
	if err != nil {
		closeSource(src)
		return nil, nil, err
	}

	engCfg := engine.Config{
		Hub:           buildHub(src, cfg, logger),
		Source:        src,
		Store:         st,
		Retry:         cfg.RetryPolicy(),
		Parallel:      cfg.Concurrency,
		Journal:       jn,
		Notifiers:     notifiers,
		Logger:        logger,
		RunTimeout:    cfg.RunTimeout.Duration,
		SourceBackend: cfg.Source.Kind,
	}
	if jn != nil {
		engCfg.JournalKeep = cfg.Journal.Keep
	}

	eng, err := engine.New(engCfg)
	if err != nil {
		closeSource(src)
		_ = closeNotifiers(notifiers)
		return nil, nil, err
	}

	cleanup := func() {
		closeSource(src)
		if err := closeNotifiers(notifiers); err != nil {
			logger.Warn("notifier close failed", map[string]any{"error": err.Error()})
		}
	}
	return eng, cleanup, nil
}

// closeSource closes sources that hold connections. The S3 backend has
// nothing to release.
func closeSource(src any) {
	if closer, ok := src.(io.Closer); ok {
		_ = closer.Close()
	}
}

func outcomeToExitCode(outcome *types.SyncOutcome) int {
	if outcome.Success {
		return exitAllConsistent
	}
	return exitPacksFailed
}

func printSyncOutcome(w io.Writer, outcome *types.SyncOutcome) {
	fmt.Fprintf(w, "\nrun_id=%s, trigger=%s, forced=%t, duration=%s\n",
		outcome.RunID,
		outcome.Trigger,
		outcome.Forced,
		outcome.Duration.Round(time.Millisecond),
	)

	fmt.Fprintf(w, "\n=== Sync Result ===\n")
	fmt.Fprintf(w, "Installed:    %d\n", len(outcome.Installed))
	fmt.Fprintf(w, "Updated:      %d\n", len(outcome.Updated))
	fmt.Fprintf(w, "Removed:      %d\n", len(outcome.Removed))
	fmt.Fprintf(w, "Unchanged:    %d\n", len(outcome.Unchanged))
	fmt.Fprintf(w, "Failed:       %d\n", len(outcome.Failed))

	for _, slug := range outcome.Installed {
		fmt.Fprintf(w, "  + %s\n", slug)
	}
	for _, slug := range outcome.Updated {
		fmt.Fprintf(w, "  ~ %s\n", slug)
	}
	for _, slug := range outcome.Removed {
		fmt.Fprintf(w, "  - %s\n", slug)
	}

	if len(outcome.Failed) > 0 {
		fmt.Fprintf(w, "\n=== Failures ===\n")
		for _, f := range outcome.Failed {
			fmt.Fprintf(w, "  %s (%s): %s\n", f.Slug, f.Stage, f.Error)
		}
	}
}
