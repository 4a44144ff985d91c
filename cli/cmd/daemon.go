package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/halfmoth/stickersync/engine"
	"github.com/halfmoth/stickersync/log"
	"github.com/halfmoth/stickersync/types"
)

// DaemonCommand returns the daemon command.
func DaemonCommand() *cli.Command {
	return &cli.Command{
		Name:   "daemon",
		Usage:  "Run in the foreground, syncing on the configured schedule",
		Action: daemonAction,
	}
}

func daemonAction(c *cli.Context) error {
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

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		cancel()
	}()

	interval := cfg.AutoSync.Interval.Duration
	logger.Info("daemon started", map[string]any{
		"data_dir":  cfg.DataDir,
		"auto_sync": cfg.AutoSync.Enabled,
		"interval":  interval.String(),
	})

	if cfg.AutoSync.Enabled {
		daemonSync(ctx, eng, logger, types.TriggerStartup, cfg.AutoSync.Forced)
	}

	if interval <= 0 {
		<-ctx.Done()
		logger.Info("daemon stopped", nil)
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("daemon stopped", nil)
			return nil
		case <-ticker.C:
			daemonSync(ctx, eng, logger, types.TriggerInterval, cfg.AutoSync.Forced)
		}
	}
}

// daemonSync performs one unattended run. The engine logs the run
// itself; only run-fatal errors surface here. A failed run never stops
// the daemon.
func daemonSync(ctx context.Context, eng *engine.Engine, logger *log.Logger, trigger types.SyncTrigger, forced bool) {
	_, err := eng.Sync(ctx, engine.Request{Trigger: trigger, Forced: forced})
	if err != nil && ctx.Err() == nil {
		logger.Error("sync failed", map[string]any{
			"trigger": string(trigger),
			"error":   err.Error(),
		})
	}
}
