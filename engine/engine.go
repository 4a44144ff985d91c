// Package engine orchestrates sync runs end-to-end.
//
// A run fetches the hub catalog, plans the difference against the
// local store, executes the plan with bounded concurrency, records the
// outcome in the journal, and publishes completion events. Runs are
// serialized by a single-slot guard; concurrent callers fail fast.
package engine

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/halfmoth/stickersync/adapter"
	"github.com/halfmoth/stickersync/hub"
	"github.com/halfmoth/stickersync/journal"
	"github.com/halfmoth/stickersync/log"
	"github.com/halfmoth/stickersync/metrics"
	"github.com/halfmoth/stickersync/planner"
	"github.com/halfmoth/stickersync/retry"
	"github.com/halfmoth/stickersync/scheduler"
	"github.com/halfmoth/stickersync/source"
	"github.com/halfmoth/stickersync/store"
	"github.com/halfmoth/stickersync/types"
)

// ErrSyncInProgress is returned when a sync is requested while another
// run holds the guard.
var ErrSyncInProgress = errors.New("sync already in progress")

// publishTimeout caps best-effort notifier publishing after a run,
// detached from the run's own cancellation.
const publishTimeout = 30 * time.Second

// Config configures the sync engine.
type Config struct {
	// Hub fetches and validates the remote catalog (required).
	Hub *hub.Client
	// Source fetches pack files (required). The same backend the hub
	// client wraps for the catalog.
	Source source.Source
	// Store owns the local pack library (required).
	Store *store.Store
	// Retry bounds each file download.
	Retry retry.Config
	// Parallel caps simultaneous in-flight downloads.
	Parallel int
	// Journal records sync history. Nil disables history.
	Journal *journal.Journal
	// JournalKeep bounds history length after each run. Zero keeps
	// everything.
	JournalKeep int
	// Notifiers receive completion events, best effort.
	Notifiers []adapter.Adapter
	// Logger receives run logs. Nil is replaced with a no-op.
	Logger *log.Logger
	// RunTimeout bounds a whole run. Zero means no limit.
	RunTimeout time.Duration
	// SourceBackend labels metrics (github, url, s3).
	SourceBackend string
}

// Request describes one sync run.
type Request struct {
	// Trigger is the path that started the run.
	Trigger types.SyncTrigger
	// Forced refetches every file of every published pack.
	Forced bool
	// Only restricts the run to the named slugs. Empty means all.
	Only []string
}

// Engine runs syncs. Safe for concurrent use; overlapping runs are
// rejected, not queued.
type Engine struct {
	config Config
	logger *log.Logger

	guard sync.Mutex

	mu          sync.Mutex
	lastMetrics metrics.Snapshot
}

// New validates the config and returns an engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Hub == nil {
		return nil, errors.New("engine requires a hub client")
	}
	if cfg.Source == nil {
		return nil, errors.New("engine requires a source")
	}
	if cfg.Store == nil {
		return nil, errors.New("engine requires a store")
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Nop()
	}
	return &Engine{config: cfg, logger: cfg.Logger}, nil
}

// Sync performs one run. A manifest failure is run-fatal and returns a
// nil outcome with zero store mutations; pack-level failures are
// reported inside the outcome instead. Returns ErrSyncInProgress if
// another run holds the guard.
func (e *Engine) Sync(ctx context.Context, req Request) (*types.SyncOutcome, error) {
	if !e.guard.TryLock() {
		return nil, ErrSyncInProgress
	}
	defer e.guard.Unlock()

	if e.config.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.RunTimeout)
		defer cancel()
	}

	runID := uuid.NewString()
	started := time.Now()
	logger := e.logger.WithRun(runID, req.Trigger, req.Forced)
	collector := metrics.NewCollector(e.config.SourceBackend, runID, string(req.Trigger))
	defer e.setLastMetrics(collector)

	logger.Info("starting sync", map[string]any{
		"source": e.config.Hub.Describe(),
		"only":   strings.Join(req.Only, ","),
	})

	collector.IncManifestFetch()
	remote, err := e.config.Hub.Manifest(ctx)
	if err != nil {
		collector.IncManifestFetchFailure()
		logger.Error("manifest fetch failed", map[string]any{"error": err.Error()})
		return nil, err
	}

	plan := planner.Plan(remote, e.config.Store.Snapshot(), planner.Options{
		Forced: req.Forced,
		Only:   req.Only,
	})
	fetches, removes, noops := plan.Counts()
	collector.AddPacksPlanned(int64(fetches + removes))
	logger.Info("plan computed", map[string]any{
		"fetch":     fetches,
		"remove":    removes,
		"unchanged": noops,
	})

	sched, err := scheduler.New(scheduler.Config{
		Source:   e.config.Source,
		Store:    e.config.Store,
		Retry:    e.config.Retry,
		Parallel: e.config.Parallel,
		Logger:   logger,
		Metrics:  collector,
	})
	if err != nil {
		return nil, err
	}
	results := sched.Execute(ctx, plan)

	outcome := buildOutcome(runID, req, started, results)

	if e.config.Journal != nil {
		if err := e.config.Journal.Append(journal.NewRecord(outcome)); err != nil {
			logger.Warn("journal append failed", map[string]any{"error": err.Error()})
		} else if e.config.JournalKeep > 0 {
			if err := e.config.Journal.Prune(e.config.JournalKeep); err != nil {
				logger.Warn("journal prune failed", map[string]any{"error": err.Error()})
			}
		}
	}

	e.publish(ctx, outcome, logger)

	logger.Info("sync completed", map[string]any{
		"success":   outcome.Success,
		"installed": len(outcome.Installed),
		"updated":   len(outcome.Updated),
		"removed":   len(outcome.Removed),
		"unchanged": len(outcome.Unchanged),
		"failed":    len(outcome.Failed),
		"duration":  outcome.Duration.String(),
	})
	return outcome, nil
}

// LastMetrics returns the metrics snapshot of the most recently
// completed run. Valid after Sync returns.
func (e *Engine) LastMetrics() metrics.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastMetrics
}

func (e *Engine) setLastMetrics(collector *metrics.Collector) {
	e.mu.Lock()
	e.lastMetrics = collector.Snapshot()
	e.mu.Unlock()
}

// buildOutcome aggregates per-pack results into a sorted outcome.
func buildOutcome(runID string, req Request, started time.Time, results []scheduler.PackResult) *types.SyncOutcome {
	outcome := &types.SyncOutcome{
		RunID:     runID,
		Trigger:   req.Trigger,
		Forced:    req.Forced,
		StartedAt: started,
	}
	for _, r := range results {
		switch {
		case r.Err != nil:
			outcome.Failed = append(outcome.Failed, types.PackFailure{
				Slug:  r.Slug,
				Stage: r.Stage,
				Error: r.Err.Error(),
			})
		case r.Action == planner.ActionRemove:
			outcome.Removed = append(outcome.Removed, r.Slug)
		case r.Action == planner.ActionNoOp:
			outcome.Unchanged = append(outcome.Unchanged, r.Slug)
		case r.Installed:
			outcome.Updated = append(outcome.Updated, r.Slug)
		default:
			outcome.Installed = append(outcome.Installed, r.Slug)
		}
	}
	slices.Sort(outcome.Installed)
	slices.Sort(outcome.Updated)
	slices.Sort(outcome.Removed)
	slices.Sort(outcome.Unchanged)
	slices.SortFunc(outcome.Failed, func(a, b types.PackFailure) int {
		return strings.Compare(a.Slug, b.Slug)
	})
	outcome.Success = len(outcome.Failed) == 0
	outcome.Duration = time.Since(started)
	return outcome
}

// publish sends the completion event to every notifier. Failures are
// logged, never returned: publishing must not fail the run. The
// publish context is detached from run cancellation so a timed-out run
// still reports itself.
func (e *Engine) publish(ctx context.Context, outcome *types.SyncOutcome, logger *log.Logger) {
	if len(e.config.Notifiers) == 0 {
		return
	}

	event := &adapter.SyncCompletedEvent{
		SchemaVersion: adapter.EventSchemaVersion,
		EventType:     adapter.EventTypeSyncCompleted,
		RunID:         outcome.RunID,
		Trigger:       string(outcome.Trigger),
		Forced:        outcome.Forced,
		Success:       outcome.Success,
		Installed:     len(outcome.Installed),
		Updated:       len(outcome.Updated),
		Removed:       len(outcome.Removed),
		Unchanged:     len(outcome.Unchanged),
		Failed:        len(outcome.Failed),
		DurationMs:    outcome.Duration.Milliseconds(),
		Timestamp:     outcome.StartedAt.UTC().Format(time.RFC3339),
		DataDir:       e.config.Store.Dir(),
	}

	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	for _, n := range e.config.Notifiers {
		if err := n.Publish(publishCtx, event); err != nil {
			logger.Warn("notifier publish failed", map[string]any{"error": err.Error()})
		}
	}
}
