// Package scheduler executes a sync plan against the local store.
//
// One semaphore bounds simultaneous in-flight fetches across all
// packs. Each fetch action gets a coordinating goroutine; each of its
// files gets a worker goroutine that holds a semaphore slot only
// around fetch, hash, and stage work. Packs fail independently: a
// failed pack never aborts its siblings.
package scheduler

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/halfmoth/stickersync/hub"
	"github.com/halfmoth/stickersync/log"
	"github.com/halfmoth/stickersync/metrics"
	"github.com/halfmoth/stickersync/planner"
	"github.com/halfmoth/stickersync/retry"
	"github.com/halfmoth/stickersync/source"
	"github.com/halfmoth/stickersync/store"
	"github.com/halfmoth/stickersync/types"
)

// DefaultParallel is the default ceiling on simultaneous fetches.
const DefaultParallel = 4

// Config configures plan execution.
type Config struct {
	// Source fetches pack files from the hub (required).
	Source source.Source
	// Store stages and commits downloads (required).
	Store *store.Store
	// Retry bounds each file download.
	Retry retry.Config
	// Parallel is the hard ceiling on simultaneous in-flight fetches
	// across all packs. Values below 1 use DefaultParallel.
	Parallel int
	// Logger receives execution logs. Nil is replaced with a no-op.
	Logger *log.Logger
	// Metrics receives execution counters. Nil-safe.
	Metrics *metrics.Collector
}

// PackResult is the outcome of one plan action.
type PackResult struct {
	// Slug identifies the pack.
	Slug string
	// Action is the plan action that produced this result.
	Action planner.Action
	// Installed reports whether the pack existed before the run.
	Installed bool
	// Stage is the failure stage, empty on success.
	Stage string
	// Err is the pack's first failure, nil on success.
	Err error
	// Files holds the per-file download results for fetch actions.
	Files []types.DownloadResult
	// BytesDownloaded is the total bytes staged for this pack.
	BytesDownloaded int64
}

// IntegrityError reports a fetched file whose content hash does not
// match the manifest entry. Retried like a transport failure:
// transfer corruption heals on refetch, while a wrong manifest hash
// exhausts the budget and fails the file.
type IntegrityError struct {
	Path string
	Want string
	Got  string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity mismatch for %s: have %s, want %s", e.Path, e.Got, e.Want)
}

// Temporary marks integrity failures as retriable.
func (e *IntegrityError) Temporary() bool { return true }

// Scheduler executes sync plans with bounded download concurrency.
type Scheduler struct {
	config Config
}

// New validates the config and returns a scheduler.
func New(cfg Config) (*Scheduler, error) {
	if cfg.Source == nil {
		return nil, errors.New("scheduler requires a source")
	}
	if cfg.Store == nil {
		return nil, errors.New("scheduler requires a store")
	}
	if cfg.Parallel < 1 {
		cfg.Parallel = DefaultParallel
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Nop()
	}
	return &Scheduler{config: cfg}, nil
}

// Execute runs every action in the plan and returns one result per
// action, in plan (slug) order.
//
// Cancellation abandons in-flight packs without committing them;
// already-committed packs stay committed.
func (s *Scheduler) Execute(ctx context.Context, plan *planner.SyncPlan) []PackResult {
	sem := make(chan struct{}, s.config.Parallel)
	results := make([]PackResult, len(plan.Actions))

	var wg sync.WaitGroup
	for i := range plan.Actions {
		action := &plan.Actions[i]
		switch action.Action {
		case planner.ActionFetch:
			wg.Add(1)
			go func(i int, action *planner.PackAction) {
				defer wg.Done()
				results[i] = s.fetchPack(ctx, sem, action)
			}(i, action)
		case planner.ActionRemove:
			results[i] = s.removePack(action)
		default:
			results[i] = PackResult{Slug: action.Slug, Action: planner.ActionNoOp, Installed: action.Installed}
			s.config.Metrics.IncPackUnchanged()
		}
	}
	wg.Wait()

	return results
}

// fetchPack downloads one pack's planned files into staging and
// commits them. Any failed file discards the whole staging area.
func (s *Scheduler) fetchPack(ctx context.Context, sem chan struct{}, action *planner.PackAction) PackResult {
	result := PackResult{Slug: action.Slug, Action: planner.ActionFetch, Installed: action.Installed}

	staging, err := s.config.Store.Begin(action.Slug)
	if err != nil {
		return s.failPack(result, types.StageCommit, err)
	}
	defer func() { _ = staging.Discard() }()

	result.Files = s.downloadFiles(ctx, sem, staging, action)

	var firstErr error
	for _, f := range result.Files {
		if f.Err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("%s: %w", f.Path, f.Err)
			}
			continue
		}
		result.BytesDownloaded += f.BytesWritten
	}
	if firstErr != nil {
		return s.failPack(result, types.StageDownload, firstErr)
	}

	if err := staging.Commit(action.Pack); err != nil {
		return s.failPack(result, types.StageCommit, err)
	}

	if action.Installed {
		s.config.Metrics.IncPackUpdated()
	} else {
		s.config.Metrics.IncPackInstalled()
	}
	s.config.Logger.Info("pack synced", map[string]any{
		"pack":    action.Slug,
		"version": action.Pack.Version,
		"files":   len(action.Files),
		"bytes":   result.BytesDownloaded,
		"reason":  action.Reason,
	})
	return result
}

// downloadFiles fetches every planned file into staging, bounded by
// the shared semaphore. Results keep the plan's file order.
func (s *Scheduler) downloadFiles(ctx context.Context, sem chan struct{}, staging *store.Staging, action *planner.PackAction) []types.DownloadResult {
	results := make([]types.DownloadResult, len(action.Files))

	var wg sync.WaitGroup
	for i, entry := range action.Files {
		wg.Add(1)
		go func(i int, entry types.FileEntry) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				results[i] = types.DownloadResult{Path: entry.Path, Err: ctx.Err()}
				return
			}
			defer func() { <-sem }()

			results[i] = s.downloadFile(ctx, staging, action.Slug, entry)
		}(i, entry)
	}
	wg.Wait()

	return results
}

// downloadFile fetches one file with retries, verifies its hash, and
// stages it.
func (s *Scheduler) downloadFile(ctx context.Context, staging *store.Staging, slug string, entry types.FileEntry) types.DownloadResult {
	hubPath := hub.FilePath(slug, entry.Path)
	attempts := 0

	cfg := s.config.Retry
	cfg.OnRetry = func(err error) {
		s.config.Metrics.IncDownloadRetry()
		if retry.RateLimited(err) {
			s.config.Metrics.IncRateLimitCooldown()
		}
		var integrity *IntegrityError
		if errors.As(err, &integrity) {
			s.config.Metrics.IncIntegrityRetry()
		}
		s.config.Logger.Debug("download retry", map[string]any{
			"pack":  slug,
			"path":  entry.Path,
			"error": err.Error(),
		})
	}

	written, err := retry.Do(ctx, cfg, func(ctx context.Context) (int64, error) {
		attempts++
		body, err := s.config.Source.Fetch(ctx, hubPath)
		if err != nil {
			return 0, err
		}

		sum := sha256.Sum256(body)
		if got := hex.EncodeToString(sum[:]); got != entry.SHA256 {
			return 0, &IntegrityError{Path: hubPath, Want: entry.SHA256, Got: got}
		}

		return staging.WriteFile(entry.Path, bytes.NewReader(body))
	})

	result := types.DownloadResult{Path: entry.Path, BytesWritten: written, Attempts: attempts, Err: err}
	if err != nil {
		s.config.Metrics.IncFileFailed(failureKind(err))
		return result
	}
	s.config.Metrics.IncFileDownloaded(written)
	return result
}

// removePack deletes a pack the hub no longer publishes.
func (s *Scheduler) removePack(action *planner.PackAction) PackResult {
	result := PackResult{Slug: action.Slug, Action: planner.ActionRemove, Installed: action.Installed}
	if err := s.config.Store.Remove(action.Slug); err != nil {
		return s.failPack(result, types.StageRemove, err)
	}
	s.config.Metrics.IncPackRemoved()
	s.config.Logger.Info("pack removed", map[string]any{"pack": action.Slug})
	return result
}

func (s *Scheduler) failPack(result PackResult, stage string, err error) PackResult {
	result.Stage = stage
	result.Err = err
	s.config.Metrics.IncPackFailed()
	s.config.Logger.Warn("pack failed", map[string]any{
		"pack":  result.Slug,
		"stage": stage,
		"error": err.Error(),
	})
	return result
}

// failureKind labels a file failure for metrics.
func failureKind(err error) string {
	var fe *source.FetchError
	if errors.As(err, &fe) {
		return string(fe.Kind)
	}
	var integrity *IntegrityError
	if errors.As(err, &integrity) {
		return "integrity"
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "canceled"
	}
	return "other"
}
