package types

import (
	"time"
)

// SyncTrigger identifies which path started a sync run.
type SyncTrigger string

const (
	// TriggerStartup is the automatic run at process startup.
	TriggerStartup SyncTrigger = "startup"
	// TriggerManual is an operator-invoked run.
	TriggerManual SyncTrigger = "manual"
	// TriggerInterval is a periodic daemon re-sync.
	TriggerInterval SyncTrigger = "interval"
)

// Failure stages for PackFailure.Stage.
const (
	// StageDownload covers fetch, retry exhaustion, integrity and
	// staging-write failures.
	StageDownload = "download"
	// StageCommit covers atomic promotion failures in the local store.
	StageCommit = "commit"
	// StageRemove covers failures while deleting a pack.
	StageRemove = "remove"
)

// DownloadResult is the per-file outcome of one planned download.
type DownloadResult struct {
	// Path is the pack-relative file path.
	Path string
	// BytesWritten is the number of staged bytes on success.
	BytesWritten int64
	// Attempts is the number of fetch attempts made.
	Attempts int
	// Err is the classified failure, nil on success.
	Err error
}

// PackFailure describes why one pack was not committed.
type PackFailure struct {
	// Slug is the failed pack.
	Slug string `json:"slug"`
	// Stage says where the failure happened (download, commit, remove).
	Stage string `json:"stage"`
	// Error is the rendered cause.
	Error string `json:"error"`
}

// SyncOutcome is the aggregate result of one sync run.
// Slug slices are sorted; a pack appears in exactly one of them.
type SyncOutcome struct {
	// RunID is the unique identifier minted for this run.
	RunID string
	// Trigger is the path that started the run.
	Trigger SyncTrigger
	// Forced records whether the run was a forced full resync.
	Forced bool
	// StartedAt is the run start time.
	StartedAt time.Time
	// Duration is the total run duration.
	Duration time.Duration
	// Installed lists packs committed for the first time.
	Installed []string
	// Updated lists packs whose installed version was replaced.
	Updated []string
	// Removed lists packs deleted because the hub no longer publishes them.
	Removed []string
	// Unchanged lists packs already current.
	Unchanged []string
	// Failed lists packs left at their prior state, with causes.
	Failed []PackFailure
	// Success is true only if every attempted pack ended consistent,
	// i.e. Failed is empty.
	Success bool
}

// Changed reports whether the run mutated the local store at all.
func (o *SyncOutcome) Changed() bool {
	return len(o.Installed) > 0 || len(o.Updated) > 0 || len(o.Removed) > 0
}
