// Package adapter defines the notifier boundary for sync completion.
//
// Adapters publish sync completion notifications to downstream systems.
// The engine owns adapter lifecycle; users provide configuration only.
package adapter

import "context"

// EventSchemaVersion is the sync_completed payload schema version.
const EventSchemaVersion = "1"

// EventTypeSyncCompleted is the event_type value for completion events.
const EventTypeSyncCompleted = "sync_completed"

// SyncCompletedEvent is the payload published when a sync run finishes.
// Publish failures never fail the run that produced the event.
type SyncCompletedEvent struct {
	SchemaVersion string `json:"schema_version"`
	EventType     string `json:"event_type"` // always "sync_completed"
	RunID         string `json:"run_id"`
	Trigger       string `json:"trigger"` // startup, manual, interval
	Forced        bool   `json:"forced"`
	Success       bool   `json:"success"`
	Installed     int    `json:"installed"`
	Updated       int    `json:"updated"`
	Removed       int    `json:"removed"`
	Unchanged     int    `json:"unchanged"`
	Failed        int    `json:"failed"`
	DurationMs    int64  `json:"duration_ms"`
	Timestamp     string `json:"timestamp"` // ISO 8601
	DataDir       string `json:"data_dir"`
}

// Adapter publishes sync completion events to a downstream system.
// Implementations must be safe for single-use per run.
type Adapter interface {
	// Publish sends a sync completion event to the downstream system.
	// Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *SyncCompletedEvent) error

	// Close releases adapter resources.
	Close() error
}
