package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/halfmoth/stickersync/metrics"
	"github.com/halfmoth/stickersync/types"
)

// SyncReport is the structured JSON report written by --report.
type SyncReport struct {
	RunID      string `json:"run_id"`
	Trigger    string `json:"trigger"`
	Forced     bool   `json:"forced"`
	Success    bool   `json:"success"`
	StartedAt  string `json:"started_at"` // ISO 8601
	DurationMs int64  `json:"duration_ms"`
	DataDir    string `json:"data_dir"`

	Installed []string            `json:"installed"`
	Updated   []string            `json:"updated"`
	Removed   []string            `json:"removed"`
	Unchanged []string            `json:"unchanged"`
	Failed    []types.PackFailure `json:"failed"`

	Metrics *metrics.Snapshot `json:"metrics"`
}

// BuildSyncReport composes a SyncReport from an outcome and the run's
// metrics snapshot.
func BuildSyncReport(outcome *types.SyncOutcome, snap metrics.Snapshot, dataDir string) *SyncReport {
	return &SyncReport{
		RunID:      outcome.RunID,
		Trigger:    string(outcome.Trigger),
		Forced:     outcome.Forced,
		Success:    outcome.Success,
		StartedAt:  outcome.StartedAt.UTC().Format(time.RFC3339),
		DurationMs: outcome.Duration.Milliseconds(),
		DataDir:    dataDir,
		Installed:  outcome.Installed,
		Updated:    outcome.Updated,
		Removed:    outcome.Removed,
		Unchanged:  outcome.Unchanged,
		Failed:     outcome.Failed,
		Metrics:    &snap,
	}
}

// WriteSyncReport writes the report as JSON to the specified path.
// If path is "-", writes to stderr so stdout stays renderable.
func WriteSyncReport(report *SyncReport, path string) error {
	if path == "" {
		return errors.New("report path must not be empty")
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	data = append(data, '\n')

	if path == "-" {
		_, err = os.Stderr.Write(data)
		if err != nil {
			return fmt.Errorf("failed to write report to stderr: %w", err)
		}
		return nil
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	return nil
}

// writeSyncReportTo writes report JSON to any writer (for testing).
func writeSyncReportTo(report *SyncReport, w io.Writer) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
