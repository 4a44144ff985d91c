// Package reader assembles read-side views of the pack library for the
// stickersync CLI.
//
// All read-only commands go through this layer. It never mutates the
// store and never touches the network: remote comparisons take an
// already fetched manifest, so the caller decides when to pay for a
// fetch.
package reader

import "time"

// PackRow is one installed pack in list output.
type PackRow struct {
	Slug      string    `json:"slug"`
	Name      string    `json:"name"`
	Version   string    `json:"version"`
	Files     int       `json:"files"`
	Disabled  bool      `json:"disabled"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Remote pack states shown by list --remote.
const (
	StateInstalled = "installed"
	StateUpdate    = "update"
	StateAvailable = "available"
)

// RemotePackRow is one hub pack merged against the local library.
type RemotePackRow struct {
	Slug    string `json:"slug"`
	Name    string `json:"name"`
	Version string `json:"version"`
	Files   int    `json:"files"`
	State   string `json:"state"`
}

// FileRow is one committed file in pack detail output.
type FileRow struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
	Size   int64  `json:"size"`
}

// PackDetail is the full view of one installed pack.
type PackDetail struct {
	Slug        string    `json:"slug"`
	Name        string    `json:"name"`
	Version     string    `json:"version"`
	Disabled    bool      `json:"disabled"`
	InstalledAt time.Time `json:"installed_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Files       []FileRow `json:"files"`
	TotalBytes  int64     `json:"total_bytes"`
	Dir         string    `json:"dir"`
}

// HistoryRow is one sync run in history output.
type HistoryRow struct {
	RunID      string    `json:"run_id"`
	Trigger    string    `json:"trigger"`
	Forced     bool      `json:"forced"`
	Success    bool      `json:"success"`
	StartedAt  time.Time `json:"started_at"`
	DurationMs int64     `json:"duration_ms"`
	Installed  int       `json:"installed"`
	Updated    int       `json:"updated"`
	Removed    int       `json:"removed"`
	Unchanged  int       `json:"unchanged"`
	Failed     int       `json:"failed"`
}

// LibraryStatus summarizes the local library and its last sync.
type LibraryStatus struct {
	DataDir  string      `json:"data_dir"`
	Source   string      `json:"source"`
	Packs    int         `json:"packs"`
	Disabled int         `json:"disabled"`
	Files    int         `json:"files"`
	Bytes    int64       `json:"bytes"`
	LastRun  *HistoryRow `json:"last_run"`
}

// ProblemRow is one integrity finding in verify output.
type ProblemRow struct {
	Slug   string `json:"slug"`
	Path   string `json:"path"`
	Kind   string `json:"kind"`
	Detail string `json:"detail,omitempty"`
}

// VerifyReport aggregates integrity findings across verified packs.
type VerifyReport struct {
	Packs    int          `json:"packs"`
	Problems []ProblemRow `json:"problems"`
	Clean    bool         `json:"clean"`
}
