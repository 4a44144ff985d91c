package reader

import (
	"slices"
	"strings"

	"github.com/halfmoth/stickersync/journal"
	"github.com/halfmoth/stickersync/store"
	"github.com/halfmoth/stickersync/types"
)

// Reader serves read-only views over the store and journal.
type Reader struct {
	store   *store.Store
	journal *journal.Journal
}

// New returns a reader over the given store. The journal may be nil
// when history is disabled; history views then come back empty.
func New(st *store.Store, jn *journal.Journal) *Reader {
	return &Reader{store: st, journal: jn}
}

// Installed returns one row per installed pack in slug order.
func (r *Reader) Installed() ([]PackRow, error) {
	snap := r.store.Snapshot()

	rows := make([]PackRow, 0, len(snap.Packs))
	for _, slug := range snap.Slugs() {
		p := snap.Packs[slug]
		disabled, err := r.store.Disabled(slug)
		if err != nil {
			return nil, err
		}
		rows = append(rows, PackRow{
			Slug:      slug,
			Name:      p.Name,
			Version:   p.Version,
			Files:     len(p.Files),
			Disabled:  disabled,
			UpdatedAt: p.UpdatedAt,
		})
	}
	return rows, nil
}

// Remote merges the hub catalog against the local snapshot, one row
// per published pack in slug order. Local packs the hub no longer
// publishes are omitted; the next sync removes them anyway.
func (r *Reader) Remote(manifest *types.RemoteManifest) []RemotePackRow {
	snap := r.store.Snapshot()

	rows := make([]RemotePackRow, 0, len(manifest.Packs))
	for i := range manifest.Packs {
		p := &manifest.Packs[i]
		row := RemotePackRow{
			Slug:    p.Slug,
			Name:    p.Name,
			Version: p.Version,
			Files:   len(p.Files),
			State:   StateAvailable,
		}
		if local, ok := snap.Packs[p.Slug]; ok {
			if local.Version == p.Version {
				row.State = StateInstalled
			} else {
				row.State = StateUpdate
			}
		}
		rows = append(rows, row)
	}
	slices.SortFunc(rows, func(a, b RemotePackRow) int {
		return strings.Compare(a.Slug, b.Slug)
	})
	return rows
}

// Pack returns the full detail view for one installed pack.
func (r *Reader) Pack(slug string) (*PackDetail, error) {
	p, ok := r.store.Installed(slug)
	if !ok {
		return nil, &NotInstalledError{Slug: slug}
	}
	disabled, err := r.store.Disabled(slug)
	if err != nil {
		return nil, err
	}

	detail := &PackDetail{
		Slug:        slug,
		Name:        p.Name,
		Version:     p.Version,
		Disabled:    disabled,
		InstalledAt: p.InstalledAt,
		UpdatedAt:   p.UpdatedAt,
		Files:       make([]FileRow, 0, len(p.Files)),
		Dir:         r.store.PackDir(slug),
	}
	for _, f := range p.Files {
		detail.Files = append(detail.Files, FileRow{Path: f.Path, SHA256: f.SHA256, Size: f.Size})
		detail.TotalBytes += f.Size
	}
	return detail, nil
}

// Status summarizes the library. source is the configured remote
// description shown alongside the local counts.
func (r *Reader) Status(source string) (*LibraryStatus, error) {
	snap := r.store.Snapshot()

	status := &LibraryStatus{
		DataDir: r.store.Dir(),
		Source:  source,
		Packs:   len(snap.Packs),
	}
	for _, slug := range snap.Slugs() {
		p := snap.Packs[slug]
		status.Files += len(p.Files)
		for _, f := range p.Files {
			status.Bytes += f.Size
		}
		disabled, err := r.store.Disabled(slug)
		if err != nil {
			return nil, err
		}
		if disabled {
			status.Disabled++
		}
	}

	if r.journal != nil {
		records, err := r.journal.ReadAll()
		if err != nil {
			return nil, err
		}
		if len(records) > 0 {
			row := toHistoryRow(&records[len(records)-1])
			status.LastRun = &row
		}
	}
	return status, nil
}

// History returns journal records newest first. limit <= 0 returns
// everything.
func (r *Reader) History(limit int) ([]HistoryRow, error) {
	if r.journal == nil {
		return nil, nil
	}
	records, err := r.journal.ReadAll()
	if err != nil {
		return nil, err
	}

	rows := make([]HistoryRow, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		rows = append(rows, toHistoryRow(&records[i]))
		if limit > 0 && len(rows) == limit {
			break
		}
	}
	return rows, nil
}

// Verify re-hashes committed files against the snapshot. An empty slug
// verifies every installed pack.
func (r *Reader) Verify(slug string) (*VerifyReport, error) {
	var (
		problems []store.VerifyProblem
		packs    int
		err      error
	)
	if slug == "" {
		packs = len(r.store.Snapshot().Packs)
		problems, err = r.store.VerifyAll()
	} else {
		packs = 1
		problems, err = r.store.Verify(slug)
	}
	if err != nil {
		return nil, err
	}

	report := &VerifyReport{
		Packs:    packs,
		Problems: make([]ProblemRow, 0, len(problems)),
		Clean:    len(problems) == 0,
	}
	for _, p := range problems {
		report.Problems = append(report.Problems, ProblemRow{
			Slug: p.Slug, Path: p.Path, Kind: p.Kind, Detail: p.Detail,
		})
	}
	return report, nil
}

// NotInstalledError reports a lookup for a pack the snapshot does not
// record.
type NotInstalledError struct {
	Slug string
}

func (e *NotInstalledError) Error() string {
	return "pack " + e.Slug + " is not installed"
}

func toHistoryRow(rec *journal.Record) HistoryRow {
	return HistoryRow{
		RunID:      rec.RunID,
		Trigger:    rec.Trigger,
		Forced:     rec.Forced,
		Success:    rec.Success,
		StartedAt:  rec.StartedAt,
		DurationMs: rec.DurationMs,
		Installed:  rec.Installed,
		Updated:    rec.Updated,
		Removed:    rec.Removed,
		Unchanged:  rec.Unchanged,
		Failed:     len(rec.Failed),
	}
}
