// Package planner computes the actions that reconcile the local pack
// library with the hub catalog.
//
// Planning is pure: it reads the remote manifest and the local
// snapshot and produces a deterministic plan without touching disk or
// network.
package planner

import (
	"slices"
	"strings"

	"github.com/halfmoth/stickersync/types"
)

// Action is the kind of work planned for a single pack.
type Action string

const (
	// ActionFetch downloads and commits a pack (install or update).
	ActionFetch Action = "fetch"
	// ActionRemove deletes a pack the hub no longer publishes.
	ActionRemove Action = "remove"
	// ActionNoOp records that a pack is already current.
	ActionNoOp Action = "noop"
)

// Reasons a fetch was planned.
const (
	ReasonNew     = "new"
	ReasonVersion = "version_changed"
	ReasonForced  = "forced"
)

// PackAction describes the planned work for one pack.
type PackAction struct {
	// Action selects the kind of work.
	Action Action
	// Slug identifies the pack.
	Slug string
	// Pack is the remote manifest for fetch actions, nil otherwise.
	Pack *types.PackManifest
	// Files are the entries to download for fetch actions. Forced
	// plans list the full manifest; incremental plans only entries
	// whose recorded hash is missing or different.
	Files []types.FileEntry
	// Installed reports whether the pack was present before planning.
	Installed bool
	// Reason records why a fetch was planned.
	Reason string
}

// SyncPlan is the ordered action list for one run.
type SyncPlan struct {
	Actions []PackAction
}

// Counts returns the number of fetch, remove, and no-op actions.
func (p *SyncPlan) Counts() (fetches, removes, noops int) {
	for _, a := range p.Actions {
		switch a.Action {
		case ActionFetch:
			fetches++
		case ActionRemove:
			removes++
		case ActionNoOp:
			noops++
		}
	}
	return fetches, removes, noops
}

// HasWork reports whether the plan contains any fetch or remove.
func (p *SyncPlan) HasWork() bool {
	for _, a := range p.Actions {
		if a.Action != ActionNoOp {
			return true
		}
	}
	return false
}

// Options controls planning.
type Options struct {
	// Forced plans every remote pack's full file list regardless of
	// recorded state.
	Forced bool
	// Only restricts planning to the named slugs. Empty means all.
	Only []string
}

// Plan computes the actions that reconcile snapshot with remote.
//
// Incremental runs fetch packs that are absent locally or carry a
// different version, and within those only the files whose hash is
// new or changed. Forced runs fetch everything. Installed packs the
// hub no longer publishes become removes; everything else is a no-op.
// Actions come back sorted by slug; files keep manifest order.
func Plan(remote *types.RemoteManifest, snapshot *types.LocalSnapshot, opts Options) *SyncPlan {
	only := make(map[string]struct{}, len(opts.Only))
	for _, slug := range opts.Only {
		only[slug] = struct{}{}
	}
	selected := func(slug string) bool {
		if len(only) == 0 {
			return true
		}
		_, ok := only[slug]
		return ok
	}

	plan := &SyncPlan{}
	for i := range remote.Packs {
		pack := &remote.Packs[i]
		if !selected(pack.Slug) {
			continue
		}

		installed, ok := snapshot.Packs[pack.Slug]
		switch {
		case opts.Forced:
			plan.Actions = append(plan.Actions, PackAction{
				Action:    ActionFetch,
				Slug:      pack.Slug,
				Pack:      pack,
				Files:     slices.Clone(pack.Files),
				Installed: ok,
				Reason:    ReasonForced,
			})
		case !ok:
			plan.Actions = append(plan.Actions, PackAction{
				Action: ActionFetch,
				Slug:   pack.Slug,
				Pack:   pack,
				Files:  slices.Clone(pack.Files),
				Reason: ReasonNew,
			})
		case installed.Version != pack.Version:
			plan.Actions = append(plan.Actions, PackAction{
				Action:    ActionFetch,
				Slug:      pack.Slug,
				Pack:      pack,
				Files:     changedFiles(pack, &installed),
				Installed: true,
				Reason:    ReasonVersion,
			})
		default:
			plan.Actions = append(plan.Actions, PackAction{
				Action:    ActionNoOp,
				Slug:      pack.Slug,
				Installed: true,
			})
		}
	}

	for slug := range snapshot.Packs {
		if !selected(slug) {
			continue
		}
		if remote.FindPack(slug) == nil {
			plan.Actions = append(plan.Actions, PackAction{
				Action:    ActionRemove,
				Slug:      slug,
				Installed: true,
			})
		}
	}

	slices.SortFunc(plan.Actions, func(a, b PackAction) int {
		return strings.Compare(a.Slug, b.Slug)
	})
	return plan
}

// changedFiles returns the manifest entries whose recorded hash is
// missing or different, preserving manifest order.
func changedFiles(pack *types.PackManifest, installed *types.InstalledPack) []types.FileEntry {
	var files []types.FileEntry
	for _, f := range pack.Files {
		if installed.FileHash(f.Path) != f.SHA256 {
			files = append(files, f)
		}
	}
	return files
}
