package types

import (
	"slices"
	"time"
)

// InstalledPack records the state of one pack as last successfully committed.
type InstalledPack struct {
	// Version is the pack revision recorded at commit time.
	Version string `json:"version"`
	// Name is the human-readable name from the manifest at commit time.
	Name string `json:"name"`
	// Files is the full file list committed for this version.
	Files []FileEntry `json:"files"`
	// InstalledAt is when the pack was first committed.
	InstalledAt time.Time `json:"installed_at"`
	// UpdatedAt is when the pack was last committed.
	UpdatedAt time.Time `json:"updated_at"`
}

// FileHash returns the recorded hash for the given path, or "" if the path
// is not part of the committed file set.
func (p *InstalledPack) FileHash(path string) string {
	for _, f := range p.Files {
		if f.Path == path {
			return f.SHA256
		}
	}
	return ""
}

// LocalSnapshot is the persisted record of what is installed.
// It is the sole source of truth: a pack missing from the snapshot is treated
// as absent even if stray files exist on disk. Mutated only after a pack's
// files are fully and successfully written.
type LocalSnapshot struct {
	// SchemaVersion is the snapshot file schema version.
	SchemaVersion string `json:"schema_version"`
	// Packs maps pack slug to its last committed state.
	Packs map[string]InstalledPack `json:"packs"`
}

// NewLocalSnapshot returns an empty snapshot at the current schema version.
func NewLocalSnapshot() *LocalSnapshot {
	return &LocalSnapshot{
		SchemaVersion: ManifestSchemaVersion,
		Packs:         make(map[string]InstalledPack),
	}
}

// Slugs returns the installed pack slugs in sorted order.
func (s *LocalSnapshot) Slugs() []string {
	slugs := make([]string, 0, len(s.Packs))
	for slug := range s.Packs {
		slugs = append(slugs, slug)
	}
	slices.Sort(slugs)
	return slugs
}

// Clone returns a deep copy. Callers receive clones so that concurrent reads
// never observe a snapshot mid-commit.
func (s *LocalSnapshot) Clone() *LocalSnapshot {
	out := &LocalSnapshot{
		SchemaVersion: s.SchemaVersion,
		Packs:         make(map[string]InstalledPack, len(s.Packs)),
	}
	for slug, p := range s.Packs {
		cp := p
		cp.Files = slices.Clone(p.Files)
		out.Packs[slug] = cp
	}
	return out
}
