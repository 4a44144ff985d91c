// Package types defines core domain types for the stickersync engine.
//
//nolint:revive // types is a common Go package naming convention
package types

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// FileEntry describes one file belonging to a pack.
// Paths are hub-relative to the pack directory and use forward slashes.
type FileEntry struct {
	// Path is the file path relative to the pack root. Unique within a pack.
	Path string `json:"path"`
	// SHA256 is the lowercase hex digest of the file content.
	// Used for change detection and post-download integrity verification.
	SHA256 string `json:"sha256"`
	// Size is the file size in bytes as declared by the hub.
	Size int64 `json:"size"`
}

// PackManifest describes one pack as published by the hub.
// Immutable once decoded from a fetched manifest.
type PackManifest struct {
	// Slug is the pack identifier, unique within a manifest.
	// It doubles as the pack's directory name in the local store.
	Slug string `json:"slug"`
	// Name is the human-readable pack name.
	Name string `json:"name"`
	// Version identifies the pack content revision. Two manifests with the
	// same slug and version must describe identical file sets.
	Version string `json:"version"`
	// Description is optional free-form text.
	Description string `json:"description,omitempty"`
	// Files is the ordered list of files making up the pack.
	Files []FileEntry `json:"files"`
}

// RemoteManifest is the catalog document published at the hub root.
// The schema is a versioned contract with the remote source; pack files are
// served hub-relative as <slug>/<file path>.
type RemoteManifest struct {
	// SchemaVersion is the catalog schema version. Must equal
	// ManifestSchemaVersion.
	SchemaVersion string `json:"schema_version"`
	// GeneratedAt is the hub-side generation timestamp, informational only.
	GeneratedAt string `json:"generated_at,omitempty"`
	// Packs is the full set of published packs.
	Packs []PackManifest `json:"packs"`
}

// FindPack returns the pack with the given slug, or nil if absent.
func (m *RemoteManifest) FindPack(slug string) *PackManifest {
	for i := range m.Packs {
		if m.Packs[i].Slug == slug {
			return &m.Packs[i]
		}
	}
	return nil
}

// Validate checks the manifest against the schema contract: supported schema
// version, unique non-empty slugs safe to use as directory names, unique
// local-only file paths, and non-empty content hashes.
func (m *RemoteManifest) Validate() error {
	if m.SchemaVersion != ManifestSchemaVersion {
		return fmt.Errorf("unsupported manifest schema version %q (want %q)",
			m.SchemaVersion, ManifestSchemaVersion)
	}

	seen := make(map[string]struct{}, len(m.Packs))
	for i := range m.Packs {
		p := &m.Packs[i]
		if err := ValidateSlug(p.Slug); err != nil {
			return fmt.Errorf("pack %d: %w", i, err)
		}
		if _, dup := seen[p.Slug]; dup {
			return fmt.Errorf("duplicate pack slug %q", p.Slug)
		}
		seen[p.Slug] = struct{}{}

		if err := p.validateFiles(); err != nil {
			return fmt.Errorf("pack %q: %w", p.Slug, err)
		}
	}
	return nil
}

func (p *PackManifest) validateFiles() error {
	if len(p.Files) == 0 {
		return errors.New("no files declared")
	}
	paths := make(map[string]struct{}, len(p.Files))
	for _, f := range p.Files {
		if err := ValidateEntryPath(f.Path); err != nil {
			return err
		}
		if _, dup := paths[f.Path]; dup {
			return fmt.Errorf("duplicate file path %q", f.Path)
		}
		paths[f.Path] = struct{}{}
		if f.SHA256 == "" {
			return fmt.Errorf("file %q: missing sha256", f.Path)
		}
		if f.Size < 0 {
			return fmt.Errorf("file %q: negative size %d", f.Path, f.Size)
		}
	}
	return nil
}

// ValidateSlug rejects slugs that cannot serve as a local directory name.
func ValidateSlug(slug string) error {
	if slug == "" {
		return errors.New("empty pack slug")
	}
	if slug == "." || slug == ".." {
		return fmt.Errorf("invalid pack slug %q", slug)
	}
	if strings.ContainsAny(slug, `/\`) {
		return fmt.Errorf("pack slug %q contains a path separator", slug)
	}
	return nil
}

// ValidateEntryPath rejects file paths that would escape the pack directory.
func ValidateEntryPath(p string) error {
	if p == "" {
		return errors.New("empty file path")
	}
	if strings.Contains(p, `\`) {
		return fmt.Errorf("file path %q contains a backslash", p)
	}
	if strings.HasPrefix(p, "/") {
		return fmt.Errorf("file path %q is absolute", p)
	}
	if !filepath.IsLocal(filepath.FromSlash(p)) {
		return fmt.Errorf("file path %q escapes the pack directory", p)
	}
	return nil
}
