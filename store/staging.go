package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/halfmoth/stickersync/iox"
	"github.com/halfmoth/stickersync/types"
)

// Staging is one pack's in-flight download area under .staging/.
// Created by Begin, finished by exactly one of Commit or Discard.
//
// WriteFile may be called from multiple goroutines for distinct paths.
// An incremental update stages only the changed files; Commit keeps
// the untouched ones in place.
type Staging struct {
	store *Store
	slug  string
	dir   string

	mu     sync.Mutex
	staged map[string]struct{}
	done   bool
}

// Begin opens a staging area for one pack.
func (s *Store) Begin(slug string) (*Staging, error) {
	if err := types.ValidateSlug(slug); err != nil {
		return nil, err
	}
	dir, err := os.MkdirTemp(s.stagingRoot(), slug+"-")
	if err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	return &Staging{
		store:  s,
		slug:   slug,
		dir:    dir,
		staged: make(map[string]struct{}),
	}, nil
}

// Slug returns the pack this staging area belongs to.
func (st *Staging) Slug() string { return st.slug }

// WriteFile streams one file into the staging area and returns the
// number of bytes written.
func (st *Staging) WriteFile(path string, r io.Reader) (int64, error) {
	st.mu.Lock()
	done := st.done
	st.mu.Unlock()
	if done {
		return 0, errors.New("staging already finished")
	}
	if err := types.ValidateEntryPath(path); err != nil {
		return 0, err
	}

	dst := filepath.Join(st.dir, filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, fmt.Errorf("create staging subdir: %w", err)
	}

	f, err := os.Create(dst)
	if err != nil {
		return 0, fmt.Errorf("stage %s: %w", path, err)
	}
	written, err := io.Copy(f, r)
	if cerr := iox.SyncClose(f); err == nil {
		err = cerr
	}
	if err != nil {
		return written, fmt.Errorf("stage %s: %w", path, err)
	}

	st.mu.Lock()
	st.staged[path] = struct{}{}
	st.mu.Unlock()
	return written, nil
}

// Commit promotes the staged files to packs/<slug> and records the
// pack in the snapshot.
//
// Ordering inside the commit window: write the .updating marker, move
// every staged file into place, write pack.json, delete files the
// manifest no longer declares, prune emptied subdirectories, persist
// the snapshot, clear the marker. The staging and pack directories
// share a filesystem, so each move is an atomic rename. A failure
// before the snapshot write leaves the previous committed state
// authoritative.
//
// Declared files that were not staged must already be in place from
// the previous commit; Commit fails otherwise.
func (st *Staging) Commit(pack *types.PackManifest) error {
	st.mu.Lock()
	if st.done {
		st.mu.Unlock()
		return errors.New("staging already finished")
	}
	st.done = true
	st.mu.Unlock()

	if pack.Slug != st.slug {
		return fmt.Errorf("staging is for %s, got manifest for %s", st.slug, pack.Slug)
	}
	defer func() { _ = os.RemoveAll(st.dir) }()

	st.store.mu.Lock()
	defer st.store.mu.Unlock()
	return st.store.commitLocked(st.dir, st.staged, pack)
}

// Discard abandons the staging area. Calling Discard after Commit is
// a no-op, so callers can defer it unconditionally.
func (st *Staging) Discard() error {
	st.mu.Lock()
	if st.done {
		st.mu.Unlock()
		return nil
	}
	st.done = true
	st.mu.Unlock()
	return os.RemoveAll(st.dir)
}

// commitLocked performs the commit sequence. Callers must hold s.mu.
func (s *Store) commitLocked(stagedDir string, staged map[string]struct{}, pack *types.PackManifest) error {
	packDir := s.PackDir(pack.Slug)
	if err := os.MkdirAll(packDir, 0o755); err != nil {
		return fmt.Errorf("create pack dir: %w", err)
	}

	marker := filepath.Join(packDir, updatingMarker)
	if err := os.WriteFile(marker, nil, 0o644); err != nil {
		return fmt.Errorf("write updating marker: %w", err)
	}

	for _, f := range pack.Files {
		rel := filepath.FromSlash(f.Path)
		dst := filepath.Join(packDir, rel)
		if _, ok := staged[f.Path]; ok {
			if err := moveFile(filepath.Join(stagedDir, rel), dst); err != nil {
				return fmt.Errorf("commit %s/%s: %w", pack.Slug, f.Path, err)
			}
			continue
		}
		// Unchanged in this update: the previous commit must have
		// left it in place.
		if _, err := os.Stat(dst); err != nil {
			return fmt.Errorf("commit %s/%s: not staged and not installed: %w", pack.Slug, f.Path, err)
		}
	}

	if err := writePackManifest(packDir, pack); err != nil {
		return err
	}
	if err := cleanStale(packDir, pack); err != nil {
		return err
	}

	now := time.Now().UTC()
	installed := types.InstalledPack{
		Version:     pack.Version,
		Name:        pack.Name,
		Files:       slices.Clone(pack.Files),
		InstalledAt: now,
		UpdatedAt:   now,
	}
	if prev, ok := s.snapshot.Packs[pack.Slug]; ok {
		installed.InstalledAt = prev.InstalledAt
	}
	s.snapshot.Packs[pack.Slug] = installed
	if err := s.persistSnapshotLocked(); err != nil {
		return err
	}

	if err := os.Remove(marker); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clear updating marker: %w", err)
	}

	s.logger.Debug("pack committed", map[string]any{
		"pack":    pack.Slug,
		"version": pack.Version,
		"files":   len(pack.Files),
	})
	return nil
}

// moveFile renames src into dst, creating parent directories.
func moveFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.Rename(src, dst)
}

// writePackManifest records the committed manifest inside the pack
// directory so the snapshot can be rebuilt if snapshot.json is lost.
func writePackManifest(packDir string, pack *types.PackManifest) error {
	data, err := json.MarshalIndent(pack, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal pack manifest: %w", err)
	}
	return writeFileAtomic(filepath.Join(packDir, packManifestName), data, 0o644)
}

// reservedName reports whether a pack-root entry belongs to the store
// rather than to the pack content.
func reservedName(rel string) bool {
	return rel == packManifestName || rel == packConfigName || rel == updatingMarker
}

// cleanStale removes files under packDir that the manifest does not
// declare, then prunes emptied directories.
func cleanStale(packDir string, pack *types.PackManifest) error {
	keep := make(map[string]struct{}, len(pack.Files))
	for _, f := range pack.Files {
		keep[filepath.FromSlash(f.Path)] = struct{}{}
	}

	var stale []string
	err := filepath.WalkDir(packDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(packDir, path)
		if err != nil {
			return err
		}
		if reservedName(rel) {
			return nil
		}
		if _, ok := keep[rel]; !ok {
			stale = append(stale, path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan pack dir: %w", err)
	}

	for _, path := range stale {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("remove stale file: %w", err)
		}
	}
	return pruneEmptyDirs(packDir)
}

// pruneEmptyDirs removes directories left empty under root, deepest
// first.
func pruneEmptyDirs(root string) error {
	var dirs []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() && path != root {
			dirs = append(dirs, path)
		}
		return nil
	})
	if err != nil {
		return err
	}

	// Reverse lexicographic order visits children before parents.
	slices.Sort(dirs)
	slices.Reverse(dirs)
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			if err := os.Remove(dir); err != nil {
				return err
			}
		}
	}
	return nil
}
