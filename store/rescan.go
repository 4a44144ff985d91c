package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/halfmoth/stickersync/types"
)

// Rescan rebuilds the snapshot from the pack.json files on disk and
// persists it. This is the recovery path for a lost snapshot.json;
// Open runs it automatically when the snapshot file is absent.
//
// A directory still carrying an .updating marker was mid-rewrite when
// its process died, so its contents are not trustworthy: the marker is
// cleared and the pack is left out of the snapshot, which makes the
// next sync fetch it fresh.
func (s *Store) Rescan() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rescanLocked()
}

func (s *Store) rescanLocked() error {
	entries, err := os.ReadDir(s.packsRoot())
	if err != nil {
		return fmt.Errorf("read packs dir: %w", err)
	}

	snap := types.NewLocalSnapshot()
	now := time.Now().UTC()
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		slug := e.Name()
		packDir := s.PackDir(slug)

		marker := filepath.Join(packDir, updatingMarker)
		if _, err := os.Stat(marker); err == nil {
			s.logger.Warn("skipping pack interrupted mid-commit", map[string]any{"pack": slug})
			if err := os.Remove(marker); err != nil {
				return fmt.Errorf("clear updating marker for %s: %w", slug, err)
			}
			continue
		}

		pack, err := readPackManifest(packDir)
		if err != nil {
			s.logger.Warn("skipping pack without readable pack.json", map[string]any{
				"pack":  slug,
				"error": err.Error(),
			})
			continue
		}
		if pack.Slug != slug {
			s.logger.Warn("skipping pack whose pack.json names a different slug", map[string]any{
				"dir":  slug,
				"slug": pack.Slug,
			})
			continue
		}

		snap.Packs[slug] = types.InstalledPack{
			Version:     pack.Version,
			Name:        pack.Name,
			Files:       pack.Files,
			InstalledAt: now,
			UpdatedAt:   now,
		}
	}

	s.snapshot = snap
	return s.persistSnapshotLocked()
}
