// Package store manages the on-disk pack library.
//
// Layout under the data directory:
//
//	packs/<slug>/...         pack files as published by the hub
//	packs/<slug>/pack.json   manifest recorded at commit time
//	packs/<slug>/config.json local per-pack settings
//	packs/<slug>/.updating   marker while the directory is rewritten
//	.staging/                in-flight downloads before commit
//	snapshot.json            the record of what is installed
//	sync.journal             append-only history of sync runs
//
// The snapshot is the sole source of truth: a pack absent from the
// snapshot is treated as not installed even if stray files exist under
// packs/. All mutations go through stage-then-commit so an interrupted
// run leaves the previous committed state intact.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/halfmoth/stickersync/log"
	"github.com/halfmoth/stickersync/types"
)

// Names under the data directory.
const (
	packsDirName     = "packs"
	stagingDirName   = ".staging"
	snapshotFileName = "snapshot.json"
	journalFileName  = "sync.journal"
	packManifestName = "pack.json"
	packConfigName   = "config.json"
	updatingMarker   = ".updating"
)

// Store manages the pack library rooted at a data directory.
// Safe for concurrent use; mutations serialize on an internal mutex.
type Store struct {
	dir    string
	logger *log.Logger

	mu       sync.Mutex
	snapshot *types.LocalSnapshot
}

// Open loads the store at dir, creating the directory layout on first
// use. A missing snapshot.json is rebuilt from the pack.json files on
// disk, so losing the snapshot never forces a full re-download. A nil
// logger is replaced with a no-op logger.
func Open(dir string, logger *log.Logger) (*Store, error) {
	if dir == "" {
		return nil, errors.New("store requires a data directory")
	}
	if logger == nil {
		logger = log.Nop()
	}

	if err := os.MkdirAll(filepath.Join(dir, packsDirName), 0o755); err != nil {
		return nil, fmt.Errorf("create packs dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(dir, stagingDirName), 0o755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}

	s := &Store{dir: dir, logger: logger}

	// Leftover staging dirs from an interrupted run are dead weight.
	if err := s.clearStaging(); err != nil {
		return nil, err
	}

	snap, err := loadSnapshot(s.snapshotPath())
	if err != nil {
		return nil, err
	}
	if snap == nil {
		s.snapshot = types.NewLocalSnapshot()
		if err := s.rescanLocked(); err != nil {
			return nil, err
		}
		return s, nil
	}
	s.snapshot = snap
	return s, nil
}

// Dir returns the data directory root.
func (s *Store) Dir() string { return s.dir }

// JournalPath returns the sync journal location inside the store.
func (s *Store) JournalPath() string { return filepath.Join(s.dir, journalFileName) }

// PackDir returns the directory holding one pack's files.
func (s *Store) PackDir(slug string) string {
	return filepath.Join(s.dir, packsDirName, slug)
}

func (s *Store) snapshotPath() string { return filepath.Join(s.dir, snapshotFileName) }
func (s *Store) packsRoot() string    { return filepath.Join(s.dir, packsDirName) }
func (s *Store) stagingRoot() string  { return filepath.Join(s.dir, stagingDirName) }

// Snapshot returns a deep copy of the current snapshot.
func (s *Store) Snapshot() *types.LocalSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot.Clone()
}

// Installed returns the committed state for one pack.
func (s *Store) Installed(slug string) (types.InstalledPack, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.snapshot.Packs[slug]
	if ok {
		p.Files = slices.Clone(p.Files)
	}
	return p, ok
}

// Remove deletes a pack's directory and snapshot entry and persists
// the snapshot. Removing a pack that is not installed is a no-op.
func (s *Store) Remove(slug string) error {
	if err := types.ValidateSlug(slug); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Snapshot entry first: an interruption after this point leaves
	// stray files that the next sync or rescan cleans up, never a
	// phantom install.
	if _, ok := s.snapshot.Packs[slug]; ok {
		delete(s.snapshot.Packs, slug)
		if err := s.persistSnapshotLocked(); err != nil {
			return err
		}
	}
	if err := os.RemoveAll(s.PackDir(slug)); err != nil {
		return fmt.Errorf("remove pack %s: %w", slug, err)
	}
	return nil
}

// PackConfig holds local per-pack settings, stored next to the pack files.
type PackConfig struct {
	// Disabled hides the pack from consumers without touching sync.
	Disabled bool `json:"disabled"`
}

// SetDisabled flips the pack's local disabled flag. The pack must be
// installed. Disabled packs still sync; the flag only gates consumers.
func (s *Store) SetDisabled(slug string, disabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.snapshot.Packs[slug]; !ok {
		return fmt.Errorf("pack %s is not installed", slug)
	}
	cfg, err := readPackConfig(s.PackDir(slug))
	if err != nil {
		return err
	}
	cfg.Disabled = disabled

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal pack config: %w", err)
	}
	return writeFileAtomic(filepath.Join(s.PackDir(slug), packConfigName), data, 0o644)
}

// Disabled reports the pack's local disabled flag.
func (s *Store) Disabled(slug string) (bool, error) {
	cfg, err := readPackConfig(s.PackDir(slug))
	if err != nil {
		return false, err
	}
	return cfg.Disabled, nil
}

// persistSnapshotLocked writes the snapshot via temp-file + rename.
// Callers must hold s.mu.
func (s *Store) persistSnapshotLocked() error {
	data, err := json.MarshalIndent(s.snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := writeFileAtomic(s.snapshotPath(), data, 0o644); err != nil {
		return fmt.Errorf("persist snapshot: %w", err)
	}
	return nil
}

// clearStaging empties the staging root.
func (s *Store) clearStaging() error {
	entries, err := os.ReadDir(s.stagingRoot())
	if err != nil {
		return fmt.Errorf("read staging dir: %w", err)
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(s.stagingRoot(), e.Name())); err != nil {
			return fmt.Errorf("clear staging: %w", err)
		}
	}
	return nil
}

// loadSnapshot reads snapshot.json. Returns (nil, nil) when the file
// does not exist.
func loadSnapshot(path string) (*types.LocalSnapshot, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snap types.LocalSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	if snap.Packs == nil {
		snap.Packs = make(map[string]types.InstalledPack)
	}
	return &snap, nil
}

// readPackManifest loads pack.json from a pack directory.
func readPackManifest(packDir string) (*types.PackManifest, error) {
	data, err := os.ReadFile(filepath.Join(packDir, packManifestName))
	if err != nil {
		return nil, err
	}
	var pack types.PackManifest
	if err := json.Unmarshal(data, &pack); err != nil {
		return nil, fmt.Errorf("decode pack.json: %w", err)
	}
	return &pack, nil
}

// readPackConfig loads config.json from a pack directory. A missing
// file yields the zero config.
func readPackConfig(packDir string) (*PackConfig, error) {
	data, err := os.ReadFile(filepath.Join(packDir, packConfigName))
	if os.IsNotExist(err) {
		return &PackConfig{}, nil
	}
	if err != nil {
		return nil, err
	}
	var cfg PackConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode config.json: %w", err)
	}
	return &cfg, nil
}

// writeFileAtomic writes data via a temp file in the same directory,
// then renames it into place so the swap never crosses filesystems.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, perm); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
