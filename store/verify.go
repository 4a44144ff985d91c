package store

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/halfmoth/stickersync/iox"
	"github.com/halfmoth/stickersync/types"
)

// Verify problem kinds.
const (
	ProblemMissing    = "missing"
	ProblemMismatch   = "hash_mismatch"
	ProblemUnreadable = "unreadable"
)

// VerifyProblem describes one integrity finding.
type VerifyProblem struct {
	Slug   string `json:"slug"`
	Path   string `json:"path"`
	Kind   string `json:"kind"`
	Detail string `json:"detail,omitempty"`
}

func (p VerifyProblem) String() string {
	if p.Detail != "" {
		return fmt.Sprintf("%s/%s: %s (%s)", p.Slug, p.Path, p.Kind, p.Detail)
	}
	return fmt.Sprintf("%s/%s: %s", p.Slug, p.Path, p.Kind)
}

// Verify re-hashes one pack's committed files against the snapshot.
// Returns one problem per missing, unreadable, or altered file; an
// empty slice means the pack matches its recorded state.
func (s *Store) Verify(slug string) ([]VerifyProblem, error) {
	s.mu.Lock()
	pack, ok := s.snapshot.Packs[slug]
	if ok {
		pack.Files = slices.Clone(pack.Files)
	}
	s.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("pack %s is not installed", slug)
	}
	return s.verifyPack(slug, pack), nil
}

// VerifyAll verifies every installed pack in slug order.
func (s *Store) VerifyAll() ([]VerifyProblem, error) {
	snap := s.Snapshot()

	var problems []VerifyProblem
	for _, slug := range snap.Slugs() {
		problems = append(problems, s.verifyPack(slug, snap.Packs[slug])...)
	}
	return problems, nil
}

func (s *Store) verifyPack(slug string, pack types.InstalledPack) []VerifyProblem {
	var problems []VerifyProblem
	for _, f := range pack.Files {
		path := filepath.Join(s.PackDir(slug), filepath.FromSlash(f.Path))
		sum, err := hashFile(path)
		switch {
		case os.IsNotExist(err):
			problems = append(problems, VerifyProblem{Slug: slug, Path: f.Path, Kind: ProblemMissing})
		case err != nil:
			problems = append(problems, VerifyProblem{
				Slug: slug, Path: f.Path, Kind: ProblemUnreadable, Detail: err.Error(),
			})
		case sum != f.SHA256:
			problems = append(problems, VerifyProblem{
				Slug: slug, Path: f.Path, Kind: ProblemMismatch,
				Detail: fmt.Sprintf("have %s, want %s", sum, f.SHA256),
			})
		}
	}
	return problems
}

// hashFile returns the lowercase hex SHA-256 of the file content.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer iox.DiscardClose(f)

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
