package types

import (
	"testing"
)

func TestSlugs_Sorted(t *testing.T) {
	s := NewLocalSnapshot()
	s.Packs["zebra"] = InstalledPack{Version: "1"}
	s.Packs["alpha"] = InstalledPack{Version: "1"}
	s.Packs["mid"] = InstalledPack{Version: "1"}

	got := s.Slugs()
	want := []string{"alpha", "mid", "zebra"}
	if len(got) != len(want) {
		t.Fatalf("expected %d slugs, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("slug %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestClone_Independent(t *testing.T) {
	s := NewLocalSnapshot()
	s.Packs["capoo"] = InstalledPack{
		Version: "1",
		Files:   []FileEntry{{Path: "a.png", SHA256: "aa", Size: 1}},
	}

	c := s.Clone()
	files := c.Packs["capoo"].Files
	files[0].SHA256 = "mutated"
	delete(c.Packs, "capoo")

	orig := s.Packs["capoo"]
	if orig.Files[0].SHA256 != "aa" {
		t.Errorf("clone mutation leaked into original: %q", orig.Files[0].SHA256)
	}
	if _, ok := s.Packs["capoo"]; !ok {
		t.Error("deleting from clone removed pack from original")
	}
}

func TestFileHash(t *testing.T) {
	p := InstalledPack{Files: []FileEntry{{Path: "a.png", SHA256: "aa"}}}

	if h := p.FileHash("a.png"); h != "aa" {
		t.Errorf("expected aa, got %q", h)
	}
	if h := p.FileHash("missing.png"); h != "" {
		t.Errorf("expected empty hash for unknown path, got %q", h)
	}
}
