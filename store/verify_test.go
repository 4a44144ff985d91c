package store

import (
	"os"
	"path/filepath"
	"testing"
)

func TestVerifyCleanPack(t *testing.T) {
	s := newTestStore(t)
	commitPack(t, s, "cats", "1.0.0", map[string]string{
		"icon.png":        "meow",
		"images/grin.png": "grin",
	})

	problems, err := s.Verify("cats")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if len(problems) != 0 {
		t.Errorf("problems = %v, want none", problems)
	}
}

func TestVerifyDetectsFlippedBytes(t *testing.T) {
	s := newTestStore(t)
	commitPack(t, s, "cats", "1.0.0", map[string]string{"icon.png": "meow"})

	if err := os.WriteFile(filepath.Join(s.PackDir("cats"), "icon.png"), []byte("woof"), 0o644); err != nil {
		t.Fatalf("corrupt file: %v", err)
	}

	problems, err := s.Verify("cats")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if len(problems) != 1 || problems[0].Kind != ProblemMismatch {
		t.Errorf("problems = %v, want one hash mismatch", problems)
	}
}

func TestVerifyDetectsMissingFile(t *testing.T) {
	s := newTestStore(t)
	commitPack(t, s, "cats", "1.0.0", map[string]string{"icon.png": "meow"})

	if err := os.Remove(filepath.Join(s.PackDir("cats"), "icon.png")); err != nil {
		t.Fatalf("remove file: %v", err)
	}

	problems, err := s.Verify("cats")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if len(problems) != 1 || problems[0].Kind != ProblemMissing {
		t.Errorf("problems = %v, want one missing file", problems)
	}
}

func TestVerifyUninstalledPack(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Verify("ghost"); err == nil {
		t.Error("Verify on an uninstalled pack should fail")
	}
}

func TestVerifyAllAggregatesAcrossPacks(t *testing.T) {
	s := newTestStore(t)
	commitPack(t, s, "cats", "1.0.0", map[string]string{"icon.png": "meow"})
	commitPack(t, s, "dogs", "1.0.0", map[string]string{"icon.png": "woof"})

	if err := os.Remove(filepath.Join(s.PackDir("dogs"), "icon.png")); err != nil {
		t.Fatalf("remove file: %v", err)
	}

	problems, err := s.VerifyAll()
	if err != nil {
		t.Fatalf("VerifyAll: %v", err)
	}
	if len(problems) != 1 || problems[0].Slug != "dogs" {
		t.Errorf("problems = %v, want one problem in dogs", problems)
	}
}

func TestRescanRebuildsSnapshot(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	commitPack(t, s, "cats", "1.2.0", map[string]string{"icon.png": "meow"})
	commitPack(t, s, "dogs", "2.0.0", map[string]string{
		"icon.png":       "woof",
		"images/run.png": "zoom",
	})

	if err := os.Remove(filepath.Join(dir, snapshotFileName)); err != nil {
		t.Fatalf("drop snapshot: %v", err)
	}

	recovered, err := Open(dir, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}

	cats, ok := recovered.Installed("cats")
	if !ok || cats.Version != "1.2.0" {
		t.Errorf("cats not recovered: %+v ok=%v", cats, ok)
	}
	dogs, ok := recovered.Installed("dogs")
	if !ok || dogs.Version != "2.0.0" || len(dogs.Files) != 2 {
		t.Errorf("dogs not recovered: %+v ok=%v", dogs, ok)
	}

	// The rebuilt snapshot must still verify clean.
	problems, err := recovered.VerifyAll()
	if err != nil {
		t.Fatalf("VerifyAll: %v", err)
	}
	if len(problems) != 0 {
		t.Errorf("problems after rescan = %v", problems)
	}
}

func TestRescanSkipsInterruptedPack(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	commitPack(t, s, "cats", "1.0.0", map[string]string{"icon.png": "meow"})

	marker := filepath.Join(s.PackDir("cats"), updatingMarker)
	if err := os.WriteFile(marker, nil, 0o644); err != nil {
		t.Fatalf("write marker: %v", err)
	}
	if err := os.Remove(filepath.Join(dir, snapshotFileName)); err != nil {
		t.Fatalf("drop snapshot: %v", err)
	}

	recovered, err := Open(dir, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if _, ok := recovered.Installed("cats"); ok {
		t.Error("interrupted pack must not be re-admitted")
	}
	if _, err := os.Stat(marker); !os.IsNotExist(err) {
		t.Error("stale updating marker not cleared")
	}
}

func TestRescanIgnoresDirWithoutPackJSON(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := os.MkdirAll(s.PackDir("junk"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	if err := s.Rescan(); err != nil {
		t.Fatalf("Rescan: %v", err)
	}
	if _, ok := s.Installed("junk"); ok {
		t.Error("directory without pack.json must not be admitted")
	}
}
