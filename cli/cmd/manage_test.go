package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/halfmoth/stickersync/store"
	"github.com/halfmoth/stickersync/types"
)

// seedPack installs a pack directly through the store's staging path.
func seedPack(t *testing.T, dataDir, slug, version string, files map[string]string) {
	t.Helper()
	st, err := store.Open(dataDir, nil)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	man := &types.PackManifest{Slug: slug, Name: "The " + slug + " pack", Version: version}
	stg, err := st.Begin(slug)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	for path, content := range files {
		if _, err := stg.WriteFile(path, strings.NewReader(content)); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
		man.Files = append(man.Files, types.FileEntry{
			Path:   path,
			SHA256: hashOf([]byte(content)),
			Size:   int64(len(content)),
		})
	}
	if err := stg.Commit(man); err != nil {
		t.Fatalf("Commit: %v", err)
	}
}

func TestRemoveAction_RequiresSlug(t *testing.T) {
	app := newTestApp(RemoveCommand())

	err := app.Run([]string{"stickersync", "remove"})
	if err == nil {
		t.Fatal("expected error for missing slug")
	}
	if !strings.Contains(err.Error(), "slug required") {
		t.Errorf("error should mention missing slug, got: %v", err)
	}
}

func TestRemoveAction_NotInstalled(t *testing.T) {
	cfgPath := writeConfig(t, t.TempDir(), "")
	app := newTestApp(RemoveCommand())

	err := app.Run([]string{"stickersync", "--config", cfgPath, "remove", "cats"})
	if err == nil {
		t.Fatal("expected error for unknown pack")
	}
	if !strings.Contains(err.Error(), "not installed") {
		t.Errorf("error should mention pack not installed, got: %v", err)
	}
}

func TestRemoveAction_RemovesPack(t *testing.T) {
	dataDir := t.TempDir()
	seedPack(t, dataDir, "cats", "1.0.0", map[string]string{"img/cat.png": "cat"})
	cfgPath := writeConfig(t, dataDir, "")

	app := newTestApp(RemoveCommand())
	if err := app.Run([]string{"stickersync", "--config", cfgPath, "remove", "cats"}); err != nil {
		t.Fatalf("remove: %v", err)
	}

	st, err := store.Open(dataDir, nil)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	if _, ok := st.Installed("cats"); ok {
		t.Error("cats should be gone from the snapshot")
	}
	if _, err := os.Stat(st.PackDir("cats")); !os.IsNotExist(err) {
		t.Error("cats directory should be deleted")
	}
}

func TestEnableDisableActions(t *testing.T) {
	dataDir := t.TempDir()
	seedPack(t, dataDir, "cats", "1.0.0", map[string]string{"a.png": "x"})
	cfgPath := writeConfig(t, dataDir, "")

	app := newTestApp(EnableCommand(), DisableCommand())

	if err := app.Run([]string{"stickersync", "--config", cfgPath, "disable", "cats"}); err != nil {
		t.Fatalf("disable: %v", err)
	}
	st, err := store.Open(dataDir, nil)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	if disabled, _ := st.Disabled("cats"); !disabled {
		t.Error("cats should be disabled")
	}

	if err := app.Run([]string{"stickersync", "--config", cfgPath, "enable", "cats"}); err != nil {
		t.Fatalf("enable: %v", err)
	}
	if disabled, _ := st.Disabled("cats"); disabled {
		t.Error("cats should be enabled again")
	}
}

func TestDisableAction_NotInstalled(t *testing.T) {
	cfgPath := writeConfig(t, t.TempDir(), "")
	app := newTestApp(DisableCommand())

	err := app.Run([]string{"stickersync", "--config", cfgPath, "disable", "ghost"})
	if err == nil {
		t.Fatal("expected error for unknown pack")
	}
	if !strings.Contains(err.Error(), "not installed") {
		t.Errorf("error should mention pack not installed, got: %v", err)
	}
}

func TestReloadAction_RebuildsSnapshot(t *testing.T) {
	dataDir := t.TempDir()
	seedPack(t, dataDir, "cats", "1.0.0", map[string]string{"a.png": "x"})
	cfgPath := writeConfig(t, dataDir, "")

	// Corrupt the snapshot so only a rescan of pack.json restores truth.
	snapPath := filepath.Join(dataDir, "snapshot.json")
	data, err := os.ReadFile(snapPath)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	tampered := strings.ReplaceAll(string(data), "1.0.0", "9.9.9")
	if err := os.WriteFile(snapPath, []byte(tampered), 0o644); err != nil {
		t.Fatalf("write snapshot: %v", err)
	}

	app := newTestApp(ReloadCommand())
	if err := app.Run([]string{"stickersync", "--config", cfgPath, "reload"}); err != nil {
		t.Fatalf("reload: %v", err)
	}

	st, err := store.Open(dataDir, nil)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	pack, ok := st.Installed("cats")
	if !ok {
		t.Fatal("cats should survive the rescan")
	}
	if pack.Version != "1.0.0" {
		t.Errorf("version = %q, want the on-disk 1.0.0", pack.Version)
	}
}

func TestVerifyAction_DirtyLibrary(t *testing.T) {
	dataDir := t.TempDir()
	seedPack(t, dataDir, "cats", "1.0.0", map[string]string{"a.png": "clean"})
	cfgPath := writeConfig(t, dataDir, "")

	app := newTestApp(VerifyCommand())
	args := []string{"stickersync", "--config", cfgPath, "verify", "--format", "json"}

	if err := app.Run(args); exitCode(t, err) != 0 {
		t.Fatalf("verify on a clean library should pass, got: %v", err)
	}

	st, err := store.Open(dataDir, nil)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	if err := os.WriteFile(filepath.Join(st.PackDir("cats"), "a.png"), []byte("dirty"), 0o644); err != nil {
		t.Fatalf("tamper file: %v", err)
	}

	if code := exitCode(t, app.Run(args)); code != 1 {
		t.Errorf("verify on a dirty library should exit 1, got %d", code)
	}
}

func TestVerifyAction_UnknownPack(t *testing.T) {
	cfgPath := writeConfig(t, t.TempDir(), "")
	app := newTestApp(VerifyCommand())

	err := app.Run([]string{"stickersync", "--config", cfgPath, "verify", "ghost"})
	if err == nil {
		t.Fatal("expected error for unknown pack")
	}
	if !strings.Contains(err.Error(), "not installed") {
		t.Errorf("error should mention pack not installed, got: %v", err)
	}
}

func TestShowAction_RequiresSlug(t *testing.T) {
	app := newTestApp(ShowCommand())

	err := app.Run([]string{"stickersync", "show"})
	if err == nil {
		t.Fatal("expected error for missing slug")
	}
	if !strings.Contains(err.Error(), "slug required") {
		t.Errorf("error should mention missing slug, got: %v", err)
	}
}

func TestShowAction_NotInstalled(t *testing.T) {
	cfgPath := writeConfig(t, t.TempDir(), "")
	app := newTestApp(ShowCommand())

	err := app.Run([]string{"stickersync", "--config", cfgPath, "show", "ghost"})
	if err == nil {
		t.Fatal("expected error for unknown pack")
	}
	if !strings.Contains(err.Error(), "not installed") {
		t.Errorf("error should mention pack not installed, got: %v", err)
	}
}

func TestListAction_TUIRejected(t *testing.T) {
	app := newTestApp(ListCommand())

	err := app.Run([]string{"stickersync", "list", "--tui"})
	if err == nil {
		t.Fatal("expected error for --tui on list")
	}
	if !strings.Contains(err.Error(), "--tui is not supported for list commands") {
		t.Errorf("error should reject --tui, got: %v", err)
	}
}

func TestHistoryAction_TUIRejected(t *testing.T) {
	app := newTestApp(HistoryCommand())

	err := app.Run([]string{"stickersync", "history", "--tui"})
	if err == nil {
		t.Fatal("expected error for --tui on history")
	}
	if !strings.Contains(err.Error(), "--tui is not supported") {
		t.Errorf("error should reject --tui, got: %v", err)
	}
}

func TestStatusAction_EmptyLibrary(t *testing.T) {
	cfgPath := writeConfig(t, t.TempDir(), "")
	app := newTestApp(StatusCommand())

	if err := app.Run([]string{"stickersync", "--config", cfgPath, "status", "--format", "json"}); err != nil {
		t.Fatalf("status: %v", err)
	}
}
