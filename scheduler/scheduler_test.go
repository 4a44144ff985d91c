package scheduler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/halfmoth/stickersync/hub"
	"github.com/halfmoth/stickersync/metrics"
	"github.com/halfmoth/stickersync/planner"
	"github.com/halfmoth/stickersync/retry"
	"github.com/halfmoth/stickersync/source"
	"github.com/halfmoth/stickersync/store"
	"github.com/halfmoth/stickersync/types"
)

// fakeSource serves in-memory objects keyed by hub path, with optional
// per-path transient failures, corrupt serves, and a fixed delay.
type fakeSource struct {
	mu          sync.Mutex
	objects     map[string][]byte
	failures    map[string]int
	corrupt     map[string]int
	delay       time.Duration
	calls       int
	inFlight    int
	maxInFlight int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		objects:  make(map[string][]byte),
		failures: make(map[string]int),
		corrupt:  make(map[string]int),
	}
}

func (f *fakeSource) add(slug string, files map[string]string) {
	for p, content := range files {
		f.objects[hub.FilePath(slug, p)] = []byte(content)
	}
}

func (f *fakeSource) Fetch(ctx context.Context, p string) ([]byte, error) {
	f.mu.Lock()
	f.calls++
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	delay := f.delay
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures[p] > 0 {
		f.failures[p]--
		return nil, &source.FetchError{Kind: source.KindConnection, Path: p, Err: errors.New("connection reset")}
	}
	if f.corrupt[p] > 0 {
		f.corrupt[p]--
		return []byte("corrupted"), nil
	}
	body, ok := f.objects[p]
	if !ok {
		return nil, &source.FetchError{Kind: source.KindStatus, Path: p, Status: 404}
	}
	return append([]byte(nil), body...), nil
}

func (f *fakeSource) Describe() string { return "fake" }

var _ source.Source = (*fakeSource)(nil)

func hashOf(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func packWith(slug, version string, files map[string]string) types.PackManifest {
	pack := types.PackManifest{Slug: slug, Name: slug, Version: version}
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	for _, p := range paths {
		content := files[p]
		pack.Files = append(pack.Files, types.FileEntry{
			Path:   p,
			SHA256: hashOf(content),
			Size:   int64(len(content)),
		})
	}
	return pack
}

func newTestScheduler(t *testing.T, src source.Source, parallel int) (*Scheduler, *store.Store, *metrics.Collector) {
	t.Helper()
	st, err := store.Open(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	collector := metrics.NewCollector("fake", "run-1", "manual")
	sched, err := New(Config{
		Source:   src,
		Store:    st,
		Retry:    retry.Config{Attempts: 3},
		Parallel: parallel,
		Metrics:  collector,
	})
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	return sched, st, collector
}

func planFor(st *store.Store, packs ...types.PackManifest) *planner.SyncPlan {
	remote := &types.RemoteManifest{SchemaVersion: types.ManifestSchemaVersion, Packs: packs}
	return planner.Plan(remote, st.Snapshot(), planner.Options{})
}

func resultFor(t *testing.T, results []PackResult, slug string) PackResult {
	t.Helper()
	for _, r := range results {
		if r.Slug == slug {
			return r
		}
	}
	t.Fatalf("no result for %q", slug)
	return PackResult{}
}

func TestExecuteInstallsPack(t *testing.T) {
	files := map[string]string{
		"meta.json":      `{"name":"cats"}`,
		"images/one.png": "png-one",
	}
	src := newFakeSource()
	src.add("cats", files)
	sched, st, collector := newTestScheduler(t, src, 2)

	results := sched.Execute(t.Context(), planFor(st, packWith("cats", "1.0.0", files)))

	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}
	r := results[0]
	if r.Err != nil {
		t.Fatalf("unexpected pack error: %v", r.Err)
	}
	if r.Action != planner.ActionFetch || r.Installed {
		t.Errorf("result = %+v, want fresh fetch", r)
	}
	wantBytes := int64(len(files["meta.json"]) + len(files["images/one.png"]))
	if r.BytesDownloaded != wantBytes {
		t.Errorf("BytesDownloaded = %d, want %d", r.BytesDownloaded, wantBytes)
	}

	if _, ok := st.Installed("cats"); !ok {
		t.Fatal("expected cats in snapshot after execute")
	}
	got, err := os.ReadFile(filepath.Join(st.PackDir("cats"), "images/one.png"))
	if err != nil {
		t.Fatalf("read installed file: %v", err)
	}
	if string(got) != "png-one" {
		t.Errorf("installed content = %q, want %q", got, "png-one")
	}

	snap := collector.Snapshot()
	if snap.PacksInstalled != 1 || snap.PacksFailed != 0 {
		t.Errorf("metrics = %+v, want 1 installed, 0 failed", snap)
	}
	if snap.FilesDownloaded != 2 || snap.BytesDownloaded != wantBytes {
		t.Errorf("files = %d bytes = %d, want 2 files %d bytes", snap.FilesDownloaded, snap.BytesDownloaded, wantBytes)
	}
}

func TestExecuteFailedFileDiscardsPack(t *testing.T) {
	files := map[string]string{
		"meta.json":      `{"name":"dogs"}`,
		"images/one.png": "png-one",
	}
	src := newFakeSource()
	src.add("dogs", map[string]string{"meta.json": files["meta.json"]})
	sched, st, collector := newTestScheduler(t, src, 2)

	results := sched.Execute(t.Context(), planFor(st, packWith("dogs", "1.0.0", files)))

	r := results[0]
	if r.Err == nil {
		t.Fatal("expected pack failure, got success")
	}
	if r.Stage != types.StageDownload {
		t.Errorf("Stage = %q, want %q", r.Stage, types.StageDownload)
	}
	var fe *source.FetchError
	if !errors.As(r.Err, &fe) || fe.Status != 404 {
		t.Errorf("Err = %v, want a 404 fetch error", r.Err)
	}

	if _, ok := st.Installed("dogs"); ok {
		t.Error("failed pack must not appear in snapshot")
	}
	if _, err := os.Stat(st.PackDir("dogs")); !os.IsNotExist(err) {
		t.Errorf("pack dir should not exist, stat err = %v", err)
	}

	snap := collector.Snapshot()
	if snap.PacksFailed != 1 {
		t.Errorf("PacksFailed = %d, want 1", snap.PacksFailed)
	}
	if snap.FileFailuresByKind["status"] != 1 {
		t.Errorf("FileFailuresByKind = %v, want status:1", snap.FileFailuresByKind)
	}
}

func TestExecutePackFailureIsolated(t *testing.T) {
	goodFiles := map[string]string{"meta.json": "good"}
	badFiles := map[string]string{"meta.json": "bad", "missing.png": "never-served"}
	src := newFakeSource()
	src.add("good", goodFiles)
	src.add("bad", map[string]string{"meta.json": badFiles["meta.json"]})
	sched, st, _ := newTestScheduler(t, src, 2)

	results := sched.Execute(t.Context(), planFor(st,
		packWith("bad", "1.0.0", badFiles),
		packWith("good", "1.0.0", goodFiles),
	))

	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if r := resultFor(t, results, "bad"); r.Err == nil {
		t.Error("expected bad pack to fail")
	}
	if r := resultFor(t, results, "good"); r.Err != nil {
		t.Errorf("good pack failed: %v", r.Err)
	}
	if _, ok := st.Installed("good"); !ok {
		t.Error("good pack should be installed despite sibling failure")
	}
}

func TestExecuteRetriesCorruptDownload(t *testing.T) {
	files := map[string]string{"meta.json": "clean content"}
	src := newFakeSource()
	src.add("cats", files)
	src.corrupt[hub.FilePath("cats", "meta.json")] = 1
	sched, st, collector := newTestScheduler(t, src, 1)

	results := sched.Execute(t.Context(), planFor(st, packWith("cats", "1.0.0", files)))

	r := results[0]
	if r.Err != nil {
		t.Fatalf("unexpected error: %v", r.Err)
	}
	if len(r.Files) != 1 || r.Files[0].Attempts != 2 {
		t.Fatalf("Files = %+v, want one file with 2 attempts", r.Files)
	}

	snap := collector.Snapshot()
	if snap.IntegrityRetries != 1 {
		t.Errorf("IntegrityRetries = %d, want 1", snap.IntegrityRetries)
	}
	if snap.DownloadRetries != 1 {
		t.Errorf("DownloadRetries = %d, want 1", snap.DownloadRetries)
	}
}

func TestExecuteTransientFailureRecovers(t *testing.T) {
	files := map[string]string{"meta.json": "payload"}
	src := newFakeSource()
	src.add("cats", files)
	src.failures[hub.FilePath("cats", "meta.json")] = 2
	sched, st, _ := newTestScheduler(t, src, 1)

	results := sched.Execute(t.Context(), planFor(st, packWith("cats", "1.0.0", files)))

	if results[0].Err != nil {
		t.Fatalf("unexpected error after retries: %v", results[0].Err)
	}
	if got := results[0].Files[0].Attempts; got != 3 {
		t.Errorf("Attempts = %d, want 3", got)
	}
}

func TestExecuteBoundsConcurrency(t *testing.T) {
	files := make(map[string]string)
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		files["images/"+name+".png"] = "content-" + name
	}
	src := newFakeSource()
	src.add("cats", files)
	src.delay = 20 * time.Millisecond
	sched, st, _ := newTestScheduler(t, src, 2)

	results := sched.Execute(t.Context(), planFor(st, packWith("cats", "1.0.0", files)))

	if results[0].Err != nil {
		t.Fatalf("unexpected error: %v", results[0].Err)
	}
	src.mu.Lock()
	calls, maxInFlight := src.calls, src.maxInFlight
	src.mu.Unlock()
	if calls != 6 {
		t.Errorf("calls = %d, want 6", calls)
	}
	if maxInFlight > 2 {
		t.Errorf("maxInFlight = %d, want at most 2", maxInFlight)
	}
}

func TestExecuteUpdatesChangedFilesOnly(t *testing.T) {
	v1 := map[string]string{
		"meta.json":      `{"v":1}`,
		"images/one.png": "stable bytes",
	}
	src := newFakeSource()
	src.add("cats", v1)
	sched, st, collector := newTestScheduler(t, src, 2)

	if r := sched.Execute(t.Context(), planFor(st, packWith("cats", "1.0.0", v1))); r[0].Err != nil {
		t.Fatalf("install: %v", r[0].Err)
	}

	v2 := map[string]string{
		"meta.json":      `{"v":2}`,
		"images/one.png": "stable bytes",
	}
	src.add("cats", v2)
	results := sched.Execute(t.Context(), planFor(st, packWith("cats", "1.1.0", v2)))

	r := results[0]
	if r.Err != nil {
		t.Fatalf("update: %v", r.Err)
	}
	if !r.Installed {
		t.Error("update result should report pack as previously installed")
	}
	if len(r.Files) != 1 || r.Files[0].Path != "meta.json" {
		t.Fatalf("Files = %+v, want only meta.json refetched", r.Files)
	}

	installed, ok := st.Installed("cats")
	if !ok || installed.Version != "1.1.0" {
		t.Fatalf("installed = %+v ok = %v, want version 1.1.0", installed, ok)
	}
	got, err := os.ReadFile(filepath.Join(st.PackDir("cats"), "meta.json"))
	if err != nil || string(got) != `{"v":2}` {
		t.Errorf("meta.json = %q err = %v, want updated content", got, err)
	}

	snap := collector.Snapshot()
	if snap.PacksUpdated != 1 || snap.PacksInstalled != 1 {
		t.Errorf("metrics = %+v, want 1 installed then 1 updated", snap)
	}
}

func TestExecuteRemovesPack(t *testing.T) {
	files := map[string]string{"meta.json": "bye"}
	src := newFakeSource()
	src.add("cats", files)
	sched, st, collector := newTestScheduler(t, src, 2)

	if r := sched.Execute(t.Context(), planFor(st, packWith("cats", "1.0.0", files))); r[0].Err != nil {
		t.Fatalf("install: %v", r[0].Err)
	}

	results := sched.Execute(t.Context(), planFor(st))

	r := results[0]
	if r.Action != planner.ActionRemove || r.Err != nil {
		t.Fatalf("result = %+v, want clean remove", r)
	}
	if _, ok := st.Installed("cats"); ok {
		t.Error("removed pack still in snapshot")
	}
	if snap := collector.Snapshot(); snap.PacksRemoved != 1 {
		t.Errorf("PacksRemoved = %d, want 1", snap.PacksRemoved)
	}
}

func TestExecuteCountsUnchanged(t *testing.T) {
	files := map[string]string{"meta.json": "same"}
	src := newFakeSource()
	src.add("cats", files)
	sched, st, collector := newTestScheduler(t, src, 2)

	pack := packWith("cats", "1.0.0", files)
	if r := sched.Execute(t.Context(), planFor(st, pack)); r[0].Err != nil {
		t.Fatalf("install: %v", r[0].Err)
	}
	callsAfterInstall := src.calls

	results := sched.Execute(t.Context(), planFor(st, pack))

	if results[0].Action != planner.ActionNoOp {
		t.Errorf("Action = %q, want noop", results[0].Action)
	}
	if src.calls != callsAfterInstall {
		t.Errorf("noop run made %d extra fetches", src.calls-callsAfterInstall)
	}
	if snap := collector.Snapshot(); snap.PacksUnchanged != 1 {
		t.Errorf("PacksUnchanged = %d, want 1", snap.PacksUnchanged)
	}
}

func TestExecuteCanceledContext(t *testing.T) {
	files := map[string]string{"meta.json": "never fetched"}
	src := newFakeSource()
	src.add("cats", files)
	sched, st, _ := newTestScheduler(t, src, 2)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	results := sched.Execute(ctx, planFor(st, packWith("cats", "1.0.0", files)))

	r := results[0]
	if r.Err == nil {
		t.Fatal("expected failure under canceled context")
	}
	if !errors.Is(r.Err, context.Canceled) {
		t.Errorf("Err = %v, want context.Canceled", r.Err)
	}
	if _, ok := st.Installed("cats"); ok {
		t.Error("canceled run must not commit")
	}
}

func TestNewValidatesConfig(t *testing.T) {
	st, err := store.Open(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if _, err := New(Config{Store: st}); err == nil {
		t.Error("expected error for missing source")
	}
	if _, err := New(Config{Source: newFakeSource()}); err == nil {
		t.Error("expected error for missing store")
	}
}
