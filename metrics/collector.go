// Package metrics provides per-run metrics collection for the sync engine.
//
// The Collector accumulates counters during a single sync run. It is a leaf
// package with no internal dependencies. A Snapshot is taken once at run
// completion and embedded in the sync report.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all run metrics.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Manifest
	ManifestFetches       int64
	ManifestFetchFailures int64

	// Packs
	PacksPlanned   int64
	PacksInstalled int64
	PacksUpdated   int64
	PacksRemoved   int64
	PacksUnchanged int64
	PacksFailed    int64

	// Files
	FilesDownloaded int64
	FilesFailed     int64
	BytesDownloaded int64

	// Retry behavior
	DownloadRetries    int64
	RateLimitCooldowns int64
	IntegrityRetries   int64

	// FileFailuresByKind counts exhausted file downloads by failure kind
	// (timeout, connection, status, decode, integrity).
	FileFailuresByKind map[string]int64

	// Dimensions (informational, set at construction)
	SourceBackend string
	RunID         string
	Trigger       string
}

// Collector accumulates metrics during a single sync run.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe so
// components can run without a collector wired in.
type Collector struct {
	mu sync.Mutex

	manifestFetches       int64
	manifestFetchFailures int64

	packsPlanned   int64
	packsInstalled int64
	packsUpdated   int64
	packsRemoved   int64
	packsUnchanged int64
	packsFailed    int64

	filesDownloaded int64
	filesFailed     int64
	bytesDownloaded int64

	downloadRetries    int64
	rateLimitCooldowns int64
	integrityRetries   int64

	fileFailuresByKind map[string]int64

	sourceBackend string
	runID         string
	trigger       string
}

// NewCollector creates a Collector with dimension labels.
// sourceBackend names the configured hub backend (github, url, s3).
func NewCollector(sourceBackend, runID, trigger string) *Collector {
	return &Collector{
		fileFailuresByKind: make(map[string]int64),
		sourceBackend:      sourceBackend,
		runID:              runID,
		trigger:            trigger,
	}
}

// --- Manifest ---

// IncManifestFetch records a manifest fetch attempt cycle.
func (c *Collector) IncManifestFetch() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.manifestFetches++
	c.mu.Unlock()
}

// IncManifestFetchFailure records a run-fatal manifest fetch failure.
func (c *Collector) IncManifestFetchFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.manifestFetchFailures++
	c.mu.Unlock()
}

// --- Packs ---

// AddPacksPlanned records the number of fetch/remove actions in the plan.
func (c *Collector) AddPacksPlanned(n int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.packsPlanned += n
	c.mu.Unlock()
}

// IncPackInstalled records a first-time pack commit.
func (c *Collector) IncPackInstalled() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.packsInstalled++
	c.mu.Unlock()
}

// IncPackUpdated records a pack whose installed version was replaced.
func (c *Collector) IncPackUpdated() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.packsUpdated++
	c.mu.Unlock()
}

// IncPackRemoved records a pack deletion.
func (c *Collector) IncPackRemoved() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.packsRemoved++
	c.mu.Unlock()
}

// IncPackUnchanged records a pack already current.
func (c *Collector) IncPackUnchanged() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.packsUnchanged++
	c.mu.Unlock()
}

// IncPackFailed records a pack left at its prior state.
func (c *Collector) IncPackFailed() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.packsFailed++
	c.mu.Unlock()
}

// --- Files ---

// IncFileDownloaded records one successfully staged file and its size.
func (c *Collector) IncFileDownloaded(bytes int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.filesDownloaded++
	c.bytesDownloaded += bytes
	c.mu.Unlock()
}

// IncFileFailed records one file that exhausted its attempts, keyed by the
// classified failure kind (timeout, connection, status, decode, integrity).
func (c *Collector) IncFileFailed(kind string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.filesFailed++
	c.fileFailuresByKind[kind]++
	c.mu.Unlock()
}

// --- Retry behavior ---

// IncDownloadRetry records a retry attempt beyond the first.
func (c *Collector) IncDownloadRetry() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.downloadRetries++
	c.mu.Unlock()
}

// IncRateLimitCooldown records a cooldown sleep after a rate-limited attempt.
func (c *Collector) IncRateLimitCooldown() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.rateLimitCooldowns++
	c.mu.Unlock()
}

// IncIntegrityRetry records a downloaded-content hash mismatch that was
// retried like a transport failure.
func (c *Collector) IncIntegrityRetry() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.integrityRetries++
	c.mu.Unlock()
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all metrics.
// The returned Snapshot is safe to read concurrently; the Collector can
// continue to be mutated independently.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	byKind := make(map[string]int64, len(c.fileFailuresByKind))
	for k, v := range c.fileFailuresByKind {
		byKind[k] = v
	}

	return Snapshot{
		ManifestFetches:       c.manifestFetches,
		ManifestFetchFailures: c.manifestFetchFailures,

		PacksPlanned:   c.packsPlanned,
		PacksInstalled: c.packsInstalled,
		PacksUpdated:   c.packsUpdated,
		PacksRemoved:   c.packsRemoved,
		PacksUnchanged: c.packsUnchanged,
		PacksFailed:    c.packsFailed,

		FilesDownloaded: c.filesDownloaded,
		FilesFailed:     c.filesFailed,
		BytesDownloaded: c.bytesDownloaded,

		DownloadRetries:    c.downloadRetries,
		RateLimitCooldowns: c.rateLimitCooldowns,
		IntegrityRetries:   c.integrityRetries,

		FileFailuresByKind: byKind,

		SourceBackend: c.sourceBackend,
		RunID:         c.runID,
		Trigger:       c.trigger,
	}
}
