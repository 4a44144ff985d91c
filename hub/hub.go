// Package hub reads the pack catalog from a remote source.
//
// The hub layout contract: the catalog lives at manifest.json in the
// hub root, and every pack file lives under the pack's slug directory,
// so the hub-relative path of an entry is <slug>/<entry path>.
package hub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/halfmoth/stickersync/log"
	"github.com/halfmoth/stickersync/retry"
	"github.com/halfmoth/stickersync/source"
	"github.com/halfmoth/stickersync/types"
)

// Default hub repository coordinates.
const (
	DefaultOwner = "lgc-NB2Dev"
	DefaultRepo  = "meme-stickers-hub"
	DefaultRef   = "main"
)

// ManifestPath is the hub-relative path of the pack catalog.
const ManifestPath = "manifest.json"

// FilePath composes the hub-relative fetch path for a pack file.
func FilePath(slug, entryPath string) string {
	return slug + "/" + entryPath
}

// Client reads the catalog from a source with retries.
type Client struct {
	source       source.Source
	retry        retry.Config
	logger       *log.Logger
	manifestPath string
}

// New creates a hub client over the given source. A nil logger is
// replaced with a no-op logger.
func New(src source.Source, retryCfg retry.Config, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Nop()
	}
	return &Client{source: src, retry: retryCfg, logger: logger, manifestPath: ManifestPath}
}

// WithManifest returns a copy of the client that fetches the catalog
// from path instead of the default ManifestPath.
func (c *Client) WithManifest(path string) *Client {
	clone := *c
	clone.manifestPath = path
	return &clone
}

// Describe returns the underlying source description.
func (c *Client) Describe() string {
	return c.source.Describe()
}

// Manifest fetches, decodes, and validates the hub catalog.
//
// Transport failures are retried per the client's retry config. A
// catalog that arrives but does not decode or validate is a decode
// failure and is never retried: the content is deterministic, so a
// second fetch cannot help.
func (c *Client) Manifest(ctx context.Context) (*types.RemoteManifest, error) {
	cfg := c.retry
	cfg.OnRetry = func(err error) {
		c.logger.Warn("manifest fetch retry", map[string]any{
			"hub":   c.source.Describe(),
			"error": err.Error(),
		})
	}

	body, err := retry.Do(ctx, cfg, func(ctx context.Context) ([]byte, error) {
		return c.source.Fetch(ctx, c.manifestPath)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch manifest: %w", err)
	}

	var manifest types.RemoteManifest
	if err := json.Unmarshal(body, &manifest); err != nil {
		return nil, &source.FetchError{Kind: source.KindDecode, Path: c.manifestPath, Err: err}
	}
	if err := manifest.Validate(); err != nil {
		return nil, &source.FetchError{Kind: source.KindDecode, Path: c.manifestPath, Err: err}
	}

	c.logger.Debug("manifest fetched", map[string]any{
		"hub":   c.source.Describe(),
		"packs": len(manifest.Packs),
	})
	return &manifest, nil
}
