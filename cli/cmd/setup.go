package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/halfmoth/stickersync/adapter"
	adapterredis "github.com/halfmoth/stickersync/adapter/redis"
	"github.com/halfmoth/stickersync/adapter/webhook"
	"github.com/halfmoth/stickersync/cli/config"
	"github.com/halfmoth/stickersync/cli/reader"
	"github.com/halfmoth/stickersync/hub"
	"github.com/halfmoth/stickersync/journal"
	"github.com/halfmoth/stickersync/log"
	"github.com/halfmoth/stickersync/source"
	"github.com/halfmoth/stickersync/store"
)

// loadConfig resolves and validates the config for a command: the
// --config path when given, the default path otherwise.
func loadConfig(c *cli.Context) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path := c.String("config"); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// openLibrary opens the local store and, when history is enabled, its
// journal. The journal is nil when disabled.
func openLibrary(cfg *config.Config, logger *log.Logger) (*store.Store, *journal.Journal, error) {
	st, err := store.Open(cfg.DataDir, logger)
	if err != nil {
		return nil, nil, err
	}
	var jn *journal.Journal
	if cfg.JournalEnabled() {
		jn = journal.Open(st.JournalPath())
	}
	return st, jn, nil
}

// openReader wires the read-side view assembly for a command. Read
// commands work entirely offline; nothing here touches the hub.
func openReader(c *cli.Context) (*reader.Reader, *config.Config, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}
	st, jn, err := openLibrary(cfg, log.New(cfg.Log.Level))
	if err != nil {
		return nil, nil, err
	}
	return reader.New(st, jn), cfg, nil
}

// openStore opens the local store for the mutation commands.
func openStore(c *cli.Context) (*store.Store, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	return store.Open(cfg.DataDir, log.New(cfg.Log.Level))
}

// buildSource creates the hub backend selected by source.kind.
func buildSource(ctx context.Context, cfg *config.Config) (source.Source, error) {
	switch cfg.Source.Kind {
	case config.KindGitHub, config.KindURL:
		tmpl, err := cfg.Template()
		if err != nil {
			return nil, err
		}
		sel, err := cfg.ProxySelector()
		if err != nil {
			return nil, err
		}
		return source.NewHTTPSource(source.HTTPConfig{
			Template: tmpl,
			Vars:     cfg.SourceVars(),
			Proxy:    sel,
		})
	case config.KindS3:
		return source.NewS3Source(ctx, source.S3Config{
			Bucket:       cfg.Source.Bucket,
			Prefix:       cfg.Source.Prefix,
			Region:       cfg.Source.Region,
			Endpoint:     cfg.Source.Endpoint,
			UsePathStyle: cfg.Source.S3PathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown source kind: %s", cfg.Source.Kind)
	}
}

// buildHub wraps a source in the retrying hub client.
func buildHub(src source.Source, cfg *config.Config, logger *log.Logger) *hub.Client {
	return hub.New(src, cfg.RetryPolicy(), logger).WithManifest(cfg.Source.Manifest)
}

// buildNotifiers creates the configured completion notifiers. An
// adapter that fails to construct aborts the whole set; already
// constructed adapters are closed before returning.
func buildNotifiers(cfg *config.Config) ([]adapter.Adapter, error) {
	var notifiers []adapter.Adapter

	closeAll := func() {
		for _, n := range notifiers {
			_ = n.Close()
		}
	}

	if w := cfg.Notify.Webhook; w != nil {
		wcfg := webhook.Config{
			URL:     w.URL,
			Headers: w.Headers,
			Timeout: w.Timeout.Duration,
			Retries: webhook.DefaultRetries,
		}
		if w.Retries != nil {
			wcfg.Retries = *w.Retries
		}
		a, err := webhook.New(wcfg)
		if err != nil {
			return nil, fmt.Errorf("notify: webhook: %w", err)
		}
		notifiers = append(notifiers, a)
	}

	if r := cfg.Notify.Redis; r != nil {
		rcfg := adapterredis.Config{
			URL:     r.URL,
			Channel: r.Channel,
			Timeout: r.Timeout.Duration,
			Retries: adapterredis.DefaultRetries,
		}
		if r.Retries != nil {
			rcfg.Retries = *r.Retries
		}
		a, err := adapterredis.New(rcfg)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("notify: redis: %w", err)
		}
		notifiers = append(notifiers, a)
	}

	return notifiers, nil
}

// closeNotifiers closes every adapter, keeping the first error.
func closeNotifiers(notifiers []adapter.Adapter) error {
	var firstErr error
	for _, n := range notifiers {
		if err := n.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
