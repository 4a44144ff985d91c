package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/halfmoth/stickersync/cli/config"
	"github.com/halfmoth/stickersync/cli/render"
)

// StatusCommand returns the status command.
func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:   "status",
		Usage:  "Show library totals and the last sync run",
		Flags:  TUIReadOnlyFlags(),
		Action: statusAction,
	}
}

func statusAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	rd, cfg, err := openReader(c)
	if err != nil {
		return err
	}

	status, err := rd.Status(describeSource(cfg))
	if err != nil {
		return err
	}

	if c.Bool("tui") {
		return r.RenderTUI("status", status)
	}

	return r.Render(status)
}

// describeSource renders the hub location without constructing a
// backend; status stays offline.
func describeSource(cfg *config.Config) string {
	switch cfg.Source.Kind {
	case config.KindS3:
		if cfg.Source.Prefix != "" {
			return fmt.Sprintf("s3://%s/%s", cfg.Source.Bucket, cfg.Source.Prefix)
		}
		return "s3://" + cfg.Source.Bucket
	case config.KindURL:
		return cfg.Source.URLTemplate
	default:
		return fmt.Sprintf("%s/%s@%s", cfg.Source.Owner, cfg.Source.Repo, cfg.Source.Ref)
	}
}
