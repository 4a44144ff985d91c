package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/halfmoth/stickersync/cli/render"
	"github.com/halfmoth/stickersync/log"
)

// ListCommand returns the list command.
// List returns thin rows; show has the per-pack detail.
func ListCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List installed packs",
		Flags: append(ReadOnlyFlags(),
			&cli.BoolFlag{
				Name:  "remote",
				Usage: "List hub-published packs with their local state",
			},
		),
		Action: listAction,
	}
}

func listAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	// TUI not supported for list commands
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for list commands", 1)
	}

	rd, cfg, err := openReader(c)
	if err != nil {
		return err
	}

	if !c.Bool("remote") {
		rows, err := rd.Installed()
		if err != nil {
			return err
		}
		return r.Render(rows)
	}

	// --remote is the one read path that touches the network.
	src, err := buildSource(c.Context, cfg)
	if err != nil {
		return err
	}
	defer closeSource(src)

	manifest, err := buildHub(src, cfg, log.New(cfg.Log.Level)).Manifest(c.Context)
	if err != nil {
		return fmt.Errorf("fetch catalog: %w", err)
	}

	return r.Render(rd.Remote(manifest))
}
