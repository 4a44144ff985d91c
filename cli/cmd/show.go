package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/halfmoth/stickersync/cli/render"
)

// ShowCommand returns the show command.
// Show returns the deep view of one installed pack.
func ShowCommand() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show an installed pack in detail",
		ArgsUsage: "<slug>",
		Flags:     TUIReadOnlyFlags(),
		Action:    showAction,
	}
}

func showAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("slug required", 1)
	}
	slug := c.Args().First()

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	rd, _, err := openReader(c)
	if err != nil {
		return err
	}

	detail, err := rd.Pack(slug)
	if err != nil {
		return err
	}

	if c.Bool("tui") {
		return r.RenderTUI("pack", detail)
	}

	return r.Render(detail)
}
