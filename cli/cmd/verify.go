package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/halfmoth/stickersync/cli/render"
)

// VerifyCommand returns the verify command.
func VerifyCommand() *cli.Command {
	return &cli.Command{
		Name:      "verify",
		Usage:     "Re-hash installed files against their recorded digests",
		ArgsUsage: "[slug]",
		Flags:     ReadOnlyFlags(),
		Action:    verifyAction,
	}
}

func verifyAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for verify", 1)
	}

	rd, _, err := openReader(c)
	if err != nil {
		return err
	}

	report, err := rd.Verify(c.Args().First())
	if err != nil {
		return err
	}

	if err := r.Render(report); err != nil {
		return err
	}

	// A dirty library is a failure even though the command itself ran.
	if !report.Clean {
		return cli.Exit("", 1)
	}
	return nil
}
