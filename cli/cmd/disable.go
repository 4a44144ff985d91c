package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

// DisableCommand returns the disable command.
// Disabled packs stay installed and keep syncing; the flag only hides
// them from consumers.
func DisableCommand() *cli.Command {
	return &cli.Command{
		Name:      "disable",
		Usage:     "Set a pack's disabled flag",
		ArgsUsage: "<slug>",
		Action:    disableAction,
	}
}

func disableAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("slug required", 1)
	}
	slug := c.Args().First()

	st, err := openStore(c)
	if err != nil {
		return err
	}
	if err := st.SetDisabled(slug, true); err != nil {
		return err
	}

	fmt.Printf("disabled %s\n", slug)
	return nil
}
