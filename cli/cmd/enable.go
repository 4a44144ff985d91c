package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

// EnableCommand returns the enable command.
func EnableCommand() *cli.Command {
	return &cli.Command{
		Name:      "enable",
		Usage:     "Clear a pack's disabled flag",
		ArgsUsage: "<slug>",
		Action:    enableAction,
	}
}

func enableAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("slug required", 1)
	}
	slug := c.Args().First()

	st, err := openStore(c)
	if err != nil {
		return err
	}
	if err := st.SetDisabled(slug, false); err != nil {
		return err
	}

	fmt.Printf("enabled %s\n", slug)
	return nil
}
