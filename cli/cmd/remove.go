package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

// RemoveCommand returns the remove command.
func RemoveCommand() *cli.Command {
	return &cli.Command{
		Name:      "remove",
		Usage:     "Delete an installed pack from the local library",
		ArgsUsage: "<slug>",
		Action:    removeAction,
	}
}

func removeAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("slug required", 1)
	}
	slug := c.Args().First()

	st, err := openStore(c)
	if err != nil {
		return err
	}

	if _, ok := st.Installed(slug); !ok {
		return fmt.Errorf("pack %s is not installed", slug)
	}
	if err := st.Remove(slug); err != nil {
		return err
	}

	// The next sync reinstalls the pack if the hub still publishes it;
	// disable keeps a pack while hiding it from consumers.
	fmt.Printf("removed %s\n", slug)
	return nil
}
