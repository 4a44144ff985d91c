package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

// ReloadCommand returns the reload command.
func ReloadCommand() *cli.Command {
	return &cli.Command{
		Name:   "reload",
		Usage:  "Rebuild the library snapshot from the pack manifests on disk",
		Action: reloadAction,
	}
}

func reloadAction(c *cli.Context) error {
	st, err := openStore(c)
	if err != nil {
		return err
	}
	if err := st.Rescan(); err != nil {
		return err
	}

	fmt.Printf("reloaded %d packs from %s\n", len(st.Snapshot().Packs), st.Dir())
	return nil
}
