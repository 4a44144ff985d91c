// Package main provides the stickersync CLI entrypoint.
//
// sync and daemon are the only commands that mutate the library over
// the network; everything else is read-only or local.
//
// Usage:
//
//	stickersync [--config PATH] <command> [options]
//
// Exit codes for `sync`:
//   - 0: every pack consistent
//   - 1: some packs failed
//   - 2: run-fatal (manifest fetch, store access, sync in progress)
//   - 3: invalid configuration or usage
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/halfmoth/stickersync/cli/cmd"
	"github.com/halfmoth/stickersync/types"
)

// Commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	app := &cli.App{
		Name:           "stickersync",
		Usage:          "Sticker pack synchronization CLI",
		Version:        fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		Flags:          []cli.Flag{cmd.ConfigFlag},
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			cmd.SyncCommand(),
			cmd.DaemonCommand(),
			cmd.ListCommand(),
			cmd.ShowCommand(),
			cmd.StatusCommand(),
			cmd.HistoryCommand(),
			cmd.VerifyCommand(),
			cmd.RemoveCommand(),
			cmd.EnableCommand(),
			cmd.DisableCommand(),
			cmd.ReloadCommand(),
			cmd.VersionCommand(commit),
		},
	}

	if err := app.Run(os.Args); err != nil {
		// ExitErrHandler already handled the exit for cli.ExitCoder errors.
		// This branch handles unexpected errors that weren't wrapped.
		os.Exit(1)
	}
}

// exitErrHandler handles errors from the CLI, preserving exit codes
// from cli.Exit() so `sync` outcomes survive to the caller.
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}

	// Check for ExitCoder (from cli.Exit), handles wrapped errors
	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()

		// Only print if there's a real message (not just "exit status N")
		// cli.Exit("", N).Error() returns "exit status N", so skip those
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}

	// Unexpected error - print and exit with code 1
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
