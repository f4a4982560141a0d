// Command gitstack is the CLI entry point: a thin wrapper that builds
// the root Cobra command and maps any returned error onto gitstack's
// sysexits-style exit codes.
package main

import (
	"fmt"
	"os"

	"gitstack.dev/gitstack/internal/cli"
	"gitstack.dev/gitstack/internal/xerrors"
)

var version = "dev"

func main() {
	rootCmd := cli.NewRootCmd(version)
	rootCmd.SilenceErrors = true

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "gitstack:", err)
	}
	os.Exit(xerrors.ExitCode(err))
}
