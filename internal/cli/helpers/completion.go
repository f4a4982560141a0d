// Package helpers provides shared helper functions for CLI commands:
// flag completion and the runtime.Context bootstrap every command runs
// through.
package helpers

import (
	"github.com/spf13/cobra"

	"gitstack.dev/gitstack/internal/runtime"
)

// CompleteBranches is a helper for cobra.ValidArgsFunction and
// RegisterFlagCompletionFunc that returns every local branch name.
func CompleteBranches(cmd *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	rc, err := runtime.Open(cmd.Context(), ".")
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	defer rc.Log.Close()

	locals, err := rc.Repo.LocalBranches(rc.Context)
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	names := make([]string, len(locals))
	for i, b := range locals {
		names[i] = b.Name
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}
