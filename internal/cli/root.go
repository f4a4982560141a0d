// Package cli wires every gitstack subcommand onto a Cobra root
// command, following the teacher's one-verb-per-file convention and
// its internal/cli/navigation, internal/cli/stack sub-package split.
package cli

import (
	"github.com/spf13/cobra"

	"gitstack.dev/gitstack/internal/cli/navigation"
	"gitstack.dev/gitstack/internal/cli/snapshot"
	"gitstack.dev/gitstack/internal/cli/stack"
)

// NewRootCmd creates the root "gitstack" command and wires every verb
// named in the spec's CLI surface onto it.
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "gitstack",
		Short:   "Manage stacks of dependent local git branches",
		Version: version,
		Long: `gitstack manages stacks of dependent local git branches: visualizing
them as a tree, rebasing a stack onto a freshly-pulled trunk, collapsing
fixup commits, rewording or amending a commit mid-stack with automatic
restacking, navigating up and down a stack, running a command against
each of its commits, and snapshotting branch tips as an undo mechanism.`,
	}

	rootCmd.AddCommand(stack.NewStackCmd())
	rootCmd.AddCommand(stack.NewSyncCmd())
	rootCmd.AddCommand(stack.NewRunCmd())
	rootCmd.AddCommand(navigation.NewNextCmd())
	rootCmd.AddCommand(navigation.NewPrevCmd())
	rootCmd.AddCommand(newRewordCmd())
	rootCmd.AddCommand(newAmendCmd())
	rootCmd.AddCommand(newAliasCmd())

	rootCmd.AddCommand(snapshot.NewPushCmd())
	rootCmd.AddCommand(snapshot.NewListCmd())
	rootCmd.AddCommand(snapshot.NewClearCmd())
	rootCmd.AddCommand(snapshot.NewDropCmd())
	rootCmd.AddCommand(snapshot.NewPopCmd())
	rootCmd.AddCommand(snapshot.NewApplyCmd())
	rootCmd.AddCommand(snapshot.NewStacksCmd())

	return rootCmd
}
