package navigation

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"gitstack.dev/gitstack/internal/branchset"
	"gitstack.dev/gitstack/internal/cli/common"
	"gitstack.dev/gitstack/internal/cli/helpers"
	"gitstack.dev/gitstack/internal/graph"
	"gitstack.dev/gitstack/internal/objid"
	"gitstack.dev/gitstack/internal/runtime"
	"gitstack.dev/gitstack/internal/xerrors"
)

// NewPrevCmd creates the "prev" command: switch to the parent of the
// current branch, moving down the stack towards trunk.
func NewPrevCmd() *cobra.Command {
	var (
		branch    bool
		stash     bool
		oldest    bool
		protected bool
		dryRun    bool
	)

	cmd := &cobra.Command{
		Use:   "prev [N]",
		Short: "Switch to the parent of the current branch",
		Long: `Switch to the parent branch, moving down the stack towards
trunk. By default moves one level; pass N to move further. Refuses to
land on a protected branch unless --protected is given.`,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return helpers.Run(cmd, func(rc *runtime.Context) error {
				steps := 1
				if len(args) > 0 {
					n, err := strconv.Atoi(args[0])
					if err != nil {
						return fmt.Errorf("%w: invalid N %q", xerrors.ErrUsage, args[0])
					}
					steps = n
				}
				if steps < 1 {
					return fmt.Errorf("%w: N must be at least 1", xerrors.ErrUsage)
				}
				_ = oldest // parent chains never branch, so no tie to break

				g, err := common.BuildGraph(rc)
				if err != nil {
					return err
				}

				head, err := rc.Repo.HeadCommit(rc.Context)
				if err != nil {
					return err
				}

				current := head.ID
				var lastBranch string
				var lastIsProtected bool
				for i := 0; i < steps; i++ {
					parent, ok := g.PrimaryParentOf(current)
					if !ok {
						if i == 0 {
							rc.Log.Info("Already at the bottom of the stack.")
							return nil
						}
						break
					}
					for firstBranchName(g, parent) == "" && parent != g.RootID() {
						next, ok := g.PrimaryParentOf(parent)
						if !ok {
							break
						}
						parent = next
					}
					current = parent
					name := firstBranchName(g, current)
					if name == "" {
						break
					}
					lastBranch = name
					lastIsProtected = isProtectedBranch(g, current, name)
				}

				if lastBranch == "" {
					return fmt.Errorf("%w: no branch found along the way down", xerrors.ErrState)
				}
				if lastIsProtected && !protected {
					return fmt.Errorf("%w: %s is a protected branch; pass --protected to check it out", xerrors.ErrUsage, lastBranch)
				}
				if branch {
					fmt.Fprintln(cmd.OutOrStdout(), lastBranch)
				}
				if dryRun {
					return nil
				}

				return withStash(rc.Context, rc, stash, func() error {
					if err := rc.Repo.SwitchBranch(rc.Context, lastBranch); err != nil {
						return err
					}
					rc.Log.Info("Checked out %s.", lastBranch)
					return nil
				})
			})
		},
	}

	cmd.Flags().BoolVar(&branch, "branch", false, "Print the resulting branch name.")
	cmd.Flags().BoolVar(&stash, "stash", false, "Stash a dirty working tree before switching and restore it after.")
	cmd.Flags().BoolVar(&oldest, "oldest", false, "Unused for prev; accepted for symmetry with next.")
	cmd.Flags().BoolVar(&protected, "protected", false, "Allow landing on a protected branch.")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report which branch would be checked out without switching.")

	return cmd
}

func isProtectedBranch(g *graph.Graph, id objid.Oid, name string) bool {
	bucket, ok := g.Branches.Get(id)
	if !ok {
		return false
	}
	for _, b := range bucket {
		if b.Name == name {
			return b.Kind == branchset.Protected
		}
	}
	return false
}
