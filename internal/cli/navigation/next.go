package navigation

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"gitstack.dev/gitstack/internal/cli/common"
	"gitstack.dev/gitstack/internal/cli/helpers"
	"gitstack.dev/gitstack/internal/runtime"
	"gitstack.dev/gitstack/internal/xerrors"
)

// NewNextCmd creates the "next" command: switch to the child of the
// current branch, moving up the stack.
func NewNextCmd() *cobra.Command {
	var (
		branch bool
		stash  bool
		oldest bool
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "next [N]",
		Short: "Switch to the child of the current branch",
		Long: `Switch to the child of the current branch, moving up the stack
away from trunk. By default moves one level; pass N to move further.
When a branch has more than one child, the newest by commit time is
chosen, or the oldest with --oldest.`,
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
				for i := 0; i < steps; i++ {
					children := g.PrimaryChildrenOf(current)
					if len(children) == 0 {
						if i == 0 {
							rc.Log.Info("Already at the top of the stack.")
							return nil
						}
						break
					}
					current = pickChild(g, children, oldest)
					for firstBranchName(g, current) == "" {
						above := g.PrimaryChildrenOf(current)
						if len(above) == 0 {
							break
						}
						current = pickChild(g, above, oldest)
					}
					if name := firstBranchName(g, current); name != "" {
						lastBranch = name
					}
				}

				if lastBranch == "" {
					return fmt.Errorf("%w: no branch found along the way up", xerrors.ErrState)
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
	cmd.Flags().BoolVar(&oldest, "oldest", false, "When a branch has multiple children, descend into the oldest instead of the newest.")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report which branch would be checked out without switching.")

	return cmd
}
