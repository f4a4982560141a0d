package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"gitstack.dev/gitstack/internal/cli/common"
	"gitstack.dev/gitstack/internal/cli/helpers"
	"gitstack.dev/gitstack/internal/graph"
	"gitstack.dev/gitstack/internal/objid"
	"gitstack.dev/gitstack/internal/runtime"
	"gitstack.dev/gitstack/internal/xerrors"
)

// newRewordCmd creates the "reword" command: replace the message of a
// commit mid-stack and restack every descendant onto the rewritten
// copy, via the executor's own Reword batch command rather than a
// separate graph-level rewrite.
func newRewordCmd() *cobra.Command {
	var (
		message string
		dryRun  bool
	)

	cmd := &cobra.Command{
		Use:   "reword [REV]",
		Short: "Change a commit's message and restack its descendants",
		Long: `Rewrites the message of REV (HEAD's commit if omitted) and
cherry-picks every descendant commit onto the reworded copy, carrying
branches along. Refuses to reword a protected or fixup commit.`,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return helpers.Run(cmd, func(rc *runtime.Context) error {
				return runReword(cmd.Context(), rc, args, message, dryRun)
			})
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "The new commit message. Required.")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would change without moving any ref.")
	return cmd
}

func runReword(ctx context.Context, rc *runtime.Context, args []string, message string, dryRun bool) error {
	if message == "" {
		return fmt.Errorf("%w: -m/--message is required", xerrors.ErrUsage)
	}

	g, err := common.BuildGraph(rc)
	if err != nil {
		return err
	}
	if err := common.Annotate(rc, g); err != nil {
		return err
	}

	var target objid.Oid
	if len(args) > 0 {
		target, err = rc.Repo.Resolve(ctx, args[0])
		if err != nil {
			return fmt.Errorf("%w: %v", xerrors.ErrUsage, err)
		}
	} else {
		head, herr := rc.Repo.HeadCommit(ctx)
		if herr != nil {
			return herr
		}
		target = head.ID
	}
	if !g.ContainsID(target) {
		return fmt.Errorf("%w: commit is not part of the known commit graph", xerrors.ErrUsage)
	}
	if action := g.Action(target); action == graph.Protected || action == graph.Fixup {
		return fmt.Errorf("%w: cannot reword a protected or fixup commit", xerrors.ErrProtected)
	}

	common.Repair(rc, g)

	restoreBranch, _, err := rc.Repo.HeadBranch(ctx)
	if err != nil {
		return err
	}

	failures, err := common.Execute(ctx, rc, g, map[objid.Oid]string{target: message}, restoreBranch, dryRun)
	if err != nil {
		return err
	}
	return common.ReportFailures(rc, failures)
}
