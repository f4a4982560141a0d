package stack

import (
	"context"

	"github.com/spf13/cobra"

	"gitstack.dev/gitstack/internal/cli/common"
	"gitstack.dev/gitstack/internal/cli/helpers"
	"gitstack.dev/gitstack/internal/runtime"
)

// NewSyncCmd creates the "sync" command: fetch the pull remote, move
// every local protected branch fast-forwarded by the fetch onto its new
// tip, and restack every branch that was built on top of it.
func NewSyncCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Fetch from the pull remotes and restack onto the new trunk",
		Long: `Fetches the configured pull remote, fast-forwards any local protected
branch it moved, drops branches whose change already landed (by
matching tree id or by sitting on the new trunk tip), and restacks
everything else that was built on top of it.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return helpers.Run(cmd, func(rc *runtime.Context) error {
				return runSync(cmd.Context(), rc, dryRun)
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Fetch and report what would change without moving any ref.")
	return cmd
}

func runSync(ctx context.Context, rc *runtime.Context, dryRun bool) error {
	g, err := common.BuildGraph(rc)
	if err != nil {
		return err
	}
	if err := common.Annotate(rc, g); err != nil {
		return err
	}

	if _, _, err := common.PullAndRebase(ctx, rc, g, dryRun); err != nil {
		return err
	}

	common.Repair(rc, g)

	restoreBranch, _, err := rc.Repo.HeadBranch(ctx)
	if err != nil {
		return err
	}

	failures, err := common.Execute(ctx, rc, g, nil, restoreBranch, dryRun)
	if err != nil {
		return err
	}
	return common.ReportFailures(rc, failures)
}
