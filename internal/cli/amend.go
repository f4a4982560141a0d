package cli

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"gitstack.dev/gitstack/internal/cli/common"
	"gitstack.dev/gitstack/internal/cli/helpers"
	"gitstack.dev/gitstack/internal/editor"
	"gitstack.dev/gitstack/internal/graph"
	"gitstack.dev/gitstack/internal/objid"
	"gitstack.dev/gitstack/internal/runtime"
	"gitstack.dev/gitstack/internal/xerrors"
)

// newAmendCmd creates the "amend" command: fold the working tree's
// staged (or, with -a, every tracked) change into REV's commit and
// restack descendants, optionally replacing REV's message. Content is
// carried in by committing it as a standard "fixup! <summary>" commit
// and running it through the same Fixup/Execute machinery sync uses to
// squash fixup commits, rather than a bespoke amend path.
func newAmendCmd() *cobra.Command {
	var (
		all         bool
		interactive bool
		edit        bool
		message     string
		dryRun      bool
	)

	cmd := &cobra.Command{
		Use:   "amend [REV]",
		Short: "Fold staged changes into a commit and restack its descendants",
		Long: `Commits the working tree's staged changes (or, with -a, every tracked
file's changes) as a fixup for REV (HEAD's commit if omitted), squashes
it into REV, and cherry-picks every descendant onto the result.
Refuses if nothing is staged, or if REV is a protected or fixup commit.`,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return helpers.Run(cmd, func(rc *runtime.Context) error {
				return runAmend(cmd.Context(), rc, args, all, interactive, edit, message, dryRun)
			})
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "Stage every tracked file's changes before amending.")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Pick hunks to stage before amending (git add -p).")
	cmd.Flags().BoolVarP(&edit, "edit", "e", false, "Open an editor to change REV's message. Ignored if -m is given.")
	cmd.Flags().StringVarP(&message, "message", "m", "", "REV's new message. Takes precedence over -e.")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would change without moving any ref.")
	return cmd
}

func runAmend(ctx context.Context, rc *runtime.Context, args []string, all, interactive, edit bool, message string, dryRun bool) error {
	if interactive {
		if err := gitAddPatch(ctx, rc.RepoRoot); err != nil {
			return fmt.Errorf("%w: %v", xerrors.ErrIO, err)
		}
	}

	dirty, err := rc.Repo.IsDirty(ctx)
	if err != nil {
		return err
	}
	if !dirty && !all {
		return fmt.Errorf("%w: nothing to amend", xerrors.ErrIO)
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
		return fmt.Errorf("%w: cannot amend a protected or fixup commit", xerrors.ErrProtected)
	}

	targetCommit, ok, err := rc.Repo.FindCommit(ctx, target)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: could not find REV's commit", xerrors.ErrRepository)
	}

	newMessage := targetCommit.Summary
	switch {
	case message != "":
		newMessage = message
	case edit:
		edited, eerr := editor.Open(ctx, targetCommit.Summary+"\n")
		if eerr != nil {
			return fmt.Errorf("%w: %v", xerrors.ErrIO, eerr)
		}
		if trimmed := strings.TrimSpace(edited); trimmed != "" {
			newMessage = trimmed
		}
	}

	if _, err := rc.Repo.Commit(ctx, "fixup! "+targetCommit.Summary, all); err != nil {
		return fmt.Errorf("%w: %v", xerrors.ErrIO, err)
	}

	g, err = common.BuildGraph(rc)
	if err != nil {
		return err
	}
	if err := common.Annotate(rc, g); err != nil {
		return err
	}
	graph.Fixup(g, graph.FixupSquash)

	rewordTargets := map[objid.Oid]string{}
	if newMessage != targetCommit.Summary {
		rewordTargets[target] = newMessage
	}

	restoreBranch, _, err := rc.Repo.HeadBranch(ctx)
	if err != nil {
		return err
	}
	failures, err := common.Execute(ctx, rc, g, rewordTargets, restoreBranch, dryRun)
	if err != nil {
		return err
	}
	return common.ReportFailures(rc, failures)
}

func gitAddPatch(ctx context.Context, dir string) error {
	c := exec.CommandContext(ctx, "git", "add", "-p")
	c.Dir = dir
	c.Stdin = os.Stdin
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	return c.Run()
}
