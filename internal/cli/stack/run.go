package stack

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"gitstack.dev/gitstack/internal/base"
	"gitstack.dev/gitstack/internal/cli/helpers"
	"gitstack.dev/gitstack/internal/gitrepo"
	"gitstack.dev/gitstack/internal/objid"
	"gitstack.dev/gitstack/internal/runtime"
	"gitstack.dev/gitstack/internal/xerrors"
)

// NewRunCmd creates the "run" command: execute a shell command against
// every commit in the current stack, from its resolved base up to HEAD,
// checking out each commit in turn. The command runs via /bin/sh -c,
// mirroring the teacher's own foreach verb, but against commits rather
// than branch tips since a stack's unit of work is the commit (spec.md
// §4.10).
func NewRunCmd() *cobra.Command {
	var (
		noFailFast bool
		switchFlag bool
		dryRun     bool
	)

	cmd := &cobra.Command{
		Use:   "run -- <command> [args...]",
		Short: "Run a shell command against each commit in the current stack",
		Long: `Checks out each commit in the current stack, bottom-up from its
resolved base to HEAD, and runs the given command via /bin/sh -c at
each one. Stops at the first non-zero exit and leaves the working tree
on the failing commit, unless --no-fail-fast is given, in which case
every commit runs and every failure is reported at the end. The
original branch is restored once every commit has run, unless --switch
is given or a failure left the tree on a commit instead.`,
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return helpers.Run(cmd, func(rc *runtime.Context) error {
				return runRun(cmd, rc, args, noFailFast, switchFlag, dryRun)
			})
		},
	}

	cmd.Flags().BoolVar(&noFailFast, "no-fail-fast", false, "Keep running on every commit even after one fails.")
	cmd.Flags().BoolVar(&switchFlag, "switch", false, "Leave the working tree on the last commit run instead of restoring the original branch.")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List the commits that would be run without executing the command.")
	return cmd
}

func runRun(cmd *cobra.Command, rc *runtime.Context, args []string, noFailFast, switchFlag, dryRun bool) error {
	ctx := cmd.Context()

	branchName, ok, err := rc.Repo.HeadBranch(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: run requires a checked-out branch", xerrors.ErrUsage)
	}

	head, err := rc.Repo.HeadCommit(ctx)
	if err != nil {
		return err
	}

	result, err := base.Resolve(ctx, rc.Repo, rc.Branches, head.ID, nil)
	if err != nil {
		return err
	}
	if result.CommitID.IsZero() {
		return fmt.Errorf("%w: could not resolve a base for the current stack", xerrors.ErrState)
	}

	commits, err := rc.Repo.CommitRange(ctx, gitrepo.Exclusive(result.CommitID), gitrepo.Inclusive(head.ID))
	if err != nil {
		return err
	}

	shCommand := joinShellArgs(args)
	var failures []string
	lastCommit := objid.Oid{}

	for i := len(commits) - 1; i >= 0; i-- {
		id := commits[i]

		c, ok, err := rc.Repo.FindCommit(ctx, id)
		if err != nil {
			return err
		}
		summary := id.String()
		if ok {
			summary = c.Summary
		}

		if dryRun {
			rc.Log.Info("Would run on %s: %s", id.String()[:12], summary)
			continue
		}

		if err := rc.Repo.SwitchCommit(ctx, id); err != nil {
			return err
		}
		lastCommit = id
		rc.Log.Info("Running on %s: %s", id.String()[:12], summary)

		if err := runShell(ctx, rc.RepoRoot, shCommand); err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", summary, err))
			if !noFailFast {
				break
			}
		}
	}

	if len(failures) > 0 && !noFailFast {
		return fmt.Errorf("%w: command failed on %s", xerrors.ErrIO, failures[0])
	}

	if dryRun || (switchFlag && !lastCommit.IsZero()) {
		if len(failures) > 0 {
			return fmt.Errorf("%w: command failed on %d commit(s): %s", xerrors.ErrIO, len(failures), strings.Join(failures, "; "))
		}
		return nil
	}

	if err := rc.Repo.SwitchBranch(ctx, branchName); err != nil {
		return err
	}
	if len(failures) > 0 {
		return fmt.Errorf("%w: command failed on %d commit(s): %s", xerrors.ErrIO, len(failures), strings.Join(failures, "; "))
	}
	return nil
}

func runShell(ctx context.Context, dir, shCommand string) error {
	c := exec.CommandContext(ctx, "/bin/sh", "-c", shCommand)
	c.Dir = dir
	c.Stdin = os.Stdin
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	return c.Run()
}

func joinShellArgs(args []string) string {
	out := ""
	for i, a := range args {
		if i > 0 {
			out += " "
		}
		out += a
	}
	return out
}
