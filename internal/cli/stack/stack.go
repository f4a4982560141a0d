// Package stack implements the default "stack" verb (C11) — the tree
// view, its optional pull/rebase/push side effects — along with sync
// and run, the other two stack-wide verbs.
package stack

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"gitstack.dev/gitstack/internal/branchset"
	"gitstack.dev/gitstack/internal/cli/common"
	"gitstack.dev/gitstack/internal/cli/helpers"
	"gitstack.dev/gitstack/internal/graph"
	"gitstack.dev/gitstack/internal/objid"
	"gitstack.dev/gitstack/internal/protect"
	"gitstack.dev/gitstack/internal/runtime"
	"gitstack.dev/gitstack/internal/stackfmt"
	"gitstack.dev/gitstack/internal/xerrors"
)

// NewStackCmd creates the "stack" command: render the stack as a tree,
// with optional pull/rebase/push side effects before rendering.
func NewStackCmd() *cobra.Command {
	var (
		rebase      bool
		pull        bool
		push        bool
		scope       string
		base        string
		onto        string
		fixup       string
		repair      bool
		noRepair    bool
		dryRun      bool
		format      string
		protected   bool
		protectFlag string
		dumpConfig  string
	)

	cmd := &cobra.Command{
		Use:   "stack",
		Short: "Show the stack of branches as a tree",
		Long: `Renders the branches selected by --stack (by default the current
stack) as an indented tree, with HEAD's branch marked. With --pull,
--rebase, or --push, also fetches, restacks, and pushes before
rendering.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return helpers.Run(cmd, func(rc *runtime.Context) error {
				if protected {
					for _, p := range rc.Config.ProtectedBranches() {
						fmt.Fprintln(cmd.OutOrStdout(), p)
					}
					return nil
				}
				if dumpConfig != "" {
					return dumpConfigTo(rc, dumpConfig)
				}
				if protectFlag != "" {
					patterns := append(append([]string{}, rc.Config.ProtectedBranches()...), protectFlag)
					m, err := protect.New(patterns)
					if err != nil {
						return fmt.Errorf("%w: %v", xerrors.ErrConfig, err)
					}
					branches, err := branchset.Build(cmd.Context(), rc.Repo, m)
					if err != nil {
						return err
					}
					rc.Branches = branches
				}

				effect, err := parseFixupEffect(fixup)
				if err != nil {
					return err
				}
				if repair && noRepair {
					return fmt.Errorf("%w: --repair and --no-repair are mutually exclusive", xerrors.ErrUsage)
				}
				doRepair := rc.Config.AutoRepair()
				if repair {
					doRepair = true
				}
				if noRepair {
					doRepair = false
				}
				if !cmd.Flags().Changed("fixup") {
					if rc.Config.AutoFixup() {
						effect = graph.FixupSquash
					} else {
						effect = graph.FixupIgnore
					}
				}

				g, err := common.BuildGraph(rc)
				if err != nil {
					return err
				}
				if err := common.Annotate(rc, g); err != nil {
					return err
				}

				if pull || rebase {
					if _, _, err := common.PullAndRebase(cmd.Context(), rc, g, dryRun); err != nil {
						return err
					}
				}

				if base != "" || onto != "" {
					if err := rebaseCurrentBranch(cmd.Context(), rc, g, base, onto); err != nil {
						return err
					}
				}

				common.RepairWith(rc, g, effect, doRepair)

				if rebase || pull {
					restoreBranch, _, err := rc.Repo.HeadBranch(cmd.Context())
					if err != nil {
						return err
					}
					failures, err := common.Execute(cmd.Context(), rc, g, nil, restoreBranch, dryRun)
					if err != nil {
						return err
					}
					if err := common.ReportFailures(rc, failures); err != nil {
						return err
					}
					g, err = common.BuildGraph(rc)
					if err != nil {
						return err
					}
					if err := common.Annotate(rc, g); err != nil {
						return err
					}
				}

				if push {
					if err := common.PushPushable(cmd.Context(), rc, g); err != nil {
						return err
					}
				}

				return renderStack(cmd, rc, g, scope, format)
			})
		},
	}

	cmd.Flags().BoolVar(&rebase, "rebase", false, "Restack branches onto their resolved base before rendering.")
	cmd.Flags().BoolVar(&pull, "pull", false, "Fetch the pull remote and fast-forward protected branches before rendering.")
	cmd.Flags().BoolVar(&push, "push", false, "Push every pushable branch to the push remote after restacking.")
	cmd.Flags().StringVar(&scope, "stack", "current", "Branches to render: current, dependents, descendants, or all.")
	cmd.Flags().StringVar(&base, "base", "", "Revision to treat as the current branch's base.")
	cmd.Flags().StringVar(&onto, "onto", "", "Revision to rebase the current branch onto.")
	cmd.Flags().StringVar(&fixup, "fixup", "squash", "Fixup commit handling: ignore, move, or squash.")
	cmd.Flags().BoolVar(&repair, "repair", false, "Force realign/merge-stacks repair passes on.")
	cmd.Flags().BoolVar(&noRepair, "no-repair", false, "Force realign/merge-stacks repair passes off.")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would change without moving any ref.")
	cmd.Flags().StringVar(&format, "format", "full", "Output format: silent, brief, or full.")
	cmd.Flags().BoolVar(&protected, "protected", false, "Print the configured protected-branch patterns and exit.")
	cmd.Flags().StringVar(&protectFlag, "protect", "", "Treat PATTERN as an additional protected-branch pattern for this run.")
	cmd.Flags().StringVar(&dumpConfig, "dump-config", "", "Write the resolved configuration as JSON to PATH and exit.")

	return cmd
}

// rebaseCurrentBranch re-parents HEAD's commit in the graph: its
// primary-parent edge is replaced with one to the commit --onto names,
// or --base when --onto is not given. Only the graph changes here; the
// commits move when the graph is then executed by --rebase or --pull.
func rebaseCurrentBranch(ctx context.Context, rc *runtime.Context, g *graph.Graph, base, onto string) (err error) {
	head, herr := rc.Repo.HeadCommit(ctx)
	if herr != nil {
		return herr
	}

	from, ok := g.PrimaryParentOf(head.ID)
	if !ok {
		return fmt.Errorf("%w: HEAD has no parent to rebase", xerrors.ErrUsage)
	}

	target := onto
	if target == "" {
		target = base
	}
	to, rerr := rc.Repo.Resolve(ctx, target)
	if rerr != nil {
		return fmt.Errorf("%w: %v", xerrors.ErrUsage, rerr)
	}
	if !g.ContainsID(to) {
		return fmt.Errorf("%w: %s is not part of the known commit graph", xerrors.ErrUsage, target)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: cannot rebase onto %s: %v", xerrors.ErrUsage, target, r)
		}
	}()
	g.Rebase(head.ID, from, to)
	return nil
}

func parseFixupEffect(s string) (graph.FixupEffect, error) {
	switch s {
	case "ignore":
		return graph.FixupIgnore, nil
	case "move":
		return graph.FixupMove, nil
	case "squash":
		return graph.FixupSquash, nil
	default:
		return graph.FixupIgnore, fmt.Errorf("%w: invalid --fixup value %q", xerrors.ErrUsage, s)
	}
}

func dumpConfigTo(rc *runtime.Context, path string) error {
	data, err := json.MarshalIndent(rc.Config.Dump(), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func renderStack(cmd *cobra.Command, rc *runtime.Context, g *graph.Graph, scope, format string) error {
	if format == "silent" {
		return nil
	}

	head, err := rc.Repo.HeadCommit(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	color := false
	if f, ok := out.(interface{ Fd() uintptr }); ok {
		color = stackfmt.IsColorEnabled(f)
	}
	stacked := rc.Config.ShowStacked() && format != "brief"

	r := stackfmt.New(out, color, stacked)
	if scope != "all" {
		allow, err := scopeAllow(cmd.Context(), rc, g, scope, head.ID)
		if err != nil {
			return err
		}
		r.Allow = allow
	}
	r.Render(g, head.ID)
	return nil
}

// scopeAllow computes the set of branch-bearing ids that --stack's
// scope permits to print: "current" is just the line between the
// nearest protected base and HEAD; "dependents" adds every branch
// built on that line; "descendants" adds every branch reachable from
// the base at all, siblings included.
func scopeAllow(ctx context.Context, rc *runtime.Context, g *graph.Graph, scope string, head objid.Oid) (map[objid.Oid]bool, error) {
	gb, ok, err := g.Branches.FindProtectedBase(ctx, rc.Repo, head)
	if err != nil {
		return nil, err
	}
	base := g.RootID()
	if ok {
		base = gb.ID
	}

	var scoped *branchset.Set
	switch scope {
	case "current":
		scoped = g.Branches.Branch(ctx, rc.Repo, base, head)
	case "dependents":
		scoped = g.Branches.Dependents(ctx, rc.Repo, base, head)
	case "descendants":
		scoped = g.Branches.Descendants(ctx, rc.Repo, base)
	default:
		return nil, fmt.Errorf("%w: invalid --stack value %q", xerrors.ErrUsage, scope)
	}

	allow := make(map[objid.Oid]bool, scoped.Len())
	for _, id := range scoped.Oids() {
		allow[id] = true
	}
	allow[base] = true
	return allow, nil
}
