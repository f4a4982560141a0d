// Package common holds the orchestration shared by every verb that
// rewrites a stack: building the commit graph, running the standard
// protect/fixup/repair passes over it, snapshotting before a rewrite,
// and running the resulting script through the executor. Individual
// commands (stack, sync, reword, amend) differ only in which passes they
// apply and what rewordTargets they pass to rewrite.Build.
package common

import (
	"context"
	"fmt"
	"time"

	"gitstack.dev/gitstack/internal/branchset"
	"gitstack.dev/gitstack/internal/fetcher"
	"gitstack.dev/gitstack/internal/gitrepo"
	"gitstack.dev/gitstack/internal/graph"
	"gitstack.dev/gitstack/internal/objid"
	"gitstack.dev/gitstack/internal/rewrite"
	"gitstack.dev/gitstack/internal/runtime"
	"gitstack.dev/gitstack/internal/snapshot"
	"gitstack.dev/gitstack/internal/xerrors"
)

// BuildGraph refreshes rc's branch set from the repository and
// projects it onto the commit graph.
func BuildGraph(rc *runtime.Context) (*graph.Graph, error) {
	if err := rc.Branches.Update(rc.Context, rc.Repo); err != nil {
		return nil, err
	}
	return graph.FromBranches(rc.Context, rc.Repo, rc.Branches)
}

// Annotate runs the standard read-only classification passes over g:
// protection propagation (explicit, size, staleness, and foreign-author
// limits from config), fixup/WIP marking, and pushability. It does not
// run the mutating repair passes (Fixup/RealignStacks/MergeStacks) —
// callers that want those opt in via Repair.
func Annotate(rc *runtime.Context, g *graph.Graph) error {
	graph.ProtectBranches(g)

	if max := rc.Config.ProtectCommitCount(); max != nil {
		graph.ProtectLargeBranches(g, *max)
	}
	if age := rc.Config.ProtectCommitAge(); age != nil {
		graph.ProtectStaleBranches(g, time.Now().Add(-*age), nil)
	}
	if user, ok := rc.Repo.User(); ok {
		graph.ProtectForeignBranches(g, user, nil)
	}

	graph.MarkFixup(g)
	graph.MarkWip(g)
	graph.Pushable(g)
	return nil
}

// Repair applies the mutating stack-maintenance passes: squashing
// fixup commits into their targets (if stack.auto-fixup) and realigning
// /merging stacks left behind by already-landed branches (if
// stack.auto-repair).
func Repair(rc *runtime.Context, g *graph.Graph) {
	effect := graph.FixupIgnore
	if rc.Config.AutoFixup() {
		effect = graph.FixupSquash
	}
	RepairWith(rc, g, effect, rc.Config.AutoRepair())
}

// RepairWith is Repair with the fixup effect and repair toggle given
// explicitly, for callers (like `stack --fixup`/`--repair`) that let
// the user override the configured defaults for one invocation.
func RepairWith(rc *runtime.Context, g *graph.Graph, effect graph.FixupEffect, repair bool) {
	graph.Fixup(g, effect)

	if repair {
		graph.RealignStacks(g)
		graph.MergeStacks(g)
	}
}

// PullAndRebase fetches rc's pull remote, fast-forwards (unless
// dryRun) every local protected branch the fetch moved, rebases the
// graph's development branches onto each new tip, and returns the new
// protected tips along with the tree ids of every commit the fetch
// brought in, for squash/merge detection. Shared by `sync` and
// `stack --pull`.
func PullAndRebase(ctx context.Context, rc *runtime.Context, g *graph.Graph, dryRun bool) (pulledIDs, pulledTreeIDs []objid.Oid, err error) {
	remote := rc.Config.PullRemote()
	f := fetcher.New(rc.RepoRoot)
	if err := f.FetchPrune(ctx, remote); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", xerrors.ErrIO, err)
	}

	rc.Branches.Iter(func(id objid.Oid, bucket []branchset.GraphBranch) {
		for _, b := range bucket {
			if b.Kind != branchset.Mixed || b.PullID == nil || *b.PullID == id {
				continue
			}
			newID := *b.PullID

			if !dryRun {
				if werr := rc.Repo.Branch(ctx, b.Name, newID); werr != nil {
					rc.Log.Warn("Could not fast-forward %s: %v", b.Name, werr)
					continue
				}
				if headName, ok, _ := rc.Repo.HeadBranch(ctx); ok && headName == b.Name {
					if werr := rc.Repo.SwitchBranch(ctx, b.Name); werr != nil {
						rc.Log.Warn("Could not update working tree for %s: %v", b.Name, werr)
					}
				}
			}
			rc.Log.Info("%s: %s -> %s", b.Name, id.String()[:12], newID.String()[:12])

			graph.RebasePulledBranches(g, id, newID)
			graph.RebaseDevelopmentBranches(g, newID)
			pulledIDs = append(pulledIDs, newID)

			if commits, cerr := rc.Repo.CommitRange(ctx, gitrepo.Exclusive(id), gitrepo.Inclusive(newID)); cerr == nil {
				for _, cid := range commits {
					if c, ok, _ := rc.Repo.FindCommit(ctx, cid); ok {
						pulledTreeIDs = append(pulledTreeIDs, c.TreeID)
					}
				}
			}
		}
	})

	if len(pulledIDs) > 0 {
		graph.DeleteSquashedBranchesByTreeID(g, pulledTreeIDs)
		for _, name := range graph.DeleteMergedBranches(g, pulledIDs) {
			rc.Log.Info("Removed merged branch %s.", name)
		}
	}

	return pulledIDs, pulledTreeIDs, nil
}

// PushPushable pushes every branch graph.Pushable marked pushable to
// rc's push remote, via the host git binary so the user's credential
// helper handles auth.
func PushPushable(ctx context.Context, rc *runtime.Context, g *graph.Graph) error {
	f := fetcher.New(rc.RepoRoot)
	remote := rc.Config.PushRemote()

	for _, id := range g.AllIDs() {
		bucket, ok := g.Branches.Get(id)
		if !ok {
			continue
		}
		for _, b := range bucket {
			if !g.IsPushable(id) || b.Kind != branchset.Mutable {
				continue
			}
			if err := f.Push(ctx, remote, b.Name, true); err != nil {
				rc.Log.Warn("Could not push %s: %v", b.Name, err)
				continue
			}
			rc.Log.Info("Pushed %s to %s.", b.Name, remote)
		}
	}
	return nil
}

// SnapshotBefore captures every local branch tip onto the configured
// undo stack, ahead of a rewrite that is about to move them.
func SnapshotBefore(rc *runtime.Context) error {
	snap, err := snapshot.FromRepo(rc.Context, rc.Repo)
	if err != nil {
		return fmt.Errorf("%w: %v", xerrors.ErrIO, err)
	}
	stack, err := snapshot.New(rc.Repo, rc.Config.Stack())
	if err != nil {
		return fmt.Errorf("%w: %v", xerrors.ErrIO, err)
	}
	capacity := rc.Config.Capacity()
	stack.Capacity = capacity
	if _, err := stack.Push(snap); err != nil {
		return fmt.Errorf("%w: %v", xerrors.ErrIO, err)
	}
	return nil
}

// Execute lowers g into a script (rewording the commits named in
// rewordTargets in place of a plain cherry-pick) and runs it through
// the executor. Unless dryRun, the current branch tips are snapshotted
// first so `branch-stash pop` can undo the rewrite. The run itself is
// guarded by withWorktreeStash, since CherryPick/Squash/Reword detach
// HEAD and a dirty tree would otherwise carry uncommitted changes onto
// whatever commit the executor lands on. restoreBranch, if set, is
// checked out once the rewrite finishes; otherwise the executor checks
// out the head commit of the last batch that succeeded, unless HEAD is
// already there.
func Execute(ctx context.Context, rc *runtime.Context, g *graph.Graph, rewordTargets map[objid.Oid]string, restoreBranch string, dryRun bool) ([]rewrite.Failure, error) {
	if !dryRun {
		if err := SnapshotBefore(rc); err != nil {
			return nil, err
		}
	}

	script := rewrite.Build(g, rewordTargets)
	exec := rewrite.New(rc.Repo, nil)

	var failures []rewrite.Failure
	if err := withWorktreeStash(ctx, rc, dryRun, func() error {
		var runErr error
		failures, runErr = exec.Run(ctx, script, dryRun)
		return runErr
	}); err != nil {
		return failures, fmt.Errorf("%w: %v", xerrors.ErrIO, err)
	}
	if err := exec.Close(ctx, restoreBranch); err != nil {
		return failures, fmt.Errorf("%w: %v", xerrors.ErrIO, err)
	}
	if err := rc.Branches.Update(ctx, rc.Repo); err != nil {
		return failures, err
	}
	return failures, nil
}

// withWorktreeStash stashes a dirty working tree before running fn and
// restores it afterwards, per spec.md §2/§5's requirement that a
// rewrite run happen "under the guard of a prior stash_push ... taking
// and restoring a working-tree stash around the run." A clean tree or
// dryRun skips stashing. This mirrors navigation.go's own withStash;
// it isn't shared directly since navigation already imports common.
func withWorktreeStash(ctx context.Context, rc *runtime.Context, dryRun bool, fn func() error) error {
	if dryRun {
		return fn()
	}
	dirty, err := rc.Repo.IsDirty(ctx)
	if err != nil {
		return err
	}
	if !dirty {
		return fn()
	}

	stashID, ok, err := rc.Repo.StashPush(ctx, "git-stack: autostash")
	if err != nil {
		return err
	}
	if !ok {
		return fn()
	}
	if err := fn(); err != nil {
		return err
	}
	if err := rc.Repo.StashPop(ctx, stashID); err != nil {
		return fmt.Errorf("autostash pop failed, recover with `git stash pop`: %w", err)
	}
	return nil
}

// ReportFailures logs every batch failure and, if any occurred, returns
// a ConflictError built from the first one so the process exits
// non-zero while still surfacing every blocked branch.
func ReportFailures(rc *runtime.Context, failures []rewrite.Failure) error {
	if len(failures) == 0 {
		return nil
	}
	for _, f := range failures {
		if len(f.SkippedDependents) > 0 {
			rc.Log.Warn("Could not rewrite %s: %v (blocked: %v)", f.Branch, f.Err, f.SkippedDependents)
		} else {
			rc.Log.Warn("Could not rewrite %s: %v", f.Branch, f.Err)
		}
	}
	first := failures[0]
	return &xerrors.ConflictError{Branch: first.Branch, Dependents: first.SkippedDependents, Err: first.Err}
}
