// Package navigation implements the next/prev stack-traversal verbs
// (C11), switching HEAD along the primary parent/child edges of the
// commit graph built from the current branch set.
package navigation

import (
	"context"
	"fmt"

	"gitstack.dev/gitstack/internal/graph"
	"gitstack.dev/gitstack/internal/objid"
	"gitstack.dev/gitstack/internal/runtime"
)

// firstBranchName returns the first branch name recorded at id, or "".
func firstBranchName(g *graph.Graph, id objid.Oid) string {
	if bucket, ok := g.Branches.Get(id); ok && len(bucket) > 0 {
		return bucket[0].Name
	}
	return ""
}

// pickChild chooses which of children to descend into when a branch
// has more than one child stack: the newest by commit time, matching
// graph.RealignStacks' own newest-child-wins convention, or the oldest
// when oldest is set.
func pickChild(g *graph.Graph, children []objid.Oid, oldest bool) objid.Oid {
	best := children[0]
	for _, c := range children[1:] {
		bc, _ := g.Commit(best)
		cc, _ := g.Commit(c)
		switch {
		case oldest && cc.Time.Before(bc.Time):
			best = c
		case !oldest && cc.Time.After(bc.Time):
			best = c
		}
	}
	return best
}

// withStash runs fn, stashing a dirty working tree first (and popping
// it back afterwards) when stash is set and the tree is dirty.
func withStash(ctx context.Context, rc *runtime.Context, stash bool, fn func() error) error {
	if !stash {
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
