// Package base implements base/HEAD resolution (C10): picking which
// protected branch a stack is built on top of, with an inferred-base
// fallback when no protected branch is a good match.
package base

import (
	"context"

	"gitstack.dev/gitstack/internal/branchset"
	"gitstack.dev/gitstack/internal/gitrepo"
	"gitstack.dev/gitstack/internal/objid"
)

// Result is the resolved base: either a protected branch, or a bare
// inferred commit when no protected branch qualifies.
type Result struct {
	Branch   branchset.GraphBranch
	HasBranch bool
	CommitID  objid.Oid
}

type pair struct {
	mergeBase objid.Oid
	branch    branchset.GraphBranch
}

// Resolve picks the base for head against the protected branches in
// set, per spec.md §4.9: a shortcut for HEAD itself being protected,
// an exactly-one-candidate shortcut, a first-parent-ancestor walk, a
// minimum-distance fallback among remaining candidates, and finally
// InferBase when no protected branch qualifies. When autoBaseCommitCount
// is non-nil and the chosen protected branch is more than that many
// commits ahead+behind head, the inferred base is used instead.
func Resolve(ctx context.Context, repo gitrepo.Repo, set *branchset.Set, head objid.Oid, autoBaseCommitCount *int) (Result, error) {
	if bucket, ok := set.Get(head); ok {
		for _, gb := range bucket {
			if gb.Kind == branchset.Protected {
				return Result{Branch: gb, HasBranch: true, CommitID: head}, nil
			}
		}
	}

	var pairs []pair
	for _, id := range set.Oids() {
		for _, gb := range set.GetMut(id) {
			if gb.Kind != branchset.Protected {
				continue
			}
			mb, ok, err := repo.MergeBase(ctx, head, id)
			if err != nil {
				return Result{}, err
			}
			if ok {
				pairs = append(pairs, pair{mergeBase: mb, branch: gb})
			}
		}
	}

	var chosen *pair
	switch {
	case len(pairs) == 1:
		chosen = &pairs[0]
	case len(pairs) > 1:
		if p, ok, err := firstAncestorMatch(ctx, repo, head, pairs); err != nil {
			return Result{}, err
		} else if ok {
			chosen = &p
		} else if p, ok, err := nearestPair(ctx, repo, head, pairs); err != nil {
			return Result{}, err
		} else if ok {
			chosen = &p
		}
	}

	if chosen != nil && autoBaseCommitCount != nil {
		ahead, _, aok, err := distance(ctx, repo, chosen.mergeBase, head)
		if err != nil {
			return Result{}, err
		}
		behind, _, bok, err := distance(ctx, repo, chosen.mergeBase, chosen.branch.ID)
		if err != nil {
			return Result{}, err
		}
		if aok && bok && ahead+behind > *autoBaseCommitCount {
			chosen = nil
		}
	}

	if chosen != nil {
		return Result{Branch: chosen.branch, HasBranch: true, CommitID: chosen.mergeBase}, nil
	}

	inferred, ok, err := InferBase(ctx, repo, head)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return Result{}, nil
	}
	return Result{CommitID: inferred}, nil
}

// firstAncestorMatch walks head's first-parent ancestry looking for
// the first ancestor that is one of the candidate merge-base ids.
func firstAncestorMatch(ctx context.Context, repo gitrepo.Repo, head objid.Oid, pairs []pair) (pair, bool, error) {
	byMergeBase := make(map[objid.Oid]pair, len(pairs))
	for _, p := range pairs {
		if _, exists := byMergeBase[p.mergeBase]; !exists {
			byMergeBase[p.mergeBase] = p
		}
	}

	cur := head
	for {
		if p, ok := byMergeBase[cur]; ok {
			return p, true, nil
		}
		parents, err := repo.ParentIDs(ctx, cur)
		if err != nil {
			return pair{}, false, err
		}
		if len(parents) == 0 {
			return pair{}, false, nil
		}
		cur = parents[0]
	}
}

// nearestPair picks the candidate minimizing (distance to protected
// branch tip, distance to head) from its merge-base.
func nearestPair(ctx context.Context, repo gitrepo.Repo, head objid.Oid, pairs []pair) (pair, bool, error) {
	var best pair
	found := false
	var bestToHead, bestToBranch int

	for _, p := range pairs {
		toHead, _, ok, err := distance(ctx, repo, p.mergeBase, head)
		if err != nil {
			return pair{}, false, err
		}
		if !ok {
			continue
		}
		toBranch, _, ok, err := distance(ctx, repo, p.mergeBase, p.branch.ID)
		if err != nil {
			return pair{}, false, err
		}
		if !ok {
			continue
		}
		if !found || toBranch < bestToBranch || (toBranch == bestToBranch && toHead < bestToHead) {
			best, found = p, true
			bestToHead, bestToBranch = toHead, toBranch
		}
	}
	return best, found, nil
}

func distance(ctx context.Context, repo gitrepo.Repo, from, to objid.Oid) (int, bool, bool, error) {
	n, ok, err := repo.CommitCount(ctx, from, to)
	if err != nil {
		return 0, false, false, err
	}
	return n, ok, ok, nil
}

// InferBase walks head's primary parents until the committer changes
// or a merge commit is reached, returning that commit as the inferred
// base for a stack with no protected ancestor in range.
func InferBase(ctx context.Context, repo gitrepo.Repo, head objid.Oid) (objid.Oid, bool, error) {
	headCommit, ok, err := repo.FindCommit(ctx, head)
	if err != nil {
		return objid.Oid{}, false, err
	}
	if !ok {
		return objid.Oid{}, false, nil
	}
	headCommitter := headCommit.Committer

	next := head
	for {
		commit, ok, err := repo.FindCommit(ctx, next)
		if err != nil {
			return objid.Oid{}, false, err
		}
		if !ok {
			return objid.Oid{}, false, nil
		}
		if !sameCommitter(commit.Committer, headCommitter) {
			return next, true, nil
		}

		parents, err := repo.ParentIDs(ctx, next)
		if err != nil {
			return objid.Oid{}, false, err
		}
		switch len(parents) {
		case 1:
			next = parents[0]
		default:
			// No parent (root commit) or a merge commit: either way this is
			// as far back as an inferred base can reasonably go.
			return next, true, nil
		}
	}
}

func sameCommitter(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
