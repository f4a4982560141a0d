package branchset

import (
	"context"
	"sort"

	"gitstack.dev/gitstack/internal/gitrepo"
	"gitstack.dev/gitstack/internal/objid"
	"gitstack.dev/gitstack/internal/protect"
)

// Set is the ordered mapping from commit id to the graph-form branches
// pointing at it.
type Set struct {
	buckets map[objid.Oid][]GraphBranch
}

// New returns an empty Set.
func New() *Set {
	return &Set{buckets: make(map[objid.Oid][]GraphBranch)}
}

// Insert adds or overwrites (same remote+name) a branch in its bucket.
func (s *Set) Insert(b GraphBranch) {
	bucket := s.buckets[b.ID]
	for i, existing := range bucket {
		if sameBranch(existing.Branch, b.Branch) {
			bucket[i] = b
			return
		}
	}
	s.buckets[b.ID] = append(bucket, b)
}

func sameBranch(a, b Branch) bool {
	if a.IsLocal() != b.IsLocal() {
		return false
	}
	if !a.IsLocal() && *a.Remote != *b.Remote {
		return false
	}
	return a.Name == b.Name
}

// Get returns the branches at id, if any.
func (s *Set) Get(id objid.Oid) ([]GraphBranch, bool) {
	b, ok := s.buckets[id]
	return b, ok
}

// GetMut returns a mutable slice pointer-equivalent: callers mutate via
// Insert/Remove + re-Insert, since Go slices returned here are the live
// backing bucket.
func (s *Set) GetMut(id objid.Oid) []GraphBranch {
	return s.buckets[id]
}

// SetBucket replaces the entire bucket at id.
func (s *Set) SetBucket(id objid.Oid, branches []GraphBranch) {
	if len(branches) == 0 {
		delete(s.buckets, id)
		return
	}
	s.buckets[id] = branches
}

// Remove deletes and returns the bucket at id.
func (s *Set) Remove(id objid.Oid) []GraphBranch {
	b := s.buckets[id]
	delete(s.buckets, id)
	return b
}

// Contains reports whether id has any branches.
func (s *Set) Contains(id objid.Oid) bool {
	_, ok := s.buckets[id]
	return ok
}

// Oids returns every id with at least one branch, in byte-wise order
// for deterministic iteration (Design Notes §9).
func (s *Set) Oids() []objid.Oid {
	ids := make([]objid.Oid, 0, len(s.buckets))
	for id := range s.buckets {
		ids = append(ids, id)
	}
	objid.Sort(ids)
	return ids
}

// Len reports the number of distinct commit ids with branches.
func (s *Set) Len() int { return len(s.buckets) }

// IsEmpty reports whether the set has no branches at all.
func (s *Set) IsEmpty() bool { return len(s.buckets) == 0 }

// Iter calls fn for every (id, branches) bucket in deterministic order.
func (s *Set) Iter(fn func(id objid.Oid, branches []GraphBranch)) {
	for _, id := range s.Oids() {
		fn(id, s.buckets[id])
	}
}

// Clone returns a deep-enough copy (buckets are copied, branch values
// are value types so no further copying is needed).
func (s *Set) Clone() *Set {
	out := New()
	for id, bucket := range s.buckets {
		out.buckets[id] = append([]GraphBranch(nil), bucket...)
	}
	return out
}

// Build constructs a Set from repository state by applying the
// classification rules of spec.md §4.3: a local branch whose name is
// protected becomes Mixed (if a same-named pull-remote branch exists,
// recorded as a separate Protected remote-tracking branch) or Protected
// outright; an unprotected local branch becomes Mutable, with its
// push-remote counterpart recorded as PushID if present.
func Build(ctx context.Context, repo gitrepo.Repo, matcher *protect.Matcher) (*Set, error) {
	set := New()

	locals, err := repo.LocalBranches(ctx)
	if err != nil {
		return nil, err
	}
	pullRemote := repo.PullRemote()
	pushRemote := repo.PushRemote()

	for _, l := range locals {
		name, id := l.Name, l.ID
		if matcher.IsProtected(name) {
			remoteID, ok, err := repo.FindRemoteBranch(ctx, pullRemote, name)
			if err != nil {
				return nil, err
			}
			if ok {
				pid := remoteID
				set.Insert(GraphBranch{
					Branch: Branch{Name: name, ID: id},
					Kind:   Mixed,
					PullID: &pid,
				})
				remote := pullRemote
				set.Insert(GraphBranch{
					Branch: Branch{Remote: &remote, Name: name, ID: remoteID},
					Kind:   Protected,
				})
			} else {
				set.Insert(GraphBranch{
					Branch: Branch{Name: name, ID: id},
					Kind:   Protected,
				})
			}
			continue
		}

		gb := GraphBranch{Branch: Branch{Name: name, ID: id}, Kind: Mutable}
		if remoteID, ok, err := repo.FindRemoteBranch(ctx, pushRemote, name); err != nil {
			return nil, err
		} else if ok {
			pid := remoteID
			gb.PushID = &pid
		}
		set.Insert(gb)
	}

	return set, nil
}

// Update re-reads local and remote branches from repo, preserving each
// branch's prior Kind and recomputing its pull/push tracking ids. A
// branch that no longer exists locally is retained with Kind=Deleted
// and cleared tracking ids, so identity survives across rewrite
// batches (spec.md §4.3).
func (s *Set) Update(ctx context.Context, repo gitrepo.Repo) error {
	locals, err := repo.LocalBranches(ctx)
	if err != nil {
		return err
	}
	byName := make(map[string]objid.Oid, len(locals))
	for _, l := range locals {
		byName[l.Name] = l.ID
	}

	pullRemote := repo.PullRemote()
	pushRemote := repo.PushRemote()

	newBuckets := make(map[objid.Oid][]GraphBranch)
	seenNames := make(map[string]bool)

	for _, bucket := range s.buckets {
		for _, gb := range bucket {
			if !gb.IsLocal() {
				// remote-tracking entries are recomputed fresh below via
				// pull/push id lookups; drop the stale copy here.
				continue
			}
			seenNames[gb.Name] = true
			newID, stillExists := byName[gb.Name]
			kind := gb.Kind
			var pullID, pushID *objid.Oid
			if !stillExists {
				kind = Deleted
				newID = gb.ID
			} else {
				if remoteID, ok, _ := repo.FindRemoteBranch(ctx, pullRemote, gb.Name); ok {
					id := remoteID
					pullID = &id
				}
				if remoteID, ok, _ := repo.FindRemoteBranch(ctx, pushRemote, gb.Name); ok {
					id := remoteID
					pushID = &id
				}
			}
			updated := GraphBranch{Branch: Branch{Name: gb.Name, ID: newID}, Kind: kind, PullID: pullID, PushID: pushID}
			newBuckets[newID] = append(newBuckets[newID], updated)
		}
	}

	// Pick up any local branches that are new since the set was built.
	for name, id := range byName {
		if seenNames[name] {
			continue
		}
		newBuckets[id] = append(newBuckets[id], GraphBranch{Branch: Branch{Name: name, ID: id}, Kind: Mutable})
	}

	s.buckets = newBuckets
	return nil
}

// Descendants returns the subset of buckets whose id has base as a
// merge-base (i.e. base is an ancestor of the bucket's id).
func (s *Set) Descendants(ctx context.Context, repo gitrepo.Repo, base objid.Oid) *Set {
	out := New()
	for _, id := range s.Oids() {
		mb, ok, _ := repo.MergeBase(ctx, id, base)
		if ok && mb == base {
			out.buckets[id] = s.buckets[id]
		}
	}
	return out
}

// Dependents is like Descendants but additionally excludes branches
// that sit on a sibling-only path of head (branches whose shared base
// with head is exactly `base` yet aren't themselves on head's line).
func (s *Set) Dependents(ctx context.Context, repo gitrepo.Repo, base, head objid.Oid) *Set {
	out := New()
	for _, id := range s.Oids() {
		if id == base {
			continue
		}
		sharedWithHead, ok, _ := repo.MergeBase(ctx, id, head)
		isSiblingOnly := ok && sharedWithHead == base
		baseMB, ok2, _ := repo.MergeBase(ctx, id, base)
		isBaseDescendant := ok2 && baseMB == base
		if isSiblingOnly || !isBaseDescendant {
			continue
		}
		out.buckets[id] = s.buckets[id]
	}
	return out
}

// Branch returns the subset of buckets on the line between base and
// head: ids that are both an ancestor of head and a descendant of
// base.
func (s *Set) Branch(ctx context.Context, repo gitrepo.Repo, base, head objid.Oid) *Set {
	out := New()
	for _, id := range s.Oids() {
		headMB, ok, _ := repo.MergeBase(ctx, id, head)
		isHeadAncestor := ok && headMB == id
		baseMB, ok2, _ := repo.MergeBase(ctx, id, base)
		isBaseDescendant := ok2 && baseMB == base
		if !isHeadAncestor || !isBaseDescendant {
			continue
		}
		out.buckets[id] = s.buckets[id]
	}
	return out
}

// FindProtectedBase walks head's primary-parent ancestry looking for
// the nearest commit that is the merge-base of head and some protected
// branch, returning that branch. Ported from
// original_source/src/branches.rs's find_protected_base.
func (s *Set) FindProtectedBase(ctx context.Context, repo gitrepo.Repo, head objid.Oid) (GraphBranch, bool, error) {
	protectedBaseOids := make(map[objid.Oid][]GraphBranch)
	for _, id := range s.Oids() {
		for _, gb := range s.buckets[id] {
			if gb.Kind != Protected {
				continue
			}
			mb, ok, err := repo.MergeBase(ctx, head, id)
			if err != nil {
				return GraphBranch{}, false, err
			}
			if ok {
				protectedBaseOids[mb] = append(protectedBaseOids[mb], gb)
			}
		}
	}

	cur := head
	for {
		if cands, ok := protectedBaseOids[cur]; ok && len(cands) > 0 {
			sort.Slice(cands, func(i, j int) bool { return cands[i].Name < cands[j].Name })
			return cands[0], true, nil
		}
		parents, err := repo.ParentIDs(ctx, cur)
		if err != nil {
			return GraphBranch{}, false, err
		}
		if len(parents) == 0 {
			return GraphBranch{}, false, nil
		}
		cur = parents[0]
	}
}
