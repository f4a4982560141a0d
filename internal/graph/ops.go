package graph

import (
	"sort"
	"time"

	"gitstack.dev/gitstack/internal/branchset"
	"gitstack.dev/gitstack/internal/objid"
)

func toOidSet(ids []objid.Oid) map[objid.Oid]bool {
	set := make(map[objid.Oid]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// ProtectBranches marks every commit carrying a Protected branch, and
// every primary-parent ancestor of it back to the root, with the
// Protected action. Protection is downward-closed along primary
// parents: the walk stops as soon as it reaches an already-protected
// commit.
func ProtectBranches(g *Graph) {
	var protectedOids []objid.Oid
	g.Branches.Iter(func(id objid.Oid, bucket []branchset.GraphBranch) {
		for _, b := range bucket {
			if b.Kind == branchset.Protected {
				protectedOids = append(protectedOids, id)
				return
			}
		}
	})

	for _, oid := range protectedOids {
		if !g.ContainsID(oid) {
			continue
		}
		cur := oid
		for {
			if g.Action(cur) == Protected {
				break
			}
			g.SetAction(cur, Protected)
			if cur == g.RootID() {
				break
			}
			parent, ok := g.PrimaryParentOf(cur)
			if !ok {
				break
			}
			cur = parent
		}
	}
}

func markBranchProtected(g *Graph, id objid.Oid, names *[]string) {
	queue := []objid.Oid{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		g.SetAction(cur, Protected)
		bucket, _ := g.Branches.Get(cur)
		if len(bucket) == 0 {
			queue = append(queue, g.ChildrenOf(cur)...)
		} else {
			for _, b := range bucket {
				*names = append(*names, b.Name)
			}
		}
	}
}

// ProtectLargeBranches protects (and reports) any branch whose
// unprotected commit count exceeds max, starting just below the last
// Protected commit.
func ProtectLargeBranches(g *Graph, max int) []string {
	var large []string
	var queue []objid.Oid
	if g.Action(g.RootID()) == Protected {
		queue = append(queue, g.RootID())
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, child := range g.ChildrenOf(cur) {
			if g.Action(child) == Protected {
				queue = append(queue, child)
				continue
			}
			if protectLargeBranchesRecursive(g, child, 0, max, &large) {
				queue = append(queue, child)
			}
		}
	}
	return large
}

func protectLargeBranchesRecursive(g *Graph, id objid.Oid, count, max int, large *[]string) bool {
	if bucket, _ := g.Branches.Get(id); len(bucket) > 0 {
		return false
	}
	if count <= max {
		needsProtection := false
		for _, child := range g.ChildrenOf(id) {
			if protectLargeBranchesRecursive(g, child, count+1, max, large) {
				needsProtection = true
			}
		}
		if needsProtection {
			g.SetAction(id, Protected)
		}
		return needsProtection
	}
	markBranchProtected(g, id, large)
	return true
}

// ProtectStaleBranches protects (and reports) any subtree whose
// commits are all older than earlierThan, skipping ids in ignore.
func ProtectStaleBranches(g *Graph, earlierThan time.Time, ignore []objid.Oid) []string {
	ignoreSet := toOidSet(ignore)
	var stale []string
	var queue []objid.Oid
	if g.Action(g.RootID()) == Protected {
		queue = append(queue, g.RootID())
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, child := range g.ChildrenOf(cur) {
			if g.Action(child) == Protected {
				queue = append(queue, child)
				continue
			}
			if isBranchOld(g, child, earlierThan, ignoreSet) {
				markBranchProtected(g, child, &stale)
			}
		}
	}
	return stale
}

func isBranchOld(g *Graph, id objid.Oid, earlierThan time.Time, ignore map[objid.Oid]bool) bool {
	if ignore[id] {
		return false
	}
	c, ok := g.Commit(id)
	if !ok {
		return false
	}
	if earlierThan.Before(c.Time) {
		return false
	}
	for _, child := range g.ChildrenOf(id) {
		if !isBranchOld(g, child, earlierThan, ignore) {
			return false
		}
	}
	return true
}

// ProtectForeignBranches protects (and reports) any subtree in which
// no commit was authored or committed by user, skipping ids in ignore.
func ProtectForeignBranches(g *Graph, user string, ignore []objid.Oid) []string {
	ignoreSet := toOidSet(ignore)
	var foreign []string
	var queue []objid.Oid
	if g.Action(g.RootID()) == Protected {
		queue = append(queue, g.RootID())
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, child := range g.ChildrenOf(cur) {
			if g.Action(child) == Protected {
				queue = append(queue, child)
				continue
			}
			if !isPersonalBranch(g, child, user, ignoreSet) {
				markBranchProtected(g, child, &foreign)
			}
		}
	}
	return foreign
}

func isPersonalBranch(g *Graph, id objid.Oid, user string, ignore map[objid.Oid]bool) bool {
	if ignore[id] {
		return true
	}
	if c, ok := g.Commit(id); ok {
		if (c.Committer != nil && *c.Committer == user) || (c.Author != nil && *c.Author == user) {
			return true
		}
	}
	for _, child := range g.ChildrenOf(id) {
		if isPersonalBranch(g, child, user, ignore) {
			return true
		}
	}
	return false
}

// MarkFixup tags every commit whose summary begins with "fixup! "
// with the Fixup action.
func MarkFixup(g *Graph) {
	for _, id := range g.AllIDs() {
		if g.Action(id) == Protected {
			continue
		}
		c, ok := g.Commit(id)
		if !ok {
			continue
		}
		if _, isFixup := c.FixupSummary(); isFixup {
			g.SetAction(id, Fixup)
		}
	}
}

// MarkWip tags every WIP commit with the Protected action, blocking
// pushability propagation past it.
func MarkWip(g *Graph) {
	for _, id := range g.AllIDs() {
		if c, ok := g.Commit(id); ok && c.WipSummary() {
			g.SetAction(id, Protected)
		}
	}
}

// RebaseDevelopmentBranches re-parents every non-Protected commit
// whose parent is Protected onto newBase, which must already be in
// the graph.
func RebaseDevelopmentBranches(g *Graph, newBase objid.Oid) {
	if !g.ContainsID(newBase) {
		panic("graph: RebaseDevelopmentBranches: newBase not in graph")
	}
	var queue []objid.Oid
	if g.Action(g.RootID()) == Protected {
		queue = append(queue, g.RootID())
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		children := append([]objid.Oid(nil), g.ChildrenOf(cur)...)
		var rebaseable []objid.Oid
		for _, child := range children {
			if g.Action(child) == Protected {
				queue = append(queue, child)
			} else {
				rebaseable = append(rebaseable, child)
			}
		}
		for _, child := range rebaseable {
			g.Rebase(child, cur, newBase)
		}
	}
}

// RebasePulledBranches moves branches sitting exactly on pullStart to
// pullEnd, handling a pristine local base branch being fast-forwarded.
func RebasePulledBranches(g *Graph, pullStart, pullEnd objid.Oid) {
	if pullStart == pullEnd {
		return
	}
	bucket := g.Branches.Remove(pullStart)
	if len(bucket) == 0 {
		return
	}
	existing, _ := g.Branches.Get(pullEnd)
	g.Branches.SetBucket(pullEnd, append(append([]branchset.GraphBranch(nil), existing...), bucket...))
}

// DeleteSquashedBranchesByTreeID marks for deletion every
// first-child-of-protected branch tip whose tree id appears in
// pulledTreeIDs and whose summary is not a revert summary, along with
// every ancestor back to the protected parent.
func DeleteSquashedBranchesByTreeID(g *Graph, pulledTreeIDs []objid.Oid) {
	treeSet := toOidSet(pulledTreeIDs)
	var queue []objid.Oid
	if g.Action(g.RootID()) == Protected {
		queue = append(queue, g.RootID())
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, child := range g.ChildrenOf(cur) {
			action := g.Action(child)
			if action == Protected || action == Delete {
				queue = append(queue, child)
				continue
			}
			dropFirstBranchByTreeID(g, child, nil, treeSet)
		}
	}
}

func dropFirstBranchByTreeID(g *Graph, id objid.Oid, branchPath []objid.Oid, treeSet map[objid.Oid]bool) {
	branchPath = append(append([]objid.Oid(nil), branchPath...), id)

	c, hasCommit := g.Commit(id)
	if hasCommit && c.RevertSummary() {
		return
	}

	bucket, _ := g.Branches.Get(id)
	if len(bucket) > 0 {
		if hasCommit && treeSet[c.TreeID] {
			for _, bid := range branchPath {
				g.SetAction(bid, Delete)
			}
		}
		return
	}

	children := g.ChildrenOf(id)
	switch len(children) {
	case 0:
	case 1:
		dropFirstBranchByTreeID(g, children[0], branchPath, treeSet)
	default:
		for _, child := range children {
			dropFirstBranchByTreeID(g, child, branchPath, treeSet)
		}
	}
}

// DeleteMergedBranches removes any non-Protected branch at each pulled
// id from the branch set, returning the removed names.
func DeleteMergedBranches(g *Graph, pulledIDs []objid.Oid) []string {
	var removed []string
	for _, id := range pulledIDs {
		bucket, ok := g.Branches.Get(id)
		if !ok {
			continue
		}
		var kept []branchset.GraphBranch
		for _, b := range bucket {
			if b.Kind == branchset.Protected {
				kept = append(kept, b)
				continue
			}
			removed = append(removed, b.Name)
		}
		g.Branches.SetBucket(id, kept)
	}
	return removed
}

// FixupEffect controls how MarkFixup-tagged commits are handled by the Fixup pass.
type FixupEffect int

const (
	// FixupIgnore leaves fixup commits exactly where they were committed.
	FixupIgnore FixupEffect = iota
	// FixupMove reorders fixup commits next to their target but leaves
	// them as separate Pick commits.
	FixupMove
	// FixupSquash reorders fixup commits next to their target and
	// marks them to be squashed into it.
	FixupSquash
)

// Fixup reorders commits whose summary is "fixup! <target>" to sit
// immediately after the commit with that summary, for every branch
// below a Protected commit. Dangling fixups (no matching target in the
// branch) are spliced at the branch's base, one group per target
// summary; the groups are taken in sorted order of that summary, not in
// the order the fixups were found.
func Fixup(g *Graph, effect FixupEffect) {
	if effect == FixupIgnore {
		return
	}
	var queue []objid.Oid
	if g.Action(g.RootID()) == Protected {
		queue = append(queue, g.RootID())
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, child := range g.ChildrenOf(cur) {
			action := g.Action(child)
			if action == Protected || action == Delete {
				queue = append(queue, child)
				continue
			}
			fixupBranch(g, cur, child, effect)
		}
	}
}

func fixupBranch(g *Graph, baseID, headID objid.Oid, effect FixupEffect) {
	outstanding := map[string][]Node{}
	for _, child := range append([]objid.Oid(nil), g.ChildrenOf(headID)...) {
		fixupNode(g, headID, child, effect, outstanding)
	}
	if len(outstanding) == 0 {
		return
	}

	c, _ := g.Commit(headID)
	if fixupNodes, ok := outstanding[c.Summary]; ok {
		delete(outstanding, c.Summary)
		applyFixupEffect(g, fixupNodes, effect)
		spliceAfter(g, headID, fixupNodes)
	}

	node := headID
	for _, target := range sortedKeys(outstanding) {
		node = spliceBetween(g, baseID, node, outstanding[target])
	}
}

func fixupNode(g *Graph, parentID, nodeID objid.Oid, effect FixupEffect, outstanding map[string][]Node) {
	for _, child := range append([]objid.Oid(nil), g.ChildrenOf(nodeID)...) {
		fixupNode(g, nodeID, child, effect, outstanding)
	}

	c, ok := g.Commit(nodeID)
	if !ok {
		return
	}

	if target, isFixup := c.FixupSummary(); isFixup {
		removed, _ := g.Remove(nodeID)
		outstanding[target] = append(outstanding[target], removed)
		if len(removed.Branches) > 0 {
			bucket, _ := g.Branches.Get(parentID)
			g.Branches.SetBucket(parentID, append(bucket, removed.Branches...))
		}
		return
	}

	if fixupNodes, ok := outstanding[c.Summary]; ok {
		delete(outstanding, c.Summary)
		applyFixupEffect(g, fixupNodes, effect)
		spliceAfter(g, nodeID, fixupNodes)
	}
}

func applyFixupEffect(g *Graph, nodes []Node, effect FixupEffect) {
	if effect != FixupSquash {
		return
	}
	for _, n := range nodes {
		g.SetAction(n.ID, Fixup)
	}
}

func sortedKeys(m map[string][]Node) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// spliceAfter re-inserts fixups as the sole chain of children under
// nodeID, moving nodeID's former children and branches to the tail of
// that chain.
func spliceAfter(g *Graph, nodeID objid.Oid, fixups []Node) {
	if len(fixups) == 0 {
		return
	}
	origChildren := append([]objid.Oid(nil), g.ChildrenOf(nodeID)...)
	origBranches, _ := g.Branches.Get(nodeID)
	origBranchesCopy := append([]branchset.GraphBranch(nil), origBranches...)
	g.Branches.SetBucket(nodeID, nil)

	last := nodeID
	for _, fx := range fixups {
		g.Insert(Node{ID: fx.ID, Commit: fx.Commit}, last)
		last = fx.ID
	}

	for _, child := range origChildren {
		g.Rebase(child, nodeID, last)
	}
	g.Branches.SetBucket(last, origBranchesCopy)
}

// spliceBetween inserts fixups as a chain between parentID and
// childID, returning the new id directly attached to parentID.
func spliceBetween(g *Graph, parentID, childID objid.Oid, fixups []Node) objid.Oid {
	newChildID := childID
	for _, fx := range fixups {
		g.Insert(Node{ID: fx.ID, Commit: fx.Commit}, parentID)
		g.Rebase(newChildID, parentID, fx.ID)
		newChildID = fx.ID
	}
	return newChildID
}

// RealignStacks detaches descendant stacks that sit on an older
// sibling of a branch tip and re-attaches them onto the newest
// sibling (by commit time), which becomes the primary continuation.
func RealignStacks(g *Graph) {
	for _, id := range g.AllIDs() {
		if g.Action(id) == Protected {
			continue
		}
		bucket, _ := g.Branches.Get(id)
		if len(bucket) == 0 {
			continue
		}
		children := g.ChildrenOf(id)
		if len(children) < 2 {
			continue
		}

		var primary objid.Oid
		var primaryTime time.Time
		havePrimary := false
		for _, child := range children {
			c, ok := g.Commit(child)
			if !ok {
				continue
			}
			if !havePrimary || c.Time.After(primaryTime) {
				primary, primaryTime, havePrimary = child, c.Time, true
			}
		}
		if !havePrimary {
			continue
		}
		for _, child := range children {
			if child == primary {
				continue
			}
			g.Rebase(child, id, primary)
		}
	}
}

// MergeStacks collapses sibling subtrees whose heads share an
// identical tree id into the newest sibling, moving the older
// siblings' branches and children onto it.
func MergeStacks(g *Graph) {
	for _, parent := range g.AllIDs() {
		children := append([]objid.Oid(nil), g.ChildrenOf(parent)...)
		if len(children) < 2 {
			continue
		}
		byTree := map[objid.Oid][]objid.Oid{}
		for _, c := range children {
			commit, ok := g.Commit(c)
			if !ok {
				continue
			}
			byTree[commit.TreeID] = append(byTree[commit.TreeID], c)
		}
		for _, group := range byTree {
			if len(group) < 2 {
				continue
			}
			newest := group[0]
			newestCommit, _ := g.Commit(newest)
			for _, cand := range group[1:] {
				candCommit, ok := g.Commit(cand)
				if ok && candCommit.Time.After(newestCommit.Time) {
					newest, newestCommit = cand, candCommit
				}
			}
			for _, older := range group {
				if older == newest || !g.ContainsID(older) {
					continue
				}
				mergeStackInto(g, older, newest)
			}
		}
	}
}

func mergeStackInto(g *Graph, olderID, newestID objid.Oid) {
	bucket, _ := g.Branches.Get(olderID)
	if len(bucket) > 0 {
		newestBucket, _ := g.Branches.Get(newestID)
		g.Branches.SetBucket(newestID, append(newestBucket, bucket...))
		g.Branches.Remove(olderID)
	}
	for _, child := range append([]objid.Oid(nil), g.ChildrenOf(olderID)...) {
		g.Rebase(child, olderID, newestID)
	}
	g.Remove(olderID)
}

// Pushable walks the graph from the root downward, marking the first
// branch below an unbroken Protected prefix as pushable unless it is
// already at its push id or some ancestor is a WIP commit.
func Pushable(g *Graph) {
	type item struct {
		id    objid.Oid
		cause string
	}
	var queue []item
	if g.Action(g.RootID()) == Protected {
		queue = append(queue, item{id: g.RootID()})
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		cause := cur.cause
		if c, ok := g.Commit(cur.id); ok && cause == "" && c.WipSummary() {
			cause = "contains WIP commit"
		}

		if g.Action(cur.id) != Protected {
			bucket, _ := g.Branches.Get(cur.id)
			if len(bucket) > 0 {
				if cause == "" {
					allPushed := true
					for _, b := range bucket {
						if b.PushID == nil || *b.PushID != b.ID {
							allPushed = false
							break
						}
					}
					if allPushed {
						cause = "already pushed"
					} else if c, ok := g.Commit(cur.id); ok && c.WipSummary() {
						cause = "contains WIP commit"
					}
				}
				if cause == "" {
					g.pushable[cur.id] = true
				}
				continue
			}
		}

		for _, child := range g.ChildrenOf(cur.id) {
			queue = append(queue, item{id: child, cause: cause})
		}
	}
}
