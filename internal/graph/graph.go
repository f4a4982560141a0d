// Package graph implements the commit graph (C4) and its rewrite
// passes (C5): a branch set projected onto the commit DAG between a
// shared root and every branch tip, annotated with a per-commit
// rewrite Action, ready to be lowered into a rewrite script.
package graph

import (
	"context"
	"fmt"

	"gitstack.dev/gitstack/internal/branchset"
	"gitstack.dev/gitstack/internal/gitcore"
	"gitstack.dev/gitstack/internal/gitrepo"
	"gitstack.dev/gitstack/internal/objid"
)

// Action is the rewrite disposition of a commit. The fixed four-value
// enum stands in for the typed per-commit attribute map: every
// attribute this tool actually needs collapses to "what should the
// rewrite script do with this commit", so one field suffices.
type Action int

const (
	// Pick cherry-picks the commit as-is. The zero value.
	Pick Action = iota
	// Fixup marks the commit to be squashed into its predecessor.
	Fixup
	// Protected marks a commit that must never be rewritten.
	Protected
	// Delete marks a branch tip (and its ancestors back to the nearest
	// protected commit) for removal without being rewritten.
	Delete
)

func (a Action) String() string {
	switch a {
	case Pick:
		return "Pick"
	case Fixup:
		return "Fixup"
	case Protected:
		return "Protected"
	case Delete:
		return "Delete"
	default:
		return "Unknown"
	}
}

func (a Action) IsPick() bool      { return a == Pick }
func (a Action) IsFixup() bool     { return a == Fixup }
func (a Action) IsProtected() bool { return a == Protected }
func (a Action) IsDelete() bool    { return a == Delete }

// Node is the unit Insert attaches to the graph: an id, its commit (if
// already known), and any branches pointing at it.
type Node struct {
	ID       objid.Oid
	Commit   *gitcore.Commit
	Branches []branchset.GraphBranch
}

type edge struct {
	parent objid.Oid
	weight int
}

// Graph is a directed acyclic graph of commits between a shared root
// and every tracked branch tip, with per-commit Action and branch
// annotations. Edges run child -> parent, weighted by parent index so
// merge commits retain which parent is "primary" (weight 0).
type Graph struct {
	rootID   objid.Oid
	nodes    map[objid.Oid]bool
	parents  map[objid.Oid][]edge
	children map[objid.Oid][]objid.Oid
	commits  map[objid.Oid]gitcore.Commit
	actions  map[objid.Oid]Action
	pushable map[objid.Oid]bool

	// Branches is the branch set this graph was built from or is being
	// rewritten against; passes mutate it directly.
	Branches *branchset.Set
}

// WithRootID creates a graph containing only its root commit.
func WithRootID(rootID objid.Oid) *Graph {
	return &Graph{
		rootID:   rootID,
		nodes:    map[objid.Oid]bool{rootID: true},
		parents:  make(map[objid.Oid][]edge),
		children: make(map[objid.Oid][]objid.Oid),
		commits:  make(map[objid.Oid]gitcore.Commit),
		actions:  make(map[objid.Oid]Action),
		pushable: make(map[objid.Oid]bool),
		Branches: branchset.New(),
	}
}

// FromBranches computes the root as the iterated pairwise merge-base
// of every branch id, then walks each branch's commit range down to
// that root, recording every parent edge (and its index as weight).
func FromBranches(ctx context.Context, repo gitrepo.Repo, branches *branchset.Set) (*Graph, error) {
	oids := branches.Oids()
	if len(oids) == 0 {
		return nil, fmt.Errorf("at least one branch is required to make a graph")
	}

	rootID := oids[0]
	for _, oid := range oids[1:] {
		mb, ok, err := repo.MergeBase(ctx, rootID, oid)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("no merge base between %s and %s", rootID, oid)
		}
		rootID = mb
	}

	g := WithRootID(rootID)
	g.Branches = branches

	for _, branchID := range oids {
		commitIDs, err := repo.CommitRange(ctx, gitrepo.Exclusive(rootID), gitrepo.Inclusive(branchID))
		if err != nil {
			return nil, err
		}
		for _, commitID := range commitIDs {
			parentIDs, err := repo.ParentIDs(ctx, commitID)
			if err != nil {
				return nil, err
			}
			for weight, parentID := range parentIDs {
				g.addEdge(commitID, parentID, weight)
			}
			if commit, ok, err := repo.FindCommit(ctx, commitID); err == nil && ok {
				g.commits[commitID] = commit
			}
		}
	}

	return g, nil
}

func (g *Graph) addEdge(child, parent objid.Oid, weight int) {
	g.nodes[child] = true
	g.nodes[parent] = true
	for _, e := range g.parents[child] {
		if e.parent == parent {
			return
		}
	}
	g.parents[child] = append(g.parents[child], edge{parent: parent, weight: weight})
	g.children[parent] = append(g.children[parent], child)
}

func (g *Graph) removeChildEdge(parent, child objid.Oid) {
	kids := g.children[parent]
	for i, c := range kids {
		if c == child {
			g.children[parent] = append(kids[:i], kids[i+1:]...)
			break
		}
	}
}

// RootID returns the graph's root commit id.
func (g *Graph) RootID() objid.Oid { return g.rootID }

// ContainsID reports whether id is present in the graph.
func (g *Graph) ContainsID(id objid.Oid) bool { return g.nodes[id] }

// ParentsOf returns id's parent ids ordered by ascending weight.
func (g *Graph) ParentsOf(id objid.Oid) []objid.Oid {
	edges := g.parents[id]
	out := make([]objid.Oid, len(edges))
	for i, e := range edges {
		out[i] = e.parent
	}
	return out
}

// PrimaryParentOf returns the parent reached by the weight-0 edge, if any.
func (g *Graph) PrimaryParentOf(id objid.Oid) (objid.Oid, bool) {
	for _, e := range g.parents[id] {
		if e.weight == 0 {
			return e.parent, true
		}
	}
	return objid.Oid{}, false
}

// ChildrenOf returns id's children in insertion order.
func (g *Graph) ChildrenOf(id objid.Oid) []objid.Oid {
	return g.children[id]
}

// PrimaryChildrenOf returns the children for which id is their weight-0 parent.
func (g *Graph) PrimaryChildrenOf(id objid.Oid) []objid.Oid {
	var out []objid.Oid
	for _, child := range g.children[id] {
		for _, e := range g.parents[child] {
			if e.parent == id && e.weight == 0 {
				out = append(out, child)
				break
			}
		}
	}
	return out
}

// Action returns id's current rewrite action, defaulting to Pick.
func (g *Graph) Action(id objid.Oid) Action { return g.actions[id] }

// SetAction sets id's rewrite action.
func (g *Graph) SetAction(id objid.Oid, a Action) { g.actions[id] = a }

// Commit returns id's commit object, if known.
func (g *Graph) Commit(id objid.Oid) (gitcore.Commit, bool) {
	c, ok := g.commits[id]
	return c, ok
}

// SetCommit records id's commit object.
func (g *Graph) SetCommit(id objid.Oid, c gitcore.Commit) { g.commits[id] = c }

// IsPushable reports whether the Pushable pass marked id's branch pushable.
func (g *Graph) IsPushable(id objid.Oid) bool { return g.pushable[id] }

// Insert attaches a new node as a weight-0 child of parentID, which
// must already be present in the graph.
func (g *Graph) Insert(node Node, parentID objid.Oid) {
	if !g.ContainsID(parentID) {
		panic(fmt.Sprintf("graph: expected to contain %s", parentID))
	}
	g.addEdge(node.ID, parentID, 0)
	for _, b := range node.Branches {
		g.Branches.Insert(b)
	}
	if node.Commit != nil {
		g.commits[node.ID] = *node.Commit
	}
}

// Rebase replaces the (id, from) edge with (id, to), preserving weight.
// The root may not be rebased.
func (g *Graph) Rebase(id, from, to objid.Oid) {
	if !g.ContainsID(id) || !g.ContainsID(from) || !g.ContainsID(to) {
		panic(fmt.Sprintf("graph: expected to contain %s, %s, %s", id, from, to))
	}
	if id == g.rootID {
		panic(fmt.Sprintf("graph: cannot rebase root (%s)", id))
	}
	edges := g.parents[id]
	found := false
	for i, e := range edges {
		if e.parent == from {
			g.removeChildEdge(from, id)
			edges[i].parent = to
			found = true
			break
		}
	}
	if !found {
		panic(fmt.Sprintf("graph: %s has no edge to %s", id, from))
	}
	g.parents[id] = edges
	g.children[to] = append(g.children[to], id)
}

// Remove detaches id (which must not be the root), re-parenting its
// children onto id's parents with weights restarted from 0, and
// returns the removed node's commit and branches.
func (g *Graph) Remove(id objid.Oid) (Node, bool) {
	if id == g.rootID {
		panic(fmt.Sprintf("graph: cannot remove root (%s)", id))
	}
	if !g.ContainsID(id) {
		return Node{}, false
	}

	children := append([]objid.Oid(nil), g.children[id]...)
	parentIDs := g.ParentsOf(id)
	if len(children) > 0 {
		for _, childID := range children {
			g.removeChildEdge(id, childID)
			// drop the child's edge back to id, then re-add against each
			// of id's parents with fresh weights.
			edges := g.parents[childID]
			for i := 0; i < len(edges); i++ {
				if edges[i].parent == id {
					edges = append(edges[:i], edges[i+1:]...)
					i--
				}
			}
			g.parents[childID] = edges
			for weight, parentID := range parentIDs {
				g.addEdge(childID, parentID, weight)
			}
		}
	}
	for _, parentID := range parentIDs {
		g.removeChildEdge(parentID, id)
	}

	branches := g.Branches.Remove(id)
	commit, hasCommit := g.commits[id]
	delete(g.commits, id)
	delete(g.actions, id)
	delete(g.parents, id)
	delete(g.children, id)
	delete(g.nodes, id)

	node := Node{ID: id, Branches: branches}
	if hasCommit {
		node.Commit = &commit
	}
	return node, true
}

// AllIDs returns every id currently in the graph, in no particular order.
func (g *Graph) AllIDs() []objid.Oid {
	ids := make([]objid.Oid, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	return ids
}

// AncestorsOf breadth-first walks id's ancestors. When primaryOnly is
// true, only weight-0 parent edges are followed (a single path, no
// risk of revisiting a diamond ancestor twice).
func (g *Graph) AncestorsOf(id objid.Oid, primaryOnly bool) []objid.Oid {
	if !g.ContainsID(id) {
		return nil
	}
	var out []objid.Oid
	seen := map[objid.Oid]bool{id: true}
	queue := []objid.Oid{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		out = append(out, cur)
		if primaryOnly {
			if parent, ok := g.PrimaryParentOf(cur); ok {
				queue = append(queue, parent)
			}
			continue
		}
		for _, parent := range g.ParentsOf(cur) {
			if !seen[parent] {
				seen[parent] = true
				queue = append(queue, parent)
			}
		}
	}
	return out
}

// DescendantsOf breadth-first walks id's descendants along primary
// (weight-0) child edges only.
func (g *Graph) DescendantsOf(id objid.Oid) []objid.Oid {
	if !g.ContainsID(id) {
		return nil
	}
	var out []objid.Oid
	queue := []objid.Oid{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		out = append(out, cur)
		queue = append(queue, g.PrimaryChildrenOf(cur)...)
	}
	return out
}
