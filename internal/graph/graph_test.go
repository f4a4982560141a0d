package graph_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gitstack.dev/gitstack/internal/branchset"
	"gitstack.dev/gitstack/internal/gitrepo/memory"
	"gitstack.dev/gitstack/internal/graph"
	"gitstack.dev/gitstack/internal/objid"
	"gitstack.dev/gitstack/internal/protect"
)

func buildGraph(t *testing.T, patterns []string) (*graph.Graph, *memory.Repo, map[string]objid.Oid) {
	t.Helper()
	ctx := context.Background()
	r := memory.New()
	now := time.Now()
	ids := map[string]objid.Oid{}

	ids["main"] = r.AddCommit(nil, "root", now, "a", "a")
	r.SetLocalBranch("main", ids["main"])

	ids["target"] = r.AddCommit([]objid.Oid{ids["main"]}, "add foo", now, "a", "a")
	ids["other"] = r.AddCommit([]objid.Oid{ids["target"]}, "add bar", now, "a", "a")
	ids["fixup"] = r.AddCommit([]objid.Oid{ids["other"]}, "fixup! add foo", now, "a", "a")
	r.SetLocalBranch("branch1", ids["fixup"])

	matcher, err := protect.New(patterns)
	require.NoError(t, err)
	branches, err := branchset.Build(ctx, r, matcher)
	require.NoError(t, err)

	g, err := graph.FromBranches(ctx, r, branches)
	require.NoError(t, err)
	return g, r, ids
}

func TestProtectBranchesMarksAncestryToRoot(t *testing.T) {
	g, _, ids := buildGraph(t, []string{"main"})
	graph.ProtectBranches(g)

	require.Equal(t, graph.Protected, g.Action(ids["main"]))
	require.Equal(t, graph.Pick, g.Action(ids["target"]), "unprotected branch commits keep the zero-value Pick action")
}

func TestMarkFixupAndFixupSquashSplicesNonAdjacentFixup(t *testing.T) {
	g, _, ids := buildGraph(t, []string{"main"})
	graph.ProtectBranches(g)
	graph.MarkFixup(g)

	require.Equal(t, graph.Fixup, g.Action(ids["fixup"]))
	require.Equal(t, graph.Pick, g.Action(ids["other"]))

	graph.Fixup(g, graph.FixupSquash)

	parent, ok := g.PrimaryParentOf(ids["fixup"])
	require.True(t, ok)
	require.Equal(t, ids["target"], parent, "the fixup commit should have been spliced next to its target")
}

func TestRebasePanicsOnMismatchedEdge(t *testing.T) {
	g, _, ids := buildGraph(t, []string{"main"})

	require.Panics(t, func() {
		g.Rebase(ids["fixup"], ids["main"], ids["target"])
	}, "from must be the commit's actual current parent edge")
}
