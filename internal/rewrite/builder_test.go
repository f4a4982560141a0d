package rewrite_test

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
	"gitstack.dev/gitstack/internal/rewrite"
)

// buildSimpleGraph returns main -> c1 ("feat") -> c2 ("feat2"), with main
// protected, as a *graph.Graph ready for rewrite.Build.
func buildSimpleGraph(t *testing.T) (*graph.Graph, map[string]objid.Oid) {
	t.Helper()
	ctx := context.Background()
	r := memory.New()
	now := time.Now()
	ids := map[string]objid.Oid{}

	ids["main"] = r.AddCommit(nil, "root", now, "a", "a")
	r.SetLocalBranch("main", ids["main"])

	ids["c1"] = r.AddCommit([]objid.Oid{ids["main"]}, "add foo", now, "a", "a")
	r.SetLocalBranch("feat", ids["c1"])

	ids["c2"] = r.AddCommit([]objid.Oid{ids["c1"]}, "add bar", now, "a", "a")
	r.SetLocalBranch("feat2", ids["c2"])

	matcher, err := protect.New([]string{"main"})
	require.NoError(t, err)
	branches, err := branchset.Build(ctx, r, matcher)
	require.NoError(t, err)

	g, err := graph.FromBranches(ctx, r, branches)
	require.NoError(t, err)
	graph.ProtectBranches(g)
	return g, ids
}

func commandKinds(cmds []rewrite.Command) []rewrite.CommandKind {
	out := make([]rewrite.CommandKind, len(cmds))
	for i, c := range cmds {
		out[i] = c.Kind
	}
	return out
}

func TestBuildEmitsProtectedBatchThenPickChain(t *testing.T) {
	g, ids := buildSimpleGraph(t)

	script := rewrite.Build(g, nil)
	require.False(t, script.IsEmpty())
	require.Len(t, script.Batches, 3, "one batch for main's branch, one per pick commit since each has its own branch")

	root := script.Batches[0]
	require.Equal(t, ids["main"], root.OntoMark)
	require.Equal(t, []rewrite.CommandKind{rewrite.CreateBranch}, commandKinds(root.Commands))
	require.Equal(t, "main", root.Commands[0].Name)

	first := script.Batches[1]
	require.Equal(t, ids["main"], first.OntoMark)
	require.Equal(t, []rewrite.CommandKind{rewrite.CherryPick, rewrite.CreateBranch, rewrite.RegisterMark}, commandKinds(first.Commands))
	require.Equal(t, ids["c1"], first.Commands[0].ID)
	require.Equal(t, "feat", first.Commands[1].Name)

	second := script.Batches[2]
	require.Equal(t, ids["c1"], second.OntoMark)
	require.Equal(t, []rewrite.CommandKind{rewrite.CherryPick, rewrite.CreateBranch}, commandKinds(second.Commands))
	require.Equal(t, ids["c2"], second.Commands[0].ID)
}

func TestBuildEmitsRewordForTargetedCommit(t *testing.T) {
	g, ids := buildSimpleGraph(t)

	script := rewrite.Build(g, map[objid.Oid]string{ids["c1"]: "new message"})

	first := script.Batches[1]
	require.Equal(t, rewrite.Reword, first.Commands[0].Kind)
	require.Equal(t, "new message", first.Commands[0].Message)
	require.Equal(t, ids["c1"], first.Commands[0].ID)
}

func TestBuildEmitsFixupCommand(t *testing.T) {
	g, ids := buildSimpleGraph(t)
	g.SetAction(ids["c2"], graph.Fixup)

	script := rewrite.Build(g, nil)

	second := script.Batches[2]
	require.Equal(t, []rewrite.CommandKind{rewrite.Fixup, rewrite.CreateBranch}, commandKinds(second.Commands))
	require.Equal(t, ids["c2"], second.Commands[0].ID)
}

func TestBuildEmitsDeleteBranchForDeleteAction(t *testing.T) {
	g, ids := buildSimpleGraph(t)
	g.SetAction(ids["c1"], graph.Delete)

	script := rewrite.Build(g, nil)

	// c1 has no branches left worth a mark of its own once deleted, and
	// it has a single child, so the chain continues into c2 within the
	// same batch: c2 cherry-picks straight onto main, skipping c1.
	require.Len(t, script.Batches, 2)
	batch := script.Batches[1]
	require.Equal(t, ids["main"], batch.OntoMark)
	require.Equal(t, []rewrite.CommandKind{rewrite.DeleteBranch, rewrite.CherryPick, rewrite.CreateBranch}, commandKinds(batch.Commands))
	require.Equal(t, "feat", batch.Commands[0].Name)
	require.Equal(t, ids["c2"], batch.Commands[1].ID)
	require.Equal(t, "feat2", batch.Commands[2].Name)
}
