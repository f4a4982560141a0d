package rewrite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gitstack.dev/gitstack/internal/gitrepo/memory"
	"gitstack.dev/gitstack/internal/objid"
	"gitstack.dev/gitstack/internal/rewrite"
)

func TestExecutorRunAppliesScriptAndMovesBranches(t *testing.T) {
	ctx := context.Background()
	r := memory.New()
	now := time.Now()

	main := r.AddCommit(nil, "root", now, "a", "a")
	r.SetLocalBranch("main", main)
	c1 := r.AddCommit([]objid.Oid{main}, "add foo", now, "a", "a")
	r.SetLocalBranch("feat", c1)
	r.Checkout("feat")

	script := &rewrite.Script{Batches: []rewrite.Batch{
		{OntoMark: main, Commands: []rewrite.Command{
			{Kind: rewrite.CherryPick, ID: c1},
			{Kind: rewrite.CreateBranch, Name: "feat"},
		}},
	}}

	ex := rewrite.New(r, nil)
	failures, err := ex.Run(ctx, script, false)
	require.NoError(t, err)
	require.Empty(t, failures)

	newTip, ok, err := r.FindLocalBranch(ctx, "feat")
	require.NoError(t, err)
	require.True(t, ok)
	require.NotEqual(t, c1, newTip, "feat should point at the replayed copy, not the original commit")

	require.NoError(t, ex.Close(ctx, ""))
	head, err := r.HeadCommit(ctx)
	require.NoError(t, err)
	require.Equal(t, newTip, head.ID)
}

func TestExecutorRunResolvesLaterBatchOntoEarlierMark(t *testing.T) {
	ctx := context.Background()
	r := memory.New()
	now := time.Now()

	main := r.AddCommit(nil, "root", now, "a", "a")
	r.SetLocalBranch("main", main)
	c1 := r.AddCommit([]objid.Oid{main}, "add foo", now, "a", "a")
	c2 := r.AddCommit([]objid.Oid{c1}, "add bar", now, "a", "a")
	r.SetLocalBranch("feat2", c2)
	r.Checkout("feat2")

	script := &rewrite.Script{Batches: []rewrite.Batch{
		{OntoMark: main, Commands: []rewrite.Command{
			{Kind: rewrite.CherryPick, ID: c1},
			{Kind: rewrite.RegisterMark, ID: c1},
		}},
		{OntoMark: c1, Commands: []rewrite.Command{
			{Kind: rewrite.CherryPick, ID: c2},
			{Kind: rewrite.CreateBranch, Name: "feat2"},
		}},
	}}

	ex := rewrite.New(r, nil)
	failures, err := ex.Run(ctx, script, false)
	require.NoError(t, err)
	require.Empty(t, failures)

	newTip, ok, err := r.FindLocalBranch(ctx, "feat2")
	require.NoError(t, err)
	require.True(t, ok)

	parents, err := r.ParentIDs(ctx, newTip)
	require.NoError(t, err)
	require.Len(t, parents, 1)
	require.NotEqual(t, c1, parents[0], "feat2's replayed parent should be the replayed copy of c1, not c1 itself")
}

func TestExecutorRunSkipsDependentBatchesOnFailure(t *testing.T) {
	ctx := context.Background()
	r := memory.New()
	now := time.Now()

	main := r.AddCommit(nil, "root", now, "a", "a")
	r.SetLocalBranch("main", main)
	r.Checkout("main")

	missing := objid.Oid{9, 9, 9}

	script := &rewrite.Script{Batches: []rewrite.Batch{
		{OntoMark: main, Commands: []rewrite.Command{
			{Kind: rewrite.CherryPick, ID: missing},
			{Kind: rewrite.CreateBranch, Name: "feat"},
			{Kind: rewrite.RegisterMark, ID: missing},
		}},
		{OntoMark: missing, Commands: []rewrite.Command{
			{Kind: rewrite.CreateBranch, Name: "feat2"},
		}},
	}}

	ex := rewrite.New(r, nil)
	failures, err := ex.Run(ctx, script, false)
	require.NoError(t, err)
	require.Len(t, failures, 1)
	require.Equal(t, 0, failures[0].BatchIndex)
	require.Equal(t, []string{"feat2"}, failures[0].SkippedDependents)

	_, ok, err := r.FindLocalBranch(ctx, "feat")
	require.NoError(t, err)
	require.False(t, ok, "the failed batch's staged branch creation must not land")
}

func TestExecutorRunDryRunDoesNotStageBranches(t *testing.T) {
	ctx := context.Background()
	r := memory.New()
	now := time.Now()

	main := r.AddCommit(nil, "root", now, "a", "a")
	r.SetLocalBranch("main", main)
	c1 := r.AddCommit([]objid.Oid{main}, "add foo", now, "a", "a")
	r.SetLocalBranch("feat", c1)
	r.Checkout("feat")

	script := &rewrite.Script{Batches: []rewrite.Batch{
		{OntoMark: main, Commands: []rewrite.Command{
			{Kind: rewrite.CherryPick, ID: c1},
			{Kind: rewrite.CreateBranch, Name: "feat"},
		}},
	}}

	ex := rewrite.New(r, nil)
	failures, err := ex.Run(ctx, script, true)
	require.NoError(t, err)
	require.Empty(t, failures)

	tip, ok, err := r.FindLocalBranch(ctx, "feat")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, c1, tip, "dry run must not move the branch")
}
