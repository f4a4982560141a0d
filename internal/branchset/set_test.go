package branchset_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gitstack.dev/gitstack/internal/branchset"
	"gitstack.dev/gitstack/internal/gitrepo/memory"
	"gitstack.dev/gitstack/internal/objid"
	"gitstack.dev/gitstack/internal/protect"
)

// buildLinearStack returns a fake repo with main -> branch1 -> branch2
// -> branch3, plus a sibling branch4 built directly on branch1, and
// the ids of each tip for callers to reference.
func buildLinearStack(t *testing.T) (r *memory.Repo, main, branch1, branch2, branch3, branch4 objid.Oid) {
	t.Helper()
	r = memory.New()
	now := time.Now()

	main = r.AddCommit(nil, "root", now, "a", "a")
	r.SetLocalBranch("main", main)

	branch1 = r.AddCommit([]objid.Oid{main}, "feature one", now, "a", "a")
	r.SetLocalBranch("branch1", branch1)

	branch2 = r.AddCommit([]objid.Oid{branch1}, "feature two", now, "a", "a")
	r.SetLocalBranch("branch2", branch2)

	branch3 = r.AddCommit([]objid.Oid{branch2}, "feature three", now, "a", "a")
	r.SetLocalBranch("branch3", branch3)

	branch4 = r.AddCommit([]objid.Oid{branch1}, "feature four", now, "a", "a")
	r.SetLocalBranch("branch4", branch4)

	r.Checkout("branch2")
	return r, main, branch1, branch2, branch3, branch4
}

func TestBuildClassifiesBranches(t *testing.T) {
	ctx := context.Background()
	r, main, branch1, _, _, _ := buildLinearStack(t)

	matcher, err := protect.New([]string{"main"})
	require.NoError(t, err)

	set, err := branchset.Build(ctx, r, matcher)
	require.NoError(t, err)

	mainBucket, ok := set.Get(main)
	require.True(t, ok)
	require.Len(t, mainBucket, 1)
	require.Equal(t, branchset.Protected, mainBucket[0].Kind)

	branch1Bucket, ok := set.Get(branch1)
	require.True(t, ok)
	require.Equal(t, branchset.Mutable, branch1Bucket[0].Kind)
	require.True(t, branch1Bucket[0].HasUserCommits())
}

func TestUpdatePreservesKindAndMarksDeleted(t *testing.T) {
	ctx := context.Background()
	r, main, branch1, _, _, _ := buildLinearStack(t)

	matcher, err := protect.New([]string{"main"})
	require.NoError(t, err)
	set, err := branchset.Build(ctx, r, matcher)
	require.NoError(t, err)

	require.NoError(t, r.DeleteBranch(ctx, "branch1"))

	require.NoError(t, set.Update(ctx, r))

	bucket, ok := set.Get(branch1)
	require.True(t, ok)
	require.Equal(t, branchset.Deleted, bucket[0].Kind)

	mainBucket, ok := set.Get(main)
	require.True(t, ok)
	require.Equal(t, branchset.Protected, mainBucket[0].Kind)
}

func TestDescendantsDependentsAndBranch(t *testing.T) {
	ctx := context.Background()
	r, main, branch1, branch2, branch3, branch4 := buildLinearStack(t)

	matcher, err := protect.New([]string{"main"})
	require.NoError(t, err)
	set, err := branchset.Build(ctx, r, matcher)
	require.NoError(t, err)

	descendants := set.Descendants(ctx, r, branch1)
	require.True(t, descendants.Contains(branch1), "base itself is its own merge-base")
	require.True(t, descendants.Contains(branch2))
	require.True(t, descendants.Contains(branch3))
	require.True(t, descendants.Contains(branch4))
	require.False(t, descendants.Contains(main))

	dependents := set.Dependents(ctx, r, branch1, branch2)
	require.True(t, dependents.Contains(branch2))
	require.True(t, dependents.Contains(branch3))
	require.False(t, dependents.Contains(branch4), "branch4 is a sibling of branch2, not on its line")

	line := set.Branch(ctx, r, branch1, branch2)
	require.True(t, line.Contains(branch1))
	require.True(t, line.Contains(branch2))
	require.False(t, line.Contains(branch3))
	require.False(t, line.Contains(branch4))
}

func TestFindProtectedBase(t *testing.T) {
	ctx := context.Background()
	r, main, _, _, branch3, _ := buildLinearStack(t)

	matcher, err := protect.New([]string{"main"})
	require.NoError(t, err)
	set, err := branchset.Build(ctx, r, matcher)
	require.NoError(t, err)

	gb, ok, err := set.FindProtectedBase(ctx, r, branch3)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "main", gb.Name)
	require.Equal(t, main, gb.ID)
}
