package snapshot_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gitstack.dev/gitstack/internal/gitrepo/memory"
	"gitstack.dev/gitstack/internal/objid"
	"gitstack.dev/gitstack/internal/snapshot"
)

func TestFromRepoCapturesEveryLocalBranch(t *testing.T) {
	ctx := context.Background()
	r := memory.New()
	now := time.Now()

	main := r.AddCommit(nil, "root", now, "a", "a")
	r.SetLocalBranch("main", main)
	feature := r.AddCommit([]objid.Oid{main}, "add thing", now, "a", "a")
	r.SetLocalBranch("feature", feature)

	snap, err := snapshot.FromRepo(ctx, r)
	require.NoError(t, err)
	require.Len(t, snap.Branches, 2)
	require.Equal(t, "feature", snap.Branches[0].Name, "sorted by name")
	require.Equal(t, "main", snap.Branches[1].Name)
}

func TestApplyRestoresCapturedTips(t *testing.T) {
	ctx := context.Background()
	r := memory.New()
	now := time.Now()

	main := r.AddCommit(nil, "root", now, "a", "a")
	r.SetLocalBranch("main", main)

	before, err := snapshot.FromRepo(ctx, r)
	require.NoError(t, err)

	moved := r.AddCommit([]objid.Oid{main}, "moved main forward", now, "a", "a")
	require.NoError(t, r.Branch(ctx, "main", moved))

	after, err := snapshot.FromRepo(ctx, r)
	require.NoError(t, err)
	require.False(t, before.Equal(after))

	require.NoError(t, before.Apply(ctx, r))
	restored, err := snapshot.FromRepo(ctx, r)
	require.NoError(t, err)
	require.True(t, before.Equal(restored))
}

func TestSaveLoadRoundTrips(t *testing.T) {
	ctx := context.Background()
	r := memory.New()
	now := time.Now()
	main := r.AddCommit(nil, "root", now, "a", "a")
	r.SetLocalBranch("main", main)

	snap, err := snapshot.FromRepo(ctx, r)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "1.bak")
	require.NoError(t, snap.Save(path))

	loaded, err := snapshot.Load(path)
	require.NoError(t, err)
	require.True(t, snap.Equal(loaded))
}
