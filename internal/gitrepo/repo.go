// Package gitrepo defines the abstract repository interface (C1):
// read/write access to commits, branches, HEAD, stash, and the rebase
// primitives the graph and rewrite packages are built on. Two
// implementations exist: gitrepo/real, backed by go-git, and
// gitrepo/memory, an in-memory fake used by every other package's
// tests.
package gitrepo

import (
	"context"

	"gitstack.dev/gitstack/internal/gitcore"
	"gitstack.dev/gitstack/internal/objid"
)

// Bound describes one end of a commit range, per spec.md §4.1.
type Bound struct {
	ID        objid.Oid
	Exclusive bool
}

// Inclusive builds an inclusive Bound.
func Inclusive(id objid.Oid) Bound { return Bound{ID: id} }

// Exclusive builds an exclusive Bound.
func Exclusive(id objid.Oid) Bound { return Bound{ID: id, Exclusive: true} }

// Unbounded reports whether this end of the range has no commit (only
// valid for the base of a commit_range call).
func (b Bound) Unbounded() bool { return b.ID.IsZero() }

// Repo is the abstract repository interface every other gitstack
// package is built against. Implementations must be safe to use from a
// single goroutine at a time; the core is single-threaded (spec.md §5).
type Repo interface {
	// Path returns the repository's git directory, if known.
	Path() (string, bool)
	// User returns the configured committer identity, if any.
	User() (string, bool)
	// PushRemote and PullRemote return the configured remote names,
	// defaulting to "origin"; PullRemote falls back to PushRemote when
	// unset.
	PushRemote() string
	PullRemote() string
	// IsDirty reports whether the working tree has uncommitted
	// modifications to tracked files, or an operation (rebase/merge) is
	// in progress.
	IsDirty(ctx context.Context) (bool, error)

	// MergeBase returns the unique common ancestor of a and b.
	MergeBase(ctx context.Context, a, b objid.Oid) (objid.Oid, bool, error)
	FindCommit(ctx context.Context, id objid.Oid) (gitcore.Commit, bool, error)
	HeadCommit(ctx context.Context) (gitcore.Commit, error)
	HeadBranch(ctx context.Context) (string, bool, error)
	Resolve(ctx context.Context, revspec string) (objid.Oid, error)
	ParentIDs(ctx context.Context, id objid.Oid) ([]objid.Oid, error)

	// CommitCount returns the number of commits strictly between base
	// and head, or false if base is not an ancestor of head.
	CommitCount(ctx context.Context, base, head objid.Oid) (int, bool, error)
	// CommitRange returns commits in (baseBound, headBound], topological
	// child-first order. headBound must not be unbounded.
	CommitRange(ctx context.Context, baseBound, headBound Bound) ([]objid.Oid, error)
	// ContainsCommit reports whether needle's change is already present
	// in haystack's history (an in-memory rebase of needle onto haystack
	// produces no-op).
	ContainsCommit(ctx context.Context, haystack, needle objid.Oid) (bool, error)

	CherryPick(ctx context.Context, head, cherry objid.Oid) (objid.Oid, error)
	Reword(ctx context.Context, head objid.Oid, message string) (objid.Oid, error)
	Squash(ctx context.Context, head, into objid.Oid) (objid.Oid, error)
	// Commit records the working tree's staged changes (or, if all,
	// every working-tree change, untracked files included) as a new
	// commit on HEAD, for verbs
	// like "amend" that need to capture working-tree content rather
	// than replay history. Fails if nothing is staged.
	Commit(ctx context.Context, message string, all bool) (objid.Oid, error)

	StashPush(ctx context.Context, message string) (objid.Oid, bool, error)
	StashPop(ctx context.Context, id objid.Oid) error

	Branch(ctx context.Context, name string, id objid.Oid) error
	DeleteBranch(ctx context.Context, name string) error
	FindLocalBranch(ctx context.Context, name string) (objid.Oid, bool, error)
	FindRemoteBranch(ctx context.Context, remote, name string) (objid.Oid, bool, error)
	LocalBranches(ctx context.Context) ([]Branch, error)
	RemoteBranches(ctx context.Context) ([]RemoteBranch, error)

	Detach(ctx context.Context) error
	SwitchBranch(ctx context.Context, name string) error
	SwitchCommit(ctx context.Context, id objid.Oid) error
}

// Branch is a local branch name/id pair.
type Branch struct {
	Name string
	ID   objid.Oid
}

// RemoteBranch is a remote-tracking branch name/id pair.
type RemoteBranch struct {
	Remote string
	Name   string
	ID     objid.Oid
}

// Hooks lets the executor (C8) surface notifications to anything
// observing ref changes, mirroring the host VCS's
// reference-transaction/post-rewrite hooks.
type Hooks interface {
	// ReferenceTransaction is invoked before staged branch creations and
	// deletions are applied, with (oldOid, newOid, name) tuples; zero
	// oldOid means the ref previously did not exist.
	ReferenceTransaction(ctx context.Context, updates []RefUpdate) error
	// PostRewrite is invoked after a batch commits, with the set of
	// (old, new) commit id pairs actually rewritten in that batch.
	PostRewrite(ctx context.Context, pairs []Rewrite) error
}

// RefUpdate is one ref change notified to a reference-transaction hook.
type RefUpdate struct {
	Old  objid.Oid
	New  objid.Oid
	Name string
}

// Rewrite is one (old, new) commit id pair notified to a post-rewrite
// hook.
type Rewrite struct {
	Old objid.Oid
	New objid.Oid
}
