// Package branchset implements the branch set (C3): the ordered
// mapping from commit id to the branches pointing at it, with kind
// classification and pull/push tracking ids, ported from
// original_source/src/branches.rs.
package branchset

import "gitstack.dev/gitstack/internal/objid"

// Branch is the external form of a branch: a name, an optional remote,
// and the commit it points at.
type Branch struct {
	Remote *string
	Name   string
	ID     objid.Oid
}

// Display renders the branch the way a user would type it:
// "<name>" for a local branch, "<remote>/<name>" for a remote-tracking
// one.
func (b Branch) Display() string {
	if b.Remote == nil {
		return b.Name
	}
	return *b.Remote + "/" + b.Name
}

// LocalName returns the branch's name, but only when it is local.
func (b Branch) LocalName() (string, bool) {
	if b.Remote != nil {
		return "", false
	}
	return b.Name, true
}

// IsLocal reports whether this is a local (non remote-tracking) branch.
func (b Branch) IsLocal() bool { return b.Remote == nil }

// Kind classifies a graph-form branch, per spec.md §3.
type Kind int

const (
	// Deleted marks a branch that used to exist locally but no longer
	// does; retained so identity survives across rewrite batches.
	Deleted Kind = iota
	// Mutable marks an ordinary local development branch.
	Mutable
	// Mixed marks a local branch whose name is protected and which also
	// exists on the pull remote; the remote-tracking copy is the
	// Protected one.
	Mixed
	// Protected marks a branch whose commits may never be rewritten.
	Protected
)

func (k Kind) String() string {
	switch k {
	case Deleted:
		return "Deleted"
	case Mutable:
		return "Mutable"
	case Mixed:
		return "Mixed"
	case Protected:
		return "Protected"
	default:
		return "Unknown"
	}
}

// GraphBranch wraps an external Branch with the kind and tracking-id
// metadata the graph and its rewrite passes need.
type GraphBranch struct {
	Branch
	Kind   Kind
	PullID *objid.Oid
	PushID *objid.Oid
}

// HasUserCommits reports whether a branch may contain commits a user
// authored that are not yet reflected anywhere protected -- true for
// Mutable and Mixed branches only. The `prev` verb special-cases Mixed
// this way (spec.md §9, "Open question — Mixed branches").
func (b GraphBranch) HasUserCommits() bool {
	return b.Kind == Mutable || b.Kind == Mixed
}
