// Package gitcore defines the immutable commit value type shared by the
// graph, rewrite, and snapshot packages, along with the summary
// predicates used by the rewrite passes.
package gitcore

import (
	"strings"
	"time"

	"gitstack.dev/gitstack/internal/objid"
)

// Commit is an immutable, already-published commit. Once constructed it
// is never mutated; rewriting a commit produces a new Commit value with
// a new id.
type Commit struct {
	ID        objid.Oid
	TreeID    objid.Oid
	Summary   string
	Time      time.Time
	Author    *string
	Committer *string
}

// FixupPrefix is the conventional prefix `git commit --fixup` uses.
const FixupPrefix = "fixup! "

// FixupSummary reports whether the commit's summary marks it as a
// fixup for another commit, returning the target's summary.
func (c Commit) FixupSummary() (string, bool) {
	if strings.HasPrefix(c.Summary, FixupPrefix) {
		return strings.TrimPrefix(c.Summary, FixupPrefix), true
	}
	return "", false
}

// WipSummary reports whether the commit looks like a work-in-progress
// marker that should never be auto-pushed.
func (c Commit) WipSummary() bool {
	switch {
	case c.Summary == "WIP", c.Summary == "wip":
		return true
	case strings.HasPrefix(c.Summary, "WIP:"),
		strings.HasPrefix(c.Summary, "WIP "),
		strings.HasPrefix(c.Summary, "wip "),
		strings.HasPrefix(c.Summary, "draft:"),
		strings.HasPrefix(c.Summary, "Draft:"):
		return true
	default:
		return false
	}
}

// RevertSummary reports whether the commit's summary has the shape git
// gives automatic revert commits, used to keep squash-merge detection
// conservative.
func (c Commit) RevertSummary() bool {
	return strings.HasPrefix(c.Summary, "Revert ") && strings.HasSuffix(c.Summary, "\"")
}
