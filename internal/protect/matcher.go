// Package protect implements the protected-branch matcher (C2): an
// ordered list of gitignore-style patterns deciding whether a branch
// name is protected from rewriting.
//
// Rather than hand-roll a gitignore engine, this builds directly on
// go-git's own plumbing/format/gitignore package (already a dependency
// of the real repository backend), which already implements "last
// matching pattern wins, negation un-ignores" against an ordered
// pattern list — exactly the semantics spec.md §4.2 and
// original_source/src/git/protect.rs (built on the Rust `ignore` crate)
// both describe.
package protect

import (
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// Matcher decides whether a branch name is protected.
type Matcher struct {
	matcher  gitignore.Matcher
	patterns []string
}

// New compiles an ordered list of gitignore-style patterns into a
// Matcher. An empty list protects nothing. Blank patterns are skipped;
// gitignore.ParsePattern accepts any other string, so New never
// returns an error.
func New(patterns []string) (*Matcher, error) {
	compiled := make([]gitignore.Pattern, 0, len(patterns))
	for _, p := range patterns {
		if strings.TrimSpace(p) == "" {
			continue
		}
		compiled = append(compiled, gitignore.ParsePattern(p, nil))
	}
	if len(compiled) == 0 {
		return &Matcher{matcher: gitignore.NewMatcher(nil), patterns: patterns}, nil
	}
	return &Matcher{matcher: gitignore.NewMatcher(compiled), patterns: patterns}, nil
}

// IsProtected reports whether name is protected, i.e. whether the last
// pattern to match it (if any) was not a negation.
func (m *Matcher) IsProtected(name string) bool {
	if m == nil {
		return false
	}
	segments := strings.Split(name, "/")
	return m.matcher.Match(segments, false)
}

// String renders the compiled pattern list for diagnostics.
func (m *Matcher) String() string {
	return fmt.Sprintf("protect.Matcher(%v)", m.patterns)
}
