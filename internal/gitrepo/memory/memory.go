// Package memory implements gitrepo.Repo purely over Go maps, with no
// on-disk state. It is the repository fake every other gitstack
// package's tests are built against, mirroring the teacher's own
// preference for fake-backed unit tests (testhelpers/git_repo.go) and
// the fixture-builder idiom in original_source's git-fixture crate,
// without porting that crate's DSL (out of scope, spec.md §1).
package memory

import (
	"context"
	"crypto/sha1"
	"fmt"
	"sort"
	"time"

	"gitstack.dev/gitstack/internal/gitcore"
	"gitstack.dev/gitstack/internal/gitrepo"
	"gitstack.dev/gitstack/internal/objid"
)

// Repo is an in-memory fake repository.
type Repo struct {
	commits map[objid.Oid]gitcore.Commit
	parents map[objid.Oid][]objid.Oid

	local  map[string]objid.Oid
	remote map[string]map[string]objid.Oid // remote -> name -> id

	headBranch string // empty when detached
	headID     objid.Oid

	user       string
	pushRemote string
	pullRemote string
	dirty      bool

	stashes map[objid.Oid]objid.Oid // stash id -> commit id saved

	mergeBaseCache map[[2]objid.Oid]objid.Oid
}

// New builds an empty repository fake rooted at no commits. Call
// AddCommit to build up history before using it.
func New() *Repo {
	return &Repo{
		commits:        make(map[objid.Oid]gitcore.Commit),
		parents:        make(map[objid.Oid][]objid.Oid),
		local:          make(map[string]objid.Oid),
		remote:         make(map[string]map[string]objid.Oid),
		pushRemote:     "origin",
		pullRemote:     "origin",
		stashes:        make(map[objid.Oid]objid.Oid),
		mergeBaseCache: make(map[[2]objid.Oid]objid.Oid),
	}
}

// SetUser sets the fake committer identity.
func (r *Repo) SetUser(user string) { r.user = user }

// SetDirty marks the fake working tree as dirty or clean.
func (r *Repo) SetDirty(dirty bool) { r.dirty = dirty }

// deriveID synthesizes a deterministic commit id from its content,
// standing in for the real content hash a production backend would
// compute.
func deriveID(parents []objid.Oid, treeID objid.Oid, summary string, t time.Time, author, committer string) objid.Oid {
	h := sha1.New()
	for _, p := range parents {
		h.Write(p[:])
	}
	h.Write(treeID[:])
	fmt.Fprintf(h, "%s|%d|%s|%s", summary, t.UnixNano(), author, committer)
	var id objid.Oid
	copy(id[:], h.Sum(nil))
	return id
}

// AddCommit creates a new commit with the given parents (first is
// primary) and returns its id.
func (r *Repo) AddCommit(parents []objid.Oid, summary string, t time.Time, author, committer string) objid.Oid {
	treeID := deriveID(parents, objid.Zero, "tree:"+summary, t, author, committer)
	id := deriveID(parents, treeID, summary, t, author, committer)
	a, c := author, committer
	r.commits[id] = gitcore.Commit{
		ID:        id,
		TreeID:    treeID,
		Summary:   summary,
		Time:      t,
		Author:    &a,
		Committer: &c,
	}
	r.parents[id] = append([]objid.Oid(nil), parents...)
	return id
}

// AddCommitWithTree is like AddCommit but lets the caller control the
// tree id directly, used to simulate squash-merge detection scenarios
// where two commits share a tree.
func (r *Repo) AddCommitWithTree(parents []objid.Oid, treeID objid.Oid, summary string, t time.Time, author, committer string) objid.Oid {
	id := deriveID(parents, treeID, summary, t, author, committer)
	a, c := author, committer
	r.commits[id] = gitcore.Commit{
		ID:        id,
		TreeID:    treeID,
		Summary:   summary,
		Time:      t,
		Author:    &a,
		Committer: &c,
	}
	r.parents[id] = append([]objid.Oid(nil), parents...)
	return id
}

// SetLocalBranch points a local branch at id, creating it if absent.
func (r *Repo) SetLocalBranch(name string, id objid.Oid) { r.local[name] = id }

// SetRemoteBranch points a remote-tracking branch at id.
func (r *Repo) SetRemoteBranch(remote, name string, id objid.Oid) {
	if r.remote[remote] == nil {
		r.remote[remote] = make(map[string]objid.Oid)
	}
	r.remote[remote][name] = id
}

// Checkout sets HEAD to a local branch.
func (r *Repo) Checkout(name string) { r.headBranch = name; r.headID = r.local[name] }

// DetachAt sets HEAD to a detached commit.
func (r *Repo) DetachAt(id objid.Oid) { r.headBranch = ""; r.headID = id }

func (r *Repo) Path() (string, bool) { return "", false }

func (r *Repo) User() (string, bool) {
	if r.user == "" {
		return "", false
	}
	return r.user, true
}

func (r *Repo) PushRemote() string { return r.pushRemote }

func (r *Repo) PullRemote() string {
	if r.pullRemote == "" {
		return r.pushRemote
	}
	return r.pullRemote
}

func (r *Repo) IsDirty(context.Context) (bool, error) { return r.dirty, nil }

func (r *Repo) FindCommit(_ context.Context, id objid.Oid) (gitcore.Commit, bool, error) {
	c, ok := r.commits[id]
	return c, ok, nil
}

func (r *Repo) HeadCommit(ctx context.Context) (gitcore.Commit, error) {
	c, ok, _ := r.FindCommit(ctx, r.headID)
	if !ok {
		return gitcore.Commit{}, fmt.Errorf("memory: no HEAD commit")
	}
	return c, nil
}

func (r *Repo) HeadBranch(context.Context) (string, bool, error) {
	if r.headBranch == "" {
		return "", false, nil
	}
	return r.headBranch, true, nil
}

func (r *Repo) Resolve(_ context.Context, revspec string) (objid.Oid, error) {
	if id, ok := r.local[revspec]; ok {
		return id, nil
	}
	if id, err := objid.Parse(revspec); err == nil {
		if _, ok := r.commits[id]; ok {
			return id, nil
		}
	}
	return objid.Oid{}, fmt.Errorf("memory: cannot resolve %q", revspec)
}

func (r *Repo) ParentIDs(_ context.Context, id objid.Oid) ([]objid.Oid, error) {
	return append([]objid.Oid(nil), r.parents[id]...), nil
}

func (r *Repo) ancestors(id objid.Oid, primaryOnly bool) map[objid.Oid]bool {
	seen := map[objid.Oid]bool{id: true}
	queue := []objid.Oid{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		ps := r.parents[cur]
		if primaryOnly {
			if len(ps) > 0 && !seen[ps[0]] {
				seen[ps[0]] = true
				queue = append(queue, ps[0])
			}
			continue
		}
		for _, p := range ps {
			if !seen[p] {
				seen[p] = true
				queue = append(queue, p)
			}
		}
	}
	return seen
}

func (r *Repo) isAncestor(a, b objid.Oid) bool {
	if a == b {
		return true
	}
	return r.ancestors(b, false)[a]
}

func (r *Repo) MergeBase(_ context.Context, a, b objid.Oid) (objid.Oid, bool, error) {
	key := [2]objid.Oid{a, b}
	if a.Less(b) {
		// normalize cache key regardless of argument order, per spec.md §4.1
	} else {
		key = [2]objid.Oid{b, a}
	}
	if cached, ok := r.mergeBaseCache[key]; ok {
		return cached, true, nil
	}
	if a == b {
		r.mergeBaseCache[key] = a
		return a, true, nil
	}
	ancestorsA := r.ancestors(a, false)
	// walk b's ancestry breadth-first so the first shared commit found
	// is the most recent common ancestor
	seen := map[objid.Oid]bool{}
	queue := []objid.Oid{b}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if seen[cur] {
			continue
		}
		seen[cur] = true
		if ancestorsA[cur] {
			r.mergeBaseCache[key] = cur
			return cur, true, nil
		}
		queue = append(queue, r.parents[cur]...)
	}
	return objid.Oid{}, false, nil
}

func (r *Repo) CommitCount(ctx context.Context, base, head objid.Oid) (int, bool, error) {
	if base == head {
		return 0, true, nil
	}
	mb, ok, _ := r.MergeBase(ctx, base, head)
	if !ok || mb != base {
		return 0, false, nil
	}
	count := 0
	seen := map[objid.Oid]bool{base: true}
	queue := []objid.Oid{head}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if seen[cur] {
			continue
		}
		seen[cur] = true
		count++
		queue = append(queue, r.parents[cur]...)
	}
	return count, true, nil
}

func (r *Repo) CommitRange(_ context.Context, baseBound, headBound gitrepo.Bound) ([]objid.Oid, error) {
	if headBound.Unbounded() {
		return nil, fmt.Errorf("memory: commit_range head bound must not be unbounded")
	}
	var out []objid.Oid
	seen := map[objid.Oid]bool{}
	queue := []objid.Oid{headBound.ID}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if seen[cur] {
			continue
		}
		seen[cur] = true

		atBase := !baseBound.Unbounded() && cur == baseBound.ID
		atHead := cur == headBound.ID
		switch {
		case atBase && baseBound.Exclusive:
			// stop, do not include, do not descend further
			continue
		case atHead && headBound.Exclusive:
			// skip the head itself but keep walking its parents
		default:
			out = append(out, cur)
		}
		if atBase {
			continue
		}
		queue = append(queue, r.parents[cur]...)
	}
	return out, nil
}

func (r *Repo) ContainsCommit(ctx context.Context, haystack, needle objid.Oid) (bool, error) {
	needleCommit, ok, _ := r.FindCommit(ctx, needle)
	if !ok {
		return false, fmt.Errorf("memory: unknown commit %s", needle)
	}
	for id := range r.ancestors(haystack, false) {
		c := r.commits[id]
		if c.TreeID == needleCommit.TreeID {
			return true, nil
		}
	}
	return false, nil
}

func (r *Repo) CherryPick(_ context.Context, head, cherry objid.Oid) (objid.Oid, error) {
	c, ok := r.commits[cherry]
	if !ok {
		return objid.Oid{}, fmt.Errorf("memory: unknown commit %s", cherry)
	}
	newID := deriveID([]objid.Oid{head}, c.TreeID, c.Summary, time.Now(), deref(c.Author), deref(c.Committer))
	author, committer := c.Author, c.Committer
	if r.user != "" {
		u := r.user
		committer = &u
	}
	r.commits[newID] = gitcore.Commit{ID: newID, TreeID: c.TreeID, Summary: c.Summary, Time: c.Time, Author: author, Committer: committer}
	r.parents[newID] = []objid.Oid{head}
	return newID, nil
}

func (r *Repo) Reword(_ context.Context, head objid.Oid, message string) (objid.Oid, error) {
	c, ok := r.commits[head]
	if !ok {
		return objid.Oid{}, fmt.Errorf("memory: unknown commit %s", head)
	}
	newID := deriveID(r.parents[head], c.TreeID, message, c.Time, deref(c.Author), deref(c.Committer))
	r.commits[newID] = gitcore.Commit{ID: newID, TreeID: c.TreeID, Summary: message, Time: c.Time, Author: c.Author, Committer: c.Committer}
	r.parents[newID] = r.parents[head]
	return newID, nil
}

func (r *Repo) Squash(_ context.Context, head, into objid.Oid) (objid.Oid, error) {
	headC, ok := r.commits[head]
	if !ok {
		return objid.Oid{}, fmt.Errorf("memory: unknown commit %s", head)
	}
	intoC, ok := r.commits[into]
	if !ok {
		return objid.Oid{}, fmt.Errorf("memory: unknown commit %s", into)
	}
	parents := r.parents[into]
	newID := deriveID(parents, headC.TreeID, intoC.Summary, intoC.Time, deref(intoC.Author), deref(intoC.Committer))
	r.commits[newID] = gitcore.Commit{ID: newID, TreeID: headC.TreeID, Summary: intoC.Summary, Time: intoC.Time, Author: intoC.Author, Committer: intoC.Committer}
	r.parents[newID] = parents
	return newID, nil
}

// Commit synthesizes a new commit on HEAD from the fake's dirty flag,
// standing in for staging and committing real working-tree content.
// SetDirty(true) models a worktree with changes to commit; all is
// accepted for interface parity but the fake has no index to stage.
func (r *Repo) Commit(_ context.Context, message string, all bool) (objid.Oid, error) {
	_ = all // the fake has no index; dirty is the only signal it tracks
	if !r.dirty {
		return objid.Oid{}, fmt.Errorf("memory: nothing staged to commit")
	}
	var parents []objid.Oid
	if !r.headID.IsZero() {
		parents = []objid.Oid{r.headID}
	}
	treeID := deriveID(parents, objid.Zero, "tree:"+message, time.Now(), r.user, r.user)
	newID := deriveID(parents, treeID, message, time.Now(), r.user, r.user)
	committer := r.user
	r.commits[newID] = gitcore.Commit{ID: newID, TreeID: treeID, Summary: message, Time: time.Now(), Author: &committer, Committer: &committer}
	r.parents[newID] = parents
	r.headID = newID
	if r.headBranch != "" {
		r.local[r.headBranch] = newID
	}
	r.dirty = false
	return newID, nil
}

func (r *Repo) StashPush(ctx context.Context, message string) (objid.Oid, bool, error) {
	if !r.dirty {
		return objid.Oid{}, false, nil
	}
	id := deriveID([]objid.Oid{r.headID}, objid.Zero, "stash:"+message, time.Now(), r.user, r.user)
	r.stashes[id] = r.headID
	r.dirty = false
	return id, true, nil
}

func (r *Repo) StashPop(_ context.Context, id objid.Oid) error {
	if _, ok := r.stashes[id]; !ok {
		return fmt.Errorf("memory: unknown stash %s", id)
	}
	delete(r.stashes, id)
	r.dirty = true
	return nil
}

func (r *Repo) Branch(_ context.Context, name string, id objid.Oid) error {
	if _, ok := r.commits[id]; !ok {
		return fmt.Errorf("memory: unknown commit %s", id)
	}
	r.local[name] = id
	return nil
}

func (r *Repo) DeleteBranch(_ context.Context, name string) error {
	if _, ok := r.local[name]; !ok {
		return fmt.Errorf("memory: branch %q not found", name)
	}
	delete(r.local, name)
	return nil
}

func (r *Repo) FindLocalBranch(_ context.Context, name string) (objid.Oid, bool, error) {
	id, ok := r.local[name]
	return id, ok, nil
}

func (r *Repo) FindRemoteBranch(_ context.Context, remote, name string) (objid.Oid, bool, error) {
	id, ok := r.remote[remote][name]
	return id, ok, nil
}

func (r *Repo) LocalBranches(context.Context) ([]gitrepo.Branch, error) {
	out := make([]gitrepo.Branch, 0, len(r.local))
	for name, id := range r.local {
		out = append(out, gitrepo.Branch{Name: name, ID: id})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *Repo) RemoteBranches(context.Context) ([]gitrepo.RemoteBranch, error) {
	var out []gitrepo.RemoteBranch
	for remote, names := range r.remote {
		for name, id := range names {
			out = append(out, gitrepo.RemoteBranch{Remote: remote, Name: name, ID: id})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Remote != out[j].Remote {
			return out[i].Remote < out[j].Remote
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (r *Repo) Detach(context.Context) error {
	r.headBranch = ""
	return nil
}

func (r *Repo) SwitchBranch(_ context.Context, name string) error {
	id, ok := r.local[name]
	if !ok {
		return fmt.Errorf("memory: branch %q not found", name)
	}
	r.headBranch = name
	r.headID = id
	return nil
}

func (r *Repo) SwitchCommit(_ context.Context, id objid.Oid) error {
	if _, ok := r.commits[id]; !ok {
		return fmt.Errorf("memory: unknown commit %s", id)
	}
	r.headBranch = ""
	r.headID = id
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

var _ gitrepo.Repo = (*Repo)(nil)
