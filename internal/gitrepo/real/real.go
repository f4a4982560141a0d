// Package real implements gitrepo.Repo against a real repository: read
// access goes through go-git's own object graph (github.com/go-git/go-git/v5),
// exactly as the teacher's internal/git package does for merge-base,
// commit-range, and branch enumeration; the handful of operations that
// need real content merging (cherry-pick) or would otherwise fight the
// current worktree state (reword/squash via commit-tree, stash) shell
// out to the system git binary, mirroring the teacher's own
// internal/git/rebase.go, which does the same for cherry-pick/rebase
// rather than reimplementing three-way merge against go-git's object
// model.
package real

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"gitstack.dev/gitstack/internal/gitcore"
	"gitstack.dev/gitstack/internal/gitrepo"
	"gitstack.dev/gitstack/internal/objid"
)

// Repo is the go-git + subprocess backed gitrepo.Repo implementation.
type Repo struct {
	repo     *gogit.Repository
	worktree string
	gitDir   string
}

// Open opens the repository containing dir (walking up to find .git,
// exactly as the teacher's OpenRepository does).
func Open(dir string) (*Repo, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("gitrepo/real: resolve path: %w", err)
	}

	repo, err := gogit.PlainOpenWithOptions(absDir, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("gitrepo/real: open repository: %w", err)
	}

	wt, err := repo.Worktree()
	worktree := absDir
	gitDir := filepath.Join(absDir, ".git")
	if err == nil {
		worktree = wt.Filesystem.Root()
		gitDir = filepath.Join(worktree, ".git")
	}

	return &Repo{repo: repo, worktree: worktree, gitDir: gitDir}, nil
}

// toHash/toOid round-trip through hex rather than assuming Hash's
// internal layout, since go-git's Hash type varies across its SHA1/
// SHA256 object-format support.
func toHash(id objid.Oid) plumbing.Hash { return plumbing.NewHash(id.String()) }
func toOid(h plumbing.Hash) objid.Oid   { return objid.MustParse(h.String()) }

func firstLine(message string) string {
	if i := strings.IndexByte(message, '\n'); i >= 0 {
		return message[:i]
	}
	return message
}

func formatSignature(sig object.Signature) string {
	return fmt.Sprintf("%s <%s>", sig.Name, sig.Email)
}

func toCommit(c *object.Commit) gitcore.Commit {
	author := formatSignature(c.Author)
	committer := formatSignature(c.Committer)
	return gitcore.Commit{
		ID:        toOid(c.Hash),
		TreeID:    toOid(c.TreeHash),
		Summary:   firstLine(strings.TrimSpace(c.Message)),
		Time:      c.Committer.When,
		Author:    &author,
		Committer: &committer,
	}
}

// Path returns the repository's git directory.
func (r *Repo) Path() (string, bool) { return r.gitDir, r.gitDir != "" }

// User returns the configured committer identity, formatted as
// "Name <email>" like the Author/Committer fields of commits.
func (r *Repo) User() (string, bool) {
	cfg, err := r.repo.Config()
	if err != nil || cfg.User.Name == "" {
		return "", false
	}
	return formatSignature(object.Signature{Name: cfg.User.Name, Email: cfg.User.Email}), true
}

func (r *Repo) stackOption(key, fallback string) string {
	cfg, err := r.repo.Config()
	if err != nil {
		return fallback
	}
	sec := cfg.Raw.Section("stack")
	if sec == nil {
		return fallback
	}
	if v := sec.Option(key); v != "" {
		return v
	}
	return fallback
}

// signEnabled reports whether "stack.gpgSign" is set, matching
// rcfg.Config.GPGSign's own key, so CherryPick/Reword/Squash can
// pass -S through to git without threading the toggle through the
// gitrepo.Repo interface.
func (r *Repo) signEnabled() bool {
	v, err := strconv.ParseBool(r.stackOption("gpgSign", "false"))
	return err == nil && v
}

// PushRemote returns "stack.push-remote", defaulting to "origin".
func (r *Repo) PushRemote() string { return r.stackOption("push-remote", "origin") }

// PullRemote returns "stack.pull-remote", falling back to PushRemote.
func (r *Repo) PullRemote() string { return r.stackOption("pull-remote", r.PushRemote()) }

// IsDirty reports uncommitted modifications or an in-progress rebase/merge.
func (r *Repo) IsDirty(ctx context.Context) (bool, error) {
	for _, marker := range []string{"rebase-merge", "rebase-apply", "MERGE_HEAD"} {
		if _, err := os.Stat(filepath.Join(r.gitDir, marker)); err == nil {
			return true, nil
		}
	}
	wt, err := r.repo.Worktree()
	if err != nil {
		return false, err
	}
	status, err := wt.Status()
	if err != nil {
		return false, err
	}
	for _, s := range status {
		if s.Staging == gogit.Untracked && s.Worktree == gogit.Untracked {
			continue
		}
		if s.Staging != gogit.Unmodified || s.Worktree != gogit.Unmodified {
			return true, nil
		}
	}
	return false, nil
}

// MergeBase returns the unique common ancestor of a and b.
func (r *Repo) MergeBase(ctx context.Context, a, b objid.Oid) (objid.Oid, bool, error) {
	ca, err := r.repo.CommitObject(toHash(a))
	if err != nil {
		return objid.Oid{}, false, err
	}
	cb, err := r.repo.CommitObject(toHash(b))
	if err != nil {
		return objid.Oid{}, false, err
	}
	bases, err := ca.MergeBase(cb)
	if err != nil {
		return objid.Oid{}, false, err
	}
	if len(bases) == 0 {
		return objid.Oid{}, false, nil
	}
	return toOid(bases[0].Hash), true, nil
}

// FindCommit returns id's commit object, if it exists.
func (r *Repo) FindCommit(ctx context.Context, id objid.Oid) (gitcore.Commit, bool, error) {
	c, err := r.repo.CommitObject(toHash(id))
	if err == plumbing.ErrObjectNotFound {
		return gitcore.Commit{}, false, nil
	}
	if err != nil {
		return gitcore.Commit{}, false, err
	}
	return toCommit(c), true, nil
}

// HeadCommit returns HEAD's commit.
func (r *Repo) HeadCommit(ctx context.Context) (gitcore.Commit, error) {
	head, err := r.repo.Head()
	if err != nil {
		return gitcore.Commit{}, err
	}
	c, err := r.repo.CommitObject(head.Hash())
	if err != nil {
		return gitcore.Commit{}, err
	}
	return toCommit(c), nil
}

// HeadBranch returns the branch HEAD points to, if any.
func (r *Repo) HeadBranch(ctx context.Context) (string, bool, error) {
	head, err := r.repo.Head()
	if err != nil {
		return "", false, err
	}
	if !head.Name().IsBranch() {
		return "", false, nil
	}
	return head.Name().Short(), true, nil
}

// Resolve resolves a revspec to a commit id.
func (r *Repo) Resolve(ctx context.Context, revspec string) (objid.Oid, error) {
	h, err := r.repo.ResolveRevision(plumbing.Revision(revspec))
	if err != nil {
		return objid.Oid{}, err
	}
	return toOid(*h), nil
}

// ParentIDs returns id's parent commit ids in order.
func (r *Repo) ParentIDs(ctx context.Context, id objid.Oid) ([]objid.Oid, error) {
	c, err := r.repo.CommitObject(toHash(id))
	if err != nil {
		return nil, err
	}
	ids := make([]objid.Oid, len(c.ParentHashes))
	for i, h := range c.ParentHashes {
		ids[i] = toOid(h)
	}
	return ids, nil
}

func (r *Repo) ancestorSet(start plumbing.Hash) (map[plumbing.Hash]bool, error) {
	seen := map[plumbing.Hash]bool{}
	queue := []plumbing.Hash{start}
	for len(queue) > 0 {
		h := queue[0]
		queue = queue[1:]
		if seen[h] {
			continue
		}
		seen[h] = true
		c, err := r.repo.CommitObject(h)
		if err != nil {
			return nil, err
		}
		queue = append(queue, c.ParentHashes...)
	}
	return seen, nil
}

// CommitCount returns the number of commits strictly between base and
// head, or false if base is not an ancestor of head.
func (r *Repo) CommitCount(ctx context.Context, base, head objid.Oid) (int, bool, error) {
	ids, err := r.CommitRange(ctx, gitrepo.Exclusive(base), gitrepo.Inclusive(head))
	if err != nil {
		return 0, false, err
	}
	baseCommit, err := r.repo.CommitObject(toHash(base))
	if err != nil {
		return 0, false, err
	}
	headCommit, err := r.repo.CommitObject(toHash(head))
	if err != nil {
		return 0, false, err
	}
	isAncestor, err := baseCommit.IsAncestor(headCommit)
	if err != nil {
		return 0, false, err
	}
	if !isAncestor && base != head {
		return 0, false, nil
	}
	return len(ids), true, nil
}

// CommitRange returns commits in (baseBound, headBound], child-first.
func (r *Repo) CommitRange(ctx context.Context, baseBound, headBound gitrepo.Bound) ([]objid.Oid, error) {
	if headBound.Unbounded() {
		return nil, fmt.Errorf("gitrepo/real: head bound must not be unbounded")
	}

	headSet, err := r.ancestorSet(toHash(headBound.ID))
	if err != nil {
		return nil, err
	}

	exclude := map[plumbing.Hash]bool{}
	if !baseBound.Unbounded() {
		baseHash := toHash(baseBound.ID)
		baseSet, err := r.ancestorSet(baseHash)
		if err != nil {
			return nil, err
		}
		for h := range baseSet {
			exclude[h] = true
		}
		if !baseBound.Exclusive {
			delete(exclude, baseHash)
		}
	}

	var included []plumbing.Hash
	for h := range headSet {
		if !exclude[h] {
			included = append(included, h)
		}
	}

	return r.topoSortChildFirst(included)
}

// topoSortChildFirst orders hashes so a commit appears before any of
// its parents, via Kahn's algorithm over the child-count of each node
// restricted to the given set.
func (r *Repo) topoSortChildFirst(hashes []plumbing.Hash) ([]objid.Oid, error) {
	included := make(map[plumbing.Hash]bool, len(hashes))
	for _, h := range hashes {
		included[h] = true
	}

	childCount := make(map[plumbing.Hash]int, len(hashes))
	parentsOf := make(map[plumbing.Hash][]plumbing.Hash, len(hashes))
	for _, h := range hashes {
		if _, ok := childCount[h]; !ok {
			childCount[h] = 0
		}
		c, err := r.repo.CommitObject(h)
		if err != nil {
			return nil, err
		}
		for _, p := range c.ParentHashes {
			if included[p] {
				parentsOf[h] = append(parentsOf[h], p)
				childCount[p]++
			}
		}
	}

	var queue []plumbing.Hash
	for _, h := range hashes {
		if childCount[h] == 0 {
			queue = append(queue, h)
		}
	}

	order := make([]objid.Oid, 0, len(hashes))
	for len(queue) > 0 {
		h := queue[0]
		queue = queue[1:]
		order = append(order, toOid(h))
		for _, p := range parentsOf[h] {
			childCount[p]--
			if childCount[p] == 0 {
				queue = append(queue, p)
			}
		}
	}
	return order, nil
}

// ContainsCommit reports whether needle is an ancestor of haystack, the
// closest approximation to "rebasing needle onto haystack is a no-op"
// available without a full patch-id comparison.
func (r *Repo) ContainsCommit(ctx context.Context, haystack, needle objid.Oid) (bool, error) {
	haystackCommit, err := r.repo.CommitObject(toHash(haystack))
	if err != nil {
		return false, err
	}
	needleCommit, err := r.repo.CommitObject(toHash(needle))
	if err != nil {
		return false, err
	}
	return needleCommit.IsAncestor(haystackCommit)
}

func (r *Repo) git(ctx context.Context, args ...string) (string, error) {
	return r.gitWithEnv(ctx, nil, args...)
}

func (r *Repo) gitWithEnv(ctx context.Context, env []string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.worktree
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}

// CherryPick replays cherry onto head in a detached worktree, the way
// the teacher's own CherryPick does, since a real content merge needs
// git's own patch application.
func (r *Repo) CherryPick(ctx context.Context, head, cherry objid.Oid) (objid.Oid, error) {
	if _, err := r.git(ctx, "checkout", "--detach", head.String()); err != nil {
		return objid.Oid{}, err
	}
	args := []string{"cherry-pick"}
	if r.signEnabled() {
		args = append(args, "-S")
	}
	args = append(args, cherry.String())
	if _, err := r.git(ctx, args...); err != nil {
		_, _ = r.git(ctx, "cherry-pick", "--abort")
		return objid.Oid{}, fmt.Errorf("gitrepo/real: cherry-pick %s onto %s: %w", cherry, head, err)
	}
	out, err := r.git(ctx, "rev-parse", "HEAD")
	if err != nil {
		return objid.Oid{}, err
	}
	return objid.Parse(out)
}

// Reword builds a new commit from head's existing tree and parents
// with a replacement message, via `commit-tree` so it never touches
// the worktree (head need not be the current checkout).
func (r *Repo) Reword(ctx context.Context, head objid.Oid, message string) (objid.Oid, error) {
	c, err := r.repo.CommitObject(toHash(head))
	if err != nil {
		return objid.Oid{}, err
	}
	args := []string{"commit-tree", c.TreeHash.String()}
	for _, p := range c.ParentHashes {
		args = append(args, "-p", p.String())
	}
	args = append(args, "-m", message)
	if r.signEnabled() {
		args = append(args, "-S")
	}
	out, err := r.gitWithEnv(ctx, signatureEnv(c.Author, c.Committer), args...)
	if err != nil {
		return objid.Oid{}, err
	}
	return objid.Parse(out)
}

// Squash builds a new commit carrying head's tree (the accumulated
// fixup content, since commits are full snapshots) with into's
// parents, message, and authorship, via `commit-tree`.
func (r *Repo) Squash(ctx context.Context, head, into objid.Oid) (objid.Oid, error) {
	headCommit, err := r.repo.CommitObject(toHash(head))
	if err != nil {
		return objid.Oid{}, err
	}
	intoCommit, err := r.repo.CommitObject(toHash(into))
	if err != nil {
		return objid.Oid{}, err
	}
	args := []string{"commit-tree", headCommit.TreeHash.String()}
	for _, p := range intoCommit.ParentHashes {
		args = append(args, "-p", p.String())
	}
	args = append(args, "-m", intoCommit.Message)
	if r.signEnabled() {
		args = append(args, "-S")
	}
	out, err := r.gitWithEnv(ctx, signatureEnv(intoCommit.Author, intoCommit.Committer), args...)
	if err != nil {
		return objid.Oid{}, err
	}
	return objid.Parse(out)
}

// Commit stages (if all) and commits the working tree's changes on
// top of HEAD via the system git binary, since capturing arbitrary
// untracked/modified worktree content isn't something go-git's object
// model gives us cheaply. Returns an error if nothing ends up staged.
func (r *Repo) Commit(ctx context.Context, message string, all bool) (objid.Oid, error) {
	if all {
		if _, err := r.git(ctx, "add", "-A"); err != nil {
			return objid.Oid{}, err
		}
	}
	staged, err := r.git(ctx, "diff", "--cached", "--name-only")
	if err != nil {
		return objid.Oid{}, err
	}
	if strings.TrimSpace(staged) == "" {
		return objid.Oid{}, fmt.Errorf("gitrepo/real: nothing staged to commit")
	}
	if _, err := r.git(ctx, "commit", "-m", message); err != nil {
		return objid.Oid{}, err
	}
	// Unsigned: this is the working-tree capture amend folds into REV via
	// Squash right afterwards, which signs; it never lands on its own.
	out, err := r.git(ctx, "rev-parse", "HEAD")
	if err != nil {
		return objid.Oid{}, err
	}
	return objid.Parse(out)
}

func signatureEnv(author, committer object.Signature) []string {
	return []string{
		"GIT_AUTHOR_NAME=" + author.Name,
		"GIT_AUTHOR_EMAIL=" + author.Email,
		"GIT_AUTHOR_DATE=" + author.When.Format("2006-01-02T15:04:05Z07:00"),
		"GIT_COMMITTER_NAME=" + committer.Name,
		"GIT_COMMITTER_EMAIL=" + committer.Email,
		"GIT_COMMITTER_DATE=" + committer.When.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// StashPush stashes the dirty worktree, if any.
func (r *Repo) StashPush(ctx context.Context, message string) (objid.Oid, bool, error) {
	dirty, err := r.IsDirty(ctx)
	if err != nil {
		return objid.Oid{}, false, err
	}
	if !dirty {
		return objid.Oid{}, false, nil
	}
	if _, err := r.git(ctx, "stash", "push", "-u", "-m", message); err != nil {
		return objid.Oid{}, false, err
	}
	out, err := r.git(ctx, "rev-parse", "stash@{0}")
	if err != nil {
		return objid.Oid{}, false, err
	}
	id, err := objid.Parse(out)
	if err != nil {
		return objid.Oid{}, false, err
	}
	return id, true, nil
}

// StashPop restores a stashed commit produced by StashPush.
func (r *Repo) StashPop(ctx context.Context, id objid.Oid) error {
	_, err := r.git(ctx, "stash", "pop", id.String())
	return err
}

// Branch creates or moves a local branch to point at id.
func (r *Repo) Branch(ctx context.Context, name string, id objid.Oid) error {
	return r.repo.Storer.SetReference(plumbing.NewHashReference(plumbing.NewBranchReferenceName(name), toHash(id)))
}

// DeleteBranch removes a local branch.
func (r *Repo) DeleteBranch(ctx context.Context, name string) error {
	return r.repo.Storer.RemoveReference(plumbing.NewBranchReferenceName(name))
}

// FindLocalBranch resolves a local branch name to its tip id.
func (r *Repo) FindLocalBranch(ctx context.Context, name string) (objid.Oid, bool, error) {
	ref, err := r.repo.Reference(plumbing.NewBranchReferenceName(name), true)
	if err == plumbing.ErrReferenceNotFound {
		return objid.Oid{}, false, nil
	}
	if err != nil {
		return objid.Oid{}, false, err
	}
	return toOid(ref.Hash()), true, nil
}

// FindRemoteBranch resolves a remote-tracking branch to its tip id.
func (r *Repo) FindRemoteBranch(ctx context.Context, remote, name string) (objid.Oid, bool, error) {
	ref, err := r.repo.Reference(plumbing.NewRemoteReferenceName(remote, name), true)
	if err == plumbing.ErrReferenceNotFound {
		return objid.Oid{}, false, nil
	}
	if err != nil {
		return objid.Oid{}, false, err
	}
	return toOid(ref.Hash()), true, nil
}

// LocalBranches lists every local branch.
func (r *Repo) LocalBranches(ctx context.Context) ([]gitrepo.Branch, error) {
	iter, err := r.repo.Branches()
	if err != nil {
		return nil, err
	}
	var out []gitrepo.Branch
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		out = append(out, gitrepo.Branch{Name: ref.Name().Short(), ID: toOid(ref.Hash())})
		return nil
	})
	return out, err
}

// RemoteBranches lists every remote-tracking branch.
func (r *Repo) RemoteBranches(ctx context.Context) ([]gitrepo.RemoteBranch, error) {
	refs, err := r.repo.References()
	if err != nil {
		return nil, err
	}
	var out []gitrepo.RemoteBranch
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		if !ref.Name().IsRemote() {
			return nil
		}
		short := ref.Name().Short()
		parts := strings.SplitN(short, "/", 2)
		if len(parts) != 2 {
			return nil
		}
		out = append(out, gitrepo.RemoteBranch{Remote: parts[0], Name: parts[1], ID: toOid(ref.Hash())})
		return nil
	})
	return out, err
}

// Detach points HEAD directly at its current commit.
func (r *Repo) Detach(ctx context.Context) error {
	head, err := r.repo.Head()
	if err != nil {
		return err
	}
	return r.repo.Storer.SetReference(plumbing.NewHashReference(plumbing.HEAD, head.Hash()))
}

// SwitchBranch checks out name, updating HEAD and the worktree.
func (r *Repo) SwitchBranch(ctx context.Context, name string) error {
	wt, err := r.repo.Worktree()
	if err != nil {
		return err
	}
	return wt.Checkout(&gogit.CheckoutOptions{Branch: plumbing.NewBranchReferenceName(name)})
}

// SwitchCommit detaches HEAD at id, updating the worktree.
func (r *Repo) SwitchCommit(ctx context.Context, id objid.Oid) error {
	wt, err := r.repo.Worktree()
	if err != nil {
		return err
	}
	return wt.Checkout(&gogit.CheckoutOptions{Hash: toHash(id)})
}
