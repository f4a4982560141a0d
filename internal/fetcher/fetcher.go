// Package fetcher wraps the subprocess invocation of the host git
// binary for the operations that need a user's credential helper:
// fetching from, pushing to, and listing a remote. It mirrors the
// teacher's own internal/git command-runner idiom (exec.CommandContext
// against the system git, a bounded default timeout, captured
// stdout/stderr) rather than reimplementing transport/auth with go-git.
package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultTimeout bounds a single fetch/push/ls-remote invocation.
const DefaultTimeout = 5 * time.Minute

// Fetcher runs git fetch/push/ls-remote against a working tree.
type Fetcher struct {
	WorkingDir string
	Timeout    time.Duration
}

// New returns a Fetcher rooted at workingDir.
func New(workingDir string) *Fetcher {
	return &Fetcher{WorkingDir: workingDir, Timeout: DefaultTimeout}
}

func (f *Fetcher) run(ctx context.Context, args ...string) (string, error) {
	if _, ok := ctx.Deadline(); !ok {
		timeout := f.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, "git", args...)
	if f.WorkingDir != "" {
		cmd.Dir = f.WorkingDir
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}

// Fetch runs "git fetch <remote>", delegating to the user's configured
// credential helper for any auth prompt.
func (f *Fetcher) Fetch(ctx context.Context, remote string) error {
	_, err := f.run(ctx, "fetch", remote)
	return err
}

// FetchPrune runs "git fetch --prune <remote>", removing local
// remote-tracking refs whose upstream branch was deleted.
func (f *Fetcher) FetchPrune(ctx context.Context, remote string) error {
	_, err := f.run(ctx, "fetch", "--prune", remote)
	return err
}

// Push runs "git push <remote> <branch>", using --force-with-lease
// when forceWithLease is set, delegating to the user's configured
// credential helper for any auth prompt.
func (f *Fetcher) Push(ctx context.Context, remote, branch string, forceWithLease bool) error {
	args := []string{"push"}
	if forceWithLease {
		args = append(args, "--force-with-lease")
	}
	args = append(args, remote, branch)
	_, err := f.run(ctx, args...)
	return err
}

// RemoteRef is one (name, commit id) pair reported by ls-remote.
type RemoteRef struct {
	Name string
	ID   string
}

// LsRemote lists the branch heads advertised by remote without
// fetching any objects.
func (f *Fetcher) LsRemote(ctx context.Context, remote string) ([]RemoteRef, error) {
	out, err := f.run(ctx, "ls-remote", "--heads", remote)
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}

	var refs []RemoteRef
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		refs = append(refs, RemoteRef{ID: fields[0], Name: strings.TrimPrefix(fields[1], "refs/heads/")})
	}
	return refs, nil
}
