package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gitstack.dev/gitstack/internal/gitrepo"
)

// DefaultStack is the name of the stack used when the caller doesn't
// pick one explicitly.
const DefaultStack = "recent"

const snapshotExt = ".bak"

// Stack is a numbered, on-disk, oldest-first queue of snapshots rooted
// at <gitdir>/branch-stash/<name>/.
type Stack struct {
	Name     string
	root     string
	Capacity *int
}

func stacksRoot(gitDir string) string {
	return filepath.Join(gitDir, "branch-stash")
}

func stackRoot(gitDir, name string) string {
	return filepath.Join(stacksRoot(gitDir), name)
}

// New returns a Stack named name rooted under repo's git directory.
func New(repo gitrepo.Repo, name string) (Stack, error) {
	gitDir, ok := repo.Path()
	if !ok {
		return Stack{}, fmt.Errorf("snapshot: repository has no git directory")
	}
	return Stack{Name: name, root: stackRoot(gitDir, name)}, nil
}

// All enumerates every stack directory under repo's git directory,
// ensuring DefaultStack is always present even if never yet written.
func All(repo gitrepo.Repo) ([]Stack, error) {
	gitDir, ok := repo.Path()
	if !ok {
		return nil, fmt.Errorf("snapshot: repository has no git directory")
	}
	entries, err := os.ReadDir(stacksRoot(gitDir))
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	var stacks []Stack
	haveDefault := false
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if e.Name() == DefaultStack {
			haveDefault = true
		}
		stacks = append(stacks, Stack{Name: e.Name(), root: stackRoot(gitDir, e.Name())})
	}
	if !haveDefault {
		stacks = append([]Stack{{Name: DefaultStack, root: stackRoot(gitDir, DefaultStack)}}, stacks...)
	}
	return stacks, nil
}

type indexedPath struct {
	index int
	path  string
}

// Iter lists this stack's snapshot files, oldest first.
func (s *Stack) Iter() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var elems []indexedPath
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if filepath.Ext(name) != snapshotExt {
			continue
		}
		stem := strings.TrimSuffix(name, snapshotExt)
		idx, err := strconv.Atoi(stem)
		if err != nil {
			continue
		}
		elems = append(elems, indexedPath{index: idx, path: filepath.Join(s.root, name)})
	}
	sort.Slice(elems, func(i, j int) bool { return elems[i].index < elems[j].index })

	paths := make([]string, len(elems))
	for i, e := range elems {
		paths[i] = e.path
	}
	return paths, nil
}

// Push saves snapshot as the newest entry, reusing the most recent
// file instead of writing a duplicate when its content is unchanged.
// When Capacity is set, the oldest entries are evicted so that,
// counting the new one, at most Capacity remain.
func (s *Stack) Push(snap Snapshot) (string, error) {
	elems, err := s.Iter()
	if err != nil {
		return "", err
	}

	nextIndex := 0
	if len(elems) > 0 {
		last := elems[len(elems)-1]
		stem := strings.TrimSuffix(filepath.Base(last), snapshotExt)
		idx, err := strconv.Atoi(stem)
		if err != nil {
			return "", err
		}
		nextIndex = idx + 1

		if prev, err := Load(last); err == nil && prev.Equal(snap) {
			return last, nil
		}
	}

	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return "", err
	}
	newPath := filepath.Join(s.root, fmt.Sprintf("%d%s", nextIndex, snapshotExt))
	if err := snap.Save(newPath); err != nil {
		return "", err
	}

	if s.Capacity != nil {
		all := append(elems, newPath)
		if remove := len(all) - *s.Capacity; remove > 0 {
			for _, p := range all[:remove] {
				_ = os.Remove(p)
			}
		}
	}

	return newPath, nil
}

// Peek returns the path of the most recent snapshot, if any.
func (s *Stack) Peek() (string, bool, error) {
	elems, err := s.Iter()
	if err != nil {
		return "", false, err
	}
	if len(elems) == 0 {
		return "", false, nil
	}
	return elems[len(elems)-1], true, nil
}

// Pop removes and returns the path of the most recent snapshot.
func (s *Stack) Pop() (string, bool, error) {
	path, ok, err := s.Peek()
	if err != nil || !ok {
		return "", false, err
	}
	if err := os.Remove(path); err != nil {
		return "", false, err
	}
	return path, true, nil
}

// Clear removes every snapshot in this stack.
func (s *Stack) Clear() error {
	err := os.RemoveAll(s.root)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
