package rewrite

import (
	"context"

	"gitstack.dev/gitstack/internal/gitrepo"
	"gitstack.dev/gitstack/internal/objid"
)

type stagedBranch struct {
	ID   objid.Oid
	Name string
}

// Failure records a batch that failed mid-run, along with the batches
// skipped as a result of depending on marks it would have registered.
type Failure struct {
	BatchIndex        int
	Branch            string
	Err               error
	SkippedDependents []string
}

// Executor applies a Script's batches against a repository, one batch
// at a time, isolating a batch's failure from its independent siblings.
type Executor struct {
	repo  gitrepo.Repo
	hooks gitrepo.Hooks

	marks    map[objid.Oid]objid.Oid
	headID   objid.Oid
	detached bool
}

// New returns an Executor bound to repo. hooks may be nil.
func New(repo gitrepo.Repo, hooks gitrepo.Hooks) *Executor {
	return &Executor{
		repo:  repo,
		hooks: hooks,
		marks: make(map[objid.Oid]objid.Oid),
	}
}

// Run applies every batch of script in order. It never returns an
// error for a single batch's command failure — those are collected
// into the returned Failure list and that batch's staged work is
// abandoned; Run only returns an error for failures in committing a
// batch's staged reference changes.
func (e *Executor) Run(ctx context.Context, script *Script, dryRun bool) ([]Failure, error) {
	head, err := e.repo.HeadCommit(ctx)
	if err != nil {
		return nil, err
	}
	e.headID = head.ID

	skip := make(map[int]bool)
	var failures []Failure

	for i := range script.Batches {
		if skip[i] {
			continue
		}
		batch := script.Batches[i]

		onto := batch.OntoMark
		if real, ok := e.marks[onto]; ok {
			onto = real
		}
		current := onto

		var staged []stagedBranch
		var deleteStaged []string
		var postRewrite []gitrepo.Rewrite

		var failErr error
	commands:
		for _, cmd := range batch.Commands {
			switch cmd.Kind {
			case RegisterMark:
				e.marks[cmd.ID] = current
			case CherryPick:
				newID, err := e.repo.CherryPick(ctx, current, cmd.ID)
				if err != nil {
					failErr = err
					break commands
				}
				postRewrite = append(postRewrite, gitrepo.Rewrite{Old: cmd.ID, New: newID})
				current = newID
			case Reword:
				target := current
				if !cmd.ID.IsZero() {
					picked, err := e.repo.CherryPick(ctx, current, cmd.ID)
					if err != nil {
						failErr = err
						break commands
					}
					postRewrite = append(postRewrite, gitrepo.Rewrite{Old: cmd.ID, New: picked})
					target = picked
				}
				newID, err := e.repo.Reword(ctx, target, cmd.Message)
				if err != nil {
					failErr = err
					break commands
				}
				retargetRewrite(postRewrite, target, newID)
				current = newID
			case Fixup:
				newID, err := e.repo.Squash(ctx, cmd.ID, current)
				if err != nil {
					failErr = err
					break commands
				}
				retargetRewrite(postRewrite, current, newID)
				postRewrite = append(postRewrite, gitrepo.Rewrite{Old: cmd.ID, New: newID})
				current = newID
			case CreateBranch:
				staged = append(staged, stagedBranch{ID: current, Name: cmd.Name})
			case DeleteBranch:
				deleteStaged = append(deleteStaged, cmd.Name)
			}
		}

		if failErr != nil {
			branch := ""
			if len(staged) > 0 {
				branch = staged[0].Name
			} else if len(deleteStaged) > 0 {
				branch = deleteStaged[0]
			}
			skipped := e.skipDependents(script, i, skip)
			failures = append(failures, Failure{BatchIndex: i, Branch: branch, Err: failErr, SkippedDependents: skipped})
			continue
		}

		e.headID = current
		if (len(staged) > 0 || len(deleteStaged) > 0) && !dryRun {
			if err := e.commitBatch(ctx, staged, deleteStaged, postRewrite); err != nil {
				return failures, err
			}
		}
	}

	return failures, nil
}

func retargetRewrite(pairs []gitrepo.Rewrite, old, new objid.Oid) {
	for i, p := range pairs {
		if p.New == old {
			pairs[i].New = new
		}
	}
}

func (e *Executor) commitBatch(ctx context.Context, staged []stagedBranch, deleteStaged []string, postRewrite []gitrepo.Rewrite) error {
	if e.hooks != nil {
		updates := make([]gitrepo.RefUpdate, 0, len(staged)+len(deleteStaged))
		for _, s := range staged {
			updates = append(updates, gitrepo.RefUpdate{New: s.ID, Name: s.Name})
		}
		for _, name := range deleteStaged {
			updates = append(updates, gitrepo.RefUpdate{Name: name})
		}
		if err := e.hooks.ReferenceTransaction(ctx, updates); err != nil {
			return err
		}
	}

	if !e.detached {
		if err := e.repo.Detach(ctx); err != nil {
			return err
		}
		e.detached = true
	}
	for _, s := range staged {
		if err := e.repo.Branch(ctx, s.Name, s.ID); err != nil {
			return err
		}
	}
	for _, name := range deleteStaged {
		if err := e.repo.DeleteBranch(ctx, name); err != nil {
			return err
		}
	}

	if e.hooks != nil {
		var pairs []gitrepo.Rewrite
		for _, rw := range postRewrite {
			if rw.Old != rw.New {
				pairs = append(pairs, rw)
			}
		}
		if len(pairs) > 0 {
			if err := e.hooks.PostRewrite(ctx, pairs); err != nil {
				return err
			}
		}
	}
	return nil
}

// skipDependents marks every later batch that depends, directly or
// transitively, on a mark the failed batch would have registered, and
// returns the branch names staged within those skipped batches.
func (e *Executor) skipDependents(script *Script, failedIdx int, skip map[int]bool) []string {
	produced := make(map[objid.Oid]bool)
	for _, cmd := range script.Batches[failedIdx].Commands {
		if cmd.Kind == RegisterMark {
			produced[cmd.ID] = true
		}
	}

	var names []string
	for changed := true; changed; {
		changed = false
		for j := failedIdx + 1; j < len(script.Batches); j++ {
			if skip[j] {
				continue
			}
			b := script.Batches[j]
			if !produced[b.OntoMark] {
				continue
			}
			skip[j] = true
			changed = true
			for _, cmd := range b.Commands {
				switch cmd.Kind {
				case CreateBranch:
					names = append(names, cmd.Name)
				case RegisterMark:
					produced[cmd.ID] = true
				}
			}
		}
	}
	return names
}

// Close finishes the run: switches to restoreBranch if given, else to
// the final head commit if it moved, else does nothing.
func (e *Executor) Close(ctx context.Context, restoreBranch string) error {
	if restoreBranch != "" {
		return e.repo.SwitchBranch(ctx, restoreBranch)
	}
	head, err := e.repo.HeadCommit(ctx)
	if err == nil && head.ID == e.headID {
		return nil
	}
	return e.repo.SwitchCommit(ctx, e.headID)
}
