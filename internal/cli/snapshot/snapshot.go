// Package snapshot implements the branch-stash verbs (C9): push, list,
// clear, drop, pop, apply, and stacks, each a thin wrapper around
// internal/snapshot's on-disk numbered stack, following the teacher's
// internal/cli/undo.go and its one-verb-per-file convention.
package snapshot

import (
	"fmt"

	"github.com/spf13/cobra"

	"gitstack.dev/gitstack/internal/cli/helpers"
	"gitstack.dev/gitstack/internal/runtime"
	"gitstack.dev/gitstack/internal/snapshot"
	"gitstack.dev/gitstack/internal/xerrors"
)

func stackName(rc *runtime.Context, args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return rc.Config.Stack()
}

func openStack(rc *runtime.Context, args []string) (snapshot.Stack, error) {
	name := stackName(rc, args)
	s, err := snapshot.New(rc.Repo, name)
	if err != nil {
		return snapshot.Stack{}, fmt.Errorf("%w: %v", xerrors.ErrIO, err)
	}
	s.Capacity = rc.Config.Capacity()
	return s, nil
}

// NewPushCmd creates the "push" command: capture every local branch
// tip onto the named (or configured default) branch-stash.
func NewPushCmd() *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:   "push [STACK]",
		Short: "Capture every local branch tip onto a branch-stash",
		Long: `Captures the current position of every local branch and pushes it
onto the named branch-stash (or the configured default stack), for
later restoration with apply or pop.`,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return helpers.Run(cmd, func(rc *runtime.Context) error {
				s, err := openStack(rc, args)
				if err != nil {
					return err
				}
				snap, err := snapshot.FromRepo(cmd.Context(), rc.Repo)
				if err != nil {
					return err
				}
				if message != "" {
					if snap.Metadata == nil {
						snap.Metadata = map[string]string{}
					}
					snap.Metadata["message"] = message
				}
				path, err := s.Push(snap)
				if err != nil {
					return fmt.Errorf("%w: %v", xerrors.ErrIO, err)
				}
				rc.Log.Info("Pushed %s (%d branches) onto %s.", path, len(snap.Branches), s.Name)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "A note describing why this snapshot was taken.")
	return cmd
}

// NewListCmd creates the "list" command: print every snapshot in a
// branch-stash, oldest first.
func NewListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "list [STACK]",
		Short:        "List the snapshots in a branch-stash",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return helpers.Run(cmd, func(rc *runtime.Context) error {
				s, err := openStack(rc, args)
				if err != nil {
					return err
				}
				paths, err := s.Iter()
				if err != nil {
					return fmt.Errorf("%w: %v", xerrors.ErrIO, err)
				}
				if len(paths) == 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "%s is empty.\n", s.Name)
					return nil
				}
				for i, p := range paths {
					snap, err := snapshot.Load(p)
					if err != nil {
						return fmt.Errorf("%w: %v", xerrors.ErrIO, err)
					}
					msg := snap.Metadata["message"]
					if msg == "" {
						msg = fmt.Sprintf("%d branch(es)", len(snap.Branches))
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%d: %s\n", i, msg)
				}
				return nil
			})
		},
	}
	return cmd
}

// NewClearCmd creates the "clear" command: discard every snapshot in a
// branch-stash.
func NewClearCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "clear [STACK]",
		Short:        "Discard every snapshot in a branch-stash",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return helpers.Run(cmd, func(rc *runtime.Context) error {
				s, err := openStack(rc, args)
				if err != nil {
					return err
				}
				if err := s.Clear(); err != nil {
					return fmt.Errorf("%w: %v", xerrors.ErrIO, err)
				}
				rc.Log.Info("Cleared %s.", s.Name)
				return nil
			})
		},
	}
	return cmd
}

// NewDropCmd creates the "drop" command: discard the most recent
// snapshot in a branch-stash without applying it.
func NewDropCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "drop [STACK]",
		Short:        "Discard the most recent snapshot without applying it",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return helpers.Run(cmd, func(rc *runtime.Context) error {
				s, err := openStack(rc, args)
				if err != nil {
					return err
				}
				path, ok, err := s.Pop()
				if err != nil {
					return fmt.Errorf("%w: %v", xerrors.ErrIO, err)
				}
				if !ok {
					return fmt.Errorf("%w: %s is empty", xerrors.ErrState, s.Name)
				}
				rc.Log.Info("Dropped %s.", path)
				return nil
			})
		},
	}
	return cmd
}

// NewApplyCmd creates the "apply" command: restore every branch tip
// from a branch-stash's most recent snapshot, leaving it on the stack.
func NewApplyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "apply [STACK]",
		Short:        "Restore the most recent snapshot, keeping it on the stack",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return helpers.Run(cmd, func(rc *runtime.Context) error {
				s, err := openStack(rc, args)
				if err != nil {
					return err
				}
				path, ok, err := s.Peek()
				if err != nil {
					return fmt.Errorf("%w: %v", xerrors.ErrIO, err)
				}
				if !ok {
					return fmt.Errorf("%w: %s is empty", xerrors.ErrState, s.Name)
				}
				snap, err := snapshot.Load(path)
				if err != nil {
					return fmt.Errorf("%w: %v", xerrors.ErrIO, err)
				}
				if err := snap.Apply(cmd.Context(), rc.Repo); err != nil {
					return fmt.Errorf("%w: %v", xerrors.ErrIO, err)
				}
				rc.Log.Info("Applied %s (%d branches restored).", path, len(snap.Branches))
				return nil
			})
		},
	}
	return cmd
}

// NewPopCmd creates the "pop" command: restore every branch tip from a
// branch-stash's most recent snapshot, then remove it from the stack.
func NewPopCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "pop [STACK]",
		Short:        "Restore the most recent snapshot and remove it from the stack",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return helpers.Run(cmd, func(rc *runtime.Context) error {
				s, err := openStack(rc, args)
				if err != nil {
					return err
				}
				path, ok, err := s.Peek()
				if err != nil {
					return fmt.Errorf("%w: %v", xerrors.ErrIO, err)
				}
				if !ok {
					return fmt.Errorf("%w: %s is empty", xerrors.ErrState, s.Name)
				}
				snap, err := snapshot.Load(path)
				if err != nil {
					return fmt.Errorf("%w: %v", xerrors.ErrIO, err)
				}
				if err := snap.Apply(cmd.Context(), rc.Repo); err != nil {
					return fmt.Errorf("%w: %v", xerrors.ErrIO, err)
				}
				if _, _, err := s.Pop(); err != nil {
					return fmt.Errorf("%w: %v", xerrors.ErrIO, err)
				}
				rc.Log.Info("Popped %s (%d branches restored).", path, len(snap.Branches))
				return nil
			})
		},
	}
	return cmd
}

// NewStacksCmd creates the "stacks" command: list every branch-stash
// name known to the repository.
func NewStacksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "stacks",
		Short:        "List every branch-stash in the repository",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return helpers.Run(cmd, func(rc *runtime.Context) error {
				stacks, err := snapshot.All(rc.Repo)
				if err != nil {
					return fmt.Errorf("%w: %v", xerrors.ErrIO, err)
				}
				for _, s := range stacks {
					paths, err := s.Iter()
					if err != nil {
						return fmt.Errorf("%w: %v", xerrors.ErrIO, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s (%d)\n", s.Name, len(paths))
				}
				return nil
			})
		},
	}
	return cmd
}
